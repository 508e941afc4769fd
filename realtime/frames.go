package realtime

import (
	"encoding/json"

	moerrors "github.com/jrsteele09/go-moment-client/internal/errors"
	"github.com/jrsteele09/go-moment-client/internal/utils"
)

const (
	TypeLocation   = "location"
	TypeHeartbeat  = "heartbeat"
	TypeMatch      = "match"
	TypeSessionEnd = "session_end"
)

// OutboundFrame is sent by the client. Heartbeats carry no coordinates.
type OutboundFrame struct {
	Type      string   `json:"type"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

func LocationFrame(lat, lon float64) OutboundFrame {
	return OutboundFrame{Type: TypeLocation, Latitude: utils.Ptr(lat), Longitude: utils.Ptr(lon)}
}

func HeartbeatFrame() OutboundFrame {
	return OutboundFrame{Type: TypeHeartbeat}
}

type MatchedUser struct {
	ID                int     `json:"id"`
	FirstName         *string `json:"first_name"`
	Age               *int    `json:"age"`
	Bio               *string `json:"bio"`
	ProfilePictureURL *string `json:"profile_picture_url"`
}

type MatchFrame struct {
	Type string      `json:"type"`
	User MatchedUser `json:"user"`
}

type SessionEndFrame struct {
	Type   string `json:"type"`
	Reason string `json:"reason,omitempty"`
}

// Frame is an inbound frame: *MatchFrame or *SessionEndFrame.
type Frame interface {
	FrameType() string
}

func (f *MatchFrame) FrameType() string      { return f.Type }
func (f *SessionEndFrame) FrameType() string { return f.Type }

// DecodeFrame reads the type discriminator, then decodes the payload for it.
// Unknown types and malformed payloads return a *errors.ProtocolError.
func DecodeFrame(data []byte) (Frame, error) {
	var head struct {
		Type *string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, &moerrors.ProtocolError{Err: err}
	}
	frameType := utils.Value(head.Type)

	switch frameType {
	case TypeMatch:
		var raw struct {
			Type string          `json:"type"`
			User json.RawMessage `json:"user"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, &moerrors.ProtocolError{Type: frameType, Err: err}
		}
		if len(raw.User) == 0 || string(raw.User) == "null" {
			return nil, &moerrors.ProtocolError{Type: frameType, Err: moerrors.New("missing user")}
		}
		f := &MatchFrame{Type: frameType}
		if err := json.Unmarshal(raw.User, &f.User); err != nil {
			return nil, &moerrors.ProtocolError{Type: frameType, Err: err}
		}
		return f, nil

	case TypeSessionEnd:
		f := &SessionEndFrame{}
		if err := json.Unmarshal(data, f); err != nil {
			return nil, &moerrors.ProtocolError{Type: frameType, Err: err}
		}
		return f, nil
	}
	return nil, &moerrors.ProtocolError{Type: frameType, Err: moerrors.ErrUnknownFrame}
}
