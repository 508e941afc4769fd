package realtime_test

import (
	"encoding/json"
	"testing"

	moerrors "github.com/jrsteele09/go-moment-client/internal/errors"
	"github.com/jrsteele09/go-moment-client/internal/utils"
	"github.com/jrsteele09/go-moment-client/realtime"
	"github.com/stretchr/testify/require"
)

func TestOutboundFrameShapes(t *testing.T) {
	data, err := json.Marshal(realtime.HeartbeatFrame())
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"heartbeat"}`, string(data))

	data, err = json.Marshal(realtime.LocationFrame(0, -122.5))
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"location","latitude":0,"longitude":-122.5}`, string(data))
}

func TestDecodeFrame(t *testing.T) {
	t.Run("match", func(t *testing.T) {
		frame, err := realtime.DecodeFrame([]byte(`{"type":"match","user":{"id":7,"first_name":"Grace","age":30,"bio":null}}`))
		require.NoError(t, err)
		match, ok := frame.(*realtime.MatchFrame)
		require.True(t, ok)
		require.Equal(t, realtime.TypeMatch, match.FrameType())
		require.Equal(t, 7, match.User.ID)
		require.Equal(t, "Grace", utils.Value(match.User.FirstName))
		require.Equal(t, 30, utils.Value(match.User.Age))
		require.Nil(t, match.User.Bio)
	})

	t.Run("session end", func(t *testing.T) {
		frame, err := realtime.DecodeFrame([]byte(`{"type":"session_end","reason":"left the area"}`))
		require.NoError(t, err)
		end, ok := frame.(*realtime.SessionEndFrame)
		require.True(t, ok)
		require.Equal(t, "left the area", end.Reason)
	})

	bad := []struct {
		name    string
		payload string
		typ     string
		unknown bool
	}{
		{"not json", `hello`, "", false},
		{"no type", `{"user":{"id":1}}`, "", true},
		{"unknown type", `{"type":"ping"}`, "ping", true},
		{"type not a string", `{"type":5}`, "", false},
		{"match without user", `{"type":"match"}`, "match", false},
		{"match with bad user", `{"type":"match","user":{"id":"seven"}}`, "match", false},
		{"session end with bad reason", `{"type":"session_end","reason":3}`, "session_end", false},
	}
	for _, tt := range bad {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := realtime.DecodeFrame([]byte(tt.payload))
			require.Nil(t, frame)
			var protoErr *moerrors.ProtocolError
			require.ErrorAs(t, err, &protoErr)
			require.Equal(t, tt.typ, protoErr.Type)
			if tt.unknown {
				require.ErrorIs(t, err, moerrors.ErrUnknownFrame)
			}
		})
	}
}
