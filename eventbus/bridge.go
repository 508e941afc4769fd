// Package eventbus republishes realtime events onto a watermill publisher so
// other processes can observe matches and session state.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-moment-client/realtime"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	TopicMatch      = "moment.match"
	TopicSessionEnd = "moment.session_end"
	TopicConnection = "moment.connection"

	MetadataDeviceHash = "device_hash"
)

// Source is the realtime client's subscription surface.
type Source interface {
	SubscribeMatches() (<-chan realtime.MatchFrame, func())
	SubscribeSessionEnds() (<-chan realtime.SessionEndFrame, func())
	SubscribeConnection() (<-chan realtime.ConnectionEvent, func())
}

// ConnectionPayload is the wire form of a realtime.ConnectionEvent.
type ConnectionPayload struct {
	Event   string `json:"event"`
	Code    int    `json:"code,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

func NewConnectionPayload(ev realtime.ConnectionEvent) ConnectionPayload {
	p := ConnectionPayload{Event: realtime.EventName(ev)}
	return realtime.Match(ev,
		func(realtime.Connected) ConnectionPayload { return p },
		func(d realtime.Disconnected) ConnectionPayload {
			p.Code, p.Reason = d.Code, d.Reason
			return p
		},
		func(e realtime.Error) ConnectionPayload {
			p.Message = e.Message
			return p
		},
		func(realtime.Unauthorized) ConnectionPayload { return p },
	)
}

type Bridge struct {
	publisher  message.Publisher
	deviceHash string
	logger     zerolog.Logger
}

type Option func(*Bridge)

func WithLogger(l zerolog.Logger) Option {
	return func(b *Bridge) {
		b.logger = l
	}
}

// WithDeviceHash tags every message with the device hash.
func WithDeviceHash(hash string) Option {
	return func(b *Bridge) {
		b.deviceHash = hash
	}
}

func NewBridge(publisher message.Publisher, opts ...Option) *Bridge {
	b := &Bridge{publisher: publisher, logger: log.Logger}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With().Str("component", "eventbus").Logger()
	return b
}

// NewRedisPublisher returns a redis streams publisher logging through l.
func NewRedisPublisher(client redis.UniversalClient, l zerolog.Logger) (message.Publisher, error) {
	publisher, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{
			Client: client,
		},
		NewLoggerAdapter(l),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis publisher: %w", err)
	}
	return publisher, nil
}

// Run forwards events from src until ctx is done or every subscription has
// closed. Publish failures are logged and do not stop the bridge.
func (b *Bridge) Run(ctx context.Context, src Source) error {
	matches, stopMatches := src.SubscribeMatches()
	defer stopMatches()
	ends, stopEnds := src.SubscribeSessionEnds()
	defer stopEnds()
	conn, stopConn := src.SubscribeConnection()
	defer stopConn()

	for matches != nil || ends != nil || conn != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-matches:
			if !ok {
				matches = nil
				continue
			}
			b.publish(TopicMatch, m)
		case e, ok := <-ends:
			if !ok {
				ends = nil
				continue
			}
			b.publish(TopicSessionEnd, e)
		case ev, ok := <-conn:
			if !ok {
				conn = nil
				continue
			}
			b.publish(TopicConnection, NewConnectionPayload(ev))
		}
	}
	return nil
}

func (b *Bridge) publish(topic string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		b.logger.Err(err).Str("topic", topic).Msg("failed to marshal event")
		return
	}

	msg := message.NewMessage(uuid.NewString(), payload)
	if b.deviceHash != "" {
		msg.Metadata.Set(MetadataDeviceHash, b.deviceHash)
	}
	if err := b.publisher.Publish(topic, msg); err != nil {
		b.logger.Err(err).Str("topic", topic).Msg("failed to publish event")
		return
	}
	b.logger.Debug().Str("topic", topic).Str("message_id", msg.UUID).Msg("event published")
}
