package eventbus_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-moment-client/eventbus"
	"github.com/jrsteele09/go-moment-client/internal/utils"
	"github.com/jrsteele09/go-moment-client/realtime"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	matches    *realtime.Broadcaster[realtime.MatchFrame]
	ends       *realtime.Broadcaster[realtime.SessionEndFrame]
	connection *realtime.Broadcaster[realtime.ConnectionEvent]
	subscribed chan struct{}
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		matches:    realtime.NewBroadcaster[realtime.MatchFrame](),
		ends:       realtime.NewBroadcaster[realtime.SessionEndFrame](),
		connection: realtime.NewBroadcaster[realtime.ConnectionEvent](),
		subscribed: make(chan struct{}, 3),
	}
}

func (s *fakeSource) SubscribeMatches() (<-chan realtime.MatchFrame, func()) {
	defer func() { s.subscribed <- struct{}{} }()
	return s.matches.Subscribe(8)
}

func (s *fakeSource) SubscribeSessionEnds() (<-chan realtime.SessionEndFrame, func()) {
	defer func() { s.subscribed <- struct{}{} }()
	return s.ends.Subscribe(8)
}

func (s *fakeSource) SubscribeConnection() (<-chan realtime.ConnectionEvent, func()) {
	defer func() { s.subscribed <- struct{}{} }()
	return s.connection.Subscribe(8)
}

func (s *fakeSource) waitSubscribed(t *testing.T) {
	t.Helper()
	for i := 0; i < 3; i++ {
		select {
		case <-s.subscribed:
		case <-time.After(time.Second):
			t.Fatal("bridge did not subscribe")
		}
	}
}

func (s *fakeSource) close() {
	s.matches.Close()
	s.ends.Close()
	s.connection.Close()
}

func receive(t *testing.T, ch <-chan *message.Message) *message.Message {
	t.Helper()
	select {
	case msg := <-ch:
		msg.Ack()
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message")
		return nil
	}
}

func TestBridgePublishesEvents(t *testing.T) {
	pubsub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 8}, watermill.NopLogger{})
	t.Cleanup(func() { _ = pubsub.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	matchMsgs, err := pubsub.Subscribe(ctx, eventbus.TopicMatch)
	require.NoError(t, err)
	endMsgs, err := pubsub.Subscribe(ctx, eventbus.TopicSessionEnd)
	require.NoError(t, err)
	connMsgs, err := pubsub.Subscribe(ctx, eventbus.TopicConnection)
	require.NoError(t, err)

	src := newFakeSource()
	bridge := eventbus.NewBridge(pubsub, eventbus.WithDeviceHash("dev-1"), eventbus.WithLogger(zerolog.Nop()))
	done := make(chan error, 1)
	go func() { done <- bridge.Run(ctx, src) }()
	src.waitSubscribed(t)

	src.matches.Publish(realtime.MatchFrame{Type: realtime.TypeMatch, User: realtime.MatchedUser{ID: 9, FirstName: utils.Ptr("Grace")}})
	src.ends.Publish(realtime.SessionEndFrame{Type: realtime.TypeSessionEnd, Reason: "timeout"})
	src.connection.Publish(realtime.Disconnected{Code: 1001, Reason: "going away"})

	msg := receive(t, matchMsgs)
	_, err = uuid.Parse(msg.UUID)
	require.NoError(t, err)
	require.Equal(t, "dev-1", msg.Metadata.Get(eventbus.MetadataDeviceHash))
	var match realtime.MatchFrame
	require.NoError(t, json.Unmarshal(msg.Payload, &match))
	require.Equal(t, 9, match.User.ID)

	msg = receive(t, endMsgs)
	require.JSONEq(t, `{"type":"session_end","reason":"timeout"}`, string(msg.Payload))

	msg = receive(t, connMsgs)
	var payload eventbus.ConnectionPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	require.Equal(t, eventbus.ConnectionPayload{Event: "disconnected", Code: 1001, Reason: "going away"}, payload)

	src.close()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("bridge did not stop after its source closed")
	}
}

func TestBridgeStopsOnContext(t *testing.T) {
	pubsub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { _ = pubsub.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	src := newFakeSource()
	done := make(chan error, 1)
	go func() { done <- eventbus.NewBridge(pubsub).Run(ctx, src) }()
	src.waitSubscribed(t)

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("bridge ignored cancellation")
	}
	require.Zero(t, src.matches.Subscribers(), "subscriptions released")
}

func TestConnectionPayload(t *testing.T) {
	require.Equal(t, eventbus.ConnectionPayload{Event: "connected"}, eventbus.NewConnectionPayload(realtime.Connected{}))
	require.Equal(t, eventbus.ConnectionPayload{Event: "error", Message: "boom"}, eventbus.NewConnectionPayload(realtime.Error{Message: "boom"}))
	require.Equal(t, eventbus.ConnectionPayload{Event: "unauthorized"}, eventbus.NewConnectionPayload(realtime.Unauthorized{}))
}

func TestRedisPublisher(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	publisher, err := eventbus.NewRedisPublisher(client, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	src := newFakeSource()
	done := make(chan error, 1)
	go func() { done <- eventbus.NewBridge(publisher).Run(ctx, src) }()
	src.waitSubscribed(t)

	src.connection.Publish(realtime.Connected{})

	require.Eventually(t, func() bool {
		entries, err := client.XRange(context.Background(), eventbus.TopicConnection, "-", "+").Result()
		if err != nil || len(entries) != 1 {
			return false
		}
		for _, v := range entries[0].Values {
			if s := fmt.Sprint(v); s == `{"event":"connected"}` {
				return true
			}
		}
		return false
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	<-done
}
