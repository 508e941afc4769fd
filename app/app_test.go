package app_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jrsteele09/go-moment-client/app"
	"github.com/jrsteele09/go-moment-client/device"
	"github.com/jrsteele09/go-moment-client/eventbus"
	"github.com/jrsteele09/go-moment-client/internal/config"
	"github.com/jrsteele09/go-moment-client/momenttest"
	"github.com/jrsteele09/go-moment-client/realtime"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var identity = device.Identity{Hash: "app-test-device"}

func setEnv(t *testing.T, srv *momenttest.Server, store string) {
	t.Helper()
	t.Setenv("API_URL", srv.URL)
	t.Setenv("DATA_FOLDER", t.TempDir())
	t.Setenv("CREDENTIALS_STORE", store)
	t.Setenv("EVENT_BUS", "none")
	t.Setenv("HEARTBEAT_INTERVAL", "1h")
}

func newApp(t *testing.T, opts ...app.Option) *app.App {
	t.Helper()
	opts = append([]app.Option{app.WithIdentity(identity), app.WithLogger(zerolog.Nop())}, opts...)
	a, err := app.New(config.New(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func login(t *testing.T, a *app.App) {
	t.Helper()
	_, err := a.Auth.VerifyOTP(context.Background(), "ada@example.com", "", momenttest.OTP)
	require.NoError(t, err)
}

func TestMemoryStoreSession(t *testing.T) {
	srv := momenttest.New(t)
	setEnv(t, srv, "memory")
	a := newApp(t)
	ctx := context.Background()
	require.False(t, a.EventBusEnabled())

	login(t, a)
	user, err := a.Users.Me(ctx)
	require.NoError(t, err)
	require.Equal(t, "ada@example.com", user.Email)

	events, stop := a.Realtime.SubscribeConnection()
	defer stop()
	require.NoError(t, a.Realtime.Connect(ctx))
	peer := srv.NextPeer(t)
	require.Equal(t, identity.Hash, peer.Query.Get("device_hash"))

	select {
	case ev := <-events:
		require.Equal(t, realtime.Connected{}, ev)
	case <-time.After(2 * time.Second):
		t.Fatal("no connected event")
	}

	require.NoError(t, a.Close())
	require.Equal(t, realtime.StateIdle, a.Realtime.State())
}

func TestFileStorePersistsAcrossInstances(t *testing.T) {
	srv := momenttest.New(t)
	setEnv(t, srv, "file")
	ctx := context.Background()

	first := newApp(t)
	login(t, first)
	require.NoError(t, first.Close())

	second := newApp(t)
	require.True(t, second.Auth.IsAuthenticated(ctx))
	access, ok := second.Auth.AccessToken(ctx)
	require.True(t, ok)
	require.Equal(t, srv.Current().AccessToken, access)

	require.NoError(t, second.Auth.Logout(ctx))
	require.False(t, newApp(t).Auth.IsAuthenticated(ctx))
}

func TestRedisStoreAndEventBus(t *testing.T) {
	srv := momenttest.New(t)
	setEnv(t, srv, "redis")
	mr := miniredis.RunT(t)
	t.Setenv("REDIS_URL", fmt.Sprintf("redis://%s/0", mr.Addr()))
	t.Setenv("EVENT_BUS", "redis")

	a := newApp(t)
	require.True(t, a.EventBusEnabled())
	login(t, a)
	require.True(t, mr.Exists("moment:credentials:"+identity.Hash))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.RunEventBus(ctx) }()
	require.Eventually(t, func() bool { return a.Realtime.Subscribers() == 3 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, a.Realtime.Connect(context.Background()))
	peer := srv.NextPeer(t)
	require.NoError(t, peer.SendJSON(map[string]any{"type": "match", "user": map[string]any{"id": 7}}))

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	require.Eventually(t, func() bool {
		conn, err := client.XLen(context.Background(), eventbus.TopicConnection).Result()
		if err != nil {
			return false
		}
		matches, err := client.XLen(context.Background(), eventbus.TopicMatch).Result()
		return err == nil && conn >= 1 && matches == 1
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestInvalidRedisURL(t *testing.T) {
	srv := momenttest.New(t)
	setEnv(t, srv, "redis")
	t.Setenv("REDIS_URL", "://nope")
	_, err := app.New(config.New(), app.WithIdentity(identity), app.WithLogger(zerolog.Nop()))
	require.Error(t, err)
}
