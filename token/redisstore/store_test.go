package redisstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	moerrors "github.com/jrsteele09/go-moment-client/internal/errors"
	"github.com/jrsteele09/go-moment-client/token"
	"github.com/jrsteele09/go-moment-client/token/redisstore"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T, opts ...redisstore.Option) (*miniredis.Miniredis, *redisstore.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, redisstore.New(client, "hash123", opts...)
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	mr, s := setup(t)
	require.Equal(t, "moment:credentials:hash123", s.Key())

	_, err := s.Load(ctx)
	require.ErrorIs(t, err, moerrors.ErrNoCredentials)

	pair := token.TokenPair{AccessToken: "A1", RefreshToken: "R1", RefreshExpiresAt: time.Now().Add(time.Hour).Unix()}
	require.NoError(t, s.Save(ctx, pair))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, pair, got)

	require.Equal(t, "R1", mr.HGet(s.Key(), "refresh_token"))
	require.Zero(t, mr.TTL(s.Key()), "no expiry without WithExpiry")
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	mr, s := setup(t)

	require.NoError(t, s.Save(ctx, token.TokenPair{AccessToken: "A1", RefreshToken: "R1", RefreshExpiresAt: 10}))
	require.NoError(t, s.Clear(ctx))
	require.False(t, mr.Exists(s.Key()))

	_, err := s.Load(ctx)
	require.ErrorIs(t, err, moerrors.ErrNoCredentials)
}

func TestWithExpiry(t *testing.T) {
	ctx := context.Background()
	mr, s := setup(t, redisstore.WithExpiry(), redisstore.WithPrefix("test:"))
	require.Equal(t, "test:hash123", s.Key())

	mr.SetTime(time.Unix(1_700_000_000, 0))
	require.NoError(t, s.Save(ctx, token.TokenPair{AccessToken: "A1", RefreshToken: "R1", RefreshExpiresAt: 1_700_000_060}))
	require.True(t, mr.TTL(s.Key()) > 0)

	mr.FastForward(2 * time.Minute)
	_, err := s.Load(ctx)
	require.ErrorIs(t, err, moerrors.ErrNoCredentials)
}

func TestCorruptExpiry(t *testing.T) {
	ctx := context.Background()
	mr, s := setup(t)
	mr.HSet(s.Key(), "access_token", "A1", "refresh_token", "R1", "refresh_token_expires_at", "soon")

	_, err := s.Load(ctx)
	require.Error(t, err)
	require.Contains(t, err.Error(), "corrupt refresh expiry")
}
