package redisstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	moerrors "github.com/jrsteele09/go-moment-client/internal/errors"
	"github.com/jrsteele09/go-moment-client/token"
	"github.com/redis/go-redis/v9"
)

const (
	fieldAccess  = "access_token"
	fieldRefresh = "refresh_token"
	fieldExpiry  = "refresh_token_expires_at"
)

var _ token.Store = (*Store)(nil)

// Store keeps the token pair as a Redis hash, one hash per device. Saves
// write every field in a single MULTI/EXEC so readers never see a partial pair.
type Store struct {
	client    *redis.Client
	prefix    string
	key       string
	expireKey bool
}

type Option func(*Store)

// WithPrefix replaces the default "moment:credentials:" key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithExpiry makes Redis drop the hash once the refresh token expires.
func WithExpiry() Option {
	return func(s *Store) {
		s.expireKey = true
	}
}

func New(client *redis.Client, deviceHash string, opts ...Option) *Store {
	s := &Store{client: client, prefix: "moment:credentials:"}
	for _, opt := range opts {
		opt(s)
	}
	s.key = s.prefix + deviceHash
	return s
}

// Key returns the Redis key holding the pair.
func (s *Store) Key() string {
	return s.key
}

func (s *Store) Load(ctx context.Context) (token.TokenPair, error) {
	values, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return token.TokenPair{}, fmt.Errorf("failed to load credentials: %w", err)
	}
	if len(values) == 0 {
		return token.TokenPair{}, moerrors.ErrNoCredentials
	}

	expiry, err := strconv.ParseInt(values[fieldExpiry], 10, 64)
	if err != nil {
		return token.TokenPair{}, fmt.Errorf("corrupt refresh expiry %q: %w", values[fieldExpiry], err)
	}
	return token.TokenPair{
		AccessToken:      values[fieldAccess],
		RefreshToken:     values[fieldRefresh],
		RefreshExpiresAt: expiry,
	}, nil
}

func (s *Store) Save(ctx context.Context, pair token.TokenPair) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.key, map[string]interface{}{
			fieldAccess:  pair.AccessToken,
			fieldRefresh: pair.RefreshToken,
			fieldExpiry:  strconv.FormatInt(pair.RefreshExpiresAt, 10),
		})
		if s.expireKey {
			pipe.ExpireAt(ctx, s.key, time.Unix(pair.RefreshExpiresAt, 0))
		} else {
			pipe.Persist(ctx, s.key)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	return nil
}
