package tokenfakerepo

import (
	"context"
	"sync"

	moerrors "github.com/jrsteele09/go-moment-client/internal/errors"
	"github.com/jrsteele09/go-moment-client/token"
)

var _ token.Store = (*FakeTokenStore)(nil)

// FakeTokenStore is an in-memory token.Store. It also counts saves, which
// tests use to assert on refresh behaviour.
type FakeTokenStore struct {
	pair  *token.TokenPair
	saves int
	lock  sync.RWMutex
}

func NewFakeTokenStore() *FakeTokenStore {
	return &FakeTokenStore{}
}

// NewFakeTokenStoreWith returns a store pre-loaded with pair.
func NewFakeTokenStoreWith(pair token.TokenPair) *FakeTokenStore {
	return &FakeTokenStore{pair: &pair}
}

func (s *FakeTokenStore) Load(_ context.Context) (token.TokenPair, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.pair == nil {
		return token.TokenPair{}, moerrors.ErrNoCredentials
	}
	return *s.pair, nil
}

func (s *FakeTokenStore) Save(_ context.Context, pair token.TokenPair) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.pair = &pair
	s.saves++
	return nil
}

func (s *FakeTokenStore) Clear(_ context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.pair = nil
	return nil
}

// Saves returns how many times Save has been called.
func (s *FakeTokenStore) Saves() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.saves
}
