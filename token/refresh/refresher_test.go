package refresh_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-moment-client/device"
	moerrors "github.com/jrsteele09/go-moment-client/internal/errors"
	"github.com/jrsteele09/go-moment-client/token"
	"github.com/jrsteele09/go-moment-client/token/refresh"
	tokenfakerepo "github.com/jrsteele09/go-moment-client/token/repofake"
	"github.com/stretchr/testify/require"
)

var identity = device.Identity{Hash: "device-hash-1"}

type backend struct {
	*httptest.Server
	calls  atomic.Int32
	status int
	body   string
	seen   chan *http.Request
}

func newBackend(t *testing.T, status int, body string) *backend {
	t.Helper()
	b := &backend{status: status, body: body, seen: make(chan *http.Request, 8)}
	b.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.calls.Add(1)
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		r.Header.Set("X-Test-Refresh-Token", in["refresh_token"])
		b.seen <- r
		w.WriteHeader(b.status)
		_, _ = w.Write([]byte(b.body))
	}))
	t.Cleanup(b.Close)
	return b
}

func future() int64 { return time.Now().Add(time.Hour).Unix() }

func TestRefreshSuccess(t *testing.T) {
	b := newBackend(t, http.StatusOK, `{"access_token":"A2","refresh_token":"R2","refresh_token_expires_at":4102444800}`)
	store := tokenfakerepo.NewFakeTokenStoreWith(token.TokenPair{AccessToken: "A1", RefreshToken: "R1", RefreshExpiresAt: future()})

	r := refresh.NewRefresher(b.URL, store, identity)
	pair, err := r.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, token.TokenPair{AccessToken: "A2", RefreshToken: "R2", RefreshExpiresAt: 4102444800}, pair)

	stored, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, pair, stored)

	req := <-b.seen
	require.Equal(t, http.MethodPost, req.Method)
	require.Equal(t, "/"+refresh.Path, req.URL.Path)
	require.Equal(t, "device-hash-1", req.Header.Get(refresh.DeviceHashHeader))
	require.NotEmpty(t, req.Header.Get(refresh.RequestIDHeader))
	require.Empty(t, req.Header.Get("Authorization"))
	require.Equal(t, "R1", req.Header.Get("X-Test-Refresh-Token"))
}

func TestRefreshPreconditions(t *testing.T) {
	b := newBackend(t, http.StatusOK, `{}`)

	tests := []struct {
		name  string
		store token.Store
		want  error
	}{
		{"no credentials", tokenfakerepo.NewFakeTokenStore(), moerrors.ErrNoRefreshToken},
		{"empty refresh token", tokenfakerepo.NewFakeTokenStoreWith(token.TokenPair{AccessToken: "A1", RefreshExpiresAt: future()}), moerrors.ErrNoRefreshToken},
		{"expired refresh token", tokenfakerepo.NewFakeTokenStoreWith(token.TokenPair{AccessToken: "A1", RefreshToken: "R1", RefreshExpiresAt: time.Now().Add(-time.Minute).Unix()}), moerrors.ErrRefreshTokenExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := refresh.NewRefresher(b.URL, tt.store, identity).Refresh(context.Background())
			require.ErrorIs(t, err, tt.want)
			require.ErrorIs(t, err, moerrors.ErrAuthExpired)
		})
	}
	require.Zero(t, b.calls.Load(), "preconditions must not reach the network")
}

func TestRefreshFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{"unauthorized", http.StatusUnauthorized, `{"detail":"invalid"}`, func(t *testing.T, err error) {
			require.Equal(t, http.StatusUnauthorized, moerrors.StatusCode(err))
		}},
		{"empty body", http.StatusOK, ``, func(t *testing.T, err error) {
			require.ErrorIs(t, err, moerrors.ErrEmptyBody)
		}},
		{"malformed body", http.StatusOK, `{"access_token":`, func(t *testing.T, err error) {
			var decodeErr *moerrors.DecodeError
			require.ErrorAs(t, err, &decodeErr)
		}},
		{"incomplete pair", http.StatusOK, `{"access_token":"A2"}`, func(t *testing.T, err error) {
			require.ErrorIs(t, err, moerrors.ErrInvalidTokenPair)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBackend(t, tt.status, tt.body)
			original := token.TokenPair{AccessToken: "A1", RefreshToken: "R1", RefreshExpiresAt: future()}
			store := tokenfakerepo.NewFakeTokenStoreWith(original)

			_, err := refresh.NewRefresher(b.URL, store, identity).Refresh(context.Background())
			require.ErrorIs(t, err, moerrors.ErrAuthExpired)
			tt.check(t, err)
			require.Zero(t, store.Saves())
		})
	}
}

func TestRefreshTransportError(t *testing.T) {
	b := newBackend(t, http.StatusOK, `{}`)
	url := b.URL
	b.Close()

	store := tokenfakerepo.NewFakeTokenStoreWith(token.TokenPair{AccessToken: "A1", RefreshToken: "R1", RefreshExpiresAt: future()})
	_, err := refresh.NewRefresher(url, store, identity, refresh.WithTimeout(time.Second)).Refresh(context.Background())

	var transportErr *moerrors.TransportError
	require.ErrorAs(t, err, &transportErr)
	require.ErrorIs(t, err, moerrors.ErrAuthExpired)
}

func TestRefreshUsesClock(t *testing.T) {
	b := newBackend(t, http.StatusOK, `{}`)
	store := tokenfakerepo.NewFakeTokenStoreWith(token.TokenPair{AccessToken: "A1", RefreshToken: "R1", RefreshExpiresAt: 1000})

	late := func() time.Time { return time.Unix(1000, 0) }
	_, err := refresh.NewRefresher(b.URL, store, identity, refresh.WithClock(late)).Refresh(context.Background())
	require.ErrorIs(t, err, moerrors.ErrRefreshTokenExpired)
}
