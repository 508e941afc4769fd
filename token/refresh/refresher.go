// Package refresh exchanges a stored refresh token for a new token pair.
package refresh

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-moment-client/device"
	moerrors "github.com/jrsteele09/go-moment-client/internal/errors"
	"github.com/jrsteele09/go-moment-client/token"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// Path is the refresh endpoint relative to the API base URL.
	Path = "api/v1/auth/refresh-token/"

	DeviceHashHeader = "x-device-hash"
	RequestIDHeader  = "X-Request-ID"

	maxErrorBody   = 512
	defaultTimeout = 30 * time.Second
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Refresher performs the refresh-token exchange. It uses its own http.Client
// and never attaches a bearer token, so it is safe to call from inside the
// authenticated client's 401 handling.
type Refresher struct {
	endpoint string
	store    token.Store
	identity device.Identity
	client   *http.Client
	timeout  time.Duration
	now      func() time.Time
	logger   zerolog.Logger
}

type Option func(*Refresher)

// WithHTTPClient replaces the transport client. It must not be the
// authenticated client.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Refresher) {
		r.client = c
	}
}

func WithTimeout(d time.Duration) Option {
	return func(r *Refresher) {
		r.timeout = d
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(r *Refresher) {
		r.logger = l
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Refresher) {
		r.now = now
	}
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func NewRefresher(baseURL string, store token.Store, identity device.Identity, opts ...Option) *Refresher {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	r := &Refresher{
		endpoint: baseURL + Path,
		store:    store,
		identity: identity,
		client:   &http.Client{Timeout: defaultTimeout},
		now:      NowTimeFunc,
		logger:   log.Logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.timeout > 0 {
		c := *r.client
		c.Timeout = r.timeout
		r.client = &c
	}
	r.logger = r.logger.With().Str("component", "refresher").Logger()
	return r
}

// Refresh loads the stored refresh token, exchanges it and saves the new pair
// before returning it. Every failure satisfies errors.Is(err, ErrAuthExpired).
// A missing or expired refresh token fails without a network call.
func (r *Refresher) Refresh(ctx context.Context) (token.TokenPair, error) {
	pair, err := r.store.Load(ctx)
	switch {
	case moerrors.Is(err, moerrors.ErrNoCredentials):
		return token.TokenPair{}, moerrors.ErrNoRefreshToken
	case err != nil:
		return token.TokenPair{}, fmt.Errorf("%w: load credentials: %w", moerrors.ErrAuthExpired, err)
	case pair.RefreshToken == "":
		return token.TokenPair{}, moerrors.ErrNoRefreshToken
	case !pair.RefreshUsable(r.now()):
		return token.TokenPair{}, moerrors.ErrRefreshTokenExpired
	}

	resp, err := r.exchange(ctx, pair.RefreshToken)
	if err != nil {
		r.logger.Warn().Err(err).Msg("token refresh failed")
		return token.TokenPair{}, fmt.Errorf("%w: %w", moerrors.ErrAuthExpired, err)
	}

	next := resp.Pair()
	if err := r.store.Save(ctx, next); err != nil {
		return token.TokenPair{}, fmt.Errorf("%w: save credentials: %w", moerrors.ErrAuthExpired, err)
	}
	r.logger.Debug().Time("refresh_expires_at", next.RefreshExpiry()).Msg("token refreshed")
	return next, nil
}

func (r *Refresher) exchange(ctx context.Context, refreshToken string) (*token.TokenResponse, error) {
	body, err := json.Marshal(refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(DeviceHashHeader, r.identity.Hash)
	req.Header.Set(RequestIDHeader, uuid.NewString())

	res, err := r.client.Do(req)
	if err != nil {
		return nil, &moerrors.TransportError{Op: req.Method, URL: r.endpoint, Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return nil, &moerrors.HTTPStatusError{Code: res.StatusCode, Status: res.Status, Body: string(snippet)}
	}

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &moerrors.TransportError{Op: req.Method, URL: r.endpoint, Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &moerrors.DecodeError{Err: moerrors.ErrEmptyBody}
	}

	var tr token.TokenResponse
	if err := json.Unmarshal(data, &tr); err != nil {
		return nil, &moerrors.DecodeError{Err: err}
	}
	if err := tr.Validate(); err != nil {
		return nil, &moerrors.DecodeError{Err: err}
	}
	return &tr, nil
}
