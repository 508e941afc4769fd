// Package httpclient is the authenticated HTTP client for the Moment API.
// Every request carries the device hash and a request id; non-auth endpoints
// also carry the stored bearer token. A 401 triggers at most one in-flight
// refresh, shared by every request that observed it.
package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-moment-client/device"
	moerrors "github.com/jrsteele09/go-moment-client/internal/errors"
	"github.com/jrsteele09/go-moment-client/token"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const (
	DeviceHashHeader = "x-device-hash"
	RequestIDHeader  = "X-Request-ID"

	refreshFlightKey = "refresh"
	defaultTimeout   = 30 * time.Second
)

// Refresher exchanges the stored refresh token for a new pair and persists it.
type Refresher interface {
	Refresh(ctx context.Context) (token.TokenPair, error)
}

type Client struct {
	baseURL   *url.URL
	store     token.Store
	identity  device.Identity
	refresher Refresher
	http      *http.Client
	timeout   time.Duration
	now       func() time.Time
	logger    zerolog.Logger
	flight    singleflight.Group
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(cl *Client) {
		cl.logger = l
	}
}

// WithTimeout bounds each exchange and the shared refresh.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		cl.timeout = d
	}
}

func WithClock(now func() time.Time) Option {
	return func(cl *Client) {
		cl.now = now
	}
}

func New(baseURL string, store token.Store, identity device.Identity, refresher Refresher, opts ...Option) (*Client, error) {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: api url %q", moerrors.ErrInvalidConfig, baseURL)
	}

	c := &Client{
		baseURL:   u,
		store:     store,
		identity:  identity,
		refresher: refresher,
		timeout:   defaultTimeout,
		now:       time.Now,
		logger:    log.Logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: c.timeout}
	}
	c.logger = c.logger.With().Str("component", "httpclient").Logger()
	return c, nil
}

// BaseURL returns the API root, always ending in "/".
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// IsAuthEndpoint reports whether path belongs to the auth API. Auth
// endpoints never carry a bearer token.
func IsAuthEndpoint(path string) bool {
	return strings.Contains(path, "/auth/")
}

// IsRefreshEndpoint reports whether path is the refresh endpoint. A 401 from
// it never triggers another refresh.
func IsRefreshEndpoint(path string) bool {
	return strings.Contains(path, "refresh-token")
}

// NewRequest builds a request for path relative to the API root.
func (c *Client) NewRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	ref, err := url.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse path %q: %w", path, err)
	}
	return http.NewRequestWithContext(ctx, method, c.baseURL.ResolveReference(ref).String(), body)
}

// Do sends req with device, request id and bearer headers. On a 401 from any
// endpoint but refresh it refreshes once and retries once with the new token.
// When the refresh fails the stored credentials are cleared and the original
// 401 response is returned untouched.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if err := bufferBody(req); err != nil {
		return nil, err
	}

	sent := c.decorate(req, "")
	res, err := c.send(req)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusUnauthorized || IsRefreshEndpoint(req.URL.Path) {
		return res, nil
	}

	fresh, err := c.refresh(req.Context(), sent)
	if err != nil {
		c.logger.Warn().Err(err).Str("path", req.URL.Path).Msg("refresh failed, credentials cleared")
		return res, nil
	}

	retry, err := rewind(req)
	if err != nil {
		return res, nil
	}
	drain(res)

	c.decorate(retry, fresh)
	return c.send(retry)
}

// decorate sets the standard headers. The bearer is accessToken when given,
// otherwise the stored one. It returns the token it attached, if any.
func (c *Client) decorate(req *http.Request, accessToken string) string {
	req.Header.Set(DeviceHashHeader, c.identity.Hash)
	if req.Header.Get(RequestIDHeader) == "" {
		req.Header.Set(RequestIDHeader, uuid.NewString())
	}
	if IsAuthEndpoint(req.URL.Path) {
		req.Header.Del("Authorization")
		return ""
	}

	if accessToken == "" {
		stored, err := token.StoreTokenSource(req.Context(), c.store).Token()
		if err != nil {
			req.Header.Del("Authorization")
			return ""
		}
		stored.SetAuthHeader(req)
		return stored.AccessToken
	}
	token.TokenPair{AccessToken: accessToken}.OAuth2().SetAuthHeader(req)
	return accessToken
}

func (c *Client) send(req *http.Request) (*http.Response, error) {
	start := c.now()
	res, err := c.http.Do(req)
	if err != nil {
		return nil, &moerrors.TransportError{Op: req.Method, URL: req.URL.Redacted(), Err: err}
	}
	c.logger.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", res.StatusCode).
		Dur("duration", c.now().Sub(start)).
		Str("request_id", req.Header.Get(RequestIDHeader)).
		Msg("http exchange")
	return res, nil
}

// refresh runs the shared refresh flight and returns the access token to retry
// with. stale is the token the failing request carried; when the store already
// holds a different one, a concurrent flight rotated it and no refresh is made.
func (c *Client) refresh(ctx context.Context, stale string) (string, error) {
	v, err, _ := c.flight.Do(refreshFlightKey, func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		current, err := c.store.Load(ctx)
		if err == nil && stale != "" && current.AccessToken != "" && current.AccessToken != stale {
			return current.AccessToken, nil
		}

		pair, err := c.refresher.Refresh(ctx)
		if err != nil {
			if clearErr := c.store.Clear(ctx); clearErr != nil {
				c.logger.Err(clearErr).Msg("failed to clear credentials")
			}
			return "", err
		}
		return pair.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// bufferBody makes the body replayable for the single retry.
func bufferBody(req *http.Request) error {
	if req.Body == nil || req.Body == http.NoBody || req.GetBody != nil {
		return nil
	}
	data, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return fmt.Errorf("buffer request body: %w", err)
	}
	req.Body = io.NopCloser(bytes.NewReader(data))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	return nil
}

func rewind(req *http.Request) (*http.Request, error) {
	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry.Body = body
	}
	return retry, nil
}

func drain(res *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 4096))
	_ = res.Body.Close()
}
