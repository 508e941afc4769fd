// Package realtime maintains the location websocket session: it streams
// location updates and heartbeats, dispatches match and session-end frames,
// and reports session transitions as ConnectionEvents.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jrsteele09/go-moment-client/device"
	moerrors "github.com/jrsteele09/go-moment-client/internal/errors"
	"github.com/jrsteele09/go-moment-client/token"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// CloseUnauthorized is the close code the server uses for rejected credentials.
	CloseUnauthorized = 4001

	DefaultPath              = "api/v1/location/ws"
	DefaultHeartbeatInterval = 30 * time.Second

	disconnectReason      = "Client disconnecting"
	defaultConnectTimeout = 30 * time.Second
	defaultWriteTimeout   = 30 * time.Second
	defaultCloseTimeout   = 2 * time.Second
	defaultEventBuffer    = 16
)

type Client struct {
	baseURL  string
	store    token.Store
	identity device.Identity
	dialer   *websocket.Dialer
	logger   zerolog.Logger

	path              string
	heartbeatInterval time.Duration
	connectTimeout    time.Duration
	writeTimeout      time.Duration
	closeTimeout      time.Duration
	eventBuffer       int

	matches     *Broadcaster[MatchFrame]
	sessionEnds *Broadcaster[SessionEndFrame]
	connection  *Broadcaster[ConnectionEvent]

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	state  State
	sess   *session
	closed bool
}

// session is one socket with its heartbeat and read loop.
type session struct {
	conn     *websocket.Conn
	writeMu  sync.Mutex
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	// closing is set once the client has started the close handshake.
	closing atomic.Bool
	// quiet suppresses the terminal event.
	quiet atomic.Bool
}

func (s *session) stopHeartbeat() {
	s.stopOnce.Do(func() { close(s.stop) })
}

type Option func(*Client)

func WithHeartbeatInterval(d time.Duration) Option {
	return func(c *Client) {
		c.heartbeatInterval = d
	}
}

func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) {
		c.dialer = d
	}
}

func WithConnectTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.connectTimeout = d
	}
}

func WithWriteTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.writeTimeout = d
	}
}

// WithCloseTimeout bounds how long Disconnect waits for the server to finish
// the close handshake before dropping the socket.
func WithCloseTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.closeTimeout = d
	}
}

func WithPath(path string) Option {
	return func(c *Client) {
		c.path = path
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithEventBuffer sets the channel buffer of each new subscription.
func WithEventBuffer(n int) Option {
	return func(c *Client) {
		c.eventBuffer = n
	}
}

func New(baseURL string, store token.Store, identity device.Identity, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL:           baseURL,
		store:             store,
		identity:          identity,
		logger:            log.Logger,
		path:              DefaultPath,
		heartbeatInterval: DefaultHeartbeatInterval,
		connectTimeout:    defaultConnectTimeout,
		writeTimeout:      defaultWriteTimeout,
		closeTimeout:      defaultCloseTimeout,
		eventBuffer:       defaultEventBuffer,
		matches:           NewBroadcaster[MatchFrame](),
		sessionEnds:       NewBroadcaster[SessionEndFrame](),
		connection:        NewBroadcaster[ConnectionEvent](),
	}
	for _, opt := range opts {
		opt(c)
	}
	if _, err := WebSocketURL(c.baseURL, c.path); err != nil {
		return nil, err
	}
	if c.dialer == nil {
		d := *websocket.DefaultDialer
		c.dialer = &d
	}
	if c.heartbeatInterval <= 0 {
		return nil, fmt.Errorf("%w: heartbeat interval must be positive", moerrors.ErrInvalidConfig)
	}
	c.logger = c.logger.With().Str("component", "realtime").Logger()
	c.ctx, c.cancel = context.WithCancel(context.Background())
	return c, nil
}

// WebSocketURL maps baseURL's scheme to its websocket equivalent and appends path.
func WebSocketURL(baseURL, path string) (*url.URL, error) {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: api url %q", moerrors.ErrInvalidConfig, baseURL)
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", moerrors.ErrInvalidConfig, u.Scheme)
	}
	ref, err := url.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return nil, fmt.Errorf("%w: path %q", moerrors.ErrInvalidConfig, path)
	}
	return u.ResolveReference(ref), nil
}

func (c *Client) endpoint(accessToken string) *url.URL {
	u, _ := WebSocketURL(c.baseURL, c.path)
	q := u.Query()
	q.Set("token", accessToken)
	q.Set("device_hash", c.identity.Hash)
	u.RawQuery = q.Encode()
	return u
}

// redact hides the access token for logs and errors.
func redact(u *url.URL) string {
	r := *u
	q := r.Query()
	if q.Has("token") {
		q.Set("token", "REDACTED")
	}
	r.RawQuery = q.Encode()
	return r.String()
}

// Connect opens a session. It is a no-op when one is already connecting,
// open or still closing. Without a stored access token it emits Error and returns
// ErrNoAccessToken without dialing. ctx bounds the handshake only; the session
// lives until Disconnect, Cleanup or a terminal socket event.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return moerrors.ErrClientClosed
	}
	if current := c.state; current.Live() || current == StateClosing {
		c.mu.Unlock()
		c.logger.Warn().Str("state", current.String()).Msg("session already active")
		return nil
	}
	c.state = StateConnecting
	c.mu.Unlock()

	pair, err := c.store.Load(ctx)
	if err != nil || pair.AccessToken == "" {
		c.setState(StateConnecting, StateIdle)
		c.logger.Error().Err(err).Msg("no access token available")
		c.emit(Error{Message: "not authenticated"})
		return moerrors.ErrNoAccessToken
	}

	target := c.endpoint(pair.AccessToken)
	dialCtx, cancel := context.WithTimeout(ctx, c.connectTimeout)
	defer cancel()
	stopAfter := context.AfterFunc(c.ctx, cancel)
	defer stopAfter()

	conn, resp, err := c.dialer.DialContext(dialCtx, target.String(), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return c.dialFailed(target, resp, err)
	}

	c.mu.Lock()
	if c.closed || c.state != StateConnecting {
		aborted := c.closed
		c.mu.Unlock()
		_ = conn.Close()
		if aborted {
			return moerrors.ErrClientClosed
		}
		return fmt.Errorf("connect aborted: %w", moerrors.ErrNotConnected)
	}
	sess := &session{conn: conn, stop: make(chan struct{}), done: make(chan struct{})}
	c.sess = sess
	c.state = StateOpen
	c.mu.Unlock()

	c.logger.Info().Str("url", redact(target)).Msg("realtime connected")
	c.emit(Connected{})
	go c.heartbeat(sess)
	go c.readLoop(sess)
	return nil
}

func (c *Client) dialFailed(target *url.URL, resp *http.Response, err error) error {
	if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
		c.setState(StateConnecting, StateUnauthorized)
		c.logger.Warn().Int("status", resp.StatusCode).Msg("realtime handshake rejected")
		c.emit(Unauthorized{})
		return fmt.Errorf("realtime handshake: %w", &moerrors.HTTPStatusError{Code: resp.StatusCode, Status: resp.Status})
	}

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return moerrors.ErrClientClosed
	}

	c.setState(StateConnecting, StateErrored)
	c.logger.Err(err).Str("url", redact(target)).Msg("realtime dial failed")
	c.emit(Error{Message: err.Error()})
	if resp != nil {
		return fmt.Errorf("realtime handshake: %w", &moerrors.HTTPStatusError{Code: resp.StatusCode, Status: resp.Status})
	}
	return &moerrors.TransportError{Op: "DIAL", URL: redact(target), Err: err}
}

// setState moves from -> to if the client is still in from.
func (c *Client) setState(from, to State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == from {
		c.state = to
	}
}

func (c *Client) readLoop(sess *session) {
	defer close(sess.done)
	for {
		mt, data, err := sess.conn.ReadMessage()
		if err != nil {
			c.finish(sess, err)
			return
		}
		if mt != websocket.TextMessage {
			c.logger.Debug().Int("message_type", mt).Msg("dropping non-text frame")
			continue
		}
		c.dispatch(data)
	}
}

func (c *Client) dispatch(data []byte) {
	frame, err := DecodeFrame(data)
	if err != nil {
		c.logger.Warn().Err(err).Msg("dropping realtime frame")
		return
	}
	switch f := frame.(type) {
	case *MatchFrame:
		c.logger.Info().Int("user_id", f.User.ID).Msg("match received")
		c.matches.Publish(*f)
	case *SessionEndFrame:
		c.logger.Info().Str("reason", f.Reason).Msg("session ended by server")
		c.sessionEnds.Publish(*f)
	}
}

// finish ends sess after its read loop failed with err and emits the one
// terminal event for it.
func (c *Client) finish(sess *session, err error) {
	sess.stopHeartbeat()
	_ = sess.conn.Close()

	var (
		ev   ConnectionEvent
		next State
	)
	var closeErr *websocket.CloseError
	switch {
	case errors.As(err, &closeErr) && closeErr.Code == CloseUnauthorized:
		ev, next = Unauthorized{}, StateUnauthorized
	case errors.As(err, &closeErr) && closeErr.Code != websocket.CloseAbnormalClosure:
		ev, next = Disconnected{Code: closeErr.Code, Reason: closeErr.Text}, StateClosed
	case sess.closing.Load():
		// 1006 is synthesized locally for a broken connection; it only counts
		// as a disconnect when the client was already closing.
		ev, next = Disconnected{Code: websocket.CloseNormalClosure, Reason: disconnectReason}, StateClosed
	default:
		ev, next = Error{Message: err.Error()}, StateErrored
	}

	c.mu.Lock()
	if c.sess == sess {
		c.sess = nil
		c.state = next
	}
	c.mu.Unlock()

	c.logger.Info().Str("event", EventName(ev)).Msg("realtime session ended")
	if !sess.quiet.Load() {
		c.emit(ev)
	}
}

func (c *Client) heartbeat(sess *session) {
	ticker := time.NewTicker(c.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-sess.stop:
			return
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if err := c.write(sess, HeartbeatFrame()); err != nil {
				c.logger.Warn().Err(err).Msg("failed to send heartbeat")
				continue
			}
			c.logger.Debug().Msg("sent heartbeat")
		}
	}
}

func (c *Client) write(sess *session, frame OutboundFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	sess.writeMu.Lock()
	defer sess.writeMu.Unlock()
	if err := sess.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return sess.conn.WriteMessage(websocket.TextMessage, data)
}

// SendLocationUpdate sends the current position. It never fails: when no
// session is open or the write fails, the update is logged and dropped.
func (c *Client) SendLocationUpdate(lat, lon float64) {
	c.mu.Lock()
	sess, state := c.sess, c.state
	c.mu.Unlock()
	if sess == nil || state != StateOpen {
		c.logger.Warn().Str("state", state.String()).Msg("failed to send location update: not connected")
		return
	}
	if err := c.write(sess, LocationFrame(lat, lon)); err != nil {
		c.logger.Warn().Err(err).Msg("failed to send location update")
		return
	}
	c.logger.Debug().Msg("sent location update")
}

// Disconnect closes the session with a normal closure. The client is Closing
// while it waits for the server to finish the handshake and Idle when it
// returns, whether or not the handshake completed; the ended session reports
// Disconnected. Calling it without a session resets the client to Idle.
func (c *Client) Disconnect() {
	c.mu.Lock()
	sess := c.sess
	c.sess = nil
	if sess == nil {
		c.state = StateIdle
		c.mu.Unlock()
		return
	}
	c.state = StateClosing
	c.mu.Unlock()

	c.endSession(sess)
	c.setState(StateClosing, StateIdle)
}

func (c *Client) endSession(sess *session) {
	sess.closing.Store(true)
	sess.stopHeartbeat()

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, disconnectReason)
	if err := sess.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.writeTimeout)); err != nil {
		c.logger.Debug().Err(err).Msg("close frame not sent")
	}
	select {
	case <-sess.done:
	case <-time.After(c.closeTimeout):
		_ = sess.conn.Close()
		<-sess.done
	}
}

// Cleanup disconnects without emitting further events, closes every
// subscription and stops all background work. Connect fails afterwards with
// ErrClientClosed.
func (c *Client) Cleanup() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	sess := c.sess
	c.sess = nil
	c.state = StateIdle
	c.mu.Unlock()

	if sess != nil {
		sess.quiet.Store(true)
		c.endSession(sess)
	}
	c.cancel()
	c.matches.Close()
	c.sessionEnds.Close()
	c.connection.Close()
}

func (c *Client) emit(ev ConnectionEvent) {
	c.connection.Publish(ev)
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether a session is connecting or open.
func (c *Client) IsConnected() bool {
	return c.State().Live()
}

func (c *Client) SubscribeMatches() (<-chan MatchFrame, func()) {
	return c.matches.Subscribe(c.eventBuffer)
}

func (c *Client) SubscribeSessionEnds() (<-chan SessionEndFrame, func()) {
	return c.sessionEnds.Subscribe(c.eventBuffer)
}

func (c *Client) SubscribeConnection() (<-chan ConnectionEvent, func()) {
	return c.connection.Subscribe(c.eventBuffer)
}

// Dropped returns how many events slow subscribers missed.
func (c *Client) Dropped() uint64 {
	return c.matches.Dropped() + c.sessionEnds.Dropped() + c.connection.Dropped()
}

// Subscribers returns the number of live subscriptions across all event streams.
func (c *Client) Subscribers() int {
	return c.matches.Subscribers() + c.sessionEnds.Subscribers() + c.connection.Subscribers()
}
