// Package momenttest runs an in-process Moment backend for tests: OTP login,
// rotating refresh tokens, the user, KYC, notification and location APIs, and
// the realtime websocket.
package momenttest

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jrsteele09/go-moment-client/token"
)

// OTP is the only code verify-otp accepts.
const OTP = "123456"

const (
	accessTTL  = 15 * time.Minute
	refreshTTL = 24 * time.Hour
)

// Request is a recorded inbound request.
type Request struct {
	Method string
	Path   string
	Header http.Header
}

type Server struct {
	*httptest.Server

	secret   []byte
	upgrader websocket.Upgrader
	peers    chan *Peer

	refreshCalls atomic.Int32
	logouts      atomic.Int32
	connections  atomic.Int32

	mu               sync.Mutex
	access           string
	refresh          string
	refreshExpiresAt int64
	refreshDelay     time.Duration
	refreshStatus    int
	socketStatus     int
	closeHold        time.Duration
	failures         map[string]int
	requests         []Request
	state            *backendState
}

// New starts a server and closes it when the test ends.
func New(tb testing.TB) *Server {
	tb.Helper()
	s := &Server{
		secret:   []byte(uuid.NewString()),
		peers:    make(chan *Peer, 16),
		failures: make(map[string]int),
		state:    newBackendState(),
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	s.Server = httptest.NewServer(s.routes())
	tb.Cleanup(s.Close)
	return s
}

// IssuePair mints a new pair and makes it the only one the server accepts.
func (s *Server) IssuePair() token.TokenPair {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueLocked()
}

func (s *Server) issueLocked() token.TokenPair {
	now := time.Now()
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "1",
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(accessTTL)),
	}).SignedString(s.secret)
	if err != nil {
		panic(err)
	}
	s.access = access
	s.refresh = uuid.NewString()
	s.refreshExpiresAt = now.Add(refreshTTL).Unix()
	return token.TokenPair{AccessToken: s.access, RefreshToken: s.refresh, RefreshExpiresAt: s.refreshExpiresAt}
}

// ExpireAccess makes the server reject the current access token while the
// refresh token stays valid.
func (s *Server) ExpireAccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = ""
}

// Current returns the pair the server currently accepts.
func (s *Server) Current() token.TokenPair {
	s.mu.Lock()
	defer s.mu.Unlock()
	return token.TokenPair{AccessToken: s.access, RefreshToken: s.refresh, RefreshExpiresAt: s.refreshExpiresAt}
}

// SetRefreshStatus forces the refresh endpoint to reply with status. Zero
// restores normal behaviour.
func (s *Server) SetRefreshStatus(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshStatus = status
}

// SetRefreshDelay delays refresh replies, widening the window for concurrent 401s.
func (s *Server) SetRefreshDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshDelay = d
}

// SetSocketStatus rejects websocket handshakes with status. Zero restores
// normal behaviour.
func (s *Server) SetSocketStatus(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.socketStatus = status
}

// FailPath makes every request to path reply with status.
func (s *Server) FailPath(path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = status
}

// SetCloseHold delays the server's reply to a client close frame on sockets
// opened from now on.
func (s *Server) SetCloseHold(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeHold = d
}

// SetEligibility sets the requirements eligibility reports as missing.
func (s *Server) SetEligibility(missing ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.missing = missing
}

func (s *Server) RefreshCalls() int { return int(s.refreshCalls.Load()) }

func (s *Server) Logouts() int { return int(s.logouts.Load()) }

// Connections returns how many websocket upgrades succeeded.
func (s *Server) Connections() int { return int(s.connections.Load()) }

// Requests returns every request received so far, in arrival order.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// NextPeer waits for the next accepted websocket connection.
func (s *Server) NextPeer(tb testing.TB) *Peer {
	tb.Helper()
	select {
	case p := <-s.peers:
		return p
	case <-time.After(5 * time.Second):
		tb.Fatal("no websocket connection")
		return nil
	}
}

func (s *Server) validAccess(raw string) bool {
	if raw == "" {
		return false
	}
	parsed, err := jwt.Parse(raw, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return raw == s.access
}
