package momenttest

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Peer is the server side of one realtime connection.
type Peer struct {
	Query url.Values
	// Received carries text frames sent by the client.
	Received chan []byte
	// Done is closed when the connection has ended.
	Done chan struct{}

	conn    *websocket.Conn
	writeMu sync.Mutex

	mu          sync.Mutex
	closeCode   int
	closeReason string
}

func (s *Server) socket(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	status := s.socketStatus
	s.mu.Unlock()
	if status != 0 {
		http.Error(w, http.StatusText(status), status)
		return
	}

	q := r.URL.Query()
	if !s.validAccess(q.Get("token")) {
		http.Error(w, "Not authenticated", http.StatusUnauthorized)
		return
	}
	if q.Get("device_hash") == "" {
		http.Error(w, "device_hash required", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.connections.Add(1)
	p := &Peer{
		Query:    q,
		Received: make(chan []byte, 256),
		Done:     make(chan struct{}),
		conn:     conn,
	}
	s.mu.Lock()
	hold := s.closeHold
	s.mu.Unlock()
	conn.SetCloseHandler(func(code int, text string) error {
		p.mu.Lock()
		p.closeCode, p.closeReason = code, text
		p.mu.Unlock()
		time.Sleep(hold)
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, ""), time.Now().Add(time.Second))
		return nil
	})
	s.peers <- p

	defer close(p.Done)
	defer conn.Close()
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		select {
		case p.Received <- data:
		default:
		}
	}
}

// SendJSON writes v as a text frame.
func (p *Peer) SendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.SendText(string(data))
}

func (p *Peer) SendText(text string) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return p.conn.WriteMessage(websocket.TextMessage, []byte(text))
}

func (p *Peer) SendBinary(data []byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return p.conn.WriteMessage(websocket.BinaryMessage, data)
}

// Close starts the closing handshake with code and waits briefly for the
// client to answer before dropping the connection.
func (p *Peer) Close(code int, reason string) error {
	err := p.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
	select {
	case <-p.Done:
	case <-time.After(2 * time.Second):
		_ = p.conn.Close()
	}
	return err
}

// Drop closes the TCP connection without a closing handshake.
func (p *Peer) Drop() {
	_ = p.conn.UnderlyingConn().Close()
}

// CloseCode returns the close code the client sent, or 0.
func (p *Peer) CloseCode() (int, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeCode, p.closeReason
}

// Next waits for the next client text frame.
func (p *Peer) Next(timeout time.Duration) ([]byte, bool) {
	select {
	case data := <-p.Received:
		return data, true
	case <-time.After(timeout):
		return nil, false
	}
}
