package relay

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/DUBIX17/dubix-stt3/internal/relay"
	"github.com/gorilla/websocket"
)

const dialTimeout = 10 * time.Second

// Forwarder owns one upstream connection, dialed on first use and reset on
// failure so the next Forward redials.
type Forwarder struct {
	url   string
	cache *relay.Cache

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewForwarder(url string, cache *relay.Cache) *Forwarder {
	if url == "" {
		slog.Info("relay disabled, RELAY_UPSTREAM_URL not set")
	}
	return &Forwarder{url: url, cache: cache}
}

func (f *Forwarder) Enabled() bool {
	return f.url != ""
}

func (f *Forwarder) Forward(chunk []byte) error {
	if !f.Enabled() {
		return fmt.Errorf("relay upstream not configured")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	conn, err := f.connLocked()
	if err != nil {
		return fmt.Errorf("dial relay upstream: %w", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
		f.resetLocked()
		return fmt.Errorf("forward chunk: %w", err)
	}
	slog.Debug("chunk forwarded to relay upstream", "bytes", len(chunk))
	return nil
}

func (f *Forwarder) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn == nil {
		return nil
	}
	err := f.conn.Close()
	f.conn = nil
	return err
}

func (f *Forwarder) connLocked() (*websocket.Conn, error) {
	if f.conn != nil {
		return f.conn, nil
	}

	dialer := &websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, _, err := dialer.Dial(f.url, nil)
	if err != nil {
		return nil, err
	}
	slog.Info("relay upstream connected", "url", f.url)
	f.conn = conn
	go f.readResponses(conn)
	return conn, nil
}

func (f *Forwarder) readResponses(conn *websocket.Conn) {
	for {
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			slog.Warn("relay upstream read failed", "error", err)
			f.mu.Lock()
			_ = conn.Close()
			if f.conn == conn {
				f.conn = nil
			}
			f.mu.Unlock()
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		f.cache.Set(string(payload))
		slog.Debug("relay response cached", "bytes", len(payload))
	}
}

func (f *Forwarder) resetLocked() {
	if f.conn == nil {
		return
	}
	_ = f.conn.Close()
	f.conn = nil
}
