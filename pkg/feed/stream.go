package feed

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Stream is a persistent, reconnectable message connection.
type Stream interface {
	Connect(ctx context.Context) error
	Send(v any) error
	ReadMessage() ([]byte, error)
	Close() error
}

// WSStream is a Stream over a websocket.
type WSStream struct {
	url     string
	headers http.Header
	dialer  *websocket.Dialer

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewWSStream(url string, headers map[string]string) *WSStream {
	h := make(http.Header)
	for k, v := range headers {
		h.Set(k, v)
	}
	return &WSStream{
		url:     url,
		headers: h,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 15 * time.Second,
		},
	}
}

func (ws *WSStream) Connect(ctx context.Context) error {
	conn, resp, err := ws.dialer.DialContext(ctx, ws.url, ws.headers)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial %s: %s: %w", ws.url, resp.Status, err)
		}
		return fmt.Errorf("dial %s: %w", ws.url, err)
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.conn != nil {
		_ = ws.conn.Close()
	}
	ws.conn = conn
	return nil
}

func (ws *WSStream) current() *websocket.Conn {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.conn
}

func (ws *WSStream) Send(v any) error {
	conn := ws.current()
	if conn == nil {
		return ErrNotConnected
	}
	return conn.WriteJSON(v)
}

func (ws *WSStream) ReadMessage() ([]byte, error) {
	conn := ws.current()
	if conn == nil {
		return nil, ErrNotConnected
	}
	_, data, err := conn.ReadMessage()
	return data, err
}

// Close may be called concurrently with ReadMessage to unblock it.
func (ws *WSStream) Close() error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.conn == nil {
		return nil
	}
	err := ws.conn.Close()
	ws.conn = nil
	return err
}
