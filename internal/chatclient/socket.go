package chatclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/pliu/chatapp/internal/models"
)

// Socket is a websocket connection to the chat server that dispatches events by name.
// It does not reconnect.
type Socket struct {
	conn     *websocket.Conn
	mu       sync.RWMutex
	handlers map[string]func(json.RawMessage)
}

// Dial connects to the server's /ws endpoint. serverURL is the http(s) base URL.
func Dial(ctx context.Context, serverURL, token string) (*Socket, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"

	header := http.Header{}
	header.Set("token", token)
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", u.Redacted(), err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", u.Redacted(), err)
	}
	return &Socket{conn: conn, handlers: make(map[string]func(json.RawMessage))}, nil
}

// On sets the handler for event, replacing any previous one.
func (s *Socket) On(event string, fn func(json.RawMessage)) {
	s.mu.Lock()
	s.handlers[event] = fn
	s.mu.Unlock()
}

// Off removes the handler for event.
func (s *Socket) Off(event string) {
	s.mu.Lock()
	delete(s.handlers, event)
	s.mu.Unlock()
}

// Run reads frames and calls handlers on this goroutine until the connection
// closes or ctx is done.
func (s *Socket) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { s.conn.Close() })
	defer stop()

	for {
		var frame models.Frame
		if err := s.conn.ReadJSON(&frame); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}

		s.mu.RLock()
		fn := s.handlers[frame.Event]
		s.mu.RUnlock()
		if fn != nil {
			fn(frame.Data)
		}
	}
}

func (s *Socket) Close() error {
	return s.conn.Close()
}
