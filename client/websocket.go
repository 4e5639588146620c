// This file contains WebSocket support for live board events, an
// alternative to polling for frontends that can hold a connection open.
package client

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Board event types pushed by the server.
const (
	EventTaskCreated     = "task_created"
	EventTaskUpdated     = "task_updated"
	EventTaskDeleted     = "task_deleted"
	EventMessageAdded    = "message_added"
	EventAgentRegistered = "agent_registered"
	EventAgentHeartbeat  = "agent_heartbeat"
	EventAgentOffline    = "agent_offline"
)

// BoardEvent is one push from the board stream. Which fields are set
// depends on Type: task events carry Task or TaskID, agent events carry
// Agent or AgentID/Name, message events carry Message and Mentioned.
type BoardEvent struct {
	Type      string   `json:"type"`
	Task      *Task    `json:"task,omitempty"`
	TaskID    string   `json:"task_id,omitempty"`
	Agent     *Agent   `json:"agent,omitempty"`
	AgentID   string   `json:"agent_id,omitempty"`
	Name      string   `json:"name,omitempty"`
	Message   *Message `json:"message,omitempty"`
	Mentioned []string `json:"mentioned,omitempty"`
}

// EventHandler is called for each event received on the board stream.
type EventHandler func(event BoardEvent)

// BoardWatcher manages a WebSocket connection to the board event stream.
type BoardWatcher struct {
	baseURL   string
	apiKey    string
	conn      *websocket.Conn
	handlers  []EventHandler
	mu        sync.RWMutex
	done      chan struct{}
	reconnect bool
}

// WatchOption configures a BoardWatcher.
type WatchOption func(*BoardWatcher)

// WithWatchAPIKey sets the bearer key used when dialing.
func WithWatchAPIKey(key string) WatchOption {
	return func(w *BoardWatcher) { w.apiKey = key }
}

// WithAutoReconnect enables automatic reconnection on disconnect.
func WithAutoReconnect(enabled bool) WatchOption {
	return func(w *BoardWatcher) { w.reconnect = enabled }
}

// NewBoardWatcher creates a watcher for the given server base URL.
func NewBoardWatcher(baseURL string, opts ...WatchOption) *BoardWatcher {
	w := &BoardWatcher{
		baseURL:   baseURL,
		done:      make(chan struct{}),
		reconnect: true,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// OnEvent registers an event handler.
func (w *BoardWatcher) OnEvent(handler EventHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, handler)
}

// Connect dials the board stream and starts dispatching events.
func (w *BoardWatcher) Connect(ctx context.Context) error {
	if err := w.dial(ctx); err != nil {
		return err
	}
	go w.readLoop(ctx)
	return nil
}

func (w *BoardWatcher) dial(ctx context.Context) error {
	wsURL, err := w.buildWSURL()
	if err != nil {
		return fmt.Errorf("build websocket url: %w", err)
	}

	opts := &websocket.DialOptions{}
	if w.apiKey != "" {
		opts.HTTPHeader = map[string][]string{
			"Authorization": {"Bearer " + w.apiKey},
		}
	}

	conn, _, err := websocket.Dial(ctx, wsURL, opts)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	w.mu.Lock()
	w.conn = conn
	w.mu.Unlock()
	return nil
}

func (w *BoardWatcher) current() *websocket.Conn {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.conn
}

// Close shuts the connection down and stops any reconnect attempts.
func (w *BoardWatcher) Close() error {
	close(w.done)
	w.mu.Lock()
	conn := w.conn
	w.conn = nil
	w.mu.Unlock()
	if conn != nil {
		return conn.Close(websocket.StatusNormalClosure, "client closing")
	}
	return nil
}

func (w *BoardWatcher) buildWSURL() (string, error) {
	u, err := url.Parse(w.baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/ws/board"
	return u.String(), nil
}

func (w *BoardWatcher) readLoop(ctx context.Context) {
	for {
		select {
		case <-w.done:
			return
		case <-ctx.Done():
			return
		default:
		}

		conn := w.current()
		if conn == nil {
			return
		}
		var event BoardEvent
		if err := wsjson.Read(ctx, conn, &event); err != nil {
			if w.reconnect {
				select {
				case <-w.done:
					return
				default:
					w.handleReconnect(ctx)
					continue
				}
			}
			return
		}

		w.dispatch(event)
	}
}

func (w *BoardWatcher) dispatch(event BoardEvent) {
	w.mu.RLock()
	handlers := make([]EventHandler, len(w.handlers))
	copy(handlers, w.handlers)
	w.mu.RUnlock()

	for _, h := range handlers {
		h(event)
	}
}

func (w *BoardWatcher) handleReconnect(ctx context.Context) {
	backoff := time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-w.done:
			return
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		if err := w.dial(ctx); err == nil {
			return
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
