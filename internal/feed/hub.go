// Package feed broadcasts engagement events to operators over WebSocket.
package feed

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
)

// Event types published on the feed.
const (
	EventTurn           = "turn"
	EventReportSent     = "report_sent"
	EventReportFailed   = "report_failed"
	EventSessionEvicted = "session_evicted"
)

const (
	subscriberBuffer = 64
	writeTimeout     = 5 * time.Second
)

// Event is a single feed message.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	SessionID string         `json:"sessionId"`
	Time      time.Time      `json:"time"`
	Data      map[string]any `json:"data,omitempty"`
}

type subscriber struct {
	id        int64
	sessionID string // empty means all sessions
	events    chan Event
}

// Hub fans events out to connected subscribers. Publish never blocks: a
// subscriber whose buffer is full is dropped.
type Hub struct {
	mu          sync.RWMutex
	subs        map[int64]*subscriber
	nextID      int64
	closed      bool
	originAllow []string
	logger      *slog.Logger
}

// NewHub creates a hub accepting WebSocket origins matching originPatterns.
func NewHub(originPatterns []string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if len(originPatterns) == 0 {
		originPatterns = []string{"*"}
	}
	return &Hub{
		subs:        make(map[int64]*subscriber),
		originAllow: originPatterns,
		logger:      logger,
	}
}

// Publish stamps and broadcasts an event.
func (h *Hub) Publish(eventType, sessionID string, data map[string]any) {
	ev := Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		SessionID: sessionID,
		Time:      time.Now().UTC(),
		Data:      data,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for id, sub := range h.subs {
		if sub.sessionID != "" && sub.sessionID != sessionID {
			continue
		}
		select {
		case sub.events <- ev:
		default:
			h.logger.Warn("Feed subscriber too slow, dropping", "subscriber_id", id)
			close(sub.events)
			delete(h.subs, id)
		}
	}
}

// Subscribe registers a subscriber filtered to sessionID ("" for all).
// The returned channel is closed when the subscriber is dropped or the hub closes.
func (h *Hub) Subscribe(sessionID string) (int64, <-chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &subscriber{
		id:        h.nextID,
		sessionID: sessionID,
		events:    make(chan Event, subscriberBuffer),
	}
	if h.closed {
		close(sub.events)
		return sub.id, sub.events
	}
	h.subs[sub.id] = sub
	h.logger.Info("Feed subscriber registered", "subscriber_id", sub.id, "session_id", sessionID)
	return sub.id, sub.events
}

// Unsubscribe removes a subscriber. It is safe to call more than once.
func (h *Hub) Unsubscribe(id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sub, ok := h.subs[id]; ok {
		close(sub.events)
		delete(h.subs, id)
		h.logger.Info("Feed subscriber unregistered", "subscriber_id", id)
	}
}

// Len returns the number of connected subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close disconnects every subscriber and stops accepting new events.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		close(sub.events)
		delete(h.subs, id)
	}
}

// ServeHTTP upgrades the request and streams events until either side closes.
// An optional session_id query parameter restricts the stream to one session.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originAllow,
	})
	if err != nil {
		h.logger.Error("Failed to accept feed WebSocket", "error", err, "ip", r.RemoteAddr)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "feed closed"); closeErr != nil {
			h.logger.Debug("Failed to close feed websocket", "error", closeErr)
		}
	}()

	id, events := h.Subscribe(r.URL.Query().Get("session_id"))
	defer h.Unsubscribe(id)

	// The feed is write-only; CloseRead handles control frames and cancels
	// ctx once the client goes away.
	ctx := ws.CloseRead(r.Context())

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := h.write(ctx, ws, ev); err != nil {
				h.logger.Debug("Feed write failed", "error", err, "subscriber_id", id)
				return
			}
		}
	}
}

func (h *Hub) write(ctx context.Context, ws *websocket.Conn, ev Event) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, ws, ev)
}
