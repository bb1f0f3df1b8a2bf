// README: Per-booking WebSocket channels replacing hosted realtime feeds.
package realtime

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"lifton/internal/types"
)

// Hub fans logical events out to WebSocket subscribers. Clients subscribe
// to a booking channel and receive every event keyed by that booking, the
// way the web app used to consume a hosted change feed.
type Hub struct {
	mu       sync.RWMutex
	channels map[types.ID]map[*wsConn]bool
	logger   *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{channels: make(map[types.ID]map[*wsConn]bool), logger: logger}
}

// wsConn wraps a websocket connection with a write mutex to serialize writes.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// Subscribe attaches a connection to a booking channel and returns an
// unsubscribe func. The hub owns no read loop; callers close the
// connection and unsubscribe when their handler exits.
func (h *Hub) Subscribe(bookingID types.ID, conn *websocket.Conn) func() {
	wc := &wsConn{conn: conn}
	h.mu.Lock()
	if h.channels[bookingID] == nil {
		h.channels[bookingID] = make(map[*wsConn]bool)
	}
	h.channels[bookingID][wc] = true
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if subs, ok := h.channels[bookingID]; ok {
			delete(subs, wc)
			if len(subs) == 0 {
				delete(h.channels, bookingID)
			}
		}
	}
}

// Publish implements the events.Publisher shape so the hub can sit in a
// fanout next to Kafka. Slow or dead subscribers only lose their own
// delivery.
func (h *Hub) Publish(_ context.Context, event string, key types.ID, payload any) error {
	h.mu.RLock()
	subs := make([]*wsConn, 0, len(h.channels[key]))
	for wc := range h.channels[key] {
		subs = append(subs, wc)
	}
	h.mu.RUnlock()

	msg := map[string]any{"event": event, "data": payload}
	for _, wc := range subs {
		wc.mu.Lock()
		err := wc.conn.WriteJSON(msg)
		wc.mu.Unlock()
		if err != nil {
			h.logger.Debug("ws write failed, dropping subscriber", "booking_id", key, "event", event, "error", err)
		}
	}
	return nil
}
