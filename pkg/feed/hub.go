// Package feed pushes executed fills to websocket subscribers. It is an
// additive surface: neither exchange dialect depends on it.
package feed

import (
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/m-kus/testex/internal/models"
)

const sendBuffer = 64

// Hub fans executed trades out to connected subscribers. Slow subscribers
// are dropped rather than back-pressuring the executor.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *log.Logger

	mu          sync.Mutex
	subscribers map[*subscriber]struct{}
}

type subscriber struct {
	conn *websocket.Conn
	send chan models.Trade
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger:      log.WithPrefix("feed"),
		subscribers: make(map[*subscriber]struct{}),
	}
}

// Publish sends a trade to every subscriber. Implements the executor's
// TradePublisher.
func (h *Hub) Publish(trade models.Trade) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subscribers {
		select {
		case sub.send <- trade:
		default:
			h.logger.Warn("dropping slow subscriber")
			delete(h.subscribers, sub)
			close(sub.send)
		}
	}
}

// ServeHTTP upgrades the request and streams fills until the peer goes
// away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("upgrade failed", "err", err)
		return
	}

	sub := &subscriber{conn: conn, send: make(chan models.Trade, sendBuffer)}
	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	h.mu.Unlock()

	go h.writeLoop(sub)
	go h.readLoop(sub)
}

func (h *Hub) writeLoop(sub *subscriber) {
	for trade := range sub.send {
		if err := sub.conn.WriteJSON(trade); err != nil {
			h.remove(sub)
			return
		}
	}
	sub.conn.Close()
}

// readLoop drains the connection so pings and close frames are processed.
func (h *Hub) readLoop(sub *subscriber) {
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			h.remove(sub)
			return
		}
	}
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[sub]; ok {
		delete(h.subscribers, sub)
		close(sub.send)
	}
	sub.conn.Close()
}
