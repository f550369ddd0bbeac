// Package events pushes session change notifications to connected UIs
// over a websocket, so every optimistic state transition is visible on
// the same tick it happens.
package events

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/nlzhang/study-buddy/backend/internal/service/session"
)

// writeWait bounds each broadcast write so one stalled client cannot
// block the hub, and with it every mutation that notifies it.
const writeWait = 5 * time.Second

// Hub fans session change events out to every connected client.
type Hub struct {
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		conns: make(map[*websocket.Conn]bool),
	}
}

// RegisterRoutes registers the websocket endpoint.
func (h *Hub) RegisterRoutes(r chi.Router) {
	r.Get("/events", h.handleWebSocket)
}

// SessionListener adapts the hub to the session store's listener hook.
func (h *Hub) SessionListener() session.Listener {
	return func(e session.Event) {
		payload := map[string]interface{}{
			"type":      e.Type,
			"userId":    e.UserID,
			"sessionId": e.SessionID,
		}
		if e.Session != nil {
			payload["session"] = e.Session
		}
		h.Broadcast(payload)
	}
}

// Broadcast sends one JSON payload to every connected client, dropping
// clients whose writes fail.
func (h *Hub) Broadcast(payload interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(payload); err != nil {
			log.Printf("[events] dropping client: %v", err)
			conn.Close()
			delete(h.conns, conn)
		}
	}
}

func (h *Hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[events] upgrade failed: %v", err)
		return
	}

	h.mu.Lock()
	h.conns[conn] = true
	h.mu.Unlock()
	log.Printf("[events] client connected, total=%d", h.clientCount())

	// The connection is push-only; the read loop just detects closure.
	go func() {
		defer func() {
			h.mu.Lock()
			delete(h.conns, conn)
			h.mu.Unlock()
			conn.Close()
			log.Printf("[events] client disconnected, total=%d", h.clientCount())
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) clientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}
