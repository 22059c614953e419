package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
)

// keepaliveTimeout drops clients that neither read nor received anything
const keepaliveTimeout = time.Minute

type conndata struct {
	lastKeepalive time.Time
}

// Hub tracks connected websocket clients and broadcasts fire notifications
type Hub struct {
	upgrader websocket.Upgrader
	logger   zerolog.Logger
	now      func() time.Time

	mu    sync.RWMutex
	conns map[*websocket.Conn]conndata
}

// NewHub creates a Hub accepting local origins only
func NewHub(logger zerolog.Logger) *Hub {
	h := &Hub{
		logger: logger.With().Str("component", "websockets").Logger(),
		now:    time.Now,
		conns:  make(map[*websocket.Conn]conndata),
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: localOrigin}
	return h
}

// localOrigin admits same-machine pages and non-browser clients
func localOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

// Len returns the number of connected clients
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) add(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn] = conndata{lastKeepalive: h.now()}
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, conn)
}

func (h *Hub) touch(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[conn]; ok {
		h.conns[conn] = conndata{lastKeepalive: h.now()}
	}
}

// Broadcast sends v as JSON to every live client. Clients that fail or went
// quiet are dropped.
func (h *Hub) Broadcast(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal broadcast: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	for conn, info := range h.conns {
		if now.Sub(info.lastKeepalive) > keepaliveTimeout {
			h.drop(conn)
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Debug().Err(err).Msg("error writing to websocket")
			h.drop(conn)
			continue
		}
		h.conns[conn] = conndata{lastKeepalive: now}
	}
	return nil
}

// drop must be called with mu held
func (h *Hub) drop(conn *websocket.Conn) {
	conn.Close()
	delete(h.conns, conn)
}

// ServeWS upgrades the request and keeps the client registered until it
// disconnects. Any message from the client counts as a keepalive.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade error")
		return
	}
	defer conn.Close()

	h.add(conn)
	defer h.remove(conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		h.touch(conn)
	}
}
