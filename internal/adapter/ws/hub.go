// Package ws implements the WebSocket adapter for real-time delivery
// notices. Agents connect with their id and receive a push whenever an
// envelope lands in their mailbox. The mailbox stays authoritative: a
// missed push is recovered by polling.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
)

// Message is the envelope for all WebSocket frames sent to agents.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// conn wraps a single WebSocket connection with its cancel.
type conn struct {
	agentID string
	ws      *websocket.Conn
	cancel  context.CancelFunc
}

// Hub tracks connections keyed by agent id. An agent may hold several
// connections at once; a push goes to all of them.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]map[*conn]struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[string]map[*conn]struct{})}
}

// HandleWS upgrades the request to a WebSocket and registers the
// connection under the agent_id query parameter. The handler blocks until
// the peer disconnects; net/http cancels the request context as soon as a
// handler returns, which would tear down the socket right after the
// handshake.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	agentID := r.URL.Query().Get("agent_id")
	if agentID == "" {
		http.Error(w, "agent_id query parameter is required", http.StatusBadRequest)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // CORS handled by middleware
	})
	if err != nil {
		slog.Error("websocket accept failed", "agent_id", agentID, "error", err)
		return
	}

	// The connection's lifetime is governed by the socket, not the
	// handshake request.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	c := &conn{agentID: agentID, ws: ws, cancel: cancel}

	h.mu.Lock()
	set := h.conns[agentID]
	if set == nil {
		set = make(map[*conn]struct{})
		h.conns[agentID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()

	slog.Info("agent connected", "agent_id", agentID, "remote", r.RemoteAddr)

	// Read loop (to detect disconnects and consume pings)
	defer func() {
		h.remove(c)
		_ = ws.Close(websocket.StatusNormalClosure, "")
	}()
	for {
		if _, _, err := ws.Read(ctx); err != nil {
			return
		}
	}
}

// Push sends a frame to every connection the agent holds. Returns how many
// connections received it; zero means the agent is not connected.
func (h *Hub) Push(ctx context.Context, agentID string, msg Message) int {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("websocket marshal failed", "error", err)
		return 0
	}

	h.mu.RLock()
	targets := make([]*conn, 0, len(h.conns[agentID]))
	for c := range h.conns[agentID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range targets {
		if err := c.ws.Write(ctx, websocket.MessageText, data); err != nil {
			slog.Debug("websocket write failed", "agent_id", agentID, "error", err)
			go h.remove(c)
			continue
		}
		delivered++
	}
	return delivered
}

// Connected reports whether the agent holds at least one live connection.
func (h *Hub) Connected(agentID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[agentID]) > 0
}

// ConnectionCount returns the number of active connections across agents.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.conns {
		n += len(set)
	}
	return n
}

func (h *Hub) remove(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.conns[c.agentID]
	if _, ok := set[c]; !ok {
		return
	}
	c.cancel()
	delete(set, c)
	if len(set) == 0 {
		delete(h.conns, c.agentID)
	}
	slog.Info("agent disconnected", "agent_id", c.agentID)
}
