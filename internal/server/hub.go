package server

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"anonchat/pkg/chat"
)

const sendBufferSize = 256

// Hub tracks live connections, per-group membership and per-group typing
// sets, and fans envelopes out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*wsClient]bool
	groups  map[string]map[*wsClient]bool
	typing  map[string]map[string]bool
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*wsClient]bool),
		groups:  make(map[string]map[*wsClient]bool),
		typing:  make(map[string]map[string]bool),
	}
}

func (h *Hub) Register(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
}

// Unregister drops the client from every group and typing set. Groups
// whose typing set changed are returned so the caller can broadcast the
// shrunken sets.
func (h *Hub) Unregister(c *wsClient) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.clients[c] {
		return nil
	}
	delete(h.clients, c)
	close(c.send)

	for groupID, members := range h.groups {
		delete(members, c)
		if len(members) == 0 {
			delete(h.groups, groupID)
		}
	}

	var changed []string
	if c.user != nil {
		for groupID, names := range h.typing {
			if names[c.user.Username] {
				delete(names, c.user.Username)
				changed = append(changed, groupID)
			}
		}
	}
	return changed
}

// Join subscribes the client to a group's fanout.
func (h *Hub) Join(c *wsClient, groupID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.groups[groupID] == nil {
		h.groups[groupID] = make(map[*wsClient]bool)
	}
	h.groups[groupID][c] = true
}

// SetTyping flips one username in a group's typing set and returns the
// resulting set.
func (h *Hub) SetTyping(groupID, username string, isTyping bool) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.typing[groupID] == nil {
		h.typing[groupID] = make(map[string]bool)
	}
	if isTyping {
		h.typing[groupID][username] = true
	} else {
		delete(h.typing[groupID], username)
	}

	names := make([]string, 0, len(h.typing[groupID]))
	for name := range h.typing[groupID] {
		names = append(names, name)
	}
	return names
}

// TypingUsers snapshots a group's typing set.
func (h *Hub) TypingUsers(groupID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.typing[groupID]))
	for name := range h.typing[groupID] {
		names = append(names, name)
	}
	return names
}

// BroadcastToGroup sends the envelope to every member of the group.
func (h *Hub) BroadcastToGroup(groupID string, env chat.Envelope) {
	raw, err := json.Marshal(env)
	if err != nil {
		slog.Error("failed to marshal broadcast", "type", env.Type, "error", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.groups[groupID] {
		c.enqueue(raw)
	}
}

// BroadcastAll sends the envelope to every connected client, member or not.
func (h *Hub) BroadcastAll(env chat.Envelope) {
	raw, err := json.Marshal(env)
	if err != nil {
		slog.Error("failed to marshal broadcast", "type", env.Type, "error", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.enqueue(raw)
	}
}

// ClientCount reports connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GroupMemberCount reports live subscribers of a group.
func (h *Hub) GroupMemberCount(groupID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[groupID])
}

// wsClient is one live connection. user stays nil until the client sends
// register_user_ws.
type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	user *chat.User
}

func newWSClient(conn *websocket.Conn) *wsClient {
	return &wsClient{
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
}

// enqueue hands a frame to the write pump without blocking the fanout; a
// client too slow to drain its buffer loses frames rather than stalling
// everyone else.
func (c *wsClient) enqueue(raw []byte) {
	select {
	case c.send <- raw:
	default:
		slog.Warn("dropping frame for slow client")
	}
}

// writePump drains the send buffer onto the socket.
func (c *wsClient) writePump() {
	defer c.conn.Close()
	for raw := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
			slog.Debug("websocket write failed", "error", err)
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
