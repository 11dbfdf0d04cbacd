// Package client is the real-time synchronization core of anonchat: one
// persistent WebSocket connection, a reconciling local state store, and
// the per-group cipher applied to message bodies on the way in and out.
// View code reads the Store and issues intents through the Client; it
// never touches the transport or the wire format.
package client

import (
	"time"

	"anonchat/pkg/chat"
	"anonchat/pkg/cipher"
)

// Config fully determines a Client's initial state and behavior. Zero
// values for the tuning knobs fall back to the production defaults.
type Config struct {
	// ServerURL is the REST collaborator base, e.g. "http://localhost:3000".
	ServerURL string
	// WSURL is the websocket endpoint, e.g. "ws://localhost:3000/ws".
	WSURL string
	// User is the rehydrated identity from a previous session, if any.
	// Where it was persisted is the caller's concern.
	User *chat.User

	ReconnectBaseDelay   time.Duration
	MaxReconnectAttempts int
	HeartbeatInterval    time.Duration
}

// Client wires the synchronization core together and owns its lifecycle:
// New -> Connect -> ... -> Disconnect. Each Client is fully independent;
// nothing is shared between instances.
type Client struct {
	Store *Store
	API   *API
	conn  *Conn
}

// New builds a disconnected client from cfg.
func New(cfg Config) *Client {
	store := NewStore(cfg.User)
	router := NewRouter(store)
	return &Client{
		Store: store,
		API:   NewAPI(cfg.ServerURL, store),
		conn:  newConn(cfg.WSURL, router, cfg),
	}
}

// Connect opens the transport. If an identity is already set it is
// announced as part of the handshake.
func (c *Client) Connect() error {
	if user := c.Store.User(); user != nil {
		c.conn.setUser(user.UserID)
	}
	return c.conn.Connect()
}

// Disconnect closes the transport for good; the Store keeps its state.
func (c *Client) Disconnect() {
	c.conn.Disconnect()
}

// SetUser installs the identity in the store and announces it on the
// socket so the server can route personal events.
func (c *Client) SetUser(user chat.User) {
	c.Store.SetUser(user)
	c.conn.RegisterUser(user.UserID)
}

// Logout clears the per-session state. The connection stays open; a new
// identity can be set without redialing.
func (c *Client) Logout() {
	c.Store.Logout()
}

// JoinGroup subscribes to a group's fanout and marks it active.
func (c *Client) JoinGroup(groupID string) {
	c.Store.SetCurrentGroup(groupID)
	c.conn.JoinChat(groupID)
}

// LeaveGroup clears the active group marker.
func (c *Client) LeaveGroup() {
	c.Store.SetCurrentGroup("")
}

// SendMessage encrypts and transmits text to a group. The returned error
// is only ever an encryption failure; the caller should surface it and
// keep the composed text for retry.
func (c *Client) SendMessage(groupID, text, replyToMessageID string) error {
	return c.conn.SendMessage(groupID, text, replyToMessageID)
}

// AddReaction sends an emoji reaction on behalf of the current user.
func (c *Client) AddReaction(groupID, messageID, emoji string) {
	c.conn.AddReaction(groupID, messageID, emoji)
}

// RemoveReaction withdraws an emoji reaction.
func (c *Client) RemoveReaction(groupID, messageID, emoji string) {
	c.conn.RemoveReaction(groupID, messageID, emoji)
}

// SetTyping signals composing state for the active group.
func (c *Client) SetTyping(groupID string, isTyping bool) {
	c.conn.SendTyping(groupID, isTyping)
}

// Connected reports whether the transport is currently open.
func (c *Client) Connected() bool {
	return c.conn.Connected()
}

// LoadInitialState pulls the group list and leaderboard from the REST
// collaborator into the store. Failures are returned, not retried.
func (c *Client) LoadInitialState() error {
	groups, err := c.API.GetGroups()
	if err != nil {
		return err
	}
	c.Store.SetGroupChats(groups)

	leaderboard, err := c.API.GetLeaderboard()
	if err != nil {
		return err
	}
	c.Store.SetLeaderboard(leaderboard)
	return nil
}

// LoadHistory fetches a group's message history, decrypts it and replaces
// that group's log wholesale.
func (c *Client) LoadHistory(groupID string) error {
	msgs, err := c.API.GetMessages(groupID)
	if err != nil {
		return err
	}
	for i := range msgs {
		if msgs[i].EncryptedContent != "" {
			msgs[i].Text = cipher.Decrypt(msgs[i].EncryptedContent, groupID)
		}
	}
	c.Store.SetMessages(groupID, msgs)
	return nil
}
