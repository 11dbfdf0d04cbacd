package client

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"anonchat/pkg/chat"
	"anonchat/pkg/cipher"
)

const (
	defaultReconnectBaseDelay   = time.Second
	defaultMaxReconnectAttempts = 5
	defaultHeartbeatInterval    = 30 * time.Second
)

// Conn owns the single persistent WebSocket to the chat server: dialing,
// the keepalive probe, bounded exponential-backoff reconnection and
// outbound sends. It holds no domain state; everything it learns from the
// wire goes through the Router, and everything it needs to survive a
// reconnect (at most the registered userID) fits in one field. The socket
// is disposable, the Store is the durable half.
type Conn struct {
	url    string
	router *Router
	dialer *websocket.Dialer

	baseDelay      time.Duration
	maxAttempts    int
	heartbeatEvery time.Duration

	mu             sync.Mutex
	ws             *websocket.Conn
	connecting     bool
	connected      bool
	closed         bool
	attempts       int
	reconnectTimer *time.Timer
	heartbeatStop  chan struct{}
	userID         string
}

func newConn(url string, router *Router, cfg Config) *Conn {
	c := &Conn{
		url:            url,
		router:         router,
		dialer:         websocket.DefaultDialer,
		baseDelay:      cfg.ReconnectBaseDelay,
		maxAttempts:    cfg.MaxReconnectAttempts,
		heartbeatEvery: cfg.HeartbeatInterval,
	}
	if c.baseDelay <= 0 {
		c.baseDelay = defaultReconnectBaseDelay
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = defaultMaxReconnectAttempts
	}
	if c.heartbeatEvery <= 0 {
		c.heartbeatEvery = defaultHeartbeatInterval
	}
	return c
}

// Connect dials the server. The connection moves Disconnected ->
// Connecting -> Connected: a call that finds it already connecting,
// connected or intentionally closed is a no-op, so a caller-initiated
// Connect racing the reconnect timer opens exactly one socket. A failed
// dial schedules a reconnect attempt and returns the dial error; once
// connected the attempt counter resets, the registered user is
// re-announced and the keepalive starts.
func (c *Conn) Connect() error {
	c.mu.Lock()
	if c.connecting || c.connected || c.closed {
		c.mu.Unlock()
		return nil
	}
	c.connecting = true
	c.mu.Unlock()

	ws, _, err := c.dialer.Dial(c.url, nil)
	if err != nil {
		c.mu.Lock()
		c.connecting = false
		c.mu.Unlock()
		slog.Warn("websocket dial failed", "url", c.url, "error", err)
		c.scheduleReconnect()
		return fmt.Errorf("dial %s: %w", c.url, err)
	}

	c.mu.Lock()
	if c.closed {
		// Disconnect raced the dial; drop the fresh socket.
		c.connecting = false
		c.mu.Unlock()
		ws.Close()
		return nil
	}
	c.ws = ws
	c.connecting = false
	c.connected = true
	c.attempts = 0
	c.heartbeatStop = make(chan struct{})
	userID := c.userID
	stop := c.heartbeatStop
	c.mu.Unlock()

	slog.Info("websocket connected", "url", c.url)
	c.router.setConnected(true)

	if userID != "" {
		c.sendEnvelope(chat.EventRegisterUser, chat.RegisterUserData{UserID: userID})
	}

	go c.readLoop(ws)
	go c.heartbeat(stop)
	return nil
}

// Disconnect marks the close as intentional, cancels any pending
// reconnect, stops the keepalive and closes the transport. No automatic
// reconnection happens afterwards.
func (c *Conn) Disconnect() {
	c.mu.Lock()
	c.closed = true
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	if c.heartbeatStop != nil {
		close(c.heartbeatStop)
		c.heartbeatStop = nil
	}
	ws := c.ws
	c.ws = nil
	c.connected = false
	c.mu.Unlock()

	if ws != nil {
		ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		ws.Close()
	}
	c.router.setConnected(false)
}

// Connected reports whether the transport is currently open.
func (c *Conn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// RegisterUser announces the session identity. The userID is remembered
// and re-announced automatically after every reconnect.
func (c *Conn) RegisterUser(userID string) {
	c.setUser(userID)
	c.sendEnvelope(chat.EventRegisterUser, chat.RegisterUserData{UserID: userID})
}

// setUser records the identity for the connect-time announcement without
// transmitting anything now.
func (c *Conn) setUser(userID string) {
	c.mu.Lock()
	c.userID = userID
	c.mu.Unlock()
}

// JoinChat subscribes this connection to a group's fanout.
func (c *Conn) JoinChat(groupID string) {
	c.sendEnvelope(chat.EventJoinChat, chat.JoinChatData{GroupID: groupID})
}

// SendMessage encrypts text for the group and transmits it, optionally as
// a reply. An encryption failure is returned to the caller so the UI can
// surface it and keep the input intact; a dropped send while disconnected
// is not an error.
func (c *Conn) SendMessage(groupID, text, replyToMessageID string) error {
	encrypted, err := cipher.Encrypt(text, groupID)
	if err != nil {
		return err
	}
	c.sendEnvelope(chat.EventSendMessage, chat.SendMessageData{
		GroupID:          groupID,
		EncryptedContent: encrypted,
		ReplyToMessageID: replyToMessageID,
	})
	return nil
}

// AddReaction reacts to a message with an emoji.
func (c *Conn) AddReaction(groupID, messageID, emoji string) {
	c.sendEnvelope(chat.EventAddReaction, chat.ReactionData{
		GroupID: groupID, MessageID: messageID, Emoji: emoji,
	})
}

// RemoveReaction withdraws a previously added reaction.
func (c *Conn) RemoveReaction(groupID, messageID, emoji string) {
	c.sendEnvelope(chat.EventRemoveReaction, chat.ReactionData{
		GroupID: groupID, MessageID: messageID, Emoji: emoji,
	})
}

// SendTyping signals that the user started or stopped composing.
func (c *Conn) SendTyping(groupID string, isTyping bool) {
	c.sendEnvelope(chat.EventTyping, chat.TypingData{GroupID: groupID, IsTyping: isTyping})
}

// sendEnvelope frames and transmits one envelope. Sends are fire and
// forget: while disconnected they are dropped with a warning, never queued
// for replay.
func (c *Conn) sendEnvelope(t chat.EventType, data any) {
	env, err := chat.NewEnvelope(t, data)
	if err != nil {
		slog.Error("failed to frame outbound event", "type", t, "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected || c.ws == nil {
		slog.Warn("not connected, dropping outbound event", "type", t)
		return
	}
	if err := c.ws.WriteJSON(env); err != nil {
		// The read loop observes the same failure and drives reconnection.
		slog.Warn("websocket write failed", "type", t, "error", err)
	}
}

// readLoop dispatches inbound frames to the router strictly in arrival
// order. Reading the raw frame first keeps the two failure classes apart:
// a ReadMessage error is the transport dying and hands off to the close
// path, while any unmarshal error (truncated JSON included) is one bad
// frame, logged and dropped without affecting the frames behind it.
func (c *Conn) readLoop(ws *websocket.Conn) {
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			c.handleClose(ws, err)
			return
		}
		var env chat.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			slog.Warn("dropping malformed inbound frame", "error", err)
			continue
		}
		c.router.Handle(env)
	}
}

// handleClose runs once per transport failure: flags the store, stops the
// keepalive and, unless the close was intentional, schedules a reconnect.
func (c *Conn) handleClose(ws *websocket.Conn, err error) {
	c.mu.Lock()
	if c.ws != ws {
		// A newer connection already replaced this one.
		c.mu.Unlock()
		return
	}
	c.ws = nil
	c.connected = false
	if c.heartbeatStop != nil {
		close(c.heartbeatStop)
		c.heartbeatStop = nil
	}
	closed := c.closed
	c.mu.Unlock()

	ws.Close()
	c.router.setConnected(false)

	if closed {
		return
	}
	slog.Info("websocket disconnected", "error", err)
	c.scheduleReconnect()
}

// scheduleReconnect arms the backoff timer for the next attempt: delay
// doubles per attempt from the base, and after maxAttempts the connection
// gives up for good, leaving the status flag false.
func (c *Conn) scheduleReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if c.attempts >= c.maxAttempts {
		slog.Error("max reconnect attempts reached, giving up", "attempts", c.attempts)
		return
	}
	c.attempts++
	delay := c.baseDelay << (c.attempts - 1)
	slog.Info("scheduling reconnect", "attempt", c.attempts, "delay", delay)
	c.reconnectTimer = time.AfterFunc(delay, func() {
		if err := c.Connect(); err != nil {
			slog.Debug("reconnect attempt failed", "error", err)
		}
	})
}

// heartbeat sends a bare ping envelope every interval while the transport
// is open. It is a liveness probe only; a missing pong is not tracked, a
// dead connection surfaces through the read loop instead.
func (c *Conn) heartbeat(stop <-chan struct{}) {
	ticker := time.NewTicker(c.heartbeatEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sendEnvelope(chat.EventPing, nil)
		case <-stop:
			return
		}
	}
}
