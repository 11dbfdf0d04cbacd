package server

import (
	"encoding/json"
	"log/slog"
	"time"

	"anonchat/pkg/chat"
)

// pointsPerMessage is awarded to a sender for every delivered message and
// feeds the leaderboard.
const pointsPerMessage = 10

// Handler applies one inbound client envelope: persistence through the
// Store, fanout through the Hub. Malformed or out-of-order frames are
// logged and dropped; nothing a single client sends can take the dispatch
// down.
type Handler struct {
	store *Store
	hub   *Hub
}

func NewHandler(store *Store, hub *Hub) *Handler {
	return &Handler{store: store, hub: hub}
}

func (h *Handler) Handle(c *wsClient, env chat.Envelope) {
	switch env.Type {
	case chat.EventRegisterUser:
		h.handleRegister(c, env.Data)
	case chat.EventJoinChat:
		h.handleJoin(c, env.Data)
	case chat.EventSendMessage:
		h.handleSendMessage(c, env.Data)
	case chat.EventAddReaction:
		h.handleReaction(c, env.Data, true)
	case chat.EventRemoveReaction:
		h.handleReaction(c, env.Data, false)
	case chat.EventTyping:
		h.handleTyping(c, env.Data)
	case chat.EventPing:
		// Liveness probe only; no pong is defined.
	default:
		slog.Debug("ignoring unrecognized client event", "type", env.Type)
	}
}

func (h *Handler) handleRegister(c *wsClient, raw json.RawMessage) {
	var data chat.RegisterUserData
	if err := json.Unmarshal(raw, &data); err != nil {
		slog.Warn("malformed register_user_ws", "error", err)
		return
	}
	user, err := h.store.GetUser(data.UserID)
	if err != nil {
		slog.Warn("register for unknown user", "userID", data.UserID, "error", err)
		return
	}
	c.user = user
	slog.Info("client registered", "userID", user.UserID, "username", user.Username)
}

func (h *Handler) handleJoin(c *wsClient, raw json.RawMessage) {
	var data chat.JoinChatData
	if err := json.Unmarshal(raw, &data); err != nil {
		slog.Warn("malformed join_chat", "error", err)
		return
	}
	h.hub.Join(c, data.GroupID)
}

func (h *Handler) handleSendMessage(c *wsClient, raw json.RawMessage) {
	if c.user == nil {
		slog.Warn("send_message from unregistered connection")
		return
	}
	var data chat.SendMessageData
	if err := json.Unmarshal(raw, &data); err != nil {
		slog.Warn("malformed send_message", "error", err)
		return
	}

	msg, err := h.store.SaveMessage(data.GroupID, *c.user, data.EncryptedContent,
		data.ReplyToMessageID, time.Now().UnixMilli())
	if err != nil {
		slog.Error("failed to persist message", "groupID", data.GroupID, "error", err)
		return
	}

	env, err := chat.NewEnvelope(chat.EventNewMessage, chat.NewMessageData{
		GroupID: data.GroupID,
		Message: *msg,
	})
	if err != nil {
		slog.Error("failed to frame new_message", "error", err)
		return
	}
	h.hub.BroadcastToGroup(data.GroupID, env)

	if err := h.store.AwardPoints(c.user.UserID, pointsPerMessage); err != nil {
		slog.Warn("failed to award points", "userID", c.user.UserID, "error", err)
		return
	}
	h.broadcastLeaderboard()
}

func (h *Handler) handleReaction(c *wsClient, raw json.RawMessage, add bool) {
	if c.user == nil {
		slog.Warn("reaction from unregistered connection")
		return
	}
	var data chat.ReactionData
	if err := json.Unmarshal(raw, &data); err != nil {
		slog.Warn("malformed reaction", "error", err)
		return
	}

	msg, err := h.store.Message(data.MessageID)
	if err != nil {
		slog.Warn("reaction on unknown message", "messageID", data.MessageID, "error", err)
		return
	}

	reactions := msg.Reactions
	if reactions == nil {
		reactions = make(map[string][]string)
	}
	if add {
		reactions[data.Emoji] = addReactor(reactions[data.Emoji], c.user.UserID)
	} else {
		remaining := removeReactor(reactions[data.Emoji], c.user.UserID)
		if len(remaining) == 0 {
			delete(reactions, data.Emoji)
		} else {
			reactions[data.Emoji] = remaining
		}
	}

	if err := h.store.SetReactions(data.MessageID, reactions); err != nil {
		slog.Error("failed to persist reactions", "messageID", data.MessageID, "error", err)
		return
	}

	env, err := chat.NewEnvelope(chat.EventMessageUpdated, chat.MessageUpdatedData{
		GroupID:   data.GroupID,
		MessageID: data.MessageID,
		Updates:   chat.MessagePatch{Reactions: reactions},
	})
	if err != nil {
		slog.Error("failed to frame message_updated", "error", err)
		return
	}
	h.hub.BroadcastToGroup(data.GroupID, env)
}

func (h *Handler) handleTyping(c *wsClient, raw json.RawMessage) {
	if c.user == nil {
		return
	}
	var data chat.TypingData
	if err := json.Unmarshal(raw, &data); err != nil {
		slog.Warn("malformed typing", "error", err)
		return
	}

	usernames := h.hub.SetTyping(data.GroupID, c.user.Username, data.IsTyping)
	h.broadcastTyping(data.GroupID, usernames)
}

func (h *Handler) broadcastTyping(groupID string, usernames []string) {
	env, err := chat.NewEnvelope(chat.EventUserTyping, chat.TypingUpdateData{
		GroupID:   groupID,
		Usernames: usernames,
	})
	if err != nil {
		slog.Error("failed to frame user_typing", "error", err)
		return
	}
	h.hub.BroadcastToGroup(groupID, env)
}

func (h *Handler) broadcastLeaderboard() {
	board, err := h.store.Leaderboard()
	if err != nil {
		slog.Error("failed to load leaderboard", "error", err)
		return
	}
	env, err := chat.NewEnvelope(chat.EventLeaderboardUpdate, board)
	if err != nil {
		slog.Error("failed to frame leaderboard_update", "error", err)
		return
	}
	h.hub.BroadcastAll(env)
}

func addReactor(users []string, userID string) []string {
	for _, id := range users {
		if id == userID {
			return users
		}
	}
	return append(users, userID)
}

func removeReactor(users []string, userID string) []string {
	for i, id := range users {
		if id == userID {
			return append(users[:i], users[i+1:]...)
		}
	}
	return users
}
