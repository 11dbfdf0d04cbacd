package client

import (
	"encoding/json"
	"log/slog"

	"anonchat/pkg/chat"
	"anonchat/pkg/cipher"
)

// Router is the only path by which inbound network data reaches the Store.
// Each recognized envelope maps to exactly one store mutation; unknown
// tags are logged and ignored so newer servers don't break older clients.
// Keeping the mapping free of transport concerns means store behavior is
// testable by feeding synthetic envelopes.
type Router struct {
	store *Store
}

func NewRouter(store *Store) *Router {
	return &Router{store: store}
}

// Handle applies one inbound envelope. Envelopes must be handed over in
// arrival order: message_updated and reaction patches assume the message
// they target was applied first.
func (r *Router) Handle(env chat.Envelope) {
	switch env.Type {
	case chat.EventNewMessage:
		var data chat.NewMessageData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			slog.Warn("dropping malformed new_message payload", "error", err)
			return
		}
		msg := data.Message
		msg.Text = cipher.Decrypt(msg.EncryptedContent, data.GroupID)
		r.store.AddMessage(data.GroupID, msg)

	case chat.EventMessageUpdated:
		var data chat.MessageUpdatedData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			slog.Warn("dropping malformed message_updated payload", "error", err)
			return
		}
		r.store.UpdateMessage(data.GroupID, data.MessageID, data.Updates)

	case chat.EventUserTyping:
		var data chat.TypingUpdateData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			slog.Warn("dropping malformed user_typing payload", "error", err)
			return
		}
		r.store.SetTypingUsers(data.GroupID, data.Usernames)

	case chat.EventLeaderboardUpdate:
		var users []chat.User
		if err := json.Unmarshal(env.Data, &users); err != nil {
			slog.Warn("dropping malformed leaderboard payload", "error", err)
			return
		}
		r.store.SetLeaderboard(users)

	case chat.EventNewGroupChat:
		var group chat.GroupChat
		if err := json.Unmarshal(env.Data, &group); err != nil {
			slog.Warn("dropping malformed new_group_chat payload", "error", err)
			return
		}
		r.store.AddGroupChat(group)

	default:
		slog.Debug("ignoring unrecognized event", "type", env.Type)
	}
}

// setConnected routes the transport's status changes into the store, so
// the connection never touches domain state directly.
func (r *Router) setConnected(connected bool) {
	r.store.SetConnectionStatus(connected)
}
