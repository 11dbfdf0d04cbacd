package chat

import "encoding/json"

// EventType tags a wire envelope. The set is closed: anything else is
// treated as EventUnknown by receivers and dropped.
type EventType string

const (
	// Client -> server
	EventRegisterUser   EventType = "register_user_ws"
	EventJoinChat       EventType = "join_chat"
	EventSendMessage    EventType = "send_message"
	EventAddReaction    EventType = "add_reaction"
	EventRemoveReaction EventType = "remove_reaction"
	EventTyping         EventType = "typing"
	EventPing           EventType = "ping"

	// Server -> client
	EventNewMessage        EventType = "new_message"
	EventMessageUpdated    EventType = "message_updated"
	EventUserTyping        EventType = "user_typing"
	EventLeaderboardUpdate EventType = "leaderboard_update"
	EventNewGroupChat      EventType = "new_group_chat"
)

// Envelope is the bidirectional wire unit: a type tag and an opaque
// payload. Data stays raw on decode so unrecognized tags pass through
// without error.
type Envelope struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope builds an envelope with data marshaled in place. A nil data
// produces an envelope with no payload, as the ping keepalive uses.
func NewEnvelope(t EventType, data any) (Envelope, error) {
	env := Envelope{Type: t}
	if data == nil {
		return env, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	env.Data = raw
	return env, nil
}

// RegisterUserData announces the connected user's identity.
type RegisterUserData struct {
	UserID string `json:"userID"`
}

// JoinChatData subscribes the connection to a group's fanout.
type JoinChatData struct {
	GroupID string `json:"groupID"`
}

// SendMessageData carries an outbound message. The content is already
// encrypted for the group by the time it is framed.
type SendMessageData struct {
	GroupID          string `json:"groupID"`
	EncryptedContent string `json:"encryptedContent"`
	ReplyToMessageID string `json:"replyToMessageID,omitempty"`
}

// ReactionData adds or removes one emoji reaction, depending on the tag.
type ReactionData struct {
	GroupID   string `json:"groupID"`
	MessageID string `json:"messageID"`
	Emoji     string `json:"emoji"`
}

// TypingData signals that the sender started or stopped composing.
type TypingData struct {
	GroupID  string `json:"groupID"`
	IsTyping bool   `json:"isTyping"`
}

// NewMessageData is the new_message payload: the message plus the group it
// belongs to, flattened into one object on the wire.
type NewMessageData struct {
	GroupID string `json:"groupID"`
	Message
}

// MessageUpdatedData patches an already-delivered message.
type MessageUpdatedData struct {
	GroupID   string       `json:"groupID"`
	MessageID string       `json:"messageID"`
	Updates   MessagePatch `json:"updates"`
}

// TypingUpdateData replaces a group's typing set wholesale.
type TypingUpdateData struct {
	GroupID   string   `json:"groupID"`
	Usernames []string `json:"usernames"`
}
