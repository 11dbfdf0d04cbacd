package chat

// User is an anonymous participant. Identity is an opaque userID issued by
// the server at setup time; there are no credentials attached to it.
type User struct {
	UserID   string `json:"userID"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
	Points   int    `json:"points"`
}

// GroupChat is a named room. The groupID doubles as the scope of the
// message obfuscation key.
type GroupChat struct {
	GroupID         string `json:"groupID"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	MemberCount     int    `json:"memberCount"`
	LastMessage     string `json:"lastMessage,omitempty"`
	LastMessageTime int64  `json:"lastMessageTime,omitempty"`
}

// Message is a single chat message. Text holds the decrypted plaintext and
// never travels over the wire; EncryptedContent is the wire form. Reactions
// maps an emoji to the set of userIDs that reacted with it.
type Message struct {
	MessageID        string              `json:"messageID"`
	UserID           string              `json:"userID"`
	Username         string              `json:"username"`
	Avatar           string              `json:"avatar"`
	Text             string              `json:"text,omitempty"`
	EncryptedContent string              `json:"encryptedContent,omitempty"`
	Timestamp        int64               `json:"timestamp"`
	ReplyToMessageID string              `json:"replyToMessageID,omitempty"`
	Reactions        map[string][]string `json:"reactions"`
}

// Clone returns a deep copy, including the reactions map.
func (m Message) Clone() Message {
	out := m
	if m.Reactions != nil {
		out.Reactions = make(map[string][]string, len(m.Reactions))
		for emoji, users := range m.Reactions {
			out.Reactions[emoji] = append([]string(nil), users...)
		}
	}
	return out
}

// MessagePatch is a partial update for a stored message. Nil fields are
// left untouched when the patch is applied.
type MessagePatch struct {
	Username         *string             `json:"username,omitempty"`
	Avatar           *string             `json:"avatar,omitempty"`
	Text             *string             `json:"text,omitempty"`
	EncryptedContent *string             `json:"encryptedContent,omitempty"`
	Timestamp        *int64              `json:"timestamp,omitempty"`
	ReplyToMessageID *string             `json:"replyToMessageID,omitempty"`
	Reactions        map[string][]string `json:"reactions,omitempty"`
}

// Apply merges the patch into msg, field by field.
func (p MessagePatch) Apply(msg *Message) {
	if p.Username != nil {
		msg.Username = *p.Username
	}
	if p.Avatar != nil {
		msg.Avatar = *p.Avatar
	}
	if p.Text != nil {
		msg.Text = *p.Text
	}
	if p.EncryptedContent != nil {
		msg.EncryptedContent = *p.EncryptedContent
	}
	if p.Timestamp != nil {
		msg.Timestamp = *p.Timestamp
	}
	if p.ReplyToMessageID != nil {
		msg.ReplyToMessageID = *p.ReplyToMessageID
	}
	if p.Reactions != nil {
		msg.Reactions = make(map[string][]string, len(p.Reactions))
		for emoji, users := range p.Reactions {
			msg.Reactions[emoji] = append([]string(nil), users...)
		}
	}
}
