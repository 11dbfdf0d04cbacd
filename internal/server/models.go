package server

import (
	"encoding/json"
	"time"

	nanoid "github.com/matoous/go-nanoid/v2"
	"gorm.io/gorm"

	"anonchat/pkg/chat"
)

// UserRecord is the persisted form of an anonymous identity. No
// credentials: the nanoid is the whole identity.
type UserRecord struct {
	ID        string `gorm:"primaryKey"`
	Username  string `gorm:"uniqueIndex;not null"`
	Avatar    string
	Points    int `gorm:"default:0"`
	CreatedAt time.Time
}

func (u *UserRecord) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID, err = nanoid.New(8)
	}
	return
}

func (u *UserRecord) ToWire() chat.User {
	return chat.User{
		UserID:   u.ID,
		Username: u.Username,
		Avatar:   u.Avatar,
		Points:   u.Points,
	}
}

type GroupRecord struct {
	ID              string `gorm:"primaryKey"`
	Name            string `gorm:"uniqueIndex;not null"`
	Description     string
	MemberCount     int
	LastMessage     string
	LastMessageTime int64
	CreatedAt       time.Time
}

func (g *GroupRecord) BeforeCreate(tx *gorm.DB) (err error) {
	if g.ID == "" {
		g.ID, err = nanoid.New(6)
	}
	return
}

func (g *GroupRecord) ToWire() chat.GroupChat {
	return chat.GroupChat{
		GroupID:         g.ID,
		Name:            g.Name,
		Description:     g.Description,
		MemberCount:     g.MemberCount,
		LastMessage:     g.LastMessage,
		LastMessageTime: g.LastMessageTime,
	}
}

// MessageRecord stores the ciphertext opaquely; the server never holds a
// group key and cannot read message bodies. Reactions are serialized JSON
// (emoji -> userIDs).
type MessageRecord struct {
	ID               string `gorm:"primaryKey"`
	GroupID          string `gorm:"index;not null"`
	UserID           string `gorm:"not null"`
	Username         string
	Avatar           string
	EncryptedContent string
	ReplyToMessageID string
	Reactions        string
	Timestamp        int64
	CreatedAt        time.Time
}

func (m *MessageRecord) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == "" {
		m.ID, err = nanoid.New(8)
	}
	return
}

func (m *MessageRecord) ToWire() chat.Message {
	reactions := map[string][]string{}
	if m.Reactions != "" {
		// A corrupt blob degrades to no reactions rather than a failed read.
		_ = json.Unmarshal([]byte(m.Reactions), &reactions)
	}
	return chat.Message{
		MessageID:        m.ID,
		UserID:           m.UserID,
		Username:         m.Username,
		Avatar:           m.Avatar,
		EncryptedContent: m.EncryptedContent,
		ReplyToMessageID: m.ReplyToMessageID,
		Reactions:        reactions,
		Timestamp:        m.Timestamp,
	}
}
