package server

import (
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"anonchat/pkg/chat"
)

const leaderboardSize = 10

var ErrNotFound = errors.New("not found")

// Store is the server's persistence layer over sqlite.
type Store struct {
	db *gorm.DB
}

// OpenStore opens (or creates) the database at path, runs migrations and
// seeds the sample groups on first run. Use ":memory:" for tests.
func OpenStore(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	if err := db.AutoMigrate(&UserRecord{}, &GroupRecord{}, &MessageRecord{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	s := &Store{db: db}
	if err := s.seed(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) CreateUser(username, avatar string) (*chat.User, error) {
	if username == "" {
		return nil, errors.New("username cannot be empty")
	}
	record := UserRecord{Username: username, Avatar: avatar}
	if err := s.db.Create(&record).Error; err != nil {
		return nil, err
	}
	user := record.ToWire()
	return &user, nil
}

func (s *Store) GetUser(userID string) (*chat.User, error) {
	var record UserRecord
	if err := s.db.First(&record, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	user := record.ToWire()
	return &user, nil
}

// Leaderboard returns the top users by points, highest first. Rank is
// positional; no rank column exists.
func (s *Store) Leaderboard() ([]chat.User, error) {
	var records []UserRecord
	err := s.db.Order("points DESC").Limit(leaderboardSize).Find(&records).Error
	if err != nil {
		return nil, err
	}
	users := make([]chat.User, 0, len(records))
	for _, r := range records {
		users = append(users, r.ToWire())
	}
	return users, nil
}

// AwardPoints adds points to a user's running total.
func (s *Store) AwardPoints(userID string, points int) error {
	return s.db.Model(&UserRecord{}).Where("id = ?", userID).
		Update("points", gorm.Expr("points + ?", points)).Error
}

func (s *Store) CreateGroup(name, description string) (*chat.GroupChat, error) {
	if name == "" {
		return nil, errors.New("group name cannot be empty")
	}
	record := GroupRecord{Name: name, Description: description, MemberCount: 1}
	if err := s.db.Create(&record).Error; err != nil {
		return nil, err
	}
	group := record.ToWire()
	return &group, nil
}

func (s *Store) Groups() ([]chat.GroupChat, error) {
	var records []GroupRecord
	if err := s.db.Order("created_at").Find(&records).Error; err != nil {
		return nil, err
	}
	groups := make([]chat.GroupChat, 0, len(records))
	for _, r := range records {
		groups = append(groups, r.ToWire())
	}
	return groups, nil
}

func (s *Store) Group(groupID string) (*chat.GroupChat, error) {
	var record GroupRecord
	if err := s.db.First(&record, "id = ?", groupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	group := record.ToWire()
	return &group, nil
}

// Messages returns a group's log in arrival order, wire form.
func (s *Store) Messages(groupID string) ([]chat.Message, error) {
	var records []MessageRecord
	err := s.db.Where("group_id = ?", groupID).Order("created_at").Find(&records).Error
	if err != nil {
		return nil, err
	}
	msgs := make([]chat.Message, 0, len(records))
	for _, r := range records {
		msgs = append(msgs, r.ToWire())
	}
	return msgs, nil
}

// SaveMessage persists an inbound ciphertext message and bumps the group's
// last-activity marker.
func (s *Store) SaveMessage(groupID string, sender chat.User, encryptedContent, replyTo string, timestamp int64) (*chat.Message, error) {
	record := MessageRecord{
		GroupID:          groupID,
		UserID:           sender.UserID,
		Username:         sender.Username,
		Avatar:           sender.Avatar,
		EncryptedContent: encryptedContent,
		ReplyToMessageID: replyTo,
		Timestamp:        timestamp,
	}
	if err := s.db.Create(&record).Error; err != nil {
		return nil, err
	}

	err := s.db.Model(&GroupRecord{}).Where("id = ?", groupID).
		Update("last_message_time", timestamp).Error
	if err != nil {
		return nil, err
	}

	msg := record.ToWire()
	return &msg, nil
}

// SetReactions overwrites a message's reaction map.
func (s *Store) SetReactions(messageID string, reactions map[string][]string) error {
	raw, err := json.Marshal(reactions)
	if err != nil {
		return err
	}
	return s.db.Model(&MessageRecord{}).Where("id = ?", messageID).
		Update("reactions", string(raw)).Error
}

// Message returns one message by ID.
func (s *Store) Message(messageID string) (*chat.Message, error) {
	var record MessageRecord
	if err := s.db.First(&record, "id = ?", messageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	msg := record.ToWire()
	return &msg, nil
}
