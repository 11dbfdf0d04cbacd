package client

import (
	"sync"

	"anonchat/pkg/chat"
)

// Store is the single source of truth for session state: the user, the
// group list, per-group message logs and typing sets, the leaderboard and
// the connection flag. All domain state lives here; the connection keeps
// nothing across a reconnect. Mutations go through the transition methods
// below, which are safe to call from the reader goroutine and the caller
// concurrently. Accessors hand out copies, never internal containers.
type Store struct {
	mu sync.RWMutex

	user           *chat.User
	groupChats     []chat.GroupChat
	currentGroupID string
	messages       map[string][]chat.Message
	typingUsers    map[string][]string
	leaderboard    []chat.User
	connected      bool
}

// NewStore creates an empty store. A non-nil user (rehydrated by the
// caller from wherever it persists identity) seeds the session.
func NewStore(user *chat.User) *Store {
	s := &Store{
		messages:    make(map[string][]chat.Message),
		typingUsers: make(map[string][]string),
	}
	if user != nil {
		u := *user
		s.user = &u
	}
	return s
}

// SetUser installs the session identity.
func (s *Store) SetUser(user chat.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = &user
}

// Logout clears the user and every per-session container in one
// transition. The group list and leaderboard are not per-user data and
// survive.
func (s *Store) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
	s.currentGroupID = ""
	s.messages = make(map[string][]chat.Message)
	s.typingUsers = make(map[string][]string)
}

// SetGroupChats replaces the group list wholesale.
func (s *Store) SetGroupChats(groups []chat.GroupChat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groupChats = append([]chat.GroupChat(nil), groups...)
}

// AddGroupChat appends a pushed group to the list.
func (s *Store) AddGroupChat(group chat.GroupChat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groupChats = append(s.groupChats, group)
}

// SetCurrentGroup marks the active group; the empty string means none.
func (s *Store) SetCurrentGroup(groupID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentGroupID = groupID
}

// AddMessage appends a message to the group's log. A duplicate messageID
// replaces the existing entry in place (last write wins, position kept)
// rather than producing two entries with the same ID. The message is
// cloned on the way in, so the caller keeps no handle into the log.
func (s *Store) AddMessage(groupID string, msg chat.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := msg.Clone()
	log := s.messages[groupID]
	for i := range log {
		if log[i].MessageID == stored.MessageID {
			log[i] = stored
			return
		}
	}
	s.messages[groupID] = append(log, stored)
}

// UpdateMessage merges a partial patch into the matching message. An
// absent target is a silent no-op.
func (s *Store) UpdateMessage(groupID, messageID string, patch chat.MessagePatch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	log := s.messages[groupID]
	for i := range log {
		if log[i].MessageID == messageID {
			patch.Apply(&log[i])
			return
		}
	}
}

// SetMessages replaces one group's log wholesale, as the initial history
// fetch does.
func (s *Store) SetMessages(groupID string, msgs []chat.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	log := make([]chat.Message, len(msgs))
	for i := range msgs {
		log[i] = msgs[i].Clone()
	}
	s.messages[groupID] = log
}

// AddReaction records userID under the emoji. Reacting twice with the
// same emoji has no additional effect.
func (s *Store) AddReaction(groupID, messageID, emoji, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := s.findMessage(groupID, messageID)
	if msg == nil {
		return
	}
	if msg.Reactions == nil {
		msg.Reactions = make(map[string][]string)
	}
	for _, id := range msg.Reactions[emoji] {
		if id == userID {
			return
		}
	}
	msg.Reactions[emoji] = append(msg.Reactions[emoji], userID)
}

// RemoveReaction withdraws userID's reaction. Removing the last reactor
// deletes the emoji key entirely instead of leaving an empty set.
func (s *Store) RemoveReaction(groupID, messageID, emoji, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := s.findMessage(groupID, messageID)
	if msg == nil || msg.Reactions == nil {
		return
	}
	users := msg.Reactions[emoji]
	for i, id := range users {
		if id == userID {
			users = append(users[:i], users[i+1:]...)
			break
		}
	}
	if len(users) == 0 {
		delete(msg.Reactions, emoji)
	} else {
		msg.Reactions[emoji] = users
	}
}

// SetTypingUsers replaces the group's typing set wholesale; it is never
// merged.
func (s *Store) SetTypingUsers(groupID string, usernames []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.typingUsers[groupID] = append([]string(nil), usernames...)
}

// SetLeaderboard replaces the leaderboard wholesale. Rank is positional.
func (s *Store) SetLeaderboard(users []chat.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leaderboard = append([]chat.User(nil), users...)
}

// SetConnectionStatus flips the connection flag.
func (s *Store) SetConnectionStatus(connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = connected
}

// User returns the current user, or nil when logged out.
func (s *Store) User() *chat.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// GroupChats returns a copy of the group list.
func (s *Store) GroupChats() []chat.GroupChat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]chat.GroupChat(nil), s.groupChats...)
}

// CurrentGroup returns the active groupID, empty when none.
func (s *Store) CurrentGroup() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentGroupID
}

// Messages returns a deep copy of the group's log in arrival order.
func (s *Store) Messages(groupID string) []chat.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	log := s.messages[groupID]
	out := make([]chat.Message, 0, len(log))
	for _, msg := range log {
		out = append(out, msg.Clone())
	}
	return out
}

// TypingUsers returns a copy of the group's typing set.
func (s *Store) TypingUsers(groupID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.typingUsers[groupID]...)
}

// Leaderboard returns a copy of the leaderboard, highest points first.
func (s *Store) Leaderboard() []chat.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]chat.User(nil), s.leaderboard...)
}

// Connected reports the connection flag.
func (s *Store) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// findMessage returns a pointer into the live log; callers hold the lock.
func (s *Store) findMessage(groupID, messageID string) *chat.Message {
	log := s.messages[groupID]
	for i := range log {
		if log[i].MessageID == messageID {
			return &log[i]
		}
	}
	return nil
}
