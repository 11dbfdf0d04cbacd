package server

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anonchat/pkg/chat"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	// A named shared in-memory database: plain ":memory:" would give every
	// pooled connection its own empty database.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	store, err := OpenStore(dsn)
	require.NoError(t, err)
	return store
}

func TestOpenStoreSeedsDefaultGroups(t *testing.T) {
	store := setupTestStore(t)

	groups, err := store.Groups()
	require.NoError(t, err)
	assert.Len(t, groups, 6)

	group, err := store.Group("gossip-central")
	require.NoError(t, err)
	assert.Equal(t, "🗣️ Gossip Central", group.Name)
	assert.Equal(t, 247, group.MemberCount)
	assert.Equal(t, "Did you hear about what happened in the library yesterday?", group.LastMessage)
	assert.NotZero(t, group.LastMessageTime)

	confessions, err := store.Group("confessions")
	require.NoError(t, err)
	assert.Equal(t, "I actually enjoy the smell of permanent markers...", confessions.LastMessage)
}

func TestCreateUser(t *testing.T) {
	store := setupTestStore(t)

	tests := []struct {
		name        string
		username    string
		avatar      string
		expectError bool
	}{
		{"valid user", "NightOwl", "🦉", false},
		{"second user", "CoffeeLover", "☕", false},
		{"duplicate username", "NightOwl", "🦉", true},
		{"empty username", "", "🦉", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := store.CreateUser(tt.username, tt.avatar)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, user.UserID)
			assert.Equal(t, tt.username, user.Username)
			assert.Equal(t, 0, user.Points)
		})
	}
}

func TestGetUserNotFound(t *testing.T) {
	store := setupTestStore(t)
	_, err := store.GetUser("ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAwardPointsAndLeaderboardOrder(t *testing.T) {
	store := setupTestStore(t)

	alice, err := store.CreateUser("alice", "🎨")
	require.NoError(t, err)
	bob, err := store.CreateUser("bob", "💪")
	require.NoError(t, err)

	require.NoError(t, store.AwardPoints(alice.UserID, 10))
	require.NoError(t, store.AwardPoints(bob.UserID, 10))
	require.NoError(t, store.AwardPoints(bob.UserID, 10))

	board, err := store.Leaderboard()
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, "bob", board[0].Username)
	assert.Equal(t, 20, board[0].Points)
	assert.Equal(t, "alice", board[1].Username)
}

func TestSaveMessageAndHistoryOrder(t *testing.T) {
	store := setupTestStore(t)
	sender := chat.User{UserID: "u1", Username: "NightOwl", Avatar: "🦉"}

	first, err := store.SaveMessage("gossip-central", sender, "cipher-1", "", 1000)
	require.NoError(t, err)
	second, err := store.SaveMessage("gossip-central", sender, "cipher-2", first.MessageID, 2000)
	require.NoError(t, err)
	assert.NotEqual(t, first.MessageID, second.MessageID)

	msgs, err := store.Messages("gossip-central")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "cipher-1", msgs[0].EncryptedContent)
	assert.Equal(t, first.MessageID, msgs[1].ReplyToMessageID)
	// Plaintext never exists server-side.
	assert.Empty(t, msgs[0].Text)

	group, err := store.Group("gossip-central")
	require.NoError(t, err)
	assert.Equal(t, int64(2000), group.LastMessageTime)
}

func TestSetReactionsRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	sender := chat.User{UserID: "u1", Username: "NightOwl"}

	msg, err := store.SaveMessage("confessions", sender, "cipher", "", 1000)
	require.NoError(t, err)

	require.NoError(t, store.SetReactions(msg.MessageID, map[string][]string{
		"👍": {"u2", "u3"},
	}))

	got, err := store.Message(msg.MessageID)
	require.NoError(t, err)
	assert.Equal(t, []string{"u2", "u3"}, got.Reactions["👍"])
}

func TestCreateGroup(t *testing.T) {
	store := setupTestStore(t)

	group, err := store.CreateGroup("🎮 Gamers", "Pwn and be pwned")
	require.NoError(t, err)
	assert.NotEmpty(t, group.GroupID)
	assert.Equal(t, 1, group.MemberCount)

	_, err = store.CreateGroup("", "no name")
	assert.Error(t, err)
}
