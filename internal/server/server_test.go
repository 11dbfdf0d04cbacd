package server

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anonchat/pkg/chat"
	"anonchat/pkg/cipher"
	"anonchat/pkg/client"
)

// startTestServer runs the full REST + websocket surface on an ephemeral
// port against an in-memory database.
func startTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := setupTestStore(t)
	engine := gin.New()
	NewRouter(store, NewHub()).RegisterRoutes(engine)

	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)
	return srv
}

func connectTestClient(t *testing.T, srv *httptest.Server, username, avatar string) *client.Client {
	t.Helper()
	c := client.New(client.Config{
		ServerURL:            srv.URL,
		WSURL:                "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
		ReconnectBaseDelay:   5 * time.Millisecond,
		MaxReconnectAttempts: 3,
	})

	user, err := c.API.CreateUser(client.CreateUserRequest{Username: username, Avatar: avatar})
	require.NoError(t, err)

	require.NoError(t, c.Connect())
	t.Cleanup(c.Disconnect)
	c.SetUser(*user)
	return c
}

func TestMessageFanOutBetweenClients(t *testing.T) {
	srv := startTestServer(t)

	alice := connectTestClient(t, srv, "alice", "🎨")
	bob := connectTestClient(t, srv, "bob", "💪")

	alice.JoinGroup("gossip-central")
	bob.JoinGroup("gossip-central")

	require.NoError(t, alice.SendMessage("gossip-central", "did you hear?", ""))

	// Both members receive the fanout and decrypt independently.
	for _, c := range []*client.Client{alice, bob} {
		require.Eventually(t, func() bool {
			msgs := c.Store.Messages("gossip-central")
			return len(msgs) == 1 && msgs[0].Text == "did you hear?"
		}, 2*time.Second, 10*time.Millisecond)
	}

	msg := bob.Store.Messages("gossip-central")[0]
	assert.Equal(t, "alice", msg.Username)
	assert.NotEmpty(t, msg.MessageID)
}

func TestNonMemberDoesNotReceiveGroupTraffic(t *testing.T) {
	srv := startTestServer(t)

	alice := connectTestClient(t, srv, "alice", "🎨")
	bob := connectTestClient(t, srv, "bob", "💪")

	alice.JoinGroup("gossip-central")
	// bob never joins.

	require.NoError(t, alice.SendMessage("gossip-central", "members only", ""))

	require.Eventually(t, func() bool {
		return len(alice.Store.Messages("gossip-central")) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, bob.Store.Messages("gossip-central"))
}

func TestReactionRoundTrip(t *testing.T) {
	srv := startTestServer(t)

	alice := connectTestClient(t, srv, "alice", "🎨")
	bob := connectTestClient(t, srv, "bob", "💪")
	alice.JoinGroup("confessions")
	bob.JoinGroup("confessions")

	require.NoError(t, alice.SendMessage("confessions", "I snore", ""))
	require.Eventually(t, func() bool {
		return len(bob.Store.Messages("confessions")) == 1
	}, 2*time.Second, 10*time.Millisecond)

	messageID := bob.Store.Messages("confessions")[0].MessageID
	bob.AddReaction("confessions", messageID, "👀")

	bobID := bob.Store.User().UserID
	for _, c := range []*client.Client{alice, bob} {
		require.Eventually(t, func() bool {
			msgs := c.Store.Messages("confessions")
			return len(msgs) == 1 && len(msgs[0].Reactions["👀"]) == 1 &&
				msgs[0].Reactions["👀"][0] == bobID
		}, 2*time.Second, 10*time.Millisecond)
	}

	// Removing the only reactor deletes the emoji key everywhere.
	bob.RemoveReaction("confessions", messageID, "👀")
	for _, c := range []*client.Client{alice, bob} {
		require.Eventually(t, func() bool {
			msgs := c.Store.Messages("confessions")
			_, exists := msgs[0].Reactions["👀"]
			return !exists
		}, 2*time.Second, 10*time.Millisecond)
	}
}

func TestTypingFanOut(t *testing.T) {
	srv := startTestServer(t)

	alice := connectTestClient(t, srv, "alice", "🎨")
	bob := connectTestClient(t, srv, "bob", "💪")
	alice.JoinGroup("jokes-memes")
	bob.JoinGroup("jokes-memes")

	alice.SetTyping("jokes-memes", true)
	require.Eventually(t, func() bool {
		typing := bob.Store.TypingUsers("jokes-memes")
		return len(typing) == 1 && typing[0] == "alice"
	}, 2*time.Second, 10*time.Millisecond)

	alice.SetTyping("jokes-memes", false)
	require.Eventually(t, func() bool {
		return len(bob.Store.TypingUsers("jokes-memes")) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestLeaderboardUpdateAfterMessage(t *testing.T) {
	srv := startTestServer(t)

	alice := connectTestClient(t, srv, "alice", "🎨")
	bob := connectTestClient(t, srv, "bob", "💪")
	alice.JoinGroup("cgpa-flex")

	require.NoError(t, alice.SendMessage("cgpa-flex", "4.0 again 😎", ""))

	// Leaderboard updates go to every connection, not just group members.
	for _, c := range []*client.Client{alice, bob} {
		require.Eventually(t, func() bool {
			board := c.Store.Leaderboard()
			return len(board) > 0 && board[0].Username == "alice" &&
				board[0].Points == pointsPerMessage
		}, 2*time.Second, 10*time.Millisecond)
	}
}

func TestNewGroupBroadcast(t *testing.T) {
	srv := startTestServer(t)

	alice := connectTestClient(t, srv, "alice", "🎨")
	require.NoError(t, alice.LoadInitialState())
	before := len(alice.Store.GroupChats())

	_, err := alice.API.CreateGroup(client.CreateGroupRequest{
		Name:        "🎮 Gamers",
		Description: "Pwn and be pwned",
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(alice.Store.GroupChats()) == before+1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBadInboundFrameKeepsConnectionAlive(t *testing.T) {
	srv := startTestServer(t)

	reader := connectTestClient(t, srv, "reader", "📚")
	reader.JoinGroup("gossip-central")

	// Raw connection so we can put a frame cut off mid-object on the wire.
	ws, _, err := websocket.DefaultDialer.Dial(
		"ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })

	rawUser, err := reader.API.CreateUser(client.CreateUserRequest{Username: "raw", Avatar: "🤖"})
	require.NoError(t, err)

	env, err := chat.NewEnvelope(chat.EventRegisterUser, chat.RegisterUserData{UserID: rawUser.UserID})
	require.NoError(t, err)
	require.NoError(t, ws.WriteJSON(env))
	env, err = chat.NewEnvelope(chat.EventJoinChat, chat.JoinChatData{GroupID: "gossip-central"})
	require.NoError(t, err)
	require.NoError(t, ws.WriteJSON(env))

	require.NoError(t, ws.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"send_message","data":`)))

	encrypted, err := cipher.Encrypt("still standing", "gossip-central")
	require.NoError(t, err)
	env, err = chat.NewEnvelope(chat.EventSendMessage, chat.SendMessageData{
		GroupID:          "gossip-central",
		EncryptedContent: encrypted,
	})
	require.NoError(t, err)
	require.NoError(t, ws.WriteJSON(env))

	// The frame after the bad one is still processed and fanned out.
	require.Eventually(t, func() bool {
		msgs := reader.Store.Messages("gossip-central")
		return len(msgs) == 1 && msgs[0].Text == "still standing"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHistoryServedInWireForm(t *testing.T) {
	srv := startTestServer(t)

	alice := connectTestClient(t, srv, "alice", "🎨")
	alice.JoinGroup("guess-who")
	require.NoError(t, alice.SendMessage("guess-who", "always in the back row", ""))
	require.Eventually(t, func() bool {
		return len(alice.Store.Messages("guess-who")) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// A latecomer pulls history over REST and decrypts locally.
	late := connectTestClient(t, srv, "late", "🌙")
	require.NoError(t, late.LoadHistory("guess-who"))

	msgs := late.Store.Messages("guess-who")
	require.Len(t, msgs, 1)
	assert.Equal(t, "always in the back row", msgs[0].Text)
}
