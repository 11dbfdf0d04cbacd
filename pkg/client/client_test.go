package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anonchat/pkg/chat"
	"anonchat/pkg/cipher"
)

// stubServer is the smallest server a full client can talk to: canned REST
// responses plus a websocket endpoint that echoes send_message back as
// new_message with a server-assigned ID, the way the real fanout does.
func stubServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/chats/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]chat.GroupChat{
			{GroupID: "g1", Name: "🗣️ Gossip Central", MemberCount: 247},
			{GroupID: "g2", Name: "💭 Confessions", MemberCount: 189},
		})
	})
	mux.HandleFunc("GET /api/users/leaderboard", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]chat.User{
			{UserID: "u9", Username: "NightOwl", Avatar: "🦉", Points: 2847},
		})
	})
	mux.HandleFunc("GET /api/chats/g1/messages", func(w http.ResponseWriter, r *http.Request) {
		encrypted, err := cipher.Encrypt("from history", "g1")
		require.NoError(t, err)
		json.NewEncoder(w).Encode([]chat.Message{
			{MessageID: "m1", UserID: "u9", EncryptedContent: encrypted, Timestamp: 1700000000000},
		})
	})

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		seq := 0
		for {
			var env chat.Envelope
			if err := ws.ReadJSON(&env); err != nil {
				return
			}
			if env.Type != chat.EventSendMessage {
				continue
			}
			var data chat.SendMessageData
			if err := json.Unmarshal(env.Data, &data); err != nil {
				continue
			}
			seq++
			out, _ := chat.NewEnvelope(chat.EventNewMessage, chat.NewMessageData{
				GroupID: data.GroupID,
				Message: chat.Message{
					MessageID:        fmt.Sprintf("srv-%d", seq),
					UserID:           "u1",
					Username:         "NightOwl",
					EncryptedContent: data.EncryptedContent,
					ReplyToMessageID: data.ReplyToMessageID,
					Timestamp:        time.Now().UnixMilli(),
				},
			})
			ws.WriteJSON(out)
		}
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func stubClient(t *testing.T, srv *httptest.Server, user *chat.User) *Client {
	t.Helper()
	return New(Config{
		ServerURL:            srv.URL,
		WSURL:                "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
		User:                 user,
		ReconnectBaseDelay:   5 * time.Millisecond,
		MaxReconnectAttempts: 3,
	})
}

func TestClientEndToEndSendAndReceive(t *testing.T) {
	srv := stubServer(t)
	c := stubClient(t, srv, &chat.User{UserID: "u1", Username: "NightOwl", Avatar: "🦉"})

	require.NoError(t, c.Connect())
	t.Cleanup(c.Disconnect)

	c.JoinGroup("g1")
	require.NoError(t, c.SendMessage("g1", "hello", ""))

	// The plaintext leaves as ciphertext and comes back as a store message
	// whose text is the decrypted original.
	require.Eventually(t, func() bool {
		msgs := c.Store.Messages("g1")
		return len(msgs) == 1 && msgs[0].Text == "hello"
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, "g1", c.Store.CurrentGroup())
	assert.True(t, c.Connected())
}

func TestClientLoadInitialState(t *testing.T) {
	srv := stubServer(t)
	c := stubClient(t, srv, nil)

	require.NoError(t, c.LoadInitialState())

	groups := c.Store.GroupChats()
	require.Len(t, groups, 2)
	assert.Equal(t, "g1", groups[0].GroupID)

	board := c.Store.Leaderboard()
	require.Len(t, board, 1)
	assert.Equal(t, 2847, board[0].Points)
}

func TestClientLoadHistoryDecrypts(t *testing.T) {
	srv := stubServer(t)
	c := stubClient(t, srv, nil)

	require.NoError(t, c.LoadHistory("g1"))

	msgs := c.Store.Messages("g1")
	require.Len(t, msgs, 1)
	assert.Equal(t, "from history", msgs[0].Text)
}

func TestClientLogoutKeepsConnection(t *testing.T) {
	srv := stubServer(t)
	c := stubClient(t, srv, &chat.User{UserID: "u1"})

	require.NoError(t, c.Connect())
	t.Cleanup(c.Disconnect)
	require.NoError(t, c.LoadInitialState())

	c.Logout()

	assert.Nil(t, c.Store.User())
	assert.True(t, c.Connected())
	assert.Len(t, c.Store.GroupChats(), 2)
}

func TestAPIFailureIsReturnedNotRetried(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	c := stubClient(t, srv, nil)
	assert.Error(t, c.LoadInitialState())
	assert.Equal(t, 1, hits)
}
