package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"anonchat/pkg/chat"
)

// API is the request/response collaborator used for initial bulk loads and
// one-shot creations. Calls are never retried here; a failure is returned
// to the caller to surface as it sees fit.
type API struct {
	baseURL string
	http    *http.Client
	store   *Store
}

// NewAPI builds a REST client against baseURL, e.g. "http://localhost:3000".
// The store supplies the X-User-ID header once an identity exists.
func NewAPI(baseURL string, store *Store) *API {
	return &API{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		store:   store,
	}
}

// CreateUserRequest is the payload for setting up an anonymous identity.
type CreateUserRequest struct {
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// CreateGroupRequest is the payload for creating a group.
type CreateGroupRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CreateUser asks the server to mint an anonymous identity.
func (a *API) CreateUser(req CreateUserRequest) (*chat.User, error) {
	var user chat.User
	if err := a.do(http.MethodPost, "/api/users/setup", req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUser fetches one user by ID.
func (a *API) GetUser(userID string) (*chat.User, error) {
	var user chat.User
	if err := a.do(http.MethodGet, "/api/users/"+userID, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetLeaderboard fetches the points leaderboard, highest first.
func (a *API) GetLeaderboard() ([]chat.User, error) {
	var users []chat.User
	if err := a.do(http.MethodGet, "/api/users/leaderboard", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// CreateGroup creates a new group chat.
func (a *API) CreateGroup(req CreateGroupRequest) (*chat.GroupChat, error) {
	var group chat.GroupChat
	if err := a.do(http.MethodPost, "/api/chats/", req, &group); err != nil {
		return nil, err
	}
	return &group, nil
}

// GetGroups fetches the full group list.
func (a *API) GetGroups() ([]chat.GroupChat, error) {
	var groups []chat.GroupChat
	if err := a.do(http.MethodGet, "/api/chats/", nil, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// GetGroup fetches a single group.
func (a *API) GetGroup(groupID string) (*chat.GroupChat, error) {
	var group chat.GroupChat
	if err := a.do(http.MethodGet, "/api/chats/"+groupID, nil, &group); err != nil {
		return nil, err
	}
	return &group, nil
}

// GetMessages fetches a group's message history in wire form; callers
// decrypt before display.
func (a *API) GetMessages(groupID string) ([]chat.Message, error) {
	var msgs []chat.Message
	if err := a.do(http.MethodGet, "/api/chats/"+groupID+"/messages", nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (a *API) do(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, a.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if user := a.store.User(); user != nil {
		req.Header.Set("X-User-ID", user.UserID)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
