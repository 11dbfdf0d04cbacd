package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"anonchat/pkg/chat"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Anonymous chat; every origin is welcome.
		return true
	},
}

// Router wires the REST surface and the websocket endpoint onto gin.
type Router struct {
	store   *Store
	hub     *Hub
	handler *Handler
}

func NewRouter(store *Store, hub *Hub) *Router {
	return &Router{
		store:   store,
		hub:     hub,
		handler: NewHandler(store, hub),
	}
}

func (r *Router) RegisterRoutes(e *gin.Engine) {
	users := e.Group("/api/users")
	{
		users.POST("/setup", r.createUser)
		users.GET("/leaderboard", r.leaderboard)
		users.GET("/:id", r.getUser)
	}

	chats := e.Group("/api/chats")
	{
		chats.POST("/", r.createGroup)
		chats.GET("/", r.listGroups)
		chats.GET("/:id", r.getGroup)
		chats.GET("/:id/messages", r.getMessages)
	}

	e.GET("/ws", r.handleWebSocket)
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type CreateUserRequest struct {
	Username string `json:"username" binding:"required"`
	Avatar   string `json:"avatar"`
}

type CreateGroupRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

func (r *Router) createUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	user, err := r.store.CreateUser(req.Username, req.Avatar)
	if err != nil {
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (r *Router) getUser(c *gin.Context) {
	user, err := r.store.GetUser(c.Param("id"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, user)
}

func (r *Router) leaderboard(c *gin.Context) {
	board, err := r.store.Leaderboard()
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, board)
}

func (r *Router) createGroup(c *gin.Context) {
	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	group, err := r.store.CreateGroup(req.Name, req.Description)
	if err != nil {
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
		return
	}

	// Everyone learns about new groups, joined or not.
	if env, err := chat.NewEnvelope(chat.EventNewGroupChat, group); err == nil {
		r.hub.BroadcastAll(env)
	}

	c.JSON(http.StatusCreated, group)
}

func (r *Router) listGroups(c *gin.Context) {
	groups, err := r.store.Groups()
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, groups)
}

func (r *Router) getGroup(c *gin.Context) {
	group, err := r.store.Group(c.Param("id"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, group)
}

func (r *Router) getMessages(c *gin.Context) {
	msgs, err := r.store.Messages(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, msgs)
}

func (r *Router) handleWebSocket(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := newWSClient(ws)
	r.hub.Register(client)
	go client.writePump()
	r.readPump(client)
}

// readPump dispatches the connection's inbound frames in arrival order.
// Only a transport read error tears the connection down (re-broadcasting
// any typing sets the departure changed); a frame that fails to unmarshal
// is dropped on its own, whatever flavor of bad JSON it is.
func (r *Router) readPump(client *wsClient) {
	defer func() {
		for _, groupID := range r.hub.Unregister(client) {
			r.handler.broadcastTyping(groupID, r.hub.TypingUsers(groupID))
		}
		client.conn.Close()
	}()

	for {
		_, raw, err := client.conn.ReadMessage()
		if err != nil {
			return
		}
		var env chat.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			slog.Warn("dropping malformed client frame", "error", err)
			continue
		}
		r.handler.Handle(client, env)
	}
}
