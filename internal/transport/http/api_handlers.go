package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/vovakirdan/issuechat-server/internal/core"
	"github.com/vovakirdan/issuechat-server/internal/store"
)

// APIHandlers provides HTTP handlers for REST API endpoints.
type APIHandlers struct {
	hub   *core.Hub
	dir   store.Directory
	stats StatsSource
	log   *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(hub *core.Hub, dir store.Directory, stats StatsSource, logger *zerolog.Logger) *APIHandlers {
	return &APIHandlers{
		hub:   hub,
		dir:   dir,
		stats: stats,
		log:   logger,
	}
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// CreateUserRequest registers a user for notifications.
type CreateUserRequest struct {
	Identity string `json:"identity" binding:"required,max=64"`
	Email    string `json:"email" binding:"required,email"`
}

// UserResponse represents a user in API responses.
type UserResponse struct {
	Identity  string `json:"identity"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
}

// CreateIssueRequest creates an issue whose id names a chat room.
type CreateIssueRequest struct {
	Title string `json:"title" binding:"required,max=256"`
}

// IssueResponse represents an issue in API responses.
type IssueResponse struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
}

// PostMessageRequest posts a message without a live connection.
type PostMessageRequest struct {
	Sender string `json:"sender" binding:"required,max=64"`
	Text   string `json:"text" binding:"required"`
}

// PresenceResponse lists the identities currently in a room.
type PresenceResponse struct {
	Room    string   `json:"room"`
	Members []string `json:"members"`
}

// Health reports liveness and notification counters.
// GET /health
func (h *APIHandlers) Health(c *gin.Context) {
	body := gin.H{"status": "ok"}
	if h.stats != nil {
		s := h.stats.Stats()
		body["notifications"] = gin.H{
			"queued":    s.Queued,
			"delivered": s.Delivered,
			"failed":    s.Failed,
			"dropped":   s.Dropped,
			"abandoned": s.Abandoned,
		}
	}
	c.JSON(http.StatusOK, body)
}

// GetChatHistory returns the messages of a room, oldest first.
// GET /chat/:roomId
func (h *APIHandlers) GetChatHistory(c *gin.Context) {
	room := c.Param("roomId")

	history, err := h.hub.History(c.Request.Context(), room)
	if err != nil {
		h.log.Error().Err(err).Str("room", room).Msg("failed to load history")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "history unavailable"})
		return
	}

	c.JSON(http.StatusOK, messagesToProto(history))
}

// PostMessage stores and broadcasts a message on behalf of sender.
// POST /api/rooms/:room/messages
func (h *APIHandlers) PostMessage(c *gin.Context) {
	room := c.Param("room")

	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid post message request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	msg, err := h.hub.PostMessage(c.Request.Context(), room, req.Sender, req.Text)
	if err != nil {
		var serr *core.StorageError
		if errors.As(err, &serr) {
			h.log.Error().Err(err).Str("room", room).Msg("message not stored")
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "message could not be stored"})
			return
		}
		h.log.Error().Err(err).Str("room", room).Msg("failed to post message")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusCreated, messageToProto(msg))
}

// GetPresence lists identities currently joined to a room.
// GET /api/rooms/:room/presence
func (h *APIHandlers) GetPresence(c *gin.Context) {
	room := c.Param("room")
	c.JSON(http.StatusOK, PresenceResponse{
		Room:    room,
		Members: h.hub.Presence().Members(room),
	})
}

// CreateUser registers an identity and email address.
// POST /api/users
func (h *APIHandlers) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create user request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	user, err := h.dir.CreateUser(c.Request.Context(), req.Identity, req.Email)
	if err != nil {
		if errors.Is(err, store.ErrExists) {
			c.JSON(http.StatusConflict, ErrorResponse{Error: "user already exists"})
			return
		}
		h.log.Error().Err(err).Str("identity", req.Identity).Msg("failed to create user")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Str("identity", user.Identity).Msg("user created")
	c.JSON(http.StatusCreated, userResponse(user))
}

// ListUsers returns every registered user.
// GET /api/users
func (h *APIHandlers) ListUsers(c *gin.Context) {
	users, err := h.dir.ListUsers(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list users")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, lo.Map(users, func(u *store.User, _ int) UserResponse {
		return userResponse(u)
	}))
}

// CreateIssue stores an issue. Its id is the room id of its chat.
// POST /api/issues
func (h *APIHandlers) CreateIssue(c *gin.Context) {
	var req CreateIssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create issue request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	issue, err := h.dir.CreateIssue(c.Request.Context(), req.Title)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to create issue")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Str("issue_id", issue.ID).Msg("issue created")
	c.JSON(http.StatusCreated, issueResponse(issue))
}

// GetIssue returns one issue.
// GET /api/issues/:id
func (h *APIHandlers) GetIssue(c *gin.Context) {
	id := c.Param("id")

	issue, err := h.dir.GetIssue(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "issue not found"})
			return
		}
		h.log.Error().Err(err).Str("issue_id", id).Msg("failed to get issue")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, issueResponse(issue))
}

func userResponse(u *store.User) UserResponse {
	return UserResponse{
		Identity:  u.Identity,
		Email:     u.Email,
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
}

func issueResponse(i *store.Issue) IssueResponse {
	return IssueResponse{
		ID:        i.ID,
		Title:     i.Title,
		CreatedAt: i.CreatedAt.Format(time.RFC3339),
	}
}
