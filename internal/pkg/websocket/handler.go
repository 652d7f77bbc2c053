package websocket

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/emre/presentia/internal/app/models"
	"github.com/emre/presentia/internal/app/repositories"
)

var (
	errMissingTarget = errors.New("websocket: no session or class given")
	errNotOwner      = errors.New("websocket: subscriber does not own class")
)

// Handler for WebSocket connections
type Handler struct {
	hub         *Hub
	sessionRepo *repositories.SessionRepository
	logger      zerolog.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(
	hub *Hub,
	sessionRepo *repositories.SessionRepository,
	logger zerolog.Logger,
) *Handler {
	return &Handler{
		hub:         hub,
		sessionRepo: sessionRepo,
		logger:      logger,
	}
}

// HandleAttendanceFeed godoc
// @Summary Subscribe to the live attendance feed
// @Description Upgrades the HTTP connection to a WebSocket pushing attendance events for one session or one class. Only the faculty member owning the class may subscribe.
// @Tags attendance, websocket
// @Security BearerAuth
// @Param session query int false "Session ID to follow"
// @Param class query int false "Class ID to follow"
// @Success 101 {string} string "Switching Protocols to WebSocket"
// @Failure 400 {object} gin.H "Neither session nor class given"
// @Failure 401 {object} gin.H "Unauthorized: JWT token missing or invalid"
// @Failure 403 {object} gin.H "Forbidden: subscriber does not own the class"
// @Router /ws/attendance [get]
func (h *Handler) HandleAttendanceFeed(c *gin.Context) {
	userID, ok := contextUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User ID not found in context"})
		return
	}

	role, _ := c.Get("userRole")
	if role != string(models.RoleFaculty) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only faculty may subscribe to the attendance feed"})
		return
	}

	topic, classID, err := h.resolveTopic(c, userID)
	if err != nil {
		return // resolveTopic wrote the response
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("topic", topic).
			Int64("userID", userID).
			Msg("Failed to upgrade connection to WebSocket")
		return
	}

	client := &Client{
		hub:    h.hub,
		conn:   conn,
		send:   make(chan []byte, 256),
		userID: userID,
		topic:  topic,
		logger: h.logger,
	}
	client.hub.register <- client

	go client.writePump()
	go client.readPump()

	h.logger.Info().
		Str("topic", topic).
		Int64("classID", classID).
		Int64("userID", userID).
		Str("remoteAddr", conn.RemoteAddr().String()).
		Msg("Attendance feed subscription established")
}

// resolveTopic maps the session or class query parameter to a feed topic and
// enforces that the subscriber owns the class. Writes the error response
// itself so the caller can just return.
func (h *Handler) resolveTopic(c *gin.Context, userID int64) (string, int64, error) {
	if raw := c.Query("session"); raw != "" {
		sessionID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid session ID"})
			return "", 0, err
		}
		session, err := h.sessionRepo.GetSessionByID(c, sessionID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
			return "", 0, err
		}
		if err := h.checkOwnership(c, session.ClassID, userID); err != nil {
			return "", 0, err
		}
		return SessionTopic(sessionID), session.ClassID, nil
	}

	if raw := c.Query("class"); raw != "" {
		classID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid class ID"})
			return "", 0, err
		}
		if err := h.checkOwnership(c, classID, userID); err != nil {
			return "", 0, err
		}
		return ClassTopic(classID), classID, nil
	}

	err := errMissingTarget
	c.JSON(http.StatusBadRequest, gin.H{"error": "Provide a session or class query parameter"})
	return "", 0, err
}

func (h *Handler) checkOwnership(c *gin.Context, classID, userID int64) error {
	class, err := h.sessionRepo.GetClassByID(c, classID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Class not found"})
		return err
	}
	if class.FacultyID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Subscriber does not own this class"})
		return errNotOwner
	}
	return nil
}

func contextUserID(c *gin.Context) (int64, bool) {
	v, exists := c.Get("userID")
	if !exists {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}
