package handler

import (
	"circleup/backend/internal/attachment"
	"circleup/backend/internal/auth"
	"circleup/backend/internal/chathub"
	"circleup/backend/internal/localization"
	"circleup/backend/internal/messages"
	"circleup/backend/internal/models"
	"circleup/backend/internal/rooms"
	"circleup/backend/internal/session"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Handler містить посилання на ChatHub та сервіси кімнат і повідомлень.
type Handler struct {
	Hub        *chathub.ManagerService
	Auth       *auth.Issuer
	Directory  *rooms.Directory
	Ledger     *rooms.Ledger
	Messages   *messages.Store
	Pipeline   *attachment.Pipeline
	Blobs      attachment.BlobStore
	Localizer  *localization.Localizer
	NewSession func(user models.User, deviceID string, render session.Renderer) *session.Session
}

func NewHandler(h Handler) *Handler {
	return &h
}

// Routes registers every endpoint on r.
func (h *Handler) Routes(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.POST("/guest", h.IssueGuest)
	r.GET("/attachments/:name", h.GetAttachment)

	authed := r.Group("/", h.Auth.Middleware())
	authed.GET("/rooms", h.ListRooms)
	authed.POST("/rooms", h.CreateRoom)
	authed.GET("/rooms/:id", h.GetRoom)
	authed.POST("/rooms/:id/join", h.JoinRoom)
	authed.GET("/me/rooms", h.MyRooms)
	authed.GET("/rooms/:id/messages", h.ListMessages)
	authed.POST("/rooms/:id/attachments", h.UploadAttachment)
	authed.GET("/ws", h.ServeWebSocket)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "clients": h.Hub.Count()})
}

// statusFor maps domain errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrBackendUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, models.ErrRoomNotFound),
		errors.Is(err, models.ErrMessageNotFound),
		errors.Is(err, models.ErrAttachmentNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrRoomExists),
		errors.Is(err, models.ErrMessageExists):
		return http.StatusConflict
	case errors.Is(err, models.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrIncorrectPassword),
		errors.Is(err, models.ErrNotInRoom),
		errors.Is(err, models.ErrPermissionDenied),
		errors.Is(err, models.ErrUnauthorizedStorage):
		return http.StatusForbidden
	case errors.Is(err, models.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, models.ErrUploadTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, models.ErrInvalidRoom),
		errors.Is(err, models.ErrMissingPassword),
		errors.Is(err, models.ErrPasswordTooShort),
		errors.Is(err, models.ErrEmptyContent),
		errors.Is(err, models.ErrInvalidLocation),
		errors.Is(err, models.ErrEmptyReply),
		errors.Is(err, models.ErrUnknownReaction),
		errors.Is(err, models.ErrEmptyPayload),
		errors.Is(err, models.ErrUnsupportedMedia):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// respondError пише локалізовану помилку у відповідь.
func (h *Handler) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Printf("ERROR: %s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	key, text := h.Localizer.Alert(language(c), err)
	c.AbortWithStatusJSON(status, gin.H{"error": key, "message": text})
}

// language prefers ?lang= over the Accept-Language header.
func language(c *gin.Context) string {
	if lang := c.Query("lang"); lang != "" {
		return lang
	}
	header := c.GetHeader("Accept-Language")
	if len(header) >= 2 {
		return strings.ToLower(header[:2])
	}
	return localization.DefaultLanguage
}

func currentUser(c *gin.Context) models.User {
	user, _ := auth.CurrentUser(c)
	return user
}
