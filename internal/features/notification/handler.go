package notification

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mo-amir99/course-market-go/internal/middleware"
	"github.com/mo-amir99/course-market-go/pkg/pagination"
	"github.com/mo-amir99/course-market-go/pkg/response"
	"github.com/mo-amir99/course-market-go/pkg/types"
)

// Handler serves notification endpoints.
type Handler struct {
	db     *gorm.DB
	logger *slog.Logger
	fanout *Fanout
}

// NewHandler constructs a notification handler.
func NewHandler(db *gorm.DB, logger *slog.Logger, fanout *Fanout) *Handler {
	return &Handler{db: db, logger: logger, fanout: fanout}
}

// List returns the caller's notifications.
func (h *Handler) List(c *gin.Context) {
	requester, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.ErrorWithLog(h.logger, c, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	params := pagination.Extract(c)
	filters := ListFilters{
		UnreadOnly: c.Query("unread") == "true",
		Kind:       Kind(strings.TrimSpace(c.Query("type"))),
	}

	items, total, err := List(h.db, requester.ID, filters, params, time.Now())
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "failed to list notifications", err)
		return
	}

	response.Success(c, http.StatusOK, items, "", pagination.MetadataFrom(total, params))
}

// UnreadCount returns the caller's unread count.
func (h *Handler) UnreadCount(c *gin.Context) {
	requester, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.ErrorWithLog(h.logger, c, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	count, err := UnreadCount(h.db, requester.ID, time.Now())
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "failed to count notifications", err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"unreadCount": count}, "", nil)
}

// MarkRead marks one notification as read.
func (h *Handler) MarkRead(c *gin.Context) {
	requester, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.ErrorWithLog(h.logger, c, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	id, err := uuid.Parse(c.Param("notificationId"))
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid notification id", err)
		return
	}

	item, err := MarkRead(h.db, requester.ID, id, time.Now())
	if err != nil {
		h.respondError(c, err, "failed to mark notification")
		return
	}

	response.Success(c, http.StatusOK, item, "", nil)
}

// MarkAllRead marks every notification of the caller as read.
func (h *Handler) MarkAllRead(c *gin.Context) {
	requester, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.ErrorWithLog(h.logger, c, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	updated, err := MarkAllRead(h.db, requester.ID, time.Now())
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "failed to mark notifications", err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"updated": updated}, "All notifications marked as read.", nil)
}

// Delete removes one notification.
func (h *Handler) Delete(c *gin.Context) {
	requester, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.ErrorWithLog(h.logger, c, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	id, err := uuid.Parse(c.Param("notificationId"))
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid notification id", err)
		return
	}

	if err := Delete(h.db, requester.ID, id); err != nil {
		h.respondError(c, err, "failed to delete notification")
		return
	}

	response.Success(c, http.StatusOK, true, "Notification deleted.", nil)
}

// Clear removes every notification of the caller.
func (h *Handler) Clear(c *gin.Context) {
	requester, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.ErrorWithLog(h.logger, c, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	deleted, err := Clear(h.db, requester.ID)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "failed to clear notifications", err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"deleted": deleted}, "Notifications cleared.", nil)
}

type sendRequest struct {
	RecipientID *string `json:"recipientId"`
	Role        *string `json:"role"`
	Title       string  `json:"title" binding:"required"`
	Message     string  `json:"message" binding:"required"`
	Priority    string  `json:"priority"`
}

// Send lets an administrator message one user or every user of a role.
func (h *Handler) Send(c *gin.Context) {
	requester, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.ErrorWithLog(h.logger, c, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid notification payload", err)
		return
	}

	msg := Message{
		Kind:     KindSystem,
		Title:    strings.TrimSpace(req.Title),
		Body:     strings.TrimSpace(req.Message),
		Priority: types.Priority(strings.ToLower(req.Priority)),
		SenderID: &requester.ID,
	}

	var err error
	switch {
	case req.RecipientID != nil:
		recipientID, parseErr := uuid.Parse(*req.RecipientID)
		if parseErr != nil {
			response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid recipient id", parseErr)
			return
		}
		err = h.fanout.Notify(c.Request.Context(), recipientID, msg)
	case req.Role != nil:
		role := types.UserType(strings.ToLower(*req.Role))
		if !role.Valid() {
			h.respondError(c, ErrInvalidRecipient, "failed to send notification")
			return
		}
		err = h.fanout.NotifyRole(c.Request.Context(), role, msg)
	default:
		err = ErrInvalidRecipient
	}

	if err != nil {
		h.respondError(c, err, "failed to send notification")
		return
	}

	response.Success(c, http.StatusCreated, true, "Notification sent.", nil)
}

func (h *Handler) respondError(c *gin.Context, err error, fallback string) {
	status := http.StatusInternalServerError
	message := fallback

	switch {
	case errors.Is(err, ErrNotificationNotFound):
		status = http.StatusNotFound
		message = "Notification not found."
	case errors.Is(err, ErrInvalidPriority),
		errors.Is(err, ErrInvalidRecipient),
		errors.Is(err, ErrMissingContent):
		status = http.StatusBadRequest
		message = err.Error()
	}

	response.ErrorWithLog(h.logger, c, status, message, err)
}
