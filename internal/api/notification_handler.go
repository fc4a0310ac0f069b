package api

import (
	"errors"
	"net/http"

	"kairos/fitness-server/internal/domain"
	"kairos/fitness-server/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// NotificationHandler exposes the pull-based notification API and the
// read-state operations.
type NotificationHandler struct {
	notificationService service.NotificationService
	logger              *zap.Logger
}

func NewNotificationHandler(notificationService service.NotificationService, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
		logger:              logger,
	}
}

// ListNotifications returns the caller's notifications, newest first.
// `?unread=true` narrows to unread ones.
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	userID, ok := objectIDFromToken(c)
	if !ok {
		return
	}

	unreadOnly := c.Query("unread") == "true"
	notifications, err := h.notificationService.GetNotifications(c.Request.Context(), userID, unreadOnly)
	if err != nil {
		h.logger.Error("failed to list notifications", zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, "Failed to retrieve notifications.")
		return
	}

	if notifications == nil {
		// Return an empty JSON array, not null.
		notifications = []domain.Notification{}
	}
	c.JSON(http.StatusOK, notifications)
}

// CountUnread returns the caller's unread notification count.
func (h *NotificationHandler) CountUnread(c *gin.Context) {
	userID, ok := objectIDFromToken(c)
	if !ok {
		return
	}

	count, err := h.notificationService.CountUnread(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to count unread notifications", zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, "Failed to count notifications.")
		return
	}

	c.JSON(http.StatusOK, gin.H{"unread": count})
}

// MarkRead flips one notification to read. Marking an already-read
// notification again is a no-op success.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID, ok := objectIDFromToken(c)
	if !ok {
		return
	}

	notificationID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid notification ID format.")
		return
	}

	err = h.notificationService.MarkRead(c.Request.Context(), userID, notificationID)
	if err != nil {
		if errors.Is(err, service.ErrNotificationNotFound) {
			abortWithError(c, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Error("failed to mark notification read", zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, "Failed to mark notification as read.")
		return
	}

	c.Status(http.StatusNoContent)
}

// MarkAllRead flips every unread notification for the caller.
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID, ok := objectIDFromToken(c)
	if !ok {
		return
	}

	updated, err := h.notificationService.MarkAllRead(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to mark all notifications read", zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, "Failed to mark notifications as read.")
		return
	}

	c.JSON(http.StatusOK, gin.H{"updated": updated})
}
