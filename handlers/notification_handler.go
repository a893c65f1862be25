// Package handlers contains the gin HTTP handlers for the notification feed,
// the counter streams, and health probes.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "github.com/Shiftline/shiftline-notify/errors"
	"github.com/Shiftline/shiftline-notify/logger"
	"github.com/Shiftline/shiftline-notify/middleware"
	"github.com/Shiftline/shiftline-notify/models/feed"
	"github.com/Shiftline/shiftline-notify/types"
)

// NotificationHandler serves the aggregated notification feed and its
// read-state mutations.
type NotificationHandler struct {
	manager *feed.Manager
	logger  *zap.SugaredLogger
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(manager *feed.Manager) *NotificationHandler {
	return &NotificationHandler{
		manager: manager,
		logger:  logger.GetLogger().Named("NotificationHandler"),
	}
}

// GetFeed godoc
// @Summary Get the merged notification feed
// @Description Fetches both upstream channels, merges and dedupes them, overlays read state, and returns the snapshot
// @Tags notifications
// @Produce json
// @Param category query string false "Narrow the returned notifications to one category (the unread count stays unfiltered)"
// @Success 200 {object} docs.FeedResponse
// @Failure 401 {object} docs.ErrorResponse "Unauthorized"
// @Failure 502 {object} docs.ErrorResponse "Upstream feed unavailable"
// @Router /notifications [get]
// @Security BearerAuth
func (h *NotificationHandler) GetFeed(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}

	category := c.Query("category")
	view, err := h.manager.Engine(userID).Fetch(c.Request.Context(), category)
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}

	c.JSON(http.StatusOK, view)
}

// MarkNotificationRead godoc
// @Summary Mark one notification as read
// @Description Marks the notification identified by (channel, remoteId) as read. Idempotent.
// @Tags notifications
// @Produce json
// @Param channel path string true "Channel (push or inapp)"
// @Param remoteId path string true "Remote notification ID"
// @Success 204 "No Content"
// @Failure 400 {object} docs.ErrorResponse "Unknown channel"
// @Failure 401 {object} docs.ErrorResponse "Unauthorized"
// @Failure 404 {object} docs.ErrorResponse "Notification not in the current feed"
// @Failure 500 {object} docs.ErrorResponse "Read state could not be persisted"
// @Router /notifications/{channel}/{remoteId}/read [patch]
// @Security BearerAuth
func (h *NotificationHandler) MarkNotificationRead(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}

	channel, err := types.ParseChannel(c.Param("channel"))
	if err != nil {
		_ = c.Error(apperrors.ValidationFailed("invalid channel", err.Error()))
		c.Abort()
		return
	}
	id := types.NewIdentity(channel, c.Param("remoteId"))

	if err := h.manager.Engine(userID).MarkRead(c.Request.Context(), id); err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}

	c.Status(http.StatusNoContent)
}

// MarkAllNotificationsRead godoc
// @Summary Mark all notifications as read
// @Description Marks every unread notification in the unfiltered feed as read in one atomic batch
// @Tags notifications
// @Produce json
// @Success 200 {object} docs.MarkAllReadResponse
// @Failure 401 {object} docs.ErrorResponse "Unauthorized"
// @Failure 500 {object} docs.ErrorResponse "Read state could not be persisted"
// @Router /notifications/read-all [patch]
// @Security BearerAuth
func (h *NotificationHandler) MarkAllNotificationsRead(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}

	marked, err := h.manager.Engine(userID).MarkAllRead(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}

	c.JSON(http.StatusOK, gin.H{"marked_read_count": marked})
}

// GetUnreadCount godoc
// @Summary Get the unread counter
// @Description Returns the current unread count over the unfiltered feed
// @Tags notifications
// @Produce json
// @Success 200 {object} docs.UnreadCountResponse
// @Failure 401 {object} docs.ErrorResponse "Unauthorized"
// @Router /notifications/unread-count [get]
// @Security BearerAuth
func (h *NotificationHandler) GetUnreadCount(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{"unread_count": h.manager.Engine(userID).UnreadCount()})
}

// getUserIDFromContext extracts the authenticated user ID set by
// middleware.AuthMiddleware. Aborts with 401 when absent.
func getUserIDFromContext(c *gin.Context) (string, bool) {
	userID := c.GetString(middleware.UserIDContextKey)
	if userID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User ID not found in context"})
		return "", false
	}
	return userID, true
}
