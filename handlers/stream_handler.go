package handlers

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Shiftline/shiftline-notify/logger"
	"github.com/Shiftline/shiftline-notify/types"
)

// sseHeartbeatInterval keeps idle counter streams alive through load
// balancers that cut quiet connections.
const sseHeartbeatInterval = 30 * time.Second

// StreamHandler serves the SSE unread-counter stream.
type StreamHandler struct {
	subscriber types.CounterSubscriber
	logger     *zap.SugaredLogger
}

// NewStreamHandler creates a new StreamHandler.
func NewStreamHandler(subscriber types.CounterSubscriber) *StreamHandler {
	return &StreamHandler{
		subscriber: subscriber,
		logger:     logger.GetLogger().Named("StreamHandler"),
	}
}

// StreamUnreadCount godoc
// @Summary Stream unread counter updates
// @Description Server-Sent Events stream of unread-counter events for the authenticated user
// @Tags notifications
// @Produce text/event-stream
// @Success 200 {object} types.CounterEvent
// @Failure 401 {object} docs.ErrorResponse "Unauthorized"
// @Router /notifications/unread-count/stream [get]
// @Security BearerAuth
func (h *StreamHandler) StreamUnreadCount(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}

	events, unsubscribe, err := h.subscriber.Subscribe(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	defer unsubscribe()

	h.logger.Infow("SSE counter stream opened", "userID", userID)
	defer h.logger.Infow("SSE counter stream closed", "userID", userID)

	heartbeat := time.NewTicker(sseHeartbeatInterval)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case event, open := <-events:
			if !open {
				return false
			}
			c.SSEvent("counter", event)
			return true
		case <-heartbeat.C:
			c.SSEvent("heartbeat", time.Now().UTC().Format(time.RFC3339))
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
