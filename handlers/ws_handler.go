package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/Shiftline/shiftline-notify/config"
	"github.com/Shiftline/shiftline-notify/logger"
	"github.com/Shiftline/shiftline-notify/types"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

// ServerMessage is the envelope for messages pushed over the WebSocket.
type ServerMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Message type constants for the counter WebSocket.
const (
	MessageTypeConnected = "connected"
	MessageTypeCounter   = "counter"
)

// WSHandler pushes unread-counter events over a WebSocket connection.
type WSHandler struct {
	subscriber     types.CounterSubscriber
	allowedOrigins []string
	isDevelopment  bool
	log            *zap.SugaredLogger
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(subscriber types.CounterSubscriber, serverCfg *config.ServerConfig) *WSHandler {
	return &WSHandler{
		subscriber:     subscriber,
		allowedOrigins: serverCfg.AllowedOrigins,
		isDevelopment:  serverCfg.Environment == config.EnvDevelopment,
		log:            logger.GetLogger().Named("WSHandler"),
	}
}

// getAcceptOptions returns WebSocket accept options based on configuration.
// In development, all origins are allowed. In production, only configured
// origins are allowed.
func (h *WSHandler) getAcceptOptions() *websocket.AcceptOptions {
	opts := &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionContextTakeover,
	}
	if h.isDevelopment {
		opts.InsecureSkipVerify = true
	} else {
		opts.OriginPatterns = h.allowedOrigins
	}
	return opts
}

// HandleWebSocket godoc
// @Summary WebSocket unread-counter stream
// @Description Upgrades the connection and pushes unread-counter events for the authenticated user
// @Tags notifications
// @Success 101 "Switching Protocols"
// @Failure 401 {object} docs.ErrorResponse "Unauthorized"
// @Router /ws [get]
// @Security BearerAuth
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, h.getAcceptOptions())
	if err != nil {
		h.log.Errorw("Failed to accept WebSocket connection",
			"userID", userID,
			"error", err)
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	events, unsubscribe, err := h.subscriber.Subscribe(ctx, userID)
	if err != nil {
		h.log.Errorw("Failed to subscribe to counter events",
			"userID", userID,
			"error", err)
		_ = conn.Close(websocket.StatusInternalError, "subscription failed")
		return
	}
	defer unsubscribe()

	if err := h.sendMessage(ctx, conn, ServerMessage{
		Type:    MessageTypeConnected,
		Payload: map[string]string{"userId": userID},
	}); err != nil {
		h.log.Warnw("Failed to send connected message",
			"userID", userID,
			"error", err)
		return
	}

	h.log.Infow("WebSocket counter stream established", "userID", userID)

	errCh := make(chan error, 2)
	go func() { errCh <- h.writeLoop(ctx, conn, events) }()
	go func() { errCh <- h.pingLoop(ctx, conn) }()

	err = <-errCh
	cancel()
	if err != nil && websocket.CloseStatus(err) != websocket.StatusNormalClosure {
		h.log.Debugw("WebSocket counter stream closed",
			"userID", userID,
			"error", err)
	}
	_ = conn.Close(websocket.StatusNormalClosure, "stream closed")
}

// writeLoop pushes counter events to the client.
func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, events <-chan types.CounterEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, open := <-events:
			if !open {
				return nil
			}
			if err := h.sendMessage(ctx, conn, ServerMessage{
				Type:    MessageTypeCounter,
				Payload: event,
			}); err != nil {
				return err
			}
		}
	}
}

// pingLoop sends periodic pings to keep the connection alive.
func (h *WSHandler) pingLoop(ctx context.Context, conn *websocket.Conn) error {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}

// sendMessage sends a message to the client.
func (h *WSHandler) sendMessage(ctx context.Context, conn *websocket.Conn, msg ServerMessage) error {
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return wsjson.Write(writeCtx, conn, msg)
}
