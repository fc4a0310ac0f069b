package api

import (
	"encoding/json"
	"net/http"
	"time"

	"kairos/fitness-server/internal/pubsub"
	"kairos/fitness-server/internal/stream"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// StreamHandler bridges the per-user publish channel to any number of
// concurrently open SSE connections for that user. Delivery over the live
// channel is at-most-once; the notification store provides the durable
// fallback via the pull API.
type StreamHandler struct {
	registry  *stream.Registry
	broker    pubsub.Broker
	keepAlive time.Duration
	logger    *zap.Logger
}

func NewStreamHandler(registry *stream.Registry, broker pubsub.Broker, keepAlive time.Duration, logger *zap.Logger) *StreamHandler {
	if keepAlive <= 0 {
		keepAlive = 30 * time.Second
	}
	return &StreamHandler{
		registry:  registry,
		broker:    broker,
		keepAlive: keepAlive,
		logger:    logger,
	}
}

// Stream opens a long-lived SSE connection delivering the caller's
// notification events in publish order. Each connection holds its own
// broker subscription, so two devices of one user each receive every event
// independently.
func (h *StreamHandler) Stream(c *gin.Context) {
	userID, ok := objectIDFromToken(c)
	if !ok {
		return
	}

	conn := h.registry.Register(userID.Hex())
	sub, err := h.broker.Subscribe(c.Request.Context(), pubsub.UserChannel(userID.Hex()))
	if err != nil {
		h.registry.Unregister(conn)
		h.logger.Error("failed to subscribe delivery connection",
			zap.String("userId", userID.Hex()), zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, "Failed to open notification stream.")
		return
	}

	// Teardown runs on client disconnect, broker close and handler exit
	// alike; both Unregister and Close are idempotent so the overlap of
	// those paths is harmless.
	defer func() {
		h.registry.Unregister(conn)
		_ = sub.Close()
	}()

	h.logger.Debug("delivery connection opened",
		zap.String("userId", userID.Hex()),
		zap.String("connectionId", conn.ID),
		zap.Int("userConnections", h.registry.Count(userID.Hex())))

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	c.SSEvent("connected", gin.H{"connectionId": conn.ID})
	c.Writer.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	clientGone := c.Request.Context().Done()
	for {
		select {
		case <-clientGone:
			h.logger.Debug("delivery connection closed by client",
				zap.String("connectionId", conn.ID))
			return
		case msg, open := <-sub.Events():
			if !open {
				h.logger.Debug("delivery connection closed by broker",
					zap.String("connectionId", conn.ID))
				return
			}
			c.SSEvent("notification", json.RawMessage(msg))
			c.Writer.Flush()
		case <-ticker.C:
			// Keep intermediaries from timing the stream out.
			c.SSEvent("keep-alive", time.Now().UTC().Format(time.RFC3339))
			c.Writer.Flush()
		}
	}
}
