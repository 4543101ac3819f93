package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/models"
	"messaging-service/internal/telemetry"
)

// RegisterDebugRoutes wires debug-only endpoints behind the given auth middleware.
func RegisterDebugRoutes(router gin.IRouter, auth gin.HandlerFunc, notifications NotificationService, emitter *telemetry.EventEmitter, enabled bool) {
	if !enabled {
		return
	}

	debug := router.Group("/debug", auth)

	debug.GET("/event-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event emitter not configured"})
			return
		}
		userID, ok := callerID(c)
		if !ok {
			return
		}
		emitter.Emit(c.Request.Context(), "debug.test", userID, gin.H{"request_id": requestIDFromContext(c)})
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Same path as the notifications.create consumer, for local testing without a broker.
	debug.POST("/notifications", func(c *gin.Context) {
		var in models.CreateNotificationInput
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		created, err := notifications.NotifyMany(c.Request.Context(), in)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"notifications": created})
	})
}
