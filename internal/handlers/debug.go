package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"community-chat/internal/telemetry"
)

// ViewStats reports open chat views.
type ViewStats interface {
	Count() int
	CountByGroup() map[string]int
}

// RegisterDebugRoutes wires debug-only endpoints.
func RegisterDebugRoutes(router *gin.Engine, emitter *telemetry.AuditEmitter, views ViewStats, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		emitter.Emit(c.Request.Context(), telemetry.AuditEvent{
			Level:     telemetry.LevelInfo,
			Text:      "audit test",
			RequestID: requestIDFromContext(c),
			UserID:    userIDFromContext(c),
		})
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/debug/views", func(c *gin.Context) {
		if views == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "view stats not configured"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"open": views.Count(), "by_group": views.CountByGroup()})
	})
}
