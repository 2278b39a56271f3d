package http

import (
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(g *gin.RouterGroup, h *AvailabilityHandler, authMiddleware gin.HandlerFunc) {
	group := g.Group("")

	// === Authenticated Routes ===
	group.Use(authMiddleware)
	{
		group.GET("/availability", h.All)                    // All courts for a date
		group.GET("/courts/:id/availability", h.Court)       // One court for a date
		group.GET("/courts/:id/availability/range", h.Range) // Range check
	}
}
