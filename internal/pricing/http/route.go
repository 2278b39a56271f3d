package http

import (
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(g *gin.RouterGroup, h *PricingHandler, authMiddleware gin.HandlerFunc) {
	group := g.Group("")

	// === Authenticated Routes ===
	group.Use(authMiddleware)
	{
		group.POST("/pricing/quote", h.Quote)     // Price a booking
		group.GET("/courts/:id/prices", h.Prices) // Standard duration ladder
	}
}
