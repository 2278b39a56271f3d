package http

import (
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(g *gin.RouterGroup, h *HoldHandler, authMiddleware gin.HandlerFunc) {
	group := g.Group("/holds")

	// === Authenticated Routes ===
	group.Use(authMiddleware)
	{
		group.POST("", h.Create)            // Place a hold
		group.GET("", h.List)               // List own holds
		group.GET("/:id", h.Get)            // Get hold details
		group.POST("/:id/expire", h.Expire) // Expire an elapsed hold
	}
}
