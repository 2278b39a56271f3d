package http

import (
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(g *gin.RouterGroup, h *AssignmentHandler, authMiddleware gin.HandlerFunc) {
	group := g.Group("/assignments")

	// === Authenticated Routes ===
	group.Use(authMiddleware)
	{
		group.POST("", h.Assign) // Assign a court
	}
}
