package http

import (
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware gin.HandlerFunc) {
	bookings := g.Group("/bookings")
	bookings.Use(authMiddleware)
	{
		bookings.POST("/preview", h.Preview) // Tentative court and price ladder
		bookings.POST("", h.Create)          // Reserve and hold a court
	}

	holds := g.Group("/holds")
	holds.Use(authMiddleware)
	{
		holds.POST("/:id/payment", h.StartPayment) // Create or reuse the payment intent
		holds.POST("/:id/confirm", h.Confirm)      // Confirm after payment
		holds.POST("/:id/heartbeat", h.Heartbeat)  // Keep the hold alive
		holds.POST("/:id/cancel", h.Cancel)        // Release the hold
	}

	// === Public Routes (signature verified) ===
	g.POST("/payments/webhook", h.Webhook) // Payment gateway notifications
}
