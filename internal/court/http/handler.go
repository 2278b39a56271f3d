package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/court-booking-engine/internal/court"
	"github.com/nekogravitycat/court-booking-engine/internal/pkg/response"
)

type CourtHandler struct {
	service court.Service
}

func NewHandler(service court.Service) *CourtHandler {
	return &CourtHandler{service: service}
}

// List retrieves every court, optionally filtered by status or sport.
func (h *CourtHandler) List(c *gin.Context) {
	var req ListCourtsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters", "details": err.Error()})
		return
	}

	courts, err := h.service.List(c.Request.Context(), court.Filter{
		Status:    court.Status(req.Status),
		SportType: req.SportType,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]CourtResponse, len(courts))
	for i, ct := range courts {
		items[i] = NewCourtResponse(ct)
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// Get retrieves a single court with its rate plan.
func (h *CourtHandler) Get(c *gin.Context) {
	var uri CourtIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid court id"})
		return
	}

	ct, err := h.service.GetByID(c.Request.Context(), uri.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewCourtResponse(ct))
}
