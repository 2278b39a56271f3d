package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/court-booking-engine/internal/availability"
	courtHttp "github.com/nekogravitycat/court-booking-engine/internal/court/http"
	"github.com/nekogravitycat/court-booking-engine/internal/pkg/response"
	"github.com/nekogravitycat/court-booking-engine/internal/pkg/timeutil"
)

// Reader is the read side of the availability index.
type Reader interface {
	GetSlotAvailability(ctx context.Context, courtID, date string) (availability.Slots, error)
	GetAllCourtsAvailability(ctx context.Context, date string) (map[string]availability.Slots, error)
	IsRangeAvailable(ctx context.Context, courtID, date string, startMinutes, durationMinutes int) (bool, error)
}

type AvailabilityHandler struct {
	index Reader
}

func NewHandler(index Reader) *AvailabilityHandler {
	return &AvailabilityHandler{index: index}
}

// Court returns the slot map of one court for a date.
func (h *AvailabilityHandler) Court(c *gin.Context) {
	var uri courtHttp.CourtIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid court id"})
		return
	}
	var q DateQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters", "details": err.Error()})
		return
	}

	slots, err := h.index.GetSlotAvailability(c.Request.Context(), uri.ID, q.Date)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, CourtAvailabilityResponse{CourtID: uri.ID, Date: q.Date, Slots: slots})
}

// All returns the slot maps of every court for a date.
func (h *AvailabilityHandler) All(c *gin.Context) {
	var q DateQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters", "details": err.Error()})
		return
	}

	courts, err := h.index.GetAllCourtsAvailability(c.Request.Context(), q.Date)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, AllCourtsAvailabilityResponse{Date: q.Date, Courts: courts})
}

// Range reports whether every slot of [start, start+duration) is free.
func (h *AvailabilityHandler) Range(c *gin.Context) {
	var uri courtHttp.CourtIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid court id"})
		return
	}
	var q RangeQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters", "details": err.Error()})
		return
	}
	start, err := timeutil.ParseTimeKey(q.Start)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start must be formatted as HH:MM"})
		return
	}

	ok, err := h.index.IsRangeAvailable(c.Request.Context(), uri.ID, q.Date, start, q.Duration)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, RangeAvailabilityResponse{
		CourtID:         uri.ID,
		Date:            q.Date,
		Start:           timeutil.TimeKey(start),
		DurationMinutes: q.Duration,
		Available:       ok,
	})
}
