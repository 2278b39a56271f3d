package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/court-booking-engine/internal/auth"
	"github.com/nekogravitycat/court-booking-engine/internal/court"
	courtHttp "github.com/nekogravitycat/court-booking-engine/internal/court/http"
	"github.com/nekogravitycat/court-booking-engine/internal/pkg/response"
	"github.com/nekogravitycat/court-booking-engine/internal/pkg/timeutil"
	"github.com/nekogravitycat/court-booking-engine/internal/pricing"
)

type PricingHandler struct {
	courts court.Service
	pricer *pricing.Calculator
}

func NewHandler(courts court.Service, pricer *pricing.Calculator) *PricingHandler {
	return &PricingHandler{courts: courts, pricer: pricer}
}

// startOf resolves a date and "HH:MM" pair in the venue timezone.
func (h *PricingHandler) startOf(date, startTime string) (time.Time, bool) {
	day, err := timeutil.ParseDate(date, h.pricer.Location())
	if err != nil {
		return time.Time{}, false
	}
	minutes, err := timeutil.ParseTimeKey(startTime)
	if err != nil {
		return time.Time{}, false
	}
	return timeutil.At(day, minutes), true
}

// Quote prices a booking for the authenticated customer.
// The member discount is taken from the access token.
func (h *PricingHandler) Quote(c *gin.Context) {
	var req QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	start, ok := h.startOf(req.Date, req.StartTime)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD and start_time HH:MM"})
		return
	}
	end := start.Add(time.Duration(req.DurationMinutes) * time.Minute)
	customer := auth.GetCustomer(c)
	ctx := c.Request.Context()

	if req.CourtID == "" {
		courts, err := h.courts.List(ctx, court.Filter{})
		if err != nil {
			response.Error(c, err)
			return
		}
		est, err := h.pricer.EstimatePrice(court.AsPricing(courts), start, end, &customer)
		if err != nil {
			response.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, QuoteResponse{
			Price:      est.Price,
			IsEstimate: true,
			CourtCount: est.CourtCount,
			Member:     customer.Member,
		})
		return
	}

	ct, err := h.courts.GetByID(ctx, req.CourtID)
	if err != nil {
		response.Error(c, err)
		return
	}
	price, err := h.pricer.CalculatePrice(ct.RatePlan, start, end, &customer)
	if err != nil {
		response.Error(c, err)
		return
	}
	segments, err := h.pricer.Segments(ct.RatePlan, start, end)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, QuoteResponse{
		CourtID:  ct.ID,
		Price:    price,
		Member:   customer.Member,
		Segments: NewSegmentResponses(segments),
	})
}

// Prices returns the standard duration ladder of a court from a start time.
func (h *PricingHandler) Prices(c *gin.Context) {
	var uri courtHttp.CourtIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid court id"})
		return
	}
	var q PricesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters", "details": err.Error()})
		return
	}
	start, ok := h.startOf(q.Date, q.StartTime)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD and start_time HH:MM"})
		return
	}

	ct, err := h.courts.GetByID(c.Request.Context(), uri.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	customer := auth.GetCustomer(c)
	prices, err := h.pricer.StandardDurationPrices(ct, start, &customer)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, PricesResponse{
		CourtID:   ct.ID,
		Date:      q.Date,
		StartTime: q.StartTime,
		Prices:    NewDurationPriceResponses(prices),
	})
}
