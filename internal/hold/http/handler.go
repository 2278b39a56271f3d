package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/court-booking-engine/internal/auth"
	"github.com/nekogravitycat/court-booking-engine/internal/hold"
	"github.com/nekogravitycat/court-booking-engine/internal/pkg/request"
	"github.com/nekogravitycat/court-booking-engine/internal/pkg/response"
	"github.com/nekogravitycat/court-booking-engine/internal/pkg/timeutil"
)

type HoldHandler struct {
	service hold.Service
}

func NewHandler(service hold.Service) *HoldHandler {
	return &HoldHandler{service: service}
}

func (h *HoldHandler) render(hd *hold.Hold) HoldResponse {
	return NewHoldResponse(hd, h.service.Deadline(hd))
}

// owned loads the hold in the :id path parameter and checks it belongs to
// the caller. It writes the error response itself and returns nil on failure.
func (h *HoldHandler) owned(c *gin.Context) *hold.Hold {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid hold id"})
		return nil
	}
	hd, err := h.service.Get(c.Request.Context(), uri.ID)
	if err != nil {
		response.Error(c, err)
		return nil
	}
	if hd.CustomerID != auth.GetUserID(c) {
		response.Error(c, hold.ErrNotOwner)
		return nil
	}
	return hd
}

// Create places a hold on a court at the quoted price.
func (h *HoldHandler) Create(c *gin.Context) {
	var req CreateHoldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	start, err := timeutil.ParseTimeKey(req.StartTime)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start_time must be formatted as HH:MM"})
		return
	}

	hd, err := h.service.CreateHold(c.Request.Context(), hold.CreateRequest{
		CourtID:         req.CourtID,
		Customer:        auth.GetCustomer(c),
		Date:            req.Date,
		StartMinutes:    start,
		DurationMinutes: req.DurationMinutes,
		Price:           *req.Price,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, h.render(hd))
}

// List retrieves a paginated list of the caller's holds.
func (h *HoldHandler) List(c *gin.Context) {
	var req ListHoldsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters", "details": err.Error()})
		return
	}
	req.Normalize()

	holds, total, err := h.service.List(c.Request.Context(), hold.Filter{
		CustomerID: auth.GetUserID(c),
		CourtID:    req.CourtID,
		Status:     hold.Status(req.Status),
		Date:       req.Date,
		Page:       req.Page,
		PageSize:   req.PageSize,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]HoldResponse, len(holds))
	for i, hd := range holds {
		items[i] = h.render(hd)
	}

	c.JSON(http.StatusOK, response.NewPageResponse(items, req.Page, req.PageSize, total))
}

// Get retrieves a hold. An elapsed hold is reported as expired.
func (h *HoldHandler) Get(c *gin.Context) {
	hd := h.owned(c)
	if hd == nil {
		return
	}
	c.JSON(http.StatusOK, h.render(hd))
}

// Expire closes a hold whose countdown has run out.
func (h *HoldHandler) Expire(c *gin.Context) {
	hd := h.owned(c)
	if hd == nil {
		return
	}
	expired, err := h.service.Expire(c.Request.Context(), hd.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, h.render(expired))
}
