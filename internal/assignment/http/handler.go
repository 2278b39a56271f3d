package http

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/court-booking-engine/internal/assignment"
	"github.com/nekogravitycat/court-booking-engine/internal/court"
	"github.com/nekogravitycat/court-booking-engine/internal/pkg/response"
	"github.com/nekogravitycat/court-booking-engine/internal/pkg/timeutil"
)

type AssignmentHandler struct {
	courts   court.Service
	resolver *assignment.Resolver
}

func NewHandler(courts court.Service, resolver *assignment.Resolver) *AssignmentHandler {
	return &AssignmentHandler{courts: courts, resolver: resolver}
}

// Assign picks a court for a time range. Tentative mode probes a short slot
// with retries; authoritative mode checks the full duration.
// A failed assignment still returns the alternatives and message as error data.
func (h *AssignmentHandler) Assign(c *gin.Context) {
	var req AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	start, err := timeutil.ParseTimeKey(req.StartTime)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start_time must be formatted as HH:MM"})
		return
	}
	if req.Mode == "" {
		req.Mode = ModeAuthoritative
	}

	ctx := c.Request.Context()
	candidates, err := h.courts.List(ctx, court.Filter{})
	if err != nil {
		response.Error(c, err)
		return
	}
	if len(req.CourtIDs) > 0 {
		candidates = slices.DeleteFunc(candidates, func(ct *court.Court) bool {
			return !slices.Contains(req.CourtIDs, ct.ID)
		})
	}

	areq := assignment.Request{
		Date:             req.Date,
		StartMinutes:     start,
		DurationMinutes:  req.DurationMinutes,
		Candidates:       candidates,
		Strategy:         assignment.Strategy(req.Strategy),
		Preferences:      req.Preferences,
		TentativeCourtID: req.TentativeCourtID,
	}

	var res *assignment.Result
	if req.Mode == ModeTentative {
		res, err = h.resolver.AssignTentative(ctx, areq)
	} else {
		res, err = h.resolver.Assign(ctx, areq)
	}
	if err != nil {
		if res != nil {
			response.ErrorWithData(c, err, NewAssignResponse(res, req.Mode))
			return
		}
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewAssignResponse(res, req.Mode))
}
