package http

import (
	"time"

	"github.com/nekogravitycat/court-booking-engine/internal/court"
	"github.com/nekogravitycat/court-booking-engine/internal/pricing"
)

// CourtIDRequest binds the :id path parameter of court routes. Court ids are
// opaque strings rather than UUIDs.
type CourtIDRequest struct {
	ID string `uri:"id" binding:"required"`
}

// ListCourtsRequest defines query parameters for listing courts.
type ListCourtsRequest struct {
	Status    string `form:"status" binding:"omitempty,oneof=active maintenance inactive"`
	SportType string `form:"sport_type"`
}

type CourtResponse struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Status     string           `json:"status"`
	SportTypes []string         `json:"sport_types"`
	OpenTime   string           `json:"open_time,omitempty"`
	CloseTime  string           `json:"close_time,omitempty"`
	RatePlan   pricing.RatePlan `json:"rate_plan"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// CourtTag is the short form embedded in assignment and booking responses.
type CourtTag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func NewCourtResponse(c *court.Court) CourtResponse {
	sports := c.SportTypes
	if sports == nil {
		sports = []string{}
	}
	return CourtResponse{
		ID:         c.ID,
		Name:       c.Name,
		Status:     string(c.Status),
		SportTypes: sports,
		OpenTime:   c.OpenTime,
		CloseTime:  c.CloseTime,
		RatePlan:   c.RatePlan,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

func NewCourtTag(c *court.Court) *CourtTag {
	if c == nil {
		return nil
	}
	return &CourtTag{ID: c.ID, Name: c.Name}
}

// NewCourtTags never returns nil so lists encode as [].
func NewCourtTags(courts []*court.Court) []CourtTag {
	out := make([]CourtTag, 0, len(courts))
	for _, c := range courts {
		out = append(out, CourtTag{ID: c.ID, Name: c.Name})
	}
	return out
}
