package http

import (
	"github.com/nekogravitycat/court-booking-engine/internal/assignment"
	courtHttp "github.com/nekogravitycat/court-booking-engine/internal/court/http"
)

const (
	ModeTentative     = "tentative"
	ModeAuthoritative = "authoritative"
)

// AssignRequest is the payload for POST /assignments. CourtIDs narrows the
// candidate set; empty means every court.
type AssignRequest struct {
	Date             string                 `json:"date" binding:"required"`
	StartTime        string                 `json:"start_time" binding:"required"`
	DurationMinutes  int                    `json:"duration_minutes" binding:"omitempty,min=1"`
	Mode             string                 `json:"mode" binding:"omitempty,oneof=tentative authoritative"`
	Strategy         string                 `json:"strategy" binding:"omitempty,oneof=PREFERENCE_BASED FIRST_AVAILABLE"`
	Preferences      assignment.Preferences `json:"preferences"`
	TentativeCourtID string                 `json:"tentative_court_id"`
	CourtIDs         []string               `json:"court_ids"`
}

type AssignResponse struct {
	SelectedCourt     *courtHttp.CourtTag  `json:"selected_court"`
	AlternativeCourts []courtHttp.CourtTag `json:"alternative_courts"`
	Message           string               `json:"message"`
	Reused            bool                 `json:"reused"`
	Mode              string               `json:"mode"`
}

func NewAssignResponse(res *assignment.Result, mode string) AssignResponse {
	return AssignResponse{
		SelectedCourt:     courtHttp.NewCourtTag(res.SelectedCourt),
		AlternativeCourts: courtHttp.NewCourtTags(res.AlternativeCourts),
		Message:           res.Message,
		Reused:            res.Reused,
		Mode:              mode,
	}
}
