package http

import "github.com/nekogravitycat/court-booking-engine/internal/availability"

type DateQuery struct {
	Date string `form:"date" binding:"required"`
}

// RangeQuery is the query of GET /courts/:id/availability/range.
// Start is "HH:MM" in the venue timezone.
type RangeQuery struct {
	Date     string `form:"date" binding:"required"`
	Start    string `form:"start" binding:"required"`
	Duration int    `form:"duration" binding:"required,min=1"`
}

type CourtAvailabilityResponse struct {
	CourtID string             `json:"court_id"`
	Date    string             `json:"date"`
	Slots   availability.Slots `json:"slots"`
}

type AllCourtsAvailabilityResponse struct {
	Date   string                        `json:"date"`
	Courts map[string]availability.Slots `json:"courts"`
}

type RangeAvailabilityResponse struct {
	CourtID         string `json:"court_id"`
	Date            string `json:"date"`
	Start           string `json:"start"`
	DurationMinutes int    `json:"duration_minutes"`
	Available       bool   `json:"available"`
}
