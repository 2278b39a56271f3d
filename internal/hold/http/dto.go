package http

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/nekogravitycat/court-booking-engine/internal/hold"
	"github.com/nekogravitycat/court-booking-engine/internal/pkg/request"
)

// CreateHoldRequest is the payload for POST /holds. Price is the quoted price;
// confirmation recomputes it and rejects a mismatch.
type CreateHoldRequest struct {
	CourtID         string           `json:"court_id" binding:"required"`
	Date            string           `json:"date" binding:"required"`
	StartTime       string           `json:"start_time" binding:"required"`
	DurationMinutes int              `json:"duration_minutes" binding:"required,min=1"`
	Price           *decimal.Decimal `json:"price" binding:"required"`
}

// ListHoldsRequest defines query parameters for listing the caller's holds.
type ListHoldsRequest struct {
	request.ListParams
	CourtID string `form:"court_id"`
	Status  string `form:"status" binding:"omitempty,oneof=holding confirmed cancelled expired"`
	Date    string `form:"date"`
}

type HoldResponse struct {
	ID                 string          `json:"id"`
	CourtID            string          `json:"court_id"`
	CustomerID         string          `json:"customer_id"`
	Date               string          `json:"date"`
	StartTime          time.Time       `json:"start_time"`
	EndTime            time.Time       `json:"end_time"`
	Status             string          `json:"status"`
	Price              decimal.Decimal `json:"price"`
	PaymentIntentID    string          `json:"payment_intent_id,omitempty"`
	CancellationReason string          `json:"cancellation_reason,omitempty"`
	ExpiresAt          time.Time       `json:"expires_at"`
	Deadline           time.Time       `json:"deadline"`
	LastActive         time.Time       `json:"last_active"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// NewHoldResponse renders h with its effective deadline, which clients use
// for the countdown.
func NewHoldResponse(h *hold.Hold, deadline time.Time) HoldResponse {
	return HoldResponse{
		ID:                 h.ID,
		CourtID:            h.CourtID,
		CustomerID:         h.CustomerID,
		Date:               h.Date,
		StartTime:          h.StartTime,
		EndTime:            h.EndTime,
		Status:             string(h.Status),
		Price:              h.Price,
		PaymentIntentID:    h.PaymentIntentID,
		CancellationReason: string(h.CancellationReason),
		ExpiresAt:          h.ExpiresAt,
		Deadline:           deadline,
		LastActive:         h.LastActive,
		CreatedAt:          h.CreatedAt,
		UpdatedAt:          h.UpdatedAt,
	}
}
