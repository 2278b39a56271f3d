package http

import (
	"github.com/shopspring/decimal"

	"github.com/nekogravitycat/court-booking-engine/internal/assignment"
	"github.com/nekogravitycat/court-booking-engine/internal/booking"
	courtHttp "github.com/nekogravitycat/court-booking-engine/internal/court/http"
	holdHttp "github.com/nekogravitycat/court-booking-engine/internal/hold/http"
	"github.com/nekogravitycat/court-booking-engine/internal/payment"
	pricingHttp "github.com/nekogravitycat/court-booking-engine/internal/pricing/http"
)

// SessionRequest carries the booking session between steps. The customer is
// always taken from the access token.
type SessionRequest struct {
	Date             string                 `json:"date" binding:"required"`
	StartTime        string                 `json:"start_time" binding:"required"`
	DurationMinutes  int                    `json:"duration_minutes" binding:"omitempty,min=1"`
	Strategy         string                 `json:"strategy" binding:"omitempty,oneof=PREFERENCE_BASED FIRST_AVAILABLE"`
	Preferences      assignment.Preferences `json:"preferences"`
	TentativeCourtID string                 `json:"tentative_court_id"`
}

type ConfirmRequest struct {
	PaymentIntentID string `json:"payment_intent_id"`
}

type CancelRequest struct {
	Reason string `json:"reason" binding:"omitempty,oneof=user_navigated_away user_cancelled"`
}

type SessionResponse struct {
	Date             string                 `json:"date"`
	StartTime        string                 `json:"start_time"`
	DurationMinutes  int                    `json:"duration_minutes,omitempty"`
	Strategy         string                 `json:"strategy,omitempty"`
	Preferences      assignment.Preferences `json:"preferences"`
	TentativeCourtID string                 `json:"tentative_court_id,omitempty"`
	HoldID           string                 `json:"hold_id,omitempty"`
}

type EstimateResponse struct {
	Price      decimal.Decimal `json:"price"`
	CourtCount int             `json:"court_count"`
	IsEstimate bool            `json:"is_estimate"`
}

type PreviewResponse struct {
	Session      SessionResponse                     `json:"session"`
	Court        *courtHttp.CourtTag                 `json:"court"`
	Prices       []pricingHttp.DurationPriceResponse `json:"prices"`
	Estimate     *EstimateResponse                   `json:"estimate,omitempty"`
	Alternatives []courtHttp.CourtTag                `json:"alternative_courts"`
	Message      string                              `json:"message,omitempty"`
}

type ReservationResponse struct {
	Session      SessionResponse        `json:"session"`
	Court        *courtHttp.CourtTag    `json:"court"`
	Price        decimal.Decimal        `json:"price"`
	Hold         *holdHttp.HoldResponse `json:"hold,omitempty"`
	Alternatives []courtHttp.CourtTag   `json:"alternative_courts"`
	Message      string                 `json:"message,omitempty"`
}

type IntentResponse struct {
	ID           string          `json:"id"`
	ClientSecret string          `json:"client_secret"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	Status       string          `json:"status"`
}

type PaymentResponse struct {
	Hold          holdHttp.HoldResponse `json:"hold"`
	PaymentIntent IntentResponse        `json:"payment_intent"`
}

func NewSessionResponse(s booking.Session, startTime string) SessionResponse {
	return SessionResponse{
		Date:             s.Date,
		StartTime:        startTime,
		DurationMinutes:  s.DurationMinutes,
		Strategy:         string(s.Strategy),
		Preferences:      s.Preferences,
		TentativeCourtID: s.TentativeCourtID,
		HoldID:           s.HoldID,
	}
}

func NewIntentResponse(i *payment.Intent) IntentResponse {
	return IntentResponse{
		ID:           i.ID,
		ClientSecret: i.ClientSecret,
		Amount:       i.Amount,
		Currency:     i.Currency,
		Status:       string(i.Status),
	}
}
