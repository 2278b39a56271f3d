package booking

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/nekogravitycat/court-booking-engine/internal/assignment"
	"github.com/nekogravitycat/court-booking-engine/internal/court"
	"github.com/nekogravitycat/court-booking-engine/internal/hold"
	"github.com/nekogravitycat/court-booking-engine/internal/payment"
	"github.com/nekogravitycat/court-booking-engine/internal/pkg/apperror"
	"github.com/nekogravitycat/court-booking-engine/internal/pricing"
)

var (
	ErrInvalidDate      = apperror.New(http.StatusBadRequest, apperror.KindValidation, "date must be formatted as YYYY-MM-DD")
	ErrInvalidDuration  = apperror.New(http.StatusBadRequest, apperror.KindValidation, "duration must be positive and end by midnight")
	ErrNoPaymentStarted = apperror.New(http.StatusConflict, apperror.KindConflict, "no payment has been started for this hold")
)

// Session is the state of one customer's booking attempt. Callers keep it
// between steps and pass it back in; the flow holds no per-customer state.
type Session struct {
	Customer         pricing.Customer       `json:"customer"`
	Date             string                 `json:"date"`
	StartMinutes     int                    `json:"start_minutes"`
	DurationMinutes  int                    `json:"duration_minutes"`
	Strategy         assignment.Strategy    `json:"strategy"`
	Preferences      assignment.Preferences `json:"preferences"`
	TentativeCourtID string                 `json:"tentative_court_id,omitempty"`
	HoldID           string                 `json:"hold_id,omitempty"`
}

// Preview is what the customer sees before committing to a duration. Court is
// nil when nothing could be assigned; Estimate then carries an averaged price.
type Preview struct {
	Session      Session
	Court        *court.Court
	Prices       []pricing.DurationPrice
	Estimate     *pricing.Estimate
	Alternatives []*court.Court
	Message      string
}

// Reservation is the outcome of Reserve. On an assignment failure Hold is nil
// and Alternatives may list courts free for a shorter booking.
type Reservation struct {
	Session      Session
	Court        *court.Court
	Price        decimal.Decimal
	Hold         *hold.Hold
	Alternatives []*court.Court
	Message      string
}

type PaymentStart struct {
	Hold   *hold.Hold
	Intent *payment.Intent
}
