package hold

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nekogravitycat/court-booking-engine/internal/pkg/apperror"
)

var (
	ErrNotFound               = apperror.New(http.StatusNotFound, apperror.KindNotFound, "hold not found")
	ErrInvalidID              = apperror.New(http.StatusBadRequest, apperror.KindValidation, "hold id is required")
	ErrInvalidDate            = apperror.New(http.StatusBadRequest, apperror.KindValidation, "date must be formatted as YYYY-MM-DD")
	ErrInvalidRange           = apperror.New(http.StatusBadRequest, apperror.KindValidation, "hold must have a positive duration within one day")
	ErrInvalidPrice           = apperror.New(http.StatusBadRequest, apperror.KindValidation, "price must not be negative")
	ErrInvalidReason          = apperror.New(http.StatusBadRequest, apperror.KindValidation, "invalid cancellation reason")
	ErrCourtInactive          = apperror.New(http.StatusConflict, apperror.KindAllCourtsInactive, "court is not accepting bookings")
	ErrSlotNoLongerAvailable  = apperror.New(http.StatusConflict, apperror.KindSlotNoLongerAvailable, "the selected time is no longer available")
	ErrTimerExpired           = apperror.New(http.StatusGone, apperror.KindTimerExpired, "hold has expired")
	ErrPaymentNotSucceeded    = apperror.New(http.StatusPaymentRequired, apperror.KindPaymentGateway, "payment has not succeeded")
	ErrPaymentMismatch        = apperror.New(http.StatusBadRequest, apperror.KindValidation, "payment does not belong to this hold")
	ErrPaymentAmountMismatch  = apperror.New(http.StatusBadRequest, apperror.KindValidation, "payment amount does not match the hold price")
	ErrPriceMismatch          = apperror.New(http.StatusUnprocessableEntity, apperror.KindValidation, "price no longer matches the quoted price")
	ErrCancellationSuppressed = apperror.New(http.StatusConflict, apperror.KindConflict, "cancellation suppressed while a payment is in flight")
	ErrHoldStillActive        = apperror.New(http.StatusConflict, apperror.KindConflict, "hold has not reached its deadline")
	ErrNotHolding             = apperror.New(http.StatusConflict, apperror.KindConflict, "hold is no longer pending")
	ErrStoreWrite             = apperror.New(http.StatusServiceUnavailable, apperror.KindStoreWrite, "failed to write hold")
	ErrNotOwner               = apperror.New(http.StatusForbidden, apperror.KindForbidden, "hold belongs to another customer")
)

type Status string

const (
	StatusHolding   Status = "holding"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

func (s Status) Terminal() bool {
	return s == StatusConfirmed || s == StatusCancelled || s == StatusExpired
}

func (s Status) Valid() bool {
	return s == StatusHolding || s.Terminal()
}

// Reason tags why a hold left Holding without being confirmed.
type Reason string

const (
	ReasonUserNavigatedAway Reason = "user_navigated_away"
	ReasonUserCancelled     Reason = "user_cancelled"
	ReasonTimerExpired      Reason = "timer_expired"
	ReasonPaymentFailed     Reason = "payment_failed"
)

func (r Reason) Valid() bool {
	switch r {
	case ReasonUserNavigatedAway, ReasonUserCancelled, ReasonTimerExpired, ReasonPaymentFailed:
		return true
	}
	return false
}

// Hold is a court reservation pending payment. StartTime and EndTime are
// instants; Date is the venue-local day the range falls on, and StartMinutes
// and DurationMinutes are the wall-clock range on that day the slots cover.
type Hold struct {
	ID                 string
	CourtID            string
	CustomerID         string
	CustomerEmail      string
	Member             bool
	Date               string
	StartMinutes       int
	DurationMinutes    int
	StartTime          time.Time
	EndTime            time.Time
	Status             Status
	Price              decimal.Decimal
	PaymentIntentID    string
	IdempotencyKey     string
	CancellationReason Reason
	CreatedAt          time.Time
	LastActive         time.Time
	ExpiresAt          time.Time
	UpdatedAt          time.Time
}

// Deadline is the later of ExpiresAt and LastActive plus grace.
func (h *Hold) Deadline(grace time.Duration) time.Time {
	if d := h.LastActive.Add(grace); d.After(h.ExpiresAt) {
		return d
	}
	return h.ExpiresAt
}

// Elapsed reports whether a Holding hold has passed its deadline at now.
func (h *Hold) Elapsed(now time.Time, grace time.Duration) bool {
	return h.Status == StatusHolding && now.After(h.Deadline(grace))
}

// Clone returns a copy that can be mutated independently.
func (h *Hold) Clone() *Hold {
	c := *h
	return &c
}

type Filter struct {
	CustomerID string
	CourtID    string
	Status     Status
	Date       string
	Page       int
	PageSize   int
}

// PaymentResult is the gateway's verdict on a hold's payment. HoldID is the
// hold the intent was created for, as stamped in its metadata.
type PaymentResult struct {
	IntentID  string
	HoldID    string
	Amount    decimal.Decimal
	Succeeded bool
	Status    string
}
