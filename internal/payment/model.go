package payment

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/nekogravitycat/court-booking-engine/internal/pkg/apperror"
)

var (
	ErrGateway              = apperror.New(http.StatusBadGateway, apperror.KindPaymentGateway, "payment gateway error")
	ErrIntentNotFound       = apperror.New(http.StatusNotFound, apperror.KindNotFound, "payment intent not found")
	ErrInvalidAmount        = apperror.New(http.StatusBadRequest, apperror.KindValidation, "payment amount must be positive")
	ErrInvalidSignature     = apperror.New(http.StatusBadRequest, apperror.KindValidation, "invalid webhook signature")
	ErrWebhookNotConfigured = apperror.New(http.StatusServiceUnavailable, apperror.KindPaymentGateway, "payment webhook not configured")
)

// Status mirrors the gateway's payment intent states.
type Status string

const (
	StatusRequiresPaymentMethod Status = "requires_payment_method"
	StatusRequiresConfirmation  Status = "requires_confirmation"
	StatusRequiresAction        Status = "requires_action"
	StatusProcessing            Status = "processing"
	StatusSucceeded             Status = "succeeded"
	StatusCanceled              Status = "canceled"
)

// Metadata keys stamped on every intent so webhooks can find their hold.
const (
	MetadataHoldID  = "hold_id"
	MetadataCourtID = "court_id"
)

type Intent struct {
	ID             string
	ClientSecret   string
	Amount         decimal.Decimal
	Currency       string
	Status         Status
	IdempotencyKey string
	Metadata       map[string]string
}

func (i *Intent) Succeeded() bool {
	return i.Status == StatusSucceeded
}

type CreateParams struct {
	Amount         decimal.Decimal
	Currency       string
	IdempotencyKey string
	Description    string
	Metadata       map[string]string
}

// Gateway is the external payment service. CreateIntent with an idempotency
// key already seen returns the original intent.
type Gateway interface {
	CreateIntent(ctx context.Context, params CreateParams) (*Intent, error)
	GetIntent(ctx context.Context, id string) (*Intent, error)
	CancelIntent(ctx context.Context, id string) error
}

// WebhookEvent is a verified gateway notification about an intent.
type WebhookEvent struct {
	ID       string
	Type     string
	IntentID string
	Status   Status
	Metadata map[string]string
}

const (
	EventIntentSucceeded = "payment_intent.succeeded"
	EventIntentFailed    = "payment_intent.payment_failed"
	EventIntentCanceled  = "payment_intent.canceled"
)

type WebhookParser interface {
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}

// MinorUnits converts an amount to the currency's smallest unit, assuming two decimals.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// FromMinorUnits is the inverse of MinorUnits.
func FromMinorUnits(units int64) decimal.Decimal {
	return decimal.New(units, -2)
}
