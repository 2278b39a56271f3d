package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nekogravitycat/court-booking-engine/internal/assignment"
	"github.com/nekogravitycat/court-booking-engine/internal/court"
	"github.com/nekogravitycat/court-booking-engine/internal/hold"
	"github.com/nekogravitycat/court-booking-engine/internal/payment"
	"github.com/nekogravitycat/court-booking-engine/internal/pkg/apperror"
	"github.com/nekogravitycat/court-booking-engine/internal/pkg/timeutil"
	"github.com/nekogravitycat/court-booking-engine/internal/pricing"
)

// Service runs the customer booking flow: preview, reserve, pay, confirm.
type Service interface {
	Preview(ctx context.Context, s Session) (*Preview, error)
	Reserve(ctx context.Context, s Session) (*Reservation, error)
	StartPayment(ctx context.Context, holdID string, customer pricing.Customer) (*PaymentStart, error)
	Confirm(ctx context.Context, holdID, intentID string, customer *pricing.Customer) (*hold.Hold, error)
	Cancel(ctx context.Context, holdID string, reason hold.Reason, customer pricing.Customer) (*hold.Hold, error)
	Heartbeat(ctx context.Context, holdID string, customer pricing.Customer) (*hold.Hold, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

type Deps struct {
	Courts   court.Service
	Resolver *assignment.Resolver
	Pricer   *pricing.Calculator
	Holds    hold.Service
	Gateway  payment.Gateway
	Webhooks payment.WebhookParser
	Currency string
}

type service struct {
	courts   court.Service
	resolver *assignment.Resolver
	pricer   *pricing.Calculator
	holds    hold.Service
	gateway  payment.Gateway
	webhooks payment.WebhookParser
	currency string
}

func NewService(d Deps) Service {
	if d.Currency == "" {
		d.Currency = "usd"
	}
	return &service{
		courts:   d.Courts,
		resolver: d.Resolver,
		pricer:   d.Pricer,
		holds:    d.Holds,
		gateway:  d.Gateway,
		webhooks: d.Webhooks,
		currency: d.Currency,
	}
}

func (s *service) startOf(sess Session) (time.Time, error) {
	day, err := timeutil.ParseDate(sess.Date, s.pricer.Location())
	if err != nil {
		return time.Time{}, apperror.Wrap(ErrInvalidDate, err)
	}
	return timeutil.At(day, sess.StartMinutes), nil
}

func (s *service) request(sess Session, candidates []*court.Court) assignment.Request {
	return assignment.Request{
		Date:             sess.Date,
		StartMinutes:     sess.StartMinutes,
		DurationMinutes:  sess.DurationMinutes,
		Candidates:       candidates,
		Strategy:         sess.Strategy,
		Preferences:      sess.Preferences,
		TentativeCourtID: sess.TentativeCourtID,
	}
}

// Preview assigns a court tentatively and prices the standard durations on it.
// When no court can be assigned it falls back to an averaged estimate.
func (s *service) Preview(ctx context.Context, sess Session) (*Preview, error) {
	start, err := s.startOf(sess)
	if err != nil {
		return nil, err
	}
	candidates, err := s.courts.List(ctx, court.Filter{})
	if err != nil {
		return nil, err
	}

	res, err := s.resolver.AssignTentative(ctx, s.request(sess, candidates))
	if err != nil {
		if !errors.Is(err, assignment.ErrNoCourtsAvailable) || res == nil {
			return nil, err
		}
		duration := sess.DurationMinutes
		if duration <= 0 {
			duration = assignment.ProbeMinutes
		}
		est, estErr := s.pricer.EstimatePrice(court.AsPricing(candidates), start, start.Add(time.Duration(duration)*time.Minute), &sess.Customer)
		if estErr != nil {
			return nil, err
		}
		return &Preview{
			Session:      sess,
			Estimate:     &est,
			Alternatives: res.AlternativeCourts,
			Message:      res.Message,
		}, nil
	}

	prices, err := s.pricer.StandardDurationPrices(res.SelectedCourt, start, &sess.Customer)
	if err != nil {
		return nil, err
	}
	sess.TentativeCourtID = res.SelectedCourt.ID
	return &Preview{
		Session: sess,
		Court:   res.SelectedCourt,
		Prices:  prices,
		Message: res.Message,
	}, nil
}

// Reserve assigns a court for the chosen duration, prices it and places a hold.
func (s *service) Reserve(ctx context.Context, sess Session) (*Reservation, error) {
	if sess.DurationMinutes <= 0 || sess.StartMinutes < 0 || sess.StartMinutes+sess.DurationMinutes > timeutil.MinutesInDay {
		return nil, ErrInvalidDuration
	}
	start, err := s.startOf(sess)
	if err != nil {
		return nil, err
	}
	candidates, err := s.courts.List(ctx, court.Filter{})
	if err != nil {
		return nil, err
	}

	res, err := s.resolver.Assign(ctx, s.request(sess, candidates))
	if err != nil {
		if res == nil {
			return nil, err
		}
		return &Reservation{Session: sess, Alternatives: res.AlternativeCourts, Message: res.Message}, err
	}
	selected := res.SelectedCourt

	end := start.Add(time.Duration(sess.DurationMinutes) * time.Minute)
	price, err := s.pricer.CalculatePrice(selected.RatePlan, start, end, &sess.Customer)
	if err != nil {
		return nil, err
	}

	h, err := s.holds.CreateHold(ctx, hold.CreateRequest{
		CourtID:         selected.ID,
		Customer:        sess.Customer,
		Date:            sess.Date,
		StartMinutes:    sess.StartMinutes,
		DurationMinutes: sess.DurationMinutes,
		Price:           price,
	})
	if err != nil {
		return nil, err
	}

	sess.TentativeCourtID = selected.ID
	sess.HoldID = h.ID
	log.Ctx(ctx).Info().Str("hold_id", h.ID).Str("court_id", selected.ID).Bool("reused_tentative", res.Reused).Msg("Court reserved")
	return &Reservation{Session: sess, Court: selected, Price: price, Hold: h, Message: res.Message}, nil
}

func (s *service) owned(ctx context.Context, holdID string, customer *pricing.Customer) (*hold.Hold, error) {
	h, err := s.holds.Get(ctx, holdID)
	if err != nil {
		return nil, err
	}
	if customer != nil && h.CustomerID != customer.ID {
		return nil, hold.ErrNotOwner
	}
	return h, nil
}

// StartPayment creates, or reuses, the payment intent of a Holding hold.
func (s *service) StartPayment(ctx context.Context, holdID string, customer pricing.Customer) (*PaymentStart, error) {
	h, err := s.owned(ctx, holdID, &customer)
	if err != nil {
		return nil, err
	}
	switch {
	case h.Status == hold.StatusExpired:
		return nil, hold.ErrTimerExpired
	case h.Status != hold.StatusHolding:
		return nil, hold.ErrNotHolding
	}

	if h.PaymentIntentID != "" {
		intent, err := s.gateway.GetIntent(ctx, h.PaymentIntentID)
		if err != nil {
			return nil, err
		}
		if intent.Status != payment.StatusCanceled {
			return &PaymentStart{Hold: h, Intent: intent}, nil
		}
	}

	key := s.holds.PaymentKey(h)
	intent, err := s.gateway.CreateIntent(ctx, payment.CreateParams{
		Amount:         h.Price,
		Currency:       s.currency,
		IdempotencyKey: key,
		Description:    fmt.Sprintf("Court %s on %s", h.CourtID, h.Date),
		Metadata: map[string]string{
			payment.MetadataHoldID:  h.ID,
			payment.MetadataCourtID: h.CourtID,
		},
	})
	if err != nil {
		return nil, err
	}

	h, err = s.holds.AttachPayment(ctx, h.ID, intent.ID, key)
	if err != nil {
		if errors.Is(err, hold.ErrTimerExpired) || errors.Is(err, hold.ErrNotHolding) {
			if cancelErr := s.gateway.CancelIntent(ctx, intent.ID); cancelErr != nil {
				log.Ctx(ctx).Warn().Err(cancelErr).Str("payment_intent_id", intent.ID).Msg("Failed to cancel intent of a closed hold")
			}
		}
		return nil, err
	}
	return &PaymentStart{Hold: h, Intent: intent}, nil
}

// Confirm reads the intent's state from the gateway and confirms the hold with
// it. The intent must be in the flow's currency and, unless it is the hold's
// attached intent, must have been created for the hold. A nil customer skips
// the ownership check, as webhooks do.
func (s *service) Confirm(ctx context.Context, holdID, intentID string, customer *pricing.Customer) (*hold.Hold, error) {
	h, err := s.owned(ctx, holdID, customer)
	if err != nil {
		return nil, err
	}
	if intentID == "" {
		intentID = h.PaymentIntentID
	}
	if intentID == "" {
		return nil, ErrNoPaymentStarted
	}

	intent, err := s.gateway.GetIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	owner := intent.Metadata[payment.MetadataHoldID]
	if owner != "" && owner != h.ID {
		return nil, hold.ErrPaymentMismatch
	}
	if !strings.EqualFold(intent.Currency, s.currency) {
		return nil, apperror.Wrap(hold.ErrPaymentAmountMismatch, fmt.Errorf("intent currency %q, want %q", intent.Currency, s.currency))
	}
	return s.holds.ConfirmHold(ctx, h.ID, hold.PaymentResult{
		IntentID:  intent.ID,
		HoldID:    owner,
		Amount:    intent.Amount,
		Succeeded: intent.Succeeded(),
		Status:    string(intent.Status),
	})
}

func (s *service) Cancel(ctx context.Context, holdID string, reason hold.Reason, customer pricing.Customer) (*hold.Hold, error) {
	if _, err := s.owned(ctx, holdID, &customer); err != nil {
		return nil, err
	}
	return s.holds.CancelHold(ctx, holdID, reason)
}

func (s *service) Heartbeat(ctx context.Context, holdID string, customer pricing.Customer) (*hold.Hold, error) {
	h, err := s.holds.Get(ctx, holdID)
	if err != nil {
		return nil, err
	}
	if h.CustomerID != customer.ID {
		return nil, hold.ErrNotOwner
	}
	return s.holds.Heartbeat(ctx, holdID)
}

// HandleWebhook applies a verified gateway notification. Business outcomes
// such as a lost slot are logged and acknowledged; transient failures are
// returned so the gateway redelivers.
func (s *service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.webhooks == nil {
		return payment.ErrWebhookNotConfigured
	}
	evt, err := s.webhooks.ParseWebhook(payload, signature)
	if err != nil {
		return err
	}
	logger := log.Ctx(ctx).With().
		Str("event_id", evt.ID).
		Str("event_type", evt.Type).
		Str("payment_intent_id", evt.IntentID).
		Str("hold_id", evt.Metadata[payment.MetadataHoldID]).
		Logger()

	holdID := evt.Metadata[payment.MetadataHoldID]
	switch evt.Type {
	case payment.EventIntentSucceeded:
		if holdID == "" {
			logger.Warn().Msg("Payment succeeded for an intent without a hold")
			return nil
		}
		_, err := s.Confirm(ctx, holdID, evt.IntentID, nil)
		if err == nil {
			logger.Info().Msg("Hold confirmed from webhook")
			return nil
		}
		switch apperror.KindOf(err) {
		case apperror.KindStoreWrite, apperror.KindAvailabilityUnavailable, apperror.KindPaymentGateway, apperror.KindInternal:
			return err
		}
		// The customer paid for a hold that can no longer be confirmed.
		logger.Error().Err(err).Msg("Paid hold could not be confirmed; refund required")
		return nil
	case payment.EventIntentFailed:
		logger.Warn().Msg("Payment failed")
	case payment.EventIntentCanceled:
		logger.Info().Msg("Payment intent canceled")
	default:
		logger.Debug().Msg("Ignoring webhook event")
	}
	return nil
}
