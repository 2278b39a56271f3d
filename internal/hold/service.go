package hold

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/nekogravitycat/court-booking-engine/internal/court"
	"github.com/nekogravitycat/court-booking-engine/internal/events"
	"github.com/nekogravitycat/court-booking-engine/internal/payment"
	"github.com/nekogravitycat/court-booking-engine/internal/pkg/apperror"
	"github.com/nekogravitycat/court-booking-engine/internal/pkg/timeutil"
	"github.com/nekogravitycat/court-booking-engine/internal/pricing"
)

const sweepBatch = 100

// SlotIndex is the part of the availability index the lifecycle reads and writes.
type SlotIndex interface {
	IsCourtRangeAvailable(ctx context.Context, c *court.Court, date string, startMinutes, durationMinutes int) (bool, error)
	MarkRange(ctx context.Context, courtID, date string, startMinutes, durationMinutes int, available bool) error
}

// IntentCanceller releases an upstream payment intent.
type IntentCanceller interface {
	CancelIntent(ctx context.Context, intentID string) error
}

type CreateRequest struct {
	CourtID         string
	Customer        pricing.Customer
	Date            string
	StartMinutes    int
	DurationMinutes int
	Price           decimal.Decimal
}

// Options tunes the lifecycle. Zero durations fall back to a 5 minute TTL, a
// 60 second grace window and a 10 second idempotency bucket.
type Options struct {
	TTL               time.Duration
	Grace             time.Duration
	IdempotencyBucket time.Duration
	Clock             clockwork.Clock
	Publisher         events.Publisher
	Intents           IntentCanceller
}

type Service interface {
	CreateHold(ctx context.Context, req CreateRequest) (*Hold, error)
	// Get returns a hold, expiring it first if its deadline has passed.
	Get(ctx context.Context, id string) (*Hold, error)
	List(ctx context.Context, filter Filter) ([]*Hold, int, error)
	Heartbeat(ctx context.Context, id string) (*Hold, error)
	ConfirmHold(ctx context.Context, id string, result PaymentResult) (*Hold, error)
	CancelHold(ctx context.Context, id string, reason Reason) (*Hold, error)
	Expire(ctx context.Context, id string) (*Hold, error)
	SweepExpired(ctx context.Context) (int, error)
	AttachPayment(ctx context.Context, id, intentID, idempotencyKey string) (*Hold, error)
	PaymentKey(h *Hold) string
	Deadline(h *Hold) time.Time
}

type service struct {
	repo      Repository
	courts    court.Service
	slots     SlotIndex
	pricer    *pricing.Calculator
	clock     clockwork.Clock
	publisher events.Publisher
	intents   IntentCanceller
	ttl       time.Duration
	grace     time.Duration
	bucket    time.Duration
}

func NewService(repo Repository, courts court.Service, slots SlotIndex, pricer *pricing.Calculator, opts Options) Service {
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Minute
	}
	if opts.Grace <= 0 {
		opts.Grace = 60 * time.Second
	}
	if opts.IdempotencyBucket <= 0 {
		opts.IdempotencyBucket = DefaultIdempotencyBucket
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Publisher == nil {
		opts.Publisher = events.Nop{}
	}
	return &service{
		repo:      repo,
		courts:    courts,
		slots:     slots,
		pricer:    pricer,
		clock:     opts.Clock,
		publisher: opts.Publisher,
		intents:   opts.Intents,
		ttl:       opts.TTL,
		grace:     opts.Grace,
		bucket:    opts.IdempotencyBucket,
	}
}

func holdLogger(ctx context.Context, h *Hold) *zerolog.Logger {
	l := log.Ctx(ctx).With().Str("hold_id", h.ID).Str("court_id", h.CourtID).Logger()
	return &l
}

// span returns the hold's wall-clock range on its venue-local date.
func (s *service) span(h *Hold) (int, int) {
	return h.StartMinutes, h.DurationMinutes
}

func (s *service) publish(ctx context.Context, typ events.Type, h *Hold) {
	evt := events.New(typ, h.CourtID, h.Date, s.clock.Now())
	evt.HoldID = h.ID
	evt.Data = map[string]any{
		"status":     string(h.Status),
		"start_time": h.StartTime.UTC().Format(time.RFC3339),
		"end_time":   h.EndTime.UTC().Format(time.RFC3339),
	}
	if h.CancellationReason != "" {
		evt.Data["reason"] = string(h.CancellationReason)
	}
	events.PublishBestEffort(ctx, s.publisher, evt)
}

func (s *service) CreateHold(ctx context.Context, req CreateRequest) (*Hold, error) {
	if strings.TrimSpace(req.CourtID) == "" {
		return nil, court.ErrInvalidID
	}
	if req.DurationMinutes <= 0 || req.StartMinutes < 0 || req.StartMinutes+req.DurationMinutes > timeutil.MinutesInDay {
		return nil, ErrInvalidRange
	}
	if req.Price.IsNegative() {
		return nil, ErrInvalidPrice
	}
	day, err := timeutil.ParseDate(req.Date, s.pricer.Location())
	if err != nil {
		return nil, apperror.Wrap(ErrInvalidDate, err)
	}

	c, err := s.courts.GetByID(ctx, req.CourtID)
	if err != nil {
		return nil, err
	}
	if !c.Active() {
		return nil, ErrCourtInactive
	}
	free, err := s.slots.IsCourtRangeAvailable(ctx, c, req.Date, req.StartMinutes, req.DurationMinutes)
	if err != nil {
		return nil, err
	}
	if !free {
		return nil, ErrSlotNoLongerAvailable
	}

	now := s.clock.Now()
	h := &Hold{
		CourtID:         c.ID,
		CustomerID:      req.Customer.ID,
		CustomerEmail:   req.Customer.Email,
		Member:          req.Customer.Member,
		Date:            req.Date,
		StartMinutes:    req.StartMinutes,
		DurationMinutes: req.DurationMinutes,
		StartTime:       timeutil.At(day, req.StartMinutes),
		EndTime:         timeutil.At(day, req.StartMinutes+req.DurationMinutes),
		Status:          StatusHolding,
		Price:           req.Price.Round(2),
		CreatedAt:       now,
		LastActive:      now,
		ExpiresAt:       now.Add(s.ttl),
		UpdatedAt:       now,
	}
	if err := s.repo.Create(ctx, h); err != nil {
		return nil, apperror.Wrap(ErrStoreWrite, err)
	}

	holdLogger(ctx, h).Info().Time("expires_at", h.ExpiresAt).Msg("Hold created")
	s.publish(ctx, events.HoldCreated, h)
	return h, nil
}

func (s *service) Get(ctx context.Context, id string) (*Hold, error) {
	h, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if h.Elapsed(s.clock.Now(), s.grace) {
		return s.expire(ctx, h)
	}
	return h, nil
}

func (s *service) List(ctx context.Context, filter Filter) ([]*Hold, int, error) {
	return s.repo.List(ctx, filter)
}

func (s *service) load(ctx context.Context, id string) (*Hold, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrInvalidID
	}
	return s.repo.GetByID(ctx, id)
}

func (s *service) Heartbeat(ctx context.Context, id string) (*Hold, error) {
	h, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	switch {
	case h.Status == StatusExpired:
		return h, ErrTimerExpired
	case h.Status.Terminal():
		return h, ErrNotHolding
	}

	now := s.clock.Now()
	if h.Elapsed(now, s.grace) {
		expired, err := s.expire(ctx, h)
		if err != nil {
			return nil, err
		}
		return expired, ErrTimerExpired
	}

	if err := s.repo.Touch(ctx, h.ID, now); err != nil {
		if errors.Is(err, ErrNotHolding) || errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, apperror.Wrap(ErrStoreWrite, err)
	}
	h.LastActive = now
	h.UpdatedAt = now
	return h, nil
}

// ConfirmHold takes a Holding hold with a successful payment to Confirmed. The
// store write is the only authoritative overlap check; the availability read
// before it only rejects early.
func (s *service) ConfirmHold(ctx context.Context, id string, result PaymentResult) (*Hold, error) {
	h, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	logger := holdLogger(ctx, h)

	switch h.Status {
	case StatusConfirmed:
		if result.IntentID != "" && result.IntentID == h.PaymentIntentID {
			return h, nil
		}
		return h, ErrNotHolding
	case StatusExpired:
		return h, ErrTimerExpired
	case StatusCancelled:
		return h, ErrNotHolding
	}

	if !result.Succeeded {
		logger.Warn().Str("payment_status", result.Status).Msg("Confirmation attempted without a successful payment")
		return h, ErrPaymentNotSucceeded
	}
	// An attached intent is the only one accepted; without one the intent must
	// have been created for this hold.
	if h.PaymentIntentID != "" && result.IntentID != h.PaymentIntentID {
		return h, ErrPaymentMismatch
	}
	if h.PaymentIntentID == "" && result.HoldID != h.ID {
		logger.Warn().Str("payment_intent_id", result.IntentID).Str("intent_hold_id", result.HoldID).Msg("Payment intent was created for another hold")
		return h, ErrPaymentMismatch
	}
	if payment.MinorUnits(result.Amount) != payment.MinorUnits(h.Price) {
		logger.Warn().Str("payment_intent_id", result.IntentID).Str("amount", result.Amount.String()).Str("price", h.Price.String()).Msg("Payment amount differs from the hold price")
		return h, ErrPaymentAmountMismatch
	}

	if h.Elapsed(s.clock.Now(), s.grace) {
		expired, err := s.expire(ctx, h)
		if err != nil {
			return nil, err
		}
		return expired, ErrTimerExpired
	}

	c, err := s.courts.GetByID(ctx, h.CourtID)
	if err != nil {
		return nil, err
	}
	start, duration := s.span(h)
	free, err := s.slots.IsCourtRangeAvailable(ctx, c, h.Date, start, duration)
	if err != nil {
		return nil, err
	}
	if !free {
		logger.Info().Msg("Slot taken before confirmation")
		return h, ErrSlotNoLongerAvailable
	}

	price, err := s.pricer.CalculatePrice(c.RatePlan, h.StartTime, h.EndTime, &pricing.Customer{
		ID:     h.CustomerID,
		Email:  h.CustomerEmail,
		Member: h.Member,
	})
	if err != nil {
		return nil, err
	}
	if !pricing.Matches(price, h.Price) {
		logger.Warn().Str("stored_price", h.Price.String()).Str("recomputed_price", price.String()).Msg("Price changed since the hold was created")
		return h, ErrPriceMismatch
	}

	confirmed, err := s.repo.Confirm(ctx, h.ID, s.clock.Now(), s.grace)
	if err != nil {
		switch {
		case errors.Is(err, ErrSlotNoLongerAvailable):
			logger.Info().Msg("Overlapping hold confirmed first")
			return h, err
		case errors.Is(err, ErrTimerExpired):
			logger.Info().Msg("Hold deadline passed before the confirmation write")
			expired, expireErr := s.expire(ctx, h)
			if expireErr != nil {
				return nil, expireErr
			}
			return expired, ErrTimerExpired
		case errors.Is(err, ErrNotHolding), errors.Is(err, ErrNotFound):
			return nil, err
		}
		return nil, apperror.Wrap(ErrStoreWrite, err)
	}

	if err := s.slots.MarkRange(ctx, confirmed.CourtID, confirmed.Date, start, duration, false); err != nil {
		logger.Warn().Err(err).Msg("Failed to mark confirmed slots unavailable")
	}
	logger.Info().Str("payment_intent_id", confirmed.PaymentIntentID).Msg("Hold confirmed")
	s.publish(ctx, events.HoldConfirmed, confirmed)
	return confirmed, nil
}

func (s *service) CancelHold(ctx context.Context, id string, reason Reason) (*Hold, error) {
	if reason == "" {
		reason = ReasonUserCancelled
	}
	if !reason.Valid() {
		return nil, ErrInvalidReason
	}
	h, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	switch {
	case h.Status == StatusCancelled:
		return h, nil
	case h.Status.Terminal():
		return h, ErrNotHolding
	}

	// A payment may still complete asynchronously; leave the hold for
	// reconciliation by confirmation or expiry.
	if reason == ReasonUserNavigatedAway && h.PaymentIntentID != "" {
		holdLogger(ctx, h).Info().Str("payment_intent_id", h.PaymentIntentID).Msg("Cancellation suppressed while payment is in flight")
		return h, ErrCancellationSuppressed
	}

	cancelled, err := s.transition(ctx, h, StatusCancelled, reason)
	if err != nil {
		return nil, err
	}
	s.releaseIntent(ctx, cancelled)
	holdLogger(ctx, cancelled).Info().Str("reason", string(reason)).Msg("Hold cancelled")
	s.publish(ctx, events.HoldCancelled, cancelled)
	return cancelled, nil
}

func (s *service) Expire(ctx context.Context, id string) (*Hold, error) {
	h, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if h.Status.Terminal() {
		return h, nil
	}
	if !h.Elapsed(s.clock.Now(), s.grace) {
		return h, ErrHoldStillActive
	}
	return s.expire(ctx, h)
}

func (s *service) expire(ctx context.Context, h *Hold) (*Hold, error) {
	expired, err := s.transition(ctx, h, StatusExpired, ReasonTimerExpired)
	if err != nil {
		if errors.Is(err, ErrNotHolding) {
			// Someone else moved it first; report what the store holds now.
			return s.repo.GetByID(ctx, h.ID)
		}
		return nil, err
	}
	s.releaseIntent(ctx, expired)
	holdLogger(ctx, expired).Info().Msg("Hold expired")
	s.publish(ctx, events.HoldExpired, expired)
	return expired, nil
}

// transition writes a Holding to terminal change, retrying once. When the retry
// also fails the change is reported as applied and left to the sweep.
func (s *service) transition(ctx context.Context, h *Hold, to Status, reason Reason) (*Hold, error) {
	logger := holdLogger(ctx, h)
	now := s.clock.Now()

	var err error
	for attempt := 0; attempt < 2; attempt++ {
		var updated *Hold
		updated, err = s.repo.Transition(ctx, h.ID, to, reason, now)
		if err == nil {
			return updated, nil
		}
		if errors.Is(err, ErrNotHolding) || errors.Is(err, ErrNotFound) {
			return nil, err
		}
		logger.Warn().Err(err).Int("attempt", attempt+1).Str("to", string(to)).Msg("Hold transition write failed")
	}

	logger.Warn().Err(err).Str("to", string(to)).Msg("Proceeding without a persisted transition; the expiry sweep will reconcile")
	local := h.Clone()
	local.Status = to
	local.CancellationReason = reason
	local.UpdatedAt = now
	return local, nil
}

// releaseIntent cancels the upstream intent of a hold that will never be
// confirmed. Failures are logged only.
func (s *service) releaseIntent(ctx context.Context, h *Hold) {
	if s.intents == nil || h.PaymentIntentID == "" {
		return
	}
	if err := s.intents.CancelIntent(ctx, h.PaymentIntentID); err != nil {
		holdLogger(ctx, h).Warn().Err(err).Str("payment_intent_id", h.PaymentIntentID).Msg("Failed to cancel payment intent")
	}
}

// SweepExpired expires every Holding hold past its deadline and returns how many it expired.
func (s *service) SweepExpired(ctx context.Context) (int, error) {
	holds, err := s.repo.ListElapsed(ctx, s.clock.Now(), s.grace, sweepBatch)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, h := range holds {
		expired, err := s.expire(ctx, h)
		if err != nil {
			holdLogger(ctx, h).Error().Err(err).Msg("Failed to expire hold during sweep")
			continue
		}
		if expired.Status == StatusExpired {
			n++
		}
	}
	if n > 0 {
		log.Ctx(ctx).Info().Int("expired", n).Msg("Expired stale holds")
	}
	return n, nil
}

func (s *service) AttachPayment(ctx context.Context, id, intentID, idempotencyKey string) (*Hold, error) {
	h, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if h.Elapsed(s.clock.Now(), s.grace) {
		expired, err := s.expire(ctx, h)
		if err != nil {
			return nil, err
		}
		return expired, ErrTimerExpired
	}
	updated, err := s.repo.AttachPayment(ctx, h.ID, intentID, idempotencyKey, s.clock.Now())
	if err != nil {
		if errors.Is(err, ErrNotHolding) || errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, apperror.Wrap(ErrStoreWrite, err)
	}
	return updated, nil
}

func (s *service) PaymentKey(h *Hold) string {
	return IdempotencyKey(h, h.CustomerEmail, s.clock.Now(), s.bucket)
}

func (s *service) Deadline(h *Hold) time.Time {
	return h.Deadline(s.grace)
}
