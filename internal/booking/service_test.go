package booking

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/court-booking-engine/internal/assignment"
	"github.com/nekogravitycat/court-booking-engine/internal/availability"
	"github.com/nekogravitycat/court-booking-engine/internal/court"
	"github.com/nekogravitycat/court-booking-engine/internal/hold"
	"github.com/nekogravitycat/court-booking-engine/internal/payment"
	"github.com/nekogravitycat/court-booking-engine/internal/pricing"
)

const (
	testDate      = "2026-02-09"
	webhookSecret = "whsec_test"
)

var (
	ana = pricing.Customer{ID: "cust-ana", Email: "ana@example.com"}
	ben = pricing.Customer{ID: "cust-ben", Email: "ben@example.com"}
)

type fixture struct {
	flow    Service
	holds   hold.Service
	index   *availability.Index
	gateway *payment.MemoryGateway
	clock   clockwork.FakeClock
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	courts, err := court.NewMemoryRepository(
		&court.Court{ID: "c1", Name: "Centre", Status: court.StatusActive, SportTypes: []string{"tennis"}, RatePlan: pricing.RatePlan{BaseHourlyRate: decimal.NewFromInt(20)}},
		&court.Court{ID: "c2", Name: "North", Status: court.StatusActive, SportTypes: []string{"padel"}, RatePlan: pricing.RatePlan{BaseHourlyRate: decimal.NewFromInt(30)}},
		&court.Court{ID: "c3", Name: "Annex", Status: court.StatusMaintenance, RatePlan: pricing.RatePlan{BaseHourlyRate: decimal.NewFromInt(10)}},
	)
	require.NoError(t, err)
	courtSvc := court.NewService(courts)

	clock := clockwork.NewFakeClockAt(time.Date(2026, 2, 9, 8, 0, 0, 0, time.UTC))
	index, err := availability.NewIndex(courtSvc, availability.NewMemorySlotRepository(), availability.Options{Clock: clock})
	require.NoError(t, err)

	pricer := pricing.NewCalculator(time.UTC)
	gateway := payment.NewMemoryGateway(webhookSecret)
	holds := hold.NewService(hold.NewMemoryRepository(), courtSvc, index, pricer, hold.Options{
		TTL:     2 * time.Minute,
		Grace:   60 * time.Second,
		Clock:   clock,
		Intents: gateway,
	})
	resolver := assignment.NewResolver(index, assignment.WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }))

	flow := NewService(Deps{
		Courts:   courtSvc,
		Resolver: resolver,
		Pricer:   pricer,
		Holds:    holds,
		Gateway:  gateway,
		Webhooks: gateway,
	})
	return fixture{flow: flow, holds: holds, index: index, gateway: gateway, clock: clock}
}

func session(customer pricing.Customer, startMinutes, duration int) Session {
	return Session{
		Customer:        customer,
		Date:            testDate,
		StartMinutes:    startMinutes,
		DurationMinutes: duration,
		Strategy:        assignment.StrategyFirstAvailable,
	}
}

func (f fixture) reserve(t *testing.T, s Session) *Reservation {
	t.Helper()
	r, err := f.flow.Reserve(context.Background(), s)
	require.NoError(t, err)
	require.NotNil(t, r.Hold)
	return r
}

func (f fixture) webhook(t *testing.T, typ, intentID string) error {
	t.Helper()
	payload := []byte(fmt.Sprintf(`{"id":"evt_1","type":%q,"intent_id":%q}`, typ, intentID))
	return f.flow.HandleWebhook(context.Background(), payload, f.gateway.Sign(payload))
}

func TestPreviewPricesTentativeCourt(t *testing.T) {
	f := newFixture(t)

	p, err := f.flow.Preview(context.Background(), session(ana, 10*60, 0))
	require.NoError(t, err)
	require.NotNil(t, p.Court)
	assert.Equal(t, "c1", p.Court.ID)
	assert.Equal(t, "c1", p.Session.TentativeCourtID)
	assert.Nil(t, p.Estimate)

	require.Len(t, p.Prices, len(pricing.StandardDurations))
	assert.Equal(t, 60, p.Prices[1].DurationMinutes)
	assert.True(t, decimal.NewFromInt(20).Equal(p.Prices[1].Price))
}

func TestPreviewFallsBackToEstimate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.index.MarkRange(ctx, "c1", testDate, 10*60, 30, false))
	require.NoError(t, f.index.MarkRange(ctx, "c2", testDate, 10*60, 30, false))

	p, err := f.flow.Preview(ctx, session(ana, 10*60, 60))
	require.NoError(t, err)
	assert.Nil(t, p.Court)
	require.NotNil(t, p.Estimate)
	assert.True(t, p.Estimate.IsEstimate)
	// Average of the active courts only.
	assert.Equal(t, 2, p.Estimate.CourtCount)
	assert.True(t, decimal.NewFromInt(25).Equal(p.Estimate.Price))
}

func TestReserveAndPay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r := f.reserve(t, session(ana, 10*60, 60))
	assert.Equal(t, "c1", r.Court.ID)
	assert.Equal(t, r.Hold.ID, r.Session.HoldID)
	assert.True(t, decimal.NewFromInt(20).Equal(r.Price))

	started, err := f.flow.StartPayment(ctx, r.Hold.ID, ana)
	require.NoError(t, err)
	assert.Equal(t, started.Intent.ID, started.Hold.PaymentIntentID)
	assert.Equal(t, r.Hold.ID, started.Intent.Metadata[payment.MetadataHoldID])
	assert.True(t, decimal.NewFromInt(20).Equal(started.Intent.Amount))

	require.NoError(t, f.gateway.Succeed(started.Intent.ID))
	confirmed, err := f.flow.Confirm(ctx, r.Hold.ID, "", &ana)
	require.NoError(t, err)
	assert.Equal(t, hold.StatusConfirmed, confirmed.Status)

	free, err := f.index.IsRangeAvailable(ctx, "c1", testDate, 10*60, 60)
	require.NoError(t, err)
	assert.False(t, free)

	// The next customer is assigned the remaining court.
	next := f.reserve(t, session(ben, 10*60, 60))
	assert.Equal(t, "c2", next.Court.ID)
}

func TestConfirmWithoutPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.reserve(t, session(ana, 10*60, 60))

	_, err := f.flow.Confirm(ctx, r.Hold.ID, "", &ana)
	assert.ErrorIs(t, err, ErrNoPaymentStarted)

	started, err := f.flow.StartPayment(ctx, r.Hold.ID, ana)
	require.NoError(t, err)
	_, err = f.flow.Confirm(ctx, r.Hold.ID, started.Intent.ID, &ana)
	assert.ErrorIs(t, err, hold.ErrPaymentNotSucceeded)
}

// payOutOfBand creates and pays an intent directly at the gateway, outside StartPayment.
func (f fixture) payOutOfBand(t *testing.T, amount, currency string, metadata map[string]string) *payment.Intent {
	t.Helper()
	intent, err := f.gateway.CreateIntent(context.Background(), payment.CreateParams{
		Amount:   decimal.RequireFromString(amount),
		Currency: currency,
		Metadata: metadata,
	})
	require.NoError(t, err)
	require.NoError(t, f.gateway.Succeed(intent.ID))
	return intent
}

func TestConfirmRejectsIntentsThatDoNotPayForTheHold(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		currency string
		forHold  bool
		wantErr  error
	}{
		{name: "Cheap intent without metadata", amount: "0.50", currency: "usd", wantErr: hold.ErrPaymentMismatch},
		{name: "Full price without metadata", amount: "40", currency: "usd", wantErr: hold.ErrPaymentMismatch},
		{name: "Cheap intent for the hold", amount: "0.50", currency: "usd", forHold: true, wantErr: hold.ErrPaymentAmountMismatch},
		{name: "Other currency", amount: "40", currency: "eur", forHold: true, wantErr: hold.ErrPaymentAmountMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			r := f.reserve(t, session(ana, 10*60, 120))
			require.True(t, decimal.NewFromInt(40).Equal(r.Price))

			var metadata map[string]string
			if tt.forHold {
				metadata = map[string]string{payment.MetadataHoldID: r.Hold.ID}
			}
			intent := f.payOutOfBand(t, tt.amount, tt.currency, metadata)

			_, err := f.flow.Confirm(ctx, r.Hold.ID, intent.ID, &ana)
			require.ErrorIs(t, err, tt.wantErr)

			h, err := f.holds.Get(ctx, r.Hold.ID)
			require.NoError(t, err)
			assert.Equal(t, hold.StatusHolding, h.Status)
		})
	}
}

func TestConfirmAcceptsFullPaymentCreatedForTheHold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.reserve(t, session(ana, 10*60, 120))

	intent := f.payOutOfBand(t, "40", "usd", map[string]string{payment.MetadataHoldID: r.Hold.ID})
	confirmed, err := f.flow.Confirm(ctx, r.Hold.ID, intent.ID, &ana)
	require.NoError(t, err)
	assert.Equal(t, hold.StatusConfirmed, confirmed.Status)
}

func TestWebhookForUnderpaidHoldIsAcknowledged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.reserve(t, session(ana, 10*60, 120))

	intent := f.payOutOfBand(t, "0.50", "usd", map[string]string{payment.MetadataHoldID: r.Hold.ID})
	require.NoError(t, f.webhook(t, payment.EventIntentSucceeded, intent.ID))

	h, err := f.holds.Get(ctx, r.Hold.ID)
	require.NoError(t, err)
	assert.Equal(t, hold.StatusHolding, h.Status)
}

func TestStartPaymentReusesIntent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.reserve(t, session(ana, 10*60, 60))

	first, err := f.flow.StartPayment(ctx, r.Hold.ID, ana)
	require.NoError(t, err)
	f.clock.Advance(30 * time.Second)
	second, err := f.flow.StartPayment(ctx, r.Hold.ID, ana)
	require.NoError(t, err)

	assert.Equal(t, first.Intent.ID, second.Intent.ID)
	assert.Equal(t, 1, f.gateway.Created())
}

func TestStartPaymentReplacesCanceledIntent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.reserve(t, session(ana, 10*60, 60))

	first, err := f.flow.StartPayment(ctx, r.Hold.ID, ana)
	require.NoError(t, err)
	require.NoError(t, f.gateway.CancelIntent(ctx, first.Intent.ID))
	f.clock.Advance(15 * time.Second)

	second, err := f.flow.StartPayment(ctx, r.Hold.ID, ana)
	require.NoError(t, err)
	assert.NotEqual(t, first.Intent.ID, second.Intent.ID)
	assert.Equal(t, second.Intent.ID, second.Hold.PaymentIntentID)
}

func TestOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.reserve(t, session(ana, 10*60, 60))

	_, err := f.flow.StartPayment(ctx, r.Hold.ID, ben)
	assert.ErrorIs(t, err, hold.ErrNotOwner)
	_, err = f.flow.Heartbeat(ctx, r.Hold.ID, ben)
	assert.ErrorIs(t, err, hold.ErrNotOwner)
	_, err = f.flow.Cancel(ctx, r.Hold.ID, hold.ReasonUserCancelled, ben)
	assert.ErrorIs(t, err, hold.ErrNotOwner)
	_, err = f.flow.Confirm(ctx, r.Hold.ID, "", &ben)
	assert.ErrorIs(t, err, hold.ErrNotOwner)
}

func TestStartPaymentOnExpiredHold(t *testing.T) {
	f := newFixture(t)
	r := f.reserve(t, session(ana, 10*60, 60))

	f.clock.Advance(4 * time.Minute)
	_, err := f.flow.StartPayment(context.Background(), r.Hold.ID, ana)
	assert.ErrorIs(t, err, hold.ErrTimerExpired)
}

func TestReserveOffersAlternatives(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.index.MarkRange(ctx, "c1", testDate, 10*60+30, 30, false))
	require.NoError(t, f.index.MarkRange(ctx, "c2", testDate, 10*60+30, 30, false))

	r, err := f.flow.Reserve(ctx, session(ana, 10*60, 60))
	assert.ErrorIs(t, err, assignment.ErrNoCourtsAvailable)
	require.NotNil(t, r)
	assert.Nil(t, r.Hold)
	require.Len(t, r.Alternatives, 2)
	assert.Equal(t, "c1", r.Alternatives[0].ID)
	assert.NotEmpty(t, r.Message)
}

func TestReserveValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		session Session
		wantErr error
	}{
		{name: "Zero duration", session: session(ana, 600, 0), wantErr: ErrInvalidDuration},
		{name: "Past midnight", session: session(ana, 23*60, 90), wantErr: ErrInvalidDuration},
		{name: "Bad date", session: Session{Customer: ana, Date: "09/02/2026", StartMinutes: 600, DurationMinutes: 60}, wantErr: ErrInvalidDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.flow.Reserve(ctx, tt.session)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestReserveReusesTentativeCourt(t *testing.T) {
	f := newFixture(t)

	s := session(ana, 10*60, 60)
	s.TentativeCourtID = "c2"
	r := f.reserve(t, s)
	assert.Equal(t, "c2", r.Court.ID)
	assert.True(t, decimal.NewFromInt(30).Equal(r.Price))
}

func TestCancelReleasesIntent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.reserve(t, session(ana, 10*60, 60))
	started, err := f.flow.StartPayment(ctx, r.Hold.ID, ana)
	require.NoError(t, err)

	cancelled, err := f.flow.Cancel(ctx, r.Hold.ID, hold.ReasonUserCancelled, ana)
	require.NoError(t, err)
	assert.Equal(t, hold.StatusCancelled, cancelled.Status)

	intent, err := f.gateway.GetIntent(ctx, started.Intent.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCanceled, intent.Status)
}

func TestWebhookConfirmsHold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.reserve(t, session(ana, 10*60, 60))
	started, err := f.flow.StartPayment(ctx, r.Hold.ID, ana)
	require.NoError(t, err)
	require.NoError(t, f.gateway.Succeed(started.Intent.ID))

	require.NoError(t, f.webhook(t, payment.EventIntentSucceeded, started.Intent.ID))

	h, err := f.holds.Get(ctx, r.Hold.ID)
	require.NoError(t, err)
	assert.Equal(t, hold.StatusConfirmed, h.Status)

	// Redelivery is acknowledged.
	require.NoError(t, f.webhook(t, payment.EventIntentSucceeded, started.Intent.ID))
}

func TestWebhookForExpiredHoldIsAcknowledged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.reserve(t, session(ana, 10*60, 60))
	started, err := f.flow.StartPayment(ctx, r.Hold.ID, ana)
	require.NoError(t, err)
	require.NoError(t, f.gateway.Succeed(started.Intent.ID))

	f.clock.Advance(4 * time.Minute)
	require.NoError(t, f.webhook(t, payment.EventIntentSucceeded, started.Intent.ID))

	h, err := f.holds.Get(ctx, r.Hold.ID)
	require.NoError(t, err)
	assert.Equal(t, hold.StatusExpired, h.Status)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	f := newFixture(t)
	err := f.flow.HandleWebhook(context.Background(), []byte(`{"id":"evt_1"}`), "nope")
	assert.ErrorIs(t, err, payment.ErrInvalidSignature)
}

func TestWebhookIgnoresOtherEvents(t *testing.T) {
	f := newFixture(t)
	assert.NoError(t, f.webhook(t, payment.EventIntentFailed, "pi_unknown"))
	assert.NoError(t, f.webhook(t, "charge.refunded", "pi_unknown"))
}
