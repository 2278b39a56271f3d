package hold

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/court-booking-engine/internal/availability"
	"github.com/nekogravitycat/court-booking-engine/internal/court"
	"github.com/nekogravitycat/court-booking-engine/internal/events"
	"github.com/nekogravitycat/court-booking-engine/internal/events/eventstest"
	"github.com/nekogravitycat/court-booking-engine/internal/pkg/apperror"
	"github.com/nekogravitycat/court-booking-engine/internal/pricing"
)

const (
	testDate = "2026-02-09"
	ttl      = 2 * time.Minute
	grace    = 60 * time.Second
)

var customer = pricing.Customer{ID: "cust-1", Email: "ana@example.com"}

type recordingCanceller struct {
	mu        sync.Mutex
	cancelled []string
}

func (r *recordingCanceller) CancelIntent(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled = append(r.cancelled, id)
	return nil
}

func (r *recordingCanceller) ids() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.cancelled...)
}

// alwaysFree lets a confirmation reach the store write regardless of slot state.
type alwaysFree struct{}

func (alwaysFree) IsCourtRangeAvailable(context.Context, *court.Court, string, int, int) (bool, error) {
	return true, nil
}
func (alwaysFree) MarkRange(context.Context, string, string, int, int, bool) error { return nil }

type fixture struct {
	svc       Service
	repo      Repository
	index     *availability.Index
	clock     clockwork.FakeClock
	publisher *eventstest.Recorder
	intents   *recordingCanceller
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	repo  Repository
	slots SlotIndex
}

func withRepo(r Repository) fixtureOption { return func(c *fixtureConfig) { c.repo = r } }
func withSlots(s SlotIndex) fixtureOption { return func(c *fixtureConfig) { c.slots = s } }

func newFixture(t *testing.T, opts ...fixtureOption) fixture {
	t.Helper()
	courts, err := court.NewMemoryRepository(
		&court.Court{ID: "c1", Name: "Centre", Status: court.StatusActive, RatePlan: pricing.RatePlan{BaseHourlyRate: decimal.NewFromInt(20)}},
		&court.Court{ID: "c2", Name: "Annex", Status: court.StatusMaintenance, RatePlan: pricing.RatePlan{BaseHourlyRate: decimal.NewFromInt(20)}},
	)
	require.NoError(t, err)
	courtSvc := court.NewService(courts)

	clock := clockwork.NewFakeClockAt(time.Date(2026, 2, 9, 8, 0, 0, 0, time.UTC))
	pub := eventstest.NewRecorder(64)
	index, err := availability.NewIndex(courtSvc, availability.NewMemorySlotRepository(), availability.Options{Clock: clock})
	require.NoError(t, err)

	cfg := fixtureConfig{repo: NewMemoryRepository(), slots: index}
	for _, opt := range opts {
		opt(&cfg)
	}
	intents := &recordingCanceller{}
	svc := NewService(cfg.repo, courtSvc, cfg.slots, pricing.NewCalculator(time.UTC), Options{
		TTL:       ttl,
		Grace:     grace,
		Clock:     clock,
		Publisher: pub,
		Intents:   intents,
	})
	return fixture{svc: svc, repo: cfg.repo, index: index, clock: clock, publisher: pub, intents: intents}
}

func (f fixture) create(t *testing.T, startMinutes, duration int, price string) *Hold {
	t.Helper()
	h, err := f.svc.CreateHold(context.Background(), CreateRequest{
		CourtID:         "c1",
		Customer:        customer,
		Date:            testDate,
		StartMinutes:    startMinutes,
		DurationMinutes: duration,
		Price:           decimal.RequireFromString(price),
	})
	require.NoError(t, err)
	return h
}

func (f fixture) nextEvent(t *testing.T) events.Event {
	t.Helper()
	select {
	case evt := <-f.publisher.Events():
		return evt
	default:
		t.Fatal("expected an event")
		return events.Event{}
	}
}

// paid is a successful payment of h's full price on an intent created for h.
func paid(h *Hold, intentID string) PaymentResult {
	return PaymentResult{IntentID: intentID, HoldID: h.ID, Amount: h.Price, Succeeded: true, Status: "succeeded"}
}

func TestCreateHold(t *testing.T) {
	f := newFixture(t)
	start := f.clock.Now()

	h := f.create(t, 10*60, 60, "20")
	assert.NotEmpty(t, h.ID)
	assert.Equal(t, StatusHolding, h.Status)
	assert.Equal(t, start.Add(ttl), h.ExpiresAt)
	assert.Equal(t, start, h.LastActive)
	assert.Equal(t, time.Date(2026, 2, 9, 10, 0, 0, 0, time.UTC), h.StartTime)
	assert.Equal(t, time.Date(2026, 2, 9, 11, 0, 0, 0, time.UTC), h.EndTime)
	assert.True(t, decimal.RequireFromString("20.00").Equal(h.Price))

	evt := f.nextEvent(t)
	assert.Equal(t, events.HoldCreated, evt.Type)
	assert.Equal(t, h.ID, evt.HoldID)
}

func TestLifecycleLogsCarryHoldFields(t *testing.T) {
	f := newFixture(t)
	var buf bytes.Buffer
	ctx := zerolog.New(&buf).WithContext(context.Background())

	h, err := f.svc.CreateHold(ctx, CreateRequest{
		CourtID:         "c1",
		Customer:        customer,
		Date:            testDate,
		StartMinutes:    600,
		DurationMinutes: 60,
		Price:           decimal.NewFromInt(20),
	})
	require.NoError(t, err)
	_, err = f.svc.CancelHold(ctx, h.ID, ReasonUserCancelled)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"hold_id":"`+h.ID+`"`)
	assert.Contains(t, out, `"court_id":"c1"`)
	assert.Contains(t, out, "Hold created")
	assert.Contains(t, out, "Hold cancelled")
}

func TestCreateHoldValidation(t *testing.T) {
	f := newFixture(t)
	base := CreateRequest{CourtID: "c1", Customer: customer, Date: testDate, StartMinutes: 600, DurationMinutes: 60, Price: decimal.NewFromInt(20)}

	tests := []struct {
		name    string
		mutate  func(*CreateRequest)
		wantErr error
	}{
		{name: "Inactive court", mutate: func(r *CreateRequest) { r.CourtID = "c2" }, wantErr: ErrCourtInactive},
		{name: "Unknown court", mutate: func(r *CreateRequest) { r.CourtID = "nope" }, wantErr: court.ErrNotFound},
		{name: "Zero duration", mutate: func(r *CreateRequest) { r.DurationMinutes = 0 }, wantErr: ErrInvalidRange},
		{name: "Past midnight", mutate: func(r *CreateRequest) { r.StartMinutes = 23*60 + 30 }, wantErr: ErrInvalidRange},
		{name: "Negative price", mutate: func(r *CreateRequest) { r.Price = decimal.NewFromInt(-1) }, wantErr: ErrInvalidPrice},
		{name: "Bad date", mutate: func(r *CreateRequest) { r.Date = "2026/02/09" }, wantErr: ErrInvalidDate},
		{name: "Outside open hours", mutate: func(r *CreateRequest) { r.StartMinutes = 6 * 60 }, wantErr: ErrSlotNoLongerAvailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base
			tt.mutate(&req)
			_, err := f.svc.CreateHold(context.Background(), req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestHeartbeatExtendsDeadlineWithoutRewritingExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := f.create(t, 600, 60, "20")

	f.clock.Advance(90 * time.Second)
	beat, err := f.svc.Heartbeat(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, h.ExpiresAt, beat.ExpiresAt)
	assert.Equal(t, f.clock.Now(), beat.LastActive)
	assert.Equal(t, beat.LastActive.Add(grace), f.svc.Deadline(beat))

	// Past expiresAt but inside lastActive + grace.
	f.clock.Advance(50 * time.Second)
	_, err = f.svc.Expire(ctx, h.ID)
	assert.ErrorIs(t, err, ErrHoldStillActive)

	stored, err := f.svc.Get(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusHolding, stored.Status)
}

func TestHeartbeatOnElapsedHoldExpiresIt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := f.create(t, 600, 60, "20")

	f.clock.Advance(ttl + time.Second)
	expired, err := f.svc.Heartbeat(ctx, h.ID)
	require.ErrorIs(t, err, ErrTimerExpired)
	assert.Equal(t, apperror.KindTimerExpired, apperror.KindOf(err))
	assert.Equal(t, StatusExpired, expired.Status)
	assert.Equal(t, ReasonTimerExpired, expired.CancellationReason)

	_, err = f.svc.Heartbeat(ctx, h.ID)
	assert.ErrorIs(t, err, ErrTimerExpired)
}

func TestExpiredHoldNeverConfirms(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := f.create(t, 600, 60, "20")

	f.clock.Advance(ttl + grace)
	f.clock.Advance(time.Second)

	got, err := f.svc.ConfirmHold(ctx, h.ID, paid(h, "pi_1"))
	require.ErrorIs(t, err, ErrTimerExpired)
	assert.Equal(t, StatusExpired, got.Status)

	_, err = f.svc.ConfirmHold(ctx, h.ID, paid(h, "pi_1"))
	assert.ErrorIs(t, err, ErrTimerExpired)

	stored, err := f.repo.GetByID(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, stored.Status)
}

func TestConfirmHold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := f.create(t, 600, 90, "30")
	_ = f.nextEvent(t)

	confirmed, err := f.svc.ConfirmHold(ctx, h.ID, paid(h, ""))
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, confirmed.Status)

	free, err := f.index.IsRangeAvailable(ctx, "c1", testDate, 600, 30)
	require.NoError(t, err)
	assert.False(t, free)
	free, err = f.index.IsRangeAvailable(ctx, "c1", testDate, 690, 30)
	require.NoError(t, err)
	assert.True(t, free)

	evt := f.nextEvent(t)
	assert.Equal(t, events.HoldConfirmed, evt.Type)
	assert.Equal(t, h.ID, evt.HoldID)
}

func TestConfirmHoldRequiresSuccessfulPayment(t *testing.T) {
	f := newFixture(t)
	h := f.create(t, 600, 60, "20")

	got, err := f.svc.ConfirmHold(context.Background(), h.ID, PaymentResult{IntentID: "pi_1", Status: "requires_payment_method"})
	require.ErrorIs(t, err, ErrPaymentNotSucceeded)
	assert.Equal(t, apperror.KindPaymentGateway, apperror.KindOf(err))
	assert.Equal(t, StatusHolding, got.Status)
}

func TestConfirmHoldRejectsForeignPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := f.create(t, 600, 60, "20")
	_, err := f.svc.AttachPayment(ctx, h.ID, "pi_mine", "key")
	require.NoError(t, err)

	_, err = f.svc.ConfirmHold(ctx, h.ID, paid(h, "pi_other"))
	assert.ErrorIs(t, err, ErrPaymentMismatch)
}

func TestConfirmHoldRejectsIntentCreatedForAnotherHold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := f.create(t, 600, 60, "20")
	other := f.create(t, 720, 60, "20")

	tests := []struct {
		name   string
		result PaymentResult
	}{
		{name: "No hold metadata", result: PaymentResult{IntentID: "pi_x", Amount: h.Price, Succeeded: true, Status: "succeeded"}},
		{name: "Another hold's intent", result: paid(other, "pi_other")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.ConfirmHold(ctx, h.ID, tt.result)
			require.ErrorIs(t, err, ErrPaymentMismatch)
			assert.Equal(t, StatusHolding, got.Status)
		})
	}
}

func TestConfirmHoldRejectsUnderpayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := f.create(t, 600, 120, "40")

	cheap := paid(h, "")
	cheap.Amount = decimal.RequireFromString("0.50")
	got, err := f.svc.ConfirmHold(ctx, h.ID, cheap)
	require.ErrorIs(t, err, ErrPaymentAmountMismatch)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
	assert.Equal(t, StatusHolding, got.Status)

	// The attached intent must carry the full price as well.
	_, err = f.svc.AttachPayment(ctx, h.ID, "pi_cheap", "key")
	require.NoError(t, err)
	cheap.IntentID = "pi_cheap"
	_, err = f.svc.ConfirmHold(ctx, h.ID, cheap)
	assert.ErrorIs(t, err, ErrPaymentAmountMismatch)

	stored, err := f.repo.GetByID(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusHolding, stored.Status)
}

func TestConfirmHoldIsIdempotentForTheSamePayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := f.create(t, 600, 60, "20")
	_, err := f.svc.AttachPayment(ctx, h.ID, "pi_1", "key")
	require.NoError(t, err)

	_, err = f.svc.ConfirmHold(ctx, h.ID, paid(h, "pi_1"))
	require.NoError(t, err)
	again, err := f.svc.ConfirmHold(ctx, h.ID, paid(h, "pi_1"))
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, again.Status)
}

func TestConfirmHoldPriceMismatch(t *testing.T) {
	f := newFixture(t)
	h := f.create(t, 600, 60, "18.50")

	got, err := f.svc.ConfirmHold(context.Background(), h.ID, paid(h, ""))
	require.ErrorIs(t, err, ErrPriceMismatch)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
	assert.Equal(t, StatusHolding, got.Status)
}

func TestConfirmHoldWithinRoundingTolerance(t *testing.T) {
	f := newFixture(t)
	h := f.create(t, 600, 60, "20.01")

	_, err := f.svc.ConfirmHold(context.Background(), h.ID, paid(h, ""))
	assert.NoError(t, err)
}

func TestConfirmOverlapLosesAtTheStore(t *testing.T) {
	f := newFixture(t, withSlots(alwaysFree{}))
	ctx := context.Background()
	first := f.create(t, 600, 60, "20")
	second := f.create(t, 630, 60, "20")
	adjacent := f.create(t, 660, 30, "10")

	_, err := f.svc.ConfirmHold(ctx, first.ID, paid(first, ""))
	require.NoError(t, err)

	got, err := f.svc.ConfirmHold(ctx, second.ID, paid(second, ""))
	require.ErrorIs(t, err, ErrSlotNoLongerAvailable)
	assert.Equal(t, apperror.KindSlotNoLongerAvailable, apperror.KindOf(err))
	assert.Equal(t, StatusHolding, got.Status)

	stored, err := f.repo.GetByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusHolding, stored.Status)

	_, err = f.svc.ConfirmHold(ctx, adjacent.ID, paid(adjacent, ""))
	assert.NoError(t, err, "touching ranges do not overlap")
}

// slowSlots advances the clock during the availability re-check, as a slow
// lookup would.
type slowSlots struct {
	alwaysFree
	clock clockwork.FakeClock
	by    time.Duration
}

func (s *slowSlots) IsCourtRangeAvailable(context.Context, *court.Court, string, int, int) (bool, error) {
	s.clock.Advance(s.by)
	return true, nil
}

func TestConfirmWriteRechecksDeadline(t *testing.T) {
	slow := &slowSlots{by: ttl + grace + time.Second}
	f := newFixture(t, withSlots(slow))
	slow.clock = f.clock
	ctx := context.Background()
	h := f.create(t, 600, 60, "20")

	got, err := f.svc.ConfirmHold(ctx, h.ID, paid(h, ""))
	require.ErrorIs(t, err, ErrTimerExpired)
	assert.Equal(t, StatusExpired, got.Status)

	stored, err := f.repo.GetByID(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, stored.Status)
}

func TestMemoryConfirmRejectsElapsedHold(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	now := time.Date(2026, 2, 9, 8, 0, 0, 0, time.UTC)
	h := &Hold{
		CourtID:    "c1",
		Status:     StatusHolding,
		StartTime:  now.Add(2 * time.Hour),
		EndTime:    now.Add(3 * time.Hour),
		LastActive: now,
		ExpiresAt:  now.Add(ttl),
	}
	require.NoError(t, repo.Create(ctx, h))

	_, err := repo.Confirm(ctx, h.ID, now.Add(ttl+grace+time.Second), grace)
	require.ErrorIs(t, err, ErrTimerExpired)
	stored, err := repo.GetByID(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusHolding, stored.Status)

	// At the deadline itself the write still succeeds.
	confirmed, err := repo.Confirm(ctx, h.ID, now.Add(ttl), grace)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, confirmed.Status)
}

func TestConfirmOverlapRejectedByAvailabilityRecheck(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.create(t, 600, 60, "20")
	second := f.create(t, 600, 60, "20")

	_, err := f.svc.ConfirmHold(ctx, first.ID, paid(first, ""))
	require.NoError(t, err)
	_, err = f.svc.ConfirmHold(ctx, second.ID, paid(second, ""))
	assert.ErrorIs(t, err, ErrSlotNoLongerAvailable)
}

func TestConcurrentConfirmationsHaveOneWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 8
	holds := make([]*Hold, n)
	for i := range holds {
		holds[i] = f.create(t, 600, 60, "20")
	}

	errs := make([]error, n)
	var wg sync.WaitGroup
	for i, h := range holds {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.svc.ConfirmHold(ctx, h.ID, paid(h, ""))
		}()
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, ErrSlotNoLongerAvailable)
	}
	assert.Equal(t, 1, wins)
}

// recordingSlots records the ranges a confirmation checks and marks.
type recordingSlots struct {
	mu      sync.Mutex
	checked [][2]int
	marked  [][2]int
}

func (r *recordingSlots) IsCourtRangeAvailable(_ context.Context, _ *court.Court, _ string, start, duration int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checked = append(r.checked, [2]int{start, duration})
	return true, nil
}

func (r *recordingSlots) MarkRange(_ context.Context, _, _ string, start, duration int, _ bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.marked = append(r.marked, [2]int{start, duration})
	return nil
}

func TestConfirmCoversWallClockRangeAcrossDSTChange(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	courts, err := court.NewMemoryRepository(&court.Court{
		ID: "c1", Name: "Centre", Status: court.StatusActive,
		RatePlan: pricing.RatePlan{BaseHourlyRate: decimal.NewFromInt(20)},
	})
	require.NoError(t, err)
	slots := &recordingSlots{}
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC))
	svc := NewService(NewMemoryRepository(), court.NewService(courts), slots, pricing.NewCalculator(loc), Options{Clock: clock})
	ctx := context.Background()

	// Clocks jump from 02:00 to 03:00 on 2026-03-08: 01:00-03:00 is one elapsed hour.
	h, err := svc.CreateHold(ctx, CreateRequest{
		CourtID:         "c1",
		Customer:        customer,
		Date:            "2026-03-08",
		StartMinutes:    60,
		DurationMinutes: 120,
		Price:           decimal.NewFromInt(20),
	})
	require.NoError(t, err)
	assert.Equal(t, time.Hour, h.EndTime.Sub(h.StartTime))

	_, err = svc.ConfirmHold(ctx, h.ID, paid(h, ""))
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{60, 120}, {60, 120}}, slots.checked)
	assert.Equal(t, [][2]int{{60, 120}}, slots.marked)
}

func TestCancelHold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := f.create(t, 600, 60, "20")

	cancelled, err := f.svc.CancelHold(ctx, h.ID, ReasonUserNavigatedAway)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.Equal(t, ReasonUserNavigatedAway, cancelled.CancellationReason)

	again, err := f.svc.CancelHold(ctx, h.ID, ReasonUserCancelled)
	require.NoError(t, err)
	assert.Equal(t, ReasonUserNavigatedAway, again.CancellationReason)

	_, err = f.svc.ConfirmHold(ctx, h.ID, paid(h, ""))
	assert.ErrorIs(t, err, ErrNotHolding)
}

func TestNavigatingAwayWithPaymentInFlightKeepsHolding(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := f.create(t, 600, 60, "20")
	_, err := f.svc.AttachPayment(ctx, h.ID, "pi_1", "key")
	require.NoError(t, err)

	got, err := f.svc.CancelHold(ctx, h.ID, ReasonUserNavigatedAway)
	require.ErrorIs(t, err, ErrCancellationSuppressed)
	assert.Equal(t, StatusHolding, got.Status)

	stored, err := f.repo.GetByID(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusHolding, stored.Status)
	assert.Empty(t, f.intents.ids())
}

func TestExplicitCancelReleasesPaymentIntent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := f.create(t, 600, 60, "20")
	_, err := f.svc.AttachPayment(ctx, h.ID, "pi_1", "key")
	require.NoError(t, err)

	cancelled, err := f.svc.CancelHold(ctx, h.ID, ReasonUserCancelled)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.Equal(t, []string{"pi_1"}, f.intents.ids())
}

func TestCancelHoldRejectsUnknownReason(t *testing.T) {
	f := newFixture(t)
	h := f.create(t, 600, 60, "20")
	_, err := f.svc.CancelHold(context.Background(), h.ID, "bored")
	assert.ErrorIs(t, err, ErrInvalidReason)
}

func TestExpire(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := f.create(t, 600, 60, "20")

	_, err := f.svc.Expire(ctx, h.ID)
	require.ErrorIs(t, err, ErrHoldStillActive)

	f.clock.Advance(ttl + time.Second)
	expired, err := f.svc.Expire(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, expired.Status)

	// Terminal holds are a no-op.
	again, err := f.svc.Expire(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, again.Status)

	confirmed := f.create(t, 720, 60, "20")
	_, err = f.svc.ConfirmHold(ctx, confirmed.ID, paid(confirmed, ""))
	require.NoError(t, err)
	f.clock.Advance(time.Hour)
	got, err := f.svc.Expire(ctx, confirmed.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, got.Status)
}

func TestGetExpiresLazily(t *testing.T) {
	f := newFixture(t)
	h := f.create(t, 600, 60, "20")

	f.clock.Advance(ttl + time.Second)
	got, err := f.svc.Get(context.Background(), h.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, got.Status)
}

func TestSweepExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stale := f.create(t, 600, 60, "20")
	paying := f.create(t, 720, 60, "20")
	_, err := f.svc.AttachPayment(ctx, paying.ID, "pi_9", "key")
	require.NoError(t, err)

	f.clock.Advance(ttl + time.Second)
	fresh := f.create(t, 840, 60, "20")

	n, err := f.svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for id, want := range map[string]Status{stale.ID: StatusExpired, paying.ID: StatusExpired, fresh.ID: StatusHolding} {
		stored, err := f.repo.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, stored.Status)
	}
	assert.Equal(t, []string{"pi_9"}, f.intents.ids())

	n, err = f.svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

// flakyRepo fails the first failures Transition calls.
type flakyRepo struct {
	Repository
	mu       sync.Mutex
	failures int
	calls    int
}

func (r *flakyRepo) Transition(ctx context.Context, id string, to Status, reason Reason, at time.Time) (*Hold, error) {
	r.mu.Lock()
	r.calls++
	fail := r.failures > 0
	if fail {
		r.failures--
	}
	r.mu.Unlock()
	if fail {
		return nil, errors.New("write timeout")
	}
	return r.Repository.Transition(ctx, id, to, reason, at)
}

func TestCancelRetriesStoreWriteOnce(t *testing.T) {
	repo := &flakyRepo{Repository: NewMemoryRepository(), failures: 1}
	f := newFixture(t, withRepo(repo))
	ctx := context.Background()
	h := f.create(t, 600, 60, "20")

	cancelled, err := f.svc.CancelHold(ctx, h.ID, ReasonUserCancelled)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.Equal(t, 2, repo.calls)

	stored, err := repo.GetByID(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, stored.Status)
}

func TestCancelProceedsOptimisticallyWhenRetryFails(t *testing.T) {
	repo := &flakyRepo{Repository: NewMemoryRepository(), failures: 2}
	f := newFixture(t, withRepo(repo))
	ctx := context.Background()
	h := f.create(t, 600, 60, "20")

	cancelled, err := f.svc.CancelHold(ctx, h.ID, ReasonUserCancelled)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.Equal(t, 2, repo.calls)

	// The store still says Holding; the sweep reconciles once the deadline passes.
	stored, err := repo.GetByID(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusHolding, stored.Status)

	f.clock.Advance(ttl + time.Second)
	n, err := f.svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	stored, err = repo.GetByID(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, stored.Status)
}
