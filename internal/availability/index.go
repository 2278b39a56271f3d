package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/nekogravitycat/court-booking-engine/internal/court"
	"github.com/nekogravitycat/court-booking-engine/internal/events"
	"github.com/nekogravitycat/court-booking-engine/internal/pkg/apperror"
	"github.com/nekogravitycat/court-booking-engine/internal/pkg/timeutil"
)

const defaultFanout = 8

// Options configures an Index. Zero values fall back to 30 minute slots,
// 08:00-22:00 open hours, UTC, no cache and no notifications.
type Options struct {
	Granularity  int
	DefaultOpen  string
	DefaultClose string
	Location     *time.Location
	Cache        Cache
	Publisher    events.Publisher
	Clock        clockwork.Clock
}

// Index answers whether courts are free at given times from persisted slot state.
// It performs no locking; its answers are advisory.
type Index struct {
	courts      court.Service
	slots       SlotRepository
	cache       Cache
	publisher   events.Publisher
	clock       clockwork.Clock
	loc         *time.Location
	granularity int
	openMin     int
	closeMin    int
}

func NewIndex(courts court.Service, slots SlotRepository, opts Options) (*Index, error) {
	if opts.Granularity <= 0 {
		opts.Granularity = 30
	}
	if timeutil.MinutesInDay%opts.Granularity != 0 {
		return nil, apperror.Wrap(ErrInvalidSchedule, fmt.Errorf("granularity %d does not divide a day", opts.Granularity))
	}
	if opts.DefaultOpen == "" {
		opts.DefaultOpen = "08:00"
	}
	if opts.DefaultClose == "" {
		opts.DefaultClose = "22:00"
	}
	openMin, closeMin, err := parseHours(opts.DefaultOpen, opts.DefaultClose)
	if err != nil {
		return nil, err
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Cache == nil {
		opts.Cache = NopCache{}
	}
	if opts.Publisher == nil {
		opts.Publisher = events.Nop{}
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Index{
		courts:      courts,
		slots:       slots,
		cache:       opts.Cache,
		publisher:   opts.Publisher,
		clock:       opts.Clock,
		loc:         opts.Location,
		granularity: opts.Granularity,
		openMin:     openMin,
		closeMin:    closeMin,
	}, nil
}

func parseHours(open, closing string) (int, int, error) {
	openMin, err := timeutil.ParseTimeKey(open)
	if err != nil {
		return 0, 0, apperror.Wrap(ErrInvalidSchedule, err)
	}
	closeMin, err := timeutil.ParseTimeKey(closing)
	if err != nil {
		return 0, 0, apperror.Wrap(ErrInvalidSchedule, err)
	}
	if closeMin <= openMin {
		return 0, 0, apperror.Wrap(ErrInvalidSchedule, fmt.Errorf("close %s is not after open %s", closing, open))
	}
	return openMin, closeMin, nil
}

// Granularity returns the slot length in minutes.
func (ix *Index) Granularity() int {
	return ix.granularity
}

// Location returns the venue location dates are interpreted in.
func (ix *Index) Location() *time.Location {
	return ix.loc
}

func (ix *Index) validateDate(date string) error {
	if _, err := timeutil.ParseDate(date, ix.loc); err != nil {
		return apperror.Wrap(ErrInvalidDate, err)
	}
	return nil
}

func (ix *Index) lookupCourt(ctx context.Context, courtID string) (*court.Court, error) {
	c, err := ix.courts.GetByID(ctx, courtID)
	if err != nil {
		if errors.Is(err, court.ErrNotFound) || errors.Is(err, court.ErrInvalidID) {
			return nil, err
		}
		return nil, apperror.Wrap(ErrLookupFailed, err)
	}
	return c, nil
}

// schedule returns the slot keys of the court's open hours.
func (ix *Index) schedule(c *court.Court) []string {
	openMin, closeMin := ix.openMin, ix.closeMin
	if c.OpenTime != "" {
		if o, cl, err := parseHours(c.OpenTime, c.CloseTime); err == nil {
			openMin, closeMin = o, cl
		}
	}
	// Open hours that are not slot aligned start at the next slot boundary.
	if rem := openMin % ix.granularity; rem != 0 {
		openMin += ix.granularity - rem
	}
	var keys []string
	for m := openMin; m+ix.granularity <= closeMin; m += ix.granularity {
		keys = append(keys, timeutil.TimeKey(m))
	}
	return keys
}

func (ix *Index) defaultSlots(c *court.Court, available bool) Slots {
	keys := ix.schedule(c)
	s := make(Slots, len(keys))
	for _, k := range keys {
		s[k] = available
	}
	return s
}

// slotsFor resolves a court's slots on date: inactive courts are closed
// regardless of stored data, otherwise the stored document or the default schedule.
func (ix *Index) slotsFor(ctx context.Context, c *court.Court, date string) (Slots, error) {
	if !c.Active() {
		return ix.defaultSlots(c, false), nil
	}

	logger := log.Ctx(ctx)
	if cached, ok, err := ix.cache.Get(ctx, c.ID, date); err != nil {
		logger.Warn().Err(err).Str("court_id", c.ID).Str("date", date).Msg("Availability cache read failed")
	} else if ok {
		return cached, nil
	}

	stored, found, err := ix.slots.GetDay(ctx, c.ID, date)
	if err != nil {
		return nil, apperror.Wrap(ErrLookupFailed, err)
	}
	if !found {
		stored = ix.defaultSlots(c, true)
	}

	if err := ix.cache.Set(ctx, c.ID, date, stored); err != nil {
		logger.Warn().Err(err).Str("court_id", c.ID).Str("date", date).Msg("Availability cache write failed")
	}
	return stored, nil
}

// GetSlotAvailability returns the slot map of one court on date.
func (ix *Index) GetSlotAvailability(ctx context.Context, courtID, date string) (Slots, error) {
	if err := ix.validateDate(date); err != nil {
		return nil, err
	}
	c, err := ix.lookupCourt(ctx, courtID)
	if err != nil {
		return nil, err
	}
	return ix.slotsFor(ctx, c, date)
}

// GetAllCourtsAvailability returns the slot maps of every court on date.
func (ix *Index) GetAllCourtsAvailability(ctx context.Context, date string) (map[string]Slots, error) {
	if err := ix.validateDate(date); err != nil {
		return nil, err
	}
	courts, err := ix.courts.List(ctx, court.Filter{})
	if err != nil {
		return nil, apperror.Wrap(ErrLookupFailed, err)
	}

	// Each goroutine owns one element of results.
	results := make([]Slots, len(courts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(defaultFanout)
	for i, c := range courts {
		g.Go(func() error {
			s, err := ix.slotsFor(gctx, c, date)
			if err != nil {
				return err
			}
			results[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]Slots, len(courts))
	for i, c := range courts {
		out[c.ID] = results[i]
	}
	return out, nil
}

func (ix *Index) validateRange(startMinutes, durationMinutes int) error {
	if durationMinutes <= 0 || startMinutes < 0 || startMinutes+durationMinutes > timeutil.MinutesInDay {
		return ErrInvalidRange
	}
	return nil
}

// coveredKeys lists the slot keys a range touches, aligning the start down to a slot boundary.
func (ix *Index) coveredKeys(startMinutes, durationMinutes int) []string {
	end := startMinutes + durationMinutes
	var keys []string
	for m := startMinutes - startMinutes%ix.granularity; m < end; m += ix.granularity {
		keys = append(keys, timeutil.TimeKey(m))
	}
	return keys
}

// IsRangeAvailable reports whether every slot covered by the range is free.
// Slots outside the court's schedule count as unavailable.
func (ix *Index) IsRangeAvailable(ctx context.Context, courtID, date string, startMinutes, durationMinutes int) (bool, error) {
	if err := ix.validateDate(date); err != nil {
		return false, err
	}
	if err := ix.validateRange(startMinutes, durationMinutes); err != nil {
		return false, err
	}
	c, err := ix.lookupCourt(ctx, courtID)
	if err != nil {
		return false, err
	}
	return ix.IsCourtRangeAvailable(ctx, c, date, startMinutes, durationMinutes)
}

// IsCourtRangeAvailable is IsRangeAvailable for an already loaded court.
func (ix *Index) IsCourtRangeAvailable(ctx context.Context, c *court.Court, date string, startMinutes, durationMinutes int) (bool, error) {
	if err := ix.validateRange(startMinutes, durationMinutes); err != nil {
		return false, err
	}
	if !c.Active() {
		return false, nil
	}
	slots, err := ix.slotsFor(ctx, c, date)
	if err != nil {
		return false, err
	}
	for _, k := range ix.coveredKeys(startMinutes, durationMinutes) {
		if !slots[k] {
			return false, nil
		}
	}
	return true, nil
}

// MarkRange persists the availability of the slots covered by the range. Keys
// of the default schedule that have no stored row yet are materialised in the
// same write; stored keys outside the range are left alone.
func (ix *Index) MarkRange(ctx context.Context, courtID, date string, startMinutes, durationMinutes int, available bool) error {
	if err := ix.validateDate(date); err != nil {
		return err
	}
	if err := ix.validateRange(startMinutes, durationMinutes); err != nil {
		return err
	}
	c, err := ix.lookupCourt(ctx, courtID)
	if err != nil {
		return err
	}

	marks := Slots{}
	for _, k := range ix.coveredKeys(startMinutes, durationMinutes) {
		marks[k] = available
	}
	if err := ix.slots.MarkSlots(ctx, courtID, date, ix.defaultSlots(c, true), marks); err != nil {
		return apperror.Wrap(ErrSlotWriteFailed, err)
	}

	logger := log.Ctx(ctx).With().Str("court_id", courtID).Str("date", date).Logger()
	if err := ix.cache.Invalidate(ctx, courtID, date); err != nil {
		logger.Warn().Err(err).Msg("Availability cache invalidation failed")
	}

	evt := events.New(events.AvailabilityChanged, courtID, date, ix.clock.Now())
	evt.Data = map[string]any{
		"start":            timeutil.TimeKey(startMinutes),
		"duration_minutes": durationMinutes,
		"available":        available,
	}
	events.PublishBestEffort(ctx, ix.publisher, evt)
	logger.Debug().Int("start_minutes", startMinutes).Int("duration_minutes", durationMinutes).Bool("available", available).Msg("Slot availability updated")
	return nil
}
