package assignment

import (
	"context"
	"errors"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"

	"github.com/nekogravitycat/court-booking-engine/internal/availability"
	"github.com/nekogravitycat/court-booking-engine/internal/court"
	"github.com/nekogravitycat/court-booking-engine/internal/pkg/timeutil"
)

const (
	weightSport = 0.5
	weightPrice = 0.3
	weightPrior = 0.2

	scoreEpsilon = 1e-9
)

// RangeChecker is the slice of the availability index the resolver reads.
type RangeChecker interface {
	IsCourtRangeAvailable(ctx context.Context, c *court.Court, date string, startMinutes, durationMinutes int) (bool, error)
}

// Resolver picks a court for a request. It reserves nothing.
type Resolver struct {
	ranges     RangeChecker
	newBackOff func() backoff.BackOff
	maxRetries uint
}

type Option func(*Resolver)

// WithBackOff replaces the retry policy of tentative assignments.
func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(r *Resolver) { r.newBackOff = newBackOff }
}

func NewResolver(ranges RangeChecker, opts ...Option) *Resolver {
	r := &Resolver{
		ranges:     ranges,
		newBackOff: defaultBackOff,
		maxRetries: 2,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// defaultBackOff waits 500ms then 1s between tentative attempts.
func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.Multiplier = 2
	b.RandomizationFactor = 0
	return b
}

// Assign resolves a court for the full requested duration. A tentative court
// that is still active and free is kept so the customer sees the court they were quoted.
func (r *Resolver) Assign(ctx context.Context, req Request) (*Result, error) {
	if req.Strategy == "" {
		req.Strategy = StrategyPreferenceBased
	}
	if !req.Strategy.Valid() {
		return nil, ErrInvalidStrategy
	}
	if req.Preferences.PriceSensitivity < 0 || req.Preferences.PriceSensitivity > 1 {
		return nil, ErrInvalidPreferences
	}
	if req.DurationMinutes <= 0 || req.StartMinutes < 0 || req.StartMinutes+req.DurationMinutes > timeutil.MinutesInDay {
		return nil, ErrInvalidRequest
	}

	if len(req.Candidates) == 0 {
		return &Result{Message: "no candidate courts were supplied"}, ErrNoCourtsAvailable
	}

	active := make([]*court.Court, 0, len(req.Candidates))
	for _, c := range req.Candidates {
		if c != nil && c.Active() {
			active = append(active, c)
		}
	}
	if len(active) == 0 {
		return &Result{Message: "every candidate court is closed for maintenance or inactive"}, ErrAllCourtsInactive
	}
	slices.SortFunc(active, func(a, b *court.Court) int { return strings.Compare(a.ID, b.ID) })

	if req.TentativeCourtID != "" {
		idx := slices.IndexFunc(active, func(c *court.Court) bool { return c.ID == req.TentativeCourtID })
		if idx >= 0 {
			ok, err := r.ranges.IsCourtRangeAvailable(ctx, active[idx], req.Date, req.StartMinutes, req.DurationMinutes)
			if err != nil {
				return nil, err
			}
			if ok {
				return &Result{SelectedCourt: active[idx], Message: "kept the previously quoted court", Reused: true}, nil
			}
		}
		log.Ctx(ctx).Debug().Str("court_id", req.TentativeCourtID).Msg("Tentative court no longer eligible, resolving again")
	}

	eligible, err := r.freeCourts(ctx, active, req.Date, req.StartMinutes, req.DurationMinutes)
	if err != nil {
		return nil, err
	}

	if len(eligible) == 0 {
		res := &Result{Message: "no court is free for the whole requested time"}
		if req.DurationMinutes > ProbeMinutes {
			alts, err := r.freeCourts(ctx, active, req.Date, req.StartMinutes, ProbeMinutes)
			if err != nil {
				return nil, err
			}
			if len(alts) > 0 {
				res.AlternativeCourts = alts
				res.Message = "no court is free for the whole requested time; some are free for a shorter booking"
			}
		}
		return res, ErrNoCourtsAvailable
	}

	var selected *court.Court
	switch req.Strategy {
	case StrategyFirstAvailable:
		selected = eligible[0]
	default:
		selected = pickByPreference(eligible, req.Preferences)
	}
	return &Result{SelectedCourt: selected, Message: "court assigned"}, nil
}

// AssignTentative previews an assignment with the probe duration. Lookup
// failures are retried; every other outcome is returned as is.
func (r *Resolver) AssignTentative(ctx context.Context, req Request) (*Result, error) {
	req.DurationMinutes = ProbeMinutes
	req.TentativeCourtID = ""
	if req.StartMinutes+ProbeMinutes > timeutil.MinutesInDay {
		return nil, ErrInvalidRequest
	}

	type outcome struct {
		res *Result
		err error
	}
	out, err := backoff.Retry(ctx, func() (outcome, error) {
		res, err := r.Assign(ctx, req)
		if err != nil && errors.Is(err, availability.ErrLookupFailed) {
			log.Ctx(ctx).Warn().Err(err).Msg("Tentative assignment lookup failed")
			return outcome{}, err
		}
		// Anything that is not a lookup failure ends the retry loop and is handed back unchanged.
		return outcome{res: res, err: err}, nil
	},
		backoff.WithBackOff(r.newBackOff()),
		backoff.WithMaxTries(r.maxRetries+1),
	)
	if err != nil {
		return nil, err
	}
	return out.res, out.err
}

// freeCourts returns the courts in order that are free for the range.
func (r *Resolver) freeCourts(ctx context.Context, courts []*court.Court, date string, start, duration int) ([]*court.Court, error) {
	var free []*court.Court
	for _, c := range courts {
		ok, err := r.ranges.IsCourtRangeAvailable(ctx, c, date, start, duration)
		if err != nil {
			return nil, err
		}
		if ok {
			free = append(free, c)
		}
	}
	return free, nil
}

// pickByPreference returns the highest scoring court. courts is sorted by id,
// so the first of equally scored courts wins.
func pickByPreference(courts []*court.Court, prefs Preferences) *court.Court {
	minRate, maxRate := math.Inf(1), math.Inf(-1)
	for _, c := range courts {
		rate := c.RatePlan.BaseHourlyRate.InexactFloat64()
		minRate = math.Min(minRate, rate)
		maxRate = math.Max(maxRate, rate)
	}

	var best *court.Court
	bestScore := math.Inf(-1)
	for _, c := range courts {
		s := score(c, prefs, minRate, maxRate)
		if s > bestScore+scoreEpsilon {
			best, bestScore = c, s
		}
	}
	return best
}

func score(c *court.Court, prefs Preferences, minRate, maxRate float64) float64 {
	var s float64
	if prefs.SportType != "" && c.SupportsSport(prefs.SportType) {
		s += weightSport
	}

	// Cheapest eligible court normalises to 0, the most expensive to 1.
	var norm float64
	if maxRate > minRate {
		norm = (c.RatePlan.BaseHourlyRate.InexactFloat64() - minRate) / (maxRate - minRate)
	}
	s += weightPrice * prefs.PriceSensitivity * (1 - norm)

	if prefs.PreviousCourtID != "" && c.ID == prefs.PreviousCourtID {
		s += weightPrior
	}
	return s
}
