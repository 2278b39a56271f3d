package pricing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nekogravitycat/court-booking-engine/internal/pkg/apperror"
	"github.com/nekogravitycat/court-booking-engine/internal/pkg/timeutil"
)

var hundred = decimal.NewFromInt(100)

type window struct {
	start, end int // minutes of day, [start, end)
}

func (w window) contains(m int) bool {
	return m >= w.start && m < w.end
}

type compiledSpecial struct {
	name   string
	rate   decimal.Decimal
	days   map[time.Weekday]bool
	window window
}

func (s compiledSpecial) appliesOn(d time.Weekday) bool {
	return len(s.days) == 0 || s.days[d]
}

// compiledPlan is a validated RatePlan with its windows parsed to minutes.
type compiledPlan struct {
	base     decimal.Decimal
	peak     *decimal.Decimal
	peakWin  window
	weekend  *decimal.Decimal
	discount *decimal.Decimal
	specials []compiledSpecial
	edges    []int // every minute-of-day at which the applicable rule may change
}

// Validate reports whether the plan is well formed.
func (p RatePlan) Validate() error {
	_, err := compile(p)
	return err
}

func invalidPlan(format string, args ...any) error {
	return apperror.Wrap(ErrInvalidRatePlan, fmt.Errorf(format, args...))
}

func parseWindow(startStr, endStr string) (window, error) {
	start, err := timeutil.ParseTimeKey(startStr)
	if err != nil {
		return window{}, err
	}
	end, err := timeutil.ParseTimeKey(endStr)
	if err != nil {
		return window{}, err
	}
	if end <= start {
		return window{}, fmt.Errorf("window %s-%s must end after it starts", startStr, endStr)
	}
	return window{start: start, end: end}, nil
}

func compile(p RatePlan) (*compiledPlan, error) {
	if p.BaseHourlyRate.IsNegative() {
		return nil, invalidPlan("base hourly rate must not be negative")
	}
	cp := &compiledPlan{base: p.BaseHourlyRate}

	if p.PeakHourRate != nil {
		if p.PeakHourRate.IsNegative() {
			return nil, invalidPlan("peak hour rate must not be negative")
		}
		start, end := p.PeakStart, p.PeakEnd
		if start == "" && end == "" {
			start, end = DefaultPeakStart, DefaultPeakEnd
		}
		w, err := parseWindow(start, end)
		if err != nil {
			return nil, invalidPlan("peak window: %v", err)
		}
		cp.peak = p.PeakHourRate
		cp.peakWin = w
		cp.edges = append(cp.edges, w.start, w.end)
	}

	if p.WeekendRate != nil {
		if p.WeekendRate.IsNegative() {
			return nil, invalidPlan("weekend rate must not be negative")
		}
		cp.weekend = p.WeekendRate
	}

	if p.MemberDiscount != nil {
		if p.MemberDiscount.IsNegative() || p.MemberDiscount.GreaterThan(hundred) {
			return nil, invalidPlan("member discount must be between 0 and 100 percent")
		}
		cp.discount = p.MemberDiscount
	}

	for i, sr := range p.SpecialRates {
		if sr.Rate.IsNegative() {
			return nil, invalidPlan("special rate %q must not be negative", sr.Name)
		}
		w, err := parseWindow(sr.StartTime, sr.EndTime)
		if err != nil {
			return nil, invalidPlan("special rate %d (%q): %v", i, sr.Name, err)
		}
		days := make(map[time.Weekday]bool, len(sr.Days))
		for _, d := range sr.Days {
			if d < time.Sunday || d > time.Saturday {
				return nil, invalidPlan("special rate %q has invalid weekday %d", sr.Name, d)
			}
			days[d] = true
		}
		cp.specials = append(cp.specials, compiledSpecial{name: sr.Name, rate: sr.Rate, days: days, window: w})
		cp.edges = append(cp.edges, w.start, w.end)
	}

	// Midnight bounds every segment so weekday and weekend changes are seen.
	cp.edges = append(cp.edges, timeutil.MinutesInDay)
	return cp, nil
}

func isWeekend(d time.Weekday) bool {
	return d == time.Saturday || d == time.Sunday
}

// resolve returns the single rule applying on weekday d at minute m.
// Precedence: special > weekend > peak > base. The first matching special wins.
func (cp *compiledPlan) resolve(d time.Weekday, m int) (Rule, string, decimal.Decimal) {
	for _, s := range cp.specials {
		if s.appliesOn(d) && s.window.contains(m) {
			return RuleSpecial, s.name, s.rate
		}
	}
	if cp.weekend != nil && isWeekend(d) {
		return RuleWeekend, "", *cp.weekend
	}
	if cp.peak != nil && cp.peakWin.contains(m) {
		return RulePeak, "", *cp.peak
	}
	return RuleBase, "", cp.base
}
