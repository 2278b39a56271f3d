package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

var secondsPerHour = decimal.NewFromInt(3600)

// Calculator prices time ranges against rate plans. It holds no mutable state:
// identical inputs always produce identical results.
type Calculator struct {
	loc *time.Location
}

// NewCalculator returns a calculator that resolves weekdays and windows in loc.
func NewCalculator(loc *time.Location) *Calculator {
	if loc == nil {
		loc = time.UTC
	}
	return &Calculator{loc: loc}
}

// Location returns the venue location the calculator resolves rules in.
func (c *Calculator) Location() *time.Location {
	return c.loc
}

// Segments splits [start, end) into contiguous rate segments.
func (c *Calculator) Segments(plan RatePlan, start, end time.Time) ([]Segment, error) {
	if !end.After(start) {
		return nil, ErrInvalidRange
	}
	cp, err := compile(plan)
	if err != nil {
		return nil, err
	}
	return c.segments(cp, start, end), nil
}

func (c *Calculator) segments(cp *compiledPlan, start, end time.Time) []Segment {
	var segs []Segment
	for t := start; t.Before(end); {
		lt := t.In(c.loc)
		minute := lt.Hour()*60 + lt.Minute()
		rule, name, rate := cp.resolve(lt.Weekday(), minute)

		next := c.nextEdge(cp, lt)
		if next.After(end) {
			next = end
		}

		if n := len(segs); n > 0 && segs[n-1].Rule == rule && segs[n-1].RuleName == name && segs[n-1].Rate.Equal(rate) {
			segs[n-1].End = next
		} else {
			segs = append(segs, Segment{Start: t, End: next, Rule: rule, RuleName: name, Rate: rate})
		}
		t = next
	}

	for i := range segs {
		segs[i].Price = segmentNumerator(segs[i]).Div(secondsPerHour)
	}
	return segs
}

// nextEdge returns the earliest rule edge strictly after lt on lt's local day.
// Midnight is always an edge, so the result is never later than the next day.
func (c *Calculator) nextEdge(cp *compiledPlan, lt time.Time) time.Time {
	var best time.Time
	for _, m := range cp.edges {
		b := time.Date(lt.Year(), lt.Month(), lt.Day(), 0, m, 0, 0, c.loc)
		if !b.After(lt) {
			continue
		}
		if best.IsZero() || b.Before(best) {
			best = b
		}
	}
	return best
}

// segmentNumerator is seconds x hourly rate; dividing by 3600 gives the price.
func segmentNumerator(s Segment) decimal.Decimal {
	secs := decimal.NewFromInt(int64(s.End.Sub(s.Start) / time.Second))
	return secs.Mul(s.Rate)
}

// CalculatePrice returns the price of [start, end) under plan for customer.
// Segment prices are summed exactly, the member discount is applied to the
// total, and the result is rounded once, half-up, to 2 decimals.
func (c *Calculator) CalculatePrice(plan RatePlan, start, end time.Time, customer *Customer) (decimal.Decimal, error) {
	if !end.After(start) {
		return decimal.Zero, ErrInvalidRange
	}
	cp, err := compile(plan)
	if err != nil {
		return decimal.Zero, err
	}

	numerator := decimal.Zero
	for _, s := range c.segments(cp, start, end) {
		numerator = numerator.Add(segmentNumerator(s))
	}

	denominator := secondsPerHour
	if cp.discount != nil && customer != nil && customer.Member {
		numerator = numerator.Mul(hundred.Sub(*cp.discount))
		denominator = denominator.Mul(hundred)
	}
	return numerator.Div(denominator).Round(2), nil
}

// StandardDurationPrices prices every rung of StandardDurations starting at start.
func (c *Calculator) StandardDurationPrices(court Court, start time.Time, customer *Customer) ([]DurationPrice, error) {
	plan := court.Plan()
	out := make([]DurationPrice, 0, len(StandardDurations))
	for _, d := range StandardDurations {
		price, err := c.CalculatePrice(plan, start, start.Add(time.Duration(d)*time.Minute), customer)
		if err != nil {
			return nil, err
		}
		out = append(out, DurationPrice{DurationMinutes: d, Price: price})
	}
	return out, nil
}

// EstimatePrice averages the price of [start, end) over every active court.
// It is a preview for when no court has been assigned yet.
func (c *Calculator) EstimatePrice(courts []Court, start, end time.Time, customer *Customer) (Estimate, error) {
	sum := decimal.Zero
	n := 0
	for _, court := range courts {
		if !court.Active() {
			continue
		}
		price, err := c.CalculatePrice(court.Plan(), start, end, customer)
		if err != nil {
			return Estimate{}, err
		}
		sum = sum.Add(price)
		n++
	}
	if n == 0 {
		return Estimate{}, ErrNoActiveCourts
	}
	return Estimate{
		Price:      sum.Div(decimal.NewFromInt(int64(n))).Round(2),
		CourtCount: n,
		IsEstimate: true,
	}, nil
}

// Matches reports whether two prices agree within one cent.
func Matches(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(decimal.New(1, -2))
}
