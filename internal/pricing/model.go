package pricing

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nekogravitycat/court-booking-engine/internal/pkg/apperror"
)

var (
	ErrInvalidRange    = apperror.New(http.StatusBadRequest, apperror.KindValidation, "end time must be after start time")
	ErrInvalidRatePlan = apperror.New(http.StatusUnprocessableEntity, apperror.KindValidation, "invalid rate plan")
	ErrNoActiveCourts  = apperror.New(http.StatusConflict, apperror.KindAllCourtsInactive, "no active courts to estimate a price from")
)

// Default peak window used when a plan sets a peak rate without its own window.
const (
	DefaultPeakStart = "18:00"
	DefaultPeakEnd   = "22:00"
)

// StandardDurations is the duration ladder offered by duration pickers, in minutes.
var StandardDurations = []int{30, 60, 90, 120, 150, 180}

// RatePlan is a court's composite pricing configuration. All rates are per hour.
type RatePlan struct {
	BaseHourlyRate decimal.Decimal  `json:"base_hourly_rate"`
	PeakHourRate   *decimal.Decimal `json:"peak_hour_rate,omitempty"`
	PeakStart      string           `json:"peak_start,omitempty"` // HH:MM
	PeakEnd        string           `json:"peak_end,omitempty"`   // HH:MM
	WeekendRate    *decimal.Decimal `json:"weekend_rate,omitempty"`
	MemberDiscount *decimal.Decimal `json:"member_discount,omitempty"` // percent, 0-100
	SpecialRates   []SpecialRate    `json:"special_rates,omitempty"`
}

// SpecialRate overrides every other rule inside its window on the listed days.
// An empty Days set applies the window to every day.
type SpecialRate struct {
	Name      string          `json:"name"`
	Rate      decimal.Decimal `json:"rate"`
	Days      []time.Weekday  `json:"days,omitempty"`
	StartTime string          `json:"start_time"` // HH:MM
	EndTime   string          `json:"end_time"`   // HH:MM, 24:00 allowed
}

// Customer is the pricing-relevant view of the person booking.
type Customer struct {
	ID     string
	Email  string
	Member bool
}

// Court is the view of a court the calculator needs for ladders and estimates.
type Court interface {
	CourtID() string
	Plan() RatePlan
	Active() bool
}

// Rule names the rate-plan rule that applies to a segment.
type Rule string

const (
	RuleSpecial Rule = "special"
	RuleWeekend Rule = "weekend"
	RulePeak    Rule = "peak"
	RuleBase    Rule = "base"
)

// Segment is a sub-interval of a booking during which exactly one rule applies.
// Price is unrounded; only the booking total is rounded.
type Segment struct {
	Start    time.Time
	End      time.Time
	Rule     Rule
	RuleName string
	Rate     decimal.Decimal
	Price    decimal.Decimal
}

// DurationPrice is one rung of the standard duration ladder.
type DurationPrice struct {
	DurationMinutes int
	Price           decimal.Decimal
}

// Estimate is a preview price computed before a court is assigned.
// It must never be used as the authoritative price of a hold.
type Estimate struct {
	Price      decimal.Decimal
	CourtCount int
	IsEstimate bool
}
