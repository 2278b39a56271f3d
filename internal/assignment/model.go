package assignment

import (
	"net/http"

	"github.com/nekogravitycat/court-booking-engine/internal/court"
	"github.com/nekogravitycat/court-booking-engine/internal/pkg/apperror"
)

var (
	ErrNoCourtsAvailable  = apperror.New(http.StatusConflict, apperror.KindNoCourtsAvailable, "no courts available for the requested time")
	ErrAllCourtsInactive  = apperror.New(http.StatusConflict, apperror.KindAllCourtsInactive, "all candidate courts are inactive")
	ErrInvalidRequest     = apperror.New(http.StatusBadRequest, apperror.KindValidation, "start and duration must describe a range within one day")
	ErrInvalidStrategy    = apperror.New(http.StatusBadRequest, apperror.KindValidation, "unknown assignment strategy")
	ErrInvalidPreferences = apperror.New(http.StatusBadRequest, apperror.KindValidation, "price sensitivity must be between 0 and 1")
)

// ProbeMinutes is the duration a tentative assignment checks, and the relaxed
// duration alternatives are offered for.
const ProbeMinutes = 30

type Strategy string

const (
	StrategyPreferenceBased Strategy = "PREFERENCE_BASED"
	StrategyFirstAvailable  Strategy = "FIRST_AVAILABLE"
)

func (s Strategy) Valid() bool {
	return s == StrategyPreferenceBased || s == StrategyFirstAvailable
}

// Preferences only rank eligible courts; they never make an unavailable court eligible.
type Preferences struct {
	SportType        string  `json:"sport_type,omitempty"`
	PriceSensitivity float64 `json:"price_sensitivity"`
	PreviousCourtID  string  `json:"previous_court_id,omitempty"`
}

type Request struct {
	Date             string
	StartMinutes     int
	DurationMinutes  int
	Candidates       []*court.Court
	Strategy         Strategy
	Preferences      Preferences
	TentativeCourtID string
}

// Result of an assignment. SelectedCourt is nil when nothing was eligible, in
// which case AlternativeCourts lists courts free for the probe duration.
type Result struct {
	SelectedCourt     *court.Court
	AlternativeCourts []*court.Court
	Message           string
	Reused            bool
}
