package availability

import (
	"net/http"

	"github.com/nekogravitycat/court-booking-engine/internal/pkg/apperror"
)

var (
	ErrLookupFailed    = apperror.New(http.StatusServiceUnavailable, apperror.KindAvailabilityUnavailable, "availability lookup failed")
	ErrSlotWriteFailed = apperror.New(http.StatusServiceUnavailable, apperror.KindStoreWrite, "failed to persist slot availability")
	ErrInvalidDate     = apperror.New(http.StatusBadRequest, apperror.KindValidation, "date must be formatted as YYYY-MM-DD")
	ErrInvalidRange    = apperror.New(http.StatusBadRequest, apperror.KindValidation, "range must have a positive duration and stay within one day")
	ErrInvalidSchedule = apperror.New(http.StatusUnprocessableEntity, apperror.KindValidation, "invalid open hours schedule")
)

// Slots maps "HH:MM" time keys to availability for one court on one date.
type Slots map[string]bool

// Clone returns an independent copy.
func (s Slots) Clone() Slots {
	out := make(Slots, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// CourtSlots is the availability of one court, used by the all-courts view.
type CourtSlots struct {
	CourtID string
	Slots   Slots
}
