package court

import (
	"net/http"
	"slices"
	"time"

	"github.com/nekogravitycat/court-booking-engine/internal/pkg/apperror"
	"github.com/nekogravitycat/court-booking-engine/internal/pricing"
)

var (
	ErrNotFound      = apperror.New(http.StatusNotFound, apperror.KindNotFound, "court not found")
	ErrInvalidID     = apperror.New(http.StatusBadRequest, apperror.KindValidation, "court id is required")
	ErrInvalidRecord = apperror.New(http.StatusUnprocessableEntity, apperror.KindValidation, "court record is malformed")
)

type Status string

const (
	StatusActive      Status = "active"
	StatusMaintenance Status = "maintenance"
	StatusInactive    Status = "inactive"
)

func (s Status) Valid() bool {
	return s == StatusActive || s == StatusMaintenance || s == StatusInactive
}

// Court represents a bookable court with its pricing and open hours.
// OpenTime and CloseTime are "HH:MM"; empty means the venue default applies.
type Court struct {
	ID         string
	Name       string
	Status     Status
	SportTypes []string
	OpenTime   string
	CloseTime  string
	RatePlan   pricing.RatePlan
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (c *Court) CourtID() string         { return c.ID }
func (c *Court) Plan() pricing.RatePlan { return c.RatePlan }
func (c *Court) Active() bool           { return c.Status == StatusActive }

// SupportsSport reports whether the court is set up for sport.
func (c *Court) SupportsSport(sport string) bool {
	return slices.Contains(c.SportTypes, sport)
}

// Filter defines parameters for listing courts.
type Filter struct {
	Status    Status
	SportType string
}

// AsPricing converts courts to the view the pricing calculator works with.
func AsPricing(courts []*Court) []pricing.Court {
	out := make([]pricing.Court, len(courts))
	for i, c := range courts {
		out[i] = c
	}
	return out
}
