package app

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/nekogravitycat/court-booking-engine/internal/court"
	"github.com/nekogravitycat/court-booking-engine/internal/pricing"
)

func rate(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

// DemoCourts is the fixed catalogue served by the in-memory store.
func DemoCourts() []*court.Court {
	now := time.Now().UTC()
	return []*court.Court{
		{
			ID:         "court-1",
			Name:       "Centre Court",
			Status:     court.StatusActive,
			SportTypes: []string{"tennis"},
			RatePlan: pricing.RatePlan{
				BaseHourlyRate: decimal.NewFromInt(20),
				PeakHourRate:   rate(30),
				PeakStart:      pricing.DefaultPeakStart,
				PeakEnd:        pricing.DefaultPeakEnd,
				WeekendRate:    rate(35),
				MemberDiscount: rate(10),
			},
			CreatedAt: now,
			UpdatedAt: now,
		},
		{
			ID:         "court-2",
			Name:       "Court 2",
			Status:     court.StatusActive,
			SportTypes: []string{"tennis", "pickleball"},
			OpenTime:   "07:00",
			CloseTime:  "23:00",
			RatePlan: pricing.RatePlan{
				BaseHourlyRate: decimal.NewFromInt(15),
				PeakHourRate:   rate(25),
				PeakStart:      pricing.DefaultPeakStart,
				PeakEnd:        pricing.DefaultPeakEnd,
				SpecialRates: []pricing.SpecialRate{{
					Name:      "Early bird",
					Rate:      decimal.NewFromInt(10),
					Days:      []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
					StartTime: "07:00",
					EndTime:   "09:00",
				}},
			},
			CreatedAt: now,
			UpdatedAt: now,
		},
		{
			ID:         "court-3",
			Name:       "Padel Court",
			Status:     court.StatusActive,
			SportTypes: []string{"padel"},
			RatePlan: pricing.RatePlan{
				BaseHourlyRate: decimal.NewFromInt(24),
				MemberDiscount: rate(15),
			},
			CreatedAt: now,
			UpdatedAt: now,
		},
		{
			ID:         "court-4",
			Name:       "Court 4",
			Status:     court.StatusMaintenance,
			SportTypes: []string{"tennis"},
			RatePlan:   pricing.RatePlan{BaseHourlyRate: decimal.NewFromInt(15)},
			CreatedAt:  now,
			UpdatedAt:  now,
		},
	}
}
