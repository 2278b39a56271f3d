package http

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/nekogravitycat/court-booking-engine/internal/pricing"
)

// QuoteRequest is the payload for POST /pricing/quote. Without a court id the
// quote is an estimate averaged over every active court.
type QuoteRequest struct {
	CourtID         string `json:"court_id"`
	Date            string `json:"date" binding:"required"`
	StartTime       string `json:"start_time" binding:"required"`
	DurationMinutes int    `json:"duration_minutes" binding:"required,min=1"`
}

type PricesQuery struct {
	Date      string `form:"date" binding:"required"`
	StartTime string `form:"start_time" binding:"required"`
}

type SegmentResponse struct {
	Start    time.Time       `json:"start"`
	End      time.Time       `json:"end"`
	Rule     string          `json:"rule"`
	RuleName string          `json:"rule_name,omitempty"`
	Rate     decimal.Decimal `json:"rate"`
	Price    decimal.Decimal `json:"price"`
}

type QuoteResponse struct {
	CourtID    string            `json:"court_id,omitempty"`
	Price      decimal.Decimal   `json:"price"`
	IsEstimate bool              `json:"is_estimate"`
	CourtCount int               `json:"court_count,omitempty"`
	Member     bool              `json:"member"`
	Segments   []SegmentResponse `json:"segments,omitempty"`
}

type DurationPriceResponse struct {
	DurationMinutes int             `json:"duration_minutes"`
	Price           decimal.Decimal `json:"price"`
}

type PricesResponse struct {
	CourtID   string                  `json:"court_id"`
	Date      string                  `json:"date"`
	StartTime string                  `json:"start_time"`
	Prices    []DurationPriceResponse `json:"prices"`
}

func NewSegmentResponses(segments []pricing.Segment) []SegmentResponse {
	out := make([]SegmentResponse, len(segments))
	for i, s := range segments {
		out[i] = SegmentResponse{
			Start:    s.Start,
			End:      s.End,
			Rule:     string(s.Rule),
			RuleName: s.RuleName,
			Rate:     s.Rate,
			Price:    s.Price,
		}
	}
	return out
}

func NewDurationPriceResponses(prices []pricing.DurationPrice) []DurationPriceResponse {
	out := make([]DurationPriceResponse, len(prices))
	for i, p := range prices {
		out[i] = DurationPriceResponse{DurationMinutes: p.DurationMinutes, Price: p.Price}
	}
	return out
}
