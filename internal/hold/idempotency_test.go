package hold

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestIdempotencyKey(t *testing.T) {
	h := &Hold{
		ID:        "h1",
		CourtID:   "c1",
		Date:      "2026-02-09",
		StartTime: time.Date(2026, 2, 9, 10, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 2, 9, 11, 0, 0, 0, time.UTC),
		Price:     decimal.RequireFromString("20"),
	}
	now := time.Date(2026, 2, 9, 9, 0, 0, 0, time.UTC)
	key := IdempotencyKey(h, "ana@example.com", now, 10*time.Second)

	assert.Len(t, key, 64)
	assert.Equal(t, key, IdempotencyKey(h, "ana@example.com", now.Add(9*time.Second), 10*time.Second), "same bucket")
	assert.Equal(t, key, IdempotencyKey(h, " ANA@example.com", now, 10*time.Second), "email is normalised")
	assert.NotEqual(t, key, IdempotencyKey(h, "ana@example.com", now.Add(10*time.Second), 10*time.Second), "next bucket")
	assert.NotEqual(t, key, IdempotencyKey(h, "bo@example.com", now, 10*time.Second))

	repriced := h.Clone()
	repriced.Price = decimal.RequireFromString("20.01")
	assert.NotEqual(t, key, IdempotencyKey(repriced, "ana@example.com", now, 10*time.Second))

	// "20" and "20.00" describe the same amount.
	same := h.Clone()
	same.Price = decimal.RequireFromString("20.00")
	assert.Equal(t, key, IdempotencyKey(same, "ana@example.com", now, 10*time.Second))
}
