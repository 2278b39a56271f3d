package hold

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

const DefaultIdempotencyBucket = 10 * time.Second

// IdempotencyKey derives the payment idempotency key of a hold. Calls within
// the same bucket of wall time produce the same key, so a repeated submission
// reuses the upstream payment intent instead of creating a second one.
func IdempotencyKey(h *Hold, email string, now time.Time, bucket time.Duration) string {
	if bucket <= 0 {
		bucket = DefaultIdempotencyBucket
	}
	window := now.UnixNano() / int64(bucket)
	parts := []string{
		h.ID,
		h.Price.StringFixed(2),
		h.CourtID,
		h.Date,
		h.StartTime.UTC().Format(time.RFC3339),
		h.EndTime.UTC().Format(time.RFC3339),
		strings.ToLower(strings.TrimSpace(email)),
		strconv.FormatInt(window, 10),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
