package hold

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nekogravitycat/court-booking-engine/internal/pkg/timeutil"
)

// MemoryRepository keeps holds in process memory. Its mutex plays the part of
// the database's conditional writes: confirm checks for overlap and flips the
// status in one critical section.
type MemoryRepository struct {
	mu    sync.Mutex
	holds map[string]*Hold
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{holds: make(map[string]*Hold)}
}

func (r *MemoryRepository) Create(_ context.Context, h *Hold) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	if _, exists := r.holds[h.ID]; exists {
		return fmt.Errorf("hold %s already exists", h.ID)
	}
	r.holds[h.ID] = h.Clone()
	return nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id string) (*Hold, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.holds[id]
	if !ok {
		return nil, ErrNotFound
	}
	return h.Clone(), nil
}

func (r *MemoryRepository) List(_ context.Context, filter Filter) ([]*Hold, int, error) {
	r.mu.Lock()
	var matched []*Hold
	for _, h := range r.holds {
		if filter.CustomerID != "" && h.CustomerID != filter.CustomerID {
			continue
		}
		if filter.CourtID != "" && h.CourtID != filter.CourtID {
			continue
		}
		if filter.Status != "" && h.Status != filter.Status {
			continue
		}
		if filter.Date != "" && h.Date != filter.Date {
			continue
		}
		matched = append(matched, h.Clone())
	}
	r.mu.Unlock()

	slices.SortFunc(matched, func(a, b *Hold) int {
		if c := b.StartTime.Compare(a.StartTime); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}
	total := len(matched)
	from := min((filter.Page-1)*filter.PageSize, total)
	to := min(from+filter.PageSize, total)
	return matched[from:to], total, nil
}

// holding returns the stored hold if it is still Holding. Callers hold r.mu.
func (r *MemoryRepository) holding(id string) (*Hold, error) {
	h, ok := r.holds[id]
	if !ok {
		return nil, ErrNotFound
	}
	if h.Status != StatusHolding {
		return nil, ErrNotHolding
	}
	return h, nil
}

func (r *MemoryRepository) Touch(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, err := r.holding(id)
	if err != nil {
		return err
	}
	h.LastActive = at
	h.UpdatedAt = at
	return nil
}

func (r *MemoryRepository) Transition(_ context.Context, id string, to Status, reason Reason, at time.Time) (*Hold, error) {
	if to != StatusCancelled && to != StatusExpired {
		return nil, fmt.Errorf("unsupported hold transition to %q", to)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	h, err := r.holding(id)
	if err != nil {
		return nil, err
	}
	h.Status = to
	h.CancellationReason = reason
	h.UpdatedAt = at
	return h.Clone(), nil
}

func (r *MemoryRepository) Confirm(_ context.Context, id string, at time.Time, grace time.Duration) (*Hold, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, err := r.holding(id)
	if err != nil {
		return nil, err
	}
	if h.Elapsed(at, grace) {
		return nil, ErrTimerExpired
	}
	for _, other := range r.holds {
		if other.ID == h.ID || other.CourtID != h.CourtID || other.Status != StatusConfirmed {
			continue
		}
		if timeutil.Overlaps(h.StartTime, h.EndTime, other.StartTime, other.EndTime) {
			return nil, ErrSlotNoLongerAvailable
		}
	}
	h.Status = StatusConfirmed
	h.UpdatedAt = at
	return h.Clone(), nil
}

func (r *MemoryRepository) AttachPayment(_ context.Context, id, intentID, idempotencyKey string, at time.Time) (*Hold, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, err := r.holding(id)
	if err != nil {
		return nil, err
	}
	h.PaymentIntentID = intentID
	h.IdempotencyKey = idempotencyKey
	h.UpdatedAt = at
	return h.Clone(), nil
}

func (r *MemoryRepository) ListElapsed(_ context.Context, now time.Time, grace time.Duration, limit int) ([]*Hold, error) {
	if limit < 1 {
		limit = 100
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Hold
	for _, h := range r.holds {
		if h.Elapsed(now, grace) {
			out = append(out, h.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *Hold) int { return a.ExpiresAt.Compare(b.ExpiresAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
