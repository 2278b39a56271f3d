package availability

import (
	"context"
	"sync"
)

// MemorySlotRepository keeps slot documents in process memory.
type MemorySlotRepository struct {
	mu   sync.RWMutex
	days map[string]Slots
}

func NewMemorySlotRepository() *MemorySlotRepository {
	return &MemorySlotRepository{days: make(map[string]Slots)}
}

func dayKey(courtID, date string) string {
	return courtID + "|" + date
}

func (r *MemorySlotRepository) GetDay(_ context.Context, courtID, date string) (Slots, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.days[dayKey(courtID, date)]
	if !ok {
		return nil, false, nil
	}
	return s.Clone(), true, nil
}

func (r *MemorySlotRepository) MarkSlots(_ context.Context, courtID, date string, defaults, marks Slots) error {
	if len(marks) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := dayKey(courtID, date)
	day, ok := r.days[key]
	if !ok {
		day = Slots{}
		r.days[key] = day
	}
	for k, v := range defaults {
		if _, exists := day[k]; !exists {
			day[k] = v
		}
	}
	for k, v := range marks {
		day[k] = v
	}
	return nil
}
