package court

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepository keeps courts in process memory, for local runs and tests.
type MemoryRepository struct {
	mu     sync.RWMutex
	courts map[string]*Court
}

// NewMemoryRepository returns a Repository seeded with courts. Seeds are validated.
func NewMemoryRepository(courts ...*Court) (*MemoryRepository, error) {
	r := &MemoryRepository{courts: make(map[string]*Court, len(courts))}
	for _, c := range courts {
		if err := r.Put(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Put inserts or replaces a court.
func (r *MemoryRepository) Put(c *Court) error {
	if err := Validate(c); err != nil {
		return err
	}
	cp := *c
	r.mu.Lock()
	r.courts[c.ID] = &cp
	r.mu.Unlock()
	return nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id string) (*Court, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.courts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *MemoryRepository) List(_ context.Context, filter Filter) ([]*Court, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Court
	for _, c := range r.courts {
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if filter.SportType != "" && !c.SupportsSport(filter.SportType) {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
