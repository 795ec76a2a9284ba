package campaign

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory campaign repository for tests and early
// development. It is not intended for production use.
type MemoryRepo struct {
	mu     sync.Mutex
	byID   map[int64]Campaign
	nextID int64
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: map[int64]Campaign{}, nextID: 1}
}

// Put stores a campaign, assigning an id when missing. Test helper.
func (r *MemoryRepo) Put(c Campaign) Campaign {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID == 0 {
		c.ID = r.nextID
		r.nextID++
	} else if c.ID >= r.nextID {
		r.nextID = c.ID + 1
	}
	r.byID[c.ID] = c
	return c
}

func (r *MemoryRepo) GetByID(ctx context.Context, id int64) (Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return Campaign{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepo) GetByName(ctx context.Context, name string) (Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.byID {
		if c.Name == name {
			return c, nil
		}
	}
	return Campaign{}, ErrNotFound
}

func (r *MemoryRepo) List(ctx context.Context) ([]Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Campaign, 0, len(r.byID))
	for _, c := range r.byID {
		out = append(out, c)
	}
	return out, nil
}

func (r *MemoryRepo) UpdateStatus(ctx context.Context, id int64, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	c.Status = status
	r.byID[id] = c
	return nil
}
