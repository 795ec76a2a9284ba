package target

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory target repository for tests. It enforces the
// same key uniqueness the Postgres schema does.
type MemoryRepo struct {
	mu     sync.Mutex
	byKey  map[string]*Target
	nextID int64

	// InsertHook runs inside Insert while the lock is NOT held, before the
	// uniqueness check repeats. Tests use it to interleave a concurrent
	// first-resolution.
	InsertHook func()
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byKey: map[string]*Target{}, nextID: 1}
}

func (r *MemoryRepo) GetByKey(ctx context.Context, key string) (Target, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byKey[key]
	if !ok {
		return Target{}, ErrNotFound
	}
	return cloneTarget(*t), nil
}

func (r *MemoryRepo) Insert(ctx context.Context, t Target) (Target, error) {
	if r.InsertHook != nil {
		r.InsertHook()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byKey[t.Key]; exists {
		return Target{}, ErrDuplicateKey
	}
	t.ID = r.nextID
	r.nextID++
	stored := cloneTarget(t)
	r.byKey[t.Key] = &stored
	return cloneTarget(stored), nil
}

func (r *MemoryRepo) UpdateFields(ctx context.Context, t Target) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.byKey[t.Key]
	if !ok {
		return ErrNotFound
	}
	cur.Title = t.Title
	cur.Name = t.Name
	cur.District = t.District
	cur.Number = t.Number
	cur.Location = t.Location
	return nil
}

func (r *MemoryRepo) SaveOffice(ctx context.Context, targetID int64, o Office) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.byKey {
		if t.ID != targetID {
			continue
		}
		for i := range t.Offices {
			if t.Offices[i].UID == o.UID {
				t.Offices[i] = o
				return nil
			}
		}
		t.Offices = append(t.Offices, o)
		return nil
	}
	return ErrNotFound
}

func cloneTarget(t Target) Target {
	out := t
	out.Offices = make([]Office, len(t.Offices))
	copy(out.Offices, t.Offices)
	return out
}
