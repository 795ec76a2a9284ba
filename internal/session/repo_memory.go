package session

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory session repository for tests. It mirrors the
// Postgres constraints: close is a latch, attempts are unique per
// (session, call index).
type MemoryRepo struct {
	mu       sync.Mutex
	sessions map[string]*Session
	attempts []CallAttempt
	nextID   int64
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{sessions: map[string]*Session{}, nextID: 1}
}

func (r *MemoryRepo) Create(ctx context.Context, s Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := s
	r.sessions[s.ID] = &cp
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	return *s, nil
}

func (r *MemoryRepo) SetLocation(ctx context.Context, id, location string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return ErrNotFound
	}
	if s.Location == "" {
		s.Location = location
	}
	return nil
}

func (r *MemoryRepo) SetQueueDelay(ctx context.Context, id string, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return ErrNotFound
	}
	if s.QueueDelay == 0 {
		s.QueueDelay = d
	}
	return nil
}

func (r *MemoryRepo) Close(ctx context.Context, id, status string, durationSeconds int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return false, ErrNotFound
	}
	if s.Closed {
		return false, nil
	}
	s.Closed = true
	s.Status = status
	s.DurationSeconds = durationSeconds
	return true, nil
}

func (r *MemoryRepo) AppendAttempt(ctx context.Context, a CallAttempt) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.attempts {
		if existing.SessionID == a.SessionID && existing.CallIndex == a.CallIndex {
			return false, nil
		}
	}
	a.ID = r.nextID
	r.nextID++
	r.attempts = append(r.attempts, a)
	return true, nil
}

func (r *MemoryRepo) FindOpenInbound(ctx context.Context, campaignID int64, phoneHash, location string) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var candidates []*Session
	for _, s := range r.sessions {
		if s.Closed || s.Direction != DirectionInbound {
			continue
		}
		if s.CampaignID != campaignID || s.PhoneHash != phoneHash {
			continue
		}
		if location != "" && s.Location != location {
			continue
		}
		candidates = append(candidates, s)
	}
	if len(candidates) == 0 {
		return Session{}, ErrNotFound
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.After(candidates[j].CreatedAt)
	})
	return *candidates[0], nil
}

func (r *MemoryRepo) ListAttempts(ctx context.Context, campaignID int64, from, to time.Time) ([]CallAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []CallAttempt
	for _, a := range r.attempts {
		if a.CampaignID != campaignID {
			continue
		}
		if !a.CreatedAt.IsZero() && (a.CreatedAt.Before(from) || !a.CreatedAt.Before(to)) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Attempts returns a copy of the attempt log. Test helper.
func (r *MemoryRepo) Attempts() []CallAttempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]CallAttempt, len(r.attempts))
	copy(out, r.attempts)
	return out
}
