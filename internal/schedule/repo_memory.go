package schedule

import (
	"context"
	"sync"
)

type MemoryRepo struct {
	mu     sync.Mutex
	subs   map[subKey]Subscription
	nextID int64
}

type subKey struct {
	campaignID int64
	phoneHash  string
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{subs: map[subKey]Subscription{}, nextID: 1}
}

func (r *MemoryRepo) Upsert(ctx context.Context, sub Subscription) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := subKey{sub.CampaignID, sub.PhoneHash}
	if _, ok := r.subs[k]; ok {
		return false, nil
	}
	sub.ID = r.nextID
	r.nextID++
	r.subs[k] = sub
	return true, nil
}

func (r *MemoryRepo) Delete(ctx context.Context, campaignID int64, phoneHash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := subKey{campaignID, phoneHash}
	if _, ok := r.subs[k]; !ok {
		return false, nil
	}
	delete(r.subs, k)
	return true, nil
}

func (r *MemoryRepo) Get(ctx context.Context, campaignID int64, phoneHash string) (Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[subKey{campaignID, phoneHash}]
	if !ok {
		return Subscription{}, ErrNotFound
	}
	return sub, nil
}

func (r *MemoryRepo) ListByCampaign(ctx context.Context, campaignID int64) ([]Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Subscription
	for _, sub := range r.subs {
		if sub.CampaignID == campaignID {
			out = append(out, sub)
		}
	}
	return out, nil
}
