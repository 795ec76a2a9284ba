package admin

import (
	"context"
	"sync"
)

// MemoryBlocklist mirrors RedisBlocklist semantics for tests.
type MemoryBlocklist struct {
	mu     sync.Mutex
	phones map[string]bool
	ips    map[string]bool
	admins map[string]bool
}

func NewMemoryBlocklist() *MemoryBlocklist {
	return &MemoryBlocklist{
		phones: map[string]bool{},
		ips:    map[string]bool{},
		admins: map[string]bool{},
	}
}

func (b *MemoryBlocklist) IsBlocked(ctx context.Context, phoneHash, ip string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if phoneHash != "" && b.admins[phoneHash] {
		return false, nil
	}
	if phoneHash != "" && b.phones[phoneHash] {
		return true, nil
	}
	if ip != "" && b.ips[ip] {
		return true, nil
	}
	return false, nil
}

func (b *MemoryBlocklist) BlockPhone(ctx context.Context, phoneHash string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.phones[phoneHash] = true
	return nil
}

func (b *MemoryBlocklist) UnblockPhone(ctx context.Context, phoneHash string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.phones, phoneHash)
	return nil
}

func (b *MemoryBlocklist) BlockIP(ctx context.Context, ip string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ips[ip] = true
	return nil
}

func (b *MemoryBlocklist) UnblockIP(ctx context.Context, ip string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.ips, ip)
	return nil
}

func (b *MemoryBlocklist) AddAdmin(ctx context.Context, phoneHash string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.admins[phoneHash] = true
	return nil
}

func (b *MemoryBlocklist) IsAdmin(ctx context.Context, phoneHash string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.admins[phoneHash], nil
}
