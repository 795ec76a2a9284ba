package admin

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Blocklist gates call starts by caller fingerprint and client IP. Entries
// are managed through the operator API; admin fingerprints are exempt so
// campaign staff can always test flows.
type Blocklist interface {
	IsBlocked(ctx context.Context, phoneHash, ip string) (bool, error)
	BlockPhone(ctx context.Context, phoneHash string) error
	UnblockPhone(ctx context.Context, phoneHash string) error
	BlockIP(ctx context.Context, ip string) error
	UnblockIP(ctx context.Context, ip string) error
	AddAdmin(ctx context.Context, phoneHash string) error
	IsAdmin(ctx context.Context, phoneHash string) (bool, error)
}

const (
	phoneSetKey = "blocklist:phones"
	ipSetKey    = "blocklist:ips"
	adminSetKey = "blocklist:admins"
)

// RedisBlocklist stores block and exemption sets in redis so all instances
// share one view.
type RedisBlocklist struct {
	rdb *redis.Client
}

func NewRedisBlocklist(rdb *redis.Client) *RedisBlocklist {
	return &RedisBlocklist{rdb: rdb}
}

func (b *RedisBlocklist) IsBlocked(ctx context.Context, phoneHash, ip string) (bool, error) {
	if b.rdb == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	if phoneHash != "" {
		exempt, err := b.rdb.SIsMember(ctx, adminSetKey, phoneHash).Result()
		if err != nil {
			return false, fmt.Errorf("blocklist admin check: %w", err)
		}
		if exempt {
			return false, nil
		}
		blocked, err := b.rdb.SIsMember(ctx, phoneSetKey, phoneHash).Result()
		if err != nil {
			return false, fmt.Errorf("blocklist phone check: %w", err)
		}
		if blocked {
			return true, nil
		}
	}
	if ip != "" {
		blocked, err := b.rdb.SIsMember(ctx, ipSetKey, ip).Result()
		if err != nil {
			return false, fmt.Errorf("blocklist ip check: %w", err)
		}
		if blocked {
			return true, nil
		}
	}
	return false, nil
}

func (b *RedisBlocklist) BlockPhone(ctx context.Context, phoneHash string) error {
	return b.rdb.SAdd(ctx, phoneSetKey, phoneHash).Err()
}

func (b *RedisBlocklist) UnblockPhone(ctx context.Context, phoneHash string) error {
	return b.rdb.SRem(ctx, phoneSetKey, phoneHash).Err()
}

func (b *RedisBlocklist) BlockIP(ctx context.Context, ip string) error {
	return b.rdb.SAdd(ctx, ipSetKey, ip).Err()
}

func (b *RedisBlocklist) UnblockIP(ctx context.Context, ip string) error {
	return b.rdb.SRem(ctx, ipSetKey, ip).Err()
}

func (b *RedisBlocklist) AddAdmin(ctx context.Context, phoneHash string) error {
	return b.rdb.SAdd(ctx, adminSetKey, phoneHash).Err()
}

func (b *RedisBlocklist) IsAdmin(ctx context.Context, phoneHash string) (bool, error) {
	if phoneHash == "" {
		return false, nil
	}
	return b.rdb.SIsMember(ctx, adminSetKey, phoneHash).Result()
}
