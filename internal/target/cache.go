package target

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DataSource supplies raw political data for a namespaced key. The data is
// loaded out of band by import jobs; the call flow only reads it.
type DataSource interface {
	// Lookup returns the normalized record for a key, reporting false when
	// the key is unknown upstream.
	Lookup(ctx context.Context, key string) (Record, bool, error)
}

// RedisSource reads political-data documents from the shared redis cache.
// Documents are stored as JSON objects (or arrays; the first element wins)
// under their namespaced key.
type RedisSource struct {
	rdb *redis.Client
}

func NewRedisSource(rdb *redis.Client) *RedisSource { return &RedisSource{rdb: rdb} }

func (s *RedisSource) Lookup(ctx context.Context, key string) (Record, bool, error) {
	prefix, _, err := ParseKey(key)
	if err != nil {
		return Record{}, false, err
	}

	raw, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("target: cache read %s: %w", key, err)
	}

	doc, err := decodeDocument(raw)
	if err != nil {
		return Record{}, false, fmt.Errorf("target: cache document %s: %w", key, err)
	}

	rec, err := AdapterFor(prefix).Adapt(doc)
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

func decodeDocument(raw []byte) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err == nil {
		return doc, nil
	}
	// Some import jobs store a one-element array per key.
	var list []map[string]any
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, errors.New("empty document list")
	}
	return list[0], nil
}

// StaticSource is a fixture-backed data source for tests.
type StaticSource map[string]Record

func (s StaticSource) Lookup(_ context.Context, key string) (Record, bool, error) {
	rec, ok := s[key]
	return rec, ok, nil
}
