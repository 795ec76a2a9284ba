package political

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"

	"github.com/redis/go-redis/v9"
)

// Campaign subtypes understood by the US provider.
const (
	SubtypeBoth  = "both"
	SubtypeUpper = "upper"
	SubtypeLower = "lower"
	SubtypeExec  = "exec"
)

// Target orderings understood by the US provider.
const (
	OrderUpperFirst = "upper-first"
	OrderLowerFirst = "lower-first"
)

// USDataStore reads the imported congressional dataset. The import batch job
// (out of scope here) writes districts and member keys; the call flow only
// reads them.
type USDataStore interface {
	// Districts returns the congressional districts covering a postal code.
	// A postal code can cross district and even state lines.
	Districts(ctx context.Context, postal string) ([]District, error)
	// Senators returns target keys for a state's senators.
	Senators(ctx context.Context, state string) ([]string, error)
	// Representative returns target keys for a district's house member.
	Representative(ctx context.Context, state, district string) ([]string, error)
	// Executive returns target keys for the national executive.
	Executive(ctx context.Context) ([]string, error)
}

type District struct {
	State    string `json:"state"`
	District string `json:"house_district"`
}

// USProvider targets the United States congress and executive.
type USProvider struct {
	store USDataStore
}

func NewUSProvider(store USDataStore) *USProvider { return &USProvider{store: store} }

func (p *USProvider) ValidateLocation(ctx context.Context, location string) (bool, error) {
	if len(location) != 5 {
		return false, nil
	}
	districts, err := p.store.Districts(ctx, location)
	if err != nil {
		return false, err
	}
	return len(districts) > 0, nil
}

func (p *USProvider) AllTargets(ctx context.Context, location string) (TargetSets, error) {
	districts, err := p.store.Districts(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLocation, location, err)
	}
	if len(districts) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrLocation, location)
	}

	sets := TargetSets{}
	seenStates := map[string]bool{}
	for _, d := range districts {
		if !seenStates[d.State] {
			seenStates[d.State] = true
			sens, err := p.store.Senators(ctx, d.State)
			if err != nil {
				return nil, err
			}
			sets[SubtypeUpper] = append(sets[SubtypeUpper], sens...)
		}
		reps, err := p.store.Representative(ctx, d.State, d.District)
		if err != nil {
			return nil, err
		}
		sets[SubtypeLower] = append(sets[SubtypeLower], reps...)
	}

	execs, err := p.store.Executive(ctx)
	if err == nil && len(execs) > 0 {
		sets[SubtypeExec] = execs
	}
	return sets, nil
}

func (p *USProvider) SortTargets(sets TargetSets, subtype, order string, shuffleChamber bool, rng *rand.Rand) []string {
	upper := append([]string(nil), sets[SubtypeUpper]...)
	lower := append([]string(nil), sets[SubtypeLower]...)

	// Callers hitting the same legislators in the same order concentrates
	// load on one office; shuffling within chamber spreads it.
	if shuffleChamber && rng != nil {
		rng.Shuffle(len(upper), func(i, j int) { upper[i], upper[j] = upper[j], upper[i] })
		rng.Shuffle(len(lower), func(i, j int) { lower[i], lower[j] = lower[j], lower[i] })
	}

	switch subtype {
	case SubtypeUpper:
		return upper
	case SubtypeLower:
		return lower
	case SubtypeExec:
		return append([]string(nil), sets[SubtypeExec]...)
	default: // SubtypeBoth
		if order == OrderUpperFirst {
			return append(upper, lower...)
		}
		return append(lower, upper...)
	}
}

func (p *USProvider) RegionChoices() []Region {
	return usStates
}

// RedisUSStore reads the congressional dataset from redis.
//
// Key layout (written by the import job):
// - us:district:<zip>            JSON array of District
// - us:senators:<state>          JSON array of target keys
// - us:house:<state>:<district>  JSON array of target keys
// - us:executive                 JSON array of target keys
type RedisUSStore struct {
	rdb *redis.Client
}

func NewRedisUSStore(rdb *redis.Client) *RedisUSStore { return &RedisUSStore{rdb: rdb} }

func (s *RedisUSStore) Districts(ctx context.Context, postal string) ([]District, error) {
	var out []District
	if err := s.getJSON(ctx, "us:district:"+postal, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *RedisUSStore) Senators(ctx context.Context, state string) ([]string, error) {
	var out []string
	if err := s.getJSON(ctx, "us:senators:"+state, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *RedisUSStore) Representative(ctx context.Context, state, district string) ([]string, error) {
	var out []string
	if err := s.getJSON(ctx, "us:house:"+state+":"+district, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *RedisUSStore) Executive(ctx context.Context) ([]string, error) {
	var out []string
	if err := s.getJSON(ctx, "us:executive", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *RedisUSStore) getJSON(ctx context.Context, key string, dst any) error {
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}
