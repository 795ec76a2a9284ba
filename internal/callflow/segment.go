package callflow

import (
	"context"
	"math/rand"
	"sync"

	"callflow-platform/internal/campaign"
	"callflow-platform/internal/political"
	"callflow-platform/internal/target"
)

// segmenter computes dial sequences and office choices. Randomness is owned
// here behind a mutex: *rand.Rand is not safe for concurrent webhooks, and
// tests need to inject a seeded source.
type segmenter struct {
	registry political.Registry

	mu  sync.Mutex
	rng *rand.Rand
}

func newSegmenter(registry political.Registry, rng *rand.Rand) *segmenter {
	return &segmenter{registry: registry, rng: rng}
}

// sequence computes the full ordered dial list for a caller, uncapped.
// Location lookup failures yield an empty list; the flow turns that into a
// spoken "no targets" outcome, never an error.
func (s *segmenter) sequence(ctx context.Context, c campaign.Campaign, location string) []string {
	switch c.SegmentBy {
	case campaign.SegmentByCustom:
		keys := append([]string(nil), c.TargetKeys...)
		if c.TargetOrdering == campaign.OrderShuffle {
			s.mu.Lock()
			s.rng.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })
			s.mu.Unlock()
		}
		return keys
	case campaign.SegmentByLocation:
		provider, ok := s.registry.ForCountry(c.CountryCode)
		if !ok {
			return nil
		}
		sets, err := provider.AllTargets(ctx, location)
		if err != nil {
			return nil
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		return provider.SortTargets(sets, c.Subtype, c.TargetOrdering, c.ShuffleChamber, s.rng)
	default:
		return nil
	}
}

func (s *segmenter) intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}

// capped applies the campaign's call maximum.
func capped(keys []string, maximum int) []string {
	if maximum > 0 && len(keys) > maximum {
		return keys[:maximum]
	}
	return keys
}

// officeChoice is what MakeSingle dials and announces for one target.
type officeChoice struct {
	Number   string
	Location string
	Type     string
}

// selectOffice applies the campaign's office policy at dial time.
// The busiest policy would prefer the least recently tried office; office
// dial tracking is not implemented yet, so it picks at random like district.
func (s *segmenter) selectOffice(c campaign.Campaign, t target.Target) officeChoice {
	if len(t.Offices) > 0 &&
		(c.TargetOffices == campaign.OfficeDistrict || c.TargetOffices == campaign.OfficeBusiest) {
		s.mu.Lock()
		office := t.Offices[s.rng.Intn(len(t.Offices))]
		s.mu.Unlock()
		if office.Number != "" {
			return officeChoice{Number: office.Number, Location: office.Name, Type: office.Type}
		}
	}
	location := t.Location
	if location == "" {
		location = "capitol"
	}
	return officeChoice{Number: t.Number, Location: location, Type: "main"}
}
