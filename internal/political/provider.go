package political

import (
	"context"
	"errors"
	"math/rand"
	"strings"
)

// ErrLocation reports that a caller-supplied location could not be resolved.
// The call flow treats it as "no targets available", never as an HTTP error.
var ErrLocation = errors.New("political: unresolvable location")

// Provider is the per-country targeting capability set. A campaign's country
// code selects the variant; all of them answer three questions: which targets
// serve a location, how to order them, and which regions exist.
type Provider interface {
	// ValidateLocation reports whether a caller-entered location (postal
	// code for now) is known to the local data cache.
	ValidateLocation(ctx context.Context, location string) (bool, error)

	// AllTargets returns target keys for a location, bucketed by segment
	// (e.g. "upper"/"lower" chambers).
	AllTargets(ctx context.Context, location string) (TargetSets, error)

	// SortTargets flattens buckets into the dial order for a campaign
	// subtype. Randomness comes from the caller so tests stay deterministic.
	SortTargets(sets TargetSets, subtype, order string, shuffleChamber bool, rng *rand.Rand) []string

	// RegionChoices lists the regions campaigns in this country may scope to.
	RegionChoices() []Region
}

// TargetSets buckets target keys by segment name.
type TargetSets map[string][]string

// Region is one choosable campaign region (a US state, a province, ...).
type Region struct {
	Code string
	Name string
}

// Registry maps ISO-2 country codes to providers.
type Registry map[string]Provider

func (r Registry) ForCountry(code string) (Provider, bool) {
	p, ok := r[strings.ToUpper(strings.TrimSpace(code))]
	return p, ok
}
