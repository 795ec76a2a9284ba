package political

import (
	"context"
	"math/rand"
	"testing"
)

// staticUSStore is a fixture-backed USDataStore.
type staticUSStore struct {
	districts map[string][]District
	senators  map[string][]string
	house     map[string][]string
	executive []string
}

func (s *staticUSStore) Districts(_ context.Context, postal string) ([]District, error) {
	return s.districts[postal], nil
}
func (s *staticUSStore) Senators(_ context.Context, state string) ([]string, error) {
	return s.senators[state], nil
}
func (s *staticUSStore) Representative(_ context.Context, state, district string) ([]string, error) {
	return s.house[state+":"+district], nil
}
func (s *staticUSStore) Executive(_ context.Context) ([]string, error) {
	return s.executive, nil
}

func fixtureStore() *staticUSStore {
	return &staticUSStore{
		districts: map[string][]District{
			"10001": {{State: "NY", District: "12"}},
		},
		senators: map[string][]string{
			"NY": {"us:bioguide:S000148", "us:bioguide:G000555"},
		},
		house: map[string][]string{
			"NY:12": {"us:bioguide:N000002"},
		},
		executive: []string{"us:executive:potus"},
	}
}

func TestValidateLocation(t *testing.T) {
	p := NewUSProvider(fixtureStore())

	ok, err := p.ValidateLocation(context.Background(), "10001")
	if err != nil || !ok {
		t.Fatalf("expected valid zip, got ok=%v err=%v", ok, err)
	}
	ok, _ = p.ValidateLocation(context.Background(), "99999")
	if ok {
		t.Fatalf("unknown zip validated")
	}
	ok, _ = p.ValidateLocation(context.Background(), "123")
	if ok {
		t.Fatalf("short input validated")
	}
}

func TestAllTargets_BucketsByChamber(t *testing.T) {
	p := NewUSProvider(fixtureStore())

	sets, err := p.AllTargets(context.Background(), "10001")
	if err != nil {
		t.Fatalf("all targets: %v", err)
	}
	if len(sets[SubtypeUpper]) != 2 || len(sets[SubtypeLower]) != 1 {
		t.Fatalf("unexpected sets %v", sets)
	}
}

func TestAllTargets_UnknownLocationIsErrLocation(t *testing.T) {
	p := NewUSProvider(fixtureStore())

	_, err := p.AllTargets(context.Background(), "99999")
	if err == nil {
		t.Fatalf("expected location error")
	}
}

func TestSortTargets(t *testing.T) {
	p := NewUSProvider(fixtureStore())
	sets := TargetSets{
		SubtypeUpper: {"u1", "u2"},
		SubtypeLower: {"l1"},
		SubtypeExec:  {"e1"},
	}

	got := p.SortTargets(sets, SubtypeBoth, OrderUpperFirst, false, nil)
	if len(got) != 3 || got[0] != "u1" || got[2] != "l1" {
		t.Fatalf("upper-first ordering wrong: %v", got)
	}

	got = p.SortTargets(sets, SubtypeBoth, "", false, nil)
	if got[0] != "l1" {
		t.Fatalf("default ordering should be lower-first: %v", got)
	}

	got = p.SortTargets(sets, SubtypeUpper, "", false, nil)
	if len(got) != 2 {
		t.Fatalf("upper subtype wrong: %v", got)
	}

	got = p.SortTargets(sets, SubtypeExec, "", false, nil)
	if len(got) != 1 || got[0] != "e1" {
		t.Fatalf("exec subtype wrong: %v", got)
	}
}

func TestSortTargets_ShuffleIsDeterministicWithSeed(t *testing.T) {
	p := NewUSProvider(fixtureStore())
	sets := TargetSets{
		SubtypeUpper: {"u1", "u2", "u3", "u4"},
		SubtypeLower: {"l1", "l2"},
	}

	a := p.SortTargets(sets, SubtypeBoth, "", true, rand.New(rand.NewSource(7)))
	b := p.SortTargets(sets, SubtypeBoth, "", true, rand.New(rand.NewSource(7)))
	if len(a) != 6 || len(b) != 6 {
		t.Fatalf("unexpected lengths %d %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed produced different orders: %v vs %v", a, b)
		}
	}
	// Shuffling must not move targets across chambers.
	for _, k := range a[:2] {
		if k != "l1" && k != "l2" {
			t.Fatalf("lower chamber block broken: %v", a)
		}
	}
}

func TestRegistry_ForCountry(t *testing.T) {
	reg := Registry{"US": NewUSProvider(fixtureStore())}
	if _, ok := reg.ForCountry("us"); !ok {
		t.Fatalf("country codes should match case-insensitively")
	}
	if _, ok := reg.ForCountry("FR"); ok {
		t.Fatalf("unexpected provider for FR")
	}
}
