package target

import (
	"context"
	"testing"
)

func fixtureSource() StaticSource {
	return StaticSource{
		"us:bioguide:S000148": {
			Title:    "Senator",
			Name:     "Charles Schumer",
			Number:   "+12022246542",
			Location: "NY",
			Offices: []Office{
				{UID: "S000148-albany", Name: "Albany", Type: "district", Number: "+15184314070"},
			},
		},
	}
}

func TestResolve_CreatesOnce(t *testing.T) {
	repo := NewMemoryRepo()
	r := NewResolver(repo, fixtureSource(), nil)

	first, created, err := r.Resolve(context.Background(), "us:bioguide:S000148")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !created {
		t.Fatalf("expected created on first resolution")
	}
	if first.Name != "Charles Schumer" || len(first.Offices) != 1 {
		t.Fatalf("unexpected target %+v", first)
	}

	second, created, err := r.Resolve(context.Background(), "us:bioguide:S000148")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if created {
		t.Fatalf("second resolution must not create")
	}
	if second.ID != first.ID {
		t.Fatalf("expected same identity, got %d vs %d", second.ID, first.ID)
	}
}

func TestResolve_MergesUpstreamChanges(t *testing.T) {
	repo := NewMemoryRepo()
	src := fixtureSource()
	r := NewResolver(repo, src, nil)

	if _, _, err := r.Resolve(context.Background(), "us:bioguide:S000148"); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	// Upstream phone change plus a new office.
	rec := src["us:bioguide:S000148"]
	rec.Number = "+12022240001"
	rec.Offices = append(rec.Offices, Office{UID: "S000148-nyc", Name: "New York City", Type: "district", Number: "+12124862000"})
	src["us:bioguide:S000148"] = rec

	updated, created, err := r.Resolve(context.Background(), "us:bioguide:S000148")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if created {
		t.Fatalf("merge must not report created")
	}
	if updated.Number != "+12022240001" {
		t.Fatalf("expected merged number, got %q", updated.Number)
	}
	if len(updated.Offices) != 2 {
		t.Fatalf("expected office insert, got %+v", updated.Offices)
	}

	// Empty upstream values never clobber stored ones.
	rec.Number = ""
	src["us:bioguide:S000148"] = rec
	again, _, err := r.Resolve(context.Background(), "us:bioguide:S000148")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if again.Number != "+12022240001" {
		t.Fatalf("empty upstream value overwrote number: %q", again.Number)
	}
}

func TestResolve_FirstResolutionRace(t *testing.T) {
	repo := NewMemoryRepo()
	src := fixtureSource()

	// Simulate a second caller winning the insert between our read and write.
	rival := NewResolver(NewMemoryRepoView(repo), src, nil)
	fired := false
	repo.InsertHook = func() {
		if fired {
			return
		}
		fired = true
		if _, _, err := rival.Resolve(context.Background(), "us:bioguide:S000148"); err != nil {
			t.Fatalf("rival resolve: %v", err)
		}
	}

	r := NewResolver(repo, src, nil)
	got, created, err := r.Resolve(context.Background(), "us:bioguide:S000148")
	if err != nil {
		t.Fatalf("resolve after race: %v", err)
	}
	if created {
		t.Fatalf("loser of the race must not report created")
	}

	stored, err := repo.GetByKey(context.Background(), "us:bioguide:S000148")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.ID != got.ID {
		t.Fatalf("both callers must observe the same identity: %d vs %d", stored.ID, got.ID)
	}
}

func TestResolve_UnknownKey(t *testing.T) {
	r := NewResolver(NewMemoryRepo(), StaticSource{}, nil)
	if _, _, err := r.Resolve(context.Background(), "us:bioguide:NOPE"); err == nil {
		t.Fatalf("expected error for unknown key")
	}
	if _, _, err := r.Resolve(context.Background(), "garbage"); err == nil {
		t.Fatalf("expected error for malformed key")
	}
}

// NewMemoryRepoView wraps a MemoryRepo without its InsertHook so the rival
// resolver does not recurse.
func NewMemoryRepoView(r *MemoryRepo) Repository { return memoryRepoView{r} }

type memoryRepoView struct{ r *MemoryRepo }

func (v memoryRepoView) GetByKey(ctx context.Context, key string) (Target, error) {
	return v.r.GetByKey(ctx, key)
}
func (v memoryRepoView) Insert(ctx context.Context, t Target) (Target, error) {
	hook := v.r.InsertHook
	v.r.InsertHook = nil
	defer func() { v.r.InsertHook = hook }()
	return v.r.Insert(ctx, t)
}
func (v memoryRepoView) UpdateFields(ctx context.Context, t Target) error {
	return v.r.UpdateFields(ctx, t)
}
func (v memoryRepoView) SaveOffice(ctx context.Context, id int64, o Office) error {
	return v.r.SaveOffice(ctx, id, o)
}
