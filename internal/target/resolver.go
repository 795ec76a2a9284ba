package target

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrUnknown reports a key that neither the political-data source nor the
// local store knows about.
var ErrUnknown = errors.New("target: unknown key")

// Resolver implements lookup-or-create target resolution.
//
// Semantics:
// - Repeated resolution of an unchanged key never creates duplicates.
// - Upstream changes are merged field-by-field, overwriting only when the
//   new value is non-empty and different; offices are matched by uid.
// - Concurrent first-resolution of the same key is resolved by the storage
//   uniqueness constraint: the losing insert is converted to a read.
type Resolver struct {
	repo   Repository
	source DataSource
	log    *slog.Logger
}

func NewResolver(repo Repository, source DataSource, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{repo: repo, source: source, log: log}
}

// Resolve returns the stored target for key, creating or refreshing it from
// the political-data source. The bool reports whether a new record was
// created by this call.
func (r *Resolver) Resolve(ctx context.Context, key string) (Target, bool, error) {
	if _, _, err := ParseKey(key); err != nil {
		return Target{}, false, err
	}

	rec, found, err := r.source.Lookup(ctx, key)
	if err != nil {
		// A degraded cache must not break an in-progress call when we
		// already hold a copy of the target.
		r.log.Warn("political data lookup failed", "key", key, "err", err)
		found = false
	}

	stored, getErr := r.repo.GetByKey(ctx, key)
	switch {
	case getErr == nil:
		if !found {
			return stored, false, nil
		}
		return r.refresh(ctx, stored, rec)

	case errors.Is(getErr, ErrNotFound):
		if !found {
			return Target{}, false, fmt.Errorf("%w: %s", ErrUnknown, key)
		}
		t := Target{
			Key:      key,
			Title:    rec.Title,
			Name:     rec.Name,
			District: rec.District,
			Number:   rec.Number,
			Location: rec.Location,
			Offices:  rec.Offices,
		}
		inserted, insErr := r.repo.Insert(ctx, t)
		if errors.Is(insErr, ErrDuplicateKey) {
			// Lost the first-resolution race; the winner's row is ours too.
			existing, err := r.repo.GetByKey(ctx, key)
			if err != nil {
				return Target{}, false, err
			}
			return existing, false, nil
		}
		if insErr != nil {
			return Target{}, false, insErr
		}
		return inserted, true, nil

	default:
		return Target{}, false, getErr
	}
}

// refresh merges fresh source data into a stored target.
func (r *Resolver) refresh(ctx context.Context, stored Target, rec Record) (Target, bool, error) {
	changed := false
	merge := func(dst *string, val string) {
		if val != "" && *dst != val {
			*dst = val
			changed = true
		}
	}
	merge(&stored.Title, rec.Title)
	merge(&stored.Name, rec.Name)
	merge(&stored.District, rec.District)
	merge(&stored.Number, rec.Number)
	merge(&stored.Location, rec.Location)

	if changed {
		if err := r.repo.UpdateFields(ctx, stored); err != nil {
			return Target{}, false, err
		}
	}

	for _, o := range rec.Offices {
		idx := -1
		for i := range stored.Offices {
			if stored.Offices[i].UID == o.UID {
				idx = i
				break
			}
		}
		if idx >= 0 && stored.Offices[idx] == o {
			continue
		}
		if err := r.repo.SaveOffice(ctx, stored.ID, o); err != nil {
			return Target{}, false, err
		}
		if idx >= 0 {
			stored.Offices[idx] = o
		} else {
			stored.Offices = append(stored.Offices, o)
		}
	}

	return stored, false, nil
}
