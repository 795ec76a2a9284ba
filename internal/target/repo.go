package target

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("target: not found")
	// ErrDuplicateKey reports a unique-constraint violation on targets.key.
	// The resolver converts it into a read (concurrent first-resolution race).
	ErrDuplicateKey = errors.New("target: duplicate key")
)

// Repository is the persistence contract for resolved targets.
type Repository interface {
	GetByKey(ctx context.Context, key string) (Target, error)
	// Insert stores a new target with its offices. Returns ErrDuplicateKey
	// when another writer inserted the same key first.
	Insert(ctx context.Context, t Target) (Target, error)
	// UpdateFields persists merged top-level attributes.
	UpdateFields(ctx context.Context, t Target) error
	// SaveOffice inserts or updates one office row, matched by (target, uid).
	SaveOffice(ctx context.Context, targetID int64, o Office) error
}
