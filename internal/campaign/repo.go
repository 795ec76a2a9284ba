package campaign

import (
	"context"
	"errors"
	"strconv"
)

var ErrNotFound = errors.New("campaign: not found")

// Repository is the read-mostly persistence contract for campaigns.
// Authoring CRUD lives outside this service; the call flow only reads
// campaigns and the operator API only flips status.
type Repository interface {
	GetByID(ctx context.Context, id int64) (Campaign, error)
	GetByName(ctx context.Context, name string) (Campaign, error)
	List(ctx context.Context) ([]Campaign, error)
	UpdateStatus(ctx context.Context, id int64, status Status) error
}

// FindByRef resolves a campaign reference from webhook parameters: numeric
// ids first, then an exact name match kept for legacy call-congress URLs.
func FindByRef(ctx context.Context, repo Repository, ref string) (Campaign, error) {
	if ref == "" {
		return Campaign{}, ErrNotFound
	}
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return repo.GetByID(ctx, id)
	}
	return repo.GetByName(ctx, ref)
}
