package schedule

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("schedule: subscription not found")

type Repository interface {
	// Upsert creates the subscription if absent; the bool reports whether a
	// new row was created.
	Upsert(ctx context.Context, sub Subscription) (bool, error)
	Delete(ctx context.Context, campaignID int64, phoneHash string) (bool, error)
	Get(ctx context.Context, campaignID int64, phoneHash string) (Subscription, error)
	ListByCampaign(ctx context.Context, campaignID int64) ([]Subscription, error)
}
