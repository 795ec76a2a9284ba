package schedule

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresRepo stores subscriptions in schedule_subscriptions with a unique
// constraint on (campaign_id, phone_hash).
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Upsert(ctx context.Context, sub Subscription) (bool, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO schedule_subscriptions (campaign_id, phone_hash, location, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (campaign_id, phone_hash) DO NOTHING
		RETURNING id`,
		sub.CampaignID, sub.PhoneHash, sub.Location, sub.CreatedAt,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("upsert subscription: %w", err)
	}
	return true, nil
}

func (r *PostgresRepo) Delete(ctx context.Context, campaignID int64, phoneHash string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM schedule_subscriptions WHERE campaign_id = $1 AND phone_hash = $2`,
		campaignID, phoneHash,
	)
	if err != nil {
		return false, fmt.Errorf("delete subscription: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete subscription: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresRepo) Get(ctx context.Context, campaignID int64, phoneHash string) (Subscription, error) {
	var sub Subscription
	err := r.db.QueryRowContext(ctx, `
		SELECT id, campaign_id, phone_hash, location, created_at
		FROM schedule_subscriptions
		WHERE campaign_id = $1 AND phone_hash = $2`,
		campaignID, phoneHash,
	).Scan(&sub.ID, &sub.CampaignID, &sub.PhoneHash, &sub.Location, &sub.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Subscription{}, ErrNotFound
	}
	if err != nil {
		return Subscription{}, fmt.Errorf("get subscription: %w", err)
	}
	return sub, nil
}

func (r *PostgresRepo) ListByCampaign(ctx context.Context, campaignID int64) ([]Subscription, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, campaign_id, phone_hash, location, created_at
		FROM schedule_subscriptions
		WHERE campaign_id = $1
		ORDER BY created_at`,
		campaignID,
	)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var out []Subscription
	for rows.Next() {
		var sub Subscription
		if err := rows.Scan(&sub.ID, &sub.CampaignID, &sub.PhoneHash, &sub.Location, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}
