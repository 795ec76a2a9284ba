package session

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PostgresRepo persists sessions and call attempts.
//
// Assumed tables:
// - sessions      (id uuid PK, campaign_id, direction, from_number,
//                  phone_number, phone_hash, location, referral_code,
//                  status, duration, queue_delay_ms, closed, created_at)
// - call_attempts (id bigserial, session_id, campaign_id, target_key,
//                  call_index, provider_call_id, status, duration,
//                  created_at, UNIQUE (session_id, call_index))
//
// The UNIQUE constraint is what makes Complete replays idempotent; the
// closed flag makes session close a one-way latch.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Create(ctx context.Context, s Session) error {
	const q = `
INSERT INTO sessions (
  id, campaign_id, direction, from_number, phone_number, phone_hash,
  location, referral_code, status, duration, queue_delay_ms, closed, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
`
	_, err := r.db.ExecContext(ctx, q,
		s.ID, s.CampaignID, s.Direction, s.FromNumber, s.PhoneNumber, s.PhoneHash,
		s.Location, s.ReferralCode, s.Status, s.DurationSeconds,
		s.QueueDelay.Milliseconds(), s.Closed, s.CreatedAt,
	)
	return err
}

const sessionColumns = `
id, campaign_id, direction, from_number, phone_number, phone_hash,
location, referral_code, status, duration, queue_delay_ms, closed, created_at
`

func (r *PostgresRepo) Get(ctx context.Context, id string) (Session, error) {
	const q = `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`
	return r.scanSession(r.db.QueryRowContext(ctx, q, id))
}

func (r *PostgresRepo) scanSession(row *sql.Row) (Session, error) {
	var (
		s       Session
		delayMS int64
	)
	err := row.Scan(
		&s.ID, &s.CampaignID, &s.Direction, &s.FromNumber, &s.PhoneNumber, &s.PhoneHash,
		&s.Location, &s.ReferralCode, &s.Status, &s.DurationSeconds,
		&delayMS, &s.Closed, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, err
	}
	s.QueueDelay = time.Duration(delayMS) * time.Millisecond
	return s, nil
}

func (r *PostgresRepo) SetLocation(ctx context.Context, id, location string) error {
	const q = `UPDATE sessions SET location = $2 WHERE id = $1 AND location = ''`
	_, err := r.db.ExecContext(ctx, q, id, location)
	return err
}

func (r *PostgresRepo) SetQueueDelay(ctx context.Context, id string, d time.Duration) error {
	const q = `UPDATE sessions SET queue_delay_ms = $2 WHERE id = $1 AND queue_delay_ms = 0`
	_, err := r.db.ExecContext(ctx, q, id, d.Milliseconds())
	return err
}

func (r *PostgresRepo) Close(ctx context.Context, id, status string, durationSeconds int) (bool, error) {
	// closed = FALSE in the predicate makes the latch atomic under
	// concurrent duplicate callbacks.
	const q = `
UPDATE sessions SET closed = TRUE, status = $2, duration = $3
WHERE id = $1 AND closed = FALSE
`
	res, err := r.db.ExecContext(ctx, q, id, status, durationSeconds)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *PostgresRepo) AppendAttempt(ctx context.Context, a CallAttempt) (bool, error) {
	const q = `
INSERT INTO call_attempts (
  session_id, campaign_id, target_key, call_index,
  provider_call_id, status, duration, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (session_id, call_index) DO NOTHING
`
	res, err := r.db.ExecContext(ctx, q,
		a.SessionID, a.CampaignID, a.TargetKey, a.CallIndex,
		a.ProviderCallID, a.Status, a.DurationSeconds, a.CreatedAt,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *PostgresRepo) FindOpenInbound(ctx context.Context, campaignID int64, phoneHash, location string) (Session, error) {
	const q = `
SELECT ` + sessionColumns + `
FROM sessions
WHERE campaign_id = $1 AND phone_hash = $2 AND direction = 'inbound'
  AND closed = FALSE AND ($3 = '' OR location = $3)
ORDER BY created_at DESC
LIMIT 1
`
	return r.scanSession(r.db.QueryRowContext(ctx, q, campaignID, phoneHash, location))
}

func (r *PostgresRepo) ListAttempts(ctx context.Context, campaignID int64, from, to time.Time) ([]CallAttempt, error) {
	const q = `
SELECT id, session_id, campaign_id, target_key, call_index,
       provider_call_id, status, duration, created_at
FROM call_attempts
WHERE campaign_id = $1 AND created_at >= $2 AND created_at < $3
ORDER BY created_at DESC
`
	rows, err := r.db.QueryContext(ctx, q, campaignID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CallAttempt
	for rows.Next() {
		var a CallAttempt
		if err := rows.Scan(
			&a.ID, &a.SessionID, &a.CampaignID, &a.TargetKey, &a.CallIndex,
			&a.ProviderCallID, &a.Status, &a.DurationSeconds, &a.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
