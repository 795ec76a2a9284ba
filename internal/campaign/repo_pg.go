package campaign

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
)

// PostgresRepo reads campaigns from Postgres.
//
// Assumed tables:
// - campaigns
// - campaign_phone_numbers (campaign_id, number, country)
// - campaign_target_keys   (campaign_id, target_key, position) ordered set
// - campaign_messages      (campaign_id, key, audio_url, text)
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const campaignColumns = `
id, name, country_code, subtype, language, segment_by, locate_by,
target_ordering, shuffle_chamber, target_offices, call_maximum,
prompt_schedule, allow_intl_calls, status, embed, created_at
`

func (r *PostgresRepo) GetByID(ctx context.Context, id int64) (Campaign, error) {
	const q = `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1`
	return r.fetch(ctx, q, id)
}

func (r *PostgresRepo) GetByName(ctx context.Context, name string) (Campaign, error) {
	const q = `SELECT ` + campaignColumns + ` FROM campaigns WHERE name = $1`
	return r.fetch(ctx, q, name)
}

func (r *PostgresRepo) fetch(ctx context.Context, q string, arg any) (Campaign, error) {
	var (
		c        Campaign
		locateBy sql.NullString
		maximum  sql.NullInt64
		embed    []byte
	)
	err := r.db.QueryRowContext(ctx, q, arg).Scan(
		&c.ID,
		&c.Name,
		&c.CountryCode,
		&c.Subtype,
		&c.Language,
		&c.SegmentBy,
		&locateBy,
		&c.TargetOrdering,
		&c.ShuffleChamber,
		&c.TargetOffices,
		&maximum,
		&c.PromptSchedule,
		&c.AllowIntlCalls,
		&c.Status,
		&embed,
		&c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Campaign{}, ErrNotFound
		}
		return Campaign{}, err
	}
	c.LocateBy = LocateBy(locateBy.String)
	c.CallMaximum = int(maximum.Int64)
	if len(embed) > 0 {
		var e Embed
		if err := json.Unmarshal(embed, &e); err == nil && (e.Script != "" || e.Redirect != "") {
			c.Embed = &e
		}
	}

	if err := r.loadPhoneNumbers(ctx, &c); err != nil {
		return Campaign{}, err
	}
	if err := r.loadTargetKeys(ctx, &c); err != nil {
		return Campaign{}, err
	}
	if err := r.loadMessages(ctx, &c); err != nil {
		return Campaign{}, err
	}
	return c, nil
}

func (r *PostgresRepo) loadPhoneNumbers(ctx context.Context, c *Campaign) error {
	const q = `SELECT number, country FROM campaign_phone_numbers WHERE campaign_id = $1`
	rows, err := r.db.QueryContext(ctx, q, c.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var n PhoneNumber
		if err := rows.Scan(&n.Number, &n.Country); err != nil {
			return err
		}
		c.PhoneNumbers = append(c.PhoneNumbers, n)
	}
	return rows.Err()
}

func (r *PostgresRepo) loadTargetKeys(ctx context.Context, c *Campaign) error {
	const q = `SELECT target_key FROM campaign_target_keys WHERE campaign_id = $1 ORDER BY position`
	rows, err := r.db.QueryContext(ctx, q, c.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return err
		}
		c.TargetKeys = append(c.TargetKeys, k)
	}
	return rows.Err()
}

func (r *PostgresRepo) loadMessages(ctx context.Context, c *Campaign) error {
	const q = `SELECT key, audio_url, text FROM campaign_messages WHERE campaign_id = $1`
	rows, err := r.db.QueryContext(ctx, q, c.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			key string
			m   Message
		)
		if err := rows.Scan(&key, &m.AudioURL, &m.Text); err != nil {
			return err
		}
		if c.Messages == nil {
			c.Messages = map[string]Message{}
		}
		c.Messages[key] = m
	}
	return rows.Err()
}

func (r *PostgresRepo) List(ctx context.Context) ([]Campaign, error) {
	const q = `SELECT id FROM campaigns ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out := make([]Campaign, 0, len(ids))
	for _, id := range ids {
		c, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *PostgresRepo) UpdateStatus(ctx context.Context, id int64, status Status) error {
	const q = `UPDATE campaigns SET status = $2 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id, status)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
