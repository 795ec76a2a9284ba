package target

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgresRepo persists targets and offices.
//
// Assumed tables:
// - targets        (id bigserial, key UNIQUE, title, name, district, number, location)
// - target_offices (id bigserial, target_id, uid, name, address, type, number,
//                   UNIQUE (target_id, uid))
//
// The UNIQUE constraint on targets.key is what makes concurrent
// first-resolution safe; see Resolver.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const uniqueViolation = "23505"

func (r *PostgresRepo) GetByKey(ctx context.Context, key string) (Target, error) {
	const q = `
SELECT id, key, title, name, district, number, location
FROM targets
WHERE key = $1
`
	var t Target
	err := r.db.QueryRowContext(ctx, q, key).Scan(
		&t.ID, &t.Key, &t.Title, &t.Name, &t.District, &t.Number, &t.Location,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Target{}, ErrNotFound
		}
		return Target{}, err
	}

	const oq = `
SELECT uid, name, address, type, number
FROM target_offices
WHERE target_id = $1
ORDER BY id
`
	rows, err := r.db.QueryContext(ctx, oq, t.ID)
	if err != nil {
		return Target{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var o Office
		if err := rows.Scan(&o.UID, &o.Name, &o.Address, &o.Type, &o.Number); err != nil {
			return Target{}, err
		}
		t.Offices = append(t.Offices, o)
	}
	if err := rows.Err(); err != nil {
		return Target{}, err
	}
	return t, nil
}

func (r *PostgresRepo) Insert(ctx context.Context, t Target) (Target, error) {
	const q = `
INSERT INTO targets (key, title, name, district, number, location)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING id
`
	err := r.db.QueryRowContext(ctx, q,
		t.Key, t.Title, t.Name, t.District, t.Number, t.Location,
	).Scan(&t.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Target{}, ErrDuplicateKey
		}
		return Target{}, err
	}

	for _, o := range t.Offices {
		if err := r.SaveOffice(ctx, t.ID, o); err != nil {
			return Target{}, err
		}
	}
	return t, nil
}

func (r *PostgresRepo) UpdateFields(ctx context.Context, t Target) error {
	const q = `
UPDATE targets
SET title = $2, name = $3, district = $4, number = $5, location = $6
WHERE key = $1
`
	res, err := r.db.ExecContext(ctx, q, t.Key, t.Title, t.Name, t.District, t.Number, t.Location)
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

func (r *PostgresRepo) SaveOffice(ctx context.Context, targetID int64, o Office) error {
	const q = `
INSERT INTO target_offices (target_id, uid, name, address, type, number)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (target_id, uid)
DO UPDATE SET name = EXCLUDED.name, address = EXCLUDED.address,
              type = EXCLUDED.type, number = EXCLUDED.number
`
	_, err := r.db.ExecContext(ctx, q, targetID, o.UID, o.Name, o.Address, o.Type, o.Number)
	return err
}
