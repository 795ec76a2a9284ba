package audit

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresRepo appends events to audit_events. The table should carry an
// INSERT-only policy; this repository never issues UPDATE or DELETE.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_events
			(id, type, actor_user_id, actor_role, ip_address,
			 campaign_id, session_id, phone_hash, message, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID, e.Type, e.ActorUserID, e.ActorRole, e.IPAddress,
		e.CampaignID, e.SessionID, e.PhoneHash, e.Message, e.Metadata, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}
