package audit

import "time"

// Event is an immutable, append-only audit log record.
//
// Invariants:
// - Events are never updated or deleted.
// - actor and ip capture are best-effort; do not block call flows on audit failures.
//
// Storage recommendation (Postgres):
// - Table audit_events with an INSERT-only policy.
// - Optional: trigger to prevent UPDATE/DELETE.
// - Optional: partition by time for retention.

type Event struct {
	ID string `json:"id" db:"id"`

	// Type indicates the business category of the audit record.
	Type EventType `json:"type" db:"type"`

	// ActorUserID is the authenticated operator causing the event (if any).
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`
	ActorRole   string `json:"actor_role,omitempty" db:"actor_role"`

	// IPAddress should capture the original client IP when available.
	// Prefer X-Forwarded-For processing at the edge; store the resolved client IP here.
	IPAddress string `json:"ip_address,omitempty" db:"ip_address"`

	// Subject identifiers (optional, depending on the event type).
	CampaignID int64  `json:"campaign_id,omitempty" db:"campaign_id"`
	SessionID  string `json:"session_id,omitempty" db:"session_id"`
	PhoneHash  string `json:"phone_hash,omitempty" db:"phone_hash"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeOperatorAction      EventType = "operator_action"
	EventTypeScheduleSubscribe   EventType = "schedule_subscribe"
	EventTypeScheduleUnsubscribe EventType = "schedule_unsubscribe"
	EventTypeBlocklistChange     EventType = "blocklist_change"
)
