package session

import "time"

// Session is one caller's end-to-end interaction with a campaign, created at
// the first webhook of the journey and closed exactly once when the gateway
// reports completion.
//
// Privacy invariant: the raw caller number is persisted only when the
// installation opts in (LOG_PHONE_NUMBERS); the salted fingerprint is always
// stored and is what inbound status reconciliation matches on.
type Session struct {
	ID         string    `json:"id" db:"id"`
	CampaignID int64     `json:"campaign_id" db:"campaign_id"`
	Direction  Direction `json:"direction" db:"direction"`

	// FromNumber is the campaign-owned number the call goes out from (or
	// arrived on, for inbound).
	FromNumber string `json:"from_number" db:"from_number"`

	PhoneNumber string `json:"phone_number,omitempty" db:"phone_number"`
	PhoneHash   string `json:"phone_hash" db:"phone_hash"`

	Location     string `json:"location,omitempty" db:"location"`
	ReferralCode string `json:"referral_code,omitempty" db:"referral_code"`

	Status          string `json:"status" db:"status"`
	DurationSeconds int    `json:"duration" db:"duration"`

	// QueueDelay is the interval between session creation and the first
	// "ringing" event from the provider.
	QueueDelay time.Duration `json:"queue_delay,omitempty" db:"queue_delay"`

	Closed    bool      `json:"closed" db:"closed"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// StatusInitiated is the only non-terminal session status; everything else
// comes verbatim from the gateway (completed, busy, no-answer, failed...).
const StatusInitiated = "initiated"

// CallAttempt is one attempt to bridge the caller to one target. Attempts
// are an append-only log: rows are never mutated after insert, and at most
// one row exists per (session, index).
type CallAttempt struct {
	ID         int64  `json:"id" db:"id"`
	SessionID  string `json:"session_id" db:"session_id"`
	CampaignID int64  `json:"campaign_id" db:"campaign_id"`
	TargetKey  string `json:"target_key" db:"target_key"`
	CallIndex  int    `json:"call_index" db:"call_index"`

	ProviderCallID  string `json:"provider_call_id,omitempty" db:"provider_call_id"`
	Status          string `json:"status" db:"status"`
	DurationSeconds int    `json:"duration" db:"duration"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
