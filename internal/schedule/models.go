package schedule

import "time"

// Subscription enrolls a caller fingerprint into a campaign's recurring call
// reminders. One active subscription per (campaign, caller).
type Subscription struct {
	ID         int64     `json:"id" db:"id"`
	CampaignID int64     `json:"campaign_id" db:"campaign_id"`
	PhoneHash  string    `json:"phone_hash" db:"phone_hash"`
	Location   string    `json:"location,omitempty" db:"location"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
