package reporting

import "time"

// Common filtering inputs.

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// AttemptsSummaryRequest requests aggregated dial-attempt metrics for one
// campaign over a time range.

type AttemptsSummaryRequest struct {
	CampaignID int64     `json:"campaign_id"`
	Range      TimeRange `json:"range"`
}

type AttemptsSummary struct {
	CampaignID int64 `json:"campaign_id"`

	TotalAttempts     int `json:"total_attempts"`
	CompletedAttempts int `json:"completed_attempts"`
	FailedAttempts    int `json:"failed_attempts"`
	NoAnswerAttempts  int `json:"no_answer_attempts"`
	BusyAttempts      int `json:"busy_attempts"`
	CanceledAttempts  int `json:"canceled_attempts"`

	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`

	// DistinctSessions counts the unique caller journeys behind the attempts.
	DistinctSessions int `json:"distinct_sessions"`

	// ByTarget breaks attempts down per target key.
	ByTarget map[string]int `json:"by_target,omitempty"`
}
