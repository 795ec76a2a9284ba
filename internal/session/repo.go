package session

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("session: not found")

// Repository is the persistence contract for sessions and call attempts.
type Repository interface {
	Create(ctx context.Context, s Session) error
	Get(ctx context.Context, id string) (Session, error)

	// SetLocation persists the caller's location, first write wins.
	SetLocation(ctx context.Context, id, location string) error

	// SetQueueDelay records the creation-to-ringing interval once.
	SetQueueDelay(ctx context.Context, id string, d time.Duration) error

	// Close marks the session terminal. It is a one-way latch: the first
	// call wins and returns true; later calls are no-ops returning false.
	Close(ctx context.Context, id, status string, durationSeconds int) (bool, error)

	// AppendAttempt inserts an attempt row. At most one row may exist per
	// (session, call index); a duplicate insert is ignored and reported
	// via the bool.
	AppendAttempt(ctx context.Context, a CallAttempt) (bool, error)

	// FindOpenInbound returns the most recent non-closed inbound session
	// matching a caller fingerprint, campaign, and location.
	FindOpenInbound(ctx context.Context, campaignID int64, phoneHash, location string) (Session, error)

	// ListAttempts returns attempts for a campaign within [from, to),
	// newest first. Used by reporting.
	ListAttempts(ctx context.Context, campaignID int64, from, to time.Time) ([]CallAttempt, error)
}
