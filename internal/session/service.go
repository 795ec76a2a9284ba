package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidArgument = errors.New("session: invalid argument")

// referralCodeMax caps caller-supplied referral codes.
const referralCodeMax = 64

// Service owns the session lifecycle and the attempt log.
type Service struct {
	repo Repository

	// clock is injectable for deterministic tests.
	clock func() time.Time

	salt            string
	logPhoneNumbers bool
}

func NewService(repo Repository, salt string, logPhoneNumbers bool) *Service {
	return &Service{repo: repo, clock: time.Now, salt: salt, logPhoneNumbers: logPhoneNumbers}
}

// StartParams describes a new caller journey.
type StartParams struct {
	CampaignID   int64
	Direction    Direction
	FromNumber   string
	UserPhone    string
	Location     string
	ReferralCode string
}

// Start creates the session record at the first webhook of a journey.
func (s *Service) Start(ctx context.Context, p StartParams) (Session, error) {
	if p.CampaignID == 0 || p.Direction == "" {
		return Session{}, ErrInvalidArgument
	}
	if len(p.ReferralCode) > referralCodeMax {
		p.ReferralCode = p.ReferralCode[:referralCodeMax]
	}
	sess := Session{
		ID:           uuid.NewString(),
		CampaignID:   p.CampaignID,
		Direction:    p.Direction,
		FromNumber:   p.FromNumber,
		PhoneHash:    s.HashPhone(p.UserPhone),
		Location:     p.Location,
		ReferralCode: p.ReferralCode,
		Status:       StatusInitiated,
		CreatedAt:    s.clock().UTC(),
	}
	if s.logPhoneNumbers {
		sess.PhoneNumber = p.UserPhone
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// SetLocationOnce persists the caller's validated location; only the first
// write takes effect.
func (s *Service) SetLocationOnce(ctx context.Context, id, location string) error {
	if id == "" || location == "" {
		return ErrInvalidArgument
	}
	return s.repo.SetLocation(ctx, id, location)
}

// RecordRinging captures the provider queue delay on the first ringing event.
func (s *Service) RecordRinging(ctx context.Context, id string) error {
	sess, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.repo.SetQueueDelay(ctx, id, s.clock().UTC().Sub(sess.CreatedAt))
}

// CloseWithStatus latches the session's terminal status. Duplicate or
// out-of-order completion callbacks are harmless no-ops.
func (s *Service) CloseWithStatus(ctx context.Context, id, status string, durationSeconds int) error {
	if id == "" {
		return ErrInvalidArgument
	}
	_, err := s.repo.Close(ctx, id, status, durationSeconds)
	return err
}

// LogAttempt appends one dial outcome. Replayed completion callbacks for the
// same (session, index) do not produce a second row.
func (s *Service) LogAttempt(ctx context.Context, a CallAttempt) error {
	if a.SessionID == "" || a.TargetKey == "" {
		return ErrInvalidArgument
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.clock().UTC()
	}
	_, err := s.repo.AppendAttempt(ctx, a)
	return err
}

// CloseOpenInbound reconciles an async inbound completion event with the
// most recent open inbound session for the caller. The bool reports whether
// a session was found.
func (s *Service) CloseOpenInbound(ctx context.Context, campaignID int64, userPhone, location, status string, durationSeconds int) (Session, bool, error) {
	sess, err := s.repo.FindOpenInbound(ctx, campaignID, s.HashPhone(userPhone), location)
	if errors.Is(err, ErrNotFound) {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, err
	}
	if _, err := s.repo.Close(ctx, sess.ID, status, durationSeconds); err != nil {
		return Session{}, false, err
	}
	sess.Closed = true
	sess.Status = status
	sess.DurationSeconds = durationSeconds
	return sess, true, nil
}

// HashPhone produces the salted one-way caller fingerprint.
func (s *Service) HashPhone(phone string) string {
	if phone == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(s.salt + phone))
	return hex.EncodeToString(sum[:])
}
