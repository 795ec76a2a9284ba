package schedule

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"callflow-platform/internal/audit"
)

var ErrInvalidArgument = errors.New("schedule: invalid argument")

// Service manages recurring call reminder opt-ins collected during the voice
// flow. Audit logging is best-effort; a failed audit write never blocks the
// caller's journey.
type Service struct {
	repo  Repository
	audit *audit.Service
	log   *slog.Logger
	clock func() time.Time
}

func NewService(repo Repository, auditSvc *audit.Service, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, audit: auditSvc, log: log, clock: time.Now}
}

// Subscribe enrolls the caller; repeated opt-ins are no-ops.
func (s *Service) Subscribe(ctx context.Context, campaignID int64, sessionID, phoneHash, location string) error {
	if campaignID == 0 || phoneHash == "" {
		return ErrInvalidArgument
	}
	created, err := s.repo.Upsert(ctx, Subscription{
		CampaignID: campaignID,
		PhoneHash:  phoneHash,
		Location:   location,
		CreatedAt:  s.clock().UTC(),
	})
	if err != nil {
		return err
	}
	if created {
		s.logChange(ctx, campaignID, sessionID, phoneHash, true)
	}
	return nil
}

// Unsubscribe removes the caller's enrollment if present.
func (s *Service) Unsubscribe(ctx context.Context, campaignID int64, sessionID, phoneHash string) error {
	if campaignID == 0 || phoneHash == "" {
		return ErrInvalidArgument
	}
	deleted, err := s.repo.Delete(ctx, campaignID, phoneHash)
	if err != nil {
		return err
	}
	if deleted {
		s.logChange(ctx, campaignID, sessionID, phoneHash, false)
	}
	return nil
}

// IsSubscribed reports whether the caller is enrolled for the campaign.
func (s *Service) IsSubscribed(ctx context.Context, campaignID int64, phoneHash string) (bool, error) {
	_, err := s.repo.Get(ctx, campaignID, phoneHash)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) logChange(ctx context.Context, campaignID int64, sessionID, phoneHash string, subscribed bool) {
	if s.audit == nil {
		return
	}
	if err := s.audit.LogScheduleChange(ctx, campaignID, sessionID, phoneHash, subscribed); err != nil {
		s.log.Warn("audit write failed", "error", err, "campaign_id", campaignID)
	}
}
