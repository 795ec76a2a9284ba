package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only; there are no update or delete methods.

type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal audit information.
//
// IMPORTANT:
// - Audit is internal-only. Do not expose these records to callers by default.
// - Callers should treat audit logging as best-effort.

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogOperatorAction records an authenticated operator action.
func (s *Service) LogOperatorAction(ctx context.Context, actorUserID, actorRole, ip, message string, campaignID int64, metadata string) error {
	return s.Append(ctx, Event{
		Type:        EventTypeOperatorAction,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		IPAddress:   ip,
		CampaignID:  campaignID,
		Message:     message,
		Metadata:    metadata,
	})
}

// LogScheduleChange records a caller opting into or out of recurring
// call reminders.
func (s *Service) LogScheduleChange(ctx context.Context, campaignID int64, sessionID, phoneHash string, subscribed bool) error {
	typ := EventTypeScheduleSubscribe
	msg := "caller subscribed to call reminders"
	if !subscribed {
		typ = EventTypeScheduleUnsubscribe
		msg = "caller unsubscribed from call reminders"
	}
	return s.Append(ctx, Event{
		Type:       typ,
		CampaignID: campaignID,
		SessionID:  sessionID,
		PhoneHash:  phoneHash,
		Message:    msg,
	})
}

// LogBlocklistChange records an operator editing the caller blocklist.
func (s *Service) LogBlocklistChange(ctx context.Context, actorUserID, actorRole, ip, phoneHash, message string) error {
	return s.Append(ctx, Event{
		Type:        EventTypeBlocklistChange,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		IPAddress:   ip,
		PhoneHash:   phoneHash,
		Message:     message,
	})
}
