package reporting

import (
	"context"
	"errors"
	"time"

	"callflow-platform/internal/session"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// AttemptSource abstracts data access for reporting.
//
// Implementations should query immutable sources (the append-only attempt
// log), never mutable session state.

type AttemptSource interface {
	ListAttempts(ctx context.Context, campaignID int64, from, to time.Time) ([]session.CallAttempt, error)
}

type Service struct {
	source AttemptSource
}

func NewService(source AttemptSource) *Service { return &Service{source: source} }

func (s *Service) AttemptsSummary(ctx context.Context, req AttemptsSummaryRequest) (AttemptsSummary, error) {
	if req.CampaignID == 0 {
		return AttemptsSummary{}, ErrInvalidRequest
	}
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return AttemptsSummary{}, ErrInvalidRequest
	}
	if s.source == nil {
		return AttemptsSummary{}, errors.New("reporting: attempt source not configured")
	}

	rows, err := s.source.ListAttempts(ctx, req.CampaignID, req.Range.From, req.Range.To)
	if err != nil {
		return AttemptsSummary{}, err
	}

	out := AttemptsSummary{CampaignID: req.CampaignID, ByTarget: map[string]int{}}
	sessions := map[string]struct{}{}
	for _, a := range rows {
		out.TotalAttempts++
		out.TotalDurationSeconds += a.DurationSeconds
		out.ByTarget[a.TargetKey]++
		sessions[a.SessionID] = struct{}{}
		switch a.Status {
		case "completed":
			out.CompletedAttempts++
		case "failed":
			out.FailedAttempts++
		case "no-answer":
			out.NoAnswerAttempts++
		case "busy":
			out.BusyAttempts++
		case "canceled":
			out.CanceledAttempts++
		}
	}
	out.DistinctSessions = len(sessions)
	if out.TotalAttempts > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / out.TotalAttempts
	}
	if len(out.ByTarget) == 0 {
		out.ByTarget = nil
	}
	return out, nil
}
