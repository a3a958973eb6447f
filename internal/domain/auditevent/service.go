package auditevent

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/consentio/consentio/internal/platform/middleware"
)

// Service writes and reads the audit trail. Record is fire-and-forget: a
// failing audit store is logged and never fails the operation that produced
// the entry.
type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Record persists an audit event, absorbing any error.
func (s *Service) Record(ctx context.Context, e *AuditEvent) {
	if err := s.repo.Create(ctx, e); err != nil {
		s.logger.Error().Err(err).
			Str("username", e.Username).
			Str("action", e.Action).
			Msg("failed to persist audit event")
	}
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*AuditEvent, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Search(ctx context.Context, params SearchParams) ([]*AuditEvent, int, error) {
	return s.repo.Search(ctx, params)
}

// Recorder adapts the service to the HTTP audit middleware. Entries are
// persisted with a background context so a cancelled request cannot lose its
// own trail; errors are absorbed by Record.
func (s *Service) Recorder() middleware.AuditRecorder {
	return middleware.AuditRecorderFunc(func(entry middleware.AuditEntry) error {
		e := &AuditEvent{
			Recorded:     entry.Timestamp,
			Username:     entry.Username,
			UserName:     entry.UserName,
			Action:       entry.Action,
			ResourceType: entry.ResourceType,
			ResourceID:   entry.ResourceID,
			IPAddress:    entry.IPAddress,
			UserAgent:    entry.UserAgent,
			RequestID:    entry.RequestID,
			Details: map[string]interface{}{
				"method": entry.Method,
				"path":   entry.Path,
				"status": entry.StatusCode,
			},
		}
		s.Record(context.Background(), e)
		return nil
	})
}
