package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/realtyvoice/backend/domain/entities"
	"github.com/realtyvoice/backend/domain/repositories"
	"github.com/realtyvoice/backend/internal/metrics"
)

// SessionLogService validates and stores client session logs
type SessionLogService struct {
	repo    repositories.SessionLogRepository
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewSessionLogService creates a new session log service. m may be nil.
func NewSessionLogService(repo repositories.SessionLogRepository, m *metrics.Metrics, logger *zap.Logger) *SessionLogService {
	return &SessionLogService{
		repo:    repo,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// Append stores entry, stamping created_at when the client left it out
func (s *SessionLogService) Append(ctx context.Context, entry *entities.SessionLogEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	entry.Normalize(s.now)

	if err := s.repo.Append(ctx, entry); err != nil {
		s.recordAppend(metrics.StatusError)
		return err
	}
	s.recordAppend(metrics.StatusSuccess)

	s.logger.Info("Session log stored",
		zap.String("session_id", entry.SessionID),
		zap.Int("conversation", len(entry.Conversation)),
		zap.Int("recommendations", len(entry.Recommendations)))
	return nil
}

// List returns every stored entry in append order
func (s *SessionLogService) List(ctx context.Context) ([]entities.SessionLogEntry, error) {
	return s.repo.List(ctx)
}

func (s *SessionLogService) recordAppend(status string) {
	if s.metrics != nil {
		s.metrics.RecordSessionLogAppend(status)
	}
}
