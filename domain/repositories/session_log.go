package repositories

import (
	"context"

	"github.com/realtyvoice/backend/domain/entities"
)

// SessionLogRepository stores session log entries in append order
type SessionLogRepository interface {
	Append(ctx context.Context, entry *entities.SessionLogEntry) error
	List(ctx context.Context) ([]entities.SessionLogEntry, error)
}
