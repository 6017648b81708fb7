package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/realtyvoice/backend/domain/entities"
	"github.com/realtyvoice/backend/internal/metrics"
)

type memorySessionLogs struct {
	entries []entities.SessionLogEntry
	err     error
}

func (m *memorySessionLogs) Append(ctx context.Context, entry *entities.SessionLogEntry) error {
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memorySessionLogs) List(ctx context.Context) ([]entities.SessionLogEntry, error) {
	return m.entries, m.err
}

func TestSessionLogService_Append(t *testing.T) {
	repo := &memorySessionLogs{}
	s := NewSessionLogService(repo, nil, zaptest.NewLogger(t))
	fixed := time.Date(2024, 9, 1, 12, 0, 0, 0, time.FixedZone("BST", 3600))
	s.now = func() time.Time { return fixed }

	entry := &entities.SessionLogEntry{
		SessionID:       "abc",
		Conversation:    []map[string]interface{}{{"role": "user", "text": "hi"}},
		Recommendations: []map[string]interface{}{},
	}
	require.NoError(t, s.Append(context.Background(), entry))

	got, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "abc", got[0].SessionID)
	assert.Equal(t, fixed.UTC(), got[0].CreatedAt)
	assert.Equal(t, time.UTC, got[0].CreatedAt.Location())
}

func TestSessionLogService_Append_KeepsClientTimestamp(t *testing.T) {
	repo := &memorySessionLogs{}
	s := NewSessionLogService(repo, nil, zaptest.NewLogger(t))

	created := time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC)
	entry := &entities.SessionLogEntry{
		SessionID:       "abc",
		Conversation:    []map[string]interface{}{},
		Recommendations: []map[string]interface{}{},
		CreatedAt:       created,
	}
	require.NoError(t, s.Append(context.Background(), entry))
	assert.Equal(t, created, repo.entries[0].CreatedAt)
}

func TestSessionLogService_Append_Invalid(t *testing.T) {
	repo := &memorySessionLogs{}
	s := NewSessionLogService(repo, nil, zaptest.NewLogger(t))

	err := s.Append(context.Background(), &entities.SessionLogEntry{Conversation: []map[string]interface{}{}})
	assert.ErrorIs(t, err, entities.ErrInvalidRequest)
	assert.Empty(t, repo.entries)
}

func TestSessionLogService_Append_Metrics(t *testing.T) {
	m := metrics.New()
	repo := &memorySessionLogs{}
	s := NewSessionLogService(repo, m, zaptest.NewLogger(t))

	valid := func() *entities.SessionLogEntry {
		return &entities.SessionLogEntry{
			SessionID:       "abc",
			Conversation:    []map[string]interface{}{},
			Recommendations: []map[string]interface{}{},
		}
	}
	require.NoError(t, s.Append(context.Background(), valid()))

	repo.err = errors.New("disk full")
	assert.Error(t, s.Append(context.Background(), valid()))

	// one series per status
	count, err := testutil.GatherAndCount(m.Registry(), "realty_voice_session_log_appends_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
