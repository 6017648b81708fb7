package mongo

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/realtyvoice/backend/domain/entities"
)

// TestSessionLogRepository_Integration tests the MongoDB session log repository
// This test requires a running MongoDB instance (skipped if MONGODB_URI is not set)
func TestSessionLogRepository_Integration(t *testing.T) {
	mongoURI := os.Getenv("MONGODB_URI")
	if mongoURI == "" {
		t.Skip("Skipping MongoDB integration test - MONGODB_URI not set")
	}

	ctx := context.Background()
	logger, _ := zap.NewDevelopment()

	client, err := NewClient(ctx, mongoURI, "realty_voice_test", logger)
	if err != nil {
		t.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Close(ctx)

	defer func() {
		// Clean up test database
		client.Database.Drop(ctx)
	}()

	repo := NewSessionLogRepository(client.Database)

	t.Run("AppendAndList", func(t *testing.T) {
		createdAt := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
		for i := 0; i < 3; i++ {
			entry := &entities.SessionLogEntry{
				SessionID:       fmt.Sprintf("session-%d", i),
				Conversation:    []map[string]interface{}{{"role": "user", "text": "hello"}},
				Recommendations: []map[string]interface{}{},
				CreatedAt:       createdAt,
			}
			if err := repo.Append(ctx, entry); err != nil {
				t.Fatalf("Failed to append entry: %v", err)
			}
		}

		entries, err := repo.List(ctx)
		if err != nil {
			t.Fatalf("Failed to list entries: %v", err)
		}

		if len(entries) != 3 {
			t.Fatalf("Expected 3 entries, got %d", len(entries))
		}

		for i, e := range entries {
			if e.SessionID != fmt.Sprintf("session-%d", i) {
				t.Errorf("Expected session-%d at position %d, got %s", i, i, e.SessionID)
			}
			if !e.CreatedAt.Equal(createdAt) {
				t.Errorf("Expected created_at %v, got %v", createdAt, e.CreatedAt)
			}
			if e.Conversation[0]["text"] != "hello" {
				t.Errorf("Expected conversation to round-trip, got %v", e.Conversation)
			}
		}
	})

	t.Run("AppendNil", func(t *testing.T) {
		if err := repo.Append(ctx, nil); err == nil {
			t.Error("Expected error when appending nil entry")
		}
	})
}
