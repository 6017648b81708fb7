package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/realtyvoice/backend/domain/entities"
	"github.com/realtyvoice/backend/domain/repositories"
)

const sessionLogCollection = "session_logs"

// SessionLogRepository keeps one document per entry. Each insert is atomic
// on the server, so concurrent appends cannot clobber each other.
type SessionLogRepository struct {
	collection *mongo.Collection
}

var _ repositories.SessionLogRepository = (*SessionLogRepository)(nil)

// NewSessionLogRepository creates a new MongoDB session log repository
func NewSessionLogRepository(db *mongo.Database) *SessionLogRepository {
	return &SessionLogRepository{
		collection: db.Collection(sessionLogCollection),
	}
}

// Append implements repositories.SessionLogRepository
func (r *SessionLogRepository) Append(ctx context.Context, entry *entities.SessionLogEntry) error {
	if entry == nil {
		return errors.New("entry cannot be nil")
	}

	doc := bson.M{
		"session_id":      entry.SessionID,
		"conversation":    entry.Conversation,
		"recommendations": entry.Recommendations,
		"created_at":      entry.CreatedAt,
	}

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert session log: %w", err)
	}
	return nil
}

// List implements repositories.SessionLogRepository.
// ObjectIDs grow with insertion, so sorting on _id gives append order.
func (r *SessionLogRepository) List(ctx context.Context) ([]entities.SessionLogEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query session logs: %w", err)
	}
	defer cursor.Close(ctx)

	entries := make([]entities.SessionLogEntry, 0)
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode session logs: %w", err)
	}
	return entries, nil
}
