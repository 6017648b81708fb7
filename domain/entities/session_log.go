package entities

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// timestampLayouts are tried in order. Layouts without a zone read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// SessionLogEntry is a client-submitted record of a conversation and the
// recommendations derived from it
type SessionLogEntry struct {
	SessionID       string                   `json:"session_id" bson:"session_id"`
	Conversation    []map[string]interface{} `json:"conversation" bson:"conversation"`
	Recommendations []map[string]interface{} `json:"recommendations" bson:"recommendations"`
	CreatedAt       time.Time                `json:"created_at" bson:"created_at"`
}

// Validate checks the required fields of the entry
func (e *SessionLogEntry) Validate() error {
	if strings.TrimSpace(e.SessionID) == "" {
		return fmt.Errorf("%w: session_id is required", ErrInvalidRequest)
	}
	if e.Conversation == nil {
		return fmt.Errorf("%w: conversation is required", ErrInvalidRequest)
	}
	if e.Recommendations == nil {
		return fmt.Errorf("%w: recommendations is required", ErrInvalidRequest)
	}
	return nil
}

// Normalize fills defaults. A zero CreatedAt becomes now in UTC.
func (e *SessionLogEntry) Normalize(now func() time.Time) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now().UTC()
	}
}

// UnmarshalJSON accepts ISO 8601 created_at values with or without an offset
func (e *SessionLogEntry) UnmarshalJSON(data []byte) error {
	type plain SessionLogEntry
	aux := struct {
		*plain
		CreatedAt *string `json:"created_at"`
	}{plain: (*plain)(e)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	e.CreatedAt = time.Time{}
	if aux.CreatedAt == nil || *aux.CreatedAt == "" {
		return nil
	}
	ts, err := ParseTimestamp(*aux.CreatedAt)
	if err != nil {
		return err
	}
	e.CreatedAt = ts
	return nil
}

// ParseTimestamp reads an ISO 8601 date or date-time. A missing offset means UTC.
func ParseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: created_at %q is not an ISO 8601 timestamp", ErrInvalidRequest, raw)
}
