package repositories

import (
	"context"

	"github.com/realtyvoice/backend/domain/entities"
)

// SpeechToText abstracts speech recognition services
type SpeechToText interface {
	// Transcribe converts a complete audio clip to text
	Transcribe(ctx context.Context, audio []byte, config AudioConfig) (*entities.Transcription, error)
}

// AudioConfig describes the clip handed to a recognizer
type AudioConfig struct {
	Filename string `json:"filename"`
	Language string `json:"language"`
}
