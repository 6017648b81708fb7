package repositories

import (
	"context"

	"github.com/realtyvoice/backend/domain/entities"
)

// TextToSpeech generates audio for resolved synthesis parameters.
// Errors that happen before any audio is produced are returned directly;
// later failures arrive as the final chunk on the channel.
type TextToSpeech interface {
	Synthesize(ctx context.Context, params entities.SynthesisParams) (<-chan entities.AudioChunk, error)
	ListVoices(ctx context.Context) ([]map[string]interface{}, error)
}
