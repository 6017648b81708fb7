package stt

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"

	"github.com/realtyvoice/backend/domain/entities"
	"github.com/realtyvoice/backend/domain/repositories"
)

// MaxInlineAudioBytes is the largest clip Cloud Speech accepts as inline content
const MaxInlineAudioBytes = 10 << 20

// GoogleSpeechToText implements SpeechToText for Google Cloud.
// Credentials come from the usual application default lookup.
type GoogleSpeechToText struct {
	client   *speech.Client
	language string
	logger   *zap.Logger
}

// NewGoogleSpeechToText creates the Cloud Speech client
func NewGoogleSpeechToText(ctx context.Context, language string, logger *zap.Logger) (*GoogleSpeechToText, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}

	return &GoogleSpeechToText{
		client:   client,
		language: language,
		logger:   logger,
	}, nil
}

// Transcribe converts a complete clip to text. The long running call is used
// so clips over a minute are accepted; it returns once recognition is done.
func (g *GoogleSpeechToText) Transcribe(ctx context.Context, audio []byte, config repositories.AudioConfig) (*entities.Transcription, error) {
	if len(audio) == 0 {
		return nil, fmt.Errorf("audio cannot be empty")
	}
	if len(audio) > MaxInlineAudioBytes {
		return nil, fmt.Errorf("%w: Google Speech accepts at most %d bytes of inline audio", repositories.ErrAudioTooLarge, MaxInlineAudioBytes)
	}

	encoding, err := getAudioEncoding(encodingForFilename(config.Filename))
	if err != nil {
		return nil, err
	}

	language := config.Language
	if language == "" {
		language = g.language
	}

	g.logger.Info("Sending audio to Google Speech",
		zap.String("filename", config.Filename),
		zap.Int("audioSize", len(audio)),
		zap.String("language", language))

	op, err := g.client.LongRunningRecognize(ctx, &speechpb.LongRunningRecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:     encoding,
			LanguageCode: language,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start recognition: %w", err)
	}

	resp, err := op.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to recognize audio: %w", err)
	}

	return toTranscription(resp.GetResults(), language), nil
}

// Close releases the underlying gRPC connection
func (g *GoogleSpeechToText) Close() error {
	return g.client.Close()
}

func toTranscription(results []*speechpb.SpeechRecognitionResult, language string) *entities.Transcription {
	parts := make([]string, 0, len(results))
	var confidence float32
	detected := ""

	for _, result := range results {
		alternatives := result.GetAlternatives()
		if len(alternatives) == 0 {
			continue
		}
		// Take the best alternative
		parts = append(parts, strings.TrimSpace(alternatives[0].GetTranscript()))
		confidence += alternatives[0].GetConfidence()
		if detected == "" {
			detected = result.GetLanguageCode()
		}
	}

	if detected == "" {
		detected = language
	}

	out := &entities.Transcription{
		Text:         strings.Join(parts, " "),
		LanguageCode: detected,
	}
	if len(parts) > 0 {
		out.LanguageProbability = float64(confidence) / float64(len(parts))
	}
	return out
}

// encodingForFilename guesses the encoding name from the file extension
func encodingForFilename(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".wav":
		return "WAV"
	case ".flac":
		return "FLAC"
	case ".ulaw", ".mulaw":
		return "MULAW"
	case ".amr":
		return "AMR"
	case ".awb":
		return "AMR_WB"
	case ".ogg", ".opus":
		return "OGG_OPUS"
	case ".webm":
		return "WEBM_OPUS"
	default:
		return strings.TrimPrefix(strings.ToUpper(filepath.Ext(filename)), ".")
	}
}

// getAudioEncoding converts string encoding to Google Speech API enum
func getAudioEncoding(encoding string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch encoding {
	case "WAV", "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC, nil
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW, nil
	case "AMR":
		return speechpb.RecognitionConfig_AMR, nil
	case "AMR_WB":
		return speechpb.RecognitionConfig_AMR_WB, nil
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "SPEEX_WITH_HEADER_BYTE":
		return speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE, nil
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED,
			fmt.Errorf("%w: Google Speech cannot decode %s audio, send wav, flac, ogg, webm, amr or ulaw", repositories.ErrUnsupportedAudio, encoding)
	}
}
