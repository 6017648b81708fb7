package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/realtyvoice/backend/domain/entities"
	"github.com/realtyvoice/backend/domain/repositories"
	"github.com/realtyvoice/backend/internal/metrics"
)

// UpstreamError wraps any failure of an external speech provider
type UpstreamError struct {
	Provider string
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s error: %v", e.Provider, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// SpeechDefaults are applied when a request leaves a field empty
type SpeechDefaults struct {
	VoiceID       string
	ModelID       string
	AgentID       string
	OutputFormat  entities.OutputFormat
	MaxTextLength int
}

// Synthesis is an accepted synthesis job whose audio is arriving on Chunks
type Synthesis struct {
	Params      entities.SynthesisParams
	Provider    string
	ContentType string
	Chunks      <-chan entities.AudioChunk
}

// StreamError wraps an error read from Chunks
func (s *Synthesis) StreamError(err error) error {
	return &UpstreamError{Provider: s.Provider, Err: err}
}

// TranscriptionResult is a transcript with the lead details found in it
type TranscriptionResult struct {
	Transcript    string                 `json:"transcript"`
	Language      string                 `json:"language"`
	Confidence    float64                `json:"confidence"`
	ExtractedInfo entities.ExtractedInfo `json:"extracted_info"`
}

// SpeechService resolves client requests against the configured defaults
// and hands them to the speech providers
type SpeechService struct {
	tts         repositories.TextToSpeech
	stt         repositories.SpeechToText
	ttsProvider string
	sttProvider string
	defaults    SpeechDefaults
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// SpeechServiceOption configures a SpeechService
type SpeechServiceOption func(*SpeechService)

// WithSTTProviderName sets the provider name used in transcription errors
func WithSTTProviderName(name string) SpeechServiceOption {
	return func(s *SpeechService) {
		s.sttProvider = name
	}
}

// WithMetrics records provider calls on m
func WithMetrics(m *metrics.Metrics) SpeechServiceOption {
	return func(s *SpeechService) {
		s.metrics = m
	}
}

// NewSpeechService creates a new speech service
func NewSpeechService(
	tts repositories.TextToSpeech,
	stt repositories.SpeechToText,
	defaults SpeechDefaults,
	logger *zap.Logger,
	opts ...SpeechServiceOption,
) *SpeechService {
	if defaults.OutputFormat == "" {
		defaults.OutputFormat = entities.DefaultOutputFormat
	}

	s := &SpeechService{
		tts:         tts,
		stt:         stt,
		ttsProvider: "ElevenLabs",
		sttProvider: "ElevenLabs",
		defaults:    defaults,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolve applies the defaults to a request. A non-empty agent id takes
// priority over the voice id. The default agent applies only when the
// request leaves agent_id out; an explicit null or "" opts out of it.
func (s *SpeechService) Resolve(req *entities.SynthesisRequest) entities.SynthesisParams {
	agentID := s.defaults.AgentID
	if req.AgentID.Set {
		agentID = req.AgentID.Value
	}
	voiceID := firstNonEmpty(req.VoiceID, s.defaults.VoiceID)

	format := req.OutputFormat
	if format == "" {
		format = s.defaults.OutputFormat
	}

	return entities.SynthesisParams{
		Text:         req.Text,
		VoiceID:      firstNonEmpty(agentID, voiceID),
		ModelID:      firstNonEmpty(req.Model, s.defaults.ModelID),
		OutputFormat: format,
		Stream:       req.Streaming(),
	}
}

// Synthesize validates req and starts audio generation. Invalid requests
// never reach the provider.
func (s *SpeechService) Synthesize(ctx context.Context, req *entities.SynthesisRequest) (*Synthesis, error) {
	if err := req.Validate(s.defaults.MaxTextLength); err != nil {
		return nil, err
	}

	params := s.Resolve(req)

	start := time.Now()
	chunks, err := s.tts.Synthesize(ctx, params)
	if err != nil {
		s.record("synthesize", err, start)
		return nil, s.wrap(s.ttsProvider, err)
	}
	s.record("synthesize", nil, start)

	return &Synthesis{
		Params:      params,
		Provider:    s.ttsProvider,
		ContentType: params.OutputFormat.ContentType(),
		Chunks:      chunks,
	}, nil
}

// Collect drains a synthesis into one buffer. A chunk error becomes an upstream error.
func (s *SpeechService) Collect(synthesis *Synthesis) ([]byte, error) {
	var audio []byte
	var streamErr error
	for chunk := range synthesis.Chunks {
		if chunk.Err != nil {
			streamErr = chunk.Err
			continue
		}
		audio = append(audio, chunk.Data...)
	}
	if streamErr != nil {
		return nil, synthesis.StreamError(streamErr)
	}
	return audio, nil
}

// Transcribe recognizes a clip and extracts the lead details from it
func (s *SpeechService) Transcribe(ctx context.Context, audio []byte, config repositories.AudioConfig) (*TranscriptionResult, error) {
	if len(audio) == 0 {
		return nil, fmt.Errorf("%w: audio file is empty", entities.ErrInvalidRequest)
	}

	start := time.Now()
	transcription, err := s.stt.Transcribe(ctx, audio, config)
	s.record("transcribe", err, start)
	if err != nil {
		return nil, s.wrap(s.sttProvider, err)
	}

	s.logger.Info("Transcription completed",
		zap.String("filename", config.Filename),
		zap.String("language", transcription.LanguageCode),
		zap.Int("textLength", len(transcription.Text)))

	return &TranscriptionResult{
		Transcript:    transcription.Text,
		Language:      transcription.LanguageCode,
		Confidence:    transcription.LanguageProbability,
		ExtractedInfo: entities.ExtractKeyInformation(transcription.Text),
	}, nil
}

// ListVoices returns the voice catalogue of the provider
func (s *SpeechService) ListVoices(ctx context.Context) ([]map[string]interface{}, error) {
	start := time.Now()
	voices, err := s.tts.ListVoices(ctx)
	s.record("list_voices", err, start)
	if err != nil {
		return nil, s.wrap(s.ttsProvider, err)
	}
	return voices, nil
}

// wrap leaves configuration errors and rejected audio untouched and
// flattens everything else into an upstream error
func (s *SpeechService) wrap(provider string, err error) error {
	var cfgErr *repositories.ConfigError
	if errors.As(err, &cfgErr) ||
		errors.Is(err, repositories.ErrUnsupportedAudio) ||
		errors.Is(err, repositories.ErrAudioTooLarge) {
		return err
	}
	return &UpstreamError{Provider: provider, Err: err}
}

func (s *SpeechService) record(operation string, err error, start time.Time) {
	if s.metrics == nil {
		return
	}
	status := metrics.StatusSuccess
	if err != nil {
		status = metrics.StatusError
	}
	s.metrics.RecordProviderRequest(operation, status, time.Since(start))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
