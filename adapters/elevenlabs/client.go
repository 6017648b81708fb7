package elevenlabs

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/realtyvoice/backend/domain/repositories"
)

const (
	defaultAPIBaseURL = "https://api.elevenlabs.io/v1"
	defaultChunkSize  = 4096 // Size of audio chunks forwarded to callers
	defaultSTTModelID = "scribe_v1"
	defaultStability  = 0.5  // Default voice stability
	defaultClarity    = 0.75 // Default voice clarity/similarity_boost
	defaultTimeout    = 60 * time.Second
)

// ErrMissingAPIKey is returned whenever a call needs the provider and no key was configured
var ErrMissingAPIKey error = &repositories.ConfigError{
	Setting: "ELEVEN_API_KEY",
	Message: "ELEVEN_API_KEY is not configured. Add it to backend/.env",
}

// ProviderError is a non-2xx answer from the ElevenLabs API
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("status %d", e.StatusCode)
	}
	return fmt.Sprintf("status %d: %s", e.StatusCode, body)
}

// Config holds configuration for the ElevenLabs client
// Required fields:
// - APIKey: Your ElevenLabs API key
// Optional fields with defaults:
// - APIBaseURL: The base URL for the ElevenLabs API (default: "https://api.elevenlabs.io/v1")
// - STTModelID: Speech-to-text model (default: "scribe_v1")
// - ChunkSize: The size of audio chunks to stream (default: 4096)
// - Stability: Voice stability value between 0 and 1 (default: 0.5)
// - Clarity: Voice clarity/similarity boost value between 0 and 1 (default: 0.75)
// - HTTPClient: Client used for API calls (default: 60s timeout)
type Config struct {
	APIKey     string
	APIBaseURL string
	STTModelID string
	ChunkSize  int
	Stability  float64
	Clarity    float64
	HTTPClient *http.Client
}

// Client talks to the ElevenLabs REST API
type Client struct {
	apiKey     string
	apiBaseURL string
	sttModelID string
	chunkSize  int
	stability  float64
	clarity    float64
	httpClient *http.Client
	logger     *zap.Logger
}

// VoiceSettings represents voice settings for the ElevenLabs API
type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style,omitempty"`
	UseSpeakerBoost bool    `json:"use_speaker_boost,omitempty"`
}

// synthesisPayload represents the request payload for the text-to-speech API
type synthesisPayload struct {
	Text                   string        `json:"text"`
	ModelID                string        `json:"model_id,omitempty"`
	VoiceSettings          VoiceSettings `json:"voice_settings"`
	ApplyTextNormalization string        `json:"apply_text_normalization,omitempty"`
}

// ValidateConfig validates the Config
func ValidateConfig(config Config) error {
	if config.APIKey == "" {
		return ErrMissingAPIKey
	}

	if config.Stability != 0 && (config.Stability < 0 || config.Stability > 1) {
		return fmt.Errorf("stability must be between 0 and 1, got %f", config.Stability)
	}

	if config.Clarity != 0 && (config.Clarity < 0 || config.Clarity > 1) {
		return fmt.Errorf("clarity must be between 0 and 1, got %f", config.Clarity)
	}

	if config.ChunkSize < 0 {
		return fmt.Errorf("chunk size must be positive, got %d", config.ChunkSize)
	}

	return nil
}

// NewClient creates a new ElevenLabs client
func NewClient(config Config, logger *zap.Logger) (*Client, error) {
	if err := ValidateConfig(config); err != nil {
		return nil, err
	}

	apiBaseURL := strings.TrimRight(config.APIBaseURL, "/")
	if apiBaseURL == "" {
		apiBaseURL = defaultAPIBaseURL
	}

	sttModelID := config.STTModelID
	if sttModelID == "" {
		sttModelID = defaultSTTModelID
	}

	chunkSize := config.ChunkSize
	if chunkSize == 0 {
		chunkSize = defaultChunkSize
	}

	stability := config.Stability
	if stability == 0 {
		stability = defaultStability
	}

	clarity := config.Clarity
	if clarity == 0 {
		clarity = defaultClarity
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	logger.Info("ElevenLabs client initialized",
		zap.String("apiBaseURL", apiBaseURL),
		zap.String("sttModelID", sttModelID),
		zap.Int("chunkSize", chunkSize))

	return &Client{
		apiKey:     config.APIKey,
		apiBaseURL: apiBaseURL,
		sttModelID: sttModelID,
		chunkSize:  chunkSize,
		stability:  stability,
		clarity:    clarity,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

func (c *Client) setAuth(req *http.Request) {
	req.Header.Set("xi-api-key", c.apiKey)
}
