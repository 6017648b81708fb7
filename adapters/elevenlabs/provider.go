package elevenlabs

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/realtyvoice/backend/domain/entities"
	"github.com/realtyvoice/backend/domain/repositories"
)

// Provider hands out a single Client bound to the configured API key.
// The client is built on first use so a missing key only fails the
// requests that need the provider.
type Provider struct {
	config Config
	logger *zap.Logger

	mu     sync.Mutex
	client *Client
}

var (
	_ repositories.TextToSpeech = (*Provider)(nil)
	_ repositories.SpeechToText = (*Provider)(nil)
)

// NewProvider creates a provider; no network or validation happens here
func NewProvider(config Config, logger *zap.Logger) *Provider {
	return &Provider{
		config: config,
		logger: logger,
	}
}

// HasAPIKey reports whether a key was configured
func (p *Provider) HasAPIKey() bool {
	return p.config.APIKey != ""
}

// EnsureClient returns the memoized client, creating it on the first call
func (p *Provider) EnsureClient() (*Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		return p.client, nil
	}

	client, err := NewClient(p.config, p.logger)
	if err != nil {
		return nil, err
	}
	p.client = client
	return client, nil
}

// Synthesize implements repositories.TextToSpeech
func (p *Provider) Synthesize(ctx context.Context, params entities.SynthesisParams) (<-chan entities.AudioChunk, error) {
	client, err := p.EnsureClient()
	if err != nil {
		return nil, err
	}
	return client.Synthesize(ctx, params)
}

// ListVoices implements repositories.TextToSpeech
func (p *Provider) ListVoices(ctx context.Context) ([]map[string]interface{}, error) {
	client, err := p.EnsureClient()
	if err != nil {
		return nil, err
	}
	return client.ListVoices(ctx)
}

// Transcribe implements repositories.SpeechToText
func (p *Provider) Transcribe(ctx context.Context, audio []byte, config repositories.AudioConfig) (*entities.Transcription, error) {
	client, err := p.EnsureClient()
	if err != nil {
		return nil, err
	}
	return client.Transcribe(ctx, audio, config)
}
