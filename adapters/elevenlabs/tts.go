package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/realtyvoice/backend/domain/entities"
)

// maxErrorBody caps how much of a failed response is kept for diagnostics
const maxErrorBody = 8 << 10

// Synthesize sends text to the text-to-speech API. The HTTP exchange up to
// the response headers happens before returning, so an invalid key, voice or
// model is reported as an error here. The body is then forwarded in chunks.
func (c *Client) Synthesize(ctx context.Context, params entities.SynthesisParams) (<-chan entities.AudioChunk, error) {
	if strings.TrimSpace(params.Text) == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}
	if params.VoiceID == "" {
		return nil, fmt.Errorf("voice id cannot be empty")
	}

	c.logger.Info("Converting text to speech",
		zap.Int("textLength", len(params.Text)),
		zap.String("voiceID", params.VoiceID),
		zap.String("modelID", params.ModelID),
		zap.String("outputFormat", string(params.OutputFormat)),
		zap.Bool("stream", params.Stream))

	payload := synthesisPayload{
		Text:                   params.Text,
		ModelID:                params.ModelID,
		ApplyTextNormalization: "auto",
		VoiceSettings: VoiceSettings{
			Stability:       c.stability,
			SimilarityBoost: c.clarity,
			UseSpeakerBoost: true,
		},
	}

	requestBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/text-to-speech/%s", c.apiBaseURL, url.PathEscape(params.VoiceID))
	if params.Stream {
		endpoint += "/stream"
	}
	query := url.Values{}
	query.Set("output_format", string(params.OutputFormat))
	endpoint += "?" + query.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Accept", acceptHeader(params.OutputFormat))
	httpReq.Header.Set("Content-Type", "application/json")
	c.setAuth(httpReq)

	c.logger.Debug("Sending request to ElevenLabs API", zap.String("url", endpoint))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute HTTP request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Error("ElevenLabs API returned error",
			zap.Int("statusCode", resp.StatusCode),
			zap.String("response", string(errorBody)))
		return nil, &ProviderError{StatusCode: resp.StatusCode, Body: string(errorBody)}
	}

	audioChan := make(chan entities.AudioChunk, 10)
	go c.pump(ctx, resp.Body, audioChan)

	return audioChan, nil
}

// pump copies body into out in chunkSize pieces and closes both when done
func (c *Client) pump(ctx context.Context, body io.ReadCloser, out chan<- entities.AudioChunk) {
	defer close(out)
	defer body.Close()

	buffer := make([]byte, c.chunkSize)
	totalBytes := 0
	chunkCount := 0

	send := func(chunk entities.AudioChunk) bool {
		select {
		case out <- chunk:
			return true
		case <-ctx.Done():
			c.logger.Warn("Context cancelled while sending audio chunk")
			return false
		}
	}

	for {
		n, err := body.Read(buffer)
		if n > 0 {
			totalBytes += n
			chunkCount++

			chunk := make([]byte, n)
			copy(chunk, buffer[:n])
			if !send(entities.AudioChunk{Data: chunk}) {
				return
			}
		}

		if errors.Is(err, io.EOF) {
			c.logger.Info("Finished streaming audio data",
				zap.Int("totalChunks", chunkCount),
				zap.Int("totalBytes", totalBytes))
			return
		}

		if err != nil {
			c.logger.Error("Error reading response body", zap.Error(err))
			send(entities.AudioChunk{Err: fmt.Errorf("failed to read audio stream: %w", err)})
			return
		}
	}
}

// ListVoices retrieves the voices available to the configured account
func (c *Client) ListVoices(ctx context.Context) ([]map[string]interface{}, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBaseURL+"/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	c.setAuth(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &ProviderError{StatusCode: resp.StatusCode, Body: string(errorBody)}
	}

	var voicesResponse struct {
		Voices []map[string]interface{} `json:"voices"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&voicesResponse); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	c.logger.Info("Retrieved available voices", zap.Int("count", len(voicesResponse.Voices)))
	return voicesResponse.Voices, nil
}

// acceptHeader picks the Accept value the API expects for a format
func acceptHeader(format entities.OutputFormat) string {
	switch {
	case strings.HasPrefix(string(format), "pcm"):
		return "audio/pcm"
	case strings.HasPrefix(string(format), "ulaw"):
		return "audio/basic"
	default:
		return "audio/mpeg"
	}
}
