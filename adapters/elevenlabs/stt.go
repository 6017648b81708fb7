package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"go.uber.org/zap"

	"github.com/realtyvoice/backend/domain/entities"
	"github.com/realtyvoice/backend/domain/repositories"
)

// Transcribe uploads a clip to the speech-to-text API
func (c *Client) Transcribe(ctx context.Context, audio []byte, config repositories.AudioConfig) (*entities.Transcription, error) {
	if len(audio) == 0 {
		return nil, fmt.Errorf("audio cannot be empty")
	}

	filename := config.Filename
	if filename == "" {
		filename = "audio.mp3"
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)

	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, fmt.Errorf("failed to write audio: %w", err)
	}

	fields := map[string]string{
		"model_id":               c.sttModelID,
		"timestamps_granularity": "word",
		"tag_audio_events":       "true",
	}
	if config.Language != "" {
		fields["language_code"] = config.Language
	}
	for k, v := range fields {
		if err := form.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("failed to write field %s: %w", k, err)
		}
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("failed to close form: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBaseURL+"/speech-to-text", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", form.FormDataContentType())
	c.setAuth(httpReq)

	c.logger.Info("Sending audio for transcription",
		zap.String("filename", filename),
		zap.Int("audioSize", len(audio)),
		zap.String("modelID", c.sttModelID))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Error("ElevenLabs STT returned error",
			zap.Int("statusCode", resp.StatusCode),
			zap.String("response", string(errorBody)))
		return nil, &ProviderError{StatusCode: resp.StatusCode, Body: string(errorBody)}
	}

	var result entities.Transcription
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	c.logger.Info("Transcription completed",
		zap.String("language", result.LanguageCode),
		zap.Float64("confidence", result.LanguageProbability),
		zap.Int("textLength", len(result.Text)))

	return &result, nil
}
