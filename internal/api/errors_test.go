package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"github.com/realtyvoice/backend/adapters/elevenlabs"
	"github.com/realtyvoice/backend/adapters/file"
	"github.com/realtyvoice/backend/domain/entities"
	"github.com/realtyvoice/backend/domain/repositories"
	"github.com/realtyvoice/backend/usecase"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   int
		wantDetail string
	}{
		{
			name:       "validation",
			err:        fmt.Errorf("%w: text must not be empty", entities.ErrInvalidRequest),
			wantCode:   http.StatusUnprocessableEntity,
			wantDetail: "invalid request: text must not be empty",
		},
		{
			name:       "missing api key",
			err:        elevenlabs.ErrMissingAPIKey,
			wantCode:   http.StatusInternalServerError,
			wantDetail: "ELEVEN_API_KEY is not configured. Add it to backend/.env",
		},
		{
			name:       "provider failure",
			err:        &usecase.UpstreamError{Provider: "ElevenLabs", Err: &elevenlabs.ProviderError{StatusCode: 429, Body: "too_many_requests"}},
			wantCode:   http.StatusBadGateway,
			wantDetail: "ElevenLabs error: status 429: too_many_requests",
		},
		{
			name:       "unsupported audio",
			err:        fmt.Errorf("%w: MP3", repositories.ErrUnsupportedAudio),
			wantCode:   http.StatusBadRequest,
			wantDetail: "unsupported audio format: MP3",
		},
		{
			name:       "audio too large",
			err:        fmt.Errorf("%w: 10485760 bytes", repositories.ErrAudioTooLarge),
			wantCode:   http.StatusRequestEntityTooLarge,
			wantDetail: "audio too large: 10485760 bytes",
		},
		{
			name:       "store failure",
			err:        &storeError{err: file.ErrCorruptLog},
			wantCode:   http.StatusInternalServerError,
			wantDetail: "Failed to store log: " + file.ErrCorruptLog.Error(),
		},
		{
			name:       "echo error",
			err:        echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired JWT token"),
			wantCode:   http.StatusUnauthorized,
			wantDetail: "Invalid or expired JWT token",
		},
		{
			name:       "unknown",
			err:        errors.New("boom"),
			wantCode:   http.StatusInternalServerError,
			wantDetail: "Internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, detail := classify(tt.err)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantDetail, detail)
		})
	}
}

func TestHTTPErrorHandler_SkipsCommittedResponses(t *testing.T) {
	e := echo.New()
	handler := NewHTTPErrorHandler(zaptest.NewLogger(t))

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/tts", nil), rec)
	c.Response().Header().Set(echo.HeaderContentType, "audio/mpeg")
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Write([]byte("partial"))

	handler(errors.New("late failure"), c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "partial", rec.Body.String())
}
