package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/realtyvoice/backend/domain/entities"
	"github.com/realtyvoice/backend/domain/repositories"
	"github.com/realtyvoice/backend/internal/metrics"
	"github.com/realtyvoice/backend/usecase"
)

type handler struct {
	speech         *usecase.SpeechService
	sessionLogs    *usecase.SessionLogService
	metrics        *metrics.Metrics
	hasAPIKey      bool
	maxUploadBytes int64
	logger         *zap.Logger
}

func (h *handler) health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:           "ok",
		HasElevenLabsKey: h.hasAPIKey,
	})
}

// synthesize streams or buffers the audio for one text, depending on the
// stream flag of the request
func (h *handler) synthesize(c echo.Context) error {
	var req entities.SynthesisRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}

	synthesis, err := h.speech.Synthesize(c.Request().Context(), &req)
	if err != nil {
		return err
	}
	format := string(synthesis.Params.OutputFormat)

	if !synthesis.Params.Stream {
		audio, err := h.speech.Collect(synthesis)
		if err != nil {
			return err
		}
		h.recordAudio(format, len(audio))
		return c.Blob(http.StatusOK, synthesis.ContentType, audio)
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, synthesis.ContentType)
	res.WriteHeader(http.StatusOK)

	written := 0
	var writeErr, streamErr error
	for chunk := range synthesis.Chunks {
		if chunk.Err != nil {
			streamErr = chunk.Err
			continue
		}
		// keep draining after a failed write; the request context is canceled
		// by then and the producer stops on its own
		if writeErr != nil {
			continue
		}
		if _, writeErr = res.Write(chunk.Data); writeErr == nil {
			res.Flush()
			written += len(chunk.Data)
		}
	}
	h.recordAudio(format, written)

	switch {
	case streamErr != nil:
		h.logger.Error("Audio stream truncated",
			zap.String("outputFormat", format),
			zap.Int("bytesSent", written),
			zap.Error(synthesis.StreamError(streamErr)))
	case writeErr != nil:
		h.logger.Warn("Client went away during audio stream",
			zap.Int("bytesSent", written),
			zap.Error(writeErr))
	}
	return nil
}

func (h *handler) appendSessionLog(c echo.Context) error {
	var entry entities.SessionLogEntry
	if err := bindJSON(c, &entry); err != nil {
		return err
	}

	if err := h.sessionLogs.Append(c.Request().Context(), &entry); err != nil {
		if errors.Is(err, entities.ErrInvalidRequest) {
			return err
		}
		return &storeError{err: err}
	}

	return c.JSON(http.StatusOK, SessionLogStoredResponse{Status: "ok", Stored: true})
}

func (h *handler) listSessionLogs(c echo.Context) error {
	entries, err := h.sessionLogs.List(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Failed to read log: %v", err)).SetInternal(err)
	}
	if entries == nil {
		entries = []entities.SessionLogEntry{}
	}
	return c.JSON(http.StatusOK, SessionLogListResponse(entries))
}

// transcribe accepts a multipart upload with the audio in the file field
func (h *handler) transcribe(c echo.Context) error {
	req := c.Request()
	if h.maxUploadBytes > 0 {
		req.Body = http.MaxBytesReader(c.Response(), req.Body, h.maxUploadBytes)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return echo.NewHTTPError(http.StatusRequestEntityTooLarge,
				fmt.Sprintf("Audio file exceeds %d bytes", h.maxUploadBytes))
		}
		return echo.NewHTTPError(http.StatusBadRequest, "An audio file is required in the file field").SetInternal(err)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Could not read the uploaded file").SetInternal(err)
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Could not read the uploaded file").SetInternal(err)
	}
	if len(audio) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "The uploaded file is empty")
	}

	result, err := h.speech.Transcribe(req.Context(), audio, repositories.AudioConfig{
		Filename: fileHeader.Filename,
		Language: c.FormValue("language_code"),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

func (h *handler) voices(c echo.Context) error {
	voices, err := h.speech.ListVoices(c.Request().Context())
	if err != nil {
		return err
	}
	if voices == nil {
		voices = []map[string]interface{}{}
	}
	return c.JSON(http.StatusOK, VoicesResponse{Voices: voices})
}

func (h *handler) recordAudio(format string, n int) {
	if h.metrics != nil {
		h.metrics.RecordAudioBytes(format, n)
	}
}

// bindJSON decodes the request body; malformed bodies count as validation errors
func bindJSON(c echo.Context, v interface{}) error {
	err := (&echo.DefaultBinder{}).BindBody(c, v)
	if err == nil {
		return nil
	}
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) && errors.Is(httpErr.Internal, entities.ErrInvalidRequest) {
		return httpErr.Internal
	}
	return fmt.Errorf("%w: malformed request body", entities.ErrInvalidRequest)
}
