package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/realtyvoice/backend/domain/entities"
	"github.com/realtyvoice/backend/domain/repositories"
	"github.com/realtyvoice/backend/usecase"
)

// storeError marks a failure of the session log store
type storeError struct {
	err error
}

func (e *storeError) Error() string {
	return fmt.Sprintf("Failed to store log: %v", e.err)
}

func (e *storeError) Unwrap() error {
	return e.err
}

// NewHTTPErrorHandler renders every error as {"detail": ...} and logs it once
func NewHTTPErrorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, detail := classify(err)

		fields := []zap.Field{
			zap.String("method", c.Request().Method),
			zap.String("path", c.Request().URL.Path),
			zap.Int("status", code),
			zap.Error(err),
		}
		switch {
		case code >= http.StatusInternalServerError:
			logger.Error("Request failed", fields...)
		case code != http.StatusNotFound:
			logger.Warn("Request rejected", fields...)
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(code)
		} else {
			writeErr = c.JSON(code, ErrorResponse{Detail: detail})
		}
		if writeErr != nil {
			logger.Error("Failed to write error response", zap.Error(writeErr))
		}
	}
}

// classify maps an error to its status code and client-facing detail
func classify(err error) (int, string) {
	var httpErr *echo.HTTPError
	var cfgErr *repositories.ConfigError
	var upstream *usecase.UpstreamError
	var stored *storeError

	switch {
	case errors.As(err, &httpErr):
		if inner, ok := httpErr.Internal.(*echo.HTTPError); ok {
			httpErr = inner
		}
		return httpErr.Code, fmt.Sprint(httpErr.Message)
	case errors.Is(err, entities.ErrInvalidRequest):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, repositories.ErrUnsupportedAudio):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, repositories.ErrAudioTooLarge):
		return http.StatusRequestEntityTooLarge, err.Error()
	case errors.As(err, &cfgErr):
		return http.StatusInternalServerError, cfgErr.Message
	case errors.As(err, &upstream):
		return http.StatusBadGateway, upstream.Error()
	case errors.As(err, &stored):
		return http.StatusInternalServerError, stored.Error()
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
