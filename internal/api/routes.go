package api

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/realtyvoice/backend/internal/auth"
	"github.com/realtyvoice/backend/internal/metrics"
	"github.com/realtyvoice/backend/internal/websocket"
	"github.com/realtyvoice/backend/usecase"
)

// Dependencies are the services the routes are served from
type Dependencies struct {
	Speech      *usecase.SpeechService
	SessionLogs *usecase.SessionLogService
	Hub         *websocket.Hub
	Metrics     *metrics.Metrics

	// Tokens enables bearer authentication when set
	Tokens *auth.TokenManager

	HasAPIKey      bool
	MaxUploadBytes int64
	Logger         *zap.Logger
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, deps Dependencies) {
	h := &handler{
		speech:         deps.Speech,
		sessionLogs:    deps.SessionLogs,
		metrics:        deps.Metrics,
		hasAPIKey:      deps.HasAPIKey,
		maxUploadBytes: deps.MaxUploadBytes,
		logger:         deps.Logger,
	}

	// Health check and metrics stay open
	e.GET("/health", h.health)
	if deps.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(deps.Metrics.Handler()))
	}

	var protected []echo.MiddlewareFunc
	if deps.Tokens != nil {
		protected = append(protected, auth.Middleware(deps.Tokens, deps.Logger))
	}

	e.POST("/tts", h.synthesize, protected...)
	e.POST("/session-log", h.appendSessionLog, protected...)
	e.GET("/session-log", h.listSessionLogs, protected...)
	e.POST("/transcribe", h.transcribe, protected...)
	e.GET("/voices", h.voices, protected...)

	if deps.Hub != nil {
		e.GET("/tts/ws", func(c echo.Context) error {
			return websocket.HandleSynthesis(deps.Hub, c)
		}, protected...)
	}
}
