package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/realtyvoice/backend/adapters/elevenlabs"
	"github.com/realtyvoice/backend/adapters/file"
	"github.com/realtyvoice/backend/adapters/mongo"
	"github.com/realtyvoice/backend/adapters/redis"
	"github.com/realtyvoice/backend/adapters/stt"
	"github.com/realtyvoice/backend/domain/repositories"
	"github.com/realtyvoice/backend/internal/api"
	"github.com/realtyvoice/backend/internal/auth"
	"github.com/realtyvoice/backend/internal/config"
	"github.com/realtyvoice/backend/internal/metrics"
	"github.com/realtyvoice/backend/internal/websocket"
	"github.com/realtyvoice/backend/usecase"
)

func main() {
	// Missing files are fine; variables already in the environment win
	_ = godotenv.Load(".env")
	_ = godotenv.Load("venv/.env")

	settings, err := config.Load(os.Getenv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := newLogger(settings.Environment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if !settings.HasAPIKey() {
		logger.Warn("ELEVEN_API_KEY is not set; speech endpoints will fail until it is configured")
	}

	m := metrics.New()

	// Initialize adapters
	provider := elevenlabs.NewProvider(elevenlabs.Config{
		APIKey:     settings.ElevenLabs.APIKey,
		APIBaseURL: settings.ElevenLabs.APIBaseURL,
		STTModelID: settings.ElevenLabs.STTModelID,
	}, logger)

	var closers []func(context.Context)

	speechToText, sttName, closeSTT, err := newSpeechToText(settings, provider, logger)
	if err != nil {
		logger.Fatal("Failed to initialize speech-to-text", zap.Error(err))
	}
	if closeSTT != nil {
		closers = append(closers, closeSTT)
	}
	maxUpload := settings.HTTP.MaxUploadBytes
	if settings.STT.Provider == config.STTProviderGoogle && maxUpload > stt.MaxInlineAudioBytes {
		logger.Info("Lowering the upload limit to the Google Speech inline audio limit",
			zap.Int64("configured", maxUpload),
			zap.Int64("maxUploadBytes", stt.MaxInlineAudioBytes))
		maxUpload = stt.MaxInlineAudioBytes
	}

	sessionLogRepo, closeStore, err := newSessionLogRepository(settings, logger)
	if err != nil {
		logger.Fatal("Failed to initialize session log store", zap.Error(err))
	}
	if closeStore != nil {
		closers = append(closers, closeStore)
	}

	// Initialize usecase services
	speechService := usecase.NewSpeechService(provider, speechToText, usecase.SpeechDefaults{
		VoiceID:       settings.ElevenLabs.DefaultVoiceID,
		ModelID:       settings.ElevenLabs.DefaultModelID,
		AgentID:       settings.ElevenLabs.DefaultAgentID,
		OutputFormat:  settings.ElevenLabs.DefaultOutputFormat,
		MaxTextLength: settings.HTTP.MaxTextLength,
	}, logger, usecase.WithSTTProviderName(sttName), usecase.WithMetrics(m))
	sessionLogService := usecase.NewSessionLogService(sessionLogRepo, m, logger)

	// Initialize WebSocket hub
	hub := websocket.NewHub(speechService, settings.HTTP.AllowedOrigins, m, logger)
	go hub.Run()

	var tokens *auth.TokenManager
	if settings.AuthEnabled() {
		tokens = auth.NewTokenManager(settings.Auth.JWTSecret)
		logger.Info("Bearer authentication enabled")
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = api.NewHTTPErrorHandler(logger)

	// Middleware
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(requestLogger(logger))
	e.Use(middleware.Recover())
	e.Use(api.CORS(settings.HTTP.AllowedOrigins))
	e.Use(m.Middleware())

	// Initialize API routes
	api.InitRoutes(e, api.Dependencies{
		Speech:         speechService,
		SessionLogs:    sessionLogService,
		Hub:            hub,
		Metrics:        m,
		Tokens:         tokens,
		HasAPIKey:      settings.HasAPIKey(),
		MaxUploadBytes: maxUpload,
		Logger:         logger,
	})

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + settings.HTTP.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started",
		zap.String("port", settings.HTTP.Port),
		zap.String("environment", settings.Environment),
		zap.String("sessionLogBackend", settings.SessionLog.Backend),
		zap.String("sttProvider", settings.STT.Provider))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hub.Close()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	for _, closeFn := range closers {
		closeFn(ctx)
	}

	logger.Info("Server exited")
}

func newLogger(environment string) (*zap.Logger, error) {
	if environment == config.EnvironmentProduction {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// requestLogger writes one access log line per request through zap
func requestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogMethod:    true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("requestID", v.RequestID),
				zap.String("remoteIP", v.RemoteIP))
			return nil
		},
	})
}

func newSpeechToText(settings *config.Settings, provider *elevenlabs.Provider, logger *zap.Logger) (repositories.SpeechToText, string, func(context.Context), error) {
	switch settings.STT.Provider {
	case config.STTProviderGoogle:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		google, err := stt.NewGoogleSpeechToText(ctx, settings.STT.Language, logger)
		if err != nil {
			return nil, "", nil, err
		}
		closeFn := func(context.Context) {
			if err := google.Close(); err != nil {
				logger.Error("Failed to close Google Speech client", zap.Error(err))
			}
		}
		return google, "Google Speech", closeFn, nil
	default:
		return provider, "ElevenLabs", nil, nil
	}
}

func newSessionLogRepository(settings *config.Settings, logger *zap.Logger) (repositories.SessionLogRepository, func(context.Context), error) {
	cfg := settings.SessionLog

	switch cfg.Backend {
	case config.BackendMongo:
		client, err := mongo.NewClient(context.Background(), cfg.MongoURI, cfg.MongoDatabase, logger)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func(ctx context.Context) {
			client.Close(ctx)
		}
		return mongo.NewSessionLogRepository(client.Database), closeFn, nil

	case config.BackendRedis:
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("failed to ping Redis at %s: %w", cfg.RedisAddr, err)
		}
		logger.Info("Connected to Redis", zap.String("addr", cfg.RedisAddr), zap.String("key", cfg.RedisKey))

		closeFn := func(context.Context) {
			if err := client.Close(); err != nil {
				logger.Error("Failed to close Redis client", zap.Error(err))
			}
		}
		return redis.NewSessionLogRepository(client, cfg.RedisKey), closeFn, nil

	default:
		logger.Info("Storing session logs in file", zap.String("path", cfg.Path))
		return file.NewSessionLogRepository(cfg.Path, logger), nil, nil
	}
}
