// Package config builds the immutable process settings from the environment.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/realtyvoice/backend/domain/entities"
)

const (
	DefaultVoiceID         = "EXAVITQu4vr4xnSDxMaL"
	DefaultModelID         = "eleven_turbo_v2_5"
	DefaultSTTModelID      = "scribe_v1"
	DefaultPort            = "8000"
	DefaultSessionLogPath  = "session_logs.json"
	DefaultMongoURI        = "mongodb://localhost:27017"
	DefaultMongoDatabase   = "realty_voice"
	DefaultRedisAddr       = "localhost:6379"
	DefaultRedisKey        = "realty_voice:session_logs"
	DefaultSTTLanguage     = "en-US"
	DefaultMaxUploadBytes  = 25 << 20
	APIKeyEnv              = "ELEVEN_API_KEY"
	LegacyAPIKeyEnv        = "ELEVENLABS_API_KEY"
	EnvironmentProduction  = "production"
	EnvironmentDevelopment = "development"
)

// Session log storage backends
const (
	BackendFile  = "file"
	BackendMongo = "mongo"
	BackendRedis = "redis"
)

// Speech-to-text providers
const (
	STTProviderElevenLabs = "elevenlabs"
	STTProviderGoogle     = "google"
)

type ElevenLabsConfig struct {
	APIKey              string
	APIBaseURL          string
	DefaultVoiceID      string
	DefaultModelID      string
	DefaultAgentID      string
	DefaultOutputFormat entities.OutputFormat
	STTModelID          string
}

type HTTPConfig struct {
	Port           string
	AllowedOrigins []string
	MaxTextLength  int
	MaxUploadBytes int64
}

type SessionLogConfig struct {
	Backend       string
	Path          string
	MongoURI      string
	MongoDatabase string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisKey      string
}

type STTConfig struct {
	Provider string
	Language string
}

type AuthConfig struct {
	JWTSecret string
}

// Settings is built once at startup and never mutated afterwards
type Settings struct {
	Environment string
	ElevenLabs  ElevenLabsConfig
	HTTP        HTTPConfig
	SessionLog  SessionLogConfig
	STT         STTConfig
	Auth        AuthConfig
}

// HasAPIKey reports whether a provider key was configured
func (s *Settings) HasAPIKey() bool {
	return s.ElevenLabs.APIKey != ""
}

// AuthEnabled reports whether client requests must carry a bearer token
func (s *Settings) AuthEnabled() bool {
	return s.Auth.JWTSecret != ""
}

// Load reads the settings through getenv, usually os.Getenv.
// A missing API key is not an error here, it is reported on first use.
func Load(getenv func(string) string) (*Settings, error) {
	env := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return fallback
	}

	apiKey := getenv(APIKeyEnv)
	if apiKey == "" {
		apiKey = getenv(LegacyAPIKeyEnv)
	}

	cfg := &Settings{
		Environment: env("APP_ENV", EnvironmentDevelopment),
		ElevenLabs: ElevenLabsConfig{
			APIKey:              apiKey,
			APIBaseURL:          env("ELEVEN_API_BASE_URL", ""),
			DefaultVoiceID:      env("ELEVEN_VOICE_ID", DefaultVoiceID),
			DefaultModelID:      env("ELEVEN_MODEL_ID", DefaultModelID),
			DefaultAgentID:      env("ELEVEN_AGENT_ID", ""),
			DefaultOutputFormat: entities.OutputFormat(env("ELEVEN_OUTPUT_FORMAT", string(entities.DefaultOutputFormat))),
			STTModelID:          env("ELEVEN_STT_MODEL_ID", DefaultSTTModelID),
		},
		HTTP: HTTPConfig{
			Port:           env("PORT", DefaultPort),
			AllowedOrigins: ParseOrigins(getenv("CORS_ALLOW_ORIGINS")),
		},
		SessionLog: SessionLogConfig{
			Backend:       strings.ToLower(env("SESSION_LOG_BACKEND", BackendFile)),
			Path:          env("SESSION_LOG_PATH", DefaultSessionLogPath),
			MongoURI:      env("MONGODB_URI", DefaultMongoURI),
			MongoDatabase: env("MONGODB_DATABASE", DefaultMongoDatabase),
			RedisAddr:     env("REDIS_ADDR", DefaultRedisAddr),
			RedisPassword: getenv("REDIS_PASSWORD"),
			RedisKey:      env("SESSION_LOG_REDIS_KEY", DefaultRedisKey),
		},
		STT: STTConfig{
			Provider: strings.ToLower(env("STT_PROVIDER", STTProviderElevenLabs)),
			Language: env("STT_LANGUAGE", DefaultSTTLanguage),
		},
		Auth: AuthConfig{
			JWTSecret: getenv("AUTH_JWT_SECRET"),
		},
	}

	var err error
	if cfg.HTTP.MaxTextLength, err = intEnv(env, "TTS_MAX_TEXT_LENGTH", entities.DefaultMaxTextLength); err != nil {
		return nil, err
	}
	maxUpload, err := intEnv(env, "TRANSCRIBE_MAX_UPLOAD_BYTES", DefaultMaxUploadBytes)
	if err != nil {
		return nil, err
	}
	cfg.HTTP.MaxUploadBytes = int64(maxUpload)
	if cfg.SessionLog.RedisDB, err = intEnv(env, "REDIS_DB", 0); err != nil {
		return nil, err
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseOrigins splits a comma separated origin list. An empty list allows every origin.
func ParseOrigins(raw string) []string {
	origins := make([]string, 0)
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

func intEnv(env func(string, string) string, key string, fallback int) (int, error) {
	raw := env(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %d", key, v)
	}
	return v, nil
}

func validate(cfg *Settings) error {
	if !cfg.ElevenLabs.DefaultOutputFormat.Valid() {
		return fmt.Errorf("ELEVEN_OUTPUT_FORMAT %q is not a supported output format", cfg.ElevenLabs.DefaultOutputFormat)
	}
	switch cfg.SessionLog.Backend {
	case BackendFile, BackendMongo, BackendRedis:
	default:
		return fmt.Errorf("SESSION_LOG_BACKEND must be one of file, mongo, redis, got %q", cfg.SessionLog.Backend)
	}
	switch cfg.STT.Provider {
	case STTProviderElevenLabs, STTProviderGoogle:
	default:
		return fmt.Errorf("STT_PROVIDER must be elevenlabs or google, got %q", cfg.STT.Provider)
	}
	if cfg.SessionLog.Backend == BackendFile && cfg.SessionLog.Path == "" {
		return errors.New("SESSION_LOG_PATH must not be empty")
	}
	return nil
}
