package repositories

import "errors"

// Client input a recognizer cannot take. Both are returned wrapped with details.
var (
	ErrUnsupportedAudio = errors.New("unsupported audio format")
	ErrAudioTooLarge    = errors.New("audio too large")
)

// ConfigError reports a setting a collaborator needs but did not get
type ConfigError struct {
	Setting string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}
