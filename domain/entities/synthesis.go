package entities

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrInvalidRequest is wrapped by every validation failure of client input
var ErrInvalidRequest = errors.New("invalid request")

// OutputFormat is an audio encoding accepted by the speech provider
type OutputFormat string

const (
	OutputFormatMP3_44100_64  OutputFormat = "mp3_44100_64"
	OutputFormatMP3_44100_96  OutputFormat = "mp3_44100_96"
	OutputFormatMP3_44100_128 OutputFormat = "mp3_44100_128"
	OutputFormatMP3_44100_192 OutputFormat = "mp3_44100_192"
	OutputFormatPCM_16000     OutputFormat = "pcm_16000"
	OutputFormatPCM_22050     OutputFormat = "pcm_22050"
	OutputFormatPCM_24000     OutputFormat = "pcm_24000"
	OutputFormatPCM_44100     OutputFormat = "pcm_44100"
	OutputFormatULaw_8000     OutputFormat = "ulaw_8000"
)

// DefaultOutputFormat is used when neither the request nor the settings name one
const DefaultOutputFormat = OutputFormatMP3_44100_128

// DefaultMaxTextLength bounds the text of a single synthesis request
const DefaultMaxTextLength = 5000

const fallbackContentType = "application/octet-stream"

var contentTypes = map[OutputFormat]string{
	OutputFormatMP3_44100_64:  "audio/mpeg",
	OutputFormatMP3_44100_96:  "audio/mpeg",
	OutputFormatMP3_44100_128: "audio/mpeg",
	OutputFormatMP3_44100_192: "audio/mpeg",
	OutputFormatPCM_16000:     "audio/wav",
	OutputFormatPCM_22050:     "audio/wav",
	OutputFormatPCM_24000:     "audio/wav",
	OutputFormatPCM_44100:     "audio/wav",
	OutputFormatULaw_8000:     "audio/basic",
}

// OutputFormats lists every supported format
func OutputFormats() []OutputFormat {
	return []OutputFormat{
		OutputFormatMP3_44100_64,
		OutputFormatMP3_44100_96,
		OutputFormatMP3_44100_128,
		OutputFormatMP3_44100_192,
		OutputFormatPCM_16000,
		OutputFormatPCM_22050,
		OutputFormatPCM_24000,
		OutputFormatPCM_44100,
		OutputFormatULaw_8000,
	}
}

// ParseOutputFormat validates a raw format name
func ParseOutputFormat(raw string) (OutputFormat, error) {
	f := OutputFormat(raw)
	if !f.Valid() {
		return "", fmt.Errorf("%w: unsupported output_format %q", ErrInvalidRequest, raw)
	}
	return f, nil
}

// Valid reports whether f belongs to the supported set
func (f OutputFormat) Valid() bool {
	_, ok := contentTypes[f]
	return ok
}

// ContentType returns the MIME type of audio encoded as f
func (f OutputFormat) ContentType() string {
	if ct, ok := contentTypes[f]; ok {
		return ct
	}
	return fallbackContentType
}

// OptionalString tells an absent JSON field apart from one that was sent.
// An explicit null sets the field with an empty Value.
type OptionalString struct {
	Value string
	Set   bool
}

// NewOptionalString returns a set OptionalString holding v
func NewOptionalString(v string) OptionalString {
	return OptionalString{Value: v, Set: true}
}

func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Set = true
	o.Value = ""
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	return json.Unmarshal(data, &o.Value)
}

func (o OptionalString) MarshalJSON() ([]byte, error) {
	if !o.Set || o.Value == "" {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// SynthesisRequest is a single text-to-speech job submitted by a client
type SynthesisRequest struct {
	Text         string         `json:"text"`
	VoiceID      string         `json:"voice_id,omitempty"`
	Model        string         `json:"model,omitempty"`
	AgentID      OptionalString `json:"agent_id"`
	OutputFormat OutputFormat   `json:"output_format,omitempty"`
	Stream       *bool          `json:"stream,omitempty"`
}

// Streaming reports whether audio should be forwarded incrementally.
// An absent stream flag means true.
func (r *SynthesisRequest) Streaming() bool {
	if r.Stream == nil {
		return true
	}
	return *r.Stream
}

// Validate checks the request before any provider call is made.
// maxTextLength <= 0 disables the length check.
func (r *SynthesisRequest) Validate(maxTextLength int) error {
	if strings.TrimSpace(r.Text) == "" {
		return fmt.Errorf("%w: text must not be empty", ErrInvalidRequest)
	}
	if maxTextLength > 0 && utf8.RuneCountInString(r.Text) > maxTextLength {
		return fmt.Errorf("%w: text too long, maximum %d characters", ErrInvalidRequest, maxTextLength)
	}
	if r.OutputFormat != "" && !r.OutputFormat.Valid() {
		return fmt.Errorf("%w: unsupported output_format %q", ErrInvalidRequest, r.OutputFormat)
	}
	return nil
}

// SynthesisParams are the resolved parameters passed to the provider
type SynthesisParams struct {
	Text         string
	VoiceID      string
	ModelID      string
	OutputFormat OutputFormat
	Stream       bool
}

// AudioChunk is one piece of provider output. A chunk carrying Err is the
// last one sent on its channel.
type AudioChunk struct {
	Data []byte
	Err  error
}
