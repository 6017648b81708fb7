package entities

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestOutputFormat_ContentType(t *testing.T) {
	expected := map[OutputFormat]string{
		"mp3_44100_64":  "audio/mpeg",
		"mp3_44100_96":  "audio/mpeg",
		"mp3_44100_128": "audio/mpeg",
		"mp3_44100_192": "audio/mpeg",
		"pcm_16000":     "audio/wav",
		"pcm_22050":     "audio/wav",
		"pcm_24000":     "audio/wav",
		"pcm_44100":     "audio/wav",
		"ulaw_8000":     "audio/basic",
	}

	if len(OutputFormats()) != len(expected) {
		t.Fatalf("Expected %d formats, got %d", len(expected), len(OutputFormats()))
	}

	for _, f := range OutputFormats() {
		want, ok := expected[f]
		if !ok {
			t.Errorf("Unexpected format %s", f)
			continue
		}
		if got := f.ContentType(); got != want {
			t.Errorf("Format %s: expected content type %s, got %s", f, want, got)
		}
	}

	if got := OutputFormat("flac_48000").ContentType(); got != "application/octet-stream" {
		t.Errorf("Expected octet-stream fallback, got %s", got)
	}
}

func TestParseOutputFormat(t *testing.T) {
	f, err := ParseOutputFormat("pcm_24000")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if f != OutputFormatPCM_24000 {
		t.Errorf("Expected pcm_24000, got %s", f)
	}

	_, err = ParseOutputFormat("wav")
	if !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("Expected ErrInvalidRequest, got %v", err)
	}
}

func TestSynthesisRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     SynthesisRequest
		maxLen  int
		wantErr bool
	}{
		{name: "valid", req: SynthesisRequest{Text: "hello"}, maxLen: 5000},
		{name: "empty text", req: SynthesisRequest{Text: ""}, maxLen: 5000, wantErr: true},
		{name: "whitespace text", req: SynthesisRequest{Text: "  \n\t"}, maxLen: 5000, wantErr: true},
		{name: "too long", req: SynthesisRequest{Text: strings.Repeat("a", 11)}, maxLen: 10, wantErr: true},
		{name: "length check disabled", req: SynthesisRequest{Text: strings.Repeat("a", 11)}, maxLen: 0},
		{name: "multibyte counted as runes", req: SynthesisRequest{Text: strings.Repeat("£", 10)}, maxLen: 10},
		{name: "known format", req: SynthesisRequest{Text: "hi", OutputFormat: OutputFormatULaw_8000}, maxLen: 10},
		{name: "unknown format", req: SynthesisRequest{Text: "hi", OutputFormat: "ogg_48000"}, maxLen: 10, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate(tt.maxLen)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidRequest) {
					t.Errorf("Expected ErrInvalidRequest, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestSynthesisRequest_Streaming(t *testing.T) {
	req := SynthesisRequest{Text: "hello"}
	if !req.Streaming() {
		t.Error("Expected streaming to default to true")
	}

	off := false
	req.Stream = &off
	if req.Streaming() {
		t.Error("Expected streaming to be disabled")
	}
}

func TestSynthesisRequest_AgentIDPresence(t *testing.T) {
	tests := []struct {
		name string
		body string
		want OptionalString
	}{
		{"absent", `{"text":"hi"}`, OptionalString{}},
		{"null", `{"text":"hi","agent_id":null}`, OptionalString{Set: true}},
		{"empty", `{"text":"hi","agent_id":""}`, OptionalString{Set: true}},
		{"value", `{"text":"hi","agent_id":"a1"}`, OptionalString{Value: "a1", Set: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req SynthesisRequest
			if err := json.Unmarshal([]byte(tt.body), &req); err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if req.AgentID != tt.want {
				t.Errorf("Expected %+v, got %+v", tt.want, req.AgentID)
			}
		})
	}

	if err := json.Unmarshal([]byte(`{"text":"hi","agent_id":5}`), &SynthesisRequest{}); err == nil {
		t.Error("Expected a numeric agent_id to be rejected")
	}
}
