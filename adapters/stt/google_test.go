package stt

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap/zaptest"

	"github.com/realtyvoice/backend/domain/repositories"
)

var _ repositories.SpeechToText = &GoogleSpeechToText{}

func TestEncodingForFilename(t *testing.T) {
	tests := map[string]speechpb.RecognitionConfig_AudioEncoding{
		"call.wav":  speechpb.RecognitionConfig_LINEAR16,
		"CALL.FLAC": speechpb.RecognitionConfig_FLAC,
		"a.ogg":     speechpb.RecognitionConfig_OGG_OPUS,
		"a.webm":    speechpb.RecognitionConfig_WEBM_OPUS,
		"a.ulaw":    speechpb.RecognitionConfig_MULAW,
	}
	for name, want := range tests {
		got, err := getAudioEncoding(encodingForFilename(name))
		if err != nil {
			t.Errorf("%s: unexpected error %v", name, err)
			continue
		}
		if got != want {
			t.Errorf("%s: expected %v, got %v", name, want, got)
		}
	}

	if _, err := getAudioEncoding(encodingForFilename("call.mp3")); !errors.Is(err, repositories.ErrUnsupportedAudio) {
		t.Errorf("Expected mp3 to be rejected as unsupported audio, got %v", err)
	}
}

func TestToTranscription(t *testing.T) {
	results := []*speechpb.SpeechRecognitionResult{
		{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "I need a room ", Confidence: 0.9}}},
		{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "near campus", Confidence: 0.7}}},
		{},
	}

	got := toTranscription(results, "en-GB")
	if got.Text != "I need a room near campus" {
		t.Errorf("Unexpected text %q", got.Text)
	}
	if got.LanguageCode != "en-GB" {
		t.Errorf("Expected fallback language en-GB, got %s", got.LanguageCode)
	}
	if got.LanguageProbability < 0.79 || got.LanguageProbability > 0.81 {
		t.Errorf("Expected mean confidence 0.8, got %f", got.LanguageProbability)
	}
}

// Rejections happen before the client is used, so a zero client is enough
func TestGoogleSpeechToText_RejectsUnusableClips(t *testing.T) {
	g := &GoogleSpeechToText{language: "en-US", logger: zaptest.NewLogger(t)}

	_, err := g.Transcribe(context.Background(), []byte("ID3"), repositories.AudioConfig{Filename: "call.mp3"})
	if !errors.Is(err, repositories.ErrUnsupportedAudio) {
		t.Errorf("Expected ErrUnsupportedAudio for mp3, got %v", err)
	}

	large := make([]byte, MaxInlineAudioBytes+1)
	_, err = g.Transcribe(context.Background(), large, repositories.AudioConfig{Filename: "call.wav"})
	if !errors.Is(err, repositories.ErrAudioTooLarge) {
		t.Errorf("Expected ErrAudioTooLarge, got %v", err)
	}
}
