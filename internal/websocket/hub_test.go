package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/realtyvoice/backend/domain/entities"
	"github.com/realtyvoice/backend/internal/metrics"
	"github.com/realtyvoice/backend/usecase"
)

// fakeSynthesizer validates like the real service and replies with fixed chunks
type fakeSynthesizer struct {
	chunks []entities.AudioChunk
	err    error
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, req *entities.SynthesisRequest) (*usecase.Synthesis, error) {
	if err := req.Validate(0); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}

	out := make(chan entities.AudioChunk, len(f.chunks))
	for _, c := range f.chunks {
		out <- c
	}
	close(out)

	format := req.OutputFormat
	if format == "" {
		format = entities.DefaultOutputFormat
	}
	return &usecase.Synthesis{
		Params:      entities.SynthesisParams{Text: req.Text, VoiceID: "voice", OutputFormat: format},
		Provider:    "ElevenLabs",
		ContentType: format.ContentType(),
		Chunks:      out,
	}, nil
}

func setupTestServer(t *testing.T, speech Synthesizer) (*Hub, string) {
	t.Helper()
	logger := zap.NewNop() // No-op logger for tests

	hub := NewHub(speech, []string{"*"}, metrics.New(), logger)
	go hub.Run()

	e := echo.New()
	e.GET("/tts/ws", func(c echo.Context) error {
		return HandleSynthesis(hub, c)
	})
	server := httptest.NewServer(e)
	t.Cleanup(func() {
		hub.Close()
		server.Close()
	})

	return hub, "ws" + strings.TrimPrefix(server.URL, "http") + "/tts/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	messageType, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if messageType != websocket.TextMessage {
		t.Fatalf("expected text frame, got %d", messageType)
	}
	var msg map[string]interface{}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return msg
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestHub_NewHub(t *testing.T) {
	hub := NewHub(&fakeSynthesizer{}, nil, nil, zap.NewNop())

	if hub == nil {
		t.Fatal("NewHub returned nil")
	}
	if hub.clients == nil {
		t.Error("Hub clients map not initialized")
	}
	if hub.register == nil || hub.unregister == nil {
		t.Error("Hub channels not initialized")
	}
	if hub.Count() != 0 {
		t.Errorf("Count() = %d, want 0", hub.Count())
	}
}

func TestHandleSynthesis_StreamsAudio(t *testing.T) {
	speech := &fakeSynthesizer{chunks: []entities.AudioChunk{
		{Data: []byte("chunk-1")},
		{Data: []byte("chunk-2")},
	}}
	hub, url := setupTestServer(t, speech)
	conn := dial(t, url)

	waitFor(t, func() bool { return hub.Count() == 1 })

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"text":"Hello","output_format":"pcm_16000","request_id":"r1"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}

	start := readJSON(t, conn)
	if start["type"] != "speaking_start" {
		t.Fatalf("first frame = %v, want speaking_start", start)
	}
	if start["content_type"] != "audio/wav" {
		t.Errorf("content_type = %v, want audio/wav", start["content_type"])
	}
	if start["request_id"] != "r1" {
		t.Errorf("request_id = %v, want r1", start["request_id"])
	}

	var audio []byte
	for i := 0; i < 2; i++ {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read audio: %v", err)
		}
		if messageType != websocket.BinaryMessage {
			t.Fatalf("frame %d type = %d, want binary", i, messageType)
		}
		audio = append(audio, data...)
	}
	if string(audio) != "chunk-1chunk-2" {
		t.Errorf("audio = %q", audio)
	}

	end := readJSON(t, conn)
	if end["type"] != "speaking_end" {
		t.Fatalf("last frame = %v, want speaking_end", end)
	}
	if end["bytes"] != float64(len("chunk-1chunk-2")) {
		t.Errorf("bytes = %v", end["bytes"])
	}
}

func TestHandleSynthesis_ErrorsKeepConnectionOpen(t *testing.T) {
	_, url := setupTestServer(t, &fakeSynthesizer{})
	conn := dial(t, url)

	conn.WriteMessage(websocket.TextMessage, []byte(`{"text":"   "}`))
	msg := readJSON(t, conn)
	if msg["type"] != "error" {
		t.Fatalf("got %v, want error", msg)
	}
	if detail, _ := msg["detail"].(string); !strings.Contains(detail, "text must not be empty") {
		t.Errorf("detail = %q", detail)
	}

	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping","request_id":"p1"}`))
	pong := readJSON(t, conn)
	if pong["type"] != "pong" || pong["request_id"] != "p1" {
		t.Errorf("got %v, want pong p1", pong)
	}
}

func TestHandleSynthesis_ProviderErrors(t *testing.T) {
	t.Run("upstream failure", func(t *testing.T) {
		speech := &fakeSynthesizer{err: &usecase.UpstreamError{Provider: "ElevenLabs", Err: errors.New("status 401")}}
		_, url := setupTestServer(t, speech)
		conn := dial(t, url)

		conn.WriteMessage(websocket.TextMessage, []byte(`{"text":"Hello"}`))
		msg := readJSON(t, conn)
		if msg["detail"] != "ElevenLabs error: status 401" {
			t.Errorf("detail = %v", msg["detail"])
		}
	})

	t.Run("mid-stream failure", func(t *testing.T) {
		speech := &fakeSynthesizer{chunks: []entities.AudioChunk{
			{Data: []byte("partial")},
			{Err: errors.New("connection reset")},
		}}
		_, url := setupTestServer(t, speech)
		conn := dial(t, url)

		conn.WriteMessage(websocket.TextMessage, []byte(`{"text":"Hello"}`))
		if msg := readJSON(t, conn); msg["type"] != "speaking_start" {
			t.Fatalf("got %v", msg)
		}
		if messageType, _, err := conn.ReadMessage(); err != nil || messageType != websocket.BinaryMessage {
			t.Fatalf("expected binary frame, got %d %v", messageType, err)
		}
		if msg := readJSON(t, conn); msg["type"] != "error" {
			t.Fatalf("got %v, want error", msg)
		}
		end := readJSON(t, conn)
		if end["type"] != "speaking_end" || end["truncated"] != true {
			t.Errorf("got %v, want truncated speaking_end", end)
		}
	})
}

func TestHub_CloseDisconnectsClients(t *testing.T) {
	hub, url := setupTestServer(t, &fakeSynthesizer{})
	conn := dial(t, url)

	waitFor(t, func() bool { return hub.Count() == 1 })
	hub.Close()
	waitFor(t, func() bool { return hub.Count() == 0 })

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Errorf("expected going away close, got %v", err)
	}
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://app.example.com"})

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"https://app.example.com", true},
		{"https://evil.example.com", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/tts/ws", nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		if got := check(r); got != tt.want {
			t.Errorf("origin %q: got %v, want %v", tt.origin, got, tt.want)
		}
	}

	if !originChecker([]string{"*"})(httptest.NewRequest(http.MethodGet, "/", nil)) {
		t.Error("wildcard should allow any origin")
	}
}
