package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/realtyvoice/backend/domain/entities"
)

var (
	streamServer string
	streamToken  string
	streamFormat string
	streamOutput string
)

var streamCmd = &cobra.Command{
	Use:   "stream <text>...",
	Short: "Speak each argument over the /tts/ws websocket of a running server",
	Long: `Stream connects to a running server, sends every argument as its own
speak request and appends the returned audio frames to one file. It is the
quickest way to check the websocket path end to end.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runStream,
}

func init() {
	streamCmd.Flags().StringVar(&streamServer, "server", "ws://localhost:8000/tts/ws", "Websocket URL of the server")
	streamCmd.Flags().StringVar(&streamToken, "token", "", "Bearer token when the server has auth enabled")
	streamCmd.Flags().StringVar(&streamFormat, "format", "", "Output format (server default when empty)")
	streamCmd.Flags().StringVarP(&streamOutput, "output", "o", "stream_output.audio", "File receiving the audio frames")
	rootCmd.AddCommand(streamCmd)
}

// serverMessage is the union of the text frames the server sends
type serverMessage struct {
	Type        string `json:"type"`
	RequestID   string `json:"request_id"`
	ContentType string `json:"content_type"`
	Bytes       int    `json:"bytes"`
	Truncated   bool   `json:"truncated"`
	Detail      string `json:"detail"`
}

func runStream(cmd *cobra.Command, args []string) error {
	format, err := parseFormat(streamFormat)
	if err != nil {
		return err
	}
	logger := newLogger()
	defer logger.Sync()

	headers := http.Header{}
	if streamToken != "" {
		headers.Add("Authorization", "Bearer "+streamToken)
	}

	if _, err := url.Parse(streamServer); err != nil {
		return fmt.Errorf("invalid --server: %w", err)
	}
	logger.Info("Connecting", zap.String("url", streamServer))

	conn, resp, err := websocket.DefaultDialer.DialContext(cmd.Context(), streamServer, headers)
	if err != nil {
		if resp != nil {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			resp.Body.Close()
			return fmt.Errorf("dial: %w: %s", err, strings.TrimSpace(string(body)))
		}
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	file, err := os.Create(streamOutput)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	var failed int
	for i, text := range args {
		requestID := fmt.Sprintf("cli-%d", i+1)
		ok, err := speakOverWebsocket(cmd, conn, file, requestID, text, format, logger)
		if err != nil {
			return err
		}
		if !ok {
			failed++
		}
	}

	// Cleanly close the connection by sending a close message
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))

	if failed > 0 {
		return fmt.Errorf("%d of %d requests failed", failed, len(args))
	}
	printf(cmd, "Audio saved to %s\n", streamOutput)
	return nil
}

// speakOverWebsocket sends one request and consumes frames until its
// speaking_end or error. A false result means the server rejected it.
func speakOverWebsocket(cmd *cobra.Command, conn *websocket.Conn, w io.Writer, requestID, text string, format entities.OutputFormat, logger *zap.Logger) (bool, error) {
	request := struct {
		Type      string                `json:"type"`
		RequestID string                `json:"request_id"`
		Text      string                `json:"text"`
		Format    entities.OutputFormat `json:"output_format,omitempty"`
	}{"speak", requestID, text, format}

	payload, err := json.Marshal(request)
	if err != nil {
		return false, err
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return false, fmt.Errorf("send request: %w", err)
	}

	started := time.Now()
	chunks := 0
	speaking := false
	for {
		conn.SetReadDeadline(time.Now().Add(2 * time.Minute))
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			return false, fmt.Errorf("read: %w", err)
		}

		if messageType == websocket.BinaryMessage {
			chunks++
			if _, err := w.Write(message); err != nil {
				return false, fmt.Errorf("failed to write audio chunk: %w", err)
			}
			logger.Debug("Received audio chunk",
				zap.String("requestID", requestID),
				zap.Int("chunkNumber", chunks),
				zap.Int("chunkSize", len(message)))
			continue
		}

		var msg serverMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			return false, fmt.Errorf("unexpected frame %q: %w", message, err)
		}

		switch msg.Type {
		case "speaking_start":
			speaking = true
			logger.Info("Audio started",
				zap.String("requestID", requestID),
				zap.String("contentType", msg.ContentType))
		case "error":
			printf(cmd, "[%s] error: %s\n", requestID, msg.Detail)
			// errors before speaking_start end the request
			if !speaking {
				return false, nil
			}
		case "speaking_end":
			printf(cmd, "[%s] %d bytes in %d frames, %v\n", requestID, msg.Bytes, chunks, time.Since(started).Round(time.Millisecond))
			if msg.Truncated {
				return false, nil
			}
			return true, nil
		default:
			return false, errors.New("unknown message type " + msg.Type)
		}
	}
}
