package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/realtyvoice/backend/adapters/elevenlabs"
	"github.com/realtyvoice/backend/domain/entities"
	"github.com/realtyvoice/backend/internal/config"
	"github.com/realtyvoice/backend/usecase"
)

var (
	sayVoice   string
	sayAgent   string
	sayModel   string
	sayFormat  string
	sayOutput  string
	sayPlay    bool
	sayTimeout time.Duration
)

var sayCmd = &cobra.Command{
	Use:   "say <text>",
	Short: "Synthesize text into an audio file",
	Long: `Say sends the text through the same synthesis path as POST /tts and
writes the streamed audio to a file. With --play the file is handed to the
first audio player found on PATH.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSay,
}

var voicesCmd = &cobra.Command{
	Use:   "voices",
	Short: "List the voices available to the configured API key",
	Args:  cobra.NoArgs,
	RunE:  runVoices,
}

func init() {
	sayCmd.Flags().StringVar(&sayVoice, "voice", "", "Voice id (default ELEVEN_VOICE_ID)")
	sayCmd.Flags().StringVar(&sayAgent, "agent", "", "Agent id, takes priority over --voice; pass \"\" to skip ELEVEN_AGENT_ID")
	sayCmd.Flags().StringVar(&sayModel, "model", "", "Model id (default ELEVEN_MODEL_ID)")
	sayCmd.Flags().StringVar(&sayFormat, "format", "", "Output format (default ELEVEN_OUTPUT_FORMAT)")
	sayCmd.Flags().StringVarP(&sayOutput, "output", "o", "", "Output file (default say_output.<ext>)")
	sayCmd.Flags().BoolVar(&sayPlay, "play", false, "Play the file once written")
	sayCmd.Flags().DurationVar(&sayTimeout, "timeout", 60*time.Second, "Request timeout")
	rootCmd.AddCommand(sayCmd, voicesCmd)
}

func newSpeechService(settings *config.Settings, logger *zap.Logger) *usecase.SpeechService {
	provider := elevenlabs.NewProvider(elevenlabs.Config{
		APIKey:     settings.ElevenLabs.APIKey,
		APIBaseURL: settings.ElevenLabs.APIBaseURL,
		STTModelID: settings.ElevenLabs.STTModelID,
	}, logger)

	return usecase.NewSpeechService(provider, provider, usecase.SpeechDefaults{
		VoiceID:       settings.ElevenLabs.DefaultVoiceID,
		ModelID:       settings.ElevenLabs.DefaultModelID,
		AgentID:       settings.ElevenLabs.DefaultAgentID,
		OutputFormat:  settings.ElevenLabs.DefaultOutputFormat,
		MaxTextLength: settings.HTTP.MaxTextLength,
	}, logger)
}

func runSay(cmd *cobra.Command, args []string) error {
	format, err := parseFormat(sayFormat)
	if err != nil {
		return err
	}
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	logger := newLogger()
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(cmd.Context(), sayTimeout)
	defer cancel()

	req := &entities.SynthesisRequest{
		Text:         strings.Join(args, " "),
		VoiceID:      sayVoice,
		Model:        sayModel,
		OutputFormat: format,
	}
	if cmd.Flags().Changed("agent") {
		req.AgentID = entities.NewOptionalString(sayAgent)
	}

	synthesis, err := newSpeechService(settings, logger).Synthesize(ctx, req)
	if err != nil {
		return err
	}

	output := sayOutput
	if output == "" {
		output = "say_output." + fileExtension(synthesis.Params.OutputFormat)
	}
	file, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	totalBytes, chunkCount := 0, 0
	var streamErr error
	for chunk := range synthesis.Chunks {
		if chunk.Err != nil {
			streamErr = synthesis.StreamError(chunk.Err)
			continue
		}
		if streamErr != nil {
			continue
		}
		n, err := file.Write(chunk.Data)
		if err != nil {
			streamErr = fmt.Errorf("failed to write audio chunk: %w", err)
			cancel()
			continue
		}
		totalBytes += n
		chunkCount++

		logger.Debug("Received audio chunk",
			zap.Int("chunkNumber", chunkCount),
			zap.Int("chunkSize", n),
			zap.Int("totalBytes", totalBytes))
	}
	if streamErr != nil {
		return streamErr
	}

	printf(cmd, "Audio saved to %s (%d bytes in %d chunks, %s via %s)\n",
		output, totalBytes, chunkCount, synthesis.Params.OutputFormat, synthesis.Params.VoiceID)

	if !sayPlay {
		return nil
	}
	// Close the file before playing it
	file.Close()
	if err := playAudioFile(output, synthesis.Params.OutputFormat, logger); err != nil {
		printf(cmd, "Could not play audio: %v\n", err)
	}
	return nil
}

func runVoices(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	logger := newLogger()
	defer logger.Sync()

	voices, err := newSpeechService(settings, logger).ListVoices(cmd.Context())
	if err != nil {
		return err
	}

	printf(cmd, "Available voices (%d):\n", len(voices))
	for _, voice := range voices {
		printf(cmd, "  - %v (ID: %v)\n", voice["name"], voice["voice_id"])
	}
	return nil
}

func fileExtension(format entities.OutputFormat) string {
	switch {
	case strings.HasPrefix(string(format), "mp3_"):
		return "mp3"
	case strings.HasPrefix(string(format), "ulaw_"):
		return "ulaw"
	default:
		return "pcm"
	}
}

// sampleRate parses the rate suffix of pcm_* and ulaw_* formats
func sampleRate(format entities.OutputFormat) string {
	s := string(format)
	if i := strings.LastIndexByte(s, '_'); i >= 0 {
		if _, err := strconv.Atoi(s[i+1:]); err == nil {
			return s[i+1:]
		}
	}
	return "24000"
}

// audioPlayer represents an audio player command and its arguments
type audioPlayer struct {
	command string
	args    []string
}

// audioPlayers returns the players to try for format, raw PCM needs explicit parameters
func audioPlayers(format entities.OutputFormat) []audioPlayer {
	switch fileExtension(format) {
	case "mp3":
		return []audioPlayer{
			{"ffplay", []string{"-nodisp", "-autoexit"}},
			{"afplay", []string{}},
			{"mpg123", []string{"-q"}},
		}
	case "ulaw":
		return []audioPlayer{
			{"ffplay", []string{"-f", "mulaw", "-ar", "8000", "-ac", "1", "-nodisp", "-autoexit"}},
			{"play", []string{"-t", "ul", "-r", "8000", "-c", "1"}},
		}
	default:
		rate := sampleRate(format)
		return []audioPlayer{
			{"play", []string{"-t", "raw", "-r", rate, "-e", "signed", "-b", "16", "-c", "1"}},
			{"ffplay", []string{"-f", "s16le", "-ar", rate, "-ac", "1", "-nodisp", "-autoexit"}},
			{"aplay", []string{"-f", "S16_LE", "-r", rate, "-c", "1"}},
		}
	}
}

// playAudioFile attempts to play a file using available system tools
func playAudioFile(filename string, format entities.OutputFormat, logger *zap.Logger) error {
	for _, player := range audioPlayers(format) {
		if _, err := exec.LookPath(player.command); err != nil {
			continue
		}
		args := append(append([]string{}, player.args...), filename)
		logger.Info("Attempting to play audio",
			zap.String("player", player.command),
			zap.Strings("args", args))

		err := exec.Command(player.command, args...).Run()
		if err == nil {
			return nil
		}
		logger.Debug("Player failed", zap.String("player", player.command), zap.Error(err))
	}
	return fmt.Errorf("no suitable audio player found")
}
