package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/realtyvoice/backend/domain/entities"
	"github.com/realtyvoice/backend/internal/config"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:           "voicectl",
	Short:         "Operator tool for the realty voice backend",
	SilenceUsage:  true, // Don't print usage on error
	SilenceErrors: false,
	Long: `voicectl mints client tokens for the voice backend and talks to the
ElevenLabs API with the same settings the server uses.

Settings are read from the environment after loading .env and venv/.env.`,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// loadSettings reads the same configuration as the server
func loadSettings() (*config.Settings, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load("venv/.env")
	return config.Load(os.Getenv)
}

// parseFormat validates a --format value; empty keeps the configured default
func parseFormat(raw string) (entities.OutputFormat, error) {
	if raw == "" {
		return "", nil
	}
	format, err := entities.ParseOutputFormat(raw)
	if err != nil {
		return "", fmt.Errorf("--format: %w", err)
	}
	return format, nil
}

func newLogger() *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Error already printed by cobra
		os.Exit(1)
	}
}

func printf(cmd *cobra.Command, format string, args ...interface{}) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
