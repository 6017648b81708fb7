package main

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/realtyvoice/backend/internal/auth"
)

var (
	mintSubject string
	mintTTL     time.Duration
)

var mintTokenCmd = &cobra.Command{
	Use:   "mint-token",
	Short: "Issue a client bearer token signed with AUTH_JWT_SECRET",
	Args:  cobra.NoArgs,
	RunE:  runMintToken,
}

func init() {
	mintTokenCmd.Flags().StringVar(&mintSubject, "subject", "frontend", "Token subject, usually the client name")
	mintTokenCmd.Flags().DurationVar(&mintTTL, "ttl", auth.DefaultTokenTTL, "Token lifetime")
	rootCmd.AddCommand(mintTokenCmd)
}

func runMintToken(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	if !settings.AuthEnabled() {
		return errors.New("AUTH_JWT_SECRET is not set; the server accepts requests without tokens")
	}
	if mintTTL <= 0 {
		return errors.New("--ttl must be positive")
	}

	token, err := auth.NewTokenManager(settings.Auth.JWTSecret).GenerateClientToken(mintSubject, mintTTL)
	if err != nil {
		return err
	}

	printf(cmd, "%s\n", token)
	return nil
}
