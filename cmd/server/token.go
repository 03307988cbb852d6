package main

import (
	"fmt"
	"time"

	"alcyxob/workout-timer/internal/config"
	"alcyxob/workout-timer/internal/service"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	tokenUser string
	tokenTTL  time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a development JWT signed with the configured secret",
	Example: `  workout-timer token --user 65a0f1c2e4b0a1b2c3d4e5f6 --ttl 24h
  workout-timer -c ./deploy token`,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "User ID (hex ObjectID); a new one is generated when empty")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "Token lifetime (default jwt.expiration)")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	userID := primitive.NewObjectID()
	if tokenUser != "" {
		userID, err = primitive.ObjectIDFromHex(tokenUser)
		if err != nil {
			return fmt.Errorf("invalid --user %q: %w", tokenUser, err)
		}
	}

	token, err := service.NewTokenService(cfg.JWT.Secret, cfg.JWT.Expiration).IssueToken(userID, tokenTTL)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "user: %s\n", userID.Hex())
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
