package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"quizcat-service/internal/domain"
	transport "quizcat-service/internal/transport/http"
)

// NewTokenCmd mints a signed bearer token for local development and smoke tests.
func NewTokenCmd(configPath *string) *cobra.Command {
	var (
		email string
		ttl   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token <uid>",
		Short: "Print a development bearer token for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer log.Sync()
			if cfg.Auth.JWTSecret == "" {
				return errors.New("auth.jwtSecret (JWT_SECRET) is required")
			}
			auth := transport.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
			tok, err := auth.Issue(domain.Identity{UID: args[0], Email: email}, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
