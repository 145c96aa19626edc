package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/router-for-me/SnippetRelay/internal/security"
	"github.com/spf13/cobra"
)

func newTokenCmd(opts *rootOptions) *cobra.Command {
	var subject string
	var email string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a development bearer token with the configured JWT secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
				return errors.New("JWT_SECRET is not configured")
			}
			token, errSign := security.GenerateToken(cfg.Auth.JWTSecret, subject, email, ttl)
			if errSign != nil {
				return fmt.Errorf("sign token: %w", errSign)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&subject, "sub", "", "Subject (user id) claim")
	cmd.Flags().StringVar(&email, "email", "", "Email claim")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime; 0 omits exp")
	_ = cmd.MarkFlagRequired("sub")
	return cmd
}
