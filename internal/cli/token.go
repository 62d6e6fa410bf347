package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcoot/tictactoe-live/internal/dependencies/clock"
	"github.com/mcoot/tictactoe-live/internal/model"
	"github.com/mcoot/tictactoe-live/internal/services/auth"
)

func newTokenCmd() *cobra.Command {
	var (
		username string
		userID   int64
		secret   string
		issuer   string
		ttl      time.Duration
		save     bool
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a development bearer token",
		Long: `Sign a bearer token with the server's secret.

In production tokens come from the authentication service; this command
exists for local play and testing. The secret must match the server's
auth.secret (env: TTT_AUTH_SECRET).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return fmt.Errorf("--secret or TTT_AUTH_SECRET is required")
			}

			clk := clock.New()
			svc := auth.New(clk, auth.Config{Secret: secret, Issuer: issuer, TokenTTL: ttl})
			token, err := svc.Issue(model.Identity{UserID: userID, Username: model.Username(username)})
			if err != nil {
				return err
			}

			result := TokenResult{
				Username:  username,
				UserID:    userID,
				Token:     token,
				ExpiresAt: clk.Now().Add(ttl),
			}
			if save {
				if err := cfg.SaveToken(token); err != nil {
					return fmt.Errorf("failed to save token: %w", err)
				}
				result.SavedTo = cfg.TokenFile
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}

	defaults := auth.DefaultConfig()
	cmd.Flags().StringVar(&username, "username", "", "Username to embed (required)")
	cmd.Flags().Int64Var(&userID, "user-id", 0, "Numeric user id to embed")
	cmd.Flags().StringVar(&secret, "secret", cliEnv().GetString("auth_secret"), "Signing secret (env: TTT_AUTH_SECRET)")
	cmd.Flags().StringVar(&issuer, "issuer", defaults.Issuer, "Token issuer")
	cmd.Flags().DurationVar(&ttl, "ttl", defaults.TokenTTL, "Token lifetime")
	cmd.Flags().BoolVar(&save, "save", true, "Save the token to the token file")
	_ = cmd.MarkFlagRequired("username")

	return cmd
}
