package cmd

import (
	"context"
	"fmt"
	"time"

	"yeti/api"

	"github.com/spf13/cobra"
)

// NewTokenCmd creates the 'token' command.
func NewTokenCmd() *cobra.Command {
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Issue API bearer tokens",
	}
	addPersistentFlags(tokenCmd)

	tokenCmd.AddCommand(newTokenIssueCmd())
	return tokenCmd
}

func newTokenIssueCmd() *cobra.Command {
	var (
		user string
		ttl  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Mint a bearer token for a user",
		Long:  "Mint an HS256 bearer token for an existing, enabled user. --ttl defaults to auth.jwt_expiry.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			uid, err := parseUserID(user, "user")
			if err != nil {
				return err
			}
			if ttl < 0 {
				return fmt.Errorf("--ttl must be positive")
			}

			return withEnv(func(ctx context.Context, env *cliEnv) error {
				u, err := env.users.GetUser(ctx, uid)
				if err != nil {
					return fmt.Errorf("user %s: %w", uid.Hex(), err)
				}
				if !u.Enabled {
					return fmt.Errorf("user %s is disabled", u.Username)
				}

				expiry := ttl
				if expiry == 0 {
					expiry = env.cfg.Auth.JWTExpiry
				}
				token, err := api.GenerateToken(u, env.cfg.Auth.JWTSecret, env.cfg.Auth.Issuer, expiry)
				if err != nil {
					return fmt.Errorf("failed to issue token: %w", err)
				}
				env.logger.Warnw("AUDIT: Token issued from CLI", "user_id", uid.Hex(), "username", u.Username, "ttl", expiry.String())

				if outputJSON {
					return outputAsJSON(cmd.OutOrStdout(), map[string]interface{}{
						"token":      token,
						"expires_at": time.Now().Add(expiry).UTC(),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), token)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "User ID (required)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime, e.g. 24h")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
