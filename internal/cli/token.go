package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"donation-ledger/internal/auth"
	"donation-ledger/internal/domain/users"

	"github.com/spf13/cobra"
)

// tokenCmd mints an HS256 token for local testing and operator scripts.
func tokenCmd() *cobra.Command {
	var (
		id     users.Identity
		secret string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("JWT_SECRET")
			}
			if id.UserID == "" {
				return errors.New("--user is required")
			}
			v, err := auth.NewHMACVerifier(secret)
			if err != nil {
				return err
			}
			token, err := v.IssueToken(id, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&id.UserID, "user", "", "user id (sub)")
	cmd.Flags().StringVar(&id.Email, "email", "", "email claim")
	cmd.Flags().StringVar(&id.Role, "role", "", "role claim, e.g. admin")
	cmd.Flags().StringVar(&secret, "secret", "", "signing secret (defaults to JWT_SECRET)")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
