package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"namaste-icd-mapper/internal/auth"
)

// NewTokenCmd creates the token command.
func NewTokenCmd() *cobra.Command {
	var (
		subject string
		role    string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the admin API",
		Long: `Signs a token with ADMIN_TOKEN_SECRET, the same secret the server
verifies on /admin routes.

Example:
  ADMIN_TOKEN_SECRET=... vocabctl token --subject ops@example.org --ttl 8h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToken(cmd.OutOrStdout(), os.Getenv("ADMIN_TOKEN_SECRET"), subject, role, ttl)
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "Operator the token is issued to")
	cmd.Flags().StringVar(&role, "role", auth.RoleAdmin, "Role claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	cmd.MarkFlagRequired("subject")

	return cmd
}

func runToken(out io.Writer, secret, subject, role string, ttl time.Duration) error {
	if secret == "" {
		return fmt.Errorf("ADMIN_TOKEN_SECRET is not set")
	}
	tokens, err := auth.NewTokenManager(secret, ttl)
	if err != nil {
		return err
	}

	token, exp, err := tokens.Issue(subject, role)
	if err != nil {
		return fmt.Errorf("failed to sign token: %w", err)
	}

	fmt.Fprintln(out, token)
	fmt.Fprintf(os.Stderr, "expires %s\n", exp.UTC().Format(time.RFC3339))
	return nil
}
