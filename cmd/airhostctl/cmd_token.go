package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/rukayathamzat/Airhost2402-sub001/internal/api/middleware"
	"github.com/rukayathamzat/Airhost2402-sub001/internal/crypto"
)

func newTokenCmd(a *app) *cobra.Command {
	var (
		subject string
		role    string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development JWT signed with SUPABASE_JWT_SECRET",
		Long: `Mint a bearer token the API accepts, for local testing.

An "authenticated" token needs --sub, the host user UUID. A
"service_role" token acts for every host.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := a.config().JWTSecret
			if secret == "" {
				return errors.New("SUPABASE_JWT_SECRET is not set")
			}

			var id uuid.UUID
			switch role {
			case middleware.RoleAuthenticated:
				parsed, err := uuid.Parse(subject)
				if err != nil {
					return fmt.Errorf("--sub must be a UUID: %w", err)
				}
				id = parsed
			case middleware.RoleServiceRole:
			default:
				return fmt.Errorf("unknown role %q", role)
			}

			token, err := middleware.IssueToken(secret, id, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "sub", "", "host user UUID")
	cmd.Flags().StringVar(&role, "role", middleware.RoleAuthenticated, "authenticated or service_role")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

func newGenVerifyTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gen-verify-token",
		Short: "Generate a random WHATSAPP_VERIFY_TOKEN",
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := crypto.GenerateVerifyToken()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
}
