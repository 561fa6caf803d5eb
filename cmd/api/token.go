package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/balu-property/damage-service/internal/auth"
	"github.com/balu-property/damage-service/internal/config"
	"github.com/balu-property/damage-service/internal/domain"
)

// newTokenCommand mints access tokens for local testing against the seeded store.
func newTokenCommand() *cobra.Command {
	var (
		id   string
		role string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development access token",
		Example: `  damage-service token --role tenant --id tenant-demo
  damage-service token --role company --id company-demo`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			actor := domain.Actor{ID: id, Role: domain.Role(role)}
			if !actor.Role.IsValid() {
				return fmt.Errorf("unknown role %q", role)
			}
			if actor.ID == "" {
				actor.ID = fmt.Sprintf("%s-demo", role)
				if actor.Role == domain.RoleObjectOwner {
					actor.ID = "owner-demo"
				}
				if actor.Role == domain.RolePropertyAdmin {
					actor.ID = "admin-demo"
				}
			}

			token, expires, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes).GenerateToken(actor)
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "subject=%s role=%s expires=%s\n", actor.ID, actor.Role, expires.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "actor id (defaults to the seeded demo id for the role)")
	cmd.Flags().StringVarP(&role, "role", "r", string(domain.RoleTenant), "tenant, object_owner, property_admin, janitor, company or guest")
	return cmd
}
