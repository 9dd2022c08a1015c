package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	auth "kyri56xcaesar/taskhub/internal/authmw"
	"kyri56xcaesar/taskhub/internal/server"
	"kyri56xcaesar/taskhub/internal/store"
)

func serveCmd(configPath *string) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := setup(*configPath)

			tokens, err := auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL)
			if err != nil {
				return fmt.Errorf("JWT_SECRET must be set: %w", err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()

			st, err := store.Open(ctx, cfg.StoreDriver, cfg.DSN())
			if err != nil {
				return err
			}
			defer st.Close()

			if pg, ok := st.(*store.Postgres); ok && migrate {
				slog.Info("applying schema")
				if err := pg.Migrate(ctx); err != nil {
					return err
				}
			}

			var kc *auth.Service
			if cfg.KCEnabled {
				kc, err = auth.NewService(cfg.AuthAddress, cfg.Realm, cfg.ClientID, cfg.Issuer, cfg.Audience, cfg.ClientSecret)
				if err != nil {
					return fmt.Errorf("keycloak: %w", err)
				}
			}

			return server.InitAndServe(cfg, st, tokens, kc)
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", true, "apply the schema before serving (postgres only)")

	return cmd
}
