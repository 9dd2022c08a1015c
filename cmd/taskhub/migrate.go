package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"kyri56xcaesar/taskhub/internal/store"
)

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Long: `Apply the embedded schema to the configured Postgres database.

Every statement is idempotent, so running it against an up-to-date
database is a no-op.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := setup(*configPath)

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			pg, err := store.NewPostgres(ctx, cfg.DSN())
			if err != nil {
				return err
			}
			defer pg.Close()

			if err := pg.Migrate(ctx); err != nil {
				return err
			}
			cmd.Println("schema applied")

			return nil
		},
	}
}
