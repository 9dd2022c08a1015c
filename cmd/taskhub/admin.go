package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"kyri56xcaesar/taskhub/internal/muser"
	"kyri56xcaesar/taskhub/internal/store"
	"kyri56xcaesar/taskhub/internal/utils"
)

func createAdminCmd(configPath *string) *cobra.Command {
	var name, email, password string

	cmd := &cobra.Command{
		Use:     "create-admin",
		Short:   "Create an administrator account",
		Example: `  taskhub create-admin --name "Ops" --email ops@example.com --password 'change-me'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := setup(*configPath)
			if cfg.StoreDriver == store.DriverMemory {
				return errors.New("create-admin needs a persistent store, STORE_DRIVER is memory")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			st, err := store.Open(ctx, cfg.StoreDriver, cfg.DSN())
			if err != nil {
				return err
			}
			defer st.Close()

			generated := password == ""
			if generated {
				if password, err = utils.GenerateRandomString(16); err != nil {
					return err
				}
			}

			u, err := muser.NewService(st, nil, nil).CreateAdmin(ctx, name, email, password)
			if err != nil {
				return err
			}
			cmd.Printf("created admin %s <%s> id=%s\n", u.Name, u.Email, u.ID)
			if generated {
				cmd.Printf("generated password: %s\n", password)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&password, "password", "", "initial password (min 6 characters); generated when empty")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}
