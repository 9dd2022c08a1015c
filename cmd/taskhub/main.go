package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"kyri56xcaesar/taskhub/internal/config"
	"kyri56xcaesar/taskhub/internal/logging"
)

var Version = "dev"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "taskhub",
		Short:         "taskhub - task and project management API",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", ".env", "path to the env configuration file")

	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(migrateCmd(&configPath))
	rootCmd.AddCommand(createAdminCmd(&configPath))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the configuration and installs the logger every command shares.
func setup(configPath string) config.Config {
	cfg := config.Load(configPath)
	logging.Setup(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	if cfg.Verbose {
		slog.Info("configuration loaded\n" + cfg.String())
	}

	return cfg
}
