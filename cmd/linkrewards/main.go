package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"linkrewards/internal/config"
	"linkrewards/internal/storage"
	"linkrewards/internal/storage/postgres"
	"linkrewards/internal/storage/sqlite"
)

var version = "dev"

func main() {
	var envFile string

	rootCmd := &cobra.Command{
		Use:           "linkrewards",
		Short:         "Link - earn points for tasks and cash them out",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional dotenv file read before the environment")

	load := func() (config.Config, error) {
		return config.Load(envFile)
	}
	rootCmd.AddCommand(serveCmd(load))
	rootCmd.AddCommand(seedCmd(load))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// openStore connects to the configured backend and makes sure the schema exists.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (storage.Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		store, err := postgres.Open(ctx, cfg.BackendURL)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
		return store, nil
	case config.DriverSQLite:
		return sqlite.Open(cfg.BackendURL, logger)
	default:
		return nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
	}
}
