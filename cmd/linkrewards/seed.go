package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"linkrewards/internal/catalog"
	"linkrewards/internal/config"
)

func seedCmd(load func() (config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "seed [catalog.yaml]",
		Short: "Insert or update tasks from a YAML catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg.LogLevel)

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			tasks, err := catalog.Parse(f)
			if err != nil {
				return err
			}

			store, err := openStore(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := catalog.Seed(cmd.Context(), store, tasks)
			if err != nil {
				return err
			}
			logger.Info("catalog seeded", slog.Int("tasks", n), slog.String("file", args[0]))
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d tasks\n", n)
			return nil
		},
	}
}
