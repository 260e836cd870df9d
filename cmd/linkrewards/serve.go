package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"linkrewards/internal/app"
	"linkrewards/internal/auth"
	"linkrewards/internal/config"
	"linkrewards/internal/server"
)

func serveCmd(load func() (config.Config, error)) *cobra.Command {
	var (
		addr      string
		staticDir string
		secure    bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and serve the frontend",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Addr = addr
			}
			if cmd.Flags().Changed("static") {
				cfg.StaticDir = staticDir
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return serve(cfg, secure)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "HTTP listen address (overrides LINK_ADDR)")
	cmd.Flags().StringVar(&staticDir, "static", "web/dist", "Directory with built frontend (overrides LINK_STATIC_DIR)")
	cmd.Flags().BoolVar(&secure, "secure-cookies", false, "Mark the client cookie Secure")
	return cmd
}

func serve(cfg config.Config, secure bool) error {
	logger := newLogger(cfg.LogLevel)
	logger.Info("Link rewards", slog.String("version", version), slog.String("driver", cfg.Driver))
	if !cfg.RedeemGuard {
		logger.Warn("redeem guard disabled; cash-outs overwrite the balance unconditionally")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("unable to open backend", slog.String("error", err.Error()))
		return err
	}
	defer store.Close()

	provider, err := auth.NewProvider(store, cfg.APIKey, cfg.TokenTTL, logger)
	if err != nil {
		return err
	}

	clients := app.NewRegistry(provider, store, app.Config{
		StepDelay:         cfg.StepDelay,
		RedeemGuard:       cfg.RedeemGuard,
		NotificationLimit: 50,
		IdleTimeout:       cfg.IdleTimeout,
		MaxClients:        cfg.MaxClients,
	}, logger)
	defer clients.Close()
	go clients.Run(ctx)

	srv := server.New(clients, logger, server.Options{
		StaticDir:     cfg.StaticDir,
		ImageDir:      cfg.ImageDir,
		SecureCookies: secure,
	})

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting server", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped unexpectedly", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
	return nil
}
