package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/postgate/postgate/internal/gatesrv/config"
	"github.com/postgate/postgate/internal/gatesrv/db"
	"github.com/postgate/postgate/internal/gatesrv/db/dbmanager"
	"github.com/postgate/postgate/internal/gatesrv/db/migrations"
	"github.com/postgate/postgate/internal/gatesrv/db/postgresql"
	"github.com/postgate/postgate/internal/gatesrv/executor"
	"github.com/postgate/postgate/internal/gatesrv/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(ctx context.Context) error {
	slog := log.With().Str("state", "init").Logger()

	if err := config.LoadConfig(configFile); err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg := config.Config()

	shared, err := dbmanager.NewPostgresqlPool(cfg.DatabaseURL, dbmanager.Options{
		AcquireTimeout: cfg.Limits.GetAcquireTimeout(),
	})
	if err != nil {
		return fmt.Errorf("opening host database: %w", err)
	}

	// The database may come up after us; retry the first ping before giving
	// up on startup.
	if err := retry.Do(
		func() error { return dbmanager.Ping(ctx, shared) },
		retry.Context(ctx),
		retry.Attempts(5),
		retry.Delay(time.Second),
	); err != nil {
		return fmt.Errorf("host database unreachable: %w", err)
	}

	slog.Info().Msg("running database migrations")
	if err := migrations.Run(ctx, dbmanager.DB(shared)); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	store := postgresql.NewStore(dbmanager.DB(shared))
	touch := db.StartTouchWorker(store)
	defer touch.Stop()

	provider := dbmanager.NewProvider(shared, dbmanager.Options{
		AcquireTimeout: cfg.Limits.GetAcquireTimeout(),
	})
	defer provider.Close()

	exec := executor.New(provider, cfg.Limits.GetQueryTimeout(), touch)

	s, err := server.CreateNewServer(store, exec)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	s.MountHandlers()

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:           s.Router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info().Str("addr", srv.Addr).Msg("server started")
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		slog.Info().Str("signal", sig.String()).Msg("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error().Err(err).Msg("could not stop server gracefully")
			if err := srv.Close(); err != nil {
				slog.Error().Err(err).Msg("could not stop server")
			}
		}
	}

	slog.Info().Msg("server stopped")
	return nil
}
