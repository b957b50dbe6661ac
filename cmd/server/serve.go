package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/RangGames/CreeperPrefixSystem/internal/config"
	"github.com/RangGames/CreeperPrefixSystem/internal/constants"
	fxmodules "github.com/RangGames/CreeperPrefixSystem/internal/fx"
	"github.com/RangGames/CreeperPrefixSystem/internal/jobs"
	"github.com/RangGames/CreeperPrefixSystem/internal/server"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the engine and the admin server",
		Run: func(cmd *cobra.Command, args []string) {
			fx.New(
				fxmodules.Module,
				fx.Invoke(runServer),
			).Run()
		},
	}
}

func runServer(
	lc fx.Lifecycle,
	admin *server.AdminServer,
	_ *jobs.Runner,
	cfg *config.Config,
	logger zerolog.Logger,
) {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: server.NewHandler(admin, logger),
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				logger.Info().Str("addr", srv.Addr).Str("node_id", cfg.NodeID).Msg("server starting")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Fatal().Err(err).Msg("server failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("server shutdown failed")
				return err
			}
			logger.Info().Msg("server stopped gracefully")
			return nil
		},
	})
}
