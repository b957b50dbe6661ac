package fx

import (
	"context"

	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/RangGames/CreeperPrefixSystem/internal/authority"
	"github.com/RangGames/CreeperPrefixSystem/internal/config"
	"github.com/RangGames/CreeperPrefixSystem/internal/console"
	"github.com/RangGames/CreeperPrefixSystem/internal/constants"
	"github.com/RangGames/CreeperPrefixSystem/internal/database"
	"github.com/RangGames/CreeperPrefixSystem/internal/jobs"
	"github.com/RangGames/CreeperPrefixSystem/internal/live"
	"github.com/RangGames/CreeperPrefixSystem/internal/logger"
	"github.com/RangGames/CreeperPrefixSystem/internal/netsync"
	"github.com/RangGames/CreeperPrefixSystem/internal/pubsub"
	"github.com/RangGames/CreeperPrefixSystem/internal/pubsub/redis"
	"github.com/RangGames/CreeperPrefixSystem/internal/registry"
	"github.com/RangGames/CreeperPrefixSystem/internal/repository"
	"github.com/RangGames/CreeperPrefixSystem/internal/server"
	"github.com/RangGames/CreeperPrefixSystem/internal/service"
	"github.com/RangGames/CreeperPrefixSystem/internal/titleplus"
	"github.com/RangGames/CreeperPrefixSystem/internal/worker"
)

func ProvidePool(lc fx.Lifecycle, cfg *config.Config, logger zerolog.Logger) *worker.Pool {
	pool := worker.New(cfg.Workers, constants.WorkerQueueSize, logger)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return pool.Close()
		},
	})
	return pool
}

func ProvideExecutor(lc fx.Lifecycle, logger zerolog.Logger) *authority.Executor {
	exec := authority.New(constants.AuthorityBacklog, logger)
	exec.Start()
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			exec.Stop()
			return nil
		},
	})
	return exec
}

func ProvideGateway(cfg *config.Config, logger zerolog.Logger) pubsub.Gateway {
	return redis.New(cfg, logger)
}

// ProvideEngine builds the facade and binds the bridge to it. The bridge
// starts before the season is read so followers receive hints at once.
func ProvideEngine(
	lc fx.Lifecycle,
	cfg *config.Config,
	stores service.Stores,
	pool *worker.Pool,
	exec *authority.Executor,
	reg *registry.Registry,
	roster *live.Roster,
	bridge *netsync.Bridge,
	commands *console.Console,
	logger zerolog.Logger,
) *titleplus.Engine {
	engine := titleplus.New(titleplus.Deps{
		Config:    cfg,
		Registry:  reg,
		Stores:    stores,
		Pool:      pool,
		Executor:  exec,
		Roster:    roster,
		Publisher: bridge,
		Commands:  commands,
		Logger:    logger,
	})
	bridge.Bind(engine.Stats(), engine.HandleHint)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := bridge.Start(ctx); err != nil {
				return err
			}
			if err := engine.Start(ctx); err != nil {
				logger.Warn().Err(err).Msg("season bootstrap incomplete, continuing")
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return bridge.Close()
		},
	})
	return engine
}

func ProvideJobs(lc fx.Lifecycle, cfg *config.Config, engine *titleplus.Engine, logger zerolog.Logger) *jobs.Runner {
	runner := jobs.New(cfg, engine, logger)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			runner.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return runner.Stop()
		},
	})
	return runner
}

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(database.New),
	// stores
	fx.Provide(repository.NewStores),
	// runtime
	fx.Provide(ProvidePool),
	fx.Provide(ProvideExecutor),
	fx.Provide(registry.NewFromConfig),
	fx.Provide(live.NewRoster),
	// network
	fx.Provide(ProvideGateway),
	fx.Provide(netsync.New),
	fx.Provide(console.New),
	// engine
	fx.Provide(ProvideEngine),
	fx.Provide(ProvideJobs),
	// server
	fx.Provide(server.NewAdminServer),
)
