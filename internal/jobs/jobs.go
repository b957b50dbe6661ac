// Package jobs runs the periodic season poll and weekly evaluation.
package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/RangGames/CreeperPrefixSystem/internal/config"
	"github.com/RangGames/CreeperPrefixSystem/internal/domain"
)

type Engine interface {
	IsSeasonAuthority() bool
	RefreshSeason(ctx context.Context) error
	RefreshWeekKey() bool
	DefaultMetric() string
	EvaluateWeekly(ctx context.Context, metric string) ([]domain.WeeklyStanding, error)
}

type Runner struct {
	engine      Engine
	seasonEvery time.Duration
	weeklyEvery time.Duration
	logger      zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	group  *errgroup.Group
}

func New(cfg *config.Config, engine Engine, logger zerolog.Logger) *Runner {
	return &Runner{
		engine:      engine,
		seasonEvery: cfg.SeasonPollInterval,
		weeklyEvery: cfg.WeeklyEvalInterval,
		logger:      logger.With().Str("component", "jobs").Logger(),
	}
}

// Start launches the tickers. Followers poll the season; the authority
// evaluates the default weekly metric. Every node rolls its week key.
func (r *Runner) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.group != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.group, ctx = errgroup.WithContext(ctx)

	if !r.engine.IsSeasonAuthority() {
		r.every(ctx, "season poll", r.seasonEvery, r.PollSeason)
	}
	r.every(ctx, "weekly", r.weeklyEvery, r.Weekly)
}

func (r *Runner) every(ctx context.Context, name string, interval time.Duration, fn func(ctx context.Context)) {
	if interval <= 0 {
		r.logger.Info().Str("job", name).Msg("job disabled")
		return
	}
	r.group.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				fn(ctx)
			}
		}
	})
	r.logger.Info().Str("job", name).Dur("interval", interval).Msg("job scheduled")
}

func (r *Runner) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.group == nil {
		return nil
	}
	r.cancel()
	err := r.group.Wait()
	r.group = nil
	return err
}

func (r *Runner) PollSeason(ctx context.Context) {
	if err := r.engine.RefreshSeason(ctx); err != nil {
		r.logger.Warn().Err(err).Msg("season poll failed")
	}
}

func (r *Runner) Weekly(ctx context.Context) {
	if r.engine.RefreshWeekKey() {
		r.logger.Info().Msg("week rolled over")
	}
	if !r.engine.IsSeasonAuthority() {
		return
	}
	metric := r.engine.DefaultMetric()
	standings, err := r.engine.EvaluateWeekly(ctx, metric)
	if err != nil {
		r.logger.Error().Err(err).Str("metric", metric).Msg("weekly evaluation failed")
		return
	}
	r.logger.Debug().Str("metric", metric).Int("standings", len(standings)).Msg("weekly evaluated")
}
