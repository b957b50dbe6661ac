package service

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/RangGames/CreeperPrefixSystem/internal/config"
	"github.com/RangGames/CreeperPrefixSystem/internal/constants"
	"github.com/RangGames/CreeperPrefixSystem/internal/domain"
	"github.com/RangGames/CreeperPrefixSystem/internal/worker"
)

const (
	seasonHintPrefix = "season:"
	seasonKey        = "season"
)

// SeasonCoordinator holds the fleet-wide season snapshot. Only the
// authority writes; followers refresh from the store.
type SeasonCoordinator struct {
	store     SeasonStore
	pool      *worker.Pool
	publisher Publisher
	authority bool
	current   atomic.Pointer[domain.SeasonSnapshot]
	creating  atomic.Bool
	logger    zerolog.Logger
}

func NewSeasonCoordinator(cfg *config.Config, stores Stores, pool *worker.Pool, publisher Publisher, logger zerolog.Logger) *SeasonCoordinator {
	c := &SeasonCoordinator{
		store:     stores.Seasons,
		pool:      pool,
		publisher: publisher,
		authority: cfg.IsAuthority(),
		logger:    logger.With().Str("component", "season").Str("role", cfg.SeasonRole).Logger(),
	}
	c.current.Store(&domain.SeasonSnapshot{Name: constants.BootstrapSeasonName, State: domain.SeasonPreparing})
	return c
}

func (c *SeasonCoordinator) IsAuthority() bool {
	return c.authority
}

// Init loads the latest season. When none exists the authority creates a
// bootstrap season; followers keep a PREPARING placeholder.
func (c *SeasonCoordinator) Init(ctx context.Context) error {
	type latest struct {
		snap  domain.SeasonSnapshot
		found bool
	}
	res, err := await(ctx, c.pool, seasonKey, "load season", func(ctx context.Context) (latest, error) {
		snap, ok, err := c.store.LatestSeason(ctx)
		return latest{snap, ok}, err
	})
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to load latest season")
		return err
	}
	if res.found {
		c.current.Store(&res.snap)
		c.logger.Info().Int64("season", res.snap.ID).Str("state", string(res.snap.State)).Msg("season loaded")
		return nil
	}
	if !c.authority {
		c.logger.Info().Msg("no season stored yet, waiting for authority")
		return nil
	}

	snap, err := await(ctx, c.pool, seasonKey, "create season", func(ctx context.Context) (domain.SeasonSnapshot, error) {
		return c.store.CreateSeason(ctx, constants.BootstrapSeasonName, domain.SeasonPreparing)
	})
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to create bootstrap season")
		return err
	}
	c.current.Store(&snap)
	c.logger.Info().Int64("season", snap.ID).Msg("bootstrap season created")
	return nil
}

func (c *SeasonCoordinator) State() domain.SeasonState {
	return c.current.Load().State
}

func (c *SeasonCoordinator) Snapshot() domain.SeasonSnapshot {
	return *c.current.Load()
}

// Refresh replaces the in-memory snapshot with the stored one.
func (c *SeasonCoordinator) Refresh(ctx context.Context) error {
	type latest struct {
		snap  domain.SeasonSnapshot
		found bool
	}
	res, err := await(ctx, c.pool, seasonKey, "refresh season", func(ctx context.Context) (latest, error) {
		snap, ok, err := c.store.LatestSeason(ctx)
		return latest{snap, ok}, err
	})
	if err != nil {
		c.logger.Warn().Err(err).Msg("season refresh failed")
		return err
	}
	if !res.found {
		return nil
	}
	prev := c.current.Swap(&res.snap)
	if prev.State != res.snap.State || prev.ID != res.snap.ID {
		c.logger.Info().Int64("season", res.snap.ID).Str("state", string(res.snap.State)).Str("previous", string(prev.State)).Msg("season refreshed")
	}
	return nil
}

// SetState moves the season to state. Any transition is allowed. It
// returns false on followers and when the state is unchanged.
func (c *SeasonCoordinator) SetState(ctx context.Context, state domain.SeasonState) bool {
	if !c.authority {
		c.logger.Warn().Str("state", string(state)).Msg("follower cannot change season state")
		return false
	}

	for {
		prev := c.current.Load()
		if prev.State == state {
			return false
		}
		next := *prev
		next.State = state
		if !c.current.CompareAndSwap(prev, &next) {
			continue
		}

		c.persist(next)
		if c.publisher.Enabled() {
			c.publisher.PublishHint(seasonHintPrefix + string(state))
		}
		c.logger.Info().Int64("season", next.ID).Str("state", string(state)).Str("previous", string(prev.State)).Msg("season state changed")
		return true
	}
}

func (c *SeasonCoordinator) persist(snap domain.SeasonSnapshot) {
	if snap.ID != 0 {
		// Writes the state current at run time so a late task never
		// overwrites a newer one.
		c.pool.SubmitKeyed(seasonKey, "update season", func(ctx context.Context) error {
			cur := c.current.Load()
			return c.store.UpdateSeasonState(ctx, cur.ID, cur.State)
		})
		return
	}
	// The bootstrap season was never stored; create it now and sync any
	// state change that happened meanwhile.
	if !c.creating.CompareAndSwap(false, true) {
		return
	}
	c.pool.SubmitKeyed(seasonKey, "create season", func(ctx context.Context) error {
		defer c.creating.Store(false)
		created, err := c.store.CreateSeason(ctx, snap.Name, snap.State)
		if err != nil {
			return err
		}
		for {
			cur := c.current.Load()
			if cur.ID != 0 {
				return nil
			}
			withID := *cur
			withID.ID = created.ID
			withID.StartAt = created.StartAt
			if !c.current.CompareAndSwap(cur, &withID) {
				continue
			}
			if withID.State != created.State {
				return c.store.UpdateSeasonState(ctx, created.ID, withID.State)
			}
			return nil
		}
	})
}

// HandleHint reacts to a season hint from another node. Followers refresh;
// the authority ignores it.
func (c *SeasonCoordinator) HandleHint(ctx context.Context, hint string) {
	if !strings.HasPrefix(hint, seasonHintPrefix) || c.authority {
		return
	}
	c.logger.Debug().Str("hint", hint).Msg("season hint received")
	if err := c.Refresh(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("refresh after hint failed")
	}
}
