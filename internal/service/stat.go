package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/RangGames/CreeperPrefixSystem/internal/authority"
	"github.com/RangGames/CreeperPrefixSystem/internal/domain"
	"github.com/RangGames/CreeperPrefixSystem/internal/live"
	"github.com/RangGames/CreeperPrefixSystem/internal/registry"
	"github.com/RangGames/CreeperPrefixSystem/internal/session"
	"github.com/RangGames/CreeperPrefixSystem/internal/worker"
)

type StatService struct {
	registry  *registry.Registry
	store     StatStore
	pool      *worker.Pool
	exec      *authority.Executor
	players   live.Directory
	publisher Publisher
	states    *session.Store[*domain.PlayerStatState]
	now       func() time.Time
	logger    zerolog.Logger
}

func NewStatService(
	reg *registry.Registry,
	stores Stores,
	pool *worker.Pool,
	exec *authority.Executor,
	players live.Directory,
	publisher Publisher,
	logger zerolog.Logger,
) *StatService {
	return &StatService{
		registry:  reg,
		store:     stores.Stats,
		pool:      pool,
		exec:      exec,
		players:   players,
		publisher: publisher,
		states:    session.New(domain.NewPlayerStatState),
		now:       time.Now,
		logger:    logger.With().Str("component", "stats").Logger(),
	}
}

// SetClock replaces the time source used for expiry checks.
func (s *StatService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *StatService) state(player uuid.UUID) *domain.PlayerStatState {
	st, _ := s.states.Open(player)
	return st
}

// Load replaces the player's cached stats with the stored ones.
func (s *StatService) Load(ctx context.Context, player uuid.UUID) error {
	type loaded struct {
		bases map[string]float64
		mods  []domain.StatModifier
	}
	res, err := await(ctx, s.pool, player.String(), "load stats", func(ctx context.Context) (loaded, error) {
		bases, mods, err := s.store.LoadStats(ctx, player)
		return loaded{bases, mods}, err
	})
	if err != nil {
		s.logger.Error().Err(err).Str("player", player.String()).Msg("failed to load stats")
		return err
	}

	st := domain.NewPlayerStatState()
	for statID, v := range res.bases {
		st.SetBase(statID, v)
	}
	for _, m := range res.mods {
		st.PutModifier(m)
	}
	s.states.Put(player, st)
	s.logger.Debug().Str("player", player.String()).Int("modifiers", len(res.mods)).Msg("stats loaded")
	return nil
}

func (s *StatService) Unload(player uuid.UUID) {
	s.states.Close(player)
}

func (s *StatService) AddModifier(ctx context.Context, player uuid.UUID, statID, sourceID string, op domain.Operation, value float64, expireAt *time.Time) {
	m := domain.StatModifier{
		PlayerID: player,
		StatID:   statID,
		SourceID: sourceID,
		Op:       op,
		Value:    value,
		ExpireAt: expireAt,
	}
	s.putModifier(m)
	if s.publisher.Enabled() {
		s.publisher.PublishModifierAdd(m)
	}
	s.notify(player, statID)
}

// ApplyNetworkModifier mirrors a modifier added on another node.
func (s *StatService) ApplyNetworkModifier(m domain.StatModifier) {
	s.putModifier(m)
}

func (s *StatService) putModifier(m domain.StatModifier) {
	s.state(m.PlayerID).PutModifier(m)
	s.pool.SubmitKeyed(m.PlayerID.String(), "upsert modifier", func(ctx context.Context) error {
		return s.store.UpsertModifier(ctx, m)
	})
	s.logger.Debug().
		Str("player", m.PlayerID.String()).
		Str("stat", m.StatID).
		Str("source", m.SourceID).
		Str("op", string(m.Op)).
		Float64("value", m.Value).
		Msg("modifier set")
}

func (s *StatService) RemoveModifier(ctx context.Context, player uuid.UUID, statID, sourceID string) bool {
	removed := s.removeModifier(player, statID, sourceID)
	if removed && s.publisher.Enabled() {
		s.publisher.PublishModifierRemove(player, statID, sourceID)
	}
	if removed {
		s.notify(player, statID)
	}
	return removed
}

// ApplyNetworkModifierRemoval mirrors a removal made on another node.
func (s *StatService) ApplyNetworkModifierRemoval(player uuid.UUID, statID, sourceID string) bool {
	return s.removeModifier(player, statID, sourceID)
}

func (s *StatService) removeModifier(player uuid.UUID, statID, sourceID string) bool {
	st, ok := s.states.Get(player)
	if !ok || !st.RemoveModifier(statID, sourceID) {
		return false
	}
	s.scheduleDelete(player, statID, sourceID)
	return true
}

func (s *StatService) scheduleDelete(player uuid.UUID, statID, sourceID string) {
	s.pool.SubmitKeyed(player.String(), "delete modifier", func(ctx context.Context) error {
		return s.store.DeleteModifier(ctx, player, statID, sourceID)
	})
}

func (s *StatService) SetBaseStat(ctx context.Context, player uuid.UUID, statID string, value float64) {
	s.state(player).SetBase(statID, value)
	s.pool.SubmitKeyed(player.String(), "save base stat", func(ctx context.Context) error {
		return s.store.SaveBaseStat(ctx, player, statID, value)
	})
	if s.publisher.Enabled() {
		s.publisher.PublishBaseSet(player, statID, value)
	}
	s.notify(player, statID)
}

// ApplyNetworkBase mirrors a base value set on another node. The origin
// node already persisted it, so only the local cache changes.
func (s *StatService) ApplyNetworkBase(player uuid.UUID, statID string, value float64) {
	s.state(player).SetBase(statID, value)
}

// GetStat resolves the effective value of statID. Expired modifiers found
// on the way are evicted without being broadcast. Players without a cached
// state resolve against an empty one that is not kept.
func (s *StatService) GetStat(player uuid.UUID, statID string) float64 {
	def, ok := s.registry.Catalog().Stat(statID)
	if !ok {
		return 0
	}

	st, ok := s.states.Get(player)
	if !ok {
		st = domain.NewPlayerStatState()
	}
	base, ok := st.Base(statID)
	if !ok {
		base = def.Default
	}

	now := s.now()
	var (
		additive    float64
		multiplier  = 1.0
		override    float64
		hasOverride bool
	)
	for _, m := range st.Modifiers(statID) {
		if m.Expired(now) {
			if st.RemoveExpired(statID, m.SourceID, now) {
				s.scheduleDelete(player, statID, m.SourceID)
				s.logger.Debug().Str("player", player.String()).Str("stat", statID).Str("source", m.SourceID).Msg("evicted expired modifier")
			}
			continue
		}
		switch m.Op {
		case domain.OpAdd:
			additive += m.Value
		case domain.OpMult:
			multiplier *= 1 + m.Value
		case domain.OpSet:
			override, hasOverride = m.Value, true
		}
	}

	if hasOverride {
		return def.Clamp(override)
	}
	return def.Clamp((base + additive) * multiplier)
}

// Modifiers returns the player's cached modifiers on statID.
func (s *StatService) Modifiers(player uuid.UUID, statID string) []domain.StatModifier {
	st, ok := s.states.Get(player)
	if !ok {
		return nil
	}
	return st.Modifiers(statID)
}

func (s *StatService) notify(player uuid.UUID, statID string) {
	s.exec.Post(func(ctx context.Context) {
		if p, ok := s.players.Lookup(player); ok {
			p.StatChanged(statID)
		}
	})
}
