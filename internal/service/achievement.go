package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/RangGames/CreeperPrefixSystem/internal/domain"
	"github.com/RangGames/CreeperPrefixSystem/internal/events"
	"github.com/RangGames/CreeperPrefixSystem/internal/registry"
	"github.com/RangGames/CreeperPrefixSystem/internal/session"
	"github.com/RangGames/CreeperPrefixSystem/internal/worker"
)

type AchievementService struct {
	registry *registry.Registry
	store    CollectionStore
	pool     *worker.Pool
	bus      *events.Bus
	effects  *EffectApplier
	states   *session.Store[*domain.PlayerAchievementState]
	logger   zerolog.Logger
}

func NewAchievementService(
	reg *registry.Registry,
	stores Stores,
	pool *worker.Pool,
	bus *events.Bus,
	effects *EffectApplier,
	logger zerolog.Logger,
) *AchievementService {
	return &AchievementService{
		registry: reg,
		store:    stores.Collection,
		pool:     pool,
		bus:      bus,
		effects:  effects,
		states:   session.New(domain.NewPlayerAchievementState),
		logger:   logger.With().Str("component", "achievements").Logger(),
	}
}

func (s *AchievementService) Load(ctx context.Context, player uuid.UUID) error {
	completions, err := await(ctx, s.pool, player.String(), "load achievements", func(ctx context.Context) ([]domain.AchievementCompletion, error) {
		return s.store.LoadAchievements(ctx, player)
	})
	if err != nil {
		s.logger.Error().Err(err).Str("player", player.String()).Msg("failed to load achievements")
		return err
	}
	st := domain.NewPlayerAchievementState()
	for _, c := range completions {
		st.Add(c)
	}
	s.states.Put(player, st)
	return nil
}

func (s *AchievementService) Unload(player uuid.UUID) {
	s.states.Close(player)
}

// HandleCollectionCount unlocks every collection-count achievement whose
// target count has been reached.
func (s *AchievementService) HandleCollectionCount(ctx context.Context, player uuid.UUID, count int) []string {
	st, _ := s.states.Open(player)
	var unlocked []string
	for _, def := range s.registry.Catalog().AchievementsByType(domain.AchievementCollectionCount) {
		if st.Has(def.ID) || !def.MatchesCollectionCount(count) {
			continue
		}
		if s.unlock(ctx, player, st, def) {
			unlocked = append(unlocked, def.ID)
		}
	}
	return unlocked
}

func (s *AchievementService) unlock(ctx context.Context, player uuid.UUID, st *domain.PlayerAchievementState, def domain.AchievementDefinition) bool {
	ev := &events.AchievementUnlock{
		PlayerID:        player,
		Achievement:     def,
		CompletionOrder: st.Len() + 1,
		Announce:        true,
	}
	if !proceed(ctx, s.logger, "achievement unlock", s.bus.AchievementUnlock, ev) {
		return false
	}

	completion := domain.AchievementCompletion{AchievementID: def.ID, CompletedAt: nowUTC()}
	if !st.Add(completion) {
		return false
	}
	if ev.Announce {
		s.effects.notifyPlayer(player, fmt.Sprintf("Achievement unlocked: %s", def.Display))
		if def.Description != "" {
			s.effects.notifyPlayer(player, def.Description)
		}
	}

	announce := ev.Announce
	s.pool.SubmitKeyed(player.String(), "insert achievement", func(ctx context.Context) error {
		rank, err := s.store.InsertAchievement(ctx, player, completion)
		if err != nil || rank == 0 {
			return err
		}
		st.SetGlobalRank(def.ID, rank)
		if announce {
			s.effects.notifyPlayer(player, fmt.Sprintf("Achievement rank: #%d", rank))
		}
		return nil
	})
	s.logger.Info().Str("player", player.String()).Str("achievement", def.ID).Msg("achievement unlocked")
	return true
}

func (s *AchievementService) Completions(player uuid.UUID) []domain.AchievementCompletion {
	st, ok := s.states.Get(player)
	if !ok {
		return nil
	}
	return st.Completions()
}

// CompletionIDs returns the completed achievement ids in id order.
func (s *AchievementService) CompletionIDs(player uuid.UUID) []string {
	var ids []string
	for _, c := range s.Completions(player) {
		ids = append(ids, c.AchievementID)
	}
	sort.Strings(ids)
	return ids
}

func (s *AchievementService) HasCompletion(player uuid.UUID, achievementID string) bool {
	st, ok := s.states.Get(player)
	return ok && st.Has(achievementID)
}
