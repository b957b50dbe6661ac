package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/RangGames/CreeperPrefixSystem/internal/constants"
	"github.com/RangGames/CreeperPrefixSystem/internal/domain"
	"github.com/RangGames/CreeperPrefixSystem/internal/events"
	"github.com/RangGames/CreeperPrefixSystem/internal/live"
	"github.com/RangGames/CreeperPrefixSystem/internal/session"
	"github.com/RangGames/CreeperPrefixSystem/internal/worker"
)

type CollectionService struct {
	store        CollectionStore
	pool         *worker.Pool
	bus          *events.Bus
	effects      *EffectApplier
	achievements *AchievementService
	states       *session.Store[*domain.PlayerCollectionState]
	logger       zerolog.Logger
}

func NewCollectionService(
	stores Stores,
	pool *worker.Pool,
	bus *events.Bus,
	effects *EffectApplier,
	achievements *AchievementService,
	logger zerolog.Logger,
) *CollectionService {
	return &CollectionService{
		store:        stores.Collection,
		pool:         pool,
		bus:          bus,
		effects:      effects,
		achievements: achievements,
		states:       session.New(domain.NewPlayerCollectionState),
		logger:       logger.With().Str("component", "collection").Logger(),
	}
}

func (s *CollectionService) Load(ctx context.Context, player uuid.UUID) error {
	entries, err := await(ctx, s.pool, player.String(), "load collection", func(ctx context.Context) ([]domain.CollectionEntry, error) {
		return s.store.LoadCollection(ctx, player)
	})
	if err != nil {
		s.logger.Error().Err(err).Str("player", player.String()).Msg("failed to load collection")
		return err
	}
	st := domain.NewPlayerCollectionState()
	for _, e := range entries {
		st.Add(e)
	}
	s.states.Put(player, st)
	return nil
}

func (s *CollectionService) Unload(player uuid.UUID) {
	s.states.Close(player)
}

// CollectionXP is the reward for registering a new entry when the player
// already holds previous entries.
func CollectionXP(previous int) int {
	if previous == 0 {
		return constants.CollectionBaseXP
	}
	return constants.CollectionBaseXP * previous
}

// Register adds key to the player's collection. It returns false for an
// empty or already registered key or when a hook cancels it.
func (s *CollectionService) Register(ctx context.Context, player uuid.UUID, key string, grantXP, announce bool) (domain.CollectionEntry, bool) {
	key = strings.ToUpper(strings.TrimSpace(key))
	if key == "" {
		return domain.CollectionEntry{}, false
	}
	st, _ := s.states.Open(player)
	if st.Has(key) {
		return domain.CollectionEntry{}, false
	}

	previous := st.Len()
	ev := &events.CollectionRegister{
		PlayerID:      player,
		Key:           key,
		PreviousCount: previous,
		PlayerRank:    previous + 1,
		GrantXP:       grantXP,
		Announce:      announce,
	}
	if grantXP {
		ev.XPReward = CollectionXP(previous)
	}
	if !proceed(ctx, s.logger, "collection register", s.bus.CollectionRegister, ev) {
		return domain.CollectionEntry{}, false
	}

	entry := domain.CollectionEntry{Key: key, RegisteredAt: nowUTC(), PlayerRank: ev.PlayerRank}
	if !st.Add(entry) {
		return domain.CollectionEntry{}, false
	}

	display := displayName(key)
	if ev.Announce {
		s.effects.notifyPlayer(player, fmt.Sprintf("Collection registered: %s (#%d)", display, entry.PlayerRank))
	}
	if ev.GrantXP && ev.XPReward > 0 {
		xp, notify := ev.XPReward, ev.Announce
		s.effects.onPlayer(player, func(p live.Player) {
			p.GiveExperience(xp)
			if notify {
				p.SendMessage(fmt.Sprintf("+%d XP", xp))
			}
		})
	}

	s.achievements.HandleCollectionCount(ctx, player, st.Len())

	shouldAnnounce := ev.Announce
	s.pool.SubmitKeyed(player.String(), "insert collection entry", func(ctx context.Context) error {
		rank, err := s.store.InsertCollectionEntry(ctx, player, entry)
		if err != nil || rank == 0 {
			return err
		}
		st.SetGlobalRank(key, rank)
		if shouldAnnounce {
			s.effects.notifyPlayer(player, fmt.Sprintf("Collection rank: #%d", rank))
		}
		return nil
	})
	s.logger.Info().Str("player", player.String()).Str("key", key).Int("player_rank", entry.PlayerRank).Msg("collection entry registered")
	return entry, true
}

func (s *CollectionService) Entries(player uuid.UUID) []domain.CollectionEntry {
	st, ok := s.states.Get(player)
	if !ok {
		return nil
	}
	return st.Entries()
}

func (s *CollectionService) Has(player uuid.UUID, key string) bool {
	st, ok := s.states.Get(player)
	return ok && st.Has(strings.ToUpper(strings.TrimSpace(key)))
}

func (s *CollectionService) Count(player uuid.UUID) int {
	st, ok := s.states.Get(player)
	if !ok {
		return 0
	}
	return st.Len()
}

// displayName turns DIAMOND_ORE into "Diamond Ore".
func displayName(key string) string {
	parts := strings.Split(strings.ToLower(key), "_")
	out := parts[:0]
	for _, p := range parts {
		if p == "" {
			continue
		}
		out = append(out, strings.ToUpper(p[:1])+p[1:])
	}
	return strings.Join(out, " ")
}
