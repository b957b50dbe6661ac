package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/RangGames/CreeperPrefixSystem/internal/constants"
	"github.com/RangGames/CreeperPrefixSystem/internal/domain"
	"github.com/RangGames/CreeperPrefixSystem/internal/events"
	"github.com/RangGames/CreeperPrefixSystem/internal/registry"
	"github.com/RangGames/CreeperPrefixSystem/internal/session"
	"github.com/RangGames/CreeperPrefixSystem/internal/worker"
)

type TitleService struct {
	registry *registry.Registry
	store    TitleStore
	pool     *worker.Pool
	bus      *events.Bus
	effects  *EffectApplier
	states   *session.Store[*domain.PlayerTitleState]
	active   *session.Store[*domain.ActiveSets]
	logger   zerolog.Logger

	recomputeMu sync.Mutex
	running     map[uuid.UUID]bool
	dirty       map[uuid.UUID]bool
}

func NewTitleService(
	reg *registry.Registry,
	stores Stores,
	pool *worker.Pool,
	bus *events.Bus,
	effects *EffectApplier,
	logger zerolog.Logger,
) *TitleService {
	return &TitleService{
		registry: reg,
		store:    stores.Titles,
		pool:     pool,
		bus:      bus,
		effects:  effects,
		states:   session.New(domain.NewPlayerTitleState),
		active:   session.New(domain.NewActiveSets),
		logger:   logger.With().Str("component", "titles").Logger(),
		running:  make(map[uuid.UUID]bool),
		dirty:    make(map[uuid.UUID]bool),
	}
}

func (s *TitleService) state(player uuid.UUID) *domain.PlayerTitleState {
	st, _ := s.states.Open(player)
	return st
}

type storedTitles struct {
	owned    []string
	equipped string
}

func (s *TitleService) fetch(ctx context.Context, player uuid.UUID) (storedTitles, error) {
	res, err := await(ctx, s.pool, player.String(), "load titles", func(ctx context.Context) (storedTitles, error) {
		owned, equipped, err := s.store.LoadTitles(ctx, player)
		return storedTitles{owned, equipped}, err
	})
	if err != nil {
		s.logger.Error().Err(err).Str("player", player.String()).Msg("failed to load titles")
	}
	return res, err
}

func (s *TitleService) build(res storedTitles) *domain.PlayerTitleState {
	cat := s.registry.Catalog()
	st := domain.NewPlayerTitleState()
	for _, id := range res.owned {
		st.AddOwned(id)
		if def, ok := cat.Title(id); ok {
			s.tag(st, def)
		}
	}
	if res.equipped != "" && st.IsOwned(res.equipped) {
		st.SetEquipped(res.equipped)
	}
	st.SetLastSynced(nowUTC())
	return st
}

// Load rehydrates owned and equipped titles. The equipped title's effects
// are re-applied and active sets recomputed without writing back.
func (s *TitleService) Load(ctx context.Context, player uuid.UUID) error {
	res, err := s.fetch(ctx, player)
	if err != nil {
		return err
	}

	st := s.build(res)
	s.states.Put(player, st)
	s.active.Put(player, domain.NewActiveSets())

	if equipped, ok := st.Equipped(); ok {
		if def, ok := s.registry.Catalog().Title(equipped); ok {
			s.effects.Apply(ctx, player, TitleSource(def.ID), def.Effects)
		}
	}
	s.recomputeSets(ctx, player)

	s.logger.Debug().Str("player", player.String()).Int("owned", len(res.owned)).Str("equipped", res.equipped).Msg("titles loaded")
	return nil
}

// loaded returns the player's cached titles, reading them from the store
// when the player has no cached state. Hydration does not re-apply effects.
func (s *TitleService) loaded(ctx context.Context, player uuid.UUID) (*domain.PlayerTitleState, bool) {
	if st, ok := s.states.Get(player); ok {
		return st, true
	}
	res, err := s.fetch(ctx, player)
	if err != nil {
		return nil, false
	}
	st, _ := s.states.PutIfAbsent(player, s.build(res))
	return st, true
}

func (s *TitleService) Unload(player uuid.UUID) {
	s.states.Close(player)
	s.active.Close(player)
}

func (s *TitleService) tag(st *domain.PlayerTitleState, def domain.TitleDefinition) {
	if def.Seasonal {
		st.MarkSeasonal(def.ID)
	}
	if def.WeeklyExclusive {
		st.MarkWeekly(def.ID)
	}
}

// GrantTitle adds titleID to the player's titles. It returns false when
// the title is unknown, already owned or the grant was cancelled.
func (s *TitleService) GrantTitle(ctx context.Context, player uuid.UUID, titleID string) bool {
	def, ok := s.registry.Catalog().Title(titleID)
	if !ok {
		return false
	}
	st, ok := s.loaded(ctx, player)
	if !ok || st.IsOwned(titleID) {
		return false
	}

	if !proceed(ctx, s.logger, "grant", s.bus.TitleGrant, &events.TitleGrant{PlayerID: player, Title: def}) {
		return false
	}
	if !st.AddOwned(titleID) {
		return false
	}
	s.tag(st, def)

	s.pool.SubmitKeyed(player.String(), "insert title", func(ctx context.Context) error {
		return s.store.InsertTitle(ctx, player, titleID)
	})
	s.effects.notifyPlayer(player, fmt.Sprintf("New title unlocked: %s", def.Display))
	s.logger.Info().Str("player", player.String()).Str("title", titleID).Msg("title granted")

	s.recomputeSets(ctx, player)
	return true
}

// EquipTitle equips an owned title, replacing the effects of the
// previously equipped one.
func (s *TitleService) EquipTitle(ctx context.Context, player uuid.UUID, titleID string) bool {
	def, ok := s.registry.Catalog().Title(titleID)
	if !ok {
		return false
	}
	st, ok := s.loaded(ctx, player)
	if !ok || !st.IsOwned(titleID) {
		return false
	}
	previous, _ := st.Equipped()
	if previous == titleID {
		return true
	}

	if !proceed(ctx, s.logger, "equip", s.bus.TitleEquip, &events.TitleEquip{PlayerID: player, Title: def, Previous: previous}) {
		return false
	}

	if previous != "" {
		s.clearTitleEffects(ctx, player, previous)
	}
	st.SetEquipped(titleID)
	s.effects.Apply(ctx, player, TitleSource(titleID), def.Effects)

	s.pool.SubmitKeyed(player.String(), "equip title", func(ctx context.Context) error {
		return s.store.EquipTitle(ctx, player, titleID)
	})
	s.effects.notifyPlayer(player, fmt.Sprintf("Title equipped: %s", def.Display))
	s.logger.Info().Str("player", player.String()).Str("title", titleID).Str("previous", previous).Msg("title equipped")
	return true
}

func (s *TitleService) Unequip(ctx context.Context, player uuid.UUID) bool {
	st, ok := s.loaded(ctx, player)
	if !ok {
		return false
	}
	current, ok := st.Equipped()
	if !ok {
		return false
	}
	def := s.definition(current)

	if !proceed(ctx, s.logger, "unequip", s.bus.TitleUnequip, &events.TitleUnequip{PlayerID: player, Title: def}) {
		return false
	}

	s.clearTitleEffects(ctx, player, current)
	st.SetEquipped("")
	s.pool.SubmitKeyed(player.String(), "clear equipped", func(ctx context.Context) error {
		return s.store.ClearEquipped(ctx, player)
	})
	s.effects.notifyPlayer(player, "Title unequipped.")
	s.logger.Info().Str("player", player.String()).Str("title", current).Msg("title unequipped")
	return true
}

// RevokeTitle removes an owned title, unequipping it first.
func (s *TitleService) RevokeTitle(ctx context.Context, player uuid.UUID, titleID string) bool {
	st, ok := s.loaded(ctx, player)
	if !ok || !st.IsOwned(titleID) {
		return false
	}
	def := s.definition(titleID)

	if !proceed(ctx, s.logger, "revoke", s.bus.TitleRevoke, &events.TitleRevoke{PlayerID: player, Title: def}) {
		return false
	}

	if current, ok := st.Equipped(); ok && current == titleID {
		s.clearTitleEffects(ctx, player, titleID)
		st.SetEquipped("")
	}
	if !st.RemoveOwned(titleID) {
		return false
	}

	s.pool.SubmitKeyed(player.String(), "delete title", func(ctx context.Context) error {
		return s.store.DeleteTitle(ctx, player, titleID)
	})
	s.effects.notifyPlayer(player, fmt.Sprintf("Title revoked: %s", def.Display))
	s.logger.Info().Str("player", player.String()).Str("title", titleID).Msg("title revoked")

	s.recomputeSets(ctx, player)
	return true
}

func (s *TitleService) OwnedTitles(player uuid.UUID) []string {
	st, ok := s.states.Get(player)
	if !ok {
		return nil
	}
	return st.Owned()
}

func (s *TitleService) IsOwned(player uuid.UUID, titleID string) bool {
	st, ok := s.states.Get(player)
	return ok && st.IsOwned(titleID)
}

func (s *TitleService) EquippedTitle(player uuid.UUID) (string, bool) {
	st, ok := s.states.Get(player)
	if !ok {
		return "", false
	}
	return st.Equipped()
}

func (s *TitleService) SeasonalTitles(player uuid.UUID) []string {
	st, ok := s.states.Get(player)
	if !ok {
		return nil
	}
	return st.Seasonal()
}

func (s *TitleService) ActiveSets(player uuid.UUID) []string {
	a, ok := s.active.Get(player)
	if !ok {
		return nil
	}
	return a.IDs()
}

func (s *TitleService) definition(titleID string) domain.TitleDefinition {
	if def, ok := s.registry.Catalog().Title(titleID); ok {
		return def
	}
	return domain.TitleDefinition{ID: titleID, Display: titleID}
}

func (s *TitleService) clearTitleEffects(ctx context.Context, player uuid.UUID, titleID string) {
	s.effects.Clear(ctx, player, TitleSource(titleID), s.definition(titleID).Effects)
}

// recomputeSets brings the player's active sets in line with the owned
// titles. Concurrent requests for the same player are coalesced into a
// rerun by the goroutine already recomputing.
func (s *TitleService) recomputeSets(ctx context.Context, player uuid.UUID) {
	s.recomputeMu.Lock()
	if s.running[player] {
		s.dirty[player] = true
		s.recomputeMu.Unlock()
		return
	}
	s.running[player] = true
	s.recomputeMu.Unlock()

	for {
		s.recomputeOnce(ctx, player)

		s.recomputeMu.Lock()
		if !s.dirty[player] {
			delete(s.running, player)
			s.recomputeMu.Unlock()
			return
		}
		delete(s.dirty, player)
		s.recomputeMu.Unlock()
	}
}

func (s *TitleService) recomputeOnce(ctx context.Context, player uuid.UUID) {
	st := s.state(player)
	active, _ := s.active.Open(player)

	eligible := make(map[string]domain.SetDefinition)
	for _, set := range s.registry.Catalog().Sets() {
		if st.OwnsAll(set.Members) {
			eligible[set.ID] = set
		}
	}

	var removed []string
	for _, id := range active.IDs() {
		if _, ok := eligible[id]; !ok {
			removed = append(removed, id)
		}
	}
	var added []string
	for id := range eligible {
		if !active.Has(id) {
			added = append(added, id)
		}
	}
	sort.Strings(added)

	for _, id := range removed {
		def, _ := active.Get(id)
		s.effects.Clear(ctx, player, SetSource(id), def.Effects)
		hookCtx, cancel := context.WithTimeout(ctx, constants.HookTimeout)
		if err := s.bus.SetDeactivate.Dispatch(hookCtx, &events.SetDeactivate{PlayerID: player, Set: def}); err != nil {
			s.logger.Warn().Err(err).Str("set", id).Msg("set deactivate hook failed")
		}
		cancel()
		active.Remove(id)
		s.logger.Info().Str("player", player.String()).Str("set", id).Msg("set deactivated")
	}

	for _, id := range added {
		def := eligible[id]
		if !proceed(ctx, s.logger, "set activate", s.bus.SetActivate, &events.SetActivate{PlayerID: player, Set: def}) {
			continue
		}
		s.effects.Apply(ctx, player, SetSource(id), def.Effects)
		active.Add(def)
		s.effects.notifyPlayer(player, fmt.Sprintf("Set bonus active: %s", def.Display))
		s.logger.Info().Str("player", player.String()).Str("set", id).Msg("set activated")
	}
}
