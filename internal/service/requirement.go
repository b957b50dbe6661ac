package service

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/RangGames/CreeperPrefixSystem/internal/domain"
	"github.com/RangGames/CreeperPrefixSystem/internal/registry"
	"github.com/RangGames/CreeperPrefixSystem/internal/session"
	"github.com/RangGames/CreeperPrefixSystem/internal/worker"
)

// requirementIndex maps a trigger kind and target key to the titles it
// advances. Only BREAK and SELL are indexed.
type requirementIndex map[domain.RequirementKind]map[string][]domain.TitleDefinition

type RequirementService struct {
	registry *registry.Registry
	store    ProgressStore
	pool     *worker.Pool
	titles   *TitleService
	weekly   *WeeklyService
	states   *session.Store[*domain.PlayerProgressState]
	index    atomic.Pointer[requirementIndex]
	locks    *playerLocks
	logger   zerolog.Logger
}

func NewRequirementService(
	reg *registry.Registry,
	stores Stores,
	pool *worker.Pool,
	titles *TitleService,
	weekly *WeeklyService,
	logger zerolog.Logger,
) *RequirementService {
	s := &RequirementService{
		registry: reg,
		store:    stores.Progress,
		pool:     pool,
		titles:   titles,
		weekly:   weekly,
		states:   session.New(domain.NewPlayerProgressState),
		locks:    newPlayerLocks(),
		logger:   logger.With().Str("component", "requirements").Logger(),
	}
	s.RebuildIndexes()
	reg.OnReload(func(*registry.Catalog) { s.RebuildIndexes() })
	return s
}

// RebuildIndexes replaces both trigger tables from the current catalog.
func (s *RequirementService) RebuildIndexes() {
	idx := requirementIndex{
		domain.RequirementBreak: make(map[string][]domain.TitleDefinition),
		domain.RequirementSell:  make(map[string][]domain.TitleDefinition),
	}
	for _, def := range s.registry.Catalog().Titles() {
		req := def.Requirement
		if !req.Indexed() {
			continue
		}
		idx[req.Kind][req.Key] = append(idx[req.Kind][req.Key], def)
	}
	s.index.Store(&idx)
	s.logger.Debug().
		Int("break_keys", len(idx[domain.RequirementBreak])).
		Int("sell_keys", len(idx[domain.RequirementSell])).
		Msg("requirement indexes rebuilt")
}

func (s *RequirementService) candidates(kind domain.RequirementKind, key string) []domain.TitleDefinition {
	idx := s.index.Load()
	if idx == nil {
		return nil
	}
	return (*idx)[kind][key]
}

func (s *RequirementService) Load(ctx context.Context, player uuid.UUID) error {
	progress, err := await(ctx, s.pool, player.String(), "load progress", func(ctx context.Context) (map[string]int64, error) {
		return s.store.LoadProgress(ctx, player)
	})
	if err != nil {
		s.logger.Error().Err(err).Str("player", player.String()).Msg("failed to load progress")
		return err
	}
	st := domain.NewPlayerProgressState()
	for titleID, v := range progress {
		st.Set(titleID, v)
	}
	s.states.Put(player, st)
	return nil
}

func (s *RequirementService) Unload(player uuid.UUID) {
	s.states.Close(player)
}

// HandleTrigger advances every unowned title whose requirement matches kind
// and key, granting those that reach their threshold. BREAK and SELL
// triggers also count toward the default weekly metric.
func (s *RequirementService) HandleTrigger(ctx context.Context, kind domain.RequirementKind, player uuid.UUID, key string, amount int64) {
	if amount <= 0 {
		return
	}
	key = strings.ToUpper(strings.TrimSpace(key))

	candidates := s.candidates(kind, key)
	if len(candidates) == 0 {
		return
	}
	if kind == domain.RequirementBreak || kind == domain.RequirementSell {
		s.weekly.IncrementDefault(player, amount)
	}

	var reached []string
	unlock := s.locks.lock(player)
	st, _ := s.states.Open(player)
	for _, def := range candidates {
		if s.titles.IsOwned(player, def.ID) {
			continue
		}
		titleID := def.ID
		value := st.Add(titleID, amount)
		s.pool.SubmitKeyed(player.String(), "increment progress", func(ctx context.Context) error {
			return s.store.IncrementProgress(ctx, player, titleID, amount)
		})
		if def.Requirement.Amount > 0 && value >= def.Requirement.Amount {
			reached = append(reached, titleID)
		}
	}
	unlock()

	for _, titleID := range reached {
		if !s.titles.GrantTitle(ctx, player, titleID) {
			s.logger.Debug().Str("player", player.String()).Str("title", titleID).Msg("threshold reached but title not granted")
		}
	}
}

// AddProgress advances titleID directly, bypassing the trigger index.
func (s *RequirementService) AddProgress(ctx context.Context, player uuid.UUID, titleID string, amount int64) {
	if amount <= 0 {
		return
	}
	unlock := s.locks.lock(player)
	st, _ := s.states.Open(player)
	value := st.Add(titleID, amount)
	s.pool.SubmitKeyed(player.String(), "set progress", func(ctx context.Context) error {
		return s.store.SetProgress(ctx, player, titleID, value)
	})
	unlock()

	def, ok := s.registry.Catalog().Title(titleID)
	if ok && def.Requirement.Amount > 0 && value >= def.Requirement.Amount {
		s.titles.GrantTitle(ctx, player, titleID)
	}
}

// GetProgress returns the cached counter, or 0 when nothing is cached.
func (s *RequirementService) GetProgress(player uuid.UUID, titleID string) int64 {
	st, ok := s.states.Get(player)
	if !ok {
		return 0
	}
	return st.Get(titleID)
}
