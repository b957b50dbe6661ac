// Package titleplus is the entry point used by commands, the admin
// server and the game integration. It owns the sub-services and the
// per-player session lifecycle.
package titleplus

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/RangGames/CreeperPrefixSystem/internal/authority"
	"github.com/RangGames/CreeperPrefixSystem/internal/config"
	"github.com/RangGames/CreeperPrefixSystem/internal/domain"
	"github.com/RangGames/CreeperPrefixSystem/internal/events"
	"github.com/RangGames/CreeperPrefixSystem/internal/live"
	"github.com/RangGames/CreeperPrefixSystem/internal/registry"
	"github.com/RangGames/CreeperPrefixSystem/internal/service"
	"github.com/RangGames/CreeperPrefixSystem/internal/worker"
)

type Deps struct {
	Config    *config.Config
	Registry  *registry.Registry
	Stores    service.Stores
	Pool      *worker.Pool
	Executor  *authority.Executor
	Roster    *live.Roster
	Publisher service.Publisher
	Commands  service.CommandDispatcher
	Logger    zerolog.Logger
}

type Engine struct {
	registry     *registry.Registry
	roster       *live.Roster
	bus          *events.Bus
	stats        *service.StatService
	titles       *service.TitleService
	requirements *service.RequirementService
	weekly       *service.WeeklyService
	seasons      *service.SeasonCoordinator
	collection   *service.CollectionService
	achievements *service.AchievementService
	logger       zerolog.Logger
}

func New(d Deps) *Engine {
	if d.Publisher == nil {
		d.Publisher = service.NopPublisher{}
	}
	bus := events.NewBus(d.Executor)
	stats := service.NewStatService(d.Registry, d.Stores, d.Pool, d.Executor, d.Roster, d.Publisher, d.Logger)
	effects := service.NewEffectApplier(stats, d.Executor, d.Pool, d.Roster, d.Commands, d.Logger)
	titles := service.NewTitleService(d.Registry, d.Stores, d.Pool, bus, effects, d.Logger)
	weekly := service.NewWeeklyService(d.Config, d.Stores, d.Pool, bus, d.Publisher, titles, d.Logger)
	achievements := service.NewAchievementService(d.Registry, d.Stores, d.Pool, bus, effects, d.Logger)

	return &Engine{
		registry:     d.Registry,
		roster:       d.Roster,
		bus:          bus,
		stats:        stats,
		titles:       titles,
		requirements: service.NewRequirementService(d.Registry, d.Stores, d.Pool, titles, weekly, d.Logger),
		weekly:       weekly,
		seasons:      service.NewSeasonCoordinator(d.Config, d.Stores, d.Pool, d.Publisher, d.Logger),
		collection:   service.NewCollectionService(d.Stores, d.Pool, bus, effects, achievements, d.Logger),
		achievements: achievements,
		logger:       d.Logger.With().Str("component", "engine").Logger(),
	}
}

// Start bootstraps or reads the current season.
func (e *Engine) Start(ctx context.Context) error {
	return e.seasons.Init(ctx)
}

// Hooks exposes the cancellable events for integrations to subscribe to.
func (e *Engine) Hooks() *events.Bus { return e.bus }

// Stats is the receiver for replicated stat mutations.
func (e *Engine) Stats() *service.StatService { return e.stats }

// HandleHint routes a pub/sub hint to the season and weekly services.
func (e *Engine) HandleHint(ctx context.Context, hint string) {
	e.seasons.HandleHint(ctx, hint)
	e.weekly.HandleHint(ctx, hint)
}

// Join registers a connected player and loads their state.
func (e *Engine) Join(ctx context.Context, player uuid.UUID, name string) (*live.Avatar, error) {
	avatar := e.roster.Join(player, name)
	if err := e.OpenPlayer(ctx, player); err != nil {
		return avatar, err
	}
	return avatar, nil
}

func (e *Engine) Leave(player uuid.UUID) {
	e.InvalidatePlayer(player)
	e.roster.Leave(player)
}

func (e *Engine) Online() []uuid.UUID {
	return e.roster.Online()
}

// OpenPlayer loads everything stored for player. Stats load first because
// title effects are re-applied on top of them.
func (e *Engine) OpenPlayer(ctx context.Context, player uuid.UUID) error {
	start := time.Now()
	if err := e.stats.Load(ctx, player); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return e.titles.Load(gctx, player) })
	g.Go(func() error { return e.requirements.Load(gctx, player) })
	g.Go(func() error { return e.collection.Load(gctx, player) })
	g.Go(func() error { return e.achievements.Load(gctx, player) })
	if err := g.Wait(); err != nil {
		e.logger.Error().Err(err).Str("player", player.String()).Msg("failed to open player")
		return err
	}

	e.logger.Info().Str("player", player.String()).Dur("took", time.Since(start)).Msg("player opened")
	return nil
}

// InvalidatePlayer drops every cached entry for player.
func (e *Engine) InvalidatePlayer(player uuid.UUID) {
	e.stats.Unload(player)
	e.titles.Unload(player)
	e.requirements.Unload(player)
	e.collection.Unload(player)
	e.achievements.Unload(player)
	e.logger.Debug().Str("player", player.String()).Msg("player invalidated")
}

// Reload re-reads the definition files. Problems were already logged.
func (e *Engine) Reload() []error {
	return e.registry.Reload()
}

// stats

func (e *Engine) GetStat(player uuid.UUID, statID string) float64 {
	return e.stats.GetStat(player, statID)
}

func (e *Engine) SetBaseStat(ctx context.Context, player uuid.UUID, statID string, value float64) {
	e.stats.SetBaseStat(ctx, player, statID, value)
}

func (e *Engine) AddModifier(ctx context.Context, player uuid.UUID, statID, sourceID string, op domain.Operation, value float64, expireAt *time.Time) {
	e.stats.AddModifier(ctx, player, statID, sourceID, op, value, expireAt)
}

func (e *Engine) RemoveModifier(ctx context.Context, player uuid.UUID, statID, sourceID string) bool {
	return e.stats.RemoveModifier(ctx, player, statID, sourceID)
}

func (e *Engine) Modifiers(player uuid.UUID, statID string) []domain.StatModifier {
	return e.stats.Modifiers(player, statID)
}

// titles

func (e *Engine) GrantTitle(ctx context.Context, player uuid.UUID, titleID string) bool {
	return e.titles.GrantTitle(ctx, player, titleID)
}

func (e *Engine) EquipTitle(ctx context.Context, player uuid.UUID, titleID string) bool {
	return e.titles.EquipTitle(ctx, player, titleID)
}

func (e *Engine) UnequipTitle(ctx context.Context, player uuid.UUID) bool {
	return e.titles.Unequip(ctx, player)
}

func (e *Engine) RevokeTitle(ctx context.Context, player uuid.UUID, titleID string) bool {
	return e.titles.RevokeTitle(ctx, player, titleID)
}

func (e *Engine) OwnedTitles(player uuid.UUID) []string {
	return e.titles.OwnedTitles(player)
}

func (e *Engine) EquippedTitle(player uuid.UUID) (string, bool) {
	return e.titles.EquippedTitle(player)
}

func (e *Engine) ActiveSets(player uuid.UUID) []string {
	return e.titles.ActiveSets(player)
}

// definitions

func (e *Engine) StatDefinition(id string) (domain.StatDefinition, bool) {
	return e.registry.Catalog().Stat(id)
}

func (e *Engine) TitleDefinition(id string) (domain.TitleDefinition, bool) {
	return e.registry.Catalog().Title(id)
}

func (e *Engine) SetDefinition(id string) (domain.SetDefinition, bool) {
	return e.registry.Catalog().Set(id)
}

func (e *Engine) TitleDefinitions() []domain.TitleDefinition {
	return e.registry.Catalog().Titles()
}

// season

func (e *Engine) Season() domain.SeasonSnapshot {
	return e.seasons.Snapshot()
}

func (e *Engine) SeasonState() domain.SeasonState {
	return e.seasons.State()
}

func (e *Engine) SetSeasonState(ctx context.Context, state domain.SeasonState) bool {
	return e.seasons.SetState(ctx, state)
}

func (e *Engine) IsSeasonAuthority() bool {
	return e.seasons.IsAuthority()
}

func (e *Engine) RefreshSeason(ctx context.Context) error {
	return e.seasons.Refresh(ctx)
}

// weekly

func (e *Engine) WeekKey() string {
	return e.weekly.WeekKey()
}

func (e *Engine) DefaultMetric() string {
	return e.weekly.DefaultMetric()
}

func (e *Engine) RefreshWeekKey() bool {
	return e.weekly.RefreshWeekKey()
}

func (e *Engine) IncrementWeekly(player uuid.UUID, metric string, delta int64) {
	e.weekly.IncrementMetric(player, metric, delta)
}

func (e *Engine) EvaluateWeekly(ctx context.Context, metric string) ([]domain.WeeklyStanding, error) {
	return e.weekly.Evaluate(ctx, metric)
}

func (e *Engine) RecordWeeklyAwards(ctx context.Context, metric string, titleIDs []string) int {
	return e.weekly.RecordAwards(ctx, metric, titleIDs)
}

func (e *Engine) IsTop3(player uuid.UUID) bool {
	return e.weekly.IsTop3(player)
}

func (e *Engine) IsTop3For(metric string, player uuid.UUID) bool {
	return e.weekly.IsTop3For(metric, player)
}

// progress and triggers

func (e *Engine) AddProgress(ctx context.Context, player uuid.UUID, titleID string, amount int64) {
	e.requirements.AddProgress(ctx, player, titleID, amount)
}

func (e *Engine) GetProgress(player uuid.UUID, titleID string) int64 {
	return e.requirements.GetProgress(player, titleID)
}

func (e *Engine) HandleSale(ctx context.Context, player uuid.UUID, item string, amount int64) {
	e.requirements.HandleTrigger(ctx, domain.RequirementSell, player, item, amount)
}

func (e *Engine) HandleBreak(ctx context.Context, player uuid.UUID, block string, amount int64) {
	e.requirements.HandleTrigger(ctx, domain.RequirementBreak, player, block, amount)
}

// collection and achievements

func (e *Engine) RegisterCollection(ctx context.Context, player uuid.UUID, key string, grantXP, announce bool) (domain.CollectionEntry, bool) {
	return e.collection.Register(ctx, player, key, grantXP, announce)
}

func (e *Engine) CollectionEntries(player uuid.UUID) []domain.CollectionEntry {
	return e.collection.Entries(player)
}

func (e *Engine) HasCollected(player uuid.UUID, key string) bool {
	return e.collection.Has(player, key)
}

func (e *Engine) Achievements(player uuid.UUID) []domain.AchievementCompletion {
	return e.achievements.Completions(player)
}

func (e *Engine) HasAchievement(player uuid.UUID, achievementID string) bool {
	return e.achievements.HasCompletion(player, achievementID)
}
