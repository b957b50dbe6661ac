package service

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/RangGames/CreeperPrefixSystem/internal/authority"
	"github.com/RangGames/CreeperPrefixSystem/internal/config"
	"github.com/RangGames/CreeperPrefixSystem/internal/domain"
	"github.com/RangGames/CreeperPrefixSystem/internal/events"
	"github.com/RangGames/CreeperPrefixSystem/internal/live"
	"github.com/RangGames/CreeperPrefixSystem/internal/registry"
	"github.com/RangGames/CreeperPrefixSystem/internal/store/memstore"
	"github.com/RangGames/CreeperPrefixSystem/internal/worker"
)

type recordingDispatcher struct {
	mu       sync.Mutex
	commands []string
}

func (d *recordingDispatcher) Dispatch(_ context.Context, command string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.commands = append(d.commands, command)
	return nil
}

func (d *recordingDispatcher) Commands() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.commands...)
}

type recordingPublisher struct {
	mu      sync.Mutex
	adds    []domain.StatModifier
	removes int
	bases   int
	hints   []string
}

func (p *recordingPublisher) Enabled() bool { return true }

func (p *recordingPublisher) PublishModifierAdd(m domain.StatModifier) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.adds = append(p.adds, m)
}

func (p *recordingPublisher) PublishModifierRemove(uuid.UUID, string, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removes++
}

func (p *recordingPublisher) PublishBaseSet(uuid.UUID, string, float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bases++
}

func (p *recordingPublisher) PublishHint(hint string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hints = append(p.hints, hint)
}

func (p *recordingPublisher) Hints() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.hints...)
}

func (p *recordingPublisher) counts() (adds, removes, bases int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.adds), p.removes, p.bases
}

type harness struct {
	t            *testing.T
	cfg          *config.Config
	reg          *registry.Registry
	store        *memstore.Store
	pool         *worker.Pool
	exec         *authority.Executor
	bus          *events.Bus
	roster       *live.Roster
	commands     *recordingDispatcher
	publisher    *recordingPublisher
	stats        *StatService
	effects      *EffectApplier
	titles       *TitleService
	weekly       *WeeklyService
	requirements *RequirementService
	seasons      *SeasonCoordinator
	achievements *AchievementService
	collection   *CollectionService
}

func testConfig(t *testing.T, env map[string]string) *config.Config {
	t.Helper()
	base := map[string]string{"DB_DRIVER": "memory", "NODE_ID": "test-node"}
	for k, v := range env {
		base[k] = v
	}
	cfg, err := config.Parse(base)
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	return cfg
}

func newHarness(t *testing.T, cat *registry.Catalog) *harness {
	t.Helper()
	return newHarnessWith(t, cat, memstore.New(), nil)
}

func newHarnessWith(t *testing.T, cat *registry.Catalog, store *memstore.Store, env map[string]string) *harness {
	t.Helper()
	logger := zerolog.Nop()

	h := &harness{
		t:         t,
		cfg:       testConfig(t, env),
		reg:       registry.New(cat, "", logger),
		store:     store,
		pool:      worker.New(2, 64, logger),
		exec:      authority.New(64, logger),
		roster:    live.NewRoster(),
		commands:  &recordingDispatcher{},
		publisher: &recordingPublisher{},
	}
	h.exec.Start()
	h.bus = events.NewBus(h.exec)
	t.Cleanup(func() {
		h.pool.Close()
		h.exec.Stop()
	})

	stores := Stores{
		Stats:      store,
		Titles:     store,
		Progress:   store,
		Seasons:    store,
		Weekly:     store,
		Collection: store,
	}
	h.stats = NewStatService(h.reg, stores, h.pool, h.exec, h.roster, h.publisher, logger)
	h.effects = NewEffectApplier(h.stats, h.exec, h.pool, h.roster, h.commands, logger)
	h.titles = NewTitleService(h.reg, stores, h.pool, h.bus, h.effects, logger)
	h.weekly = NewWeeklyService(h.cfg, stores, h.pool, h.bus, h.publisher, h.titles, logger)
	h.requirements = NewRequirementService(h.reg, stores, h.pool, h.titles, h.weekly, logger)
	h.seasons = NewSeasonCoordinator(h.cfg, stores, h.pool, h.publisher, logger)
	h.achievements = NewAchievementService(h.reg, stores, h.pool, h.bus, h.effects, logger)
	h.collection = NewCollectionService(stores, h.pool, h.bus, h.effects, h.achievements, logger)
	return h
}

// settle waits for queued writes and for everything posted to the
// authority goroutine so far.
func (h *harness) settle() {
	h.t.Helper()
	h.pool.Drain()
	if err := h.exec.Call(context.Background(), func(context.Context) error { return nil }); err != nil {
		h.t.Fatalf("authority barrier: %v", err)
	}
	h.pool.Drain()
}

func testCatalog() *registry.Catalog {
	stats := []domain.StatDefinition{
		{ID: "strength", Display: "Strength", Min: 0, Max: 100, Default: 10, Stacking: domain.OpAdd},
		{ID: "health", Display: "Health", Min: -10, Max: 10, Default: 5, Stacking: domain.OpAdd},
	}
	titles := []domain.TitleDefinition{
		{
			ID: "miner", Display: "Miner", Rarity: domain.RarityRare,
			Requirement: domain.TitleRequirement{Kind: domain.RequirementBreak, Key: "STONE", Amount: 100},
			Effects:     []domain.Effect{domain.StatModEffect{StatID: "strength", Op: domain.OpAdd, Value: 5}},
		},
		{
			ID: "merchant", Display: "Merchant",
			Requirement: domain.TitleRequirement{Kind: domain.RequirementSell, Key: "DIAMOND", Amount: 10},
		},
		{
			ID: "swift", Display: "Swift",
			Effects: []domain.Effect{
				domain.PotionEffect{Kind: "SPEED", Level: 2},
				domain.AttributeEffect{Attribute: "max_health", Value: 4},
			},
		},
		{ID: "a", Display: "Alpha"},
		{ID: "b", Display: "Beta"},
		{ID: "champion", Display: "Champion", WeeklyExclusive: true},
		{ID: "pioneer", Display: "Pioneer", Seasonal: true},
	}
	sets := []domain.SetDefinition{
		{
			ID: "pair", Display: "Pair", Members: []string{"a", "b"},
			Effects: []domain.Effect{
				domain.StatModEffect{StatID: "strength", Op: domain.OpAdd, Value: 2},
				domain.CommandEffect{Template: "give {player} cake"},
			},
		},
	}
	achievements := []domain.AchievementDefinition{
		{ID: "first_find", Display: "First Find", Type: domain.AchievementCollectionCount, Target: 1},
		{ID: "hoarder", Display: "Hoarder", Type: domain.AchievementCollectionCount, Target: 3},
	}
	return registry.NewCatalog(stats, titles, sets, achievements)
}

func TestPlayerLocksReleaseEntries(t *testing.T) {
	locks := newPlayerLocks()
	player := uuid.New()

	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.lock(player)
			counter++
			unlock()
		}()
	}
	wg.Wait()

	if counter != 20 {
		t.Fatalf("expected 20 increments, got %d", counter)
	}
	if len(locks.locks) != 0 {
		t.Fatalf("expected lock table to be empty, got %d entries", len(locks.locks))
	}
}
