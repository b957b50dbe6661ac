package netsync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/RangGames/CreeperPrefixSystem/internal/authority"
	"github.com/RangGames/CreeperPrefixSystem/internal/config"
	"github.com/RangGames/CreeperPrefixSystem/internal/domain"
	"github.com/RangGames/CreeperPrefixSystem/internal/live"
	"github.com/RangGames/CreeperPrefixSystem/internal/pubsub"
	"github.com/RangGames/CreeperPrefixSystem/internal/pubsub/memory"
	"github.com/RangGames/CreeperPrefixSystem/internal/registry"
	"github.com/RangGames/CreeperPrefixSystem/internal/service"
	"github.com/RangGames/CreeperPrefixSystem/internal/store/memstore"
	"github.com/RangGames/CreeperPrefixSystem/internal/worker"
)

func nodeConfig(t *testing.T, nodeID string, syncEnabled bool) *config.Config {
	t.Helper()
	env := map[string]string{"DB_DRIVER": "memory", "NODE_ID": nodeID}
	if syncEnabled {
		env["SYNC_ENABLED"] = "true"
	}
	cfg, err := config.Parse(env)
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

type node struct {
	bridge *Bridge
	stats  *service.StatService
	pool   *worker.Pool
}

func newNode(t *testing.T, hub *memory.Hub, nodeID string, store *memstore.Store) *node {
	t.Helper()
	logger := zerolog.Nop()
	cfg := nodeConfig(t, nodeID, true)

	pool := worker.New(2, 64, logger)
	exec := authority.New(64, logger)
	exec.Start()

	reg := registry.New(registry.NewCatalog([]domain.StatDefinition{
		{ID: "strength", Min: 0, Max: 100, Default: 10},
	}, nil, nil, nil), "", logger)

	bridge := New(cfg, hub.Gateway(), pool, logger)
	stores := service.Stores{Stats: store}
	stats := service.NewStatService(reg, stores, pool, exec, live.NewRoster(), bridge, logger)
	bridge.Bind(stats)
	if err := bridge.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		bridge.Close()
		pool.Close()
		exec.Stop()
	})
	return &node{bridge: bridge, stats: stats, pool: pool}
}

// countingApplier wraps a StatApplier and counts what reaches it.
type countingApplier struct {
	StatApplier
	mu      sync.Mutex
	applied int
}

func (c *countingApplier) ApplyNetworkModifier(m domain.StatModifier) {
	c.mu.Lock()
	c.applied++
	c.mu.Unlock()
	c.StatApplier.ApplyNetworkModifier(m)
}

func (c *countingApplier) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.applied
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met in time")
}

func TestTwoNodeReplication(t *testing.T) {
	hub := memory.NewHub()
	store := memstore.New()
	a := newNode(t, hub, "node-a", store)
	b := newNode(t, hub, "node-b", store)

	spyA := &countingApplier{StatApplier: a.stats}
	a.bridge.mu.Lock()
	a.bridge.stats = spyA
	a.bridge.mu.Unlock()

	var wire sync.Mutex
	published := 0
	spy := hub.Gateway()
	spy.Connect(context.Background())
	spy.Subscribe(context.Background(), func(context.Context, pubsub.Message) {
		wire.Lock()
		published++
		wire.Unlock()
	}, "tp.broadcast")
	t.Cleanup(func() { spy.Close() })

	player := uuid.New()
	a.stats.AddModifier(context.Background(), player, "strength", "title:x", domain.OpAdd, 5, nil)

	eventually(t, func() bool { return b.stats.GetStat(player, "strength") == 15 })

	a.pool.Drain()
	b.pool.Drain()
	time.Sleep(50 * time.Millisecond)

	wire.Lock()
	defer wire.Unlock()
	if published != 1 {
		t.Fatalf("expected exactly one message on the wire, got %d", published)
	}
	if spyA.count() != 0 {
		t.Fatalf("node A applied its own echo %d times", spyA.count())
	}
	if got := a.stats.GetStat(player, "strength"); got != 15 {
		t.Fatalf("node A strength = %v, want 15", got)
	}
}

func TestRemovalAndBaseReplicate(t *testing.T) {
	hub := memory.NewHub()
	a := newNode(t, hub, "node-a", memstore.New())
	b := newNode(t, hub, "node-b", memstore.New())
	ctx := context.Background()
	player := uuid.New()

	expire := time.Now().Add(time.Hour).Truncate(time.Millisecond)
	a.stats.AddModifier(ctx, player, "strength", "buff", domain.OpMult, 1, &expire)
	eventually(t, func() bool { return b.stats.GetStat(player, "strength") == 20 })

	mods := b.stats.Modifiers(player, "strength")
	if len(mods) != 1 || mods[0].ExpireAt == nil || !mods[0].ExpireAt.Equal(expire) {
		t.Fatalf("replicated modifier = %+v", mods)
	}

	a.stats.RemoveModifier(ctx, player, "strength", "buff")
	eventually(t, func() bool { return b.stats.GetStat(player, "strength") == 10 })

	a.stats.SetBaseStat(ctx, player, "strength", 33)
	eventually(t, func() bool { return b.stats.GetStat(player, "strength") == 33 })
}

type recordingApplier struct {
	mu        sync.Mutex
	modifiers []domain.StatModifier
	removals  int
	bases     int
}

func (r *recordingApplier) ApplyNetworkModifier(m domain.StatModifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modifiers = append(r.modifiers, m)
}

func (r *recordingApplier) ApplyNetworkModifierRemoval(uuid.UUID, string, string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removals++
	return true
}

func (r *recordingApplier) ApplyNetworkBase(uuid.UUID, string, float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bases++
}

func (r *recordingApplier) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.modifiers) + r.removals + r.bases
}

func TestReceiveDropsBadMessages(t *testing.T) {
	bridge := New(nodeConfig(t, "Node-A", true), memory.NewHub().Gateway(), nil, zerolog.Nop())
	applier := &recordingApplier{}
	bridge.Bind(applier)
	player := uuid.NewString()

	tests := []struct {
		name    string
		payload string
	}{
		{"empty", "   "},
		{"broken json", `{"type":`},
		{"own origin any case", `{"type":"stat-base-set","originNodeId":"node-a","uuid":"` + player + `","stat":"strength","value":1}`},
		{"unknown type", `{"type":"stat-explode","originNodeId":"node-b","uuid":"` + player + `","stat":"strength"}`},
		{"bad player id", `{"type":"stat-base-set","originNodeId":"node-b","uuid":"nope","stat":"strength","value":1}`},
		{"missing value", `{"type":"stat-base-set","originNodeId":"node-b","uuid":"` + player + `","stat":"strength"}`},
		{"missing source", `{"type":"stat-modifier-remove","originNodeId":"node-b","uuid":"` + player + `","stat":"strength"}`},
		{"bad op", `{"type":"stat-modifier-add","originNodeId":"node-b","uuid":"` + player + `","stat":"strength","source":"s","op":"POW","value":2}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bridge.receive(context.Background(), pubsub.Message{Channel: "tp.broadcast", Payload: []byte(tt.payload)})
			if n := applier.total(); n != 0 {
				t.Fatalf("message was applied (%d calls)", n)
			}
		})
	}

	valid := `{"type":"stat-modifier-add","originNodeId":"node-b","uuid":"` + player + `","stat":"strength","source":"s","op":"mult","value":0.5,"expireAt":1700000000000}`
	bridge.receive(context.Background(), pubsub.Message{Channel: "tp.api.request", Payload: []byte(valid)})
	if len(applier.modifiers) != 1 {
		t.Fatalf("valid message after bad ones was not applied")
	}
	m := applier.modifiers[0]
	if m.Op != domain.OpMult || m.Value != 0.5 || m.ExpireAt == nil || m.ExpireAt.UnixMilli() != 1700000000000 {
		t.Fatalf("decoded modifier = %+v", m)
	}
}

func TestHintsReachHandlers(t *testing.T) {
	bridge := New(nodeConfig(t, "node-a", true), memory.NewHub().Gateway(), nil, zerolog.Nop())
	var got []string
	bridge.Bind(&recordingApplier{},
		func(_ context.Context, hint string) { got = append(got, "first:"+hint) },
		func(_ context.Context, hint string) { got = append(got, "second:"+hint) },
	)

	bridge.receive(context.Background(), pubsub.Message{Channel: "tp.broadcast", Payload: []byte("season:RUNNING")})
	if len(got) != 2 || got[0] != "first:season:RUNNING" || got[1] != "second:season:RUNNING" {
		t.Fatalf("hint handlers saw %v", got)
	}
}

type failingGateway struct {
	pubsub.Gateway
	connects int
}

func (f *failingGateway) Connect(context.Context) error {
	f.connects++
	return errors.New("connection refused")
}

func TestStartDegradesToSingleNode(t *testing.T) {
	tests := []struct {
		name     string
		sync     bool
		connects int
	}{
		{"sync disabled", false, 0},
		{"connect fails", true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &failingGateway{}
			bridge := New(nodeConfig(t, "node-a", tt.sync), gw, nil, zerolog.Nop())
			if err := bridge.Start(context.Background()); err != nil {
				t.Fatalf("Start returned %v", err)
			}
			if bridge.Active() || bridge.Enabled() {
				t.Fatalf("bridge active after %s", tt.name)
			}
			if gw.connects != tt.connects {
				t.Fatalf("connect attempts = %d, want %d", gw.connects, tt.connects)
			}
			bridge.PublishHint("season:ENDED")
			if err := bridge.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}
		})
	}
}
