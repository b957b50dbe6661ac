package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/RangGames/CreeperPrefixSystem/internal/domain"
)

func TestGetStatDefaultsAndClamp(t *testing.T) {
	h := newHarness(t, testCatalog())
	ctx := context.Background()

	tests := []struct {
		name string
		stat string
		base *float64
		want float64
	}{
		{name: "unknown stat", stat: "mana", want: 0},
		{name: "default when unset", stat: "strength", want: 10},
		{name: "clamped to max", stat: "strength", base: ptr(500), want: 100},
		{name: "clamped to min", stat: "strength", base: ptr(-3), want: 0},
		{name: "stored zero is real", stat: "health", base: ptr(0), want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			player := uuid.New()
			if tt.base != nil {
				h.stats.SetBaseStat(ctx, player, tt.stat, *tt.base)
			}
			if got := h.stats.GetStat(player, tt.stat); got != tt.want {
				t.Fatalf("GetStat(%s) = %v, want %v", tt.stat, got, tt.want)
			}
		})
	}
}

func ptr(v float64) *float64 { return &v }

func TestModifierComposition(t *testing.T) {
	h := newHarness(t, testCatalog())
	ctx := context.Background()
	player := uuid.New()

	h.stats.AddModifier(ctx, player, "strength", "title:x", domain.OpAdd, 5, nil)
	if got := h.stats.GetStat(player, "strength"); got != 15 {
		t.Fatalf("after ADD: got %v, want 15", got)
	}

	h.stats.AddModifier(ctx, player, "strength", "set:y", domain.OpMult, 0.5, nil)
	if got := h.stats.GetStat(player, "strength"); got != 22.5 {
		t.Fatalf("after MULT: got %v, want 22.5", got)
	}

	h.settle()
	if !h.store.HasModifier(player, "strength", "title:x") || !h.store.HasModifier(player, "strength", "set:y") {
		t.Fatalf("modifiers were not persisted")
	}
	if adds, _, _ := h.publisher.counts(); adds != 2 {
		t.Fatalf("expected 2 published adds, got %d", adds)
	}
}

func TestAddThenRemoveRestoresValue(t *testing.T) {
	h := newHarness(t, testCatalog())
	ctx := context.Background()
	player := uuid.New()
	h.stats.SetBaseStat(ctx, player, "strength", 40)
	before := h.stats.GetStat(player, "strength")

	ops := []struct {
		op    domain.Operation
		value float64
	}{
		{domain.OpAdd, 7},
		{domain.OpMult, 0.25},
		{domain.OpSet, 99},
	}
	for _, o := range ops {
		t.Run(string(o.op), func(t *testing.T) {
			h.stats.AddModifier(ctx, player, "strength", "src", o.op, o.value, nil)
			if !h.stats.RemoveModifier(ctx, player, "strength", "src") {
				t.Fatalf("RemoveModifier returned false")
			}
			if got := h.stats.GetStat(player, "strength"); got != before {
				t.Fatalf("got %v, want %v", got, before)
			}
			if h.stats.RemoveModifier(ctx, player, "strength", "src") {
				t.Fatalf("second remove should report false")
			}
		})
	}

	h.settle()
	if h.store.HasModifier(player, "strength", "src") {
		t.Fatalf("removed modifier still stored")
	}
}

func TestSetOverrideLastSourceWins(t *testing.T) {
	h := newHarness(t, testCatalog())
	ctx := context.Background()
	player := uuid.New()

	h.stats.AddModifier(ctx, player, "strength", "b", domain.OpSet, 70, nil)
	h.stats.AddModifier(ctx, player, "strength", "a", domain.OpSet, 50, nil)
	h.stats.AddModifier(ctx, player, "strength", "c", domain.OpAdd, 20, nil)

	if got := h.stats.GetStat(player, "strength"); got != 70 {
		t.Fatalf("got %v, want 70", got)
	}
}

func TestExpiredModifierIsEvicted(t *testing.T) {
	h := newHarness(t, testCatalog())
	ctx := context.Background()
	player := uuid.New()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	h.stats.SetClock(func() time.Time { return now })

	expire := now.Add(time.Minute)
	h.stats.AddModifier(ctx, player, "strength", "potion", domain.OpAdd, 30, &expire)
	if got := h.stats.GetStat(player, "strength"); got != 40 {
		t.Fatalf("before expiry: got %v, want 40", got)
	}
	h.settle()

	now = expire
	if got := h.stats.GetStat(player, "strength"); got != 10 {
		t.Fatalf("at expiry: got %v, want 10", got)
	}
	if mods := h.stats.Modifiers(player, "strength"); len(mods) != 0 {
		t.Fatalf("expired modifier still cached: %+v", mods)
	}

	h.settle()
	if h.store.HasModifier(player, "strength", "potion") {
		t.Fatalf("expired modifier still stored")
	}
	if _, removes, _ := h.publisher.counts(); removes != 0 {
		t.Fatalf("eviction must not broadcast, got %d removes", removes)
	}
}

func TestNetworkOriginDoesNotRebroadcast(t *testing.T) {
	h := newHarness(t, testCatalog())
	player := uuid.New()
	avatar := h.roster.Join(player, "remote")

	h.stats.ApplyNetworkModifier(domain.StatModifier{PlayerID: player, StatID: "strength", SourceID: "net", Op: domain.OpAdd, Value: 3})
	h.stats.ApplyNetworkBase(player, "strength", 20)
	if got := h.stats.GetStat(player, "strength"); got != 23 {
		t.Fatalf("got %v, want 23", got)
	}
	if !h.stats.ApplyNetworkModifierRemoval(player, "strength", "net") {
		t.Fatalf("network removal returned false")
	}

	h.settle()
	adds, removes, bases := h.publisher.counts()
	if adds+removes+bases != 0 {
		t.Fatalf("network-origin changes were published: adds=%d removes=%d bases=%d", adds, removes, bases)
	}
	if pings := avatar.StatPings("strength"); pings != 0 {
		t.Fatalf("network-origin changes notified the player %d times", pings)
	}
}

func TestLocalChangeNotifiesPlayer(t *testing.T) {
	h := newHarness(t, testCatalog())
	ctx := context.Background()
	player := uuid.New()
	avatar := h.roster.Join(player, "local")

	h.stats.AddModifier(ctx, player, "strength", "s", domain.OpAdd, 1, nil)
	h.stats.SetBaseStat(ctx, player, "strength", 12)
	h.settle()

	if pings := avatar.StatPings("strength"); pings != 2 {
		t.Fatalf("expected 2 stat pings, got %d", pings)
	}
}

func TestStatsSurviveReload(t *testing.T) {
	h := newHarness(t, testCatalog())
	ctx := context.Background()
	player := uuid.New()

	h.stats.SetBaseStat(ctx, player, "strength", 20)
	h.stats.AddModifier(ctx, player, "strength", "title:miner", domain.OpAdd, 5, nil)
	h.settle()

	h.stats.Unload(player)
	if got := h.stats.GetStat(player, "strength"); got != 10 {
		t.Fatalf("after unload: got %v, want default 10", got)
	}
	h.stats.Unload(player)

	if err := h.stats.Load(ctx, player); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := h.stats.GetStat(player, "strength"); got != 25 {
		t.Fatalf("after reload: got %v, want 25", got)
	}
}

func TestFailedWritesKeepMemoryAuthoritative(t *testing.T) {
	h := newHarness(t, testCatalog())
	ctx := context.Background()
	player := uuid.New()
	h.store.FailWrites(true)

	h.stats.AddModifier(ctx, player, "strength", "s", domain.OpAdd, 8, nil)
	h.settle()

	if got := h.stats.GetStat(player, "strength"); got != 18 {
		t.Fatalf("got %v, want 18", got)
	}
	if h.store.HasModifier(player, "strength", "s") {
		t.Fatalf("write should have failed")
	}
}

func TestReadsDoNotCacheUnknownPlayers(t *testing.T) {
	h := newHarness(t, testCatalog())
	before := h.stats.states.Len()

	for i := 0; i < 1000; i++ {
		if got := h.stats.GetStat(uuid.New(), "strength"); got != 10 {
			t.Fatalf("GetStat = %v, want default 10", got)
		}
	}
	if got := h.stats.states.Len(); got != before {
		t.Fatalf("reads cached %d player states", got-before)
	}
}

func TestNetworkBaseIsNotPersisted(t *testing.T) {
	h := newHarness(t, testCatalog())
	ctx := context.Background()
	player := uuid.New()

	h.stats.ApplyNetworkBase(player, "strength", 42)
	h.settle()

	if got := h.stats.GetStat(player, "strength"); got != 42 {
		t.Fatalf("cached base = %v, want 42", got)
	}
	bases, _, err := h.store.LoadStats(ctx, player)
	if err != nil {
		t.Fatalf("LoadStats: %v", err)
	}
	if v, ok := bases["strength"]; ok {
		t.Fatalf("network base was stored: strength=%v", v)
	}
}
