package service

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/RangGames/CreeperPrefixSystem/internal/domain"
	"github.com/RangGames/CreeperPrefixSystem/internal/registry"
)

func TestTriggerGrantsAtThreshold(t *testing.T) {
	h := newHarness(t, testCatalog())
	ctx := context.Background()
	player := uuid.New()

	h.requirements.HandleTrigger(ctx, domain.RequirementBreak, player, "stone", 100)

	if got := h.requirements.GetProgress(player, "miner"); got != 100 {
		t.Fatalf("progress = %d, want 100", got)
	}
	if !h.titles.IsOwned(player, "miner") {
		t.Fatalf("miner not granted at threshold")
	}

	h.settle()
	standings, err := h.store.TopStandings(ctx, h.weekly.WeekKey(), h.weekly.DefaultMetric(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(standings) != 1 || standings[0].Value != 100 {
		t.Fatalf("default weekly metric not incremented: %+v", standings)
	}
}

func TestTriggerIgnoresOwnedAndUnmatched(t *testing.T) {
	h := newHarness(t, testCatalog())
	ctx := context.Background()
	player := uuid.New()

	tests := []struct {
		name   string
		kind   domain.RequirementKind
		key    string
		amount int64
	}{
		{"wrong kind", domain.RequirementSell, "STONE", 50},
		{"unknown key", domain.RequirementBreak, "DIRT", 50},
		{"non-positive amount", domain.RequirementBreak, "STONE", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h.requirements.HandleTrigger(ctx, tt.kind, player, tt.key, tt.amount)
			if got := h.requirements.GetProgress(player, "miner"); got != 0 {
				t.Fatalf("progress = %d, want 0", got)
			}
		})
	}

	h.titles.GrantTitle(ctx, player, "miner")
	h.requirements.HandleTrigger(ctx, domain.RequirementBreak, player, "STONE", 10)
	if got := h.requirements.GetProgress(player, "miner"); got != 0 {
		t.Fatalf("owned title still tracked: progress = %d", got)
	}
}

func TestProgressIsAdditiveAcrossReload(t *testing.T) {
	h := newHarness(t, testCatalog())
	ctx := context.Background()
	player := uuid.New()

	h.requirements.HandleTrigger(ctx, domain.RequirementBreak, player, "STONE", 40)
	h.settle()
	h.requirements.Unload(player)

	if got := h.requirements.GetProgress(player, "miner"); got != 0 {
		t.Fatalf("evicted progress = %d, want 0", got)
	}
	if err := h.requirements.Load(ctx, player); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := h.requirements.GetProgress(player, "miner"); got != 40 {
		t.Fatalf("reloaded progress = %d, want 40", got)
	}

	h.requirements.HandleTrigger(ctx, domain.RequirementBreak, player, "STONE", 40)
	h.settle()
	stored, err := h.store.LoadProgress(ctx, player)
	if err != nil {
		t.Fatal(err)
	}
	if stored["miner"] != 80 {
		t.Fatalf("stored progress = %d, want 80", stored["miner"])
	}
	if h.titles.IsOwned(player, "miner") {
		t.Fatalf("granted below threshold")
	}

	h.requirements.AddProgress(ctx, player, "miner", 20)
	if !h.titles.IsOwned(player, "miner") {
		t.Fatalf("AddProgress did not grant at threshold")
	}
}

func TestConcurrentTriggersGrantOnce(t *testing.T) {
	h := newHarness(t, testCatalog())
	ctx := context.Background()
	player := uuid.New()
	avatar := h.roster.Join(player, "Trader")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.requirements.HandleTrigger(ctx, domain.RequirementSell, player, "DIAMOND", 5)
		}()
	}
	wg.Wait()
	h.settle()

	if !h.titles.IsOwned(player, "merchant") {
		t.Fatalf("merchant not granted")
	}
	grants := 0
	for _, msg := range avatar.Messages() {
		if strings.Contains(msg, "New title unlocked: Merchant") {
			grants++
		}
	}
	if grants != 1 {
		t.Fatalf("merchant granted %d times", grants)
	}
}

func TestIndexesFollowRegistryReload(t *testing.T) {
	h := newHarness(t, testCatalog())
	ctx := context.Background()
	player := uuid.New()

	h.reg.Replace(registry.NewCatalog(nil, []domain.TitleDefinition{
		{ID: "digger", Display: "Digger", Requirement: domain.TitleRequirement{Kind: domain.RequirementBreak, Key: "DIRT", Amount: 5}},
	}, nil, nil))

	h.requirements.HandleTrigger(ctx, domain.RequirementBreak, player, "STONE", 100)
	if h.titles.IsOwned(player, "miner") {
		t.Fatalf("stale index entry granted miner")
	}
	h.requirements.HandleTrigger(ctx, domain.RequirementBreak, player, "DIRT", 5)
	if !h.titles.IsOwned(player, "digger") {
		t.Fatalf("new index entry did not grant digger")
	}
}

func TestUnmatchedTriggerDoesNotCountWeekly(t *testing.T) {
	h := newHarness(t, testCatalog())
	ctx := context.Background()
	player := uuid.New()

	h.requirements.HandleTrigger(ctx, domain.RequirementBreak, player, "DIRT", 50)
	h.requirements.HandleTrigger(ctx, domain.RequirementSell, player, "COBBLE", 7)
	h.settle()

	standings, err := h.store.TopStandings(ctx, h.weekly.WeekKey(), h.weekly.DefaultMetric(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(standings) != 0 {
		t.Fatalf("unmatched triggers reached the leaderboard: %+v", standings)
	}
}
