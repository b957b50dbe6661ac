package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/RangGames/CreeperPrefixSystem/internal/domain"
	"github.com/RangGames/CreeperPrefixSystem/internal/store/memstore"
)

func TestAuthorityBootstrapsSeason(t *testing.T) {
	h := newHarness(t, testCatalog())
	ctx := context.Background()

	if err := h.seasons.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	snap := h.seasons.Snapshot()
	if snap.ID == 0 || snap.Name != "PreSeason" || snap.State != domain.SeasonPreparing {
		t.Fatalf("bootstrap snapshot = %+v", snap)
	}

	steps := []struct {
		state domain.SeasonState
		want  bool
	}{
		{domain.SeasonRunning, true},
		{domain.SeasonRunning, false},
		{domain.SeasonPreparing, true},
		{domain.SeasonEnded, true},
	}
	for _, step := range steps {
		if got := h.seasons.SetState(ctx, step.state); got != step.want {
			t.Fatalf("SetState(%s) = %v, want %v", step.state, got, step.want)
		}
	}
	h.settle()

	stored, ok, err := h.store.LatestSeason(ctx)
	if err != nil || !ok {
		t.Fatalf("LatestSeason: ok=%v err=%v", ok, err)
	}
	if stored.State != domain.SeasonEnded {
		t.Fatalf("stored state = %s, want ENDED", stored.State)
	}
	if hints := h.publisher.Hints(); len(hints) != 3 || hints[2] != "season:ENDED" {
		t.Fatalf("hints = %v", hints)
	}
}

func TestFollowerRefreshesFromHint(t *testing.T) {
	store := memstore.New()
	authority := newHarnessWith(t, testCatalog(), store, nil)
	follower := newHarnessWith(t, testCatalog(), store, map[string]string{"SEASON_ROLE": "follower"})
	ctx := context.Background()

	if err := follower.seasons.Init(ctx); err != nil {
		t.Fatalf("follower Init: %v", err)
	}
	if snap := follower.seasons.Snapshot(); snap.ID != 0 || snap.State != domain.SeasonPreparing {
		t.Fatalf("follower placeholder = %+v", snap)
	}
	if follower.seasons.SetState(ctx, domain.SeasonRunning) {
		t.Fatalf("follower changed the season")
	}

	if err := authority.seasons.Init(ctx); err != nil {
		t.Fatalf("authority Init: %v", err)
	}
	authority.seasons.SetState(ctx, domain.SeasonRunning)
	authority.settle()

	follower.seasons.HandleHint(ctx, "weekly:MINING:202524")
	if follower.seasons.State() != domain.SeasonPreparing {
		t.Fatalf("non-season hint triggered a refresh")
	}
	follower.seasons.HandleHint(ctx, "season:RUNNING")
	if follower.seasons.State() != domain.SeasonRunning {
		t.Fatalf("follower state = %s, want RUNNING", follower.seasons.State())
	}
}

func TestUnstoredBootstrapIsCreatedOnFirstChange(t *testing.T) {
	h := newHarness(t, testCatalog())
	ctx := context.Background()
	h.store.FailWrites(true)

	if err := h.seasons.Init(ctx); err == nil {
		t.Fatalf("Init should report the failed create")
	}
	h.store.FailWrites(false)

	if !h.seasons.SetState(ctx, domain.SeasonRunning) {
		t.Fatalf("SetState failed")
	}
	h.settle()

	stored, ok, _ := h.store.LatestSeason(ctx)
	if !ok || stored.State != domain.SeasonRunning {
		t.Fatalf("stored season = %+v (ok=%v)", stored, ok)
	}
	if h.seasons.Snapshot().ID != stored.ID {
		t.Fatalf("snapshot id %d not synced with stored id %d", h.seasons.Snapshot().ID, stored.ID)
	}
}

func TestSeasonCoordinatorRole(t *testing.T) {
	tests := []struct {
		role string
		want bool
	}{
		{"authority", true},
		{"FOLLOWER", false},
	}
	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			cfg := testConfig(t, map[string]string{"SEASON_ROLE": tt.role})
			c := NewSeasonCoordinator(cfg, Stores{Seasons: memstore.New()}, nil, NopPublisher{}, zerolog.Nop())
			if c.IsAuthority() != tt.want {
				t.Fatalf("IsAuthority = %v, want %v", c.IsAuthority(), tt.want)
			}
		})
	}
}
