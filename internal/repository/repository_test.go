package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/RangGames/CreeperPrefixSystem/internal/config"
	"github.com/RangGames/CreeperPrefixSystem/internal/database"
	"github.com/RangGames/CreeperPrefixSystem/internal/domain"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	cfg := &config.Config{
		DBDriver: config.DriverSQLite,
		DBDSN:    filepath.Join(t.TempDir(), "titleplus.db"),
	}
	db, err := database.Open(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.Migrate(db, cfg.DBDriver, zerolog.Nop()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestStatRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewStatRepository(openTestDB(t), zerolog.Nop())
	player := uuid.New()
	expire := time.Now().Add(time.Hour).UTC().Truncate(time.Millisecond)

	if err := repo.SaveBaseStat(ctx, player, "strength", 12); err != nil {
		t.Fatal(err)
	}
	if err := repo.SaveBaseStat(ctx, player, "strength", 0); err != nil {
		t.Fatal(err)
	}
	mods := []domain.StatModifier{
		{PlayerID: player, StatID: "strength", SourceID: "title:x", Op: domain.OpAdd, Value: 5},
		{PlayerID: player, StatID: "strength", SourceID: "set:y", Op: domain.OpMult, Value: 0.5, ExpireAt: &expire},
		{PlayerID: player, StatID: "strength", SourceID: "title:x", Op: domain.OpSet, Value: 40},
	}
	for _, m := range mods {
		if err := repo.UpsertModifier(ctx, m); err != nil {
			t.Fatal(err)
		}
	}

	bases, loaded, err := repo.LoadStats(ctx, player)
	if err != nil {
		t.Fatal(err)
	}
	if v, ok := bases["strength"]; !ok || v != 0 {
		t.Fatalf("base = %v (present=%v), want stored 0", v, ok)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected upsert to overwrite, got %d modifiers", len(loaded))
	}
	if loaded[0].SourceID != "set:y" || loaded[0].ExpireAt == nil || !loaded[0].ExpireAt.Equal(expire) {
		t.Errorf("unexpected first modifier %+v", loaded[0])
	}
	if loaded[1].Op != domain.OpSet || loaded[1].Value != 40 {
		t.Errorf("modifier not overwritten: %+v", loaded[1])
	}

	if err := repo.DeleteModifier(ctx, player, "strength", "set:y"); err != nil {
		t.Fatal(err)
	}
	_, loaded, _ = repo.LoadStats(ctx, player)
	if len(loaded) != 1 {
		t.Fatalf("expected one modifier after delete, got %d", len(loaded))
	}
}

func TestTitleRepositoryEquip(t *testing.T) {
	ctx := context.Background()
	repo := NewTitleRepository(openTestDB(t), zerolog.Nop())
	player := uuid.New()

	steps := []func() error{
		func() error { return repo.EquipTitle(ctx, player, "merchant") },
		func() error { return repo.InsertTitle(ctx, player, "miner") },
		func() error { return repo.EquipTitle(ctx, player, "miner") },
		func() error { return repo.InsertTitle(ctx, player, "miner") },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			t.Fatal(err)
		}
	}

	owned, equipped, err := repo.LoadTitles(ctx, player)
	if err != nil {
		t.Fatal(err)
	}
	if len(owned) != 2 || equipped != "miner" {
		t.Fatalf("owned=%v equipped=%q", owned, equipped)
	}

	if err := repo.DeleteTitle(ctx, player, "miner"); err != nil {
		t.Fatal(err)
	}
	owned, equipped, _ = repo.LoadTitles(ctx, player)
	if len(owned) != 1 || equipped != "" {
		t.Fatalf("after delete owned=%v equipped=%q", owned, equipped)
	}
}

func TestProgressIncrementIsAdditive(t *testing.T) {
	ctx := context.Background()
	repo := NewProgressRepository(openTestDB(t), zerolog.Nop())
	player := uuid.New()

	for _, delta := range []int64{30, 50, 20} {
		if err := repo.IncrementProgress(ctx, player, "miner", delta); err != nil {
			t.Fatal(err)
		}
	}
	if err := repo.SetProgress(ctx, player, "merchant", 7); err != nil {
		t.Fatal(err)
	}

	progress, err := repo.LoadProgress(ctx, player)
	if err != nil {
		t.Fatal(err)
	}
	if progress["miner"] != 100 || progress["merchant"] != 7 {
		t.Fatalf("unexpected progress %v", progress)
	}
}

func TestSeasonRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewSeasonRepository(openTestDB(t), zerolog.Nop())

	if _, ok, err := repo.LatestSeason(ctx); err != nil || ok {
		t.Fatalf("expected no season, ok=%v err=%v", ok, err)
	}
	created, err := repo.CreateSeason(ctx, "PreSeason", domain.SeasonPreparing)
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.UpdateSeasonState(ctx, created.ID, domain.SeasonRunning); err != nil {
		t.Fatal(err)
	}

	latest, ok, err := repo.LatestSeason(ctx)
	if err != nil || !ok {
		t.Fatalf("latest: ok=%v err=%v", ok, err)
	}
	if latest.ID != created.ID || latest.State != domain.SeasonRunning || latest.StartAt == nil {
		t.Fatalf("unexpected snapshot %+v", latest)
	}
}

func TestWeeklyRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewWeeklyRepository(openTestDB(t), zerolog.Nop())
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	increments := []struct {
		player uuid.UUID
		delta  int64
	}{
		{a, 10}, {b, 25}, {a, 20}, {c, 5},
	}
	for _, inc := range increments {
		if err := repo.IncrementMetric(ctx, "202642", inc.player, "FARMING_POINTS", inc.delta); err != nil {
			t.Fatal(err)
		}
	}
	if err := repo.IncrementMetric(ctx, "202643", c, "FARMING_POINTS", 1000); err != nil {
		t.Fatal(err)
	}

	top, err := repo.TopStandings(ctx, "202642", "FARMING_POINTS", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(top) != 2 || top[0].PlayerID != a || top[0].Value != 30 || top[1].PlayerID != b {
		t.Fatalf("unexpected standings %+v", top)
	}

	if err := repo.SaveAward(ctx, "202642", 1, a, "champion"); err != nil {
		t.Fatal(err)
	}
	if err := repo.SaveAward(ctx, "202642", 1, b, "champion"); err != nil {
		t.Fatalf("award upsert should overwrite: %v", err)
	}
}

func TestCollectionInsertReturnsGlobalRank(t *testing.T) {
	ctx := context.Background()
	repo := NewCollectionRepository(openTestDB(t), zerolog.Nop())
	p1, p2 := uuid.New(), uuid.New()
	now := time.Now().UTC()

	r1, err := repo.InsertCollectionEntry(ctx, p1, domain.CollectionEntry{Key: "STONE", RegisteredAt: now, PlayerRank: 1})
	if err != nil {
		t.Fatal(err)
	}
	r2, err := repo.InsertCollectionEntry(ctx, p2, domain.CollectionEntry{Key: "STONE", RegisteredAt: now, PlayerRank: 1})
	if err != nil {
		t.Fatal(err)
	}
	dup, err := repo.InsertCollectionEntry(ctx, p1, domain.CollectionEntry{Key: "STONE", RegisteredAt: now, PlayerRank: 2})
	if err != nil {
		t.Fatal(err)
	}
	if r1 == 0 || r2 <= r1 || dup != 0 {
		t.Fatalf("ranks r1=%d r2=%d dup=%d", r1, r2, dup)
	}

	entries, err := repo.LoadCollection(ctx, p1)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].GlobalRank != r1 {
		t.Fatalf("unexpected entries %+v", entries)
	}

	rank, err := repo.InsertAchievement(ctx, p1, domain.AchievementCompletion{AchievementID: "collector_1", CompletedAt: now})
	if err != nil || rank == 0 {
		t.Fatalf("achievement rank=%d err=%v", rank, err)
	}
	again, err := repo.InsertAchievement(ctx, p1, domain.AchievementCompletion{AchievementID: "collector_1", CompletedAt: now})
	if err != nil || again != 0 {
		t.Fatalf("duplicate achievement rank=%d err=%v", again, err)
	}
	completions, _ := repo.LoadAchievements(ctx, p1)
	if len(completions) != 1 || completions[0].GlobalRank != rank {
		t.Fatalf("unexpected completions %+v", completions)
	}
}
