package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/RangGames/CreeperPrefixSystem/internal/domain"
)

// The store interfaces below are satisfied by the SQL repositories and by
// memstore. Every write is idempotent or an increment-on-conflict.

type StatStore interface {
	LoadStats(ctx context.Context, player uuid.UUID) (map[string]float64, []domain.StatModifier, error)
	SaveBaseStat(ctx context.Context, player uuid.UUID, statID string, value float64) error
	UpsertModifier(ctx context.Context, m domain.StatModifier) error
	DeleteModifier(ctx context.Context, player uuid.UUID, statID, sourceID string) error
}

type TitleStore interface {
	// LoadTitles returns the owned titles and the equipped one ("" if none).
	LoadTitles(ctx context.Context, player uuid.UUID) ([]string, string, error)
	// InsertTitle records ownership and leaves an existing row untouched.
	InsertTitle(ctx context.Context, player uuid.UUID, titleID string) error
	// EquipTitle marks titleID as the only equipped title, inserting it
	// when missing.
	EquipTitle(ctx context.Context, player uuid.UUID, titleID string) error
	ClearEquipped(ctx context.Context, player uuid.UUID) error
	DeleteTitle(ctx context.Context, player uuid.UUID, titleID string) error
}

type ProgressStore interface {
	LoadProgress(ctx context.Context, player uuid.UUID) (map[string]int64, error)
	SetProgress(ctx context.Context, player uuid.UUID, titleID string, value int64) error
	IncrementProgress(ctx context.Context, player uuid.UUID, titleID string, delta int64) error
}

type SeasonStore interface {
	// LatestSeason reports false when no season was ever created.
	LatestSeason(ctx context.Context) (domain.SeasonSnapshot, bool, error)
	CreateSeason(ctx context.Context, name string, state domain.SeasonState) (domain.SeasonSnapshot, error)
	UpdateSeasonState(ctx context.Context, id int64, state domain.SeasonState) error
}

type WeeklyStore interface {
	IncrementMetric(ctx context.Context, weekKey string, player uuid.UUID, metric string, delta int64) error
	TopStandings(ctx context.Context, weekKey, metric string, limit int) ([]domain.WeeklyStanding, error)
	SaveAward(ctx context.Context, weekKey string, rank int, player uuid.UUID, titleID string) error
}

type CollectionStore interface {
	LoadCollection(ctx context.Context, player uuid.UUID) ([]domain.CollectionEntry, error)
	// InsertCollectionEntry returns the entry's global rank, or 0 when the
	// player already registered the key.
	InsertCollectionEntry(ctx context.Context, player uuid.UUID, e domain.CollectionEntry) (int64, error)
	LoadAchievements(ctx context.Context, player uuid.UUID) ([]domain.AchievementCompletion, error)
	InsertAchievement(ctx context.Context, player uuid.UUID, c domain.AchievementCompletion) (int64, error)
}

// Stores groups every store a node needs.
type Stores struct {
	Stats      StatStore
	Titles     TitleStore
	Progress   ProgressStore
	Seasons    SeasonStore
	Weekly     WeeklyStore
	Collection CollectionStore
}
