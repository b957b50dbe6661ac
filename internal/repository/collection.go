package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/RangGames/CreeperPrefixSystem/internal/domain"
)

type CollectionRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewCollectionRepository(sqlDB *sql.DB, logger zerolog.Logger) *CollectionRepository {
	return &CollectionRepository{db: sqlDB, logger: logger}
}

func (r *CollectionRepository) LoadCollection(ctx context.Context, player uuid.UUID) ([]domain.CollectionEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT entry_id, entry_key, registered_at, player_rank FROM collection_entries
		WHERE player_id = $1 ORDER BY player_rank ASC`, player)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection entries: %w", err)
	}
	defer rows.Close()

	var out []domain.CollectionEntry
	for rows.Next() {
		var e domain.CollectionEntry
		if err := rows.Scan(&e.GlobalRank, &e.Key, &e.RegisteredAt, &e.PlayerRank); err != nil {
			return nil, fmt.Errorf("failed to scan collection entry: %w", err)
		}
		e.RegisteredAt = e.RegisteredAt.UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read collection entries: %w", err)
	}
	return out, nil
}

func (r *CollectionRepository) InsertCollectionEntry(ctx context.Context, player uuid.UUID, e domain.CollectionEntry) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO collection_entries (player_id, entry_key, registered_at, player_rank) VALUES ($1, $2, $3, $4)
		ON CONFLICT (player_id, entry_key) DO NOTHING
		RETURNING entry_id`,
		player, e.Key, e.RegisteredAt.UTC(), e.PlayerRank).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to insert collection entry %s: %w", e.Key, err)
	}
	return id, nil
}

func (r *CollectionRepository) LoadAchievements(ctx context.Context, player uuid.UUID) ([]domain.AchievementCompletion, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT completion_id, achievement_id, completed_at FROM achievement_completions
		WHERE player_id = $1 ORDER BY completed_at ASC`, player)
	if err != nil {
		return nil, fmt.Errorf("failed to query achievement completions: %w", err)
	}
	defer rows.Close()

	var out []domain.AchievementCompletion
	for rows.Next() {
		var c domain.AchievementCompletion
		if err := rows.Scan(&c.GlobalRank, &c.AchievementID, &c.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan achievement completion: %w", err)
		}
		c.CompletedAt = c.CompletedAt.UTC()
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read achievement completions: %w", err)
	}
	return out, nil
}

func (r *CollectionRepository) InsertAchievement(ctx context.Context, player uuid.UUID, c domain.AchievementCompletion) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO achievement_completions (player_id, achievement_id, completed_at) VALUES ($1, $2, $3)
		ON CONFLICT (player_id, achievement_id) DO NOTHING
		RETURNING completion_id`,
		player, c.AchievementID, c.CompletedAt.UTC()).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to insert achievement %s: %w", c.AchievementID, err)
	}
	return id, nil
}
