package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type ProgressRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewProgressRepository(sqlDB *sql.DB, logger zerolog.Logger) *ProgressRepository {
	return &ProgressRepository{db: sqlDB, logger: logger}
}

func (r *ProgressRepository) LoadProgress(ctx context.Context, player uuid.UUID) (map[string]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT title_id, progress FROM title_progress WHERE player_id = $1`, player)
	if err != nil {
		return nil, fmt.Errorf("failed to query title progress: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var titleID string
		var progress int64
		if err := rows.Scan(&titleID, &progress); err != nil {
			return nil, fmt.Errorf("failed to scan title progress: %w", err)
		}
		out[titleID] = progress
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read title progress: %w", err)
	}
	return out, nil
}

func (r *ProgressRepository) SetProgress(ctx context.Context, player uuid.UUID, titleID string, value int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO title_progress (player_id, title_id, progress) VALUES ($1, $2, $3)
		ON CONFLICT (player_id, title_id) DO UPDATE SET progress = excluded.progress`,
		player, titleID, value)
	if err != nil {
		return fmt.Errorf("failed to store progress for %s: %w", titleID, err)
	}
	return nil
}

func (r *ProgressRepository) IncrementProgress(ctx context.Context, player uuid.UUID, titleID string, delta int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO title_progress (player_id, title_id, progress) VALUES ($1, $2, $3)
		ON CONFLICT (player_id, title_id) DO UPDATE SET progress = title_progress.progress + excluded.progress`,
		player, titleID, delta)
	if err != nil {
		return fmt.Errorf("failed to increment progress for %s: %w", titleID, err)
	}
	return nil
}
