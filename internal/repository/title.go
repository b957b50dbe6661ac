package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type TitleRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewTitleRepository(sqlDB *sql.DB, logger zerolog.Logger) *TitleRepository {
	return &TitleRepository{db: sqlDB, logger: logger}
}

func (r *TitleRepository) LoadTitles(ctx context.Context, player uuid.UUID) ([]string, string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT title_id, equipped FROM player_titles WHERE player_id = $1 ORDER BY title_id`, player)
	if err != nil {
		return nil, "", fmt.Errorf("failed to query player titles: %w", err)
	}
	defer rows.Close()

	var (
		owned    []string
		equipped string
	)
	for rows.Next() {
		var titleID string
		var isEquipped bool
		if err := rows.Scan(&titleID, &isEquipped); err != nil {
			return nil, "", fmt.Errorf("failed to scan player title: %w", err)
		}
		owned = append(owned, titleID)
		if isEquipped {
			equipped = titleID
		}
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("failed to read player titles: %w", err)
	}
	return owned, equipped, nil
}

func (r *TitleRepository) InsertTitle(ctx context.Context, player uuid.UUID, titleID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO player_titles (player_id, title_id, obtained_at, equipped) VALUES ($1, $2, $3, $4)
		ON CONFLICT (player_id, title_id) DO NOTHING`,
		player, titleID, time.Now().UTC(), false)
	if err != nil {
		return fmt.Errorf("failed to insert title %s: %w", titleID, err)
	}
	return nil
}

func (r *TitleRepository) EquipTitle(ctx context.Context, player uuid.UUID, titleID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE player_titles SET equipped = $1 WHERE player_id = $2 AND title_id <> $3`,
		false, player, titleID); err != nil {
		return fmt.Errorf("failed to clear equipped title: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO player_titles (player_id, title_id, obtained_at, equipped) VALUES ($1, $2, $3, $4)
		ON CONFLICT (player_id, title_id) DO UPDATE SET equipped = excluded.equipped`,
		player, titleID, time.Now().UTC(), true); err != nil {
		return fmt.Errorf("failed to equip title %s: %w", titleID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit equip: %w", err)
	}
	r.logger.Debug().Str("player", player.String()).Str("title", titleID).Msg("equipped title stored")
	return nil
}

func (r *TitleRepository) ClearEquipped(ctx context.Context, player uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `UPDATE player_titles SET equipped = $1 WHERE player_id = $2`, false, player)
	if err != nil {
		return fmt.Errorf("failed to clear equipped title: %w", err)
	}
	return nil
}

func (r *TitleRepository) DeleteTitle(ctx context.Context, player uuid.UUID, titleID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM player_titles WHERE player_id = $1 AND title_id = $2`, player, titleID)
	if err != nil {
		return fmt.Errorf("failed to delete title %s: %w", titleID, err)
	}
	return nil
}
