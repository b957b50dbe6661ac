package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/RangGames/CreeperPrefixSystem/internal/domain"
)

type WeeklyRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewWeeklyRepository(sqlDB *sql.DB, logger zerolog.Logger) *WeeklyRepository {
	return &WeeklyRepository{db: sqlDB, logger: logger}
}

func (r *WeeklyRepository) IncrementMetric(ctx context.Context, weekKey string, player uuid.UUID, metric string, delta int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO weekly_metrics (week_key, player_id, metric, value) VALUES ($1, $2, $3, $4)
		ON CONFLICT (week_key, player_id, metric) DO UPDATE SET value = weekly_metrics.value + excluded.value`,
		weekKey, player, metric, delta)
	if err != nil {
		return fmt.Errorf("failed to increment weekly metric %s: %w", metric, err)
	}
	return nil
}

func (r *WeeklyRepository) TopStandings(ctx context.Context, weekKey, metric string, limit int) ([]domain.WeeklyStanding, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT player_id, value FROM weekly_metrics
		WHERE week_key = $1 AND metric = $2
		ORDER BY value DESC, player_id ASC
		LIMIT $3`,
		weekKey, metric, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query weekly standings: %w", err)
	}
	defer rows.Close()

	var out []domain.WeeklyStanding
	for rows.Next() {
		s := domain.WeeklyStanding{Metric: metric}
		if err := rows.Scan(&s.PlayerID, &s.Value); err != nil {
			return nil, fmt.Errorf("failed to scan weekly standing: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read weekly standings: %w", err)
	}
	return out, nil
}

func (r *WeeklyRepository) SaveAward(ctx context.Context, weekKey string, rank int, player uuid.UUID, titleID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO weekly_rank_awards (week_key, rank_position, player_id, title_id, awarded_at) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (week_key, rank_position) DO UPDATE
		SET player_id = excluded.player_id, title_id = excluded.title_id, awarded_at = excluded.awarded_at`,
		weekKey, rank, player, titleID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to store weekly award: %w", err)
	}
	return nil
}
