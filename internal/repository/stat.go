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

type StatRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewStatRepository(sqlDB *sql.DB, logger zerolog.Logger) *StatRepository {
	return &StatRepository{db: sqlDB, logger: logger}
}

func (r *StatRepository) LoadStats(ctx context.Context, player uuid.UUID) (map[string]float64, []domain.StatModifier, error) {
	bases := make(map[string]float64)
	rows, err := r.db.QueryContext(ctx, `SELECT stat_id, base_value FROM player_stats WHERE player_id = $1`, player)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query base stats: %w", err)
	}
	for rows.Next() {
		var statID string
		var value float64
		if err := rows.Scan(&statID, &value); err != nil {
			rows.Close()
			return nil, nil, fmt.Errorf("failed to scan base stat: %w", err)
		}
		bases[statID] = value
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read base stats: %w", err)
	}

	rows, err = r.db.QueryContext(ctx,
		`SELECT stat_id, source_id, op, value, expire_at FROM stat_modifiers WHERE player_id = $1 ORDER BY stat_id, source_id`,
		player)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query stat modifiers: %w", err)
	}
	defer rows.Close()

	var mods []domain.StatModifier
	for rows.Next() {
		var (
			m        domain.StatModifier
			op       string
			expireAt sql.NullInt64
		)
		if err := rows.Scan(&m.StatID, &m.SourceID, &op, &m.Value, &expireAt); err != nil {
			return nil, nil, fmt.Errorf("failed to scan stat modifier: %w", err)
		}
		m.Op, err = domain.ParseOperation(op)
		if err != nil {
			r.logger.Warn().Err(err).Str("player", player.String()).Str("stat", m.StatID).Str("source", m.SourceID).Msg("skipping stored modifier")
			continue
		}
		m.PlayerID = player
		if expireAt.Valid {
			t := time.UnixMilli(expireAt.Int64).UTC()
			m.ExpireAt = &t
		}
		mods = append(mods, m)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read stat modifiers: %w", err)
	}
	return bases, mods, nil
}

func (r *StatRepository) SaveBaseStat(ctx context.Context, player uuid.UUID, statID string, value float64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO player_stats (player_id, stat_id, base_value) VALUES ($1, $2, $3)
		ON CONFLICT (player_id, stat_id) DO UPDATE SET base_value = excluded.base_value`,
		player, statID, value)
	if err != nil {
		return fmt.Errorf("failed to save base stat %s: %w", statID, err)
	}
	return nil
}

func (r *StatRepository) UpsertModifier(ctx context.Context, m domain.StatModifier) error {
	var expireAt sql.NullInt64
	if m.ExpireAt != nil {
		expireAt = sql.NullInt64{Int64: m.ExpireAt.UnixMilli(), Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO stat_modifiers (player_id, stat_id, source_id, op, value, expire_at) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (player_id, stat_id, source_id) DO UPDATE SET op = excluded.op, value = excluded.value, expire_at = excluded.expire_at`,
		m.PlayerID, m.StatID, m.SourceID, string(m.Op), m.Value, expireAt)
	if err != nil {
		return fmt.Errorf("failed to upsert modifier %s/%s: %w", m.StatID, m.SourceID, err)
	}
	return nil
}

func (r *StatRepository) DeleteModifier(ctx context.Context, player uuid.UUID, statID, sourceID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM stat_modifiers WHERE player_id = $1 AND stat_id = $2 AND source_id = $3`,
		player, statID, sourceID)
	if err != nil {
		return fmt.Errorf("failed to delete modifier %s/%s: %w", statID, sourceID, err)
	}
	return nil
}
