package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/RangGames/CreeperPrefixSystem/internal/domain"
)

type SeasonRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewSeasonRepository(sqlDB *sql.DB, logger zerolog.Logger) *SeasonRepository {
	return &SeasonRepository{db: sqlDB, logger: logger}
}

func (r *SeasonRepository) LatestSeason(ctx context.Context) (domain.SeasonSnapshot, bool, error) {
	var (
		snap    domain.SeasonSnapshot
		startAt sql.NullTime
		endAt   sql.NullTime
		state   string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT season_id, name, start_at, end_at, state FROM seasons ORDER BY season_id DESC LIMIT 1`).
		Scan(&snap.ID, &snap.Name, &startAt, &endAt, &state)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SeasonSnapshot{}, false, nil
	}
	if err != nil {
		return domain.SeasonSnapshot{}, false, fmt.Errorf("failed to load latest season: %w", err)
	}

	snap.State, err = domain.ParseSeasonState(state)
	if err != nil {
		r.logger.Warn().Err(err).Int64("season", snap.ID).Msg("unknown stored season state, assuming PREPARING")
		snap.State = domain.SeasonPreparing
	}
	if startAt.Valid {
		t := startAt.Time.UTC()
		snap.StartAt = &t
	}
	if endAt.Valid {
		t := endAt.Time.UTC()
		snap.EndAt = &t
	}
	return snap, true, nil
}

func (r *SeasonRepository) CreateSeason(ctx context.Context, name string, state domain.SeasonState) (domain.SeasonSnapshot, error) {
	now := time.Now().UTC()
	var id int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO seasons (name, start_at, state) VALUES ($1, $2, $3) RETURNING season_id`,
		name, now, string(state)).Scan(&id)
	if err != nil {
		return domain.SeasonSnapshot{}, fmt.Errorf("failed to create season: %w", err)
	}
	return domain.SeasonSnapshot{ID: id, Name: name, StartAt: &now, State: state}, nil
}

func (r *SeasonRepository) UpdateSeasonState(ctx context.Context, id int64, state domain.SeasonState) error {
	_, err := r.db.ExecContext(ctx, `UPDATE seasons SET state = $1 WHERE season_id = $2`, string(state), id)
	if err != nil {
		return fmt.Errorf("failed to update season %d: %w", id, err)
	}
	return nil
}
