package repository

import (
	"database/sql"

	"github.com/rs/zerolog"

	"github.com/RangGames/CreeperPrefixSystem/internal/config"
	"github.com/RangGames/CreeperPrefixSystem/internal/service"
	"github.com/RangGames/CreeperPrefixSystem/internal/store/memstore"
)

// NewStores returns SQL-backed stores, or in-memory ones for the memory
// driver.
func NewStores(cfg *config.Config, sqlDB *sql.DB, logger zerolog.Logger) service.Stores {
	if cfg.DBDriver == config.DriverMemory || sqlDB == nil {
		m := memstore.New()
		return service.Stores{Stats: m, Titles: m, Progress: m, Seasons: m, Weekly: m, Collection: m}
	}
	log := logger.With().Str("component", "repository").Logger()
	return service.Stores{
		Stats:      NewStatRepository(sqlDB, log),
		Titles:     NewTitleRepository(sqlDB, log),
		Progress:   NewProgressRepository(sqlDB, log),
		Seasons:    NewSeasonRepository(sqlDB, log),
		Weekly:     NewWeeklyRepository(sqlDB, log),
		Collection: NewCollectionRepository(sqlDB, log),
	}
}
