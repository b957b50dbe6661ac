package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/RangGames/CreeperPrefixSystem/internal/config"
	"github.com/RangGames/CreeperPrefixSystem/internal/database"
	"github.com/RangGames/CreeperPrefixSystem/internal/logger"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE:  runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, args []string) error {
	log := logger.New()
	cfg, err := config.Load(log)
	if err != nil {
		return err
	}
	db, err := database.Open(cfg, log)
	if err != nil {
		return err
	}
	if db == nil {
		return errors.New("the memory driver has nothing to migrate")
	}
	defer db.Close()
	return database.Migrate(db, cfg.DBDriver, log)
}
