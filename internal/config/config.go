package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

const (
	RoleAuthority = "authority"
	RoleFollower  = "follower"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
	DriverMemory   = "memory"
)

type Config struct {
	NodeID      string `env:"NODE_ID"`
	SyncEnabled bool   `env:"SYNC_ENABLED" envDefault:"false"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisUsername string `env:"REDIS_USERNAME"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	BroadcastChannel string `env:"CHANNEL_BROADCAST" envDefault:"tp.broadcast"`
	RequestChannel   string `env:"CHANNEL_REQUEST" envDefault:"tp.api.request"`

	DBDriver string `env:"DB_DRIVER" envDefault:"sqlite3"`
	DBDSN    string `env:"DB_DSN" envDefault:"titleplus.db"`

	RegistryDir string `env:"REGISTRY_DIR" envDefault:"registry"`

	SeasonRole         string        `env:"SEASON_ROLE" envDefault:"authority"`
	SeasonPollInterval time.Duration `env:"SEASON_POLL_INTERVAL" envDefault:"5m"`

	WeeklyEvalInterval  time.Duration `env:"WEEKLY_EVAL_INTERVAL" envDefault:"5m"`
	WeeklyDefaultMetric string        `env:"WEEKLY_DEFAULT_METRIC" envDefault:"FARMING_POINTS"`

	Workers int `env:"WORKERS" envDefault:"4"`

	ServerPort string `env:"SERVER_PORT" envDefault:"8080"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`

	ConsoleEndpoint string `env:"CONSOLE_ENDPOINT"`
	ConsoleToken    string `env:"CONSOLE_TOKEN"`
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg, err := Parse(environ())
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("node_id", cfg.NodeID).
		Bool("sync_enabled", cfg.SyncEnabled).
		Str("db_driver", cfg.DBDriver).
		Str("registry_dir", cfg.RegistryDir).
		Str("season_role", cfg.SeasonRole).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Int("workers", cfg.Workers).
		Msg("configuration loaded")

	return cfg, nil
}

// Parse builds a Config from the given environment and validates it.
func Parse(environment map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: environment}); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if cfg.NodeID == "" {
		id, err := gonanoid.New(10)
		if err != nil {
			return nil, fmt.Errorf("failed to generate node id: %w", err)
		}
		cfg.NodeID = "node-" + id
	}

	cfg.SeasonRole = strings.ToLower(cfg.SeasonRole)
	if cfg.SeasonRole != RoleAuthority && cfg.SeasonRole != RoleFollower {
		return nil, fmt.Errorf("SEASON_ROLE must be %q or %q, got %q", RoleAuthority, RoleFollower, cfg.SeasonRole)
	}

	switch cfg.DBDriver {
	case DriverSQLite, DriverPostgres, DriverMemory:
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	if cfg.Workers <= 0 {
		return nil, fmt.Errorf("WORKERS must be positive, got %d", cfg.Workers)
	}
	if cfg.WeeklyDefaultMetric == "" {
		return nil, fmt.Errorf("WEEKLY_DEFAULT_METRIC is required")
	}

	return cfg, nil
}

func (c *Config) IsAuthority() bool {
	return c.SeasonRole == RoleAuthority
}

func environ() map[string]string {
	out := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			out[k] = v
		}
	}
	return out
}

var Module = fx.Provide(Load)
