package config

import (
	"strings"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := Parse(map[string]string{})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.HasPrefix(cfg.NodeID, "node-") {
			t.Fatalf("expected generated node id, got %q", cfg.NodeID)
		}
		if cfg.BroadcastChannel != "tp.broadcast" || cfg.RequestChannel != "tp.api.request" {
			t.Fatalf("unexpected channels %q %q", cfg.BroadcastChannel, cfg.RequestChannel)
		}
		if cfg.WeeklyDefaultMetric != "FARMING_POINTS" {
			t.Fatalf("unexpected default metric %q", cfg.WeeklyDefaultMetric)
		}
		if !cfg.IsAuthority() {
			t.Fatalf("expected authority role by default")
		}
		if cfg.SeasonPollInterval != 5*time.Minute {
			t.Fatalf("unexpected poll interval %v", cfg.SeasonPollInterval)
		}
	})

	t.Run("explicit values", func(t *testing.T) {
		cfg, err := Parse(map[string]string{
			"NODE_ID":              "paper-1",
			"SYNC_ENABLED":         "true",
			"SEASON_ROLE":          "Follower",
			"SEASON_POLL_INTERVAL": "30s",
			"DB_DRIVER":            "memory",
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if cfg.NodeID != "paper-1" || !cfg.SyncEnabled {
			t.Fatalf("unexpected config %+v", cfg)
		}
		if cfg.IsAuthority() {
			t.Fatalf("expected follower role")
		}
		if cfg.SeasonPollInterval != 30*time.Second {
			t.Fatalf("unexpected poll interval %v", cfg.SeasonPollInterval)
		}
	})

	t.Run("invalid role", func(t *testing.T) {
		if _, err := Parse(map[string]string{"SEASON_ROLE": "leader"}); err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("invalid driver", func(t *testing.T) {
		if _, err := Parse(map[string]string{"DB_DRIVER": "mysql"}); err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("invalid workers", func(t *testing.T) {
		if _, err := Parse(map[string]string{"WORKERS": "0"}); err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("malformed duration", func(t *testing.T) {
		if _, err := Parse(map[string]string{"WEEKLY_EVAL_INTERVAL": "soon"}); err == nil {
			t.Fatalf("expected error")
		}
	})
}
