package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SERVICE_NAME", "table-service")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTPPort != "8080" || cfg.MetricsPort != "9095" {
		t.Errorf("ports = %s/%s", cfg.HTTPPort, cfg.MetricsPort)
	}
	if cfg.Game.RollInterval != 15*time.Second || cfg.Game.PollMaxAttempts != 5 || cfg.Game.BettingWindow != 30*time.Second {
		t.Errorf("game = %+v", cfg.Game)
	}
	if cfg.Game.PendingPolicy != "wait" || cfg.Game.PayoutMultiplier != 2 {
		t.Errorf("policy/multiplier = %s/%d", cfg.Game.PendingPolicy, cfg.Game.PayoutMultiplier)
	}
	if cfg.TopicTableEvents != "craps_table_events" {
		t.Errorf("topic = %s", cfg.TopicTableEvents)
	}
}

func TestLoadPerServicePorts(t *testing.T) {
	cases := []struct {
		service     string
		http, metrs string
	}{
		{"oracle-simulator", "8081", "9094"},
		{"round-archiver-worker", "", "9097"},
		{"bettor-bot", "", "9098"},
		{"", "8080", "9095"},
	}
	for _, c := range cases {
		t.Run(c.service, func(t *testing.T) {
			t.Setenv("SERVICE_NAME", c.service)
			cfg, err := Load()
			if err != nil {
				t.Fatal(err)
			}
			if cfg.HTTPPort != c.http || cfg.MetricsPort != c.metrs {
				t.Errorf("ports = %q/%q, want %q/%q", cfg.HTTPPort, cfg.MetricsPort, c.http, c.metrs)
			}
		})
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PENDING_POLICY", "substitute")
	t.Setenv("POLL_INTERVAL", "250ms")
	t.Setenv("BOT_BETTORS", "a,b")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Game.PendingPolicy != "substitute" || cfg.Game.PollInterval != 250*time.Millisecond {
		t.Errorf("game = %+v", cfg.Game)
	}
	if len(cfg.Bot.BettorIDs) != 2 || cfg.Bot.BettorIDs[1] != "b" {
		t.Errorf("bettors = %v", cfg.Bot.BettorIDs)
	}

	t.Setenv("POLL_MAX_ATTEMPTS", "many")
	if _, err := Load(); err == nil {
		t.Error("expected parse error")
	}
}
