package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.ServiceName != "snapfolio" {
		t.Fatalf("ServiceName = %q", cfg.ServiceName)
	}
	if cfg.ServerAddr != ":8080" {
		t.Fatalf("ServerAddr = %q", cfg.ServerAddr)
	}
	if cfg.AccessTTL != 15*time.Minute {
		t.Fatalf("AccessTTL = %v", cfg.AccessTTL)
	}
	if cfg.RefreshTTL != 7*24*time.Hour {
		t.Fatalf("RefreshTTL = %v", cfg.RefreshTTL)
	}
	if cfg.RoleCacheTTL != time.Minute {
		t.Fatalf("RoleCacheTTL = %v", cfg.RoleCacheTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVER_ADDR", ":9090")
	t.Setenv("ACCESS_TTL", "5m")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092 ,")

	cfg := Load()
	if cfg.ServerAddr != ":9090" {
		t.Fatalf("ServerAddr = %q", cfg.ServerAddr)
	}
	if cfg.AccessTTL != 5*time.Minute {
		t.Fatalf("AccessTTL = %v", cfg.AccessTTL)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Fatalf("KafkaBrokers = %v", cfg.KafkaBrokers)
	}
}

func TestHelpers(t *testing.T) {
	t.Setenv("SOME_INT", "not-a-number")
	if got := EnvIntDefault("SOME_INT", 42); got != 42 {
		t.Fatalf("EnvIntDefault = %d", got)
	}
	t.Setenv("SOME_DUR", "bogus")
	if got := EnvDurationDefault("SOME_DUR", time.Second); got != time.Second {
		t.Fatalf("EnvDurationDefault = %v", got)
	}
	if got := CSV(""); got != nil {
		t.Fatalf("CSV empty = %v", got)
	}
}
