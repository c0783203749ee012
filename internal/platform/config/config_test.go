package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaultsWithMemoryStore(t *testing.T) {
	t.Setenv("STORE_DRIVER", "Memory")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.StoreDriver != StoreDriverMemory {
		t.Fatalf("expected normalized memory driver, got %q", cfg.StoreDriver)
	}
	if cfg.HTTPPort != "8080" || cfg.ServiceName != "concord" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.OutboxPollInterval != time.Second || cfg.EventDedupTTL != 168*time.Hour {
		t.Fatalf("unexpected durations %s / %s", cfg.OutboxPollInterval, cfg.EventDedupTTL)
	}
	if !cfg.EnableDecisionRefresh {
		t.Fatalf("decision refresh should default on")
	}
}

func TestLoadSplitsBrokers(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, ,kafka-2:9092")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "kafka-2:9092" {
		t.Fatalf("unexpected brokers %v", cfg.KafkaBrokers)
	}
}

func TestLoadRequiresPostgresDSN(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("POSTGRES_DSN", "")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "POSTGRES_DSN") {
		t.Fatalf("expected missing dsn error, got %v", err)
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "mongo")
	if _, err := Load(); err == nil {
		t.Fatal("expected unsupported driver error")
	}
}

func TestParseEnvError(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("OUTBOX_BATCH_SIZE", "many")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env error, got %v", err)
	}
}
