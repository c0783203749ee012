package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
	StoreDriverMemory   = "memory"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName  string   `env:"SERVICE_NAME"  envDefault:"concord"`
	HTTPPort     string   `env:"HTTP_PORT"     envDefault:"8080"`
	StoreDriver  string   `env:"STORE_DRIVER"  envDefault:"postgres"`
	PostgresDSN  string   `env:"POSTGRES_DSN"`
	SQLitePath   string   `env:"SQLITE_PATH"   envDefault:"concord.db"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// VoterWeightsFile is optional; without it every class gets an equal third.
	VoterWeightsFile string `env:"VOTER_WEIGHTS_FILE"`
	// ProposalIDs are registered on startup for the sqlite and memory stores,
	// which have no proposal CRUD of their own.
	ProposalIDs []string `env:"PROPOSAL_IDS" envSeparator:","`

	OutboxPollInterval    time.Duration `env:"OUTBOX_POLL_INTERVAL"    envDefault:"1s"`
	OutboxBatchSize       int           `env:"OUTBOX_BATCH_SIZE"       envDefault:"100"`
	EventDedupTTL         time.Duration `env:"EVENT_DEDUP_TTL"         envDefault:"168h"`
	EnableDecisionRefresh bool          `env:"ENABLE_DECISION_REFRESH" envDefault:"true"`

	OTelEnabled  bool   `env:"OTEL_ENABLED"  envDefault:"false"`
	OTelEndpoint string `env:"OTEL_ENDPOINT" envDefault:"http://localhost:4318"`
}

func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	brokers := cfg.KafkaBrokers[:0]
	for _, broker := range cfg.KafkaBrokers {
		if broker = strings.TrimSpace(broker); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	cfg.KafkaBrokers = brokers
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func (c Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			return fmt.Errorf("POSTGRES_DSN is required for store driver %q", c.StoreDriver)
		}
	case StoreDriverSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("SQLITE_PATH is required for store driver %q", c.StoreDriver)
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.StoreDriver)
	}
	if c.OutboxBatchSize <= 0 {
		return fmt.Errorf("OUTBOX_BATCH_SIZE must be positive, got %d", c.OutboxBatchSize)
	}
	if c.OutboxPollInterval <= 0 {
		return fmt.Errorf("OUTBOX_POLL_INTERVAL must be positive, got %s", c.OutboxPollInterval)
	}
	return nil
}
