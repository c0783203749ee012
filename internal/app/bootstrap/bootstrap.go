package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	weightedvoting "concord/contexts/governance/weighted-voting"
	"concord/contexts/governance/weighted-voting/adapters/memory"
	postgresadapter "concord/contexts/governance/weighted-voting/adapters/postgres"
	sqliteadapter "concord/contexts/governance/weighted-voting/adapters/sqlite"
	"concord/contexts/governance/weighted-voting/adapters/weightfile"
	workerapp "concord/contexts/governance/weighted-voting/application/workers"
	"concord/contexts/governance/weighted-voting/domain/entities"
	"concord/contexts/governance/weighted-voting/ports"
	"concord/internal/platform/config"
	"concord/internal/platform/db"
	"concord/internal/platform/httpserver"
	"concord/internal/platform/messaging"
	"concord/internal/platform/otel"

	"golang.org/x/sync/errgroup"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server        *httpserver.Server
	weights       *weightfile.Source
	store         *governanceStore
	shutdownTrace func(context.Context) error
	logger        *slog.Logger
}

type WorkerApp struct {
	weights       *weightfile.Source
	store         *governanceStore
	outboxRelay   workerapp.OutboxRelay
	refresh       workerapp.DecisionRefreshConsumer
	runRefresh    bool
	pollInterval  time.Duration
	shutdownTrace func(context.Context) error
	logger        *slog.Logger
}

// storeBackend is what every store driver provides to the governance module.
type storeBackend interface {
	ports.VoteStore
	ports.DecisionStore
	ports.ProposalDirectory
	ports.OutboxWriter
	ports.OutboxRepository
	ports.EventDedupStore
}

type governanceStore struct {
	backend storeBackend
	clock   ports.Clock
	idGen   ports.IDGenerator
	close   func() error
}

func (s *governanceStore) Close() error {
	if s == nil || s.close == nil {
		return nil
	}
	return s.close()
}

func BuildAPI(ctx context.Context) (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")

	shutdownTrace, err := otel.Setup(ctx, cfg.ServiceName, cfg.OTelEndpoint, cfg.OTelEnabled)
	if err != nil {
		return nil, err
	}
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		_ = shutdownTrace(ctx)
		return nil, err
	}
	weights, err := loadWeights(cfg, logger)
	if err != nil {
		_ = store.Close()
		_ = shutdownTrace(ctx)
		return nil, err
	}

	var source ports.WeightSource = weightfile.Static(entities.DefaultWeightTable())
	if weights != nil {
		source = weights
	}
	module := weightedvoting.NewModule(governanceDependencies(store, source, logger))

	return &APIApp{
		server:        httpserver.New(module, logger, normalizeAddr(cfg.HTTPPort)),
		weights:       weights,
		store:         store,
		shutdownTrace: shutdownTrace,
		logger:        logger,
	}, nil
}

func BuildWorker(ctx context.Context) (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")

	shutdownTrace, err := otel.Setup(ctx, cfg.ServiceName, cfg.OTelEndpoint, cfg.OTelEnabled)
	if err != nil {
		return nil, err
	}
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		_ = shutdownTrace(ctx)
		return nil, err
	}
	weights, err := loadWeights(cfg, logger)
	if err != nil {
		_ = store.Close()
		_ = shutdownTrace(ctx)
		return nil, err
	}
	kafka, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		_ = store.Close()
		_ = shutdownTrace(ctx)
		return nil, err
	}

	var source ports.WeightSource = weightfile.Static(entities.DefaultWeightTable())
	if weights != nil {
		source = weights
	}
	module := weightedvoting.NewModule(governanceDependencies(store, source, logger))
	refresh := weightedvoting.NewDecisionRefreshConsumer(module, kafka, store.backend, logger)
	refresh.DedupTTL = cfg.EventDedupTTL

	return &WorkerApp{
		weights: weights,
		store:   store,
		outboxRelay: workerapp.OutboxRelay{
			Outbox:    store.backend,
			Publisher: kafka,
			Clock:     store.clock,
			BatchSize: cfg.OutboxBatchSize,
			Logger:    logger,
		},
		refresh:       refresh,
		runRefresh:    cfg.EnableDecisionRefresh,
		pollInterval:  cfg.OutboxPollInterval,
		shutdownTrace: shutdownTrace,
		logger:        logger,
	}, nil
}

// Run serves HTTP until ctx is cancelled, then drains in-flight requests.
// A signal on reload swaps the voter weight table without a restart.
func (a *APIApp) Run(ctx context.Context, reload <-chan struct{}) error {
	a.logger.Info("api app started",
		"event", "bootstrap_api_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(a.server.Start)
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})
	group.Go(func() error {
		for {
			select {
			case <-groupCtx.Done():
				return nil
			case <-reload:
				reloadWeights(a.weights, a.logger)
			}
		}
	})
	return group.Wait()
}

func reloadWeights(weights *weightfile.Source, logger *slog.Logger) {
	if weights == nil {
		logger.Warn("weight reload requested without VOTER_WEIGHTS_FILE",
			"event", "bootstrap_weight_reload_skipped",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
		return
	}
	// Reload logs its own outcome and keeps the previous table on failure.
	_ = weights.Reload()
}

// NotifyReload turns SIGHUP into reload requests until ctx ends. Bursts of
// signals collapse into one pending request.
func NotifyReload(ctx context.Context) <-chan struct{} {
	hangups := make(chan os.Signal, 1)
	signal.Notify(hangups, syscall.SIGHUP)
	reload := make(chan struct{}, 1)
	go func() {
		defer signal.Stop(hangups)
		for {
			select {
			case <-ctx.Done():
				return
			case <-hangups:
				select {
				case reload <- struct{}{}:
				default:
				}
			}
		}
	}()
	return reload
}

func (a *APIApp) Close() error {
	err := a.store.Close()
	if a.shutdownTrace != nil {
		if traceErr := a.shutdownTrace(context.Background()); err == nil {
			err = traceErr
		}
	}
	return err
}

// Run relays the outbox on a fixed interval and, when enabled, keeps stored
// decisions in step with vote events until ctx is cancelled. Reload requests
// swap the weight table the refresh consumer decides with, so re-decided
// outcomes match the API process.
func (w *WorkerApp) Run(ctx context.Context, reload <-chan struct{}) error {
	if w.runRefresh {
		if err := w.refresh.Start(ctx); err != nil {
			return err
		}
	}

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
		"decision_refresh", w.runRefresh,
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		ticker := time.NewTicker(w.pollInterval)
		defer ticker.Stop()
		for {
			if _, err := w.outboxRelay.RunOnce(groupCtx); err != nil {
				// Rows stay pending; the next tick retries them in order.
				w.logger.Warn("outbox relay cycle failed",
					"event", "bootstrap_outbox_cycle_failed",
					"module", "internal/app/bootstrap",
					"layer", "platform",
					"error", err.Error(),
				)
			}
			select {
			case <-groupCtx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})
	group.Go(func() error {
		for {
			select {
			case <-groupCtx.Done():
				return nil
			case <-reload:
				reloadWeights(w.weights, w.logger)
			}
		}
	})
	return group.Wait()
}

func (w *WorkerApp) Close() error {
	err := w.store.Close()
	if w.shutdownTrace != nil {
		if traceErr := w.shutdownTrace(context.Background()); err == nil {
			err = traceErr
		}
	}
	return err
}

func governanceDependencies(store *governanceStore, weights ports.WeightSource, logger *slog.Logger) weightedvoting.Dependencies {
	return weightedvoting.Dependencies{
		Votes:     store.backend,
		Decisions: store.backend,
		Proposals: store.backend,
		Weights:   weights,
		Outbox:    store.backend,
		Clock:     store.clock,
		IDGen:     store.idGen,
		Logger:    logger,
	}
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (*governanceStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		pg, err := db.Connect(ctx, cfg.PostgresDSN, logger)
		if err != nil {
			return nil, err
		}
		repo := postgresadapter.NewRepository(pg.DB, logger)
		if err := repo.Migrate(ctx); err != nil {
			_ = pg.Close()
			return nil, fmt.Errorf("migrate governance schema: %w", err)
		}
		return &governanceStore{
			backend: repo,
			clock:   postgresadapter.SystemClock{},
			idGen:   postgresadapter.UUIDGenerator{},
			close:   pg.Close,
		}, nil
	case config.StoreDriverSQLite:
		store, err := sqliteadapter.Open(cfg.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		for _, proposalID := range cfg.ProposalIDs {
			if strings.TrimSpace(proposalID) == "" {
				continue
			}
			if err := store.RegisterProposal(ctx, proposalID); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("register proposal %q: %w", proposalID, err)
			}
		}
		return &governanceStore{
			backend: store,
			clock:   postgresadapter.SystemClock{},
			idGen:   postgresadapter.UUIDGenerator{},
			close:   store.Close,
		}, nil
	case config.StoreDriverMemory:
		store := memory.NewStore(nil)
		for _, proposalID := range cfg.ProposalIDs {
			if proposalID = strings.TrimSpace(proposalID); proposalID != "" {
				store.SetProposal(proposalID)
			}
		}
		logger.Warn("memory store selected; votes are lost on restart",
			"event", "bootstrap_memory_store_selected",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
		return &governanceStore{backend: store, clock: store, idGen: store}, nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}

func loadWeights(cfg config.Config, logger *slog.Logger) (*weightfile.Source, error) {
	path := strings.TrimSpace(cfg.VoterWeightsFile)
	if path == "" {
		return nil, nil
	}
	source, err := weightfile.Load(path, logger)
	if err != nil {
		return nil, fmt.Errorf("load voter weights: %w", err)
	}
	return source, nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
