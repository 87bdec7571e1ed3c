package main

import (
	"fmt"
	"log/slog"

	"github.com/Promptonauts/ballot/pkg/clients"
	"github.com/Promptonauts/ballot/pkg/config"
	"github.com/Promptonauts/ballot/pkg/engine"
	"github.com/Promptonauts/ballot/pkg/observability"
	"github.com/Promptonauts/ballot/pkg/orchestrator"
	"github.com/Promptonauts/ballot/pkg/store"
	"github.com/Promptonauts/ballot/pkg/supervisor"
)

type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      *store.SQLiteStore
	metrics    *observability.MetricsRegistry
	supervisor *supervisor.Supervisor
}

func loadConfig(flags *rootFlags) (*config.Config, *slog.Logger, error) {
	logger, err := newLogger(flags)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func openStore(cfg *config.Config) (*store.SQLiteStore, error) {
	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func clientOptions(svc config.ServiceConfig) clients.Options {
	return clients.Options{BaseURL: svc.URL, APIKey: svc.APIKey, Timeout: svc.Timeout}
}

func newApp(flags *rootFlags) (*app, error) {
	cfg, logger, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}
	db, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	metrics := observability.NewMetricsRegistry()

	deps := engine.Deps{
		Store:    db,
		Analyzer: clients.NewAnalyzer(clientOptions(cfg.Services.Analysis)),
		Builder:  clients.NewTxBuilder(clientOptions(cfg.Services.TxBuilder)),
		Signer:   clients.NewSigner(clientOptions(cfg.Services.Signer)),
		Logger:   logger,
		Metrics:  metrics,
	}
	if cfg.Services.Social.URL != "" {
		deps.Publisher = clients.NewPublisher(clientOptions(cfg.Services.Social))
	}
	eng := engine.New(deps)

	orch := orchestrator.New(db, clients.NewProposalSource(clientOptions(cfg.Services.Proposals)), eng, orchestrator.Options{
		MaxConcurrency: cfg.Worker.MaxConcurrency,
		ThrottleDelay:  cfg.Worker.Throttle(),
		Logger:         logger,
		Metrics:        metrics,
	})

	sup := supervisor.New(orch, supervisor.Config{
		Enabled:        cfg.Worker.IsEnabled(),
		Interval:       cfg.Worker.Interval,
		MaxConcurrency: cfg.Worker.Concurrency(),
		DryRun:         cfg.Worker.DryRun,
		ThrottleDelay:  cfg.Worker.Throttle(),
	}, logger, metrics)

	return &app{
		cfg:        cfg,
		logger:     logger,
		store:      db,
		metrics:    metrics,
		supervisor: sup,
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}
