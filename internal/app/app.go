// Package app assembles the stores, prober and runners from configuration.
package app

import (
	"context"

	"go.uber.org/zap"

	"github.com/hamed0406/uptimesli/internal/config"
	"github.com/hamed0406/uptimesli/internal/notify"
	"github.com/hamed0406/uptimesli/internal/probe"
	"github.com/hamed0406/uptimesli/internal/repo"
	"github.com/hamed0406/uptimesli/internal/repo/backend"
	"github.com/hamed0406/uptimesli/internal/scheduler"
	"github.com/hamed0406/uptimesli/internal/sli"
)

type App struct {
	Config     config.Config
	Logger     *zap.Logger
	Store      repo.Store
	Checker    *probe.HTTPChecker
	Notifier   notify.Notifier
	Sweeper    *scheduler.Sweeper
	Aggregator *sli.Aggregator
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	store, err := backend.Open(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return NewWithStore(cfg, log, store), nil
}

// NewWithStore wires everything around an already opened store.
func NewWithStore(cfg config.Config, log *zap.Logger, store repo.Store) *App {
	checker := probe.NewHTTPChecker(cfg.HTTPTimeout,
		probe.WithUserAgent(cfg.UserAgent),
		probe.WithDNSDiagnosis(cfg.DiagnoseDNS),
	)
	notifier := notify.FromURLs(cfg.SlackWebhookURL, cfg.AlertWebhookURL, log)
	return &App{
		Config:     cfg,
		Logger:     log,
		Store:      store,
		Checker:    checker,
		Notifier:   notifier,
		Sweeper:    scheduler.NewSweeper(log, store, store, checker, notifier, cfg.CheckInterval, cfg.MaxConcurrentChecks),
		Aggregator: sli.NewAggregator(log, store, store, store),
	}
}

func (a *App) Close() error { return a.Store.Close() }
