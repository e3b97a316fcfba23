package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"msgbar/internal/config"
	"msgbar/internal/logging"
	"msgbar/internal/notifier"
	"msgbar/internal/pipeline"
	"msgbar/internal/runner"
	"msgbar/internal/source"
	"msgbar/internal/store"
)

type globalFlags struct {
	config string
	debug  bool
}

// app holds what every command needs. Close releases the store and flushes
// the logger.
type app struct {
	cfg   config.Config
	log   *zap.Logger
	store store.Store
}

func newApp(ctx context.Context, flags globalFlags) (*app, error) {
	cfg, err := config.Load(flags.config, "")
	if err != nil {
		return nil, err
	}
	if flags.debug {
		cfg.Log.Level = "debug"
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, cfg.Store.Backend, cfg.Store.Path, cfg.Store.DSN, log.Named("store"))
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("open processed store: %w", err)
	}
	return &app{cfg: cfg, log: log, store: st}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.log.Warn("close store", zap.Error(err))
	}
	_ = a.log.Sync()
}

func (a *app) runner(dryRun bool, progress runner.Progress) (*runner.Runner, error) {
	srcs, err := source.Build(a.cfg, a.log.Named("source"))
	if err != nil {
		return nil, err
	}
	return runner.New(runner.Options{
		Sources:       srcs,
		Store:         a.store,
		Notifier:      notifier.Desktop{},
		Normalizer:    pipeline.NewNormalizer(a.cfg.MaxLineChars),
		Timeout:       a.cfg.FetchTimeout,
		NotifyEnabled: a.cfg.Notify.Enabled,
		StrictSenders: a.cfg.Notify.StrictSenders,
		DryRun:        dryRun,
		Progress:      progress,
		Log:           a.log.Named("runner"),
	}), nil
}
