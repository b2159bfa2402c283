package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/offlingo/offlingo/internal/config"
	"github.com/offlingo/offlingo/internal/connectivity"
	"github.com/offlingo/offlingo/internal/datasync"
	"github.com/offlingo/offlingo/internal/gateway"
	"github.com/offlingo/offlingo/internal/logging"
	"github.com/offlingo/offlingo/internal/remote"
	"github.com/offlingo/offlingo/internal/store"
)

func loadConfig() (*config.Config, error) {
	loader, err := config.NewConfigLoader(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to create config loader: %w", err)
	}
	return loader.Load()
}

// app holds the wired data layer for a single command invocation.
type app struct {
	config  *config.Config
	logger  *slog.Logger
	store   store.Store
	monitor *connectivity.Monitor
	engine  *datasync.Engine
	gateway *gateway.Gateway
}

// newApp loads the configuration and wires the store, the connectivity
// monitor, the sync engine and the gateway. A broken local database
// degrades to an in-memory cache so the command can still run.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// The early logger from PersistentPreRunE knows nothing about the log
	// file named in the configuration, so install the full one here.
	logger := logging.Setup(logging.Options{
		Debug:      debugMode,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})

	var st store.Store
	st, err = store.Open(ctx, cfg.Storage.Path)
	if err != nil {
		if !errors.Is(err, store.ErrStorageUnavailable) {
			return nil, fmt.Errorf("store.Open() > %w", err)
		}
		logger.Warn("local database unavailable, using an in-memory cache for this run",
			"path", cfg.Storage.Path,
			"error", err)
		st = store.NewMemoryStore()
	}

	client := remote.NewHTTPClient(remote.Config{
		BaseURL: cfg.Remote.BaseURL,
		APIKey:  cfg.Remote.APIKey,
		Timeout: cfg.Remote.Timeout,
		Logger:  logger,
	})

	var probe connectivity.Probe
	if !offlineMode {
		probe = client
	}
	monitor := connectivity.NewMonitor(probe, logger)
	monitor.Check(ctx)

	engine := datasync.New(st, client, monitor, datasync.Config{
		Debounce:     cfg.Sync.Debounce,
		TickInterval: cfg.Sync.Interval,
	}, logger)

	gw := gateway.New(st, client, monitor, engine, gateway.Config{
		RetryAttempts: cfg.Sync.RetryAttempts,
		RetryDelay:    cfg.Sync.RetryDelay,
	}, logger)

	return &app{
		config:  cfg,
		logger:  logger,
		store:   st,
		monitor: monitor,
		engine:  engine,
		gateway: gw,
	}, nil
}

// Close waits for background refreshes and releases the store.
func (a *app) Close() error {
	a.gateway.Wait()
	return a.store.Close()
}

func parseID(arg string, kind string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s id %q", kind, arg)
	}
	return id, nil
}
