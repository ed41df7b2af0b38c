package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"argus/api"
	"argus/config"
	"argus/hunt"
	"argus/storage"
)

// App wires the hunt engine to its collaborators: config, logger, the
// SQLite history store, the ClickHouse incident backend and the HTTP API.
type App struct {
	cfg    *config.Config
	logger *zap.SugaredLogger
	zap    *zap.Logger

	sqlite     *storage.SQLite
	clickhouse *storage.ClickHouse
	api        *api.API
}

// NewApp initializes all components. Initialization is fail-fast: any error
// aborts startup.
func NewApp(ctx context.Context) (*App, error) {
	zapLogger, sugar := InitLogger()

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	catalog := hunt.DefaultCatalog()
	if cfg.DataPaths.CatalogPath != "" {
		catalog, err = hunt.LoadCatalog(cfg.DataPaths.CatalogPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load schema catalog: %w", err)
		}
		sugar.Infow("Schema catalog loaded", "path", cfg.DataPaths.CatalogPath)
	}

	sqlite, err := storage.NewSQLite(cfg.DataPaths.SQLitePath, sugar)
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata store: %w", err)
	}

	history, err := storage.NewSQLiteHuntQueryStorage(sqlite, sugar)
	if err != nil {
		sqlite.Close()
		return nil, fmt.Errorf("failed to init history store: %w", err)
	}

	clickhouse, err := storage.NewClickHouse(cfg, sugar)
	if err != nil {
		sqlite.Close()
		return nil, fmt.Errorf("failed to connect to incident store: %w", err)
	}

	engine := hunt.NewEngine(catalog, clickhouse, history, sugar)
	engine.SetQueryTimeout(time.Duration(cfg.Query.TimeoutSeconds) * time.Second)

	return &App{
		cfg:        cfg,
		logger:     sugar,
		zap:        zapLogger,
		sqlite:     sqlite,
		clickhouse: clickhouse,
		api:        api.NewAPI(engine, cfg, sugar),
	}, nil
}

// Start launches the HTTP API.
func (a *App) Start() {
	go func() {
		if err := a.api.Start(); err != nil {
			a.logger.Fatalw("API server failed", "error", err)
		}
	}()
}

// WaitForShutdown blocks until SIGINT or SIGTERM.
func (a *App) WaitForShutdown() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	a.logger.Infow("Shutdown signal received", "signal", s.String())
}

// Shutdown drains the API and closes storage.
func (a *App) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := a.api.Shutdown(ctx); err != nil {
		a.logger.Errorw("API shutdown failed", "error", err)
	}
	if err := a.clickhouse.Close(); err != nil {
		a.logger.Errorw("ClickHouse close failed", "error", err)
	}
	if err := a.sqlite.Close(); err != nil {
		a.logger.Errorw("SQLite close failed", "error", err)
	}
	_ = a.zap.Sync()
}
