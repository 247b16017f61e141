// Package chessbuilder wires the engine, storage and HTTP handler from
// configuration.
package chessbuilder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/vitoskycl/web-chess/internal/adapter/chesspresenter"
	corechess "github.com/vitoskycl/web-chess/internal/chess"
	"github.com/vitoskycl/web-chess/internal/chess/uci"
	"github.com/vitoskycl/web-chess/internal/config"
	"github.com/vitoskycl/web-chess/internal/msgcat"
	"github.com/vitoskycl/web-chess/internal/server/httpapi"
	svcchess "github.com/vitoskycl/web-chess/internal/service/chess"
)

type Deps struct {
	Service *svcchess.Service
	Engine  *corechess.Engine
	Store   svcchess.Store
	Repo    svcchess.Repository
	Handler *httpapi.Handler

	db *sql.DB
}

// EngineFromConfig builds an engine client for the configured binary. It
// does not start the process.
func EngineFromConfig(cfg *config.AppConfig, logger *zap.Logger) *corechess.Engine {
	opt := uci.Options{
		Threads: cfg.EngineThreads,
		HashMB:  cfg.EngineHashMB,
		Grace:   cfg.EngineGrace,
	}
	return corechess.NewEngine(corechess.ProcessSpawner(cfg.StockfishPath, opt, logger), cfg.ChessDefaultLevel, logger)
}

func New(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(cfg.StockfishPath) == "" {
		return nil, fmt.Errorf("STOCKFISH_PATH is required for chess engine")
	}

	deps := &Deps{}

	// Engine. A failed start leaves it not running; requests then report
	// engine_unavailable until /engine/restart succeeds.
	deps.Engine = EngineFromConfig(cfg, logger)
	if err := deps.Engine.Start(ctx); err != nil {
		logger.Error("engine_start_failed", zap.String("path", cfg.StockfishPath), zap.Error(err))
	}

	// Snapshot store (Redis optional)
	if strings.TrimSpace(cfg.RedisURL) != "" {
		store, err := svcchess.NewRedisStoreFromURL(ctx, cfg.RedisURL, cfg.SessionTTL())
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("init redis store: %w", err)
		}
		deps.Store = store
	} else {
		logger.Info("chess_store_in_memory")
		deps.Store = svcchess.NewMemoryStore()
	}

	// Archive (Postgres optional)
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		db, err := openPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			deps.Close()
			return nil, err
		}
		deps.db = db
		deps.Repo = svcchess.NewRepository(db)
	} else {
		logger.Info("chess_archive_in_memory")
		deps.Repo = svcchess.NewMemoryRepository()
	}

	svcCfg := svcchess.Config{
		MoveBudget:   cfg.MoveTime,
		EvalBudget:   cfg.EvalTime,
		DefaultLevel: cfg.ChessDefaultLevel,
		HistoryLimit: cfg.ChessHistoryLimit,
	}
	service, err := svcchess.NewService(deps.Engine, deps.Store, deps.Repo, svcchess.NewBoardRenderer(0), svcCfg, logger)
	if err != nil {
		deps.Close()
		return nil, err
	}
	deps.Service = service

	catalog, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("load messages: %w", err)
	}
	deps.Handler = httpapi.NewHandler(service, chesspresenter.NewPresenter(catalog), logger)
	return deps, nil
}

func openPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := svcchess.EnsureSchema(pctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return db, nil
}

// Close releases the engine process and storage connections.
func (d *Deps) Close() error {
	var errs []error
	if d.Engine != nil {
		errs = append(errs, d.Engine.Close())
	}
	if d.Store != nil {
		errs = append(errs, d.Store.Close())
	}
	if d.db != nil {
		errs = append(errs, d.db.Close())
	}
	return errors.Join(errs...)
}
