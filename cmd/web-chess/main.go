package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/vitoskycl/web-chess/internal/chessbuilder"
	appcfg "github.com/vitoskycl/web-chess/internal/config"
	"github.com/vitoskycl/web-chess/internal/obslog"
	"github.com/vitoskycl/web-chess/internal/server/httpapi"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	startCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	deps, err := chessbuilder.New(startCtx, cfg, logger)
	if err != nil {
		cancel()
		logger.Fatal("chess_init_failed", zap.Error(err))
	}
	if err := deps.Service.Restore(startCtx); err != nil {
		logger.Warn("chess_restore_failed", zap.Error(err))
	}
	cancel()

	srv := httpapi.NewServer(cfg.HTTPAddr, deps.Handler)
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http_listening", zap.String("addr", cfg.HTTPAddr))
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutdown_signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("http_serve_failed", zap.Error(err))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http_shutdown_failed", zap.Error(err))
	}
	if err := deps.Close(); err != nil {
		logger.Warn("deps_close_failed", zap.Error(err))
	}
}
