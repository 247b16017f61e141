package chessbuilder

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"

	corechess "github.com/vitoskycl/web-chess/internal/chess"
	"github.com/vitoskycl/web-chess/internal/config"
)

func TestNewWithMissingEngineBinary(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()

	cfg := &config.AppConfig{
		StockfishPath:      filepath.Join(t.TempDir(), "no-such-stockfish"),
		RedisURL:           fmt.Sprintf("redis://%s/0", mr.Addr()),
		ChessSessionTTLSec: 60,
		ChessHistoryLimit:  10,
	}
	deps, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer deps.Close()

	if deps.Engine.Running() {
		t.Fatalf("engine should not be running")
	}
	if deps.Handler == nil || deps.Service == nil {
		t.Fatalf("incomplete deps: %+v", deps)
	}
	if err := deps.Service.RestartEngine(context.Background()); err == nil {
		t.Fatalf("restart should fail without a binary")
	}
	if _, err := deps.Service.Evaluate(context.Background(), corechess.StartFEN); err == nil {
		t.Fatalf("evaluate should fail with the engine down")
	}
}

func TestNewRejectsBadRedisURL(t *testing.T) {
	cfg := &config.AppConfig{StockfishPath: "stockfish-missing", RedisURL: "http://localhost"}
	if _, err := New(context.Background(), cfg, nil); err == nil {
		t.Fatalf("expected redis url error")
	}
}
