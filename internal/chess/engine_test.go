package chess

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vitoskycl/web-chess/internal/chess/uci"
	"github.com/vitoskycl/web-chess/internal/chess/uci/ucitest"
)

type fakeFleet struct {
	mu      sync.Mutex
	engines []*ucitest.Engine
	setup   func(*ucitest.Engine)
}

func (f *fakeFleet) spawn(ctx context.Context, level int) (*uci.Session, error) {
	eng := ucitest.New()
	if f.setup != nil {
		f.setup(eng)
	}
	f.mu.Lock()
	f.engines = append(f.engines, eng)
	f.mu.Unlock()
	return eng.Session(ctx, uci.Options{SkillLevel: level, Grace: 50 * time.Millisecond})
}

func (f *fakeFleet) latest() *ucitest.Engine {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.engines[len(f.engines)-1]
}

func startedEngine(t *testing.T, fleet *fakeFleet, level int) *Engine {
	t.Helper()
	e := NewEngine(fleet.spawn, level, nil)
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func TestEngineBestMoveIsLegal(t *testing.T) {
	fleet := &fakeFleet{}
	e := startedEngine(t, fleet, 3)
	m, err := e.BestMove(context.Background(), StartPosition(), 20*time.Millisecond)
	if err != nil {
		t.Fatalf("BestMove: %v", err)
	}
	if !StartPosition().IsLegal(m) {
		t.Fatalf("engine move %s is not legal", m)
	}
}

func TestEngineRejectsIllegalBestMove(t *testing.T) {
	fleet := &fakeFleet{setup: func(e *ucitest.Engine) {
		e.SetReply(func(string) string { return "e2e5" })
	}}
	e := startedEngine(t, fleet, 0)
	_, err := e.BestMove(context.Background(), StartPosition(), 20*time.Millisecond)
	if !errors.Is(err, ErrEngineProtocol) {
		t.Fatalf("expected ErrEngineProtocol, got %v", err)
	}
}

func TestEngineGarbageBestMove(t *testing.T) {
	fleet := &fakeFleet{setup: func(e *ucitest.Engine) {
		e.SetReply(func(string) string { return "nonsense" })
	}}
	e := startedEngine(t, fleet, 0)
	_, err := e.BestMove(context.Background(), StartPosition(), 20*time.Millisecond)
	if !errors.Is(err, ErrEngineProtocol) {
		t.Fatalf("expected ErrEngineProtocol, got %v", err)
	}
}

func TestEngineTimeout(t *testing.T) {
	fleet := &fakeFleet{setup: func(e *ucitest.Engine) { e.SetSilent(true) }}
	e := startedEngine(t, fleet, 0)
	_, err := e.BestMove(context.Background(), StartPosition(), 10*time.Millisecond)
	if !errors.Is(err, ErrEngineTimeout) {
		t.Fatalf("expected ErrEngineTimeout, got %v", err)
	}
}

func TestEngineAnalyseWhitePerspective(t *testing.T) {
	fleet := &fakeFleet{setup: func(e *ucitest.Engine) { e.SetScore("cp 120") }}
	e := startedEngine(t, fleet, 0)
	black, err := StartPosition().Apply(Move{From: "e2", To: "e4"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	score, err := e.Analyse(context.Background(), black, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("Analyse: %v", err)
	}
	if score.IsMate() || score.Centipawns() != -120 {
		t.Fatalf("expected -120 for white, got %s", score)
	}
}

func TestEngineCrashNeedsExplicitRestart(t *testing.T) {
	fleet := &fakeFleet{}
	e := startedEngine(t, fleet, 5)
	fleet.latest().Crash()

	deadline := time.Now().Add(time.Second)
	for e.Running() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if _, err := e.BestMove(context.Background(), StartPosition(), 10*time.Millisecond); !errors.Is(err, ErrEngineUnavailable) {
		t.Fatalf("expected ErrEngineUnavailable, got %v", err)
	}
	if _, err := e.BestMove(context.Background(), StartPosition(), 10*time.Millisecond); !errors.Is(err, ErrEngineUnavailable) {
		t.Fatalf("engine must not restart on its own, got %v", err)
	}

	if err := e.Restart(context.Background()); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if _, err := e.BestMove(context.Background(), StartPosition(), 10*time.Millisecond); err != nil {
		t.Fatalf("BestMove after restart: %v", err)
	}
	handshake := fleet.latest().LastCommand("setoption name Skill Level")
	if handshake != "setoption name Skill Level value 5" {
		t.Fatalf("restart lost the level: %q", handshake)
	}
}

func TestEngineConfigure(t *testing.T) {
	fleet := &fakeFleet{}
	e := startedEngine(t, fleet, 0)
	if err := e.Configure(context.Background(), 42); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if e.Level() != MaxLevel {
		t.Fatalf("expected clamped level %d, got %d", MaxLevel, e.Level())
	}
	if got := fleet.latest().LastCommand("setoption name Skill Level"); got != "setoption name Skill Level value 20" {
		t.Fatalf("unexpected command %q", got)
	}
}

func TestEngineNotStarted(t *testing.T) {
	e := NewEngine(nil, 0, nil)
	if err := e.Start(context.Background()); !errors.Is(err, ErrEngineUnavailable) {
		t.Fatalf("expected ErrEngineUnavailable, got %v", err)
	}
	if _, err := e.Analyse(context.Background(), StartPosition(), time.Millisecond); !errors.Is(err, ErrEngineUnavailable) {
		t.Fatalf("expected ErrEngineUnavailable, got %v", err)
	}
}
