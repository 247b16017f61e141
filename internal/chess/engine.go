package chess

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vitoskycl/web-chess/internal/chess/uci"
)

const (
	MinLevel = 0
	MaxLevel = 20
)

// Spawner starts a fresh engine process configured at the given level.
type Spawner func(ctx context.Context, level int) (*uci.Session, error)

// ProcessSpawner launches the binary at path for every spawn.
func ProcessSpawner(path string, opt uci.Options, logger *zap.Logger) Spawner {
	return func(ctx context.Context, level int) (*uci.Session, error) {
		o := opt
		o.SkillLevel = level
		return uci.NewSession(ctx, path, o, logger)
	}
}

// Engine is the client for one long-lived engine process. It is never
// restarted behind the caller's back: after a crash every call fails with
// ErrEngineUnavailable until Restart is called.
type Engine struct {
	spawn  Spawner
	logger *zap.Logger

	mu      sync.Mutex
	session *uci.Session
	level   int
}

func NewEngine(spawn Spawner, level int, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{spawn: spawn, level: ClampLevel(level), logger: logger}
}

func ClampLevel(level int) int {
	if level < MinLevel {
		return MinLevel
	}
	if level > MaxLevel {
		return MaxLevel
	}
	return level
}

// Start spawns the engine process if none is running.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session != nil {
		return nil
	}
	return e.startLocked(ctx)
}

func (e *Engine) startLocked(ctx context.Context) error {
	if e.spawn == nil {
		return fmt.Errorf("%w: no engine configured", ErrEngineUnavailable)
	}
	s, err := e.spawn(ctx, e.level)
	if err != nil {
		return mapEngineError(fmt.Errorf("start engine: %w", err))
	}
	e.session = s
	return nil
}

// Restart replaces the engine process, keeping the current level.
func (e *Engine) Restart(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session != nil {
		if err := e.session.Close(); err != nil {
			e.logger.Debug("engine_close_on_restart", zap.Error(err))
		}
		e.session = nil
	}
	if err := e.startLocked(ctx); err != nil {
		return err
	}
	e.logger.Info("engine_restarted", zap.Int("level", e.level))
	return nil
}

func (e *Engine) Level() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.level
}

// Running reports whether a process is attached and its output still open.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session != nil && e.session.Alive()
}

func (e *Engine) current() (*uci.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil, fmt.Errorf("%w: engine not started", ErrEngineUnavailable)
	}
	if !e.session.Alive() {
		return nil, fmt.Errorf("%w: engine process exited", ErrEngineUnavailable)
	}
	return e.session, nil
}

// Configure sets the playing strength. On failure the previous level stays
// in effect.
func (e *Engine) Configure(ctx context.Context, level int) error {
	level = ClampLevel(level)
	s, err := e.current()
	if err != nil {
		return err
	}
	if err := s.SetSkillLevel(ctx, level); err != nil {
		return mapEngineError(fmt.Errorf("configure skill level %d: %w", level, err))
	}
	e.mu.Lock()
	e.level = level
	e.mu.Unlock()
	return nil
}

// NewGame tells the engine a new game starts so it drops its search state.
func (e *Engine) NewGame(ctx context.Context) error {
	s, err := e.current()
	if err != nil {
		return err
	}
	if err := s.NewGame(ctx); err != nil {
		return mapEngineError(err)
	}
	return nil
}

// BestMove searches pos for budget and returns a move legal in pos.
func (e *Engine) BestMove(ctx context.Context, pos Position, budget time.Duration) (Move, error) {
	resp, err := e.search(ctx, pos, budget)
	if err != nil {
		return Move{}, err
	}
	m, err := ParseMove(resp.BestMove)
	if err != nil {
		return Move{}, fmt.Errorf("%w: bestmove %q", ErrEngineProtocol, resp.BestMove)
	}
	if !pos.IsLegal(m) {
		return Move{}, fmt.Errorf("%w: bestmove %s is illegal in %s", ErrEngineProtocol, m, pos)
	}
	return m, nil
}

// Analyse searches pos for budget and returns the final score from White's
// point of view.
func (e *Engine) Analyse(ctx context.Context, pos Position, budget time.Duration) (Score, error) {
	resp, err := e.search(ctx, pos, budget)
	if err != nil {
		return Score{}, err
	}
	if resp.Score == nil {
		return Score{}, fmt.Errorf("%w: search finished without a score", ErrEngineProtocol)
	}
	return EngineScore(resp.Score.Kind, resp.Score.Value, pos.Turn())
}

func (e *Engine) search(ctx context.Context, pos Position, budget time.Duration) (uci.SearchResponse, error) {
	s, err := e.current()
	if err != nil {
		return uci.SearchResponse{}, err
	}
	ms := int(budget / time.Millisecond)
	if ms <= 0 {
		ms = 1
	}
	start := time.Now()
	resp, err := s.Search(ctx, uci.SearchRequest{
		FEN:    pos.String(),
		Limits: uci.Limits{MoveTimeMillis: ms},
	})
	if err != nil {
		return uci.SearchResponse{}, mapEngineError(err)
	}
	e.logger.Debug("engine_search",
		zap.String("fen", pos.String()),
		zap.String("bestmove", resp.BestMove),
		zap.Int("depth", resp.Depth),
		zap.Duration("elapsed", time.Since(start)),
	)
	return resp, nil
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil
	}
	err := e.session.Close()
	e.session = nil
	return err
}

func mapEngineError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %v", ErrEngineTimeout, err)
	case errors.Is(err, uci.ErrProtocol):
		return fmt.Errorf("%w: %v", ErrEngineProtocol, err)
	case errors.Is(err, ErrEngineUnavailable), errors.Is(err, ErrEngineTimeout), errors.Is(err, ErrEngineProtocol):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
}
