package chess

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	corechess "github.com/vitoskycl/web-chess/internal/chess"
	"github.com/vitoskycl/web-chess/internal/chess/eval"
	"github.com/vitoskycl/web-chess/internal/chess/pgn"
	"github.com/vitoskycl/web-chess/internal/domain"
)

const (
	ColorWhite = "white"
	ColorBlack = "black"
)

const (
	defaultMoveBudget  = 200 * time.Millisecond
	defaultEvalBudget  = 100 * time.Millisecond
	defaultHistorySize = 10
	maxHistoryLimit    = 50
	persistTimeout     = 3 * time.Second
)

// Status is the coarse state of the live session.
type Status string

const (
	StatusAwaitingInput  Status = "awaiting_input"
	StatusEngineThinking Status = "engine_thinking"
	StatusGameOver       Status = "game_over"
)

// Engine is the part of the engine client the service drives.
type Engine interface {
	Configure(ctx context.Context, level int) error
	NewGame(ctx context.Context) error
	BestMove(ctx context.Context, pos corechess.Position, budget time.Duration) (corechess.Move, error)
	Analyse(ctx context.Context, pos corechess.Position, budget time.Duration) (corechess.Score, error)
	Restart(ctx context.Context) error
	Level() int
}

type Config struct {
	MoveBudget   time.Duration
	EvalBudget   time.Duration
	DefaultLevel int
	HistoryLimit int
	Event        string
	Site         string
}

type MoveResult struct {
	PlayerMove string
	EngineMove string
	EngineSAN  string
	FEN        string
	GameOver   bool
	Result     string
	Method     string
}

type ResetResult struct {
	SessionUUID  string
	FEN          string
	Level        int
	EnginePlayed bool
	EngineMove   string
}

// SessionState is a read-only view of the live session.
type SessionState struct {
	SessionUUID string
	FEN         string
	Moves       []string
	Level       int
	EngineColor string
	Status      Status
	GameOver    bool
	Result      string
	Method      string
	StartedAt   time.Time
	UpdatedAt   time.Time
}

// session is replaced wholesale on every commit; line is copy-on-write.
type session struct {
	uuid        string
	line        corechess.Line
	level       int
	engineColor string // "w" or "b"
	startedAt   time.Time
	updatedAt   time.Time
	archived    bool
}

func (s session) gameOver() bool { return s.line.IsTerminal() }

func (s session) engineToMove() bool { return s.line.Current().Turn() == s.engineColor }

// published is what readers see: the last committed session and whether
// the engine is searching on top of it.
type published struct {
	cur      session
	thinking bool
}

// Service owns the single game played against the engine. Mutations hold
// the write lock across the engine call so each request is one atomic turn.
// Readers load the published session and never wait on a turn.
type Service struct {
	engine   Engine
	store    Store
	repo     Repository
	renderer BoardRenderer
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time

	mu   sync.RWMutex
	live atomic.Pointer[published]
}

func NewService(engine Engine, store Store, repo Repository, renderer BoardRenderer, cfg Config, logger *zap.Logger) (*Service, error) {
	if engine == nil {
		return nil, fmt.Errorf("chess engine is required")
	}
	if store == nil {
		store = NewMemoryStore()
	}
	if repo == nil {
		repo = NewMemoryRepository()
	}
	if renderer == nil {
		renderer = NewBoardRenderer(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MoveBudget <= 0 {
		cfg.MoveBudget = defaultMoveBudget
	}
	if cfg.EvalBudget <= 0 {
		cfg.EvalBudget = defaultEvalBudget
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistorySize
	}
	cfg.DefaultLevel = corechess.ClampLevel(cfg.DefaultLevel)

	s := &Service{
		engine:   engine,
		store:    store,
		repo:     repo,
		renderer: renderer,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
	s.publish(s.newSession(corechess.StartPosition(), cfg.DefaultLevel, "b"), false)
	return s, nil
}

func (s *Service) newSession(base corechess.Position, level int, engineColor string) session {
	now := s.now()
	return session{
		uuid:        uuid.NewString(),
		line:        corechess.NewLine(base),
		level:       level,
		engineColor: engineColor,
		startedAt:   now,
		updatedAt:   now,
	}
}

// SubmitMove plays the player's move, if any, and then the engine's reply.
// A nil move asks the engine to play for the side to move. If the engine
// fails with a timeout or is unavailable after a valid player move, the
// player's move stays committed and the error is returned; the caller
// retries with a nil move.
func (s *Service) SubmitMove(ctx context.Context, moveText *string) (MoveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.committed()
	playerMoved := false
	var res MoveResult

	if moveText != nil {
		if cur.gameOver() {
			return MoveResult{}, fmt.Errorf("%w: game is over", corechess.ErrIllegalMove)
		}
		if cur.engineToMove() {
			return MoveResult{}, fmt.Errorf("%w: waiting for the engine's reply", corechess.ErrIllegalMove)
		}
		m, err := corechess.ParseMove(strings.TrimSpace(*moveText))
		if err != nil {
			return MoveResult{}, err
		}
		next, err := cur.line.Push(m)
		if err != nil {
			return MoveResult{}, err
		}
		cur.line = next
		playerMoved = true
		res.PlayerMove = m.String()
	} else if cur.gameOver() {
		return resultOf(cur, res), nil
	}

	if cur.gameOver() {
		s.commit(ctx, cur)
		return resultOf(cur, res), nil
	}

	pos := cur.line.Current()
	done := s.think()
	defer done()
	reply, err := s.engine.BestMove(ctx, pos, s.cfg.MoveBudget)
	if err != nil {
		s.logger.Warn("engine_reply_failed",
			zap.String("session_uuid", cur.uuid),
			zap.String("fen", pos.String()),
			zap.Bool("player_moved", playerMoved),
			zap.Error(err),
		)
		if playerMoved && corechess.Retryable(err) {
			s.commit(ctx, cur)
			return resultOf(cur, res), err
		}
		return MoveResult{}, err
	}

	san, err := pos.SAN(reply)
	if err != nil {
		return MoveResult{}, fmt.Errorf("%w: %v", corechess.ErrEngineProtocol, err)
	}
	next, err := cur.line.Push(reply)
	if err != nil {
		return MoveResult{}, fmt.Errorf("%w: %v", corechess.ErrEngineProtocol, err)
	}
	cur.line = next
	cur.engineColor = pos.Turn()
	res.EngineMove = reply.String()
	res.EngineSAN = san

	s.commit(ctx, cur)
	s.logger.Debug("chess_turn_committed",
		zap.String("session_uuid", cur.uuid),
		zap.String("player_move", res.PlayerMove),
		zap.String("engine_move", res.EngineMove),
		zap.Int("ply", cur.line.Len()),
	)
	return resultOf(cur, res), nil
}

func resultOf(cur session, res MoveResult) MoveResult {
	res.FEN = cur.line.Current().String()
	res.Result, res.Method = cur.line.Outcome()
	res.GameOver = res.Method != ""
	return res
}

// Reset starts a new game from the standard position at the given level.
// When color is "black" the engine opens; if that reply fails the new
// session is kept and the error is returned.
func (s *Service) Reset(ctx context.Context, level int, color string) (ResetResult, error) {
	level = corechess.ClampLevel(level)
	humanBlack := strings.EqualFold(strings.TrimSpace(color), ColorBlack)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.engine.Configure(ctx, level); err != nil {
		prev := s.engine.Level()
		s.logger.Warn("engine_configure_failed",
			zap.Int("level", level),
			zap.Int("kept_level", prev),
			zap.Error(err),
		)
		level = prev
	}
	if err := s.engine.NewGame(ctx); err != nil {
		s.logger.Debug("engine_new_game_failed", zap.Error(err))
	}

	engineColor := "b"
	if humanBlack {
		engineColor = "w"
	}
	fresh := s.newSession(corechess.StartPosition(), level, engineColor)
	s.commit(ctx, fresh)
	s.logger.Info("chess_session_reset",
		zap.String("session_uuid", fresh.uuid),
		zap.Int("level", level),
		zap.String("engine_color", colorName(engineColor)),
	)

	res := ResetResult{SessionUUID: fresh.uuid, FEN: fresh.line.Current().String(), Level: level}
	if !humanBlack {
		return res, nil
	}

	pos := fresh.line.Current()
	done := s.think()
	defer done()
	reply, err := s.engine.BestMove(ctx, pos, s.cfg.MoveBudget)
	if err != nil {
		s.logger.Warn("engine_opening_reply_failed", zap.String("session_uuid", fresh.uuid), zap.Error(err))
		return res, err
	}
	next, err := fresh.line.Push(reply)
	if err != nil {
		return res, fmt.Errorf("%w: %v", corechess.ErrEngineProtocol, err)
	}
	fresh.line = next
	s.commit(ctx, fresh)

	res.FEN = next.Current().String()
	res.EnginePlayed = true
	res.EngineMove = reply.String()
	return res, nil
}

// ImportGameRecord replaces the session with the final position of the
// first game in text. History restarts from that position, so the player
// continues as the side to move.
func (s *Service) ImportGameRecord(ctx context.Context, text string) (corechess.Position, error) {
	pos, err := pgn.Decode(text)
	if err != nil {
		return corechess.Position{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	engineColor := "b"
	if pos.Turn() == "b" {
		engineColor = "w"
	}
	fresh := s.newSession(pos, s.committed().level, engineColor)
	s.commit(ctx, fresh)
	s.logger.Info("chess_game_imported",
		zap.String("session_uuid", fresh.uuid),
		zap.String("fen", pos.String()),
	)
	return pos, nil
}

// Evaluate scores fen on the 0..100 scale, 50 being equal and 100 a win
// for White. A blank fen evaluates the session's current position.
func (s *Service) Evaluate(ctx context.Context, fen string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pos := s.committed().line.Current()
	if strings.TrimSpace(fen) != "" {
		parsed, err := corechess.Parse(fen)
		if err != nil {
			return 0, err
		}
		pos = parsed
	}
	score, err := s.engine.Analyse(ctx, pos, s.cfg.EvalBudget)
	if err != nil {
		return 0, err
	}
	return eval.Normalize(score), nil
}

// History renders the session as PGN.
func (s *Service) History(ctx context.Context) (string, error) {
	return s.encode(s.committed())
}

func (s *Service) encode(cur session) (string, error) {
	engine := fmt.Sprintf("Stockfish (level %d)", cur.level)
	h := pgn.Header{
		Event: s.cfg.Event,
		Site:  s.cfg.Site,
		Date:  cur.startedAt,
		White: "Player",
		Black: engine,
	}
	if cur.engineColor == "w" {
		h.White, h.Black = engine, "Player"
	}
	return pgn.Encode(cur.line, h)
}

func (s *Service) State() SessionState {
	view := s.live.Load()
	cur := view.cur

	result, method := cur.line.Outcome()
	st := SessionState{
		SessionUUID: cur.uuid,
		FEN:         cur.line.Current().String(),
		Moves:       corechess.MovesToUCI(cur.line.Moves()),
		Level:       cur.level,
		EngineColor: colorName(cur.engineColor),
		Status:      StatusAwaitingInput,
		GameOver:    method != "",
		Result:      result,
		Method:      method,
		StartedAt:   cur.startedAt,
		UpdatedAt:   cur.updatedAt,
	}
	switch {
	case st.GameOver:
		st.Status = StatusGameOver
	case view.thinking:
		st.Status = StatusEngineThinking
	}
	return st
}

// Snapshot returns the persisted form of the session.
func (s *Service) Snapshot() Snapshot {
	return snapshotOf(s.committed())
}

func snapshotOf(cur session) Snapshot {
	return Snapshot{
		SessionUUID: cur.uuid,
		BaseFEN:     cur.line.Base().String(),
		Moves:       corechess.MovesToUCI(cur.line.Moves()),
		Level:       cur.level,
		EngineColor: colorName(cur.engineColor),
		Archived:    cur.archived,
		StartedAt:   cur.startedAt,
		UpdatedAt:   cur.updatedAt,
	}
}

// Restore loads the stored snapshot, if any, and makes it the live
// session. A snapshot that no longer replays is logged and skipped.
func (s *Service) Restore(ctx context.Context) error {
	snap, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load session snapshot: %w", err)
	}
	if snap == nil {
		return nil
	}
	restored, err := sessionFromSnapshot(snap)
	if err != nil {
		s.logger.Warn("chess_snapshot_ignored", zap.String("session_uuid", snap.SessionUUID), zap.Error(err))
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.engine.Configure(ctx, restored.level); err != nil {
		s.logger.Warn("engine_configure_failed", zap.Int("level", restored.level), zap.Error(err))
	}
	s.publish(restored, false)
	s.logger.Info("chess_session_restored",
		zap.String("session_uuid", restored.uuid),
		zap.Int("ply", restored.line.Len()),
	)
	return nil
}

func sessionFromSnapshot(snap *Snapshot) (session, error) {
	base, err := corechess.Parse(snap.BaseFEN)
	if err != nil {
		return session{}, err
	}
	moves := make([]corechess.Move, 0, len(snap.Moves))
	for _, text := range snap.Moves {
		m, err := corechess.ParseMove(text)
		if err != nil {
			return session{}, err
		}
		moves = append(moves, m)
	}
	line, err := corechess.ReplayLine(base, moves)
	if err != nil {
		return session{}, err
	}
	engineColor := "b"
	if snap.EngineColor == ColorWhite {
		engineColor = "w"
	}
	if strings.TrimSpace(snap.SessionUUID) == "" {
		return session{}, errors.New("snapshot has no session uuid")
	}
	return session{
		uuid:        snap.SessionUUID,
		line:        line,
		level:       corechess.ClampLevel(snap.Level),
		engineColor: engineColor,
		startedAt:   snap.StartedAt,
		updatedAt:   snap.UpdatedAt,
		archived:    snap.Archived,
	}, nil
}

// RestartEngine replaces the engine process. It waits for any turn in
// progress.
func (s *Service) RestartEngine(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.engine.Restart(ctx); err != nil {
		s.logger.Warn("engine_restart_failed", zap.Error(err))
		return err
	}
	return nil
}

// RecentGames lists archived games, newest first.
func (s *Service) RecentGames(ctx context.Context, limit int) ([]*domain.ChessGame, error) {
	if limit <= 0 {
		limit = s.cfg.HistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return s.repo.RecentGames(ctx, limit)
}

// RenderBoard draws the current position as PNG from the player's side.
func (s *Service) RenderBoard(ctx context.Context) ([]byte, error) {
	cur := s.committed()

	pos := cur.line.Current()
	opts := RenderOptions{Flip: cur.engineColor == "w", Caption: caption(cur)}
	if last, ok := cur.line.Last(); ok {
		opts.Highlight = &MoveHighlight{From: squareOf(last.From), To: squareOf(last.To)}
	}
	board := pos.Board()
	if pos.InCheck() {
		if sq, ok := kingSquare(board, pos.Turn()); ok {
			opts.Check = &sq
		}
	}
	return s.renderer.RenderPNG(ctx, board, opts)
}

func caption(cur session) string {
	result, method := cur.line.Outcome()
	if method != "" {
		return fmt.Sprintf("%s  %s", result, strings.ReplaceAll(method, "_", " "))
	}
	return fmt.Sprintf("level %d  %s to move", cur.level, colorName(cur.line.Current().Turn()))
}

func squareOf(text string) nchess.Square {
	return nchess.NewSquare(nchess.File(text[0]-'a'), nchess.Rank(text[1]-'1'))
}

func kingSquare(board *nchess.Board, turn string) (nchess.Square, bool) {
	want := nchess.White
	if turn == "b" {
		want = nchess.Black
	}
	for sq, p := range board.SquareMap() {
		if p.Type() == nchess.King && p.Color() == want {
			return sq, true
		}
	}
	return nchess.NoSquare, false
}

func colorName(side string) string {
	if side == "w" {
		return ColorWhite
	}
	return ColorBlack
}

// commit installs cur as the live session, archives it once when the game
// has ended and saves the snapshot. Storage failures are logged only.
func (s *Service) commit(ctx context.Context, cur session) {
	cur.updatedAt = s.now()
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if cur.gameOver() && !cur.archived && cur.line.Len() > 0 {
		cur.archived = s.archive(pctx, cur)
	}
	s.publish(cur, false)

	snap := snapshotOf(cur)
	if err := s.store.Save(pctx, &snap); err != nil {
		s.logger.Warn("chess_snapshot_save_failed", zap.String("session_uuid", cur.uuid), zap.Error(err))
	}
}

func (s *Service) committed() session {
	return s.live.Load().cur
}

// publish and think are called with mu held.
func (s *Service) publish(cur session, thinking bool) {
	s.live.Store(&published{cur: cur, thinking: thinking})
}

// think marks the engine as searching on the committed session until the
// returned func runs or the next commit lands.
func (s *Service) think() func() {
	s.publish(s.committed(), true)
	return func() {
		if view := s.live.Load(); view.thinking {
			s.publish(view.cur, false)
		}
	}
}

func (s *Service) archive(ctx context.Context, cur session) bool {
	text, err := s.encode(cur)
	if err != nil {
		s.logger.Warn("chess_archive_encode_failed", zap.String("session_uuid", cur.uuid), zap.Error(err))
		return false
	}
	moves := cur.line.Moves()
	sans := make([]string, len(moves))
	for i, m := range moves {
		if san, err := cur.line.PositionBefore(i).SAN(m); err == nil {
			sans[i] = san
		}
	}
	result, method := cur.line.Outcome()
	eco, _ := pgn.Opening(cur.line)
	game := &domain.ChessGame{
		SessionUUID:  cur.uuid,
		Level:        cur.level,
		PlayerColor:  colorName(opposite(cur.engineColor)),
		Result:       result,
		ResultMethod: method,
		MovesUCI:     corechess.MovesToUCI(moves),
		MovesSAN:     sans,
		PGN:          text,
		StartFEN:     cur.line.Base().String(),
		FinalFEN:     cur.line.Current().String(),
		ECO:          eco,
		StartedAt:    cur.startedAt,
		EndedAt:      cur.updatedAt,
		Duration:     cur.updatedAt.Sub(cur.startedAt),
	}

	id, err := s.repo.InsertGame(ctx, game)
	switch {
	case errors.Is(err, ErrDuplicateGame):
		return true
	case err != nil:
		s.logger.Warn("chess_archive_failed", zap.String("session_uuid", cur.uuid), zap.Error(err))
		return false
	}
	s.logger.Info("chess_game_archived",
		zap.Int64("game_id", id),
		zap.String("session_uuid", cur.uuid),
		zap.String("result", result),
		zap.String("method", method),
	)
	return true
}

func opposite(side string) string {
	if side == "w" {
		return "b"
	}
	return "w"
}
