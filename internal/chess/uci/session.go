package uci

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultReadyTimeout = 4 * time.Second
	defaultGrace        = 2 * time.Second
	lineBuffer          = 256
)

var (
	// ErrNotRunning means the engine process exited or its pipes are closed.
	ErrNotRunning = errors.New("engine process not running")
	// ErrProtocol means the engine answered with something unparsable.
	ErrProtocol = errors.New("unexpected engine output")
)

type Options struct {
	Threads    int
	HashMB     int
	SkillLevel int
	// Grace is added to every search budget before the search is abandoned.
	Grace time.Duration
}

type Limits struct {
	MoveTimeMillis int
}

// Score is a raw UCI score, relative to the side to move.
type Score struct {
	Kind  string
	Value int
}

type SearchRequest struct {
	FEN    string
	Limits Limits
}

type SearchResponse struct {
	BestMove  string
	Score     *Score
	Depth     int
	Principal []string
}

// Session drives one engine process over its stdin/stdout pipes. A reader
// goroutine owns stdout; requests are serialised by the search mutex.
type Session struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	lines  chan string
	done   chan struct{}
	quit   chan struct{}
	grace  time.Duration
	logger *zap.Logger

	readErr error

	mu     sync.Mutex
	search sync.Mutex
	// stale is set when a search was abandoned and its bestmove may still
	// arrive. Guarded by search.
	stale bool

	closeOnce sync.Once
	closeErr  error
}

func NewSession(ctx context.Context, binaryPath string, opt Options, logger *zap.Logger) (*Session, error) {
	if strings.TrimSpace(binaryPath) == "" {
		return nil, fmt.Errorf("%w: binary path required", ErrNotRunning)
	}
	if _, err := os.Stat(binaryPath); err != nil {
		return nil, fmt.Errorf("%w: stockfish binary check: %v", ErrNotRunning, err)
	}
	if err := validateOptions(opt); err != nil {
		return nil, err
	}

	// Not CommandContext: the process outlives the startup context.
	cmd := exec.Command(binaryPath)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdoutPipe.Close()
		return nil, fmt.Errorf("%w: start engine: %v", ErrNotRunning, err)
	}

	s := newSession(stdin, stdoutPipe, opt, logger)
	s.cmd = cmd
	if err := s.initialize(ctx, opt); err != nil {
		s.Close()
		return nil, err
	}
	s.logger.Info("uci_engine_started",
		zap.String("binary", binaryPath),
		zap.Int("pid", cmd.Process.Pid),
		zap.Int("skill_level", opt.SkillLevel),
	)
	return s, nil
}

// NewSessionWithIO runs the handshake over arbitrary pipes. Closing stdout
// is treated as the engine exiting.
func NewSessionWithIO(ctx context.Context, stdin io.WriteCloser, stdout io.Reader, opt Options, logger *zap.Logger) (*Session, error) {
	if err := validateOptions(opt); err != nil {
		return nil, err
	}
	s := newSession(stdin, stdout, opt, logger)
	if err := s.initialize(ctx, opt); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func newSession(stdin io.WriteCloser, stdout io.Reader, opt Options, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	grace := opt.Grace
	if grace <= 0 {
		grace = defaultGrace
	}
	s := &Session{
		stdin:  stdin,
		lines:  make(chan string, lineBuffer),
		done:   make(chan struct{}),
		quit:   make(chan struct{}),
		grace:  grace,
		logger: logger,
	}
	go s.pump(stdout)
	return s
}

func (s *Session) pump(r io.Reader) {
	defer close(s.done)
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			select {
			case s.lines <- trimmed:
			case <-s.quit:
				s.readErr = ErrNotRunning
				return
			}
		}
		if err != nil {
			s.readErr = err
			return
		}
	}
}

// Alive reports whether the engine's output stream is still open.
func (s *Session) Alive() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

func (s *Session) Search(ctx context.Context, req SearchRequest) (SearchResponse, error) {
	s.search.Lock()
	defer s.search.Unlock()

	if s.stale {
		if err := s.ensureReady(ctx); err != nil {
			return SearchResponse{}, fmt.Errorf("resync after abandoned search: %w", err)
		}
		s.stale = false
	}

	positionCmd := buildPositionCommand(req.FEN)
	if err := s.send(positionCmd); err != nil {
		return SearchResponse{}, fmt.Errorf("send position: %w", err)
	}

	goTokens, err := buildGoTokens(req.Limits)
	if err != nil {
		return SearchResponse{}, err
	}
	goCmd := strings.Join(goTokens, " ")
	if err := s.send(goCmd + "\n"); err != nil {
		return SearchResponse{}, fmt.Errorf("send go: %w", err)
	}

	searchCtx, cancel := context.WithTimeout(ctx, s.searchTimeout(req.Limits))
	defer cancel()

	var resp SearchResponse
	for {
		line, err := s.readLine(searchCtx)
		if err != nil {
			if searchCtx.Err() != nil {
				s.stale = true
				_ = s.send("stop\n")
			}
			s.logger.Warn("uci_search_read_failed",
				zap.String("position", strings.TrimSpace(positionCmd)),
				zap.String("go", goCmd),
				zap.Error(err),
			)
			return SearchResponse{}, fmt.Errorf("read line: %w", err)
		}

		switch {
		case strings.HasPrefix(line, "info "):
			if parsed, ok := parseInfo(line); ok {
				if parsed.Score != nil {
					resp.Score = parsed.Score
				}
				if parsed.Depth > 0 {
					resp.Depth = parsed.Depth
				}
				if len(parsed.Principal) > 0 {
					resp.Principal = parsed.Principal
				}
			}
		case strings.HasPrefix(line, "bestmove"):
			parts := strings.Fields(line)
			if len(parts) < 2 {
				return SearchResponse{}, fmt.Errorf("%w: %q", ErrProtocol, line)
			}
			resp.BestMove = parts[1]
			return resp, nil
		}
	}
}

// SetSkillLevel changes playing strength and waits for the engine to
// acknowledge with readyok.
func (s *Session) SetSkillLevel(ctx context.Context, level int) error {
	if level < 0 || level > 20 {
		return fmt.Errorf("skill level %d out of range 0-20", level)
	}
	s.search.Lock()
	defer s.search.Unlock()

	if err := s.send(fmt.Sprintf("setoption name Skill Level value %d\n", level)); err != nil {
		return fmt.Errorf("send skill level: %w", err)
	}
	if err := s.ensureReady(ctx); err != nil {
		return err
	}
	s.stale = false
	return nil
}

func (s *Session) NewGame(ctx context.Context) error {
	s.search.Lock()
	defer s.search.Unlock()
	if err := s.send("ucinewgame\n"); err != nil {
		return fmt.Errorf("send ucinewgame: %w", err)
	}
	if err := s.ensureReady(ctx); err != nil {
		return err
	}
	s.stale = false
	return nil
}

// ensureReady sends isready and discards output up to readyok, which also
// drains any bestmove left over from an abandoned search.
func (s *Session) ensureReady(ctx context.Context) error {
	readyCtx, cancel := context.WithTimeout(ctx, defaultReadyTimeout)
	defer cancel()

	if err := s.send("isready\n"); err != nil {
		return fmt.Errorf("send isready: %w", err)
	}
	if err := s.awaitToken(readyCtx, "readyok"); err != nil {
		return fmt.Errorf("wait readyok: %w", err)
	}
	return nil
}

func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		close(s.quit)
		_ = s.send("quit\n")

		s.mu.Lock()
		if s.stdin != nil {
			s.stdin.Close()
		}
		s.mu.Unlock()

		if s.cmd != nil && s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
		if s.cmd != nil {
			s.closeErr = s.cmd.Wait()
		}
	})
	return s.closeErr
}

func (s *Session) initialize(ctx context.Context, opt Options) error {
	initCtx, cancel := context.WithTimeout(ctx, defaultReadyTimeout)
	defer cancel()

	if err := s.send("uci\n"); err != nil {
		return fmt.Errorf("send uci: %w", err)
	}
	if err := s.awaitToken(initCtx, "uciok"); err != nil {
		return fmt.Errorf("wait uciok: %w", err)
	}

	if err := s.applyOptions(opt); err != nil {
		return err
	}

	if err := s.send("isready\n"); err != nil {
		return fmt.Errorf("send isready: %w", err)
	}
	if err := s.awaitToken(initCtx, "readyok"); err != nil {
		return fmt.Errorf("wait readyok: %w", err)
	}
	return nil
}

func (s *Session) applyOptions(opt Options) error {
	threadCount := opt.Threads
	if threadCount <= 0 {
		threadCount = 1
	}
	cmds := []string{
		fmt.Sprintf("setoption name Threads value %d\n", threadCount),
		fmt.Sprintf("setoption name Skill Level value %d\n", opt.SkillLevel),
	}
	if opt.HashMB > 0 {
		cmds = append(cmds, fmt.Sprintf("setoption name Hash value %d\n", opt.HashMB))
	}
	for _, cmd := range cmds {
		if err := s.send(cmd); err != nil {
			return fmt.Errorf("apply options: %w", err)
		}
	}
	return nil
}

func (s *Session) send(msg string) error {
	select {
	case <-s.done:
		return fmt.Errorf("%w: %v", ErrNotRunning, s.readErr)
	default:
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := io.WriteString(s.stdin, msg); err != nil {
		return fmt.Errorf("%w: %v", ErrNotRunning, err)
	}
	return nil
}

func (s *Session) awaitToken(ctx context.Context, token string) error {
	for {
		line, err := s.readLine(ctx)
		if err != nil {
			return err
		}
		if line == token {
			return nil
		}
	}
}

func (s *Session) readLine(ctx context.Context) (string, error) {
	select {
	case line := <-s.lines:
		return line, nil
	case <-ctx.Done():
		return "", ctx.Err()
	case <-s.done:
		select {
		case line := <-s.lines:
			return line, nil
		default:
		}
		return "", fmt.Errorf("%w: %v", ErrNotRunning, s.readErr)
	}
}

// searchTimeout is only called once buildGoTokens accepted l.
func (s *Session) searchTimeout(l Limits) time.Duration {
	return time.Duration(l.MoveTimeMillis)*time.Millisecond + s.grace
}

func buildPositionCommand(fen string) string {
	if strings.TrimSpace(fen) == "" || fen == "startpos" {
		return "position startpos\n"
	}
	return "position fen " + fen + "\n"
}

func validateOptions(opt Options) error {
	if opt.SkillLevel < 0 || opt.SkillLevel > 20 {
		return fmt.Errorf("skill level %d out of range 0-20", opt.SkillLevel)
	}
	if opt.HashMB < 0 {
		return fmt.Errorf("hash size must be >= 0: %d", opt.HashMB)
	}
	return nil
}

func buildGoTokens(l Limits) ([]string, error) {
	if l.MoveTimeMillis <= 0 {
		return nil, fmt.Errorf("no search limits specified")
	}
	return []string{"go", "movetime", strconv.Itoa(l.MoveTimeMillis)}, nil
}

type info struct {
	Score     *Score
	Depth     int
	Principal []string
}

func parseInfo(line string) (info, bool) {
	parts := strings.Fields(line)
	if len(parts) == 0 || parts[0] != "info" {
		return info{}, false
	}
	var out info
	found := false
	for i := 1; i < len(parts); i++ {
		switch parts[i] {
		case "depth":
			if i+1 < len(parts) {
				if v, err := strconv.Atoi(parts[i+1]); err == nil {
					out.Depth = v
					found = true
				}
				i++
			}
		case "score":
			if i+2 < len(parts) {
				kind := parts[i+1]
				if v, err := strconv.Atoi(parts[i+2]); err == nil && (kind == "cp" || kind == "mate") {
					out.Score = &Score{Kind: kind, Value: v}
					found = true
				}
				i += 2
			}
		case "pv":
			if i+1 < len(parts) {
				out.Principal = append([]string(nil), parts[i+1:]...)
				found = true
			}
			i = len(parts)
		case "string":
			// Free text runs to the end of the line.
			i = len(parts)
		}
	}
	return out, found
}
