// Package ucitest provides a scripted UCI engine for tests. It speaks the
// protocol over in-memory pipes and answers searches with a configurable
// move, so engine-dependent code runs without a Stockfish binary.
package ucitest

import (
	"bufio"
	"context"
	"io"
	"sort"
	"strings"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"go.uber.org/zap"

	"github.com/vitoskycl/web-chess/internal/chess/uci"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

type Engine struct {
	mu       sync.Mutex
	reply    func(fen string) string
	score    string
	silent   bool
	pending  bool
	fen      string
	commands []string

	inR  *io.PipeReader
	inW  *io.PipeWriter
	outR *io.PipeReader
	outW *io.PipeWriter
}

// New starts a scripted engine. By default it answers every search with
// the first legal move in coordinate order and reports "cp 20".
func New() *Engine {
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	e := &Engine{
		score: "cp 20",
		fen:   startFEN,
		inR:   inR,
		inW:   inW,
		outR:  outR,
		outW:  outW,
	}
	go e.serve()
	return e
}

// Session performs the UCI handshake against e.
func (e *Engine) Session(ctx context.Context, opt uci.Options) (*uci.Session, error) {
	return uci.NewSessionWithIO(ctx, e.inW, e.outR, opt, zap.NewNop())
}

// SetReply overrides the bestmove chosen for a position.
func (e *Engine) SetReply(fn func(fen string) string) {
	e.mu.Lock()
	e.reply = fn
	e.mu.Unlock()
}

// SetScore sets the score reported before bestmove, e.g. "cp -35" or "mate 2".
func (e *Engine) SetScore(score string) {
	e.mu.Lock()
	e.score = score
	e.mu.Unlock()
}

// SetSilent makes the engine swallow searches until "stop" arrives.
func (e *Engine) SetSilent(silent bool) {
	e.mu.Lock()
	e.silent = silent
	e.mu.Unlock()
}

// Crash closes both pipes as if the process died.
func (e *Engine) Crash() {
	_ = e.outW.Close()
	_ = e.inR.CloseWithError(io.ErrClosedPipe)
}

// Commands returns every line received so far.
func (e *Engine) Commands() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.commands...)
}

// LastCommand returns the most recent line starting with prefix.
func (e *Engine) LastCommand(prefix string) string {
	cmds := e.Commands()
	for i := len(cmds) - 1; i >= 0; i-- {
		if strings.HasPrefix(cmds[i], prefix) {
			return cmds[i]
		}
	}
	return ""
}

func (e *Engine) serve() {
	defer e.outW.Close()
	sc := bufio.NewScanner(e.inR)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		e.mu.Lock()
		e.commands = append(e.commands, line)
		e.mu.Unlock()

		switch {
		case line == "uci":
			e.write("id name ucitest", "uciok")
		case line == "isready":
			e.write("readyok")
		case strings.HasPrefix(line, "position "):
			fen := positionFEN(line)
			e.mu.Lock()
			e.fen = fen
			e.mu.Unlock()
		case strings.HasPrefix(line, "go"):
			e.mu.Lock()
			silent := e.silent
			if silent {
				e.pending = true
			}
			e.mu.Unlock()
			if !silent {
				e.answer()
			}
		case line == "stop":
			e.mu.Lock()
			pending := e.pending
			e.pending = false
			e.mu.Unlock()
			if pending {
				e.answer()
			}
		case line == "quit":
			return
		}
	}
}

func (e *Engine) answer() {
	e.mu.Lock()
	fen, score, reply := e.fen, e.score, e.reply
	e.mu.Unlock()

	move := ""
	if reply != nil {
		move = reply(fen)
	} else {
		move = firstLegalMove(fen)
	}
	if move == "" {
		e.write("info depth 0 score mate 0", "bestmove (none)")
		return
	}
	e.write("info depth 12 seldepth 14 score "+score+" nodes 1000 pv "+move, "bestmove "+move)
}

func (e *Engine) write(lines ...string) {
	for _, l := range lines {
		if _, err := io.WriteString(e.outW, l+"\n"); err != nil {
			return
		}
	}
}

func positionFEN(line string) string {
	fields := strings.Fields(line)
	fen := startFEN
	rest := fields[1:]
	if len(rest) > 0 && rest[0] == "fen" && len(rest) >= 7 {
		fen = strings.Join(rest[1:7], " ")
		rest = rest[7:]
	} else if len(rest) > 0 && rest[0] == "startpos" {
		rest = rest[1:]
	}
	if len(rest) == 0 || rest[0] != "moves" {
		return fen
	}
	opt, err := nchess.FEN(fen)
	if err != nil {
		return fen
	}
	g := nchess.NewGame(opt)
	for _, mv := range rest[1:] {
		if err := g.PushNotationMove(mv, nchess.UCINotation{}, nil); err != nil {
			break
		}
	}
	return g.Position().String()
}

// FirstLegalMove is the default reply: the smallest legal move in
// coordinate order, or "" when there is none.
func FirstLegalMove(fen string) string {
	return firstLegalMove(fen)
}

func firstLegalMove(fen string) string {
	opt, err := nchess.FEN(fen)
	if err != nil {
		return ""
	}
	g := nchess.NewGame(opt)
	var moves []string
	for _, mv := range g.ValidMoves() {
		moves = append(moves, mv.String())
	}
	if len(moves) == 0 {
		return ""
	}
	sort.Strings(moves)
	return moves[0]
}
