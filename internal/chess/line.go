package chess

import (
	"fmt"
	"slices"

	nchess "github.com/corentings/chess/v2"
)

const (
	ResultWhiteWins  = "1-0"
	ResultBlackWins  = "0-1"
	ResultDraw       = "1/2-1/2"
	ResultInProgress = "*"
)

const (
	MethodCheckmate            = "checkmate"
	MethodStalemate            = "stalemate"
	MethodInsufficientMaterial = "insufficient_material"
	MethodFiftyMoveRule        = "fifty_move_rule"
	MethodThreefoldRepetition  = "threefold_repetition"
)

// Line is a linear game record: a base position and the moves played from
// it. Push never mutates the receiver.
type Line struct {
	base      Position
	moves     []Move
	positions []Position
}

func NewLine(base Position) Line {
	return Line{base: base}
}

// ReplayLine rebuilds a line from stored moves, failing on the first move
// that is not legal in sequence.
func ReplayLine(base Position, moves []Move) (Line, error) {
	line := NewLine(base)
	for i, m := range moves {
		next, err := line.Push(m)
		if err != nil {
			return Line{}, fmt.Errorf("replay move %d (%s): %w", i+1, m, err)
		}
		line = next
	}
	return line, nil
}

func (l Line) Push(m Move) (Line, error) {
	next, err := l.Current().Apply(m)
	if err != nil {
		return l, err
	}
	n := len(l.moves)
	return Line{
		base:      l.base,
		moves:     append(l.moves[:n:n], m),
		positions: append(l.positions[:n:n], next),
	}, nil
}

func (l Line) Base() Position { return l.base }

func (l Line) Current() Position {
	if len(l.positions) == 0 {
		return l.base
	}
	return l.positions[len(l.positions)-1]
}

func (l Line) Len() int { return len(l.moves) }

func (l Line) Moves() []Move {
	return append([]Move(nil), l.moves...)
}

// PositionBefore returns the position in which the i-th move was played.
func (l Line) PositionBefore(i int) Position {
	if i == 0 {
		return l.base
	}
	return l.positions[i-1]
}

func (l Line) Last() (Move, bool) {
	if len(l.moves) == 0 {
		return Move{}, false
	}
	return l.moves[len(l.moves)-1], true
}

func (l Line) IsTerminal() bool {
	_, method := l.Outcome()
	return method != ""
}

// game replays the line into a library game so repetition draws see the
// whole move history.
func (l Line) game() *nchess.Game {
	g := l.base.game()
	for _, m := range l.moves {
		mv, err := nchess.UCINotation{}.Decode(g.Position(), m.String())
		if err != nil {
			// Push only stores moves that were legal in sequence.
			panic(fmt.Sprintf("chess: stored move %s rejected: %v", m, err))
		}
		if err := g.Move(mv, nil); err != nil {
			panic(fmt.Sprintf("chess: stored move %s rejected: %v", m, err))
		}
	}
	return g
}

// Outcome returns the PGN result token and the reason the game ended, or
// ResultInProgress and "" while play continues. Fifty-move and threefold
// draws end the game as soon as they become claimable.
func (l Line) Outcome() (result string, method string) {
	g := l.game()
	switch g.Method() {
	case nchess.Checkmate:
		if g.Outcome() == nchess.WhiteWon {
			return ResultWhiteWins, MethodCheckmate
		}
		return ResultBlackWins, MethodCheckmate
	case nchess.Stalemate:
		return ResultDraw, MethodStalemate
	case nchess.InsufficientMaterial:
		return ResultDraw, MethodInsufficientMaterial
	case nchess.SeventyFiveMoveRule:
		return ResultDraw, MethodFiftyMoveRule
	case nchess.FivefoldRepetition:
		return ResultDraw, MethodThreefoldRepetition
	}
	draws := g.EligibleDraws()
	switch {
	case slices.Contains(draws, nchess.FiftyMoveRule):
		return ResultDraw, MethodFiftyMoveRule
	case slices.Contains(draws, nchess.ThreefoldRepetition):
		return ResultDraw, MethodThreefoldRepetition
	}
	return ResultInProgress, ""
}
