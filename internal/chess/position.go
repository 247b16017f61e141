package chess

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Position is an immutable board state held in its canonical FEN form. The
// zero value is the standard starting position.
type Position struct {
	fen   string
	check bool
}

func StartPosition() Position {
	return Position{fen: StartFEN}
}

// Parse validates a FEN record and returns the position it describes.
func Parse(text string) (Position, error) {
	fields := strings.Fields(text)
	if len(fields) != 6 {
		return Position{}, fmt.Errorf("%w: want 6 fields, got %d", ErrMalformedPosition, len(fields))
	}
	side, castling, ep := fields[1], fields[2], fields[3]

	if side != "w" && side != "b" {
		return Position{}, fmt.Errorf("%w: side to move %q", ErrMalformedPosition, side)
	}
	if !validCastling(castling) {
		return Position{}, fmt.Errorf("%w: castling rights %q", ErrMalformedPosition, castling)
	}
	if ep != "-" {
		if !validSquare(ep) {
			return Position{}, fmt.Errorf("%w: en passant square %q", ErrMalformedPosition, ep)
		}
		if (side == "w" && ep[1] != '6') || (side == "b" && ep[1] != '3') {
			return Position{}, fmt.Errorf("%w: en passant square %s inconsistent with side to move", ErrMalformedPosition, ep)
		}
	}
	halfmove, err := strconv.Atoi(fields[4])
	if err != nil || halfmove < 0 {
		return Position{}, fmt.Errorf("%w: halfmove clock %q", ErrMalformedPosition, fields[4])
	}
	fullmove, err := strconv.Atoi(fields[5])
	if err != nil || fullmove < 1 {
		return Position{}, fmt.Errorf("%w: fullmove number %q", ErrMalformedPosition, fields[5])
	}

	canonical := strings.Join(fields, " ")
	var decoded nchess.Position
	if err := decoded.UnmarshalText([]byte(canonical)); err != nil {
		return Position{}, fmt.Errorf("%w: %v", ErrMalformedPosition, err)
	}
	board := decoded.Board()
	if err := checkPlacement(board); err != nil {
		return Position{}, fmt.Errorf("%w: %v", ErrMalformedPosition, err)
	}
	// The side that just moved may not be left in check.
	if kingAttacked(board, decoded.Turn().Other()) {
		return Position{}, fmt.Errorf("%w: side not to move is in check", ErrMalformedPosition)
	}
	return Position{fen: canonical, check: kingAttacked(board, decoded.Turn())}, nil
}

func (p Position) String() string {
	if p.fen == "" {
		return StartFEN
	}
	return p.fen
}

func (p Position) IsZero() bool {
	return p.fen == ""
}

func (p Position) fields() []string {
	return strings.Fields(p.String())
}

// Turn returns "w" or "b".
func (p Position) Turn() string {
	return p.fields()[1]
}

func (p Position) HalfmoveClock() int {
	n, _ := strconv.Atoi(p.fields()[4])
	return n
}

func (p Position) FullmoveNumber() int {
	n, _ := strconv.Atoi(p.fields()[5])
	return n
}

func (p Position) game() *nchess.Game {
	opt, err := nchess.FEN(p.String())
	if err != nil {
		// Parse and Apply only ever store FEN the library accepted.
		panic(fmt.Sprintf("chess: stored fen rejected: %v", err))
	}
	return nchess.NewGame(opt)
}

// Board exposes the library board for rendering.
func (p Position) Board() *nchess.Board {
	return p.game().Position().Board()
}

// LegalMoves lists every legal move in coordinate order.
func (p Position) LegalMoves() []Move {
	g := p.game()
	valid := g.ValidMoves()
	out := make([]Move, 0, len(valid))
	for _, mv := range valid {
		m, err := ParseMove(mv.String())
		if err != nil {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func (p Position) IsLegal(m Move) bool {
	for _, lm := range p.LegalMoves() {
		if lm == m {
			return true
		}
	}
	return false
}

// Apply returns the successor position. p itself is never modified.
func (p Position) Apply(m Move) (Position, error) {
	if !p.IsLegal(m) {
		return Position{}, fmt.Errorf("%w: %s in %s", ErrIllegalMove, m, p)
	}
	g := p.game()
	mv, err := nchess.UCINotation{}.Decode(g.Position(), m.String())
	if err != nil {
		return Position{}, fmt.Errorf("%w: decode %s: %v", ErrIllegalMove, m, err)
	}
	if err := g.Move(mv, nil); err != nil {
		return Position{}, fmt.Errorf("%w: apply %s: %v", ErrIllegalMove, m, err)
	}
	return Position{fen: g.Position().String(), check: mv.HasTag(nchess.Check)}, nil
}

// SAN renders m in standard algebraic notation.
func (p Position) SAN(m Move) (string, error) {
	g := p.game()
	pos := g.Position()
	mv, err := nchess.UCINotation{}.Decode(pos, m.String())
	if err != nil {
		return "", fmt.Errorf("%w: decode %s: %v", ErrIllegalMove, m, err)
	}
	return nchess.AlgebraicNotation{}.Encode(pos, mv), nil
}

// InCheck reports whether the side to move is in check.
func (p Position) InCheck() bool {
	return p.check
}

func (p Position) IsCheckmate() bool {
	return p.game().Position().Status() == nchess.Checkmate
}

func (p Position) IsStalemate() bool {
	return p.game().Position().Status() == nchess.Stalemate
}

// InsufficientMaterial reports a dead position: neither side has mating
// material left.
func (p Position) InsufficientMaterial() bool {
	return p.game().Method() == nchess.InsufficientMaterial
}

// IsTerminal reports whether play cannot continue from p alone: checkmate,
// stalemate, the fifty-move rule or insufficient material. Repetition needs
// the game history and is checked by Line.
func (p Position) IsTerminal() bool {
	g := p.game()
	if g.Position().Status() != nchess.NoMethod {
		return true
	}
	return p.HalfmoveClock() >= 100 || g.Method() == nchess.InsufficientMaterial
}

func validCastling(s string) bool {
	if s == "-" {
		return true
	}
	if s == "" || len(s) > 4 {
		return false
	}
	seen := map[rune]bool{}
	for _, r := range s {
		if !strings.ContainsRune("KQkq", r) || seen[r] {
			return false
		}
		seen[r] = true
	}
	return true
}
