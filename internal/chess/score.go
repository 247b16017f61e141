package chess

import (
	"fmt"
	"strconv"
)

// Score is an engine evaluation from White's point of view. It holds either
// a centipawn value or a distance to mate, never both.
type Score struct {
	cp        int
	mate      bool
	moves     int
	whiteWins bool
}

func CentipawnScore(cp int) Score {
	return Score{cp: cp}
}

// MateScore is a forced mate in moves (0 when the loser is already mated).
func MateScore(moves int, whiteWins bool) Score {
	if moves < 0 {
		moves = -moves
	}
	return Score{mate: true, moves: moves, whiteWins: whiteWins}
}

// EngineScore converts a UCI score, which is relative to the side to move,
// into a White-relative Score. kind is "cp" or "mate"; turn is "w" or "b".
func EngineScore(kind string, value int, turn string) (Score, error) {
	whiteToMove := turn == "w"
	switch kind {
	case "cp":
		if !whiteToMove {
			value = -value
		}
		return CentipawnScore(value), nil
	case "mate":
		// "mate 0" means the side to move has been mated.
		moverWins := value > 0
		return MateScore(value, moverWins == whiteToMove), nil
	default:
		return Score{}, fmt.Errorf("%w: unknown score kind %q", ErrEngineProtocol, kind)
	}
}

func (s Score) IsMate() bool    { return s.mate }
func (s Score) Centipawns() int { return s.cp }
func (s Score) WhiteWins() bool { return s.mate && s.whiteWins }

// MateIn returns the signed distance to mate, positive when White mates.
func (s Score) MateIn() int {
	if !s.mate {
		return 0
	}
	if s.whiteWins {
		return s.moves
	}
	return -s.moves
}

func (s Score) String() string {
	if !s.mate {
		return "cp " + strconv.Itoa(s.cp)
	}
	if s.whiteWins {
		return "mate " + strconv.Itoa(s.moves)
	}
	return "mate -" + strconv.Itoa(s.moves)
}
