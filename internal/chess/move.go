package chess

import (
	"fmt"
	"strings"
)

// Move is a coordinate move such as e2e4 or e7e8q. It is only meaningful
// relative to a Position.
type Move struct {
	From      string
	To        string
	Promotion string
}

func ParseMove(text string) (Move, error) {
	raw := strings.ToLower(strings.TrimSpace(text))
	if len(raw) != 4 && len(raw) != 5 {
		return Move{}, fmt.Errorf("%w: %q is not a coordinate move", ErrIllegalMove, text)
	}
	m := Move{From: raw[0:2], To: raw[2:4]}
	if !validSquare(m.From) || !validSquare(m.To) {
		return Move{}, fmt.Errorf("%w: %q has an invalid square", ErrIllegalMove, text)
	}
	if m.From == m.To {
		return Move{}, fmt.Errorf("%w: %q does not move", ErrIllegalMove, text)
	}
	if len(raw) == 5 {
		if !strings.ContainsRune("qrbn", rune(raw[4])) {
			return Move{}, fmt.Errorf("%w: %q has an invalid promotion piece", ErrIllegalMove, text)
		}
		m.Promotion = raw[4:5]
	}
	return m, nil
}

func (m Move) String() string {
	return m.From + m.To + m.Promotion
}

func (m Move) IsZero() bool {
	return m == Move{}
}

func validSquare(sq string) bool {
	return len(sq) == 2 && sq[0] >= 'a' && sq[0] <= 'h' && sq[1] >= '1' && sq[1] <= '8'
}

// MovesToUCI renders moves in coordinate notation.
func MovesToUCI(moves []Move) []string {
	out := make([]string, len(moves))
	for i, m := range moves {
		out[i] = m.String()
	}
	return out
}
