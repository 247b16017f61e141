// Package eval maps engine scores onto a 0-100 scale for display.
package eval

import "github.com/vitoskycl/web-chess/internal/chess"

const (
	// MateSentinel is the centipawn value a forced mate collapses to.
	MateSentinel = 1000
	clampCP      = 1000
)

// Normalize returns White's share of the evaluation bar: 0 when Black is
// winning outright, 50 for equality, 100 when White is.
func Normalize(s chess.Score) float64 {
	cp := s.Centipawns()
	if s.IsMate() {
		cp = -MateSentinel
		if s.WhiteWins() {
			cp = MateSentinel
		}
	}
	if cp > clampCP {
		cp = clampCP
	}
	if cp < -clampCP {
		cp = -clampCP
	}
	return float64(cp+clampCP) * 100 / float64(2*clampCP)
}
