package chess

import (
	"errors"
	"fmt"

	nchess "github.com/corentings/chess/v2"
)

// checkPlacement rejects boards the FEN decoder accepts but chess does not:
// a missing or extra king and pawns on the first or last rank.
func checkPlacement(board *nchess.Board) error {
	kings := map[nchess.Color]int{}
	for sq, pc := range board.SquareMap() {
		switch pc.Type() {
		case nchess.King:
			kings[pc.Color()]++
		case nchess.Pawn:
			if r := sq.Rank(); r == nchess.Rank1 || r == nchess.Rank8 {
				return fmt.Errorf("pawn on back rank square %s", sq)
			}
		}
	}
	if kings[nchess.White] != 1 || kings[nchess.Black] != 1 {
		return errors.New("each side needs exactly one king")
	}
	return nil
}

// kingAttacked reports whether the king of color stands attacked on board.
// The library marks check only on the move that delivers it, so positions
// read from FEN are classified here.
func kingAttacked(board *nchess.Board, color nchess.Color) bool {
	squares := board.SquareMap()
	king := nchess.NoSquare
	for sq, pc := range squares {
		if pc.Type() == nchess.King && pc.Color() == color {
			king = sq
		}
	}
	if king == nchess.NoSquare {
		return false
	}
	kf, kr := int(king.File()), int(king.Rank())
	for sq, pc := range squares {
		if pc.Color() != color.Other() {
			continue
		}
		df, dr := int(sq.File())-kf, int(sq.Rank())-kr
		straight := df == 0 || dr == 0
		diagonal := abs(df) == abs(dr)
		var hit bool
		switch pc.Type() {
		case nchess.Pawn:
			// White pawns attack upwards, so they sit one rank below the king.
			behind := -1
			if pc.Color() == nchess.Black {
				behind = 1
			}
			hit = dr == behind && abs(df) == 1
		case nchess.Knight:
			hit = abs(df)*abs(dr) == 2
		case nchess.King:
			hit = max(abs(df), abs(dr)) == 1
		case nchess.Bishop:
			hit = diagonal && clearPath(squares, kf, kr, df, dr)
		case nchess.Rook:
			hit = straight && clearPath(squares, kf, kr, df, dr)
		case nchess.Queen:
			hit = (straight || diagonal) && clearPath(squares, kf, kr, df, dr)
		}
		if hit {
			return true
		}
	}
	return false
}

// clearPath reports whether every square strictly between the king and the
// piece at offset (df, dr) is empty.
func clearPath(squares map[nchess.Square]nchess.Piece, kf, kr, df, dr int) bool {
	sf, sr := sign(df), sign(dr)
	for f, r := kf+sf, kr+sr; f != kf+df || r != kr+dr; f, r = f+sf, r+sr {
		if _, ok := squares[nchess.NewSquare(nchess.File(f), nchess.Rank(r))]; ok {
			return false
		}
	}
	return true
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func sign(n int) int {
	switch {
	case n > 0:
		return 1
	case n < 0:
		return -1
	}
	return 0
}
