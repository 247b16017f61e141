package chess

import (
	"bytes"
	"embed"
	"fmt"
	"image"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

//go:embed assets/pieces/*.svg
var pieceFiles embed.FS

var pieceLetters = map[nchess.PieceType]string{
	nchess.King:   "K",
	nchess.Queen:  "Q",
	nchess.Rook:   "R",
	nchess.Bishop: "B",
	nchess.Knight: "N",
	nchess.Pawn:   "P",
}

type pieceCacheKey struct {
	piece nchess.Piece
	size  int
}

var (
	pieceCacheMu sync.RWMutex
	pieceCache   = map[pieceCacheKey]*image.RGBA{}
)

// renderPieceImage rasterises the piece glyph at size x size. Results are
// shared between renders and must not be modified.
func renderPieceImage(piece nchess.Piece, size int) (image.Image, error) {
	key := pieceCacheKey{piece: piece, size: size}
	pieceCacheMu.RLock()
	img, ok := pieceCache[key]
	pieceCacheMu.RUnlock()
	if ok {
		return img, nil
	}

	name, err := pieceAssetName(piece)
	if err != nil {
		return nil, err
	}
	data, err := pieceFiles.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read piece asset %s: %w", name, err)
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse piece svg %s: %w", name, err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img = image.NewRGBA(image.Rect(0, 0, size, size))
	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(size, size, scanner), 1.0)

	pieceCacheMu.Lock()
	pieceCache[key] = img
	pieceCacheMu.Unlock()
	return img, nil
}

func pieceAssetName(piece nchess.Piece) (string, error) {
	letter, ok := pieceLetters[piece.Type()]
	if !ok {
		return "", fmt.Errorf("no asset for piece %v", piece)
	}
	prefix := "w"
	if piece.Color() == nchess.Black {
		prefix = "b"
	}
	return "assets/pieces/" + prefix + letter + ".svg", nil
}
