package chess

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"math"
	"strings"

	nchess "github.com/corentings/chess/v2"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const defaultSquareSize = 64

type MoveHighlight struct {
	From nchess.Square
	To   nchess.Square
}

// RenderOptions controls decorations drawn over the position. Flip puts
// Black at the bottom.
type RenderOptions struct {
	Highlight *MoveHighlight
	Check     *nchess.Square
	Flip      bool
	Caption   string
}

type BoardRenderer interface {
	RenderPNG(ctx context.Context, board *nchess.Board, opts RenderOptions) ([]byte, error)
}

type pngBoardRenderer struct {
	squareSize int
}

// NewBoardRenderer returns a renderer drawing squareSize pixels per square.
// Non-positive sizes fall back to 64.
func NewBoardRenderer(squareSize int) BoardRenderer {
	if squareSize <= 0 {
		squareSize = defaultSquareSize
	}
	return &pngBoardRenderer{squareSize: squareSize}
}

var (
	lightSquare         = color.RGBA{233, 207, 163, 255}
	darkSquare          = color.RGBA{187, 136, 96, 255}
	backgroundColor     = color.RGBA{38, 36, 33, 255}
	lastMoveFill        = color.NRGBA{R: 255, G: 228, B: 120, A: 120}
	lastMoveArrow       = color.NRGBA{R: 148, G: 207, B: 255, A: 170}
	checkFill           = color.NRGBA{R: 224, G: 64, B: 56, A: 150}
	coordinateTextColor = color.NRGBA{R: 214, G: 208, B: 196, A: 255}
	captionTextColor    = color.NRGBA{R: 236, G: 239, B: 255, A: 255}
)

// boardLayout maps squares to pixels for one orientation.
type boardLayout struct {
	origin     image.Point
	squareSize int
	flip       bool
}

func (l boardLayout) cell(sq nchess.Square) (col, row int) {
	col, row = int(sq.File()), 7-int(sq.Rank())
	if l.flip {
		col, row = 7-col, 7-row
	}
	return col, row
}

func (l boardLayout) rect(sq nchess.Square) image.Rectangle {
	col, row := l.cell(sq)
	x := l.origin.X + col*l.squareSize
	y := l.origin.Y + row*l.squareSize
	return image.Rect(x, y, x+l.squareSize, y+l.squareSize)
}

func (l boardLayout) center(sq nchess.Square) (float64, float64) {
	r := l.rect(sq)
	return float64(r.Min.X) + float64(l.squareSize)/2, float64(r.Min.Y) + float64(l.squareSize)/2
}

func (r *pngBoardRenderer) RenderPNG(ctx context.Context, board *nchess.Board, opts RenderOptions) ([]byte, error) {
	if board == nil {
		return nil, fmt.Errorf("board is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	face := basicfont.Face7x13
	margin := r.squareSize / 3
	captionHeight := 0
	if strings.TrimSpace(opts.Caption) != "" {
		captionHeight = face.Height + margin
	}
	boardSize := r.squareSize * 8
	img := image.NewRGBA(image.Rect(0, 0, boardSize+2*margin, boardSize+2*margin+captionHeight))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, imagedraw.Src)

	layout := boardLayout{origin: image.Pt(margin, margin), squareSize: r.squareSize, flip: opts.Flip}
	drawSquares(img, layout)
	if opts.Highlight != nil {
		drawSquareOverlay(img, layout.rect(opts.Highlight.From), lastMoveFill)
		drawSquareOverlay(img, layout.rect(opts.Highlight.To), lastMoveFill)
	}
	if opts.Check != nil {
		drawSquareOverlay(img, layout.rect(*opts.Check), checkFill)
	}
	if err := drawPieces(img, board, layout); err != nil {
		return nil, err
	}
	if opts.Highlight != nil {
		drawArrow(img, layout, opts.Highlight.From, opts.Highlight.To, lastMoveArrow)
	}
	drawCoordinates(img, face, layout, margin)
	if captionHeight > 0 {
		drawCaption(img, face, opts.Caption, boardSize+2*margin, boardSize+2*margin+captionHeight/2)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func drawSquares(dst imagedraw.Image, layout boardLayout) {
	for rank := nchess.Rank1; rank <= nchess.Rank8; rank++ {
		for file := nchess.FileA; file <= nchess.FileH; file++ {
			sq := nchess.NewSquare(file, rank)
			imagedraw.Draw(dst, layout.rect(sq), image.NewUniform(squareColor(sq)), image.Point{}, imagedraw.Src)
		}
	}
}

func drawPieces(dst imagedraw.Image, board *nchess.Board, layout boardLayout) error {
	for sq, piece := range board.SquareMap() {
		if piece == nchess.NoPiece {
			continue
		}
		img, err := renderPieceImage(piece, layout.squareSize)
		if err != nil {
			return err
		}
		imagedraw.Draw(dst, layout.rect(sq), img, image.Point{}, imagedraw.Over)
	}
	return nil
}

func drawSquareOverlay(img *image.RGBA, rect image.Rectangle, clr color.Color) {
	imagedraw.Draw(img, rect, image.NewUniform(clr), image.Point{}, imagedraw.Over)
}

// drawArrow fills a shaft and head from the centre of from to the centre
// of to.
func drawArrow(img *image.RGBA, layout boardLayout, from, to nchess.Square, clr color.Color) {
	if from == to {
		return
	}
	sx, sy := layout.center(from)
	ex, ey := layout.center(to)
	dx, dy := ex-sx, ey-sy
	length := math.Hypot(dx, dy)
	if length == 0 {
		return
	}
	dirX, dirY := dx/length, dy/length
	perpX, perpY := -dirY, dirX

	size := float64(layout.squareSize)
	shaft := length - size*0.4
	if shaft < size*0.3 {
		shaft = length * 0.6
	}
	half := size * 0.09
	head := size * 0.22
	bx, by := sx+dirX*shaft, sy+dirY*shaft

	b := img.Bounds()
	scanner := rasterx.NewScannerGV(b.Dx(), b.Dy(), img, b)
	filler := rasterx.NewFiller(b.Dx(), b.Dy(), scanner)
	filler.SetColor(clr)
	filler.Start(rasterx.ToFixedP(sx-perpX*half, sy-perpY*half))
	filler.Line(rasterx.ToFixedP(bx-perpX*half, by-perpY*half))
	filler.Line(rasterx.ToFixedP(bx-perpX*head, by-perpY*head))
	filler.Line(rasterx.ToFixedP(ex, ey))
	filler.Line(rasterx.ToFixedP(bx+perpX*head, by+perpY*head))
	filler.Line(rasterx.ToFixedP(bx+perpX*half, by+perpY*half))
	filler.Line(rasterx.ToFixedP(sx+perpX*half, sy+perpY*half))
	filler.Stop(true)
	filler.Draw()
}

func drawCoordinates(dst imagedraw.Image, face font.Face, layout boardLayout, margin int) {
	drawer := &font.Drawer{Dst: dst, Face: face, Src: image.NewUniform(coordinateTextColor)}
	ascent := face.Metrics().Ascent.Ceil()
	bottom := layout.origin.Y + 8*layout.squareSize

	for i := 0; i < 8; i++ {
		file := nchess.File(i)
		fx, _ := layout.center(nchess.NewSquare(file, nchess.Rank1))
		drawCenteredText(drawer, file.String(), int(fx), bottom+(margin+ascent)/2)

		rank := nchess.Rank(i)
		_, ry := layout.center(nchess.NewSquare(nchess.FileA, rank))
		drawCenteredText(drawer, rank.String(), layout.origin.X-margin/2, int(ry)+ascent/2)
	}
}

func drawCaption(dst imagedraw.Image, face font.Face, text string, width, centerY int) {
	drawer := &font.Drawer{Dst: dst, Face: face, Src: image.NewUniform(captionTextColor)}
	ascent := face.Metrics().Ascent.Ceil()
	drawCenteredText(drawer, strings.TrimSpace(text), width/2, centerY+ascent/2)
}

func drawCenteredText(drawer *font.Drawer, text string, centerX, baseline int) {
	if text == "" {
		return
	}
	width := drawer.MeasureString(text).Round()
	drawer.Dot = fixed.P(centerX-width/2, baseline)
	drawer.DrawString(text)
}

func squareColor(sq nchess.Square) color.Color {
	if (int(sq.File())+int(sq.Rank()))%2 == 0 {
		return darkSquare
	}
	return lightSquare
}
