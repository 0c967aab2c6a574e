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

	"github.com/srwiley/rasterx"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	core "github.com/park285/cheese-chess-server/internal/chess"
)

type MoveHighlight struct {
	From core.Square
	To   core.Square
}

type RenderOptions struct {
	Highlight *MoveHighlight
	Status    core.Status
	// Title replaces the default "<side> to move" header text.
	Title string
	// Flip draws the board from black's side.
	Flip bool
}

type BoardRenderer interface {
	RenderPNG(ctx context.Context, board core.Board, opts RenderOptions) ([]byte, error)
}

type svgBoardRenderer struct {
	squareSize int
}

// NewSVGBoardRenderer draws boards with vector piece glyphs rasterised per square size.
func NewSVGBoardRenderer(squareSize int) BoardRenderer {
	if squareSize < 16 {
		squareSize = 64
	}
	return &svgBoardRenderer{squareSize: squareSize}
}

const (
	sideMargin   = 24
	headerHeight = 36
	headerGap    = 10
	bottomMargin = 24
	panelRadius  = 8
)

var (
	lightSquare        = color.RGBA{233, 207, 163, 255}
	darkSquare         = color.RGBA{187, 136, 96, 255}
	backgroundColor    = color.RGBA{22, 24, 35, 255}
	whiteMoveFill      = color.NRGBA{R: 255, G: 228, B: 120, A: 140}
	blackMoveArrow     = color.NRGBA{R: 148, G: 207, B: 255, A: 170}
	neutralMoveArrow   = color.NRGBA{R: 182, G: 184, B: 190, A: 140}
	checkFill          = color.NRGBA{R: 230, G: 60, B: 60, A: 150}
	hudPanelColor      = color.NRGBA{R: 28, G: 31, B: 46, A: 250}
	hudTextColor       = color.NRGBA{R: 236, G: 239, B: 255, A: 255}
	coordinateTextTint = color.NRGBA{R: 8, G: 214, B: 120, A: 255}
)

func (r *svgBoardRenderer) RenderPNG(ctx context.Context, board core.Board, opts RenderOptions) ([]byte, error) {
	sq := r.squareSize
	boardSize := sq * 8
	origin := image.Point{X: sideMargin, Y: headerHeight + headerGap*2}
	width := boardSize + sideMargin*2
	height := origin.Y + boardSize + bottomMargin

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, imagedraw.Src)

	g := geometry{size: sq, origin: origin, flip: opts.Flip}
	drawHeader(img, image.Rect(sideMargin, headerGap, sideMargin+boardSize, headerGap+headerHeight), headerText(board, opts))
	drawSquares(img, g)
	drawCheck(img, board, g)
	if err := drawPieces(img, board, g); err != nil {
		return nil, err
	}
	drawHighlight(img, board, opts.Highlight, g)
	drawCoordinates(img, g)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// geometry maps squares to pixels.
type geometry struct {
	size   int
	origin image.Point
	flip   bool
}

func (g geometry) rect(s core.Square) image.Rectangle {
	col, row := s.File(), 7-s.Rank()
	if g.flip {
		col, row = 7-col, s.Rank()
	}
	x := g.origin.X + col*g.size
	y := g.origin.Y + row*g.size
	return image.Rect(x, y, x+g.size, y+g.size)
}

func (g geometry) center(s core.Square) (float64, float64) {
	r := g.rect(s)
	return float64(r.Min.X) + float64(g.size)/2, float64(r.Min.Y) + float64(g.size)/2
}

func headerText(board core.Board, opts RenderOptions) string {
	if t := strings.TrimSpace(opts.Title); t != "" {
		return t
	}
	side := "White"
	if board.Turn() == core.Black {
		side = "Black"
	}
	switch opts.Status {
	case core.StatusCheckmate:
		return fmt.Sprintf("Checkmate - %s is mated", side)
	case core.StatusStalemate:
		return "Stalemate"
	case core.StatusDraw:
		return "Draw"
	case core.StatusTimeout:
		return "Time out"
	}
	text := fmt.Sprintf("%s to move", side)
	if core.IsInCheck(board, board.Turn()) {
		text += " (check)"
	}
	return text
}

func drawHeader(img *image.RGBA, rect image.Rectangle, text string) {
	fillPath(img, hudPanelColor, func(f *rasterx.Filler) {
		rasterx.AddRoundRect(float64(rect.Min.X), float64(rect.Min.Y), float64(rect.Max.X), float64(rect.Max.Y),
			panelRadius, panelRadius, 0, rasterx.RoundGap, f)
	})
	drawer := &font.Drawer{Dst: img, Face: basicfont.Face7x13, Src: image.NewUniform(hudTextColor)}
	w := drawer.MeasureString(text).Round()
	m := basicfont.Face7x13.Metrics()
	baseline := rect.Min.Y + (rect.Dy()+m.Ascent.Ceil()-m.Descent.Ceil())/2
	drawer.Dot = fixed.P(rect.Min.X+(rect.Dx()-w)/2, baseline)
	drawer.DrawString(text)
}

func drawSquares(dst *image.RGBA, g geometry) {
	for s := core.Square(0); s < 64; s++ {
		clr := lightSquare
		if (s.File()+s.Rank())%2 == 0 {
			clr = darkSquare
		}
		imagedraw.Draw(dst, g.rect(s), image.NewUniform(clr), image.Point{}, imagedraw.Src)
	}
}

func drawCheck(dst *image.RGBA, board core.Board, g geometry) {
	turn := board.Turn()
	if !core.IsInCheck(board, turn) {
		return
	}
	king := core.Piece{Kind: core.King, Color: turn}
	for s := core.Square(0); s < 64; s++ {
		if board.PieceAt(s) == king {
			imagedraw.Draw(dst, g.rect(s), image.NewUniform(checkFill), image.Point{}, imagedraw.Over)
		}
	}
}

func drawPieces(dst *image.RGBA, board core.Board, g geometry) error {
	for s := core.Square(0); s < 64; s++ {
		p := board.PieceAt(s)
		if p.IsEmpty() {
			continue
		}
		glyph, err := renderPieceImage(p, g.size)
		if err != nil {
			return err
		}
		imagedraw.Draw(dst, g.rect(s), glyph, image.Point{}, imagedraw.Over)
	}
	return nil
}

// drawHighlight marks the last move: filled squares for white, an arrow for black.
func drawHighlight(img *image.RGBA, board core.Board, h *MoveHighlight, g geometry) {
	if h == nil || !h.From.Valid() || !h.To.Valid() {
		return
	}
	mover := board.PieceAt(h.To)
	if mover.IsEmpty() {
		mover = board.PieceAt(h.From)
	}
	switch {
	case !mover.IsEmpty() && mover.Color == core.White:
		imagedraw.Draw(img, g.rect(h.From), image.NewUniform(whiteMoveFill), image.Point{}, imagedraw.Over)
		imagedraw.Draw(img, g.rect(h.To), image.NewUniform(whiteMoveFill), image.Point{}, imagedraw.Over)
	case !mover.IsEmpty():
		drawArrow(img, h.From, h.To, g, blackMoveArrow)
	default:
		drawArrow(img, h.From, h.To, g, neutralMoveArrow)
	}
}

func drawArrow(img *image.RGBA, from, to core.Square, g geometry, clr color.Color) {
	if from == to {
		return
	}
	sx, sy := g.center(from)
	ex, ey := g.center(to)
	dx, dy := ex-sx, ey-sy
	length := math.Hypot(dx, dy)
	size := float64(g.size)

	ux, uy := dx/length, dy/length
	px, py := -uy, ux
	shaft := length - size*0.45
	if shaft < size*0.35 {
		shaft = length * 0.6
	}
	half := size * 0.18
	head := size * 0.32
	bx, by := sx+ux*shaft, sy+uy*shaft

	fillPath(img, clr, func(f *rasterx.Filler) {
		f.Start(rasterx.ToFixedP(sx-px*half, sy-py*half))
		f.Line(rasterx.ToFixedP(bx-px*half, by-py*half))
		f.Line(rasterx.ToFixedP(bx-px*head, by-py*head))
		f.Line(rasterx.ToFixedP(ex, ey))
		f.Line(rasterx.ToFixedP(bx+px*head, by+py*head))
		f.Line(rasterx.ToFixedP(bx+px*half, by+py*half))
		f.Line(rasterx.ToFixedP(sx+px*half, sy+py*half))
		f.Stop(true)
	})
}

func fillPath(img *image.RGBA, clr color.Color, build func(*rasterx.Filler)) {
	b := img.Bounds()
	scanner := rasterx.NewScannerGV(b.Dx(), b.Dy(), img, b)
	filler := rasterx.NewFiller(b.Dx(), b.Dy(), scanner)
	filler.SetColor(clr)
	build(filler)
	filler.Draw()
}

func drawCoordinates(dst *image.RGBA, g geometry) {
	drawer := &font.Drawer{Dst: dst, Face: basicfont.Face7x13, Src: image.NewUniform(coordinateTextTint)}
	ascent := basicfont.Face7x13.Metrics().Ascent.Ceil()
	for i := 0; i < 8; i++ {
		fileSq := core.NewSquare(i, 0)
		rankSq := core.NewSquare(0, i)

		fr := g.rect(fileSq)
		label := string(rune('a' + i))
		drawCenteredText(drawer, label, fr.Min.X+g.size/2, g.origin.Y+8*g.size+ascent+4)

		rr := g.rect(rankSq)
		label = string(rune('1' + i))
		drawCenteredText(drawer, label, g.origin.X-sideMargin/2, rr.Min.Y+g.size/2+ascent/2)
	}
}

func drawCenteredText(drawer *font.Drawer, text string, centerX, baseline int) {
	width := drawer.MeasureString(text).Round()
	drawer.Dot = fixed.P(centerX-width/2, baseline)
	drawer.DrawString(text)
}
