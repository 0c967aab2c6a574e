package chess

import (
	"bytes"
	"fmt"
	"image"
	"sync"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"

	core "github.com/park285/cheese-chess-server/internal/chess"
)

type sprite struct {
	piece core.Piece
	size  int
}

// sprites holds rasterised glyphs; there are at most 12 per square size.
var sprites sync.Map // sprite -> *image.RGBA

func renderPieceImage(piece core.Piece, size int) (image.Image, error) {
	key := sprite{piece: piece, size: size}
	if img, ok := sprites.Load(key); ok {
		return img.(*image.RGBA), nil
	}
	img, err := rasterizePiece(piece, size)
	if err != nil {
		return nil, err
	}
	actual, _ := sprites.LoadOrStore(key, img)
	return actual.(*image.RGBA), nil
}

func rasterizePiece(piece core.Piece, size int) (*image.RGBA, error) {
	doc, err := pieceSVG(piece)
	if err != nil {
		return nil, err
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("parse %s %s glyph: %w", piece.Color, piece.Kind, err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	// a fresh RGBA is fully transparent
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(size, size, scanner), 1.0)
	return img, nil
}
