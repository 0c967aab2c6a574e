package chess

import (
	"fmt"
	"strings"

	core "github.com/park285/cheese-chess-server/internal/chess"
)

// Glyph bodies in a 45x45 box. %[1]s expands to the fill/stroke attributes of the side.
var glyphBodies = map[core.PieceKind][]string{
	core.Pawn: {
		`<circle cx="22.5" cy="14" r="5.5" %[1]s/>`,
		`<polygon points="15,35 30,35 26,20 19,20" %[1]s/>`,
	},
	core.Knight: {
		`<polygon points="14,35 32,35 31,21 28,11 22,8 20,10 14,16 12,22 14,24 19,21 17,28" %[1]s/>`,
		`<circle cx="20" cy="14" r="1.3" %[2]s/>`,
	},
	core.Bishop: {
		`<polygon points="15,35 30,35 27,29 18,29" %[1]s/>`,
		`<ellipse cx="22.5" cy="20" rx="6.5" ry="9" %[1]s/>`,
		`<circle cx="22.5" cy="8.5" r="2.5" %[1]s/>`,
	},
	core.Rook: {
		`<polygon points="14,35 31,35 29,17 16,17" %[1]s/>`,
		`<polygon points="12,17 33,17 33,9 29,9 29,12 25,12 25,9 20,9 20,12 16,12 16,9 12,9" %[1]s/>`,
	},
	core.Queen: {
		`<polygon points="12,35 33,35 36,14 29,25 27,11 22.5,25 18,11 16,25 9,14" %[1]s/>`,
		`<circle cx="9" cy="12" r="2.2" %[1]s/>`,
		`<circle cx="18" cy="9" r="2.2" %[1]s/>`,
		`<circle cx="27" cy="9" r="2.2" %[1]s/>`,
		`<circle cx="36" cy="12" r="2.2" %[1]s/>`,
	},
	core.King: {
		`<polygon points="13,35 32,35 35,21 22.5,26 10,21" %[1]s/>`,
		`<polygon points="21,5 24,5 24,9 28,9 28,12 24,12 24,21 21,21 21,12 17,12 17,9 21,9" %[1]s/>`,
	},
}

const glyphBase = `<polygon points="10,41 35,41 35,36 10,36" %[1]s/>`

func sideAttrs(c core.Color) (body, accent string) {
	if c == core.White {
		return `fill="#fafafa" stroke="#1a1a1a" stroke-width="1.5"`, `fill="#1a1a1a"`
	}
	return `fill="#202020" stroke="#000000" stroke-width="1.5"`, `fill="#e8e8e8"`
}

// pieceSVG assembles a standalone SVG document for p.
func pieceSVG(p core.Piece) ([]byte, error) {
	parts, ok := glyphBodies[p.Kind]
	if !ok {
		return nil, fmt.Errorf("no glyph for %s", p.Kind)
	}
	body, accent := sideAttrs(p.Color)

	var sb strings.Builder
	sb.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" width="45" height="45" viewBox="0 0 45 45">`)
	for _, part := range append([]string{glyphBase}, parts...) {
		if strings.Contains(part, "%[2]s") {
			fmt.Fprintf(&sb, part, body, accent)
		} else {
			fmt.Fprintf(&sb, part, body)
		}
	}
	sb.WriteString(`</svg>`)
	return []byte(sb.String()), nil
}
