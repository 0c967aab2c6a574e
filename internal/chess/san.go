package chess

import (
	"fmt"
	"strings"
)

// SAN renders m in standard algebraic notation. m must be legal in b.
func SAN(b Board, m Move) string {
	var sb strings.Builder
	piece := b.PieceAt(m.From)

	switch {
	case piece.Kind == King && m.To.File()-m.From.File() == 2:
		sb.WriteString("O-O")
	case piece.Kind == King && m.From.File()-m.To.File() == 2:
		sb.WriteString("O-O-O")
	case piece.Kind == Pawn:
		if m.Capture() || m.From.File() != m.To.File() {
			sb.WriteByte(byte('a' + m.From.File()))
			sb.WriteByte('x')
		}
		sb.WriteString(m.To.String())
		if m.Promotion != NoKind {
			sb.WriteByte('=')
			sb.WriteByte(m.Promotion.Letter())
		}
	default:
		sb.WriteByte(piece.Kind.Letter())
		sb.WriteString(disambiguation(b, m, piece))
		if m.Capture() || !b.PieceAt(m.To).IsEmpty() {
			sb.WriteByte('x')
		}
		sb.WriteString(m.To.String())
	}

	after := b.Apply(m)
	if IsInCheck(after, after.turn) {
		if HasLegalMoves(after) {
			sb.WriteByte('+')
		} else {
			sb.WriteByte('#')
		}
	}
	return sb.String()
}

// disambiguation adds the origin file, rank or both when another piece of the same kind
// can legally reach the same square.
func disambiguation(b Board, m Move, piece Piece) string {
	var rivals []Square
	for other := range Moves(b) {
		if other.To == m.To && other.From != m.From && b.squares[other.From] == piece {
			rivals = append(rivals, other.From)
		}
	}
	if len(rivals) == 0 {
		return ""
	}
	sameFile, sameRank := false, false
	for _, sq := range rivals {
		if sq.File() == m.From.File() {
			sameFile = true
		}
		if sq.Rank() == m.From.Rank() {
			sameRank = true
		}
	}
	switch {
	case !sameFile:
		return string(rune('a' + m.From.File()))
	case !sameRank:
		return string(rune('1' + m.From.Rank()))
	default:
		return m.From.String()
	}
}

// ParseSAN resolves algebraic input ("Nf3", "exd5", "O-O", "e8=Q+") against the legal
// moves of b. Check and annotation suffixes are ignored.
func ParseSAN(b Board, s string) (Move, error) {
	want := normalizeSAN(s)
	if want == "" {
		return Move{}, fmt.Errorf("%w: %q", ErrMalformedMove, s)
	}
	for m := range Moves(b) {
		if normalizeSAN(SAN(b, m)) == want {
			return m, nil
		}
	}
	return Move{}, fmt.Errorf("%w: %q", ErrIllegalMove, s)
}

func normalizeSAN(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, "+#!?")
	s = strings.ReplaceAll(s, "0-0-0", "O-O-O")
	s = strings.ReplaceAll(s, "0-0", "O-O")
	return strings.ReplaceAll(s, "=", "")
}
