package chess

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// InitialFEN is the standard starting position.
const InitialFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

var ErrInvalidPosition = errors.New("invalid position")

func invalidPosition(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidPosition, fmt.Sprintf(format, args...))
}

// ParseFEN decodes a six-field FEN string.
func ParseFEN(fen string) (Board, error) {
	fields := strings.Fields(fen)
	if len(fields) != 6 {
		return Board{}, invalidPosition("expected 6 fields, got %d", len(fields))
	}

	var b Board
	if err := parsePlacement(&b, fields[0]); err != nil {
		return Board{}, err
	}

	switch fields[1] {
	case "w":
		b.turn = White
	case "b":
		b.turn = Black
	default:
		return Board{}, invalidPosition("side to move %q", fields[1])
	}

	castling, err := parseCastling(fields[2])
	if err != nil {
		return Board{}, err
	}
	b.castling = castling

	b.enPassant = NoSquare
	if fields[3] != "-" {
		sq, ok := ParseSquare(fields[3])
		// the target sits behind a pawn the opponent just pushed
		wantRank := 5
		if b.turn == Black {
			wantRank = 2
		}
		if !ok || sq.Rank() != wantRank {
			return Board{}, invalidPosition("en passant square %q", fields[3])
		}
		b.enPassant = sq
	}

	half, err := strconv.Atoi(fields[4])
	if err != nil || half < 0 {
		return Board{}, invalidPosition("halfmove clock %q", fields[4])
	}
	full, err := strconv.Atoi(fields[5])
	if err != nil || full < 1 {
		return Board{}, invalidPosition("fullmove number %q", fields[5])
	}
	b.halfmove, b.fullmove = half, full

	for _, c := range [2]Color{White, Black} {
		if n := b.countPieces(Piece{Kind: King, Color: c}); n != 1 {
			return Board{}, invalidPosition("%s has %d kings", c, n)
		}
	}
	return b, nil
}

func parsePlacement(b *Board, placement string) error {
	ranks := strings.Split(placement, "/")
	if len(ranks) != 8 {
		return invalidPosition("expected 8 ranks, got %d", len(ranks))
	}
	for i, row := range ranks {
		rank := 7 - i
		file := 0
		for j := 0; j < len(row); j++ {
			c := row[j]
			if c >= '1' && c <= '8' {
				file += int(c - '0')
				continue
			}
			p, ok := pieceFromSymbol(c)
			if !ok {
				return invalidPosition("piece letter %q", c)
			}
			if file > 7 {
				return invalidPosition("rank %d overflows", rank+1)
			}
			b.squares[NewSquare(file, rank)] = p
			file++
		}
		if file != 8 {
			return invalidPosition("rank %d has %d files", rank+1, file)
		}
	}
	return nil
}

func parseCastling(s string) (CastlingRights, error) {
	if s == "-" {
		return NoCastling, nil
	}
	var c CastlingRights
	for i := 0; i < len(s); i++ {
		var r CastlingRights
		switch s[i] {
		case 'K':
			r = WhiteKingside
		case 'Q':
			r = WhiteQueenside
		case 'k':
			r = BlackKingside
		case 'q':
			r = BlackQueenside
		default:
			return NoCastling, invalidPosition("castling field %q", s)
		}
		if c.Has(r) {
			return NoCastling, invalidPosition("castling field %q", s)
		}
		c |= r
	}
	return c, nil
}

func (b Board) placement() string {
	var sb strings.Builder
	for rank := 7; rank >= 0; rank-- {
		empty := 0
		for file := 0; file < 8; file++ {
			p := b.squares[NewSquare(file, rank)]
			if p.IsEmpty() {
				empty++
				continue
			}
			if empty > 0 {
				sb.WriteByte(byte('0' + empty))
				empty = 0
			}
			sb.WriteByte(p.Symbol())
		}
		if empty > 0 {
			sb.WriteByte(byte('0' + empty))
		}
		if rank > 0 {
			sb.WriteByte('/')
		}
	}
	return sb.String()
}

// FEN is the canonical serialisation; ParseFEN(b.FEN()) == b.
func (b Board) FEN() string {
	side := "w"
	if b.turn == Black {
		side = "b"
	}
	return fmt.Sprintf("%s %s %s %s %d %d",
		b.placement(), side, b.castling, b.enPassant, b.halfmove, b.fullmove)
}

func (b Board) String() string { return b.FEN() }
