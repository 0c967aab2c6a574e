package chess

import "strings"

// Board is one position. It is a value: Apply returns a successor and never mutates
// the receiver, so a Board can be shared freely between plies.
type Board struct {
	squares   [64]Piece
	turn      Color
	castling  CastlingRights
	enPassant Square
	halfmove  int
	fullmove  int
}

var backRank = [8]PieceKind{Rook, Knight, Bishop, Queen, King, Bishop, Knight, Rook}

// NewBoard returns the standard starting position.
func NewBoard() Board {
	var b Board
	for f := 0; f < 8; f++ {
		b.squares[NewSquare(f, 0)] = Piece{Kind: backRank[f], Color: White}
		b.squares[NewSquare(f, 1)] = Piece{Kind: Pawn, Color: White}
		b.squares[NewSquare(f, 6)] = Piece{Kind: Pawn, Color: Black}
		b.squares[NewSquare(f, 7)] = Piece{Kind: backRank[f], Color: Black}
	}
	b.turn = White
	b.castling = AllCastling
	b.enPassant = NoSquare
	b.fullmove = 1
	return b
}

func (b Board) PieceAt(sq Square) Piece {
	if !sq.Valid() {
		return NoPiece
	}
	return b.squares[sq]
}

func (b Board) Turn() Color { return b.turn }

func (b Board) Castling() CastlingRights { return b.castling }

func (b Board) EnPassantTarget() Square { return b.enPassant }

func (b Board) HalfmoveClock() int { return b.halfmove }

func (b Board) FullmoveNumber() int { return b.fullmove }

// IsStandardStart reports whether b is exactly the initial position.
func (b Board) IsStandardStart() bool { return b == NewBoard() }

func (b Board) kingSquare(c Color) Square { return b.find(Piece{Kind: King, Color: c}) }

func (b Board) countPieces(p Piece) (n int) {
	for _, sq := range b.squares {
		if sq == p {
			n++
		}
	}
	return n
}

func (b Board) find(p Piece) Square {
	for i, sq := range b.squares {
		if sq == p {
			return Square(i)
		}
	}
	return NoSquare
}

// Apply plays m and returns the successor position. Legality is the caller's concern;
// see LegalMoves and IsLegal.
func (b Board) Apply(m Move) Board {
	next := b
	piece := b.squares[m.From]
	captured := b.squares[m.To]

	next.squares[m.From] = NoPiece
	switch {
	case piece.Kind == Pawn && m.To == b.enPassant && m.From.File() != m.To.File() && captured.IsEmpty() &&
		b.squares[NewSquare(m.To.File(), m.From.Rank())] == (Piece{Kind: Pawn, Color: piece.Color.Other()}):
		next.squares[NewSquare(m.To.File(), m.From.Rank())] = NoPiece
		captured = Piece{Kind: Pawn, Color: piece.Color.Other()}
	case piece.Kind == King && m.To.File()-m.From.File() == 2:
		rank := m.From.Rank()
		next.squares[NewSquare(5, rank)] = next.squares[NewSquare(7, rank)]
		next.squares[NewSquare(7, rank)] = NoPiece
	case piece.Kind == King && m.From.File()-m.To.File() == 2:
		rank := m.From.Rank()
		next.squares[NewSquare(3, rank)] = next.squares[NewSquare(0, rank)]
		next.squares[NewSquare(0, rank)] = NoPiece
	}

	placed := piece
	if piece.Kind == Pawn && (m.To.Rank() == 0 || m.To.Rank() == 7) {
		placed.Kind = Queen
		if m.Promotion != NoKind {
			placed.Kind = m.Promotion
		}
	}
	next.squares[m.To] = placed

	if piece.Kind == King {
		next.castling &^= kingsideRight(piece.Color) | queensideRight(piece.Color)
	}
	next.castling &^= rookRight(m.From) | rookRight(m.To)

	next.enPassant = NoSquare
	if piece.Kind == Pawn && abs(m.To.Rank()-m.From.Rank()) == 2 {
		next.enPassant = NewSquare(m.From.File(), (m.From.Rank()+m.To.Rank())/2)
	}

	if piece.Kind == Pawn || !captured.IsEmpty() {
		next.halfmove = 0
	} else {
		next.halfmove++
	}
	if b.turn == Black {
		next.fullmove++
	}
	next.turn = b.turn.Other()
	return next
}

// rookRight is the castling right lost when a piece leaves or lands on sq.
func rookRight(sq Square) CastlingRights {
	switch sq {
	case NewSquare(0, 0):
		return WhiteQueenside
	case NewSquare(7, 0):
		return WhiteKingside
	case NewSquare(0, 7):
		return BlackQueenside
	case NewSquare(7, 7):
		return BlackKingside
	default:
		return NoCastling
	}
}

// Grid renders ranks 8..1, files a..h, using FEN letters and "." for empty squares.
func (b Board) Grid() [][]string {
	grid := make([][]string, 0, 8)
	for rank := 7; rank >= 0; rank-- {
		row := make([]string, 0, 8)
		for file := 0; file < 8; file++ {
			row = append(row, string(b.squares[NewSquare(file, rank)].Symbol()))
		}
		grid = append(grid, row)
	}
	return grid
}

// PositionKey identifies a position for repetition: placement, side to move, castling
// rights and a capturable en-passant square. Counters are excluded.
type PositionKey string

func (b Board) PositionKey() PositionKey {
	var sb strings.Builder
	sb.WriteString(b.placement())
	sb.WriteByte(' ')
	if b.turn == White {
		sb.WriteByte('w')
	} else {
		sb.WriteByte('b')
	}
	sb.WriteByte(' ')
	sb.WriteString(b.castling.String())
	sb.WriteByte(' ')
	if b.enPassantCapturable() {
		sb.WriteString(b.enPassant.String())
	} else {
		sb.WriteByte('-')
	}
	return PositionKey(sb.String())
}

// enPassantCapturable reports whether a pawn of the side to move stands next to the
// double-pushed pawn, so that the en-passant target actually changes the position.
func (b Board) enPassantCapturable() bool {
	if !b.enPassant.Valid() {
		return false
	}
	dir := -1
	if b.turn == Black {
		dir = 1
	}
	own := Piece{Kind: Pawn, Color: b.turn}
	for _, df := range [2]int{-1, 1} {
		if b.PieceAt(b.enPassant.offset(df, dir)) == own {
			return true
		}
	}
	return false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
