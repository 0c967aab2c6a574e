package chess

import "strings"

// Color identifies a side.
type Color uint8

const (
	White Color = iota
	Black
)

func (c Color) Other() Color {
	if c == White {
		return Black
	}
	return White
}

func (c Color) String() string {
	if c == White {
		return "white"
	}
	return "black"
}

// ParseColor accepts "white"/"w" and "black"/"b".
func ParseColor(s string) (Color, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "white", "w":
		return White, true
	case "black", "b":
		return Black, true
	default:
		return White, false
	}
}

// PieceKind is the piece type without colour. The zero value means no piece.
type PieceKind uint8

const (
	NoKind PieceKind = iota
	Pawn
	Knight
	Bishop
	Rook
	Queen
	King
)

var kindLetters = [...]byte{' ', 'p', 'n', 'b', 'r', 'q', 'k'}

// Letter returns the upper-case SAN letter ('P' for pawns).
func (k PieceKind) Letter() byte {
	if int(k) >= len(kindLetters) || k == NoKind {
		return '?'
	}
	return kindLetters[k] - 'a' + 'A'
}

func (k PieceKind) String() string {
	switch k {
	case Pawn:
		return "pawn"
	case Knight:
		return "knight"
	case Bishop:
		return "bishop"
	case Rook:
		return "rook"
	case Queen:
		return "queen"
	case King:
		return "king"
	default:
		return "none"
	}
}

func kindFromLetter(c byte) PieceKind {
	switch c {
	case 'p', 'P':
		return Pawn
	case 'n', 'N':
		return Knight
	case 'b', 'B':
		return Bishop
	case 'r', 'R':
		return Rook
	case 'q', 'Q':
		return Queen
	case 'k', 'K':
		return King
	default:
		return NoKind
	}
}

// Piece is a (kind, colour) pair. The zero value is an empty square.
type Piece struct {
	Kind  PieceKind
	Color Color
}

var NoPiece = Piece{}

func (p Piece) IsEmpty() bool { return p.Kind == NoKind }

// Symbol is the FEN letter: upper case for white, lower case for black, '.' when empty.
func (p Piece) Symbol() byte {
	if p.IsEmpty() {
		return '.'
	}
	if p.Color == White {
		return p.Kind.Letter()
	}
	return kindLetters[p.Kind]
}

func pieceFromSymbol(c byte) (Piece, bool) {
	k := kindFromLetter(c)
	if k == NoKind {
		return NoPiece, false
	}
	color := White
	if c >= 'a' && c <= 'z' {
		color = Black
	}
	return Piece{Kind: k, Color: color}, true
}

// Square indexes the board: a1 = 0, b1 = 1, ... h8 = 63.
type Square int8

const NoSquare Square = -1

func NewSquare(file, rank int) Square { return Square(rank*8 + file) }

func (s Square) File() int { return int(s) & 7 }
func (s Square) Rank() int { return int(s) >> 3 }

func (s Square) Valid() bool { return s >= 0 && s < 64 }

func (s Square) String() string {
	if !s.Valid() {
		return "-"
	}
	return string([]byte{byte('a' + s.File()), byte('1' + s.Rank())})
}

// ParseSquare decodes "e4" style coordinates.
func ParseSquare(s string) (Square, bool) {
	if len(s) != 2 {
		return NoSquare, false
	}
	f, r := s[0], s[1]
	if f < 'a' || f > 'h' || r < '1' || r > '8' {
		return NoSquare, false
	}
	return NewSquare(int(f-'a'), int(r-'1')), true
}

// offset returns the square df files and dr ranks away, or NoSquare when off the board.
func (s Square) offset(df, dr int) Square {
	f, r := s.File()+df, s.Rank()+dr
	if f < 0 || f > 7 || r < 0 || r > 7 {
		return NoSquare
	}
	return NewSquare(f, r)
}

// CastlingRights is a bit set of the four castling options.
type CastlingRights uint8

const (
	WhiteKingside CastlingRights = 1 << iota
	WhiteQueenside
	BlackKingside
	BlackQueenside

	NoCastling  CastlingRights = 0
	AllCastling                = WhiteKingside | WhiteQueenside | BlackKingside | BlackQueenside
)

func (c CastlingRights) Has(r CastlingRights) bool { return c&r != 0 }

func (c CastlingRights) String() string {
	if c == NoCastling {
		return "-"
	}
	var b strings.Builder
	if c.Has(WhiteKingside) {
		b.WriteByte('K')
	}
	if c.Has(WhiteQueenside) {
		b.WriteByte('Q')
	}
	if c.Has(BlackKingside) {
		b.WriteByte('k')
	}
	if c.Has(BlackQueenside) {
		b.WriteByte('q')
	}
	return b.String()
}

func kingsideRight(c Color) CastlingRights {
	if c == White {
		return WhiteKingside
	}
	return BlackKingside
}

func queensideRight(c Color) CastlingRights {
	if c == White {
		return WhiteQueenside
	}
	return BlackQueenside
}
