package chess

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMalformedMove = errors.New("malformed move")
	ErrIllegalMove   = errors.New("illegal move")
)

type moveFlags uint8

const (
	flagEnPassant moveFlags = 1 << iota
	flagCastle
	flagCapture
)

// Move is a from/to pair with an optional promotion. The en-passant, castle and capture
// flags are derived by the move generator and cannot be set by callers.
type Move struct {
	From      Square
	To        Square
	Promotion PieceKind
	flags     moveFlags
}

func (m Move) EnPassant() bool { return m.flags&flagEnPassant != 0 }
func (m Move) Castle() bool    { return m.flags&flagCastle != 0 }
func (m Move) Capture() bool   { return m.flags&flagCapture != 0 }

// String renders coordinate (UCI) notation, e.g. "e2e4" or "e7e8q".
func (m Move) String() string {
	s := m.From.String() + m.To.String()
	if m.Promotion != NoKind {
		s += string(kindLetters[m.Promotion])
	}
	return s
}

// same compares the caller-visible fields only.
func (m Move) same(o Move) bool {
	return m.From == o.From && m.To == o.To && m.Promotion == o.Promotion
}

// ParseMove decodes four or five character coordinate notation.
func ParseMove(s string) (Move, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 4 && len(s) != 5 {
		return Move{}, fmt.Errorf("%w: %q", ErrMalformedMove, s)
	}
	from, ok := ParseSquare(s[0:2])
	if !ok {
		return Move{}, fmt.Errorf("%w: %q", ErrMalformedMove, s)
	}
	to, ok := ParseSquare(s[2:4])
	if !ok || to == from {
		return Move{}, fmt.Errorf("%w: %q", ErrMalformedMove, s)
	}
	m := Move{From: from, To: to}
	if len(s) == 5 {
		switch k := kindFromLetter(s[4]); k {
		case Knight, Bishop, Rook, Queen:
			m.Promotion = k
		case Pawn, King:
			// well formed, but no pawn ever promotes to these
			return Move{}, fmt.Errorf("%w: promotion to %q", ErrIllegalMove, s[4])
		default:
			return Move{}, fmt.Errorf("%w: promotion %q", ErrMalformedMove, s[4])
		}
	}
	return m, nil
}
