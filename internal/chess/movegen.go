package chess

import "iter"

var promotionKinds = [4]PieceKind{Queen, Rook, Bishop, Knight}

// Moves lazily yields the legal moves of the side to move. The sequence is finite,
// can be ranged over any number of times and always yields the same order for the
// same board: origin square ascending, then generation order per piece.
func Moves(b Board) iter.Seq[Move] {
	return func(yield func(Move) bool) {
		us := b.turn
		for from := Square(0); from < 64; from++ {
			p := b.squares[from]
			if p.IsEmpty() || p.Color != us {
				continue
			}
			for m := range pseudoMoves(b, from, p) {
				if IsInCheck(b.Apply(m), us) {
					continue
				}
				if !yield(m) {
					return
				}
			}
		}
	}
}

// LegalMoves collects Moves(b).
func LegalMoves(b Board) []Move {
	var out []Move
	for m := range Moves(b) {
		out = append(out, m)
	}
	return out
}

// HasLegalMoves stops at the first legal move.
func HasLegalMoves(b Board) bool {
	for range Moves(b) {
		return true
	}
	return false
}

// IsLegal matches m against the legal set by from/to/promotion and returns the
// generator's move, which carries the derived flags.
func IsLegal(b Board, m Move) (Move, bool) {
	p := b.PieceAt(m.From)
	if p.IsEmpty() || p.Color != b.turn {
		return Move{}, false
	}
	for cand := range pseudoMoves(b, m.From, p) {
		if cand.same(m) {
			if IsInCheck(b.Apply(cand), b.turn) {
				return Move{}, false
			}
			return cand, true
		}
	}
	return Move{}, false
}

func pseudoMoves(b Board, from Square, p Piece) iter.Seq[Move] {
	return func(yield func(Move) bool) {
		switch p.Kind {
		case Pawn:
			pawnMoves(b, from, p.Color, yield)
		case Knight:
			stepMoves(b, from, p.Color, knightSteps[:], yield)
		case Bishop:
			slideMoves(b, from, p.Color, diagonalDirs[:], yield)
		case Rook:
			slideMoves(b, from, p.Color, orthogonalDir[:], yield)
		case Queen:
			if slideMoves(b, from, p.Color, diagonalDirs[:], yield) {
				slideMoves(b, from, p.Color, orthogonalDir[:], yield)
			}
		case King:
			if stepMoves(b, from, p.Color, kingSteps[:], yield) {
				castleMoves(b, from, p.Color, yield)
			}
		}
	}
}

// Each generator returns false once yield asked to stop.

func pawnMoves(b Board, from Square, us Color, yield func(Move) bool) bool {
	dir, startRank, lastRank := 1, 1, 7
	if us == Black {
		dir, startRank, lastRank = -1, 6, 0
	}
	emit := func(to Square, flags moveFlags) bool {
		if to.Rank() == lastRank {
			for _, k := range promotionKinds {
				if !yield(Move{From: from, To: to, Promotion: k, flags: flags}) {
					return false
				}
			}
			return true
		}
		return yield(Move{From: from, To: to, flags: flags})
	}

	if one := from.offset(0, dir); one != NoSquare && b.squares[one].IsEmpty() {
		if !emit(one, 0) {
			return false
		}
		if from.Rank() == startRank {
			if two := from.offset(0, 2*dir); b.squares[two].IsEmpty() {
				if !emit(two, 0) {
					return false
				}
			}
		}
	}
	for _, df := range [2]int{-1, 1} {
		to := from.offset(df, dir)
		if to == NoSquare {
			continue
		}
		target := b.squares[to]
		switch {
		case !target.IsEmpty() && target.Color != us:
			if !emit(to, flagCapture) {
				return false
			}
		case to == b.enPassant && target.IsEmpty() && b.squares[NewSquare(to.File(), from.Rank())] == (Piece{Kind: Pawn, Color: us.Other()}):
			if !emit(to, flagCapture|flagEnPassant) {
				return false
			}
		}
	}
	return true
}

func stepMoves(b Board, from Square, us Color, steps [][2]int, yield func(Move) bool) bool {
	for _, st := range steps {
		to := from.offset(st[0], st[1])
		if to == NoSquare {
			continue
		}
		target := b.squares[to]
		if target.IsEmpty() {
			if !yield(Move{From: from, To: to}) {
				return false
			}
		} else if target.Color != us {
			if !yield(Move{From: from, To: to, flags: flagCapture}) {
				return false
			}
		}
	}
	return true
}

func slideMoves(b Board, from Square, us Color, dirs [][2]int, yield func(Move) bool) bool {
	for _, d := range dirs {
		for to := from.offset(d[0], d[1]); to != NoSquare; to = to.offset(d[0], d[1]) {
			target := b.squares[to]
			if target.IsEmpty() {
				if !yield(Move{From: from, To: to}) {
					return false
				}
				continue
			}
			if target.Color != us {
				if !yield(Move{From: from, To: to, flags: flagCapture}) {
					return false
				}
			}
			break
		}
	}
	return true
}

// castleMoves requires the right, the rook in its corner, empty squares between king and
// rook, and a king that neither starts in, passes through nor lands on an attacked square.
func castleMoves(b Board, from Square, us Color, yield func(Move) bool) bool {
	home := 0
	if us == Black {
		home = 7
	}
	if from != NewSquare(4, home) {
		return true
	}
	them := us.Other()
	if isAttacked(b, from, them) {
		return true
	}
	rook := Piece{Kind: Rook, Color: us}

	if b.castling.Has(kingsideRight(us)) && b.squares[NewSquare(7, home)] == rook &&
		b.squares[NewSquare(5, home)].IsEmpty() && b.squares[NewSquare(6, home)].IsEmpty() &&
		!isAttacked(b, NewSquare(5, home), them) && !isAttacked(b, NewSquare(6, home), them) {
		if !yield(Move{From: from, To: NewSquare(6, home), flags: flagCastle}) {
			return false
		}
	}
	if b.castling.Has(queensideRight(us)) && b.squares[NewSquare(0, home)] == rook &&
		b.squares[NewSquare(1, home)].IsEmpty() && b.squares[NewSquare(2, home)].IsEmpty() &&
		b.squares[NewSquare(3, home)].IsEmpty() &&
		!isAttacked(b, NewSquare(3, home), them) && !isAttacked(b, NewSquare(2, home), them) {
		if !yield(Move{From: from, To: NewSquare(2, home), flags: flagCastle}) {
			return false
		}
	}
	return true
}
