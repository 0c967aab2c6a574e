package chess

var (
	knightSteps   = [8][2]int{{-2, -1}, {-2, 1}, {-1, -2}, {-1, 2}, {1, -2}, {1, 2}, {2, -1}, {2, 1}}
	kingSteps     = [8][2]int{{-1, -1}, {-1, 0}, {-1, 1}, {0, -1}, {0, 1}, {1, -1}, {1, 0}, {1, 1}}
	diagonalDirs  = [4][2]int{{-1, -1}, {-1, 1}, {1, -1}, {1, 1}}
	orthogonalDir = [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}
)

// IsInCheck reports whether c's king is attacked by the opponent.
func IsInCheck(b Board, c Color) bool {
	king := b.kingSquare(c)
	if king == NoSquare {
		return false
	}
	return isAttacked(b, king, c.Other())
}

// isAttacked reports whether sq is attacked by any piece of colour by.
func isAttacked(b Board, sq Square, by Color) bool {
	// a white pawn attacks upwards, so it sits one rank below the target
	pawnRank := -1
	if by == Black {
		pawnRank = 1
	}
	pawn := Piece{Kind: Pawn, Color: by}
	for _, df := range [2]int{-1, 1} {
		if b.PieceAt(sq.offset(df, pawnRank)) == pawn {
			return true
		}
	}

	knight := Piece{Kind: Knight, Color: by}
	for _, st := range knightSteps {
		if b.PieceAt(sq.offset(st[0], st[1])) == knight {
			return true
		}
	}

	king := Piece{Kind: King, Color: by}
	for _, st := range kingSteps {
		if b.PieceAt(sq.offset(st[0], st[1])) == king {
			return true
		}
	}

	queen := Piece{Kind: Queen, Color: by}
	if rayHits(b, sq, diagonalDirs[:], Piece{Kind: Bishop, Color: by}, queen) {
		return true
	}
	return rayHits(b, sq, orthogonalDir[:], Piece{Kind: Rook, Color: by}, queen)
}

// rayHits walks each direction from sq until the first occupied square and reports
// whether that piece is one of the two sliders.
func rayHits(b Board, sq Square, dirs [][2]int, slider, queen Piece) bool {
	for _, d := range dirs {
		for cur := sq.offset(d[0], d[1]); cur != NoSquare; cur = cur.offset(d[0], d[1]) {
			p := b.squares[cur]
			if p.IsEmpty() {
				continue
			}
			if p == slider || p == queen {
				return true
			}
			break
		}
	}
	return false
}
