package chess

// Status classifies a game.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCheckmate  Status = "checkmate"
	StatusStalemate  Status = "stalemate"
	StatusDraw       Status = "draw"
	StatusTimeout    Status = "timeout"
)

// Terminal is true for every status except in_progress.
func (s Status) Terminal() bool { return s != StatusInProgress && s != "" }

// Result is the outcome once a game is over.
type Result string

const (
	NoResult  Result = ""
	WhiteWin  Result = "white_win"
	BlackWin  Result = "black_win"
	DrawnGame Result = "draw"
)

// WinFor returns the result in which c wins.
func WinFor(c Color) Result {
	if c == White {
		return WhiteWin
	}
	return BlackWin
}

// PGN returns the result token used in game records.
func (r Result) PGN() string {
	switch r {
	case WhiteWin:
		return "1-0"
	case BlackWin:
		return "0-1"
	case DrawnGame:
		return "1/2-1/2"
	default:
		return "*"
	}
}

// ResultFromPGN maps "1-0", "0-1" and "1/2-1/2"; anything else is NoResult.
func ResultFromPGN(token string) Result {
	switch token {
	case "1-0":
		return WhiteWin
	case "0-1":
		return BlackWin
	case "1/2-1/2":
		return DrawnGame
	default:
		return NoResult
	}
}

// DrawReason says which rule produced a draw.
type DrawReason string

const (
	DrawNone                 DrawReason = ""
	DrawFiftyMoves           DrawReason = "fifty_moves"
	DrawThreefoldRepetition  DrawReason = "threefold_repetition"
	DrawInsufficientMaterial DrawReason = "insufficient_material"
)

type Evaluation struct {
	Status Status
	Draw   DrawReason
}

// Evaluate classifies b. previous holds the position keys of every earlier position of
// the game, oldest first, and is only used for repetition. Mate and stalemate come from
// the legal move set and take precedence over the draw rules.
func Evaluate(b Board, previous []PositionKey) Evaluation {
	if !HasLegalMoves(b) {
		if IsInCheck(b, b.turn) {
			return Evaluation{Status: StatusCheckmate}
		}
		return Evaluation{Status: StatusStalemate}
	}
	if b.halfmove >= 100 {
		return Evaluation{Status: StatusDraw, Draw: DrawFiftyMoves}
	}
	if len(previous) >= 2 {
		key := b.PositionKey()
		seen := 1
		for _, k := range previous {
			if k == key {
				seen++
			}
		}
		if seen >= 3 {
			return Evaluation{Status: StatusDraw, Draw: DrawThreefoldRepetition}
		}
	}
	if InsufficientMaterial(b) {
		return Evaluation{Status: StatusDraw, Draw: DrawInsufficientMaterial}
	}
	return Evaluation{Status: StatusInProgress}
}

// InsufficientMaterial reports that neither side can ever deliver mate: bare kings, a
// single minor piece against a bare king, or bishops that all stand on one square colour.
func InsufficientMaterial(b Board) bool {
	return cannotMate(b, White) && cannotMate(b, Black)
}

func cannotMate(b Board, c Color) bool {
	var own, knights, bishops int
	var opponentMaterial bool
	for _, p := range b.squares {
		if p.IsEmpty() {
			continue
		}
		if p.Color != c {
			if p.Kind != King && p.Kind != Queen {
				opponentMaterial = true
			}
			continue
		}
		own++
		switch p.Kind {
		case Pawn, Rook, Queen:
			return false
		case Knight:
			knights++
		case Bishop:
			bishops++
		}
	}
	if knights > 0 {
		return own <= 2 && !opponentMaterial
	}
	if bishops > 0 {
		return bishopsOneColor(b) && !anyOf(b, Pawn) && !anyOf(b, Knight)
	}
	return true
}

// bishopsOneColor is true when every bishop on the board, of either side, stands on
// squares of the same colour.
func bishopsOneColor(b Board) bool {
	light, dark := false, false
	for i, p := range b.squares {
		if p.Kind != Bishop {
			continue
		}
		sq := Square(i)
		if (sq.File()+sq.Rank())%2 == 0 {
			dark = true
		} else {
			light = true
		}
	}
	return !(light && dark)
}

func anyOf(b Board, k PieceKind) bool {
	for _, p := range b.squares {
		if p.Kind == k {
			return true
		}
	}
	return false
}
