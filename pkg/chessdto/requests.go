package chessdto

// Position is the part every board response shares.
type Position struct {
	FEN        string     `json:"fen,omitempty"`
	Grid       [][]string `json:"grid"`
	Turn       string     `json:"turn"`
	LegalMoves []string   `json:"legal_moves"`
	Status     string     `json:"status,omitempty"`
}

type NewGameResponse struct {
	Position
	NowEpoch float64 `json:"now_epoch"`
}

type StatusRequest struct {
	FEN string `json:"fen"`
}

type StatusResponse struct {
	Position
}

// MoveRequest carries the whole game state; the stateless API keeps nothing between calls.
// Nil clock fields take the server defaults. Fractional seconds are truncated.
type MoveRequest struct {
	FEN              string   `json:"fen"`
	Move             string   `json:"move"`
	WhiteTimeLeft    *float64 `json:"white_time_left,omitempty"`
	BlackTimeLeft    *float64 `json:"black_time_left,omitempty"`
	LastMoveEpoch    *float64 `json:"last_move_epoch,omitempty"`
	IncrementSeconds *float64 `json:"increment_seconds,omitempty"`
}

type MoveResponse struct {
	Position
	Applied       string  `json:"applied"`
	SAN           string  `json:"san"`
	WhiteTimeLeft int     `json:"white_time_left"`
	BlackTimeLeft int     `json:"black_time_left"`
	LastMoveEpoch float64 `json:"last_move_epoch"`
	Result        *string `json:"result"`
	TimeTaken     int     `json:"time_taken"`
}

type UndoRequest struct {
	Moves    []string `json:"moves"`
	StartFEN string   `json:"start_fen,omitempty"`
}

type UndoResponse struct {
	Position
	Undone string `json:"undone"`
}

type PGNRequest struct {
	Moves    []string `json:"moves"`
	White    *string  `json:"white,omitempty"`
	Black    *string  `json:"black,omitempty"`
	Result   string   `json:"result,omitempty"`
	StartFEN string   `json:"start_fen,omitempty"`
}

type PGNResponse struct {
	PGN string `json:"pgn"`
	// Applied is how many of the submitted moves made it into the record.
	Applied int `json:"applied"`
}

type BoardImageRequest struct {
	FEN  string `json:"fen"`
	Last string `json:"last,omitempty"`
}
