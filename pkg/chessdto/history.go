package chessdto

import "time"

// ChessGame is a finished game as stored in the results table.
type ChessGame struct {
	ID          int64         `json:"id"`
	GameUUID    string        `json:"game_uuid"`
	WhiteID     string        `json:"white_id"`
	WhiteName   string        `json:"white_name"`
	BlackID     string        `json:"black_id"`
	BlackName   string        `json:"black_name"`
	Result      string        `json:"result"`
	Reason      string        `json:"reason"`
	TimeControl string        `json:"time_control"`
	StartFEN    string        `json:"start_fen,omitempty"`
	MovesUCI    []string      `json:"moves_uci"`
	MovesSAN    []string      `json:"moves_san"`
	PGN         string        `json:"pgn"`
	StartedAt   time.Time     `json:"started_at"`
	EndedAt     time.Time     `json:"ended_at"`
	Duration    time.Duration `json:"duration"`
}
