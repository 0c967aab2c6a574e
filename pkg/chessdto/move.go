package chessdto

import "time"

type Player struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// LiveGame is a two-player game as clients and spectators see it.
type LiveGame struct {
	Position

	ID            string    `json:"id"`
	White         Player    `json:"white"`
	Black         Player    `json:"black"`
	StartFEN      string    `json:"start_fen,omitempty"`
	MovesUCI      []string  `json:"moves_uci"`
	MovesSAN      []string  `json:"moves_san"`
	Result        string    `json:"result,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	TimeControl   string    `json:"time_control"`
	WhiteTimeLeft int       `json:"white_time_left"`
	BlackTimeLeft int       `json:"black_time_left"`
	LastMoveEpoch float64   `json:"last_move_epoch"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// MoveSummary is the reply to a move in a live game.
type MoveSummary struct {
	Game      *LiveGame `json:"game"`
	Applied   string    `json:"applied"`
	SAN       string    `json:"san"`
	TimeTaken int       `json:"time_taken"`
	Finished  bool      `json:"finished"`
}

type CreateGameRequest struct {
	White       Player `json:"white"`
	Black       Player `json:"black"`
	TimeControl string `json:"time_control,omitempty"`
	StartFEN    string `json:"start_fen,omitempty"`
}

type PlayerMoveRequest struct {
	PlayerID string `json:"player_id"`
	Move     string `json:"move"`
}

type PlayerActionRequest struct {
	PlayerID string `json:"player_id"`
}
