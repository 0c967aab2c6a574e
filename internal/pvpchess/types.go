package pvpchess

import (
	"errors"
	"time"

	"github.com/park285/cheese-chess-server/internal/chess"
)

// Color identifies chess side.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

func colorOf(c chess.Color) Color {
	if c == chess.White {
		return White
	}
	return Black
}

// Status represents a PvP game lifecycle state.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusFinished Status = "FINISHED"
	StatusResigned Status = "RESIGNED"
	StatusDraw     Status = "DRAW"
	StatusTimeout  Status = "TIMEOUT"
)

var (
	ErrGameNotFound        = errors.New("game not found")
	ErrGameNotActive       = errors.New("game is no longer active")
	ErrNotAPlayer          = errors.New("user not in game")
	ErrNotYourTurn         = errors.New("not your turn")
	ErrConflict            = errors.New("concurrent update, retry")
	ErrTimeoutNotReached   = errors.New("opponent still has time")
	ErrInvalidParticipants = errors.New("invalid participants")
	ErrAlreadyPlaying      = errors.New("player already has an active game")
	ErrInvalidTimeControl  = errors.New("invalid time control")
)

// Game is the persisted state of a PvP match. Clock fields are as of the last move.
type Game struct {
	ID       string   `json:"id"`
	StartFEN string   `json:"start_fen,omitempty"`
	FEN      string   `json:"fen"`
	MovesUCI []string `json:"moves_uci"`
	MovesSAN []string `json:"moves_san"`
	Turn     Color    `json:"turn"`
	Status   Status   `json:"status"`

	// BoardStatus is the rules status of the position (in_progress, checkmate, ...).
	BoardStatus string `json:"board_status"`
	Reason      string `json:"reason,omitempty"`
	Result      string `json:"result,omitempty"`
	Winner      string `json:"winner,omitempty"`

	WhiteID   string `json:"white_id"`
	WhiteName string `json:"white_name"`
	BlackID   string `json:"black_id"`
	BlackName string `json:"black_name"`

	TimeControl   string  `json:"time_control"`
	Untimed       bool    `json:"untimed,omitempty"`
	Increment     int     `json:"increment"`
	WhiteTimeLeft int     `json:"white_time_left"`
	BlackTimeLeft int     `json:"black_time_left"`
	LastMoveEpoch float64 `json:"last_move_epoch"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Finished reports a game that can no longer change.
func (g *Game) Finished() bool { return g.Status != StatusActive }

func (g *Game) colorFor(userID string) Color {
	switch userID {
	case "":
		return ""
	case g.WhiteID:
		return White
	case g.BlackID:
		return Black
	}
	return ""
}

func (g *Game) idFor(c Color) string {
	if c == White {
		return g.WhiteID
	}
	return g.BlackID
}

func (g *Game) clock() chess.Clock {
	c := chess.Clock{
		LastMove:  chess.EpochTime(g.LastMoveEpoch),
		Increment: g.Increment,
		Untimed:   g.Untimed,
	}
	c.Remaining[chess.White] = g.WhiteTimeLeft
	c.Remaining[chess.Black] = g.BlackTimeLeft
	return c
}

// MoveOutcome is what PlayMove reports back to the mover.
type MoveOutcome struct {
	Game      *Game
	Applied   string
	SAN       string
	TimeTaken int
}

// Params describes a game to create. An empty TimeControl uses the manager default.
type Params struct {
	WhiteID     string
	WhiteName   string
	BlackID     string
	BlackName   string
	TimeControl string
	StartFEN    string
}
