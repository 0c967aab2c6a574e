package challenge

import (
	"strings"
	"time"
)

// ColorChoice is the side the challenger asked to play.
type ColorChoice string

const (
	ColorWhite  ColorChoice = "white"
	ColorBlack  ColorChoice = "black"
	ColorRandom ColorChoice = "random"
)

// ParseColorChoice accepts white/black and their initials; anything else is random.
func ParseColorChoice(s string) ColorChoice {
	switch c := ColorChoice(strings.ToLower(strings.TrimSpace(s))); c {
	case ColorWhite, "w":
		return ColorWhite
	case ColorBlack, "b":
		return ColorBlack
	}
	return ColorRandom
}

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusAccepted Status = "ACCEPTED"
	StatusDeclined Status = "DECLINED"
	StatusExpired  Status = "EXPIRED"
)

// Challenge is an invitation from ChallengerID to TargetID. GameID is set once an
// accepted challenge has started its game.
type Challenge struct {
	ID             string      `json:"id"`
	ChallengerID   string      `json:"challenger_id"`
	ChallengerName string      `json:"challenger_name"`
	TargetID       string      `json:"target_id"`
	TargetName     string      `json:"target_name,omitempty"`
	Color          ColorChoice `json:"color"`
	TimeControl    string      `json:"time_control,omitempty"`
	Status         Status      `json:"status"`
	GameID         string      `json:"game_id,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	ResolvedAt     time.Time   `json:"resolved_at,omitempty"`
}

func (c *Challenge) Open() bool { return c.Status == StatusPending }

// stale reports whether c has sat in its current state for ttl or longer.
func (c *Challenge) stale(now time.Time, ttl time.Duration) bool {
	since := c.ResolvedAt
	if c.Open() {
		since = c.CreatedAt
	}
	return now.Sub(since) >= ttl
}
