package chess

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Clock is a two-sided chess clock in whole seconds. Time is charged to the side that
// just moved for the wall-clock time since its turn began. An untimed clock still
// measures elapsed time but never runs down.
type Clock struct {
	Remaining [2]int
	LastMove  time.Time
	Increment int
	Untimed   bool
}

func NewClock(white, black, increment int, start time.Time) Clock {
	return Clock{
		Remaining: [2]int{max(0, white), max(0, black)},
		LastMove:  start,
		Increment: max(0, increment),
	}
}

// AccountMove charges mover for the time since LastMove, adds the increment, moves
// LastMove to now and returns the charged seconds. A clock running backwards charges 0.
func (c *Clock) AccountMove(mover Color, now time.Time) int {
	elapsed := roundSeconds(now.Sub(c.LastMove))
	c.LastMove = now
	if c.Untimed {
		return elapsed
	}
	c.Remaining[mover] = max(0, c.Remaining[mover]-elapsed+c.Increment)
	return elapsed
}

func (c Clock) HasTimedOut(color Color) bool { return !c.Untimed && c.Remaining[color] <= 0 }

// RemainingAt is what color would have left if its turn, which began at LastMove,
// ended at now.
func (c Clock) RemainingAt(color Color, now time.Time) int {
	return max(0, c.Remaining[color]-roundSeconds(now.Sub(c.LastMove)))
}

// Flagged reports that the side to move has run out of time without moving.
func (c Clock) Flagged(toMove Color, now time.Time) bool {
	return !c.Untimed && c.RemainingAt(toMove, now) <= 0
}

// roundSeconds rounds half to even, the way the clock has always reported whole seconds.
func roundSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.RoundToEven(d.Seconds()))
}

// EpochTime converts fractional epoch seconds.
func EpochTime(epoch float64) time.Time {
	sec, frac := math.Modf(epoch)
	return time.Unix(int64(sec), int64(frac*1e9))
}

// EpochSeconds is the inverse of EpochTime.
func EpochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// TimeControl is a base/increment pair in seconds. A zero Base means untimed.
type TimeControl struct {
	Base      int
	Increment int
}

func (tc TimeControl) Untimed() bool { return tc.Base <= 0 }

func (tc TimeControl) String() string {
	if tc.Untimed() {
		return "none"
	}
	return fmt.Sprintf("%d+%d", tc.Base/60, tc.Increment)
}

// ParseTimeControl accepts "minutes+increment" ("10+5", "3+2"), bare minutes ("15"),
// and "none" or "" for an untimed game.
func ParseTimeControl(s string) (TimeControl, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "none" || s == "-" {
		return TimeControl{}, nil
	}
	base, inc, found := strings.Cut(s, "+")
	minutes, err := strconv.Atoi(strings.TrimSpace(base))
	if err != nil || minutes <= 0 {
		return TimeControl{}, fmt.Errorf("time control %q: bad minutes", s)
	}
	tc := TimeControl{Base: minutes * 60}
	if found {
		n, err := strconv.Atoi(strings.TrimSpace(inc))
		if err != nil || n < 0 {
			return TimeControl{}, fmt.Errorf("time control %q: bad increment", s)
		}
		tc.Increment = n
	}
	return tc, nil
}

// Clock starts a clock for tc at start.
func (tc TimeControl) Clock(start time.Time) Clock {
	c := NewClock(tc.Base, tc.Base, tc.Increment, start)
	c.Untimed = tc.Untimed()
	return c
}
