package chess

import (
	"math"
	"testing"
	"time"
)

func TestClockAccountMove(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	c := NewClock(600, 600, 0, start)

	taken := c.AccountMove(White, start.Add(10*time.Second))
	if taken != 10 || c.Remaining[White] != 590 || c.Remaining[Black] != 600 {
		t.Fatalf("after white: taken=%d remaining=%v", taken, c.Remaining)
	}
	if !c.LastMove.Equal(start.Add(10 * time.Second)) {
		t.Fatalf("LastMove not advanced: %v", c.LastMove)
	}

	taken = c.AccountMove(Black, start.Add(10*time.Second+2500*time.Millisecond))
	if taken != 2 || c.Remaining[Black] != 598 {
		t.Fatalf("2.5s should round half to even: taken=%d remaining=%v", taken, c.Remaining)
	}
	taken = c.AccountMove(White, c.LastMove.Add(3500*time.Millisecond))
	if taken != 4 {
		t.Fatalf("3.5s should round to 4, got %d", taken)
	}
}

func TestClockIncrementAndFloor(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	c := NewClock(5, 60, 3, start)
	c.AccountMove(White, start.Add(4*time.Second))
	if c.Remaining[White] != 4 {
		t.Fatalf("5 - 4 + 3 = 4, got %d", c.Remaining[White])
	}
	c.AccountMove(Black, c.LastMove)
	c.AccountMove(White, c.LastMove.Add(time.Minute))
	if c.Remaining[White] != 0 || !c.HasTimedOut(White) {
		t.Fatalf("remaining must floor at 0: %v", c.Remaining)
	}
}

func TestClockBackwardsChargesNothing(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	c := NewClock(100, 100, 0, start)
	if taken := c.AccountMove(White, start.Add(-time.Minute)); taken != 0 || c.Remaining[White] != 100 {
		t.Fatalf("taken=%d remaining=%v", taken, c.Remaining)
	}
}

func TestUntimedClockNeverFlags(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	tc, err := ParseTimeControl("none")
	if err != nil {
		t.Fatalf("ParseTimeControl: %v", err)
	}
	c := tc.Clock(start)
	if taken := c.AccountMove(White, start.Add(time.Hour)); taken != 3600 {
		t.Fatalf("untimed clock still reports elapsed time, got %d", taken)
	}
	if c.HasTimedOut(White) || c.Flagged(Black, start.Add(24*time.Hour)) {
		t.Fatalf("untimed clock must never run out")
	}
}

func TestFlaggedAndRemainingAt(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	c := NewClock(30, 30, 0, start)
	if got := c.RemainingAt(White, start.Add(10*time.Second)); got != 20 {
		t.Fatalf("RemainingAt = %d, want 20", got)
	}
	if c.Flagged(White, start.Add(29*time.Second)) {
		t.Fatalf("flagged too early")
	}
	if !c.Flagged(White, start.Add(31*time.Second)) {
		t.Fatalf("expected flag after 31s")
	}
}

func TestParseTimeControl(t *testing.T) {
	tests := map[string]TimeControl{
		"10+5": {Base: 600, Increment: 5},
		"3+2":  {Base: 180, Increment: 2},
		"15":   {Base: 900},
		" 1+0": {Base: 60},
		"":     {},
		"None": {},
	}
	for in, want := range tests {
		got, err := ParseTimeControl(in)
		if err != nil {
			t.Fatalf("ParseTimeControl(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseTimeControl(%q) = %+v, want %+v", in, got, want)
		}
	}
	for _, bad := range []string{"abc", "0+5", "-3", "10+x", "10+-1"} {
		if _, err := ParseTimeControl(bad); err == nil {
			t.Fatalf("ParseTimeControl(%q) should fail", bad)
		}
	}
	if got := (TimeControl{Base: 600, Increment: 5}).String(); got != "10+5" {
		t.Fatalf("String = %q", got)
	}
}

func TestEpochConversion(t *testing.T) {
	ts := time.Unix(1_700_000_000, 250_000_000)
	if got := EpochSeconds(ts); math.Abs(got-1_700_000_000.25) > 1e-6 {
		t.Fatalf("EpochSeconds = %v", got)
	}
	back := EpochTime(1_700_000_000.5)
	if back.Unix() != 1_700_000_000 || back.Nanosecond() < 499_000_000 || back.Nanosecond() > 501_000_000 {
		t.Fatalf("EpochTime = %v", back)
	}
}
