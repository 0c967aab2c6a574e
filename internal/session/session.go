// Package session plays one chess game: it owns the current position, the move history
// and the clock, and turns each submitted move into a new status and result.
package session

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/park285/cheese-chess-server/internal/chess"
)

var (
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrGameOver      = errors.New("game is already over")
)

// sanShape matches text that is algebraic notation even if the move is not playable.
var sanShape = regexp.MustCompile(`^([NBRQK]?[a-h]?[1-8]?x?[a-h][1-8](=?[NBRQ])?|[O0]-[O0](-[O0])?)[+#]?[!?]*$`)

// Ply is one applied move together with what was derived when it was played.
type Ply struct {
	Move    chess.Move
	SAN     string
	Mover   chess.Color
	Elapsed int
}

// View is what a caller sees after a move or on request.
type View struct {
	Board      chess.Board
	LegalMoves []chess.Move
	Turn       chess.Color
	Status     chess.Status
	Draw       chess.DrawReason
	Result     chess.Result
	Clock      chess.Clock

	// Set by ApplyMove only.
	Applied chess.Move
	SAN     string
	Elapsed int
}

// GameSession is not safe for concurrent use; callers serialise access per game.
type GameSession struct {
	start   chess.Board
	current chess.Board
	history []Ply
	keys    []chess.PositionKey
	clock   chess.Clock
	status  chess.Status
	draw    chess.DrawReason
	result  chess.Result
}

// New starts a game at start, or at the standard position when start is nil.
func New(start *chess.Board, clock chess.Clock) *GameSession {
	b := chess.NewBoard()
	if start != nil {
		b = *start
	}
	return &GameSession{
		start:   b,
		current: b,
		keys:    []chess.PositionKey{b.PositionKey()},
		clock:   clock,
		status:  chess.StatusInProgress,
	}
}

func (s *GameSession) Start() chess.Board { return s.start }

func (s *GameSession) Current() chess.Board { return s.current }

func (s *GameSession) Status() chess.Status { return s.status }

func (s *GameSession) DrawReason() chess.DrawReason { return s.draw }

func (s *GameSession) Result() chess.Result { return s.result }

func (s *GameSession) Clock() chess.Clock { return s.clock }

// History returns a copy of the played plies, oldest first.
func (s *GameSession) History() []Ply {
	out := make([]Ply, len(s.history))
	copy(out, s.history)
	return out
}

// Moves returns the history in coordinate notation.
func (s *GameSession) Moves() []string {
	out := make([]string, 0, len(s.history))
	for _, p := range s.history {
		out = append(out, p.Move.String())
	}
	return out
}

func (s *GameSession) View() View {
	return View{
		Board:      s.current,
		LegalMoves: chess.LegalMoves(s.current),
		Turn:       s.current.Turn(),
		Status:     s.status,
		Draw:       s.draw,
		Result:     s.result,
		Clock:      s.clock,
	}
}

// ApplyMove validates notation against the current position, plays it, charges the
// mover's clock and re-evaluates the game. Coordinate notation is tried first, then
// algebraic notation.
func (s *GameSession) ApplyMove(notation string, now time.Time) (View, error) {
	if s.status.Terminal() {
		return View{}, fmt.Errorf("%w: %s", ErrGameOver, s.status)
	}
	move, err := s.resolve(notation)
	if err != nil {
		return View{}, err
	}
	return s.play(move, now), nil
}

// play appends an already validated move and re-evaluates the game.
func (s *GameSession) play(move chess.Move, now time.Time) View {
	mover := s.current.Turn()
	san := chess.SAN(s.current, move)
	next := s.current.Apply(move)
	elapsed := s.clock.AccountMove(mover, now)

	ev := chess.Evaluate(next, s.keys)
	s.status, s.draw, s.result = ev.Status, ev.Draw, chess.NoResult
	switch {
	case s.clock.HasTimedOut(mover):
		s.status, s.draw = chess.StatusTimeout, chess.DrawNone
		s.result = chess.WinFor(mover.Other())
	case ev.Status == chess.StatusCheckmate:
		s.result = chess.WinFor(mover)
	case ev.Status == chess.StatusStalemate, ev.Status == chess.StatusDraw:
		s.result = chess.DrawnGame
	}

	s.current = next
	s.keys = append(s.keys, next.PositionKey())
	s.history = append(s.history, Ply{Move: move, SAN: san, Mover: mover, Elapsed: elapsed})

	v := s.View()
	v.Applied, v.SAN, v.Elapsed = move, san, elapsed
	return v
}

func (s *GameSession) resolve(notation string) (chess.Move, error) {
	parsed, err := chess.ParseMove(notation)
	if err == nil {
		legal, ok := chess.IsLegal(s.current, parsed)
		if !ok {
			return chess.Move{}, fmt.Errorf("%w: %s", chess.ErrIllegalMove, parsed)
		}
		return legal, nil
	}
	text := strings.TrimSpace(notation)
	if !sanShape.MatchString(text) {
		return chess.Move{}, err
	}
	return chess.ParseSAN(s.current, text)
}

// Undo removes the last ply and rebuilds the position from the start. The game is
// back in progress afterwards, including when the undone ply had ended it. Clocks are
// left as they are.
func (s *GameSession) Undo() (Ply, error) {
	if len(s.history) == 0 {
		return Ply{}, ErrNothingToUndo
	}
	last := s.history[len(s.history)-1]
	s.history = s.history[:len(s.history)-1]

	b := s.start
	keys := []chess.PositionKey{b.PositionKey()}
	for _, p := range s.history {
		b = b.Apply(p.Move)
		keys = append(keys, b.PositionKey())
	}
	s.current, s.keys = b, keys
	s.status, s.draw, s.result = chess.StatusInProgress, chess.DrawNone, chess.NoResult
	return last, nil
}

// ClaimTimeout ends the game on time when the side to move has run out without moving.
// It reports whether the claim was accepted.
func (s *GameSession) ClaimTimeout(now time.Time) bool {
	if s.status.Terminal() {
		return false
	}
	toMove := s.current.Turn()
	if !s.clock.Flagged(toMove, now) {
		return false
	}
	s.clock.Remaining[toMove] = 0
	s.status, s.draw = chess.StatusTimeout, chess.DrawNone
	s.result = chess.WinFor(toMove.Other())
	return true
}

// Replay builds an untimed session by playing moves from start (nil for the standard
// position). A recorded list may run on past a repetition, fifty-move or material draw,
// so only legality stops it; the status reflects the last position reached. On the first
// move that cannot be played it returns the session built so far together with an error
// naming the 1-based index of the failing move.
func Replay(start *chess.Board, moves []string) (*GameSession, error) {
	s := New(start, chess.TimeControl{}.Clock(time.Time{}))
	for i, mv := range moves {
		move, err := s.resolve(mv)
		if err != nil {
			return s, fmt.Errorf("move %d (%q): %w", i+1, mv, err)
		}
		s.play(move, time.Time{})
	}
	return s, nil
}

// Restore rebuilds a stored game. The moves are replayed untimed, then the saved clock
// is put back.
func Restore(start *chess.Board, moves []string, clock chess.Clock) (*GameSession, error) {
	s, err := Replay(start, moves)
	if err != nil {
		return nil, err
	}
	s.clock = clock
	return s, nil
}
