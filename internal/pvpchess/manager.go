// Package pvpchess runs two-player games whose state lives in Redis so that any server
// instance can accept the next move.
package pvpchess

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/cheese-chess-server/internal/chess"
	"github.com/park285/cheese-chess-server/internal/obslog"
	svcchess "github.com/park285/cheese-chess-server/internal/service/chess"
	"github.com/park285/cheese-chess-server/internal/session"
)

// ResultStore receives every game once it is over.
type ResultStore interface {
	SaveResult(ctx context.Context, g *Game) error
}

type Config struct {
	TTL                time.Duration
	DefaultTimeControl chess.TimeControl
	MaxRetries         int
	Now                func() time.Time
}

type Manager struct {
	rdb      *redis.Client
	cfg      Config
	renderer svcchess.BoardRenderer
	repo     ResultStore
}

func NewManager(redisURL string, cfg Config) (*Manager, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for PvP manager")
	}
	opts, err := ParseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewManagerWithClient(rdb, cfg), nil
}

// NewManagerWithClient uses an existing client; Close closes it.
func NewManagerWithClient(rdb *redis.Client, cfg Config) *Manager {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{rdb: rdb, cfg: cfg, renderer: svcchess.NewSVGBoardRenderer(64)}
}

func (m *Manager) Close() error {
	if m == nil || m.rdb == nil {
		return nil
	}
	return m.rdb.Close()
}

// AttachRepository wires a store for finished games.
func (m *Manager) AttachRepository(r ResultStore) {
	if m != nil {
		m.repo = r
	}
}

// AssignColors decides who plays white. choice is the challenger's wish ("white",
// "black"); anything else is a coin flip.
func AssignColors(challengerID, challengerName, targetID, targetName, choice string) (p Params) {
	p.WhiteID, p.WhiteName = challengerID, challengerName
	p.BlackID, p.BlackName = targetID, targetName
	swap := false
	switch strings.ToLower(strings.TrimSpace(choice)) {
	case "white", "w":
	case "black", "b":
		swap = true
	default:
		if n, err := rand.Int(rand.Reader, big.NewInt(2)); err == nil && n.Int64() == 0 {
			swap = true
		}
	}
	if swap {
		p.WhiteID, p.WhiteName, p.BlackID, p.BlackName = targetID, targetName, challengerID, challengerName
	}
	return p
}

// Create starts a game. Either player already being in an active game is refused.
func (m *Manager) Create(ctx context.Context, p Params) (*Game, error) {
	whiteID, blackID := strings.TrimSpace(p.WhiteID), strings.TrimSpace(p.BlackID)
	if whiteID == "" || blackID == "" || whiteID == blackID {
		return nil, ErrInvalidParticipants
	}
	tc := m.cfg.DefaultTimeControl
	if strings.TrimSpace(p.TimeControl) != "" {
		parsed, err := chess.ParseTimeControl(p.TimeControl)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTimeControl, err)
		}
		tc = parsed
	}
	var start *chess.Board
	if fen := strings.TrimSpace(p.StartFEN); fen != "" {
		b, err := chess.ParseFEN(fen)
		if err != nil {
			return nil, err
		}
		start = &b
	}
	for _, id := range []string{whiteID, blackID} {
		active, err := m.activeGames(ctx, id)
		if err != nil {
			return nil, err
		}
		if len(active) > 0 {
			return nil, fmt.Errorf("%w: %s in %s", ErrAlreadyPlaying, id, active[0].ID)
		}
	}

	now := m.cfg.Now()
	sess := session.New(start, tc.Clock(now))
	g := &Game{
		ID:          uuid.NewString(),
		WhiteID:     whiteID,
		WhiteName:   strings.TrimSpace(p.WhiteName),
		BlackID:     blackID,
		BlackName:   strings.TrimSpace(p.BlackName),
		TimeControl: tc.String(),
		Untimed:     tc.Untimed(),
		Increment:   tc.Increment,
		CreatedAt:   now,
	}
	if start != nil {
		g.StartFEN = start.FEN()
	}
	g.sync(sess, now)

	if err := m.save(ctx, g); err != nil {
		return nil, err
	}
	if err := m.indexParticipants(ctx, g.ID, g.WhiteID, g.BlackID); err != nil {
		return nil, err
	}
	obslog.L().Info("pvp_game_create",
		zap.String("game_id", g.ID),
		zap.String("white_id", g.WhiteID),
		zap.String("black_id", g.BlackID),
		zap.String("time_control", g.TimeControl),
	)
	return g, nil
}

// Get returns the game by ID or ErrGameNotFound.
func (m *Manager) Get(ctx context.Context, id string) (*Game, error) {
	return m.get(ctx, id)
}

// ActiveGameFor returns the most recently updated active game of a user, or nil.
func (m *Manager) ActiveGameFor(ctx context.Context, userID string) (*Game, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, nil
	}
	list, err := m.activeGames(ctx, userID)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return list[0], nil
}

// PlayMove applies a move (coordinate notation preferred, algebraic accepted) for
// the player whose turn it is.
func (m *Manager) PlayMove(ctx context.Context, id, userID, move string) (*MoveOutcome, error) {
	out := &MoveOutcome{}
	g, err := m.update(ctx, id, func(cur *Game) error {
		if err := cur.requireTurn(userID); err != nil {
			return err
		}
		sess, err := restore(cur)
		if err != nil {
			return err
		}
		now := m.cfg.Now()
		view, err := sess.ApplyMove(move, now)
		if err != nil {
			return err
		}
		cur.sync(sess, now)
		out.Applied, out.SAN, out.TimeTaken = view.Applied.String(), view.SAN, view.Elapsed
		return nil
	})
	if err != nil {
		return nil, err
	}
	out.Game = g
	obslog.L().Info("pvp_move",
		zap.String("game_id", g.ID),
		zap.String("user_id", strings.TrimSpace(userID)),
		zap.String("last_uci", out.Applied),
		zap.Int("time_taken", out.TimeTaken),
		zap.String("status", string(g.Status)),
		zap.String("result", g.Result),
	)
	m.persistIfFinal(ctx, g)
	return out, nil
}

// Undo takes back the last move. Only the player who made it may ask, and only while
// the game is still running.
func (m *Manager) Undo(ctx context.Context, id, userID string) (*Game, string, error) {
	var undone string
	g, err := m.update(ctx, id, func(cur *Game) error {
		if cur.Finished() {
			return ErrGameNotActive
		}
		color := cur.colorFor(userID)
		if color == "" {
			return ErrNotAPlayer
		}
		if len(cur.MovesUCI) == 0 {
			return session.ErrNothingToUndo
		}
		if color == cur.Turn {
			return ErrNotYourTurn
		}
		sess, err := restore(cur)
		if err != nil {
			return err
		}
		ply, err := sess.Undo()
		if err != nil {
			return err
		}
		cur.sync(sess, m.cfg.Now())
		undone = ply.Move.String()
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	obslog.L().Info("pvp_undo", zap.String("game_id", g.ID), zap.String("user_id", userID), zap.String("undone", undone))
	return g, undone, nil
}

func (m *Manager) Resign(ctx context.Context, id, userID string) (*Game, error) {
	g, err := m.update(ctx, id, func(cur *Game) error {
		if cur.Finished() {
			return ErrGameNotActive
		}
		color := cur.colorFor(userID)
		if color == "" {
			return ErrNotAPlayer
		}
		winner := White
		if color == White {
			winner = Black
		}
		cur.Status = StatusResigned
		cur.Reason = "resignation"
		cur.Winner = cur.idFor(winner)
		cur.Result = resultToken(winner)
		cur.UpdatedAt = m.cfg.Now()
		return nil
	})
	if err != nil {
		return nil, err
	}
	obslog.L().Info("pvp_resign",
		zap.String("game_id", g.ID),
		zap.String("resigner", strings.TrimSpace(userID)),
		zap.String("winner", g.Winner),
	)
	m.persistIfFinal(ctx, g)
	return g, nil
}

// ClaimTimeout ends the game when the side to move has run out of time without moving.
// Either player may claim.
func (m *Manager) ClaimTimeout(ctx context.Context, id, userID string) (*Game, error) {
	g, err := m.update(ctx, id, func(cur *Game) error {
		if cur.Finished() {
			return ErrGameNotActive
		}
		if cur.colorFor(userID) == "" {
			return ErrNotAPlayer
		}
		sess, err := restore(cur)
		if err != nil {
			return err
		}
		now := m.cfg.Now()
		if !sess.ClaimTimeout(now) {
			return ErrTimeoutNotReached
		}
		cur.sync(sess, now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	obslog.L().Info("pvp_timeout", zap.String("game_id", g.ID), zap.String("winner", g.Winner))
	m.persistIfFinal(ctx, g)
	return g, nil
}

// Subscribe streams every stored change of a game until ctx ends or the returned
// close function is called.
func (m *Manager) Subscribe(ctx context.Context, id string) (<-chan *Game, func() error, error) {
	ps := m.rdb.Subscribe(ctx, updatesChannel(id))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, err
	}
	out := make(chan *Game, 8)
	go func() {
		defer close(out)
		ch := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				g, err := decodeGame([]byte(msg.Payload))
				if err != nil {
					obslog.L().Warn("pvp_update_decode_error", zap.String("game_id", id), zap.Error(err))
					continue
				}
				select {
				case out <- g:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, ps.Close, nil
}

// Record renders the PGN of a stored game.
func (m *Manager) Record(g *Game) (string, error) {
	sess, err := restore(g)
	if err != nil {
		return "", err
	}
	return sess.ExportWithHeader(g.header()), nil
}

func (g *Game) requireTurn(userID string) error {
	if g.Finished() {
		return ErrGameNotActive
	}
	color := g.colorFor(userID)
	if color == "" {
		return ErrNotAPlayer
	}
	if color != g.Turn {
		return ErrNotYourTurn
	}
	return nil
}

func (g *Game) header() session.Header {
	date := g.CreatedAt
	if date.IsZero() {
		date = g.UpdatedAt
	}
	return session.Header{
		Event:  "Live Game",
		Site:   "Cheese",
		Date:   date.UTC().Format("2006.01.02"),
		White:  g.WhiteName,
		Black:  g.BlackName,
		Result: g.Result,
	}
}

// sync copies the session state into g.
func (g *Game) sync(s *session.GameSession, now time.Time) {
	cur := s.Current()
	g.FEN = cur.FEN()
	g.Turn = colorOf(cur.Turn())
	g.MovesUCI = s.Moves()
	g.MovesSAN = make([]string, 0, len(g.MovesUCI))
	for _, p := range s.History() {
		g.MovesSAN = append(g.MovesSAN, p.SAN)
	}

	c := s.Clock()
	g.WhiteTimeLeft = c.Remaining[chess.White]
	g.BlackTimeLeft = c.Remaining[chess.Black]
	g.LastMoveEpoch = chess.EpochSeconds(c.LastMove)
	g.UpdatedAt = now

	st := s.Status()
	g.BoardStatus = string(st)
	g.Status, g.Reason, g.Result, g.Winner = StatusActive, "", "", ""
	switch st {
	case chess.StatusCheckmate:
		g.Status, g.Reason = StatusFinished, "checkmate"
	case chess.StatusStalemate:
		g.Status, g.Reason = StatusDraw, "stalemate"
	case chess.StatusDraw:
		g.Status, g.Reason = StatusDraw, string(s.DrawReason())
	case chess.StatusTimeout:
		g.Status, g.Reason = StatusTimeout, "timeout"
	}
	if st.Terminal() {
		g.Result = s.Result().PGN()
		switch s.Result() {
		case chess.WhiteWin:
			g.Winner = g.WhiteID
		case chess.BlackWin:
			g.Winner = g.BlackID
		}
	}
}

func restore(g *Game) (*session.GameSession, error) {
	var start *chess.Board
	if g.StartFEN != "" {
		b, err := chess.ParseFEN(g.StartFEN)
		if err != nil {
			return nil, fmt.Errorf("stored start of %s: %w", g.ID, err)
		}
		start = &b
	}
	sess, err := session.Restore(start, g.MovesUCI, g.clock())
	if err != nil {
		return nil, fmt.Errorf("stored moves of %s: %w", g.ID, err)
	}
	return sess, nil
}

func resultToken(winner Color) string {
	if winner == White {
		return chess.WhiteWin.PGN()
	}
	return chess.BlackWin.PGN()
}

// persistIfFinal hands a finished game to the repository. Failures are logged; the
// game itself is already stored in Redis.
func (m *Manager) persistIfFinal(ctx context.Context, g *Game) {
	if m.repo == nil || g == nil || !g.Finished() {
		return
	}
	if err := m.repo.SaveResult(ctx, g); err != nil {
		obslog.L().Error("pvp_result_persist_error", zap.String("game_id", g.ID), zap.String("reason", g.Reason), zap.Error(err))
		return
	}
	obslog.L().Info("pvp_result_persist", zap.String("game_id", g.ID), zap.String("result", g.Result), zap.String("reason", g.Reason))
}

// IsUserError reports errors caused by the request rather than by the store.
func IsUserError(err error) bool {
	for _, target := range []error{
		ErrGameNotFound, ErrGameNotActive, ErrNotAPlayer, ErrNotYourTurn, ErrTimeoutNotReached,
		ErrInvalidParticipants, ErrAlreadyPlaying, ErrInvalidTimeControl,
		chess.ErrInvalidPosition, chess.ErrMalformedMove, chess.ErrIllegalMove, session.ErrNothingToUndo,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
