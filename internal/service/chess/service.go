package chess

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	core "github.com/park285/cheese-chess-server/internal/chess"
	"github.com/park285/cheese-chess-server/internal/msgcat"
	"github.com/park285/cheese-chess-server/internal/session"
	"github.com/park285/cheese-chess-server/pkg/chessdto"
)

const (
	defaultTimeLeft   = 600
	defaultWhiteLabel = "White"
	defaultBlackLabel = "Black"
)

var ErrRendererUnavailable = errors.New("board renderer unavailable")

type Config struct {
	// DefaultTimeLeft applies when a move request omits a side's remaining seconds.
	DefaultTimeLeft int
	// Now is the wall clock; tests pin it.
	Now func() time.Time
}

// Service is the stateless game API: every request carries the position (or the move
// list) and gets a fresh session built for it.
type Service struct {
	renderer BoardRenderer
	msgs     *msgcat.Catalog
	cfg      Config
	logger   *zap.Logger
}

func NewService(renderer BoardRenderer, msgs *msgcat.Catalog, cfg Config, logger *zap.Logger) (*Service, error) {
	if msgs == nil {
		return nil, fmt.Errorf("message catalog is required")
	}
	if cfg.DefaultTimeLeft <= 0 {
		cfg.DefaultTimeLeft = defaultTimeLeft
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{renderer: renderer, msgs: msgs, cfg: cfg, logger: logger}, nil
}

func (s *Service) NewGame(ctx context.Context) (*chessdto.NewGameResponse, error) {
	b := core.NewBoard()
	return &chessdto.NewGameResponse{
		Position: positionView(b, core.Evaluate(b, nil).Status, true),
		NowEpoch: core.EpochSeconds(s.cfg.Now()),
	}, nil
}

func (s *Service) Status(ctx context.Context, req chessdto.StatusRequest) (*chessdto.StatusResponse, error) {
	if strings.TrimSpace(req.FEN) == "" {
		return nil, s.badRequest("errors.fen_required")
	}
	b, err := core.ParseFEN(req.FEN)
	if err != nil {
		return nil, s.ToDomainError(err)
	}
	return &chessdto.StatusResponse{Position: positionView(b, core.Evaluate(b, nil).Status, false)}, nil
}

// ApplyMove plays one move on the submitted position and charges the mover's clock.
func (s *Service) ApplyMove(ctx context.Context, req chessdto.MoveRequest) (*chessdto.MoveResponse, error) {
	if strings.TrimSpace(req.FEN) == "" || strings.TrimSpace(req.Move) == "" {
		return nil, s.badRequest("errors.fen_and_move_required")
	}
	b, err := core.ParseFEN(req.FEN)
	if err != nil {
		return nil, s.ToDomainError(err)
	}

	now := s.cfg.Now()
	last := now
	if req.LastMoveEpoch != nil {
		last = core.EpochTime(*req.LastMoveEpoch)
	}
	clock := core.NewClock(
		seconds(req.WhiteTimeLeft, s.cfg.DefaultTimeLeft),
		seconds(req.BlackTimeLeft, s.cfg.DefaultTimeLeft),
		seconds(req.IncrementSeconds, 0),
		last,
	)

	sess := session.New(&b, clock)
	view, err := sess.ApplyMove(req.Move, now)
	if err != nil {
		s.logger.Debug("move_rejected", zap.String("fen", req.FEN), zap.String("move", req.Move), zap.Error(err))
		return nil, s.ToDomainError(err)
	}

	resp := &chessdto.MoveResponse{
		Position:      positionView(view.Board, view.Status, true),
		Applied:       strings.TrimSpace(req.Move),
		SAN:           view.SAN,
		WhiteTimeLeft: view.Clock.Remaining[core.White],
		BlackTimeLeft: view.Clock.Remaining[core.Black],
		LastMoveEpoch: core.EpochSeconds(now),
		TimeTaken:     view.Elapsed,
	}
	resp.LegalMoves = uciMoves(view.LegalMoves)
	if view.Result != core.NoResult {
		token := view.Result.PGN()
		resp.Result = &token
	}
	if view.Status.Terminal() {
		s.logger.Info("game_finished",
			zap.String("status", string(view.Status)),
			zap.String("result", view.Result.PGN()),
			zap.String("last_move", view.Applied.String()),
		)
	}
	return resp, nil
}

// Undo replays all but the last submitted move and reports the position before it. The
// dropped entry is echoed back as sent; it is never played, so it is not validated.
func (s *Service) Undo(ctx context.Context, req chessdto.UndoRequest) (*chessdto.UndoResponse, error) {
	start, err := s.startBoard(req.StartFEN)
	if err != nil {
		return nil, err
	}
	n := len(req.Moves)
	if n == 0 {
		return nil, s.ToDomainError(session.ErrNothingToUndo)
	}
	sess, err := session.Replay(start, req.Moves[:n-1])
	if err != nil {
		return nil, s.ToDomainError(err)
	}
	return &chessdto.UndoResponse{
		Position: positionView(sess.Current(), "", true),
		Undone:   req.Moves[n-1],
	}, nil
}

// ExportRecord builds a PGN record from a move list. The record ends at the first move
// that cannot be played; the rest of the list is dropped and logged.
func (s *Service) ExportRecord(ctx context.Context, req chessdto.PGNRequest) (*chessdto.PGNResponse, error) {
	start, err := s.startBoard(req.StartFEN)
	if err != nil {
		return nil, err
	}
	sess, err := session.Replay(start, req.Moves)
	if err != nil {
		s.logger.Warn("pgn_truncated",
			zap.Int("applied", len(sess.History())),
			zap.Int("submitted", len(req.Moves)),
			zap.Error(err),
		)
	}
	white, black := defaultWhiteLabel, defaultBlackLabel
	if req.White != nil {
		white = *req.White
	}
	if req.Black != nil {
		black = *req.Black
	}
	result := strings.TrimSpace(req.Result)
	if result == "" {
		result = "*"
	}
	return &chessdto.PGNResponse{
		PGN:     sess.ExportRecord(white, black, result),
		Applied: len(sess.History()),
	}, nil
}

// RenderBoard draws the position as a PNG, highlighting the last move when given.
func (s *Service) RenderBoard(ctx context.Context, req chessdto.BoardImageRequest) ([]byte, error) {
	if s.renderer == nil {
		return nil, ErrRendererUnavailable
	}
	if strings.TrimSpace(req.FEN) == "" {
		return nil, s.badRequest("errors.fen_required")
	}
	b, err := core.ParseFEN(req.FEN)
	if err != nil {
		return nil, s.ToDomainError(err)
	}
	opts := RenderOptions{Status: core.Evaluate(b, nil).Status}
	if last := strings.TrimSpace(req.Last); last != "" {
		m, err := core.ParseMove(last)
		if err != nil {
			return nil, s.ToDomainError(err)
		}
		opts.Highlight = &MoveHighlight{From: m.From, To: m.To}
	}
	img, err := s.renderer.RenderPNG(ctx, b, opts)
	if err != nil {
		s.logger.Error("board_render_failed", zap.String("fen", req.FEN), zap.Error(err))
		return nil, err
	}
	return img, nil
}

func (s *Service) startBoard(fen string) (*core.Board, error) {
	if strings.TrimSpace(fen) == "" {
		return nil, nil
	}
	b, err := core.ParseFEN(fen)
	if err != nil {
		return nil, s.ToDomainError(err)
	}
	return &b, nil
}

func positionView(b core.Board, status core.Status, withFEN bool) chessdto.Position {
	p := chessdto.Position{
		Grid:       b.Grid(),
		Turn:       b.Turn().String(),
		LegalMoves: uciMoves(core.LegalMoves(b)),
		Status:     string(status),
	}
	if withFEN {
		p.FEN = b.FEN()
	}
	return p
}

func uciMoves(moves []core.Move) []string {
	out := make([]string, 0, len(moves))
	for _, m := range moves {
		out = append(out, m.String())
	}
	return out
}

// seconds truncates like the clients' integer conversion and falls back to def when absent.
func seconds(v *float64, def int) int {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return def
	}
	return int(math.Trunc(*v))
}
