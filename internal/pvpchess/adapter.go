package pvpchess

import (
	"context"
	"fmt"

	"github.com/park285/cheese-chess-server/internal/chess"
	svcchess "github.com/park285/cheese-chess-server/internal/service/chess"
	"github.com/park285/cheese-chess-server/pkg/chessdto"
)

// ToDTO converts a stored game into the client view. Finished games list no legal moves.
func ToDTO(g *Game) (*chessdto.LiveGame, error) {
	if g == nil {
		return nil, nil
	}
	b, err := chess.ParseFEN(g.FEN)
	if err != nil {
		return nil, fmt.Errorf("stored position of %s: %w", g.ID, err)
	}
	legal := []string{}
	if !g.Finished() {
		for _, mv := range chess.LegalMoves(b) {
			legal = append(legal, mv.String())
		}
	}
	status := g.BoardStatus
	if g.Status == StatusResigned {
		status = "resigned"
	}
	return &chessdto.LiveGame{
		Position: chessdto.Position{
			FEN:        g.FEN,
			Grid:       b.Grid(),
			Turn:       string(g.Turn),
			LegalMoves: legal,
			Status:     status,
		},
		ID:            g.ID,
		White:         chessdto.Player{ID: g.WhiteID, Name: g.WhiteName},
		Black:         chessdto.Player{ID: g.BlackID, Name: g.BlackName},
		StartFEN:      g.StartFEN,
		MovesUCI:      append([]string{}, g.MovesUCI...),
		MovesSAN:      append([]string{}, g.MovesSAN...),
		Result:        g.Result,
		Reason:        g.Reason,
		TimeControl:   g.TimeControl,
		WhiteTimeLeft: g.WhiteTimeLeft,
		BlackTimeLeft: g.BlackTimeLeft,
		LastMoveEpoch: g.LastMoveEpoch,
		CreatedAt:     g.CreatedAt,
		UpdatedAt:     g.UpdatedAt,
	}, nil
}

// BoardImage renders the game from viewerID's side; black players see the board flipped.
func (m *Manager) BoardImage(ctx context.Context, g *Game, viewerID string) ([]byte, error) {
	b, err := chess.ParseFEN(g.FEN)
	if err != nil {
		return nil, fmt.Errorf("stored position of %s: %w", g.ID, err)
	}
	opts := svcchess.RenderOptions{
		Status: chess.Status(g.BoardStatus),
		Title:  fmt.Sprintf("%s vs %s", g.WhiteName, g.BlackName),
		Flip:   g.colorFor(viewerID) == Black,
	}
	if n := len(g.MovesUCI); n > 0 {
		if mv, err := chess.ParseMove(g.MovesUCI[n-1]); err == nil {
			opts.Highlight = &svcchess.MoveHighlight{From: mv.From, To: mv.To}
		}
	}
	return m.renderer.RenderPNG(ctx, b, opts)
}
