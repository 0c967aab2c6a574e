package apiclient

import (
	"context"
	"net/url"
	"strings"

	"github.com/valyala/fasthttp"

	"github.com/park285/cheese-chess-server/pkg/chessdto"
)

type Health struct {
	OK bool    `json:"ok"`
	TS float64 `json:"ts"`
}

// The stateless routes compute from the request alone, so all of them are retried.

func (c *Client) Health(ctx context.Context) (*Health, error) {
	return send[Health](ctx, c, call{method: fasthttp.MethodGet, path: "/py/health", idempotent: true})
}

func (c *Client) NewGame(ctx context.Context) (*chessdto.NewGameResponse, error) {
	return send[chessdto.NewGameResponse](ctx, c, call{method: fasthttp.MethodGet, path: "/py/newgame", idempotent: true})
}

func (c *Client) Status(ctx context.Context, fen string) (*chessdto.StatusResponse, error) {
	return send[chessdto.StatusResponse](ctx, c, call{
		method: fasthttp.MethodPost, path: "/py/status", body: chessdto.StatusRequest{FEN: fen}, idempotent: true,
	})
}

func (c *Client) Move(ctx context.Context, req chessdto.MoveRequest) (*chessdto.MoveResponse, error) {
	return send[chessdto.MoveResponse](ctx, c, call{method: fasthttp.MethodPost, path: "/py/move", body: req, idempotent: true})
}

func (c *Client) Undo(ctx context.Context, req chessdto.UndoRequest) (*chessdto.UndoResponse, error) {
	return send[chessdto.UndoResponse](ctx, c, call{method: fasthttp.MethodPost, path: "/py/undo", body: req, idempotent: true})
}

func (c *Client) PGN(ctx context.Context, req chessdto.PGNRequest) (*chessdto.PGNResponse, error) {
	return send[chessdto.PGNResponse](ctx, c, call{method: fasthttp.MethodPost, path: "/py/pgn", body: req, idempotent: true})
}

// Live game writes change server state; a failed one is reported, never repeated.

func (c *Client) CreateGame(ctx context.Context, req chessdto.CreateGameRequest) (*chessdto.LiveGame, error) {
	return send[chessdto.LiveGame](ctx, c, call{method: fasthttp.MethodPost, path: "/api/games", body: req})
}

func (c *Client) Game(ctx context.Context, id string) (*chessdto.LiveGame, error) {
	return send[chessdto.LiveGame](ctx, c, call{method: fasthttp.MethodGet, path: gamePath(id, ""), idempotent: true})
}

func (c *Client) PlayMove(ctx context.Context, id, playerID, move string) (*chessdto.MoveSummary, error) {
	return send[chessdto.MoveSummary](ctx, c, call{
		method: fasthttp.MethodPost, path: gamePath(id, "/move"),
		body: chessdto.PlayerMoveRequest{PlayerID: playerID, Move: move},
	})
}

func (c *Client) Resign(ctx context.Context, id, playerID string) (*chessdto.LiveGame, error) {
	return send[chessdto.LiveGame](ctx, c, call{
		method: fasthttp.MethodPost, path: gamePath(id, "/resign"),
		body: chessdto.PlayerActionRequest{PlayerID: playerID},
	})
}

func gamePath(id, action string) string {
	return "/api/games/" + url.PathEscape(id) + action
}

// SpectateURL is the WebSocket address streaming game id.
func (c *Client) SpectateURL(id string) string {
	base := c.baseURL
	if rest, ok := strings.CutPrefix(base, "https://"); ok {
		base = "wss://" + rest
	} else if rest, ok := strings.CutPrefix(base, "http://"); ok {
		base = "ws://" + rest
	}
	return base + "/ws/games/" + url.PathEscape(id)
}
