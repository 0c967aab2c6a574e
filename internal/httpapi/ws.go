package httpapi

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/cheese-chess-server/internal/obslog"
	"github.com/park285/cheese-chess-server/internal/pvpchess"
)

const wsWriteTimeout = 5 * time.Second

// handleSpectate streams a game as JSON frames: the current state first, then one
// frame per stored change. The socket closes normally once the game is over.
func (s *Server) handleSpectate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	games, ok := s.games(w)
	if !ok {
		return
	}
	id := r.PathValue("id")

	// subscribe before reading so that no update falls in between
	subCtx, cancelSub := context.WithCancel(r.Context())
	defer cancelSub()
	updates, closeSub, err := games.Subscribe(subCtx, id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer func() { _ = closeSub() }()

	g, err := games.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, gameError(id, err))
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.originPatterns()})
	if err != nil {
		obslog.L().Warn("ws_accept_error", zap.String("game_id", id), zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusGoingAway, "")
	ctx := conn.CloseRead(subCtx)

	obslog.L().Debug("ws_spectate_start", zap.String("game_id", id))
	if err := sendGame(ctx, conn, g); err != nil {
		return
	}
	if g.Finished() {
		_ = conn.Close(websocket.StatusNormalClosure, "game over")
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			if err := sendGame(ctx, conn, upd); err != nil {
				obslog.L().Debug("ws_send_error", zap.String("game_id", id), zap.Error(err))
				return
			}
			if upd.Finished() {
				_ = conn.Close(websocket.StatusNormalClosure, "game over")
				return
			}
		}
	}
}

func sendGame(ctx context.Context, conn *websocket.Conn, g *pvpchess.Game) error {
	dto, err := pvpchess.ToDTO(g)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return wsjson.Write(wctx, conn, dto)
}

// originPatterns turns the allowed origins into the host patterns the upgrader matches.
func (s *Server) originPatterns() []string {
	out := make([]string, 0, len(s.opts.AllowedOrigins))
	for _, o := range s.opts.AllowedOrigins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			out = append(out, u.Host)
			continue
		}
		out = append(out, o)
	}
	return out
}
