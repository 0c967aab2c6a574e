package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/park285/cheese-chess-server/internal/chess"
	"github.com/park285/cheese-chess-server/internal/pvpchess"
	"github.com/park285/cheese-chess-server/pkg/chessdto"
)

func pvpTimeControl(s string) (chess.TimeControl, error) {
	tc, err := chess.ParseTimeControl(s)
	if err != nil {
		return tc, fmt.Errorf("%w: %v", pvpchess.ErrInvalidTimeControl, err)
	}
	return tc, nil
}

func (s *Server) games(w http.ResponseWriter) (*pvpchess.Manager, bool) {
	if s.deps.Games == nil {
		s.writeError(w, errUnavailable)
		return nil, false
	}
	return s.deps.Games, true
}

func (s *Server) writeGame(w http.ResponseWriter, g *pvpchess.Game) {
	dto, err := pvpchess.ToDTO(g)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeOK(w, dto)
}

// gameError attaches the requested game ID so that "not found" names it.
func gameError(id string, err error) error {
	return notFoundError{id: id, err: err}
}

func (s *Server) handleGameCreate(w http.ResponseWriter, r *http.Request) {
	games, ok := s.games(w)
	if !ok {
		return
	}
	var req chessdto.CreateGameRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	g, err := games.Create(r.Context(), pvpchess.Params{
		WhiteID:     req.White.ID,
		WhiteName:   req.White.Name,
		BlackID:     req.Black.ID,
		BlackName:   req.Black.Name,
		TimeControl: req.TimeControl,
		StartFEN:    req.StartFEN,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeGame(w, g)
}

func (s *Server) handleGameGet(w http.ResponseWriter, r *http.Request) {
	games, ok := s.games(w)
	if !ok {
		return
	}
	id := r.PathValue("id")
	g, err := games.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, gameError(id, err))
		return
	}
	s.writeGame(w, g)
}

func (s *Server) handleGameMove(w http.ResponseWriter, r *http.Request) {
	games, ok := s.games(w)
	if !ok {
		return
	}
	var req chessdto.PlayerMoveRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if strings.TrimSpace(req.Move) == "" {
		s.writeError(w, chessdto.DomainError{Code: chessdto.CodeBadRequest, Message: s.deps.Messages.Text("errors.bad_request", map[string]any{"Detail": "move required"})})
		return
	}
	id := r.PathValue("id")
	out, err := games.PlayMove(r.Context(), id, strings.TrimSpace(req.PlayerID), req.Move)
	if err != nil {
		s.writeError(w, gameError(id, err))
		return
	}
	dto, err := pvpchess.ToDTO(out.Game)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeOK(w, chessdto.MoveSummary{
		Game:      dto,
		Applied:   out.Applied,
		SAN:       out.SAN,
		TimeTaken: out.TimeTaken,
		Finished:  out.Game.Finished(),
	})
}

func (s *Server) handleGameUndo(w http.ResponseWriter, r *http.Request) {
	games, ok := s.games(w)
	if !ok {
		return
	}
	var req chessdto.PlayerActionRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	id := r.PathValue("id")
	g, undone, err := games.Undo(r.Context(), id, strings.TrimSpace(req.PlayerID))
	if err != nil {
		s.writeError(w, gameError(id, err))
		return
	}
	dto, err := pvpchess.ToDTO(g)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeOK(w, map[string]any{"game": dto, "undone": undone})
}

func (s *Server) handleGameResign(w http.ResponseWriter, r *http.Request) {
	s.playerAction(w, r, (*pvpchess.Manager).Resign)
}

func (s *Server) handleGameClaimTimeout(w http.ResponseWriter, r *http.Request) {
	s.playerAction(w, r, (*pvpchess.Manager).ClaimTimeout)
}

type gameAction func(*pvpchess.Manager, context.Context, string, string) (*pvpchess.Game, error)

func (s *Server) playerAction(w http.ResponseWriter, r *http.Request, action gameAction) {
	games, ok := s.games(w)
	if !ok {
		return
	}
	var req chessdto.PlayerActionRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	id := r.PathValue("id")
	g, err := action(games, r.Context(), id, strings.TrimSpace(req.PlayerID))
	if err != nil {
		s.writeError(w, gameError(id, err))
		return
	}
	s.writeGame(w, g)
}

func (s *Server) handleGamePGN(w http.ResponseWriter, r *http.Request) {
	games, ok := s.games(w)
	if !ok {
		return
	}
	id := r.PathValue("id")
	g, err := games.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, gameError(id, err))
		return
	}
	pgn, err := games.Record(g)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeOK(w, chessdto.PGNResponse{PGN: pgn, Applied: len(g.MovesUCI)})
}

// handleGameBoard renders the game; ?viewer=<player id> flips it for black.
func (s *Server) handleGameBoard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	games, ok := s.games(w)
	if !ok {
		return
	}
	id := r.PathValue("id")
	g, err := games.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, gameError(id, err))
		return
	}
	img, err := games.BoardImage(r.Context(), g, r.URL.Query().Get("viewer"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writePNG(w, img)
}

func (s *Server) handlePlayerHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		s.writeError(w, errUnavailable)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := s.deps.History.ListByPlayer(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if list == nil {
		list = []chessdto.ChessGame{}
	}
	writeOK(w, map[string]any{"games": list})
}
