package httpapi

import (
	"net/http"

	"github.com/park285/cheese-chess-server/internal/chess"
	"github.com/park285/cheese-chess-server/pkg/chessdto"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeOK(w, map[string]any{"ts": chess.EpochSeconds(s.opts.Now())})
}

func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	resp, err := s.deps.Chess.NewGame(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeOK(w, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var req chessdto.StatusRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	resp, err := s.deps.Chess.Status(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeOK(w, resp)
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req chessdto.MoveRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	resp, err := s.deps.Chess.ApplyMove(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeOK(w, resp)
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	var req chessdto.UndoRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	resp, err := s.deps.Chess.Undo(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeOK(w, resp)
}

func (s *Server) handlePGN(w http.ResponseWriter, r *http.Request) {
	var req chessdto.PGNRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	resp, err := s.deps.Chess.ExportRecord(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeOK(w, resp)
}

// handleBoardImage answers GET /py/board.png?fen=...&last=e2e4 with a PNG.
func (s *Server) handleBoardImage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	img, err := s.deps.Chess.RenderBoard(r.Context(), chessdto.BoardImageRequest{FEN: q.Get("fen"), Last: q.Get("last")})
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		s.writeError(w, err)
		return
	}
	writePNG(w, img)
}

func writePNG(w http.ResponseWriter, img []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img)
}
