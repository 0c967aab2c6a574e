package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/park285/cheese-chess-server/internal/challenge"
	"github.com/park285/cheese-chess-server/internal/obslog"
	"github.com/park285/cheese-chess-server/internal/pvpchess"
)

// Friend lists live with the client's own backend; these routes only acknowledge.
func (s *Server) handleFriends(w http.ResponseWriter, r *http.Request) {
	writeOK(w, map[string]any{"friends": []string{}})
}

func (s *Server) friendStub(key string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := decode(r, &body); err != nil {
			s.writeError(w, err)
			return
		}
		writeOK(w, map[string]any{"message": s.deps.Messages.Text(key, nil)})
	}
}

type challengeCreateRequest struct {
	ChallengerID   string `json:"challenger_id"`
	ChallengerName string `json:"challenger_name"`
	OpponentID     string `json:"opponent_id"`
	Color          string `json:"color"`
	TimeControl    string `json:"time_control"`
}

type challengeAnswerRequest struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
}

// handleChallengeCreate registers a challenge when both players are named and the
// registry is enabled; otherwise it only acknowledges.
func (s *Server) handleChallengeCreate(w http.ResponseWriter, r *http.Request) {
	var req challengeCreateRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	resp := map[string]any{"message": s.deps.Messages.Text("challenges.created", nil)}
	challengerID, opponentID := strings.TrimSpace(req.ChallengerID), strings.TrimSpace(req.OpponentID)
	if s.deps.Challenges == nil || (challengerID == "" && opponentID == "") {
		writeOK(w, resp)
		return
	}
	if tc := strings.TrimSpace(req.TimeControl); tc != "" {
		if _, err := pvpTimeControl(tc); err != nil {
			s.writeError(w, err)
			return
		}
	}
	ch, err := s.deps.Challenges.Create(challengerID, strings.TrimSpace(req.ChallengerName), opponentID,
		challenge.ParseColorChoice(req.Color), strings.TrimSpace(req.TimeControl))
	if err != nil {
		s.writeError(w, err)
		return
	}
	obslog.L().Info("challenge_create", zap.String("challenge_id", ch.ID), zap.String("challenger", ch.ChallengerID), zap.String("target", ch.TargetID))
	resp["challenge"] = ch
	writeOK(w, resp)
}

func (s *Server) handleChallengeList(w http.ResponseWriter, r *http.Request) {
	if s.deps.Challenges == nil {
		s.writeError(w, errUnavailable)
		return
	}
	list := s.deps.Challenges.Pending(strings.TrimSpace(r.URL.Query().Get("player_id")))
	if list == nil {
		list = []challenge.Challenge{}
	}
	writeOK(w, map[string]any{"challenges": list})
}

// handleChallengeAccept resolves the challenge and starts the game it describes.
func (s *Server) handleChallengeAccept(w http.ResponseWriter, r *http.Request) {
	if s.deps.Challenges == nil || s.deps.Games == nil {
		s.writeError(w, errUnavailable)
		return
	}
	var req challengeAnswerRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	id := r.PathValue("id")
	ch, err := s.deps.Challenges.Accept(id, strings.TrimSpace(req.PlayerID), strings.TrimSpace(req.PlayerName))
	if err != nil {
		s.writeError(w, notFoundError{id: id, err: err})
		return
	}

	params := pvpchess.AssignColors(ch.ChallengerID, ch.ChallengerName, ch.TargetID, ch.TargetName, string(ch.Color))
	params.TimeControl = ch.TimeControl
	g, err := s.deps.Games.Create(r.Context(), params)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.deps.Challenges.AttachGame(ch.ID, g.ID)
	ch.GameID = g.ID

	dto, err := pvpchess.ToDTO(g)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeOK(w, map[string]any{
		"message":   s.deps.Messages.Text("challenges.accepted", map[string]any{"GameID": g.ID}),
		"challenge": ch,
		"game":      dto,
	})
}

func (s *Server) handleChallengeDecline(w http.ResponseWriter, r *http.Request) {
	if s.deps.Challenges == nil {
		s.writeError(w, errUnavailable)
		return
	}
	var req challengeAnswerRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	id := r.PathValue("id")
	ch, err := s.deps.Challenges.Decline(id, strings.TrimSpace(req.PlayerID))
	if err != nil {
		s.writeError(w, notFoundError{id: id, err: err})
		return
	}
	writeOK(w, map[string]any{"challenge": ch})
}
