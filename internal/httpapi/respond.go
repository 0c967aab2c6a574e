package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/park285/cheese-chess-server/internal/challenge"
	"github.com/park285/cheese-chess-server/internal/obslog"
	"github.com/park285/cheese-chess-server/internal/pvpchess"
	"github.com/park285/cheese-chess-server/pkg/chessdto"
)

var errUnavailable = errors.New("feature not configured")

type errorBody struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// writeOK writes v with "ok": true added to its top-level object.
func writeOK(w http.ResponseWriter, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "encode response", Code: chessdto.CodeInternal})
		return
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "encode response", Code: chessdto.CodeInternal})
		return
	}
	fields["ok"] = json.RawMessage("true")
	writeJSON(w, http.StatusOK, fields)
}

var statusByCode = map[string]int{
	chessdto.CodeNotFound:    http.StatusNotFound,
	chessdto.CodeConflict:    http.StatusConflict,
	chessdto.CodeGameOver:    http.StatusConflict,
	chessdto.CodeNotYourTurn: http.StatusConflict,
	chessdto.CodeInternal:    http.StatusInternalServerError,
	chessdto.CodeUnavailable: http.StatusServiceUnavailable,
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	de := s.classify(err)
	status, ok := statusByCode[de.Code]
	if !ok {
		status = http.StatusBadRequest
	}
	if errors.Is(err, pvpchess.ErrNotAPlayer) {
		status = http.StatusForbidden
	}
	if status >= 500 {
		obslog.L().Error("http_internal_error", zap.Error(err))
	}
	writeJSON(w, status, errorBody{OK: false, Error: de.Message, Code: de.Code})
}

// classify turns any failure into the code and text a client sees.
func (s *Server) classify(err error) chessdto.DomainError {
	msgs := s.deps.Messages
	var de chessdto.DomainError
	if errors.As(s.deps.Chess.ToDomainError(err), &de) {
		return de
	}
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return chessdto.DomainError{Code: chessdto.CodeBadRequest, Message: msgs.Text("errors.bad_request", map[string]any{"Detail": "body too large"})}
	case errors.Is(err, errBadJSON):
		return chessdto.DomainError{Code: chessdto.CodeBadRequest, Message: msgs.Text("errors.bad_json", nil)}
	case errors.Is(err, errUnavailable):
		return chessdto.DomainError{Code: chessdto.CodeUnavailable, Message: msgs.Text("errors.unavailable", nil)}
	case errors.Is(err, pvpchess.ErrGameNotFound):
		return chessdto.DomainError{Code: chessdto.CodeNotFound, Message: msgs.Text("errors.not_found", map[string]any{"ID": gameIDOf(err)})}
	case errors.Is(err, pvpchess.ErrGameNotActive):
		return chessdto.DomainError{Code: chessdto.CodeGameOver, Message: msgs.Text("errors.game_over", map[string]any{"Status": "finished"})}
	case errors.Is(err, pvpchess.ErrNotYourTurn):
		return chessdto.DomainError{Code: chessdto.CodeNotYourTurn, Message: msgs.Text("errors.not_your_turn", nil)}
	case errors.Is(err, pvpchess.ErrNotAPlayer):
		return chessdto.DomainError{Code: chessdto.CodeBadRequest, Message: msgs.Text("errors.not_a_player", nil)}
	case errors.Is(err, pvpchess.ErrConflict):
		return chessdto.DomainError{Code: chessdto.CodeConflict, Message: msgs.Text("errors.conflict", nil), Retryable: true}
	case errors.Is(err, pvpchess.ErrTimeoutNotReached):
		return chessdto.DomainError{Code: chessdto.CodeConflict, Message: msgs.Text("errors.timeout_not_reached", map[string]any{"Color": "the side to move"})}
	case errors.Is(err, challenge.ErrNotFound):
		return chessdto.DomainError{Code: chessdto.CodeNotFound, Message: msgs.Text("challenges.not_found", map[string]any{"ID": gameIDOf(err)})}
	case pvpchess.IsUserError(err),
		errors.Is(err, challenge.ErrInvalidArgs),
		errors.Is(err, challenge.ErrSelfChallenge),
		errors.Is(err, challenge.ErrAlreadyPending),
		errors.Is(err, challenge.ErrNotTarget):
		return chessdto.DomainError{Code: chessdto.CodeBadRequest, Message: msgs.Text("errors.bad_request", map[string]any{"Detail": err.Error()})}
	}
	return chessdto.DomainError{Code: chessdto.CodeInternal, Message: msgs.Text("errors.internal", nil), Err: err}
}

var errBadJSON = errors.New("bad json")

// notFoundError carries the looked-up ID into the message.
type notFoundError struct {
	id  string
	err error
}

func (e notFoundError) Error() string { return e.err.Error() + ": " + e.id }
func (e notFoundError) Unwrap() error { return e.err }

func gameIDOf(err error) string {
	var nf notFoundError
	if errors.As(err, &nf) {
		return nf.id
	}
	return "?"
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return err
	}
	return errBadJSON
}
