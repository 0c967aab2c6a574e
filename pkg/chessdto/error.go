package chessdto

// Error codes returned to API clients.
const (
	CodeInvalidPosition = "invalid_position"
	CodeMalformedMove   = "malformed_move"
	CodeIllegalMove     = "illegal_move"
	CodeNothingToUndo   = "nothing_to_undo"
	CodeGameOver        = "game_over"
	CodeBadRequest      = "bad_request"
	CodeNotFound        = "not_found"
	CodeNotYourTurn     = "not_your_turn"
	CodeConflict        = "conflict"
	CodeInternal        = "internal"
	CodeUnavailable     = "unavailable"
)

type DomainError struct {
	Code      string
	Message   string
	Retryable bool
	Err       error
}

func (e DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "chess service error"
}

func (e DomainError) Unwrap() error { return e.Err }
