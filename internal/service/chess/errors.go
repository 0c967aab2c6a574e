package chess

import (
	"errors"

	core "github.com/park285/cheese-chess-server/internal/chess"
	"github.com/park285/cheese-chess-server/internal/session"
	"github.com/park285/cheese-chess-server/pkg/chessdto"
)

var errorKeys = []struct {
	err  error
	code string
	key  string
}{
	{core.ErrInvalidPosition, chessdto.CodeInvalidPosition, "errors.invalid_position"},
	{core.ErrMalformedMove, chessdto.CodeMalformedMove, "errors.malformed_move"},
	{core.ErrIllegalMove, chessdto.CodeIllegalMove, "errors.illegal_move"},
	{session.ErrNothingToUndo, chessdto.CodeNothingToUndo, "errors.nothing_to_undo"},
}

// ToDomainError maps core failures onto the codes clients see. Unknown errors pass through.
func (s *Service) ToDomainError(err error) error {
	if err == nil {
		return nil
	}
	var de chessdto.DomainError
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, session.ErrGameOver) {
		return chessdto.DomainError{
			Code:    chessdto.CodeGameOver,
			Message: s.msgs.Text("errors.game_over", map[string]any{"Status": "finished"}),
			Err:     err,
		}
	}
	for _, k := range errorKeys {
		if errors.Is(err, k.err) {
			return chessdto.DomainError{Code: k.code, Message: s.msgs.Text(k.key, nil), Err: err}
		}
	}
	return err
}

func (s *Service) badRequest(key string) error {
	return chessdto.DomainError{Code: chessdto.CodeBadRequest, Message: s.msgs.Text(key, nil)}
}
