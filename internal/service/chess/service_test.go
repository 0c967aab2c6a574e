package chess

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	core "github.com/park285/cheese-chess-server/internal/chess"
	"github.com/park285/cheese-chess-server/internal/msgcat"
	"github.com/park285/cheese-chess-server/pkg/chessdto"
)

var fixedNow = time.Unix(1_710_000_100, 0)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(NewSVGBoardRenderer(32), msgcat.MustDefault(), Config{Now: func() time.Time { return fixedNow }}, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func ptr[T any](v T) *T { return &v }

func wantCode(t *testing.T, err error, code string) {
	t.Helper()
	var de chessdto.DomainError
	if !errors.As(err, &de) {
		t.Fatalf("error %v is not a DomainError", err)
	}
	if de.Code != code {
		t.Fatalf("code = %q, want %q (%v)", de.Code, code, err)
	}
}

func TestNewGame(t *testing.T) {
	resp, err := newTestService(t).NewGame(context.Background())
	if err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	if resp.FEN != core.InitialFEN || resp.Turn != "white" || resp.Status != "in_progress" {
		t.Fatalf("unexpected response %+v", resp.Position)
	}
	if len(resp.LegalMoves) != 20 || len(resp.Grid) != 8 {
		t.Fatalf("legal=%d grid=%d", len(resp.LegalMoves), len(resp.Grid))
	}
	if resp.NowEpoch != float64(fixedNow.Unix()) {
		t.Fatalf("now_epoch = %v", resp.NowEpoch)
	}
}

func TestStatus(t *testing.T) {
	svc := newTestService(t)
	resp, err := svc.Status(context.Background(), chessdto.StatusRequest{FEN: "rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3"})
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if resp.Status != "checkmate" || len(resp.LegalMoves) != 0 || resp.FEN != "" {
		t.Fatalf("unexpected %+v", resp.Position)
	}

	_, err = svc.Status(context.Background(), chessdto.StatusRequest{})
	wantCode(t, err, chessdto.CodeBadRequest)
	_, err = svc.Status(context.Background(), chessdto.StatusRequest{FEN: "not a fen"})
	wantCode(t, err, chessdto.CodeInvalidPosition)
}

func TestApplyMoveDefaults(t *testing.T) {
	resp, err := newTestService(t).ApplyMove(context.Background(), chessdto.MoveRequest{FEN: core.InitialFEN, Move: "e2e4"})
	if err != nil {
		t.Fatalf("ApplyMove: %v", err)
	}
	if resp.Applied != "e2e4" || resp.SAN != "e4" || resp.Turn != "black" {
		t.Fatalf("unexpected %+v", resp)
	}
	if resp.WhiteTimeLeft != 600 || resp.BlackTimeLeft != 600 || resp.TimeTaken != 0 {
		t.Fatalf("clock %d/%d taken %d", resp.WhiteTimeLeft, resp.BlackTimeLeft, resp.TimeTaken)
	}
	if resp.Result != nil || resp.Status != "in_progress" {
		t.Fatalf("status %s result %v", resp.Status, resp.Result)
	}
	if resp.LastMoveEpoch != float64(fixedNow.Unix()) {
		t.Fatalf("last_move_epoch = %v", resp.LastMoveEpoch)
	}
}

func TestApplyMoveChargesClock(t *testing.T) {
	resp, err := newTestService(t).ApplyMove(context.Background(), chessdto.MoveRequest{
		FEN:              "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1",
		Move:             "e7e5",
		WhiteTimeLeft:    ptr(300.0),
		BlackTimeLeft:    ptr(200.9),
		LastMoveEpoch:    ptr(float64(fixedNow.Unix() - 12)),
		IncrementSeconds: ptr(2.0),
	})
	if err != nil {
		t.Fatalf("ApplyMove: %v", err)
	}
	if resp.TimeTaken != 12 || resp.BlackTimeLeft != 190 || resp.WhiteTimeLeft != 300 {
		t.Fatalf("taken %d clocks %d/%d", resp.TimeTaken, resp.WhiteTimeLeft, resp.BlackTimeLeft)
	}
}

func TestApplyMoveTimeoutAndMate(t *testing.T) {
	svc := newTestService(t)
	resp, err := svc.ApplyMove(context.Background(), chessdto.MoveRequest{
		FEN:           core.InitialFEN,
		Move:          "e2e4",
		WhiteTimeLeft: ptr(5.0),
		LastMoveEpoch: ptr(float64(fixedNow.Unix() - 30)),
	})
	if err != nil {
		t.Fatalf("ApplyMove: %v", err)
	}
	if resp.Status != "timeout" || resp.Result == nil || *resp.Result != "0-1" {
		t.Fatalf("status %s result %v", resp.Status, resp.Result)
	}

	resp, err = svc.ApplyMove(context.Background(), chessdto.MoveRequest{
		FEN:  "rnbqkbnr/pppp1ppp/8/4p3/6P1/5P2/PPPPP2P/RNBQKBNR b KQkq - 0 2",
		Move: "d8h4",
	})
	if err != nil {
		t.Fatalf("ApplyMove: %v", err)
	}
	if resp.Status != "checkmate" || *resp.Result != "0-1" || resp.SAN != "Qh4#" {
		t.Fatalf("status %s result %v san %s", resp.Status, *resp.Result, resp.SAN)
	}
}

func TestApplyMoveErrors(t *testing.T) {
	svc := newTestService(t)
	tests := []struct {
		req  chessdto.MoveRequest
		code string
	}{
		{chessdto.MoveRequest{FEN: core.InitialFEN}, chessdto.CodeBadRequest},
		{chessdto.MoveRequest{Move: "e2e4"}, chessdto.CodeBadRequest},
		{chessdto.MoveRequest{FEN: "8/8/8 w - - 0 1", Move: "e2e4"}, chessdto.CodeInvalidPosition},
		{chessdto.MoveRequest{FEN: core.InitialFEN, Move: "pawn to e4"}, chessdto.CodeMalformedMove},
		{chessdto.MoveRequest{FEN: core.InitialFEN, Move: "Nf6"}, chessdto.CodeIllegalMove},
		{chessdto.MoveRequest{FEN: core.InitialFEN, Move: "e2e5"}, chessdto.CodeIllegalMove},
	}
	for _, tt := range tests {
		_, err := svc.ApplyMove(context.Background(), tt.req)
		wantCode(t, err, tt.code)
	}
}

func TestApplyMoveErrorMessages(t *testing.T) {
	_, err := newTestService(t).ApplyMove(context.Background(), chessdto.MoveRequest{FEN: core.InitialFEN, Move: "e2e5"})
	if err == nil || err.Error() != "illegal move" {
		t.Fatalf("message = %v", err)
	}
	if !errors.Is(err, core.ErrIllegalMove) {
		t.Fatalf("domain error must wrap the core sentinel")
	}
}

func TestUndo(t *testing.T) {
	svc := newTestService(t)
	resp, err := svc.Undo(context.Background(), chessdto.UndoRequest{Moves: []string{"e2e4", "e7e5", "g1f3"}})
	if err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if resp.Undone != "g1f3" || resp.Turn != "white" {
		t.Fatalf("undone %s turn %s", resp.Undone, resp.Turn)
	}
	if resp.FEN != "rnbqkbnr/pppp1ppp/8/4p3/4P3/8/PPPP1PPP/RNBQKBNR w KQkq e6 0 2" {
		t.Fatalf("FEN = %s", resp.FEN)
	}

	_, err = svc.Undo(context.Background(), chessdto.UndoRequest{})
	wantCode(t, err, chessdto.CodeNothingToUndo)
	_, err = svc.Undo(context.Background(), chessdto.UndoRequest{Moves: []string{"e2e4", "e2e4", "e7e5"}})
	wantCode(t, err, chessdto.CodeIllegalMove)
	_, err = svc.Undo(context.Background(), chessdto.UndoRequest{Moves: []string{"xx", "e2e4"}})
	wantCode(t, err, chessdto.CodeMalformedMove)
	_, err = svc.Undo(context.Background(), chessdto.UndoRequest{Moves: []string{"e2e4"}, StartFEN: "bogus"})
	wantCode(t, err, chessdto.CodeInvalidPosition)

	resp, err = svc.Undo(context.Background(), chessdto.UndoRequest{
		Moves:    []string{"e8d7"},
		StartFEN: "4k3/8/8/8/8/8/4P3/4K3 b - - 0 12",
	})
	if err != nil || resp.FEN != "4k3/8/8/8/8/8/4P3/4K3 b - - 0 12" {
		t.Fatalf("undo from custom start: %+v, %v", resp, err)
	}
}

func TestUndoNeverPlaysTheDroppedEntry(t *testing.T) {
	svc := newTestService(t)
	for _, last := range []string{"zz", "e2e4", "Qh5"} {
		resp, err := svc.Undo(context.Background(), chessdto.UndoRequest{Moves: []string{"e2e4", last}})
		if err != nil {
			t.Fatalf("Undo(e2e4, %s): %v", last, err)
		}
		if resp.Undone != last || resp.Turn != "black" {
			t.Fatalf("undone %q turn %s", resp.Undone, resp.Turn)
		}
		if resp.FEN != "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1" {
			t.Fatalf("FEN = %s", resp.FEN)
		}
	}

	resp, err := svc.Undo(context.Background(), chessdto.UndoRequest{Moves: []string{"xx"}})
	if err != nil || resp.Undone != "xx" || resp.FEN != core.InitialFEN {
		t.Fatalf("undo of a lone entry: %+v, %v", resp, err)
	}
}

// knight shuffles that reach the start position a third time after eight plies
var shuffle = []string{"g1f3", "g8f6", "f3g1", "f6g8", "g1f3", "g8f6", "f3g1", "f6g8"}

func TestUndoPastRepetition(t *testing.T) {
	moves := append(append([]string{}, shuffle...), "e2e4", "e7e5")
	resp, err := newTestService(t).Undo(context.Background(), chessdto.UndoRequest{Moves: moves})
	if err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if resp.Undone != "e7e5" || resp.Turn != "black" {
		t.Fatalf("undone %s turn %s", resp.Undone, resp.Turn)
	}
	if resp.FEN != "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 5" {
		t.Fatalf("FEN = %s", resp.FEN)
	}
}

func TestExportRecordPastRepetition(t *testing.T) {
	moves := append(append([]string{}, shuffle...), "e2e4", "e7e5")
	resp, err := newTestService(t).ExportRecord(context.Background(), chessdto.PGNRequest{Moves: moves})
	if err != nil {
		t.Fatalf("ExportRecord: %v", err)
	}
	if resp.Applied != len(moves) {
		t.Fatalf("applied = %d, want %d", resp.Applied, len(moves))
	}
	if !strings.Contains(resp.PGN, "4. Ng1 Ng8 5. e4 e5 *") {
		t.Fatalf("record:\n%s", resp.PGN)
	}
}

func TestExportRecord(t *testing.T) {
	svc := newTestService(t)
	resp, err := svc.ExportRecord(context.Background(), chessdto.PGNRequest{
		Moves:  []string{"f2f3", "e7e5", "g2g4", "d8h4"},
		White:  ptr("Alice"),
		Black:  ptr("Bob"),
		Result: "0-1",
	})
	if err != nil {
		t.Fatalf("ExportRecord: %v", err)
	}
	for _, want := range []string{`[White "Alice"]`, `[Black "Bob"]`, `[Event "Casual Game"]`, "1. f3 e5 2. g4 Qh4# 0-1"} {
		if !strings.Contains(resp.PGN, want) {
			t.Fatalf("missing %q in\n%s", want, resp.PGN)
		}
	}
	if resp.Applied != 4 {
		t.Fatalf("applied = %d", resp.Applied)
	}
}

func TestExportRecordTruncatesAtIllegalMove(t *testing.T) {
	resp, err := newTestService(t).ExportRecord(context.Background(), chessdto.PGNRequest{
		Moves: []string{"e2e4", "e7e5", "e4e5", "d2d4"},
	})
	if err != nil {
		t.Fatalf("ExportRecord: %v", err)
	}
	if resp.Applied != 2 {
		t.Fatalf("applied = %d, want 2", resp.Applied)
	}
	if !strings.Contains(resp.PGN, "\n1. e4 e5 *\n") {
		t.Fatalf("record:\n%s", resp.PGN)
	}
	for _, want := range []string{`[White "White"]`, `[Black "Black"]`, `[Result "*"]`} {
		if !strings.Contains(resp.PGN, want) {
			t.Fatalf("missing %q in\n%s", want, resp.PGN)
		}
	}
}

func TestLegalMovesAreSortedBySquare(t *testing.T) {
	resp, err := newTestService(t).NewGame(context.Background())
	if err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	want := []string{"b1a3", "b1c3", "g1f3", "g1h3"}
	var knights []string
	for _, m := range resp.LegalMoves {
		if strings.HasPrefix(m, "b1") || strings.HasPrefix(m, "g1") {
			knights = append(knights, m)
		}
	}
	if diff := cmp.Diff(want, knights); diff != "" {
		t.Fatalf("knight moves (-want +got):\n%s", diff)
	}
}

func TestRenderBoard(t *testing.T) {
	svc := newTestService(t)
	data, err := svc.RenderBoard(context.Background(), chessdto.BoardImageRequest{FEN: core.InitialFEN, Last: "e2e4"})
	if err != nil {
		t.Fatalf("RenderBoard: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	wantW := 32*8 + sideMargin*2
	wantH := headerHeight + headerGap*2 + 32*8 + bottomMargin
	if b := img.Bounds(); b.Dx() != wantW || b.Dy() != wantH {
		t.Fatalf("image %dx%d, want %dx%d", b.Dx(), b.Dy(), wantW, wantH)
	}

	_, err = svc.RenderBoard(context.Background(), chessdto.BoardImageRequest{FEN: "bad"})
	wantCode(t, err, chessdto.CodeInvalidPosition)
	_, err = svc.RenderBoard(context.Background(), chessdto.BoardImageRequest{FEN: core.InitialFEN, Last: "zz"})
	wantCode(t, err, chessdto.CodeMalformedMove)
}

func TestRenderBoardCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewSVGBoardRenderer(32).RenderPNG(ctx, core.NewBoard(), RenderOptions{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}

func TestPieceGlyphsParse(t *testing.T) {
	for _, c := range []core.Color{core.White, core.Black} {
		for _, k := range []core.PieceKind{core.Pawn, core.Knight, core.Bishop, core.Rook, core.Queen, core.King} {
			img, err := renderPieceImage(core.Piece{Kind: k, Color: c}, 24)
			if err != nil {
				t.Fatalf("%s %s: %v", c, k, err)
			}
			if img.Bounds().Dx() != 24 {
				t.Fatalf("%s %s: size %v", c, k, img.Bounds())
			}
		}
	}
}
