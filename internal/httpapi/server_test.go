package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/cheese-chess-server/internal/challenge"
	"github.com/park285/cheese-chess-server/internal/chess"
	"github.com/park285/cheese-chess-server/internal/msgcat"
	"github.com/park285/cheese-chess-server/internal/pvpchess"
	svcchess "github.com/park285/cheese-chess-server/internal/service/chess"
	"github.com/park285/cheese-chess-server/pkg/chessdto"
)

var testNow = time.Unix(1_730_000_000, 0)

type fakeHistory struct{ games []chessdto.ChessGame }

func (f *fakeHistory) ListByPlayer(_ context.Context, playerID string, _ int) ([]chessdto.ChessGame, error) {
	var out []chessdto.ChessGame
	for _, g := range f.games {
		if g.WhiteID == playerID || g.BlackID == playerID {
			out = append(out, g)
		}
	}
	return out, nil
}

type envOptions struct {
	pvp     bool
	origins []string
}

func newTestServer(t *testing.T, o envOptions) *httptest.Server {
	t.Helper()
	now := func() time.Time { return testNow }
	msgs := msgcat.MustDefault()
	svc, err := svcchess.NewService(svcchess.NewSVGBoardRenderer(24), msgs, svcchess.Config{Now: now}, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	deps := Deps{Chess: svc, Messages: msgs}
	if o.pvp {
		mr, err := miniredis.Run()
		if err != nil {
			t.Fatalf("miniredis: %v", err)
		}
		t.Cleanup(mr.Close)
		games, err := pvpchess.NewManager("redis://"+mr.Addr()+"/0", pvpchess.Config{
			DefaultTimeControl: chess.TimeControl{Base: 300},
			Now:                now,
		})
		if err != nil {
			t.Fatalf("pvpchess.NewManager: %v", err)
		}
		t.Cleanup(func() { _ = games.Close() })
		deps.Games = games
		deps.Challenges = challenge.NewRegistry(0, now)
		deps.History = &fakeHistory{games: []chessdto.ChessGame{{GameUUID: "old-1", WhiteID: "u1", BlackID: "u9", Result: "1-0"}}}
	}
	srv, err := New(deps, Options{AllowedOrigins: o.origins, Now: now})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, method, url string, body any) (int, map[string]any) {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	out := map[string]any{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("%s %s: decode: %v", method, url, err)
	}
	return resp.StatusCode, out
}

func TestHealthAndNewGame(t *testing.T) {
	ts := newTestServer(t, envOptions{})

	code, body := do(t, http.MethodGet, ts.URL+"/py/health", nil)
	if code != http.StatusOK || body["ok"] != true || body["ts"] != float64(testNow.Unix()) {
		t.Fatalf("health: %d %v", code, body)
	}

	code, body = do(t, http.MethodGet, ts.URL+"/py/newgame", nil)
	if code != http.StatusOK || body["fen"] != chess.InitialFEN || body["turn"] != "white" {
		t.Fatalf("newgame: %d %v", code, body)
	}
	if moves, _ := body["legal_moves"].([]any); len(moves) != 20 {
		t.Fatalf("legal_moves = %v", body["legal_moves"])
	}
}

func TestMoveEndpoint(t *testing.T) {
	ts := newTestServer(t, envOptions{})
	code, body := do(t, http.MethodPost, ts.URL+"/py/move", map[string]any{
		"fen":             chess.InitialFEN,
		"move":            "e2e4",
		"white_time_left": 100,
		"last_move_epoch": testNow.Unix() - 4,
	})
	if code != http.StatusOK || body["ok"] != true {
		t.Fatalf("move: %d %v", code, body)
	}
	if body["san"] != "e4" || body["white_time_left"] != float64(96) || body["black_time_left"] != float64(600) {
		t.Fatalf("move body %v", body)
	}
	if body["result"] != nil || body["time_taken"] != float64(4) || body["status"] != "in_progress" {
		t.Fatalf("move body %v", body)
	}
}

func TestErrorEnvelope(t *testing.T) {
	ts := newTestServer(t, envOptions{})
	tests := []struct {
		name, path string
		body       any
		msg, code  string
	}{
		{"status without fen", "/py/status", map[string]any{}, "fen required", chessdto.CodeBadRequest},
		{"status bad fen", "/py/status", map[string]any{"fen": "nope"}, "invalid FEN", chessdto.CodeInvalidPosition},
		{"move without fields", "/py/move", map[string]any{}, "fen and move required", chessdto.CodeBadRequest},
		{"move bad fen", "/py/move", map[string]any{"fen": "x", "move": "e2e4"}, "invalid FEN", chessdto.CodeInvalidPosition},
		{"move bad format", "/py/move", map[string]any{"fen": chess.InitialFEN, "move": "z9"}, "invalid move format", chessdto.CodeMalformedMove},
		{"move illegal", "/py/move", map[string]any{"fen": chess.InitialFEN, "move": "e2e5"}, "illegal move", chessdto.CodeIllegalMove},
		{"undo empty", "/py/undo", map[string]any{"moves": []string{}}, "no moves to undo", chessdto.CodeNothingToUndo},
		{"bad json", "/py/move", "{", "request body must be JSON", chessdto.CodeBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := do(t, http.MethodPost, ts.URL+tt.path, tt.body)
			if code != http.StatusBadRequest {
				t.Fatalf("status %d, body %v", code, body)
			}
			if body["ok"] != false || body["error"] != tt.msg || body["code"] != tt.code {
				t.Fatalf("body %v, want error %q code %q", body, tt.msg, tt.code)
			}
		})
	}
}

func TestUndoAndPGN(t *testing.T) {
	ts := newTestServer(t, envOptions{})
	code, body := do(t, http.MethodPost, ts.URL+"/py/undo", map[string]any{"moves": []string{"e2e4", "e7e5"}})
	if code != http.StatusOK || body["undone"] != "e7e5" || body["turn"] != "black" {
		t.Fatalf("undo: %d %v", code, body)
	}

	code, body = do(t, http.MethodPost, ts.URL+"/py/pgn", map[string]any{
		"moves": []string{"f2f3", "e7e5", "g2g4", "d8h4"}, "white": "Alice", "black": "Bob", "result": "0-1",
	})
	pgn, _ := body["pgn"].(string)
	if code != http.StatusOK || !strings.Contains(pgn, `[White "Alice"]`) || !strings.HasSuffix(pgn, "1. f3 e5 2. g4 Qh4# 0-1\n") {
		t.Fatalf("pgn: %d %q", code, pgn)
	}
}

func TestBoardImage(t *testing.T) {
	ts := newTestServer(t, envOptions{})
	resp, err := http.Get(ts.URL + "/py/board.png?fen=" + strings.ReplaceAll(chess.InitialFEN, " ", "%20") + "&last=e2e4")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/png" || !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Fatalf("board.png: %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}

	code, body := do(t, http.MethodGet, ts.URL+"/py/board.png?fen=bad", nil)
	if code != http.StatusBadRequest || body["code"] != chessdto.CodeInvalidPosition {
		t.Fatalf("bad fen: %d %v", code, body)
	}
}

func TestFriendAndChallengeStubs(t *testing.T) {
	ts := newTestServer(t, envOptions{})
	for path, want := range map[string]string{
		"/py/friends/add":       "Friend request sent",
		"/py/friends/accept":    "Friend request accepted",
		"/py/friends/reject":    "Friend request rejected",
		"/py/challenges/create": "Challenge created",
	} {
		code, body := do(t, http.MethodPost, ts.URL+path, map[string]any{"friend_id": "x"})
		if code != http.StatusOK || body["message"] != want {
			t.Fatalf("%s: %d %v", path, code, body)
		}
	}
	code, body := do(t, http.MethodGet, ts.URL+"/py/friends", nil)
	if friends, ok := body["friends"].([]any); code != http.StatusOK || !ok || len(friends) != 0 {
		t.Fatalf("friends: %d %v", code, body)
	}
}

func TestPvPDisabled(t *testing.T) {
	ts := newTestServer(t, envOptions{})
	code, body := do(t, http.MethodPost, ts.URL+"/api/games", map[string]any{})
	if code != http.StatusServiceUnavailable || body["code"] != chessdto.CodeUnavailable {
		t.Fatalf("disabled pvp: %d %v", code, body)
	}
}

func TestChallengeStartsGame(t *testing.T) {
	ts := newTestServer(t, envOptions{pvp: true})

	code, body := do(t, http.MethodPost, ts.URL+"/py/challenges/create", map[string]any{
		"challenger_id": "u1", "challenger_name": "Alice", "opponent_id": "u2", "color": "white", "time_control": "3+2",
	})
	if code != http.StatusOK || body["message"] != "Challenge created" {
		t.Fatalf("create: %d %v", code, body)
	}
	ch := body["challenge"].(map[string]any)
	id := ch["id"].(string)

	code, body = do(t, http.MethodGet, ts.URL+"/py/challenges?player_id=u2", nil)
	if list, _ := body["challenges"].([]any); code != http.StatusOK || len(list) != 1 {
		t.Fatalf("list: %d %v", code, body)
	}

	code, body = do(t, http.MethodPost, ts.URL+"/py/challenges/"+id+"/accept", map[string]any{"player_id": "u1"})
	if code != http.StatusBadRequest {
		t.Fatalf("challenger accepting: %d %v", code, body)
	}
	code, body = do(t, http.MethodPost, ts.URL+"/py/challenges/"+id+"/accept", map[string]any{"player_id": "u2", "player_name": "Bob"})
	if code != http.StatusOK {
		t.Fatalf("accept: %d %v", code, body)
	}
	game := body["game"].(map[string]any)
	gameID := game["id"].(string)
	if game["time_control"] != "3+2" || game["white"].(map[string]any)["id"] != "u1" || game["black"].(map[string]any)["name"] != "Bob" {
		t.Fatalf("game %v", game)
	}
	if body["message"] != fmt.Sprintf("Challenge accepted, game %s started", gameID) {
		t.Fatalf("message %v", body["message"])
	}

	code, body = do(t, http.MethodPost, ts.URL+"/api/games/"+gameID+"/move", map[string]any{"player_id": "u1", "move": "e2e4"})
	if code != http.StatusOK || body["san"] != "e4" || body["finished"] != false {
		t.Fatalf("move: %d %v", code, body)
	}
	code, body = do(t, http.MethodGet, ts.URL+"/api/games/"+gameID+"/pgn", nil)
	if pgn, _ := body["pgn"].(string); code != http.StatusOK || !strings.Contains(pgn, "1. e4 *") {
		t.Fatalf("pgn: %d %v", code, body)
	}
}

func TestLiveGameFlow(t *testing.T) {
	ts := newTestServer(t, envOptions{pvp: true})
	code, body := do(t, http.MethodPost, ts.URL+"/api/games", chessdto.CreateGameRequest{
		White: chessdto.Player{ID: "u1", Name: "Alice"},
		Black: chessdto.Player{ID: "u2", Name: "Bob"},
	})
	if code != http.StatusOK || body["turn"] != "white" || body["white_time_left"] != float64(300) {
		t.Fatalf("create: %d %v", code, body)
	}
	id := body["id"].(string)
	base := ts.URL + "/api/games/" + id

	tests := []struct {
		name   string
		path   string
		body   any
		status int
		code   string
	}{
		{"wrong turn", "/move", map[string]any{"player_id": "u2", "move": "e7e5"}, http.StatusConflict, chessdto.CodeNotYourTurn},
		{"outsider", "/move", map[string]any{"player_id": "u3", "move": "e2e4"}, http.StatusForbidden, chessdto.CodeBadRequest},
		{"illegal", "/move", map[string]any{"player_id": "u1", "move": "e2e5"}, http.StatusBadRequest, chessdto.CodeIllegalMove},
		{"empty move", "/move", map[string]any{"player_id": "u1"}, http.StatusBadRequest, chessdto.CodeBadRequest},
		{"nothing to undo", "/undo", map[string]any{"player_id": "u1"}, http.StatusBadRequest, chessdto.CodeNothingToUndo},
		{"early timeout claim", "/claim-timeout", map[string]any{"player_id": "u2"}, http.StatusConflict, chessdto.CodeConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := do(t, http.MethodPost, base+tt.path, tt.body)
			if code != tt.status || body["code"] != tt.code || body["ok"] != false {
				t.Fatalf("%d %v, want %d %s", code, body, tt.status, tt.code)
			}
		})
	}

	code, body = do(t, http.MethodPost, base+"/move", map[string]any{"player_id": "u1", "move": "Nf3"})
	if code != http.StatusOK || body["applied"] != "g1f3" {
		t.Fatalf("move: %d %v", code, body)
	}
	code, body = do(t, http.MethodPost, base+"/undo", map[string]any{"player_id": "u1"})
	if code != http.StatusOK || body["undone"] != "g1f3" {
		t.Fatalf("undo: %d %v", code, body)
	}
	code, body = do(t, http.MethodPost, base+"/resign", map[string]any{"player_id": "u1"})
	if code != http.StatusOK || body["result"] != "0-1" || body["status"] != "resigned" {
		t.Fatalf("resign: %d %v", code, body)
	}
	code, body = do(t, http.MethodPost, base+"/move", map[string]any{"player_id": "u1", "move": "e2e4"})
	if code != http.StatusConflict || body["code"] != chessdto.CodeGameOver {
		t.Fatalf("move after resign: %d %v", code, body)
	}

	code, body = do(t, http.MethodGet, ts.URL+"/api/games/missing", nil)
	if code != http.StatusNotFound || body["error"] != "game missing not found" {
		t.Fatalf("missing: %d %v", code, body)
	}

	resp, err := http.Get(base + "/board.png?viewer=u2")
	if err != nil {
		t.Fatalf("board: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/png" {
		t.Fatalf("board: %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
}

func TestPlayerHistory(t *testing.T) {
	ts := newTestServer(t, envOptions{pvp: true})
	code, body := do(t, http.MethodGet, ts.URL+"/api/players/u1/games", nil)
	if list, _ := body["games"].([]any); code != http.StatusOK || len(list) != 1 {
		t.Fatalf("history: %d %v", code, body)
	}
	code, body = do(t, http.MethodGet, ts.URL+"/api/players/nobody/games", nil)
	if list, ok := body["games"].([]any); code != http.StatusOK || !ok || len(list) != 0 {
		t.Fatalf("empty history: %d %v", code, body)
	}
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t, envOptions{origins: []string{"https://play.example.com"}})

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/py/move", nil)
	req.Header.Set("Origin", "https://play.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent || resp.Header.Get("Access-Control-Allow-Origin") != "https://play.example.com" {
		t.Fatalf("preflight: %d %v", resp.StatusCode, resp.Header)
	}

	req, _ = http.NewRequest(http.MethodGet, ts.URL+"/py/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("foreign origin allowed: %q", got)
	}
}

func TestSpectateWebSocket(t *testing.T) {
	ts := newTestServer(t, envOptions{pvp: true})
	_, body := do(t, http.MethodPost, ts.URL+"/api/games", chessdto.CreateGameRequest{
		White: chessdto.Player{ID: "u1"}, Black: chessdto.Player{ID: "u2"},
	})
	id := body["id"].(string)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws/games/"+id, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	var first chessdto.LiveGame
	if err := wsjson.Read(ctx, conn, &first); err != nil {
		t.Fatalf("read first frame: %v", err)
	}
	if first.ID != id || len(first.MovesUCI) != 0 {
		t.Fatalf("first frame %+v", first)
	}

	if code, body := do(t, http.MethodPost, ts.URL+"/api/games/"+id+"/move", map[string]any{"player_id": "u1", "move": "d2d4"}); code != http.StatusOK {
		t.Fatalf("move: %d %v", code, body)
	}
	var next chessdto.LiveGame
	if err := wsjson.Read(ctx, conn, &next); err != nil {
		t.Fatalf("read update: %v", err)
	}
	if len(next.MovesUCI) != 1 || next.MovesSAN[0] != "d4" || next.Turn != "black" {
		t.Fatalf("update %+v", next)
	}

	if code, body := do(t, http.MethodPost, ts.URL+"/api/games/"+id+"/resign", map[string]any{"player_id": "u2"}); code != http.StatusOK {
		t.Fatalf("resign: %d %v", code, body)
	}
	var last chessdto.LiveGame
	if err := wsjson.Read(ctx, conn, &last); err != nil {
		t.Fatalf("read final: %v", err)
	}
	if last.Result != "1-0" {
		t.Fatalf("final %+v", last)
	}
	if _, _, err := conn.Read(ctx); websocket.CloseStatus(err) != websocket.StatusNormalClosure {
		t.Fatalf("expected normal closure, got %v", err)
	}
}
