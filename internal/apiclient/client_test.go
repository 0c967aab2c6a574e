package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/cheese-chess-server/internal/chess"
	"github.com/park285/cheese-chess-server/internal/httpapi"
	"github.com/park285/cheese-chess-server/internal/msgcat"
	svcchess "github.com/park285/cheese-chess-server/internal/service/chess"
	"github.com/park285/cheese-chess-server/pkg/chessdto"
)

func TestHealthRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true,"ts":5}`))
	}))
	defer ts.Close()

	h, err := NewClient(ts.URL).Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if !h.OK || h.TS != 5 || calls.Load() != 2 {
		t.Fatalf("health=%+v calls=%d", h, calls.Load())
	}
}

func TestLiveMoveIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"ok":false,"error":"this feature is not enabled on the server","code":"unavailable"}`))
	}))
	defer ts.Close()

	_, err := NewClient(ts.URL).PlayMove(context.Background(), "g1", "u1", "e2e4")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusServiceUnavailable || apiErr.Code != chessdto.CodeUnavailable || calls.Load() != 1 {
		t.Fatalf("err=%+v calls=%d", apiErr, calls.Load())
	}
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"error":"illegal move","code":"illegal_move"}`))
	}))
	defer ts.Close()

	_, err := NewClient(ts.URL).Move(context.Background(), chessdto.MoveRequest{FEN: chess.InitialFEN, Move: "e2e5"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != chessdto.CodeIllegalMove || apiErr.Message != "illegal move" {
		t.Fatalf("err = %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d", calls.Load())
	}
}

func TestHeaderProvider(t *testing.T) {
	got := make(chan http.Header, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Header.Clone()
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer ts.Close()

	c := NewClient(ts.URL+"/", WithHeaderProvider(func() map[string]string {
		return map[string]string{"X-Player-Id": "u1", "X-Empty": " "}
	}))
	if _, err := c.Health(context.Background()); err != nil {
		t.Fatalf("Health: %v", err)
	}
	h := <-got
	if h.Get("X-Player-Id") != "u1" || h.Get("X-Empty") != "" {
		t.Fatalf("headers = %v", h)
	}
}

func TestSpectateURL(t *testing.T) {
	tests := []struct{ base, want string }{
		{"http://localhost:8080", "ws://localhost:8080/ws/games/abc"},
		{"https://chess.example.com/", "wss://chess.example.com/ws/games/abc"},
		{"ws://already", "ws://already/ws/games/abc"},
	}
	for _, tt := range tests {
		if got := NewClient(tt.base).SpectateURL("abc"); got != tt.want {
			t.Fatalf("SpectateURL(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
}

func TestAgainstServer(t *testing.T) {
	msgs := msgcat.MustDefault()
	svc, err := svcchess.NewService(nil, msgs, svcchess.Config{}, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	srv, err := httpapi.New(httpapi.Deps{Chess: svc, Messages: msgs}, httpapi.Options{})
	if err != nil {
		t.Fatalf("httpapi.New: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx := context.Background()
	c := NewClient(ts.URL)
	start, err := c.NewGame(ctx)
	if err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	if len(start.LegalMoves) != 20 {
		t.Fatalf("legal moves = %d", len(start.LegalMoves))
	}
	moved, err := c.Move(ctx, chessdto.MoveRequest{FEN: start.FEN, Move: "Nf3"})
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if moved.SAN != "Nf3" || moved.Turn != "black" {
		t.Fatalf("move = %+v", moved)
	}
	_, err = c.Undo(ctx, chessdto.UndoRequest{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != chessdto.CodeNothingToUndo {
		t.Fatalf("Undo err = %v", err)
	}
	if _, err := c.CreateGame(ctx, chessdto.CreateGameRequest{}); !errors.As(err, &apiErr) || apiErr.Status != http.StatusServiceUnavailable {
		t.Fatalf("CreateGame err = %v", err)
	}
}

func TestSpectatorReceivesUpdatesUntilFinished(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		ctx := r.Context()
		_ = wsjson.Write(ctx, conn, chessdto.LiveGame{ID: "g1", MovesUCI: []string{}})
		_ = wsjson.Write(ctx, conn, chessdto.LiveGame{ID: "g1", MovesUCI: []string{"e2e4"}, Result: "1-0"})
		_ = conn.Close(websocket.StatusNormalClosure, "game over")
	}))
	defer ts.Close()

	sp := NewSpectator(NewClient(ts.URL).SpectateURL("g1"), 3)
	updates := make(chan *chessdto.LiveGame, 4)
	sp.OnUpdate(func(g *chessdto.LiveGame) { updates <- g })
	var mu sync.Mutex
	var states []SpectatorState
	sp.OnStateChange(func(s SpectatorState) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})

	if err := sp.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	select {
	case <-sp.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("spectator did not finish")
	}
	close(updates)
	var moves []int
	for g := range updates {
		moves = append(moves, len(g.MovesUCI))
	}
	if len(moves) != 2 || moves[0] != 0 || moves[1] != 1 {
		t.Fatalf("updates = %v", moves)
	}
	if sp.State() != StateFinished {
		t.Fatalf("state = %s", sp.State())
	}
	mu.Lock()
	defer mu.Unlock()
	if len(states) < 3 || states[0] != StateConnecting || states[1] != StateConnected {
		t.Fatalf("states = %v", states)
	}
	if err := sp.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestSpectatorFailsWithoutReconnects(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
	}))
	defer ts.Close()

	sp := NewSpectator(NewClient(ts.URL).SpectateURL("missing"), 0)
	if err := sp.Connect(context.Background()); err == nil {
		t.Fatal("expected dial error")
	}
	select {
	case <-sp.Done():
	default:
		t.Fatal("Done not closed")
	}
	if sp.State() != StateFailed {
		t.Fatalf("state = %s", sp.State())
	}
}
