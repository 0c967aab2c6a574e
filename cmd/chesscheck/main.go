// Command chesscheck probes a running server: health, a scripted move, and optionally
// the spectator stream of CHESS_GAME_ID.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/park285/cheese-chess-server/internal/apiclient"
	"github.com/park285/cheese-chess-server/pkg/chessdto"
)

func main() {
	baseURL := os.Getenv("CHESS_BASE_URL")
	gameID := os.Getenv("CHESS_GAME_ID")
	playerID := os.Getenv("X_PLAYER_ID")

	if baseURL == "" {
		log.Fatal("CHESS_BASE_URL is required")
	}

	headers := func() map[string]string {
		m := map[string]string{}
		if playerID != "" {
			m["X-Player-Id"] = playerID
		}
		return m
	}

	client := apiclient.NewClient(baseURL,
		apiclient.WithHeaderProvider(headers),
		apiclient.WithTimeout(8*time.Second),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	h, err := client.Health(ctx)
	if err != nil {
		log.Fatalf("/py/health error: %v", err)
	}
	log.Printf("/py/health ok: ts=%.0f", h.TS)

	start, err := client.NewGame(ctx)
	if err != nil {
		log.Fatalf("/py/newgame error: %v", err)
	}
	moved, err := client.Move(ctx, chessdto.MoveRequest{FEN: start.FEN, Move: "e2e4"})
	if err != nil {
		log.Fatalf("/py/move error: %v", err)
	}
	log.Printf("/py/move ok: san=%s turn=%s legal=%d", moved.SAN, moved.Turn, len(moved.LegalMoves))

	if gameID == "" {
		log.Println("CHESS_GAME_ID not set; skipping spectator check")
		return
	}

	sp := apiclient.NewSpectator(client.SpectateURL(gameID), 5)
	sp.SetHeaderProvider(headers)
	sp.OnStateChange(func(state apiclient.SpectatorState) {
		log.Printf("WS state: %s", state)
	})
	sp.OnUpdate(func(g *chessdto.LiveGame) {
		last := "-"
		if n := len(g.MovesSAN); n > 0 {
			last = g.MovesSAN[n-1]
		}
		fmt.Printf("WS game=%s moves=%d last=%s turn=%s result=%q\n", g.ID, len(g.MovesUCI), last, g.Turn, g.Result)
	})

	cctx, ccancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer ccancel()
	if err := sp.Connect(cctx); err != nil {
		log.Printf("WS connect error: %v", err)
		return
	}

	// Observe for a short window
	t := time.NewTimer(10 * time.Second)
	select {
	case <-t.C:
	case <-sp.Done():
	}

	_ = sp.Close(context.Background())
}
