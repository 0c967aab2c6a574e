package pvpchess

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/park285/cheese-chess-server/pkg/chessdto"
)

const schema = `CREATE TABLE IF NOT EXISTS chess_games (
    id           BIGSERIAL PRIMARY KEY,
    game_uuid    TEXT UNIQUE NOT NULL,
    white_id     TEXT NOT NULL,
    white_name   TEXT NOT NULL,
    black_id     TEXT NOT NULL,
    black_name   TEXT NOT NULL,
    result       TEXT NOT NULL,
    reason       TEXT NOT NULL,
    time_control TEXT NOT NULL,
    start_fen    TEXT NOT NULL DEFAULT '',
    moves_uci    JSONB NOT NULL,
    moves_san    JSONB NOT NULL,
    pgn          TEXT NOT NULL,
    started_at   TIMESTAMPTZ NOT NULL,
    ended_at     TIMESTAMPTZ NOT NULL,
    duration_ms  BIGINT NOT NULL
)`

const selectColumns = `id, game_uuid, white_id, white_name, black_id, black_name, result, reason,
    time_control, start_fen, moves_uci, moves_san, pgn, started_at, ended_at, duration_ms`

// Repository keeps finished games in Postgres.
type Repository struct {
	db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *Repository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

// SaveResult upserts a finished game together with its PGN record.
func (r *Repository) SaveResult(ctx context.Context, g *Game) error {
	if r == nil || r.db == nil || g == nil {
		return nil
	}
	rec, err := toRecord(g)
	if err != nil {
		return err
	}
	movesUCI, _ := json.Marshal(rec.MovesUCI)
	movesSAN, _ := json.Marshal(rec.MovesSAN)

	q := `INSERT INTO chess_games (
        game_uuid, white_id, white_name, black_id, black_name,
        result, reason, time_control, start_fen,
        moves_uci, moves_san, pgn, started_at, ended_at, duration_ms
      ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15
      ) ON CONFLICT (game_uuid) DO UPDATE SET
        result=EXCLUDED.result,
        reason=EXCLUDED.reason,
        moves_uci=EXCLUDED.moves_uci,
        moves_san=EXCLUDED.moves_san,
        pgn=EXCLUDED.pgn,
        ended_at=EXCLUDED.ended_at,
        duration_ms=EXCLUDED.duration_ms`

	_, err = r.db.ExecContext(ctx, q,
		rec.GameUUID,
		rec.WhiteID, rec.WhiteName,
		rec.BlackID, rec.BlackName,
		rec.Result, rec.Reason, rec.TimeControl, rec.StartFEN,
		string(movesUCI), string(movesSAN), rec.PGN,
		rec.StartedAt, rec.EndedAt, rec.Duration.Milliseconds(),
	)
	return err
}

// ListByPlayer returns the player's finished games, newest first.
func (r *Repository) ListByPlayer(ctx context.Context, playerID string, limit int) ([]chessdto.ChessGame, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM chess_games
        WHERE white_id = $1 OR black_id = $1
        ORDER BY ended_at DESC LIMIT $2`, playerID, limit)
	if err != nil {
		return nil, err
	}
	return scanGames(rows)
}

// ListEndedSince returns games finished at or after since, oldest first.
func (r *Repository) ListEndedSince(ctx context.Context, since time.Time, limit int) ([]chessdto.ChessGame, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM chess_games
        WHERE ended_at >= $1
        ORDER BY ended_at ASC LIMIT $2`, since, limit)
	if err != nil {
		return nil, err
	}
	return scanGames(rows)
}

// GetByUUID returns one stored game or ErrGameNotFound.
func (r *Repository) GetByUUID(ctx context.Context, id string) (*chessdto.ChessGame, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM chess_games WHERE game_uuid = $1`, id)
	g, err := scanGame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGameNotFound
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanGame(s scanner) (chessdto.ChessGame, error) {
	var (
		g                  chessdto.ChessGame
		movesUCI, movesSAN []byte
		durationMS         int64
	)
	err := s.Scan(&g.ID, &g.GameUUID, &g.WhiteID, &g.WhiteName, &g.BlackID, &g.BlackName,
		&g.Result, &g.Reason, &g.TimeControl, &g.StartFEN, &movesUCI, &movesSAN, &g.PGN,
		&g.StartedAt, &g.EndedAt, &durationMS)
	if err != nil {
		return g, err
	}
	if err := json.Unmarshal(movesUCI, &g.MovesUCI); err != nil {
		return g, fmt.Errorf("moves_uci of %s: %w", g.GameUUID, err)
	}
	if err := json.Unmarshal(movesSAN, &g.MovesSAN); err != nil {
		return g, fmt.Errorf("moves_san of %s: %w", g.GameUUID, err)
	}
	g.Duration = time.Duration(durationMS) * time.Millisecond
	return g, nil
}

func scanGames(rows *sql.Rows) ([]chessdto.ChessGame, error) {
	defer rows.Close()
	var out []chessdto.ChessGame
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// toRecord flattens a finished game into the row that is stored.
func toRecord(g *Game) (chessdto.ChessGame, error) {
	sess, err := restore(g)
	if err != nil {
		return chessdto.ChessGame{}, err
	}
	duration := g.UpdatedAt.Sub(g.CreatedAt)
	if duration < 0 {
		duration = 0
	}
	return chessdto.ChessGame{
		GameUUID:    g.ID,
		WhiteID:     g.WhiteID,
		WhiteName:   g.WhiteName,
		BlackID:     g.BlackID,
		BlackName:   g.BlackName,
		Result:      g.Result,
		Reason:      g.Reason,
		TimeControl: g.TimeControl,
		StartFEN:    g.StartFEN,
		MovesUCI:    append([]string{}, g.MovesUCI...),
		MovesSAN:    append([]string{}, g.MovesSAN...),
		PGN:         sess.ExportWithHeader(g.header()),
		StartedAt:   g.CreatedAt,
		EndedAt:     g.UpdatedAt,
		Duration:    duration,
	}, nil
}
