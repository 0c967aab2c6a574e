// Package archive writes finished games to Parquet files for offline analysis and
// reads them back.
package archive

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"
	"go.uber.org/zap"

	"github.com/park285/cheese-chess-server/internal/obslog"
	"github.com/park285/cheese-chess-server/pkg/chessdto"
)

// GameRecord is one row. Move lists are stored space separated.
type GameRecord struct {
	ID              int64  `parquet:"name=id, type=INT64"`
	GameUUID        string `parquet:"name=game_uuid, type=BYTE_ARRAY, convertedtype=UTF8"`
	WhiteID         string `parquet:"name=white_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	WhiteName       string `parquet:"name=white_name, type=BYTE_ARRAY, convertedtype=UTF8"`
	BlackID         string `parquet:"name=black_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	BlackName       string `parquet:"name=black_name, type=BYTE_ARRAY, convertedtype=UTF8"`
	Result          string `parquet:"name=result, type=BYTE_ARRAY, convertedtype=UTF8"`
	Reason          string `parquet:"name=reason, type=BYTE_ARRAY, convertedtype=UTF8"`
	TimeControl     string `parquet:"name=time_control, type=BYTE_ARRAY, convertedtype=UTF8"`
	StartFEN        string `parquet:"name=start_fen, type=BYTE_ARRAY, convertedtype=UTF8"`
	MovesUCI        string `parquet:"name=moves_uci, type=BYTE_ARRAY, convertedtype=UTF8"`
	MovesSAN        string `parquet:"name=moves_san, type=BYTE_ARRAY, convertedtype=UTF8"`
	MoveCount       int32  `parquet:"name=move_count, type=INT32"`
	PGN             string `parquet:"name=pgn, type=BYTE_ARRAY, convertedtype=UTF8"`
	StartedAt       int64  `parquet:"name=started_at, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	EndedAt         int64  `parquet:"name=ended_at, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	DurationSeconds int64  `parquet:"name=duration_seconds, type=INT64"`
}

func FromGame(g chessdto.ChessGame) GameRecord {
	return GameRecord{
		ID:              g.ID,
		GameUUID:        g.GameUUID,
		WhiteID:         g.WhiteID,
		WhiteName:       g.WhiteName,
		BlackID:         g.BlackID,
		BlackName:       g.BlackName,
		Result:          g.Result,
		Reason:          g.Reason,
		TimeControl:     g.TimeControl,
		StartFEN:        g.StartFEN,
		MovesUCI:        strings.Join(g.MovesUCI, " "),
		MovesSAN:        strings.Join(g.MovesSAN, " "),
		MoveCount:       int32(len(g.MovesUCI)),
		PGN:             g.PGN,
		StartedAt:       millis(g.StartedAt),
		EndedAt:         millis(g.EndedAt),
		DurationSeconds: int64(g.Duration / time.Second),
	}
}

// Game converts the row back. Times come back in UTC at millisecond precision.
func (r GameRecord) Game() chessdto.ChessGame {
	return chessdto.ChessGame{
		ID:          r.ID,
		GameUUID:    r.GameUUID,
		WhiteID:     r.WhiteID,
		WhiteName:   r.WhiteName,
		BlackID:     r.BlackID,
		BlackName:   r.BlackName,
		Result:      r.Result,
		Reason:      r.Reason,
		TimeControl: r.TimeControl,
		StartFEN:    r.StartFEN,
		MovesUCI:    strings.Fields(r.MovesUCI),
		MovesSAN:    strings.Fields(r.MovesSAN),
		PGN:         r.PGN,
		StartedAt:   fromMillis(r.StartedAt),
		EndedAt:     fromMillis(r.EndedAt),
		Duration:    time.Duration(r.DurationSeconds) * time.Second,
	}
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// WriteParquet drains records into a new file at path and returns how many rows it wrote.
func WriteParquet(path string, records <-chan GameRecord, parallel int64) (int, error) {
	fileWriter, err := local.NewLocalFileWriter(path)
	if err != nil {
		return 0, err
	}
	defer fileWriter.Close()

	parquetWriter, err := writer.NewParquetWriter(fileWriter, new(GameRecord), parallel)
	if err != nil {
		return 0, err
	}
	parquetWriter.CompressionType = parquet.CompressionCodec_SNAPPY

	n := 0
	for record := range records {
		if err := parquetWriter.Write(record); err != nil {
			return n, err
		}
		n++
	}
	if err := parquetWriter.WriteStop(); err != nil {
		return n, err
	}
	return n, fileWriter.Close()
}

// WriteGames is WriteParquet over a slice.
func WriteGames(path string, games []chessdto.ChessGame, parallel int64) (int, error) {
	records := make(chan GameRecord, len(games))
	for _, g := range games {
		records <- FromGame(g)
	}
	close(records)
	return WriteParquet(path, records, parallel)
}

func ReadParquet(path string, parallel int64) ([]GameRecord, error) {
	fileReader, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, err
	}
	defer fileReader.Close()

	parquetReader, err := reader.NewParquetReader(fileReader, new(GameRecord), parallel)
	if err != nil {
		return nil, err
	}
	defer parquetReader.ReadStop()

	num := int(parquetReader.GetNumRows())
	records := make([]GameRecord, 0, num)
	batchSize := 1024
	for offset := 0; offset < num; offset += batchSize {
		remain := num - offset
		if remain < batchSize {
			batchSize = remain
		}
		batch := make([]GameRecord, batchSize)
		if err := parquetReader.Read(&batch); err != nil {
			return nil, err
		}
		records = append(records, batch...)
	}
	return records, nil
}

// Source lists finished games, newest first.
type Source interface {
	ListEndedSince(ctx context.Context, since time.Time, limit int) ([]chessdto.ChessGame, error)
}

// Export writes every game that ended at or after since into path.
func Export(ctx context.Context, src Source, since time.Time, limit int, path string) (int, error) {
	games, err := src.ListEndedSince(ctx, since, limit)
	if err != nil {
		return 0, fmt.Errorf("list games: %w", err)
	}
	n, err := WriteGames(path, games, 4)
	if err != nil {
		return n, fmt.Errorf("write %s: %w", path, err)
	}
	obslog.L().Info("archive_written",
		zap.String("path", path),
		zap.Int("games", n),
		zap.Time("since", since),
	)
	return n, nil
}
