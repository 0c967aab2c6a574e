// Command chess-archive exports finished games from Postgres to a Parquet file, or
// summarises an existing export with -read.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/park285/cheese-chess-server/internal/archive"
	appcfg "github.com/park285/cheese-chess-server/internal/config"
	"github.com/park285/cheese-chess-server/internal/obslog"
	"github.com/park285/cheese-chess-server/internal/pvpchess"
)

func main() {
	since := flag.Duration("since", 24*time.Hour, "export games that ended within this window")
	limit := flag.Int("limit", 10000, "maximum games to export")
	output := flag.String("output", "", "output parquet file (default ARCHIVE_DIR/games-<date>.parquet)")
	read := flag.String("read", "", "summarise an existing parquet file instead of exporting")
	flag.Parse()

	if *read != "" {
		if err := summarise(*read); err != nil {
			fatal(err)
		}
		return
	}

	cfg, err := appcfg.Load()
	if err != nil {
		fatal(fmt.Errorf("config: %w", err))
	}
	if err := obslog.Init(cfg.Log); err != nil {
		fatal(fmt.Errorf("logger: %w", err))
	}
	if cfg.DatabaseURL == "" {
		fatal(fmt.Errorf("DATABASE_URL is required"))
	}
	if *since <= 0 || *limit <= 0 {
		fatal(fmt.Errorf("since and limit must be > 0"))
	}

	repo, err := pvpchess.NewRepository(cfg.DatabaseURL)
	if err != nil {
		fatal(err)
	}
	defer repo.Close()

	now := time.Now().UTC()
	path := *output
	if path == "" {
		if err := os.MkdirAll(cfg.ArchiveDir, 0o755); err != nil {
			fatal(err)
		}
		path = filepath.Join(cfg.ArchiveDir, "games-"+now.Format("20060102-150405")+".parquet")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	n, err := archive.Export(ctx, repo, now.Add(-*since), *limit, path)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("wrote %d games to %s\n", n, path)
}

func summarise(path string) error {
	records, err := archive.ReadParquet(path, 4)
	if err != nil {
		return err
	}
	results := map[string]int{}
	reasons := map[string]int{}
	var plies int64
	for _, r := range records {
		results[r.Result]++
		reasons[r.Reason]++
		plies += int64(r.MoveCount)
	}
	fmt.Printf("games: %d\n", len(records))
	if len(records) > 0 {
		fmt.Printf("average plies: %.1f\n", float64(plies)/float64(len(records)))
	}
	printCounts("result", results)
	printCounts("reason", reasons)
	return nil
}

func printCounts(label string, counts map[string]int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("%s %-24s %d\n", label, k, counts[k])
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
