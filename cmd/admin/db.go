package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"tenacitos.ai/internal/persistence/indexdb"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	officeID := fs.String("office", "", "office id (required unless -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	agent := fs.String("agent", "", "agent_id filter (events)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "runs"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		if strings.TrimSpace(*officeID) == "" {
			fmt.Fprintln(os.Stderr, "missing -office or -db")
			os.Exit(2)
		}
		path = filepath.Join(*dataDir, "offices", *officeID, "index", "office.sqlite")
	}

	idx, err := indexdb.OpenSQLiteReadOnly(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer idx.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	enc := json.NewEncoder(os.Stdout)
	switch q {
	case "runs":
		rows, err := idx.Runs(ctx, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		for _, r := range rows {
			started := r.StartedAt
			if t, err := time.Parse(time.RFC3339Nano, r.StartedAt); err == nil {
				started = humanize.Time(t)
			}
			fmt.Printf("%s office=%s layout=%.12s tuning=%.12s started %s\n", r.RunID, r.OfficeID, r.LayoutDigest, r.TuningDigest, started)
		}
	case "events":
		rows, err := idx.RecentEvents(ctx, strings.TrimSpace(*agent), *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		for _, r := range rows {
			_ = enc.Encode(r)
		}
	case "counts":
		counts, err := idx.EventCounts(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		kinds := make([]string, 0, len(counts))
		for k := range counts {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		for _, k := range kinds {
			fmt.Printf("%-16s %s\n", k, humanize.Comma(int64(counts[k])))
		}
	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q, "(want runs|events|counts)")
		os.Exit(2)
	}
}
