package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	persistlog "tenacitos.ai/internal/persistence/log"
	"tenacitos.ai/internal/sim/layout"
	"tenacitos.ai/internal/sim/office"
	"tenacitos.ai/internal/sim/tuning"
)

func main() {
	var (
		officeDir  = flag.String("office_dir", "", "office data dir containing frames/ and events/")
		configDir  = flag.String("configs", "./configs", "config directory")
		layoutPath = flag.String("layout", "", "path to office.yaml (default: <configs>/office.yaml)")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		fromTick   = flag.Uint64("from_tick", 0, "start verifying from tick (inclusive, optional)")
		toTick     = flag.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
	)
	flag.Parse()

	if strings.TrimSpace(*officeDir) == "" {
		fmt.Fprintln(os.Stderr, "missing -office_dir")
		os.Exit(2)
	}

	lp := *layoutPath
	if lp == "" {
		lp = filepath.Join(*configDir, "office.yaml")
	}
	l, err := layout.Load(lp)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load layout:", err)
		os.Exit(1)
	}
	tp := *tuningPath
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintln(os.Stderr, "load tuning:", err)
			os.Exit(1)
		}
		tune = tuning.Defaults()
	}

	v := newVerifier(l, office.ConfigFromTuning(l.ID, 0, tune))

	framesDir := filepath.Join(*officeDir, "frames")
	files, err := persistlog.ListFiles(framesDir, "frames")
	if err != nil {
		fmt.Fprintln(os.Stderr, "list frames:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no frame files found in", framesDir)
		os.Exit(1)
	}
	var bytes int64
	for _, path := range files {
		if st, err := os.Stat(path); err == nil {
			bytes += st.Size()
		}
	}

	runs := map[string]struct{}{}
	_, err = persistlog.ReadFrames(*officeDir, func(seg persistlog.Segment, entry office.FrameLogEntry) error {
		if seg.LayoutDigest != "" && seg.LayoutDigest != l.Digest {
			return fmt.Errorf("run %s recorded with layout %s, have %s", seg.RunID, seg.LayoutDigest, l.Digest)
		}
		if seg.RunID != "" {
			runs[seg.RunID] = struct{}{}
		}
		if entry.Tick < *fromTick || (*toTick != 0 && entry.Tick > *toTick) {
			return nil
		}
		return v.Check(entry)
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}

	counts := map[string]uint64{}
	_, _ = persistlog.ReadEvents(*officeDir, func(_ persistlog.Segment, e office.EventLogEntry) error {
		counts[e.Kind]++
		return nil
	})

	fmt.Printf("replay ok: frames=%s agents_seen=%d runs=%d files=%d (%s) jumps=%d\n",
		humanize.Comma(int64(v.frames)), len(v.lastPos), len(runs), len(files), humanize.Bytes(uint64(bytes)), v.jumps)
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Printf("  %-16s %s\n", k, humanize.Comma(int64(counts[k])))
	}
}
