package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "events":
			eventsCmd(os.Args[2:])
			return
		case "logs":
			logsCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	entries, err := os.ReadDir(filepath.Join(*dataDir, "offices"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		if e.IsDir() {
			fmt.Println(e.Name())
		}
	}
}

type logFile struct {
	Path string
	Size int64
	Mod  time.Time
}

// logsCmd lists frame and event log segments with their sizes.
func logsCmd(args []string) {
	fs := flag.NewFlagSet("logs", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	officeID := fs.String("office", "main_office", "office id")
	_ = fs.Parse(args)

	officeDir := filepath.Join(*dataDir, "offices", *officeID)
	files, total, err := collectLogs(officeDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logs:", err)
		os.Exit(1)
	}
	for _, f := range files {
		rel, _ := filepath.Rel(officeDir, f.Path)
		fmt.Printf("%-48s %10s  %s\n", rel, humanize.Bytes(uint64(f.Size)), humanize.Time(f.Mod))
	}
	fmt.Printf("%d files, %s total\n", len(files), humanize.Bytes(uint64(total)))
}

func collectLogs(officeDir string) ([]logFile, int64, error) {
	var out []logFile
	var total int64
	for _, sub := range []string{"frames", "events"} {
		ents, err := os.ReadDir(filepath.Join(officeDir, sub))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, 0, err
		}
		for _, e := range ents {
			if e.IsDir() {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			out = append(out, logFile{
				Path: filepath.Join(officeDir, sub, e.Name()),
				Size: info.Size(),
				Mod:  info.ModTime(),
			})
			total += info.Size()
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, total, nil
}
