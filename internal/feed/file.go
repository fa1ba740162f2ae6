package feed

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"tenacitos.ai/internal/sim/office"
)

// FileFeed watches a JSON status file and pushes its agent list whenever the
// file changes.
type FileFeed struct {
	Path     string
	Debounce time.Duration
	Inbox    chan<- office.StatusUpdate
	Log      *log.Logger

	seq  uint64
	last []byte
}

func NewFileFeed(path string, inbox chan<- office.StatusUpdate, logger *log.Logger) *FileFeed {
	return &FileFeed{Path: path, Debounce: 100 * time.Millisecond, Inbox: inbox, Log: logger}
}

// Run blocks until ctx is done. The parent directory is watched rather than
// the file so atomic renames by editors and writers are seen.
func (f *FileFeed) Run(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("file feed: %w", err)
	}
	defer w.Close()

	abs, err := filepath.Abs(f.Path)
	if err != nil {
		return fmt.Errorf("file feed: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("file feed: watch %s: %w", filepath.Dir(abs), err)
	}

	// Initial read; a missing file just means no agents yet.
	f.reload()

	var debounce *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(f.Debounce)
			} else {
				if !debounce.Stop() {
					select {
					case <-debounce.C:
					default:
					}
				}
				debounce.Reset(f.Debounce)
			}
			fire = debounce.C
		case <-fire:
			fire = nil
			f.reload()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			f.logf("watch error: %v", err)
		}
	}
}

func (f *FileFeed) reload() {
	raw, err := os.ReadFile(f.Path)
	if err != nil {
		if !os.IsNotExist(err) {
			f.logf("read %s: %v", f.Path, err)
		}
		return
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, f.last) {
		return
	}
	msg, err := Decode(raw, f.seq+1)
	if err != nil {
		f.logf("reject %s: %v", f.Path, err)
		return
	}
	if !offer(f.Inbox, office.StatusUpdate{Source: "file", Seq: msg.Seq, Agents: msg.Agents}) {
		f.logf("office busy; dropped seq %d", msg.Seq)
		return
	}
	f.seq = msg.Seq
	f.last = raw
}

func (f *FileFeed) logf(format string, args ...any) {
	if f.Log != nil {
		f.Log.Printf("file feed: "+format, args...)
	}
}
