package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zstd"

	"tenacitos.ai/internal/observerproto"
	"tenacitos.ai/internal/sim/office"
)

const segmentKind = "segment"

// Segment is written as the first line of every file the writer opens, so
// each file can be tied back to the office run that produced it. A reopened
// hour file gets a second header mid-file.
type Segment struct {
	Kind         string    `json:"kind"`
	OfficeID     string    `json:"office_id"`
	RunID        string    `json:"run_id,omitempty"`
	LayoutDigest string    `json:"layout_digest,omitempty"`
	OpenedAt     time.Time `json:"opened_at"`
}

// JSONLZstdWriter appends JSON lines to hourly zstd files named
// <prefix>-YYYY-MM-DD-HH.jsonl.zst under baseDir.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	header  *Segment

	now func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

// NewJSONLZstdWriter returns a writer that starts every file with seg. A nil
// seg writes bare lines.
func NewJSONLZstdWriter(baseDir, prefix string, seg *Segment) *JSONLZstdWriter {
	w := &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
		now:     time.Now,
	}
	if seg != nil {
		h := *seg
		h.Kind = segmentKind
		w.header = &h
	}
	return w
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	if err := w.writeLineLocked(v); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) writeLineLocked(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	dir := filepath.Dir(w.pathForHour(hour))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	if w.header != nil {
		h := *w.header
		h.OpenedAt = w.now().UTC()
		if err := w.writeLineLocked(h); err != nil {
			return err
		}
	}
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// FrameLogger writes sampled office frames. A frame whose agents match the
// last written one is dropped; KeyframeEvery bounds the gap between lines.
//
// WriteFrame is called from the office loop only and is not safe for
// concurrent use; Skipped may be read from any goroutine.
type FrameLogger struct {
	w *JSONLZstdWriter

	// KeyframeEvery forces a write after this many ticks without one. Zero
	// writes changed frames only.
	KeyframeEvery uint64

	last     []observerproto.AgentView
	lastTick uint64
	wrote    bool
	skipped  atomic.Uint64
}

const defaultKeyframeEvery = 900

func NewFrameLogger(officeDir string, seg Segment) *FrameLogger {
	return &FrameLogger{
		w:             NewJSONLZstdWriter(filepath.Join(officeDir, "frames"), "frames", &seg),
		KeyframeEvery: defaultKeyframeEvery,
	}
}

func (l *FrameLogger) WriteFrame(e office.FrameLogEntry) error {
	if l.wrote && sameAgents(l.last, e.Agents) {
		if l.KeyframeEvery == 0 || e.Tick-l.lastTick < l.KeyframeEvery {
			l.skipped.Add(1)
			return nil
		}
	}
	if err := l.w.Write(e); err != nil {
		return err
	}
	l.last = e.Agents
	l.lastTick = e.Tick
	l.wrote = true
	return nil
}

// Skipped counts frames dropped as unchanged.
func (l *FrameLogger) Skipped() uint64 { return l.skipped.Load() }

func (l *FrameLogger) Close() error { return l.w.Close() }

// sameAgents compares what a viewer would see; debug fields are ignored.
func sameAgents(a, b []observerproto.AgentView) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		x, y := a[i], b[i]
		if x.ID != y.ID || x.Pos != y.Pos || x.Facing != y.Facing ||
			x.Moving != y.Moving || x.Status != y.Status || x.Mode != y.Mode {
			return false
		}
	}
	return true
}

// EventLogger writes nav events (compressed).
type EventLogger struct{ w *JSONLZstdWriter }

func NewEventLogger(officeDir string, seg Segment) *EventLogger {
	return &EventLogger{w: NewJSONLZstdWriter(filepath.Join(officeDir, "events"), "events", &seg)}
}

func (l *EventLogger) WriteEvent(v office.EventLogEntry) error { return l.w.Write(v) }
func (l *EventLogger) Close() error                            { return l.w.Close() }
