package indexdb

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"tenacitos.ai/internal/sim/office"
	"tenacitos.ai/internal/sim/tuning"
)

// D1Config points the index at an HTTP ingest worker (Cloudflare D1 or
// anything speaking the same batch format).
type D1Config struct {
	Endpoint      string
	Token         string
	OfficeID      string
	BatchSize     int
	FlushInterval time.Duration
	HTTPTimeout   time.Duration
	MaxRetained   int
	Logger        *log.Logger
}

type D1Index struct {
	cfg        D1Config
	httpClient *http.Client
	runID      string

	ch   chan d1Event
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	eventMu       sync.Mutex
	lastEventTick uint64
	eventSeq      int

	flushFailTotal    atomic.Uint64
	queueDroppedTotal atomic.Uint64
	retainDropTotal   atomic.Uint64
}

type d1Event struct {
	Kind     string `json:"kind"`
	OfficeID string `json:"office_id"`
	RunID    string `json:"run_id"`
	Payload  any    `json:"payload"`
}

type d1RunPayload struct {
	LayoutDigest string `json:"layout_digest"`
	TuningDigest string `json:"tuning_digest"`
	TuningJSON   string `json:"tuning_json"`
	StartedAt    string `json:"started_at"`
}

type d1EventPayload struct {
	Tick    uint64     `json:"tick"`
	Seq     int        `json:"seq"`
	AgentID string     `json:"agent_id"`
	Kind    string     `json:"kind"`
	Detail  string     `json:"detail,omitempty"`
	Pos     [2]float64 `json:"pos"`
}

type d1FramePayload struct {
	Tick   uint64 `json:"tick"`
	Agents int    `json:"agents"`
	Seated int    `json:"seated"`
	Moving int    `json:"moving"`
}

type D1Stats struct {
	QueueDepth        int    `json:"queue_depth"`
	FlushFailTotal    uint64 `json:"flush_fail_total"`
	QueueDroppedTotal uint64 `json:"queue_dropped_total"`
	RetainDropTotal   uint64 `json:"retain_drop_total"`
}

func OpenD1(cfg D1Config) (*D1Index, error) {
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	cfg.OfficeID = strings.TrimSpace(cfg.OfficeID)
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("empty d1 ingest endpoint")
	}
	if cfg.OfficeID == "" {
		return nil, fmt.Errorf("empty office id")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 128
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 500 * time.Millisecond
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}
	if cfg.MaxRetained <= 0 {
		cfg.MaxRetained = 8 * cfg.BatchSize
	}

	d := &D1Index{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
		runID: uuid.NewString(),
		ch:    make(chan d1Event, 32768),
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.loop()
	}()

	return d, nil
}

func (d *D1Index) RunID() string { return d.runID }

func (d *D1Index) Close() error {
	if d == nil {
		return nil
	}
	d.once.Do(func() {
		d.closed.Store(true)
		close(d.ch)
		d.wg.Wait()
	})
	return nil
}

func (d *D1Index) RecordRun(officeID, layoutDigest string, tune tuning.Tuning) error {
	if d == nil || d.closed.Load() {
		return nil
	}
	b, err := json.Marshal(tune)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(b)
	d.enqueue(d1Event{Kind: "run", Payload: d1RunPayload{
		LayoutDigest: layoutDigest,
		TuningDigest: hex.EncodeToString(sum[:]),
		TuningJSON:   string(b),
		StartedAt:    time.Now().UTC().Format(time.RFC3339Nano),
	}})
	return nil
}

func (d *D1Index) WriteEvent(entry office.EventLogEntry) error {
	if d == nil || d.closed.Load() {
		return nil
	}
	p := d1EventPayload{
		Tick:    entry.Tick,
		Seq:     d.nextEventSeq(entry.Tick),
		AgentID: entry.AgentID,
		Kind:    entry.Kind,
		Detail:  entry.Detail,
		Pos:     entry.Pos,
	}
	d.enqueue(d1Event{Kind: "event", Payload: p})
	return nil
}

func (d *D1Index) WriteFrame(entry office.FrameLogEntry) error {
	if d == nil || d.closed.Load() {
		return nil
	}
	p := d1FramePayload{Tick: entry.Tick, Agents: len(entry.Agents)}
	for _, a := range entry.Agents {
		if a.Mode == "SEATED" {
			p.Seated++
		}
		if a.Moving {
			p.Moving++
		}
	}
	d.enqueue(d1Event{Kind: "frame", Payload: p})
	return nil
}

func (d *D1Index) Stats() D1Stats {
	if d == nil {
		return D1Stats{}
	}
	return D1Stats{
		QueueDepth:        len(d.ch),
		FlushFailTotal:    d.flushFailTotal.Load(),
		QueueDroppedTotal: d.queueDroppedTotal.Load(),
		RetainDropTotal:   d.retainDropTotal.Load(),
	}
}

func (d *D1Index) nextEventSeq(tick uint64) int {
	d.eventMu.Lock()
	defer d.eventMu.Unlock()
	if tick != d.lastEventTick {
		d.lastEventTick = tick
		d.eventSeq = 0
	}
	d.eventSeq++
	return d.eventSeq
}

func (d *D1Index) enqueue(ev d1Event) {
	if d == nil || d.closed.Load() {
		return
	}
	ev.OfficeID = d.cfg.OfficeID
	ev.RunID = d.runID
	select {
	case d.ch <- ev:
	default:
		d.queueDroppedTotal.Add(1)
		d.printf("d1 index queue full; drop kind=%s office=%s", ev.Kind, ev.OfficeID)
	}
}

func (d *D1Index) loop() {
	ticker := time.NewTicker(d.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]d1Event, 0, d.cfg.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := d.sendBatch(batch); err != nil {
			d.flushFailTotal.Add(1)
			d.printf("d1 index flush failed batch=%d err=%v", len(batch), err)
			// Keep the batch for the next flush, bounded.
			if over := len(batch) - d.cfg.MaxRetained; over > 0 {
				d.retainDropTotal.Add(uint64(over))
				batch = append(batch[:0], batch[over:]...)
			}
			return
		}
		batch = batch[:0]
	}

	for {
		select {
		case ev, ok := <-d.ch:
			if !ok {
				flush()
				return
			}
			batch = append(batch, ev)
			if len(batch) >= d.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (d *D1Index) sendBatch(events []d1Event) error {
	if len(events) == 0 {
		return nil
	}

	body := struct {
		Events []d1Event `json:"events"`
	}{Events: events}
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, d.cfg.Endpoint, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("content-type", "application/json")
	if d.cfg.Token != "" {
		req.Header.Set("x-office-index-token", d.cfg.Token)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return err
	}
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 16*1024))
	_ = resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(respBody)))
}

func (d *D1Index) printf(format string, args ...any) {
	if d != nil && d.cfg.Logger != nil {
		d.cfg.Logger.Printf(format, args...)
	}
}
