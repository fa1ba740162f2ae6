package indexdb

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"tenacitos.ai/internal/sim/office"
	"tenacitos.ai/internal/sim/tuning"
)

// SQLiteIndex is a secondary index of nav events and sampled frames. Writes
// are queued and applied by one goroutine; the JSONL logs stay the source of
// truth.
type SQLiteIndex struct {
	db    *sqlx.DB
	runID string

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropEventTotal atomic.Uint64
	dropFrameTotal atomic.Uint64
}

type reqKind int

const (
	reqEvent reqKind = iota + 1
	reqFrame
)

type req struct {
	kind reqKind

	event office.EventLogEntry
	frame office.FrameLogEntry
}

// EventRow is one indexed nav event.
type EventRow struct {
	RunID   string  `db:"run_id" json:"run_id"`
	Tick    uint64  `db:"tick" json:"tick"`
	Seq     int     `db:"seq" json:"seq"`
	AgentID string  `db:"agent_id" json:"agent_id"`
	Kind    string  `db:"kind" json:"kind"`
	Detail  string  `db:"detail" json:"detail,omitempty"`
	X       float64 `db:"x" json:"x"`
	Z       float64 `db:"z" json:"z"`
}

// RunRow describes one server run.
type RunRow struct {
	RunID        string `db:"run_id" json:"run_id"`
	OfficeID     string `db:"office_id" json:"office_id"`
	LayoutDigest string `db:"layout_digest" json:"layout_digest"`
	TuningDigest string `db:"tuning_digest" json:"tuning_digest"`
	StartedAt    string `db:"started_at" json:"started_at"`
}

type Stats struct {
	QueueDepth     int    `json:"queue_depth"`
	QueueCapacity  int    `json:"queue_capacity"`
	DropEventTotal uint64 `json:"drop_event_total"`
	DropFrameTotal uint64 `json:"drop_frame_total"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	s := &SQLiteIndex{
		db:    db,
		runID: uuid.NewString(),
		ch:    make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

// OpenSQLiteReadOnly opens an existing index for queries only.
func OpenSQLiteReadOnly(path string) (*SQLiteIndex, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)
	s := &SQLiteIndex{db: db}
	s.closed.Store(true)
	return s, nil
}

func initPragmas(db *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sqlx.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		office_id TEXT NOT NULL,
		layout_digest TEXT NOT NULL,
		tuning_digest TEXT NOT NULL,
		tuning_json TEXT NOT NULL,
		started_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		seq INTEGER NOT NULL,
		agent_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		detail TEXT NOT NULL,
		x REAL NOT NULL,
		z REAL NOT NULL,
		PRIMARY KEY (run_id, tick, seq)
	);

	CREATE TABLE IF NOT EXISTS frames (
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		agents INTEGER NOT NULL,
		seated INTEGER NOT NULL,
		moving INTEGER NOT NULL,
		raw_json TEXT NOT NULL,
		PRIMARY KEY (run_id, tick)
	);

	CREATE INDEX IF NOT EXISTS idx_events_agent_tick ON events(agent_id, tick);
	CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind);
	`
	if _, err := db.Exec(schema); err != nil {
		return err
	}
	_, err := db.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`)
	return err
}

func (s *SQLiteIndex) RunID() string { return s.runID }

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		if !s.closed.Swap(true) {
			close(s.ch)
			s.wg.Wait()
		}
		err = s.db.Close()
	})
	return err
}

// RecordRun stores the run header synchronously, before the office starts.
func (s *SQLiteIndex) RecordRun(officeID, layoutDigest string, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	b, err := json.Marshal(tune)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(b)
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO runs(run_id,office_id,layout_digest,tuning_digest,tuning_json,started_at) VALUES(?,?,?,?,?,?)`,
		s.runID, officeID, layoutDigest, hex.EncodeToString(sum[:]), string(b),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (s *SQLiteIndex) WriteEvent(entry office.EventLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqEvent, event: entry}:
	default:
		// Drop if the indexer falls behind; JSONL logs remain the source of truth.
		s.dropEventTotal.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) WriteFrame(entry office.FrameLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqFrame, frame: entry}:
	default:
		s.dropFrameTotal.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:     len(s.ch),
		QueueCapacity:  cap(s.ch),
		DropEventTotal: s.dropEventTotal.Load(),
		DropFrameTotal: s.dropFrameTotal.Load(),
	}
}

// RecentEvents returns the newest events, newest first. An empty agentID
// matches every agent.
func (s *SQLiteIndex) RecentEvents(ctx context.Context, agentID string, limit int) ([]EventRow, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []EventRow
	var err error
	if agentID == "" {
		err = s.db.SelectContext(ctx, &rows,
			`SELECT run_id,tick,seq,agent_id,kind,detail,x,z FROM events ORDER BY rowid DESC LIMIT ?`, limit)
	} else {
		err = s.db.SelectContext(ctx, &rows,
			`SELECT run_id,tick,seq,agent_id,kind,detail,x,z FROM events WHERE agent_id = ? ORDER BY rowid DESC LIMIT ?`, agentID, limit)
	}
	return rows, err
}

// EventCounts groups events by kind.
func (s *SQLiteIndex) EventCounts(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		Kind string `db:"kind"`
		N    int    `db:"n"`
	}
	if err := s.db.SelectContext(ctx, &rows, `SELECT kind, COUNT(*) AS n FROM events GROUP BY kind`); err != nil {
		return nil, err
	}
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.Kind] = r.N
	}
	return out, nil
}

func (s *SQLiteIndex) Runs(ctx context.Context, limit int) ([]RunRow, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []RunRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT run_id,office_id,layout_digest,tuning_digest,started_at FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	return rows, err
}

func (s *SQLiteIndex) loop() {
	insertEvent, _ := s.db.Preparex(`INSERT OR REPLACE INTO events(run_id,tick,seq,agent_id,kind,detail,x,z) VALUES(?,?,?,?,?,?,?,?)`)
	insertFrame, _ := s.db.Preparex(`INSERT OR REPLACE INTO frames(run_id,tick,agents,seated,moving,raw_json) VALUES(?,?,?,?,?,?)`)
	defer func() {
		if insertEvent != nil {
			_ = insertEvent.Close()
		}
		if insertFrame != nil {
			_ = insertFrame.Close()
		}
	}()

	var (
		tx            *sqlx.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = time.Second

		lastEventTick uint64
		eventSeq      int
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.Beginx()
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqEvent:
			e := r.event
			if e.Tick != lastEventTick {
				lastEventTick = e.Tick
				eventSeq = 0
			}
			seq := eventSeq
			eventSeq++
			if insertEvent == nil {
				continue
			}
			if _, err := tx.Stmtx(insertEvent).Exec(s.runID, int64(e.Tick), seq, e.AgentID, e.Kind, e.Detail, e.Pos[0], e.Pos[1]); err != nil {
				rollback()
				continue
			}
			opCount++

		case reqFrame:
			f := r.frame
			seated, moving := 0, 0
			for _, a := range f.Agents {
				if a.Mode == "SEATED" {
					seated++
				}
				if a.Moving {
					moving++
				}
			}
			raw, _ := json.Marshal(f.Agents)
			if insertFrame == nil {
				continue
			}
			if _, err := tx.Stmtx(insertFrame).Exec(s.runID, int64(f.Tick), len(f.Agents), seated, moving, string(raw)); err != nil {
				rollback()
				continue
			}
			opCount++
		}
		// Flush when idle too.
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait || len(s.ch) == 0 {
			commit()
		}
	}

	commit()
}
