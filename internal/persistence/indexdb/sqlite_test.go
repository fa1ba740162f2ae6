package indexdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"tenacitos.ai/internal/observerproto"
	"tenacitos.ai/internal/sim/office"
	"tenacitos.ai/internal/sim/tuning"
)

func TestSQLiteIndex_RecordsAndReturnsEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index", "office.sqlite")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := idx.RecordRun("main_office", "abc", tuning.Defaults()); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}

	_ = idx.WriteEvent(office.EventLogEntry{OfficeID: "main_office", Tick: 1, AgentID: "main", Kind: office.EventSpawn, Pos: [2]float64{1, 2}})
	_ = idx.WriteEvent(office.EventLogEntry{OfficeID: "main_office", Tick: 1, AgentID: "infra", Kind: office.EventSpawn})
	_ = idx.WriteEvent(office.EventLogEntry{OfficeID: "main_office", Tick: 9, AgentID: "main", Kind: office.EventSeated})
	_ = idx.WriteFrame(office.FrameLogEntry{OfficeID: "main_office", Tick: 9, Agents: []observerproto.AgentView{{ID: "main", Mode: "SEATED"}}})

	ctx := context.Background()
	var rows []EventRow
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		rows, err = idx.RecentEvents(ctx, "main", 10)
		if err != nil {
			t.Fatalf("RecentEvents: %v", err)
		}
		if len(rows) == 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if len(rows) != 2 {
		t.Fatalf("rows=%+v", rows)
	}
	if rows[0].Kind != office.EventSeated || rows[1].Kind != office.EventSpawn || rows[1].X != 1 || rows[1].Z != 2 {
		t.Fatalf("rows=%+v", rows)
	}
	if rows[0].RunID != idx.RunID() {
		t.Fatalf("run id=%s want %s", rows[0].RunID, idx.RunID())
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	ro, err := OpenSQLiteReadOnly(path)
	if err != nil {
		t.Fatalf("OpenSQLiteReadOnly: %v", err)
	}
	defer ro.Close()
	counts, err := ro.EventCounts(ctx)
	if err != nil {
		t.Fatalf("EventCounts: %v", err)
	}
	if counts[office.EventSpawn] != 2 || counts[office.EventSeated] != 1 {
		t.Fatalf("counts=%v", counts)
	}
	runs, err := ro.Runs(ctx, 5)
	if err != nil || len(runs) != 1 || runs[0].OfficeID != "main_office" || runs[0].TuningDigest == "" {
		t.Fatalf("runs=%+v err=%v", runs, err)
	}
	// Writes after close are ignored.
	if err := ro.WriteEvent(office.EventLogEntry{Tick: 2}); err != nil {
		t.Fatalf("WriteEvent on read-only: %v", err)
	}
}

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqEvent}

	_ = s.WriteEvent(office.EventLogEntry{Tick: 2})
	_ = s.WriteFrame(office.FrameLogEntry{Tick: 2})

	st := s.Stats()
	if st.DropEventTotal != 1 || st.DropFrameTotal != 1 {
		t.Fatalf("stats=%+v", st)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}
