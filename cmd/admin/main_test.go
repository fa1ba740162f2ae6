package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCollectLogs(t *testing.T) {
	dir := t.TempDir()
	for _, p := range []string{"frames/frames-2026-01-01-00.jsonl.zst", "events/events-2026-01-01-00.jsonl.zst"} {
		full := filepath.Join(dir, p)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(full, make([]byte, 100), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	files, total, err := collectLogs(dir)
	if err != nil {
		t.Fatalf("collectLogs: %v", err)
	}
	if len(files) != 2 || total != 200 {
		t.Fatalf("files=%+v total=%d", files, total)
	}
	if filepath.Base(filepath.Dir(files[0].Path)) != "events" {
		t.Fatalf("expected sorted paths, got %s first", files[0].Path)
	}

	if files, _, err := collectLogs(filepath.Join(dir, "missing")); err != nil || len(files) != 0 {
		t.Fatalf("missing office dir: files=%v err=%v", files, err)
	}
}
