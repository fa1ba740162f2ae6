package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.yaml")
	raw := []byte(`tick_rate_hz: 20
navigator:
  stuck_threshold_ticks: 12
route:
  idle_replan_sec: [1, 2]
`)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.TickRateHz != 20 || got.Navigator.StuckThreshold != 12 {
		t.Fatalf("overrides not applied: %+v", got)
	}
	if got.Route.IdleReplanSec != [2]float64{1, 2} {
		t.Fatalf("idle replan=%v", got.Route.IdleReplanSec)
	}
	def := Defaults()
	if got.Navigator.IdleSpeed != def.Navigator.IdleSpeed || got.Spawn != def.Spawn {
		t.Fatalf("missing keys lost their defaults")
	}
}

func TestLoadRejectsBadRanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.yaml")
	if err := os.WriteFile(path, []byte("route:\n  active_replan_sec: [26, 14]\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for inverted range")
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !os.IsNotExist(err) {
		t.Fatalf("want not-exist error, got %v", err)
	}
}

func TestDefaultsValid(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults: %v", err)
	}
}

func TestRepoTuningLoads(t *testing.T) {
	if _, err := Load(filepath.Join("..", "..", "..", "configs", "tuning.yaml")); err != nil {
		t.Fatalf("configs/tuning.yaml: %v", err)
	}
}

func TestValidateRejectsNonPositiveMotion(t *testing.T) {
	cases := map[string]func(*Tuning){
		"arrival_threshold": func(t *Tuning) { t.Route.ArrivalThreshold = 0 },
		"roam_speed":        func(t *Tuning) { t.Navigator.RoamSpeed = 0 },
		"idle_speed":        func(t *Tuning) { t.Navigator.IdleSpeed = -1 },
		"max_neighbor_dist": func(t *Tuning) { t.Graph.MaxNeighborDist = 0 },
	}
	for name, mutate := range cases {
		tune := Defaults()
		mutate(&tune)
		if err := tune.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}
