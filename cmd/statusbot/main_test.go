package main

import (
	"math/rand"
	"testing"

	"tenacitos.ai/internal/protocol"
)

func TestFlipOneChangesExactlyOneAgent(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	cur := initialStatuses([]string{"main", "infra", "studio"})
	for i := 0; i < 50; i++ {
		next, desc := flipOne(r, cur)
		if desc == "" {
			t.Fatalf("empty description")
		}
		diff := 0
		for j := range next {
			if next[j].ID != cur[j].ID {
				t.Fatalf("order changed")
			}
			if next[j].Status != cur[j].Status {
				diff++
			}
			if !protocol.IsKnownStatus(next[j].Status) {
				t.Fatalf("unknown status %q", next[j].Status)
			}
		}
		if diff != 1 {
			t.Fatalf("iteration %d: %d agents changed", i, diff)
		}
		cur = next
	}
}
