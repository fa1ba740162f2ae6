package office

import "tenacitos.ai/internal/sim/office/feature/navigator"

// OfficeMetrics is a thread-safe read-only view of key runtime signals.
// It is updated from the loop goroutine and read from HTTP handlers/tests.
type OfficeMetrics struct {
	Tick uint64 `json:"tick"`

	Agents    int `json:"agents"`
	Seated    int `json:"seated"`
	Roaming   int `json:"roaming"`
	Moving    int `json:"moving"`
	Observers int `json:"observers"`

	GraphNodes    int  `json:"graph_nodes"`
	GraphEdges    int  `json:"graph_edges"`
	GraphFallback bool `json:"graph_fallback"`

	QueueDepths QueueDepths `json:"queue_depths"`

	StepMS float64 `json:"step_ms"`

	Totals Totals `json:"totals"`
}

type QueueDepths struct {
	Status        int `json:"status"`
	ObserverJoin  int `json:"observer_join"`
	ObserverLeave int `json:"observer_leave"`
}

// Totals are monotonically increasing counters since start.
type Totals struct {
	Spawns          uint64 `json:"spawns"`
	SpawnFallbacks  uint64 `json:"spawn_fallbacks"`
	Leaves          uint64 `json:"leaves"`
	Moves           uint64 `json:"moves"`
	PlanFails       uint64 `json:"plan_fails"`
	StuckRecoveries uint64 `json:"stuck_recoveries"`
}

func (o *Office) Metrics() OfficeMetrics {
	if o == nil {
		return OfficeMetrics{}
	}
	v := o.metrics.Load()
	if v == nil {
		return OfficeMetrics{}
	}
	m, ok := v.(OfficeMetrics)
	if !ok {
		return OfficeMetrics{}
	}
	return m
}

func (o *Office) publishMetrics(stepMS float64) {
	m := OfficeMetrics{
		Tick:          o.tick.Load(),
		Agents:        len(o.navs),
		Observers:     len(o.observers),
		GraphNodes:    o.graph.Len(),
		GraphEdges:    o.graph.EdgeCount(),
		GraphFallback: o.graph.Fallback,
		QueueDepths: QueueDepths{
			Status:        len(o.statusIn),
			ObserverJoin:  len(o.observerJoin),
			ObserverLeave: len(o.observerLeave),
		},
		StepMS: stepMS,
		Totals: o.totals,
	}
	for _, n := range o.navs {
		if n.Mode() == navigator.ModeSeated {
			m.Seated++
		} else {
			m.Roaming++
		}
		if n.State.Moving {
			m.Moving++
		}
	}
	o.metrics.Store(m)
}
