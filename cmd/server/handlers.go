package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"strconv"
	"strings"
	"time"

	"tenacitos.ai/internal/sim/office"
	"tenacitos.ai/internal/transport/observer"
	"tenacitos.ai/internal/transport/ws"
)

type serverDeps struct {
	office      *office.Office
	index       runtimeIndex
	logger      *log.Logger
	enableAdmin bool
	enablePprof bool
}

func newHTTPServer(addr string, d serverDeps) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           newMux(d),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func newMux(d serverDeps) *http.ServeMux {
	o := d.office
	officeID := o.Config().ID

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeOfficeMetrics(rw, officeID, o.Metrics())
	})

	if d.enableAdmin {
		// Local-only admin endpoints.
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			resp := struct {
				OfficeID string               `json:"office_id"`
				Tick     uint64               `json:"tick"`
				Metrics  office.OfficeMetrics `json:"metrics"`
				Frame    any                  `json:"frame,omitempty"`
			}{
				OfficeID: officeID,
				Tick:     o.CurrentTick(),
				Metrics:  o.Metrics(),
			}
			if f := o.LastFrame(); f != nil {
				resp.Frame = f
			}
			_ = json.NewEncoder(rw).Encode(resp)
		})
		mux.HandleFunc("/admin/v1/events", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			q, ok := d.index.(eventQuerier)
			if !ok {
				http.Error(rw, "event index not queryable", http.StatusNotFound)
				return
			}
			limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
			rows, err := q.RecentEvents(r.Context(), strings.TrimSpace(r.URL.Query().Get("agent")), limit)
			if err != nil {
				http.Error(rw, err.Error(), http.StatusInternalServerError)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(rw).Encode(map[string]any{"events": rows})
		})

		obsSrv := observer.NewServer(o, d.logger)
		mux.HandleFunc("/admin/v1/observer/bootstrap", obsSrv.BootstrapHandler())
		mux.HandleFunc("/admin/v1/observer/ws", obsSrv.WSHandler())
	} else if d.logger != nil {
		d.logger.Printf("admin endpoints disabled (OFFICE_ENABLE_ADMIN_HTTP=false)")
	}
	if d.enablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/status", ws.NewServer(o, d.logger).Handler())
	return mux
}

func writeOfficeMetrics(rw http.ResponseWriter, officeID string, m office.OfficeMetrics) {
	// Minimal Prometheus exposition format.
	fmt.Fprintf(rw, "# HELP office_tick Current office tick.\n")
	fmt.Fprintf(rw, "# TYPE office_tick gauge\n")
	fmt.Fprintf(rw, "office_tick{office=%q} %d\n", officeID, m.Tick)

	fmt.Fprintf(rw, "# HELP office_agents Agents by navigation mode.\n")
	fmt.Fprintf(rw, "# TYPE office_agents gauge\n")
	fmt.Fprintf(rw, "office_agents{office=%q,mode=%q} %d\n", officeID, "seated", m.Seated)
	fmt.Fprintf(rw, "office_agents{office=%q,mode=%q} %d\n", officeID, "roaming", m.Roaming)

	fmt.Fprintf(rw, "# HELP office_agents_moving Agents that moved on the last tick.\n")
	fmt.Fprintf(rw, "# TYPE office_agents_moving gauge\n")
	fmt.Fprintf(rw, "office_agents_moving{office=%q} %d\n", officeID, m.Moving)

	fmt.Fprintf(rw, "# HELP office_observers Connected frame observers.\n")
	fmt.Fprintf(rw, "# TYPE office_observers gauge\n")
	fmt.Fprintf(rw, "office_observers{office=%q} %d\n", officeID, m.Observers)

	fallback := 0
	if m.GraphFallback {
		fallback = 1
	}
	fmt.Fprintf(rw, "# HELP office_graph Waypoint graph size.\n")
	fmt.Fprintf(rw, "# TYPE office_graph gauge\n")
	fmt.Fprintf(rw, "office_graph{office=%q,metric=%q} %d\n", officeID, "nodes", m.GraphNodes)
	fmt.Fprintf(rw, "office_graph{office=%q,metric=%q} %d\n", officeID, "edges", m.GraphEdges)
	fmt.Fprintf(rw, "office_graph{office=%q,metric=%q} %d\n", officeID, "fallback", fallback)

	fmt.Fprintf(rw, "# HELP office_queue_depth Channel backlog depth.\n")
	fmt.Fprintf(rw, "# TYPE office_queue_depth gauge\n")
	fmt.Fprintf(rw, "office_queue_depth{office=%q,queue=%q} %d\n", officeID, "status", m.QueueDepths.Status)
	fmt.Fprintf(rw, "office_queue_depth{office=%q,queue=%q} %d\n", officeID, "observer_join", m.QueueDepths.ObserverJoin)
	fmt.Fprintf(rw, "office_queue_depth{office=%q,queue=%q} %d\n", officeID, "observer_leave", m.QueueDepths.ObserverLeave)

	fmt.Fprintf(rw, "# HELP office_step_ms Last tick step duration in milliseconds.\n")
	fmt.Fprintf(rw, "# TYPE office_step_ms gauge\n")
	fmt.Fprintf(rw, "office_step_ms{office=%q} %.3f\n", officeID, m.StepMS)

	fmt.Fprintf(rw, "# HELP office_nav_total Navigation counters since start.\n")
	fmt.Fprintf(rw, "# TYPE office_nav_total counter\n")
	fmt.Fprintf(rw, "office_nav_total{office=%q,kind=%q} %d\n", officeID, "spawn", m.Totals.Spawns)
	fmt.Fprintf(rw, "office_nav_total{office=%q,kind=%q} %d\n", officeID, "spawn_fallback", m.Totals.SpawnFallbacks)
	fmt.Fprintf(rw, "office_nav_total{office=%q,kind=%q} %d\n", officeID, "leave", m.Totals.Leaves)
	fmt.Fprintf(rw, "office_nav_total{office=%q,kind=%q} %d\n", officeID, "move", m.Totals.Moves)
	fmt.Fprintf(rw, "office_nav_total{office=%q,kind=%q} %d\n", officeID, "plan_fail", m.Totals.PlanFails)
	fmt.Fprintf(rw, "office_nav_total{office=%q,kind=%q} %d\n", officeID, "stuck_recovery", m.Totals.StuckRecoveries)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
