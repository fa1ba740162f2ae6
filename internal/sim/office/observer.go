package office

import (
	"strings"

	"tenacitos.ai/internal/observerproto"
)

// ObserverJoinRequest registers a read-only observer session that receives
// one FRAME per tick on TickOut.
//
// All observer state is maintained by the loop goroutine.
type ObserverJoinRequest struct {
	SessionID string
	TickOut   chan []byte

	AgentIDs   []string
	Events     bool
	EveryTicks int
}

// ObserverSubscribeRequest updates an existing observer session subscription settings.
type ObserverSubscribeRequest struct {
	SessionID string

	AgentIDs   []string
	Events     bool
	EveryTicks int
}

type observerClient struct {
	id      string
	tickOut chan []byte
	cfg     observerCfg
}

type observerCfg struct {
	agents     map[string]struct{}
	events     bool
	everyTicks uint64
}

func newObserverCfg(ids []string, events bool, every int) observerCfg {
	cfg := observerCfg{events: events, everyTicks: uint64(clampInt(every, 1, 600, 1))}
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if cfg.agents == nil {
			cfg.agents = map[string]struct{}{}
		}
		cfg.agents[id] = struct{}{}
	}
	return cfg
}

func (o *Office) handleObserverJoin(req ObserverJoinRequest) {
	if req.SessionID == "" || req.TickOut == nil {
		return
	}
	// Replace existing session id if any.
	if old := o.observers[req.SessionID]; old != nil {
		close(old.tickOut)
	}
	o.observers[req.SessionID] = &observerClient{
		id:      req.SessionID,
		tickOut: req.TickOut,
		cfg:     newObserverCfg(req.AgentIDs, req.Events, req.EveryTicks),
	}
}

func (o *Office) handleObserverSubscribe(req ObserverSubscribeRequest) {
	c := o.observers[req.SessionID]
	if c == nil {
		return
	}
	c.cfg = newObserverCfg(req.AgentIDs, req.Events, req.EveryTicks)
}

func (o *Office) handleObserverLeave(sessionID string) {
	if sessionID == "" {
		return
	}
	c := o.observers[sessionID]
	if c == nil {
		return
	}
	delete(o.observers, sessionID)
	close(c.tickOut)
}

func (o *Office) stepObservers(frame observerproto.FrameMsg) {
	if len(o.observers) == 0 {
		return
	}

	// Most observers want the unfiltered frame; encode each variant once.
	var full, bare []byte
	for _, c := range o.observers {
		if frame.Tick%c.cfg.everyTicks != 0 {
			continue
		}
		if c.cfg.agents != nil {
			sendLatest(c.tickOut, marshalFrame(filterFrame(frame, c.cfg)))
			continue
		}
		if c.cfg.events {
			if full == nil {
				full = marshalFrame(frame)
			}
			sendLatest(c.tickOut, full)
			continue
		}
		if bare == nil {
			f := frame
			f.Events = nil
			bare = marshalFrame(f)
		}
		sendLatest(c.tickOut, bare)
	}
}

func filterFrame(frame observerproto.FrameMsg, cfg observerCfg) observerproto.FrameMsg {
	out := frame
	out.Agents = make([]observerproto.AgentView, 0, len(cfg.agents))
	for _, a := range frame.Agents {
		if _, ok := cfg.agents[a.ID]; ok {
			out.Agents = append(out.Agents, a)
		}
	}
	out.Events = nil
	if cfg.events {
		for _, e := range frame.Events {
			if _, ok := cfg.agents[e.AgentID]; ok {
				out.Events = append(out.Events, e)
			}
		}
	}
	return out
}

func clampInt(v, min, max, def int) int {
	if v <= 0 {
		return def
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
