package office

import (
	"context"
	"encoding/json"
	"time"

	"tenacitos.ai/internal/observerproto"
	"tenacitos.ai/internal/sim/office/feature/navigator"
)

func (o *Office) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(o.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Each status update is a full list, so only the newest one matters.
	var pending *StatusUpdate

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-o.stop:
			return nil
		case u := <-o.statusIn:
			pending = &u
		case req := <-o.observerJoin:
			o.handleObserverJoin(req)
		case req := <-o.observerSub:
			o.handleObserverSubscribe(req)
		case id := <-o.observerLeave:
			o.handleObserverLeave(id)
		case <-ticker.C:
			if pending != nil {
				o.ApplyStatuses(pending.Agents)
				pending = nil
			}
			o.StepOnce()
		}
	}
}

func (o *Office) Stop() { close(o.stop) }

// StepOnce advances every navigator by one fixed-length frame in update
// order and returns the resulting frame. Each navigator publishes its new
// position before the next one runs, so later agents see earlier agents'
// positions from this frame.
func (o *Office) StepOnce() observerproto.FrameMsg {
	start := time.Now()
	now := o.tick.Load()

	env := &navigator.Env{
		Field:     o.field,
		Planner:   o.planner,
		Positions: o.positions,
		Dt:        1 / float64(o.cfg.TickRateHz),
	}
	for _, n := range o.navs {
		res := n.Tick(env)
		if res.Moved {
			o.totals.Moves++
		}
		if res.PlanFailed {
			o.totals.PlanFails++
			o.emit(now, n.ID, EventPlanFail, "", n.State.Pos)
		}
		if res.StuckRecovered {
			o.totals.StuckRecoveries++
			o.emit(now, n.ID, EventStuckRecovery, "", n.State.Pos)
		}
	}

	frame := observerproto.FrameMsg{
		Type:            "FRAME",
		ProtocolVersion: observerproto.Version,
		Tick:            now,
		Agents:          o.Agents(),
		Events:          o.events,
	}
	o.events = nil

	if o.frameLogger != nil && o.cfg.FrameLogEveryTicks > 0 && now%uint64(o.cfg.FrameLogEveryTicks) == 0 {
		_ = o.frameLogger.WriteFrame(FrameLogEntry{OfficeID: o.cfg.ID, Tick: now, Agents: frame.Agents})
	}
	o.stepObservers(frame)

	o.lastFrame.Store(&frame)
	o.tick.Store(now + 1)
	o.publishMetrics(float64(time.Since(start).Microseconds()) / 1000)
	return frame
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}

func marshalFrame(f observerproto.FrameMsg) []byte {
	b, err := json.Marshal(f)
	if err != nil {
		return nil
	}
	return b
}
