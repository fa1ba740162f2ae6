package office

import (
	"tenacitos.ai/internal/sim/office/feature/navigator"
	"tenacitos.ai/internal/sim/office/feature/route"
	"tenacitos.ai/internal/sim/office/feature/spawn"
	"tenacitos.ai/internal/sim/office/logic/field"
	"tenacitos.ai/internal/sim/office/logic/mathx"
	"tenacitos.ai/internal/sim/office/logic/waypoint"
	"tenacitos.ai/internal/sim/tuning"
)

type Config struct {
	ID         string
	TickRateHz int
	Seed       int64

	// FrameLogEveryTicks controls how often a frame is written to the frame
	// logger. Zero disables frame logging.
	FrameLogEveryTicks int
	StatusQueue        int

	Field     field.Params
	Graph     waypoint.Params
	Route     route.Params
	Navigator navigator.Params
	Spawn     spawn.Params
}

func DefaultConfig() Config {
	return Config{
		ID:                 "office",
		TickRateHz:         30,
		Seed:               1337,
		FrameLogEveryTicks: 30,
		StatusQueue:        16,
		Field:              field.DefaultParams(),
		Graph:              waypoint.DefaultParams(),
		Route:              route.DefaultParams(),
		Navigator:          navigator.DefaultParams(),
		Spawn:              spawn.DefaultParams(),
	}
}

// ConfigFromTuning maps the yaml tunables onto the engine parameter structs.
func ConfigFromTuning(id string, seed int64, t tuning.Tuning) Config {
	return Config{
		ID:                 id,
		TickRateHz:         t.TickRateHz,
		Seed:               seed,
		FrameLogEveryTicks: t.FrameLogEveryTicks,
		StatusQueue:        t.StatusQueue,
		Field: field.Params{
			Clearance:          t.Field.Clearance,
			OwnDeskRadiusScale: t.Field.OwnDeskRadiusScale,
			MinAgentSeparation: t.Field.MinAgentSeparation,
			PathSampleStep:     t.Field.PathSampleStep,
			MinPathSamples:     t.Field.MinPathSamples,
			MaxPathSamples:     t.Field.MaxPathSamples,
		},
		Graph: waypoint.Params{
			GridStep:        t.Graph.GridStep,
			GridMargin:      t.Graph.GridMargin,
			MaxNeighborDist: t.Graph.MaxNeighborDist,
			MinNodes:        t.Graph.MinNodes,
		},
		Route: route.Params{
			LocalRoamProbability: t.Route.LocalRoamProbability,
			LocalRoamRadius:      t.Route.LocalRoamRadius,
			ArrivalThreshold:     t.Route.ArrivalThreshold,
			IdleReplanMin:        t.Route.IdleReplanSec[0],
			IdleReplanMax:        t.Route.IdleReplanSec[1],
			ActiveReplanMin:      t.Route.ActiveReplanSec[0],
			ActiveReplanMax:      t.Route.ActiveReplanSec[1],
			InitialDelayMin:      t.Route.InitialDelaySec[0],
			InitialDelayMax:      t.Route.InitialDelaySec[1],
		},
		Navigator: navigator.Params{
			ChairOffset:    mathx.Vec2{X: t.Navigator.ChairOffset[0], Z: t.Navigator.ChairOffset[1]},
			RoamSpeed:      t.Navigator.RoamSpeed,
			IdleSpeed:      t.Navigator.IdleSpeed,
			StuckThreshold: t.Navigator.StuckThreshold,
		},
		Spawn: spawn.Params{
			RingMin:      t.Spawn.RingMin,
			RingMax:      t.Spawn.RingMax,
			RingAttempts: t.Spawn.RingAttempts,
			RoomAttempts: t.Spawn.RoomAttempts,
			RoomMargin:   t.Spawn.RoomMargin,
		},
	}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.ID == "" {
		c.ID = def.ID
	}
	if c.TickRateHz <= 0 {
		c.TickRateHz = def.TickRateHz
	}
	if c.FrameLogEveryTicks < 0 {
		c.FrameLogEveryTicks = 0
	}
	if c.StatusQueue <= 0 {
		c.StatusQueue = def.StatusQueue
	}
	if c.Field.Clearance == 0 && c.Field.MinAgentSeparation == 0 {
		c.Field = def.Field
	}
	if c.Graph.GridStep <= 0 {
		c.Graph = def.Graph
	}
	if c.Route.IdleReplanMax <= 0 && c.Route.ActiveReplanMax <= 0 {
		c.Route = def.Route
	}
	if c.Route.ArrivalThreshold <= 0 {
		c.Route.ArrivalThreshold = def.Route.ArrivalThreshold
	}
	if c.Navigator.RoamSpeed <= 0 || c.Navigator.IdleSpeed <= 0 {
		c.Navigator.RoamSpeed = def.Navigator.RoamSpeed
		c.Navigator.IdleSpeed = def.Navigator.IdleSpeed
	}
	if c.Navigator.StuckThreshold <= 0 {
		c.Navigator.StuckThreshold = def.Navigator.StuckThreshold
	}
	if c.Spawn.RingAttempts <= 0 && c.Spawn.RoomAttempts <= 0 {
		c.Spawn = def.Spawn
	}
}
