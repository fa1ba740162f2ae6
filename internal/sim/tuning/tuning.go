package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz         int `yaml:"tick_rate_hz"`
	FrameLogEveryTicks int `yaml:"frame_log_every_ticks"`
	StatusQueue        int `yaml:"status_queue"`

	Field     Field     `yaml:"field"`
	Graph     Graph     `yaml:"graph"`
	Route     Route     `yaml:"route"`
	Navigator Navigator `yaml:"navigator"`
	Spawn     Spawn     `yaml:"spawn"`
}

type Field struct {
	Clearance          float64 `yaml:"clearance"`
	OwnDeskRadiusScale float64 `yaml:"own_desk_radius_scale"`
	MinAgentSeparation float64 `yaml:"min_agent_separation"`
	PathSampleStep     float64 `yaml:"path_sample_step"`
	MinPathSamples     int     `yaml:"min_path_samples"`
	MaxPathSamples     int     `yaml:"max_path_samples"`
}

type Graph struct {
	GridStep        float64 `yaml:"grid_step"`
	GridMargin      float64 `yaml:"grid_margin"`
	MaxNeighborDist float64 `yaml:"max_neighbor_dist"`
	MinNodes        int     `yaml:"min_nodes"`
}

type Route struct {
	LocalRoamProbability float64    `yaml:"local_roam_probability"`
	LocalRoamRadius      float64    `yaml:"local_roam_radius"`
	ArrivalThreshold     float64    `yaml:"arrival_threshold"`
	IdleReplanSec        [2]float64 `yaml:"idle_replan_sec"`
	ActiveReplanSec      [2]float64 `yaml:"active_replan_sec"`
	InitialDelaySec      [2]float64 `yaml:"initial_delay_sec"`
}

type Navigator struct {
	ChairOffset    [2]float64 `yaml:"chair_offset"`
	RoamSpeed      float64    `yaml:"roam_speed"`
	IdleSpeed      float64    `yaml:"idle_speed"`
	StuckThreshold int        `yaml:"stuck_threshold_ticks"`
}

type Spawn struct {
	RingMin      float64 `yaml:"ring_min"`
	RingMax      float64 `yaml:"ring_max"`
	RingAttempts int     `yaml:"ring_attempts"`
	RoomAttempts int     `yaml:"room_attempts"`
	RoomMargin   float64 `yaml:"room_margin"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:    "1.0",
		TickRateHz:         30,
		FrameLogEveryTicks: 30,
		StatusQueue:        16,
		Field: Field{
			Clearance:          0.45,
			OwnDeskRadiusScale: 0.5,
			MinAgentSeparation: 0.7,
			PathSampleStep:     0.25,
			MinPathSamples:     4,
			MaxPathSamples:     40,
		},
		Graph: Graph{
			GridStep:        2,
			GridMargin:      1,
			MaxNeighborDist: 2.2,
			MinNodes:        6,
		},
		Route: Route{
			LocalRoamProbability: 0.88,
			LocalRoamRadius:      4,
			ArrivalThreshold:     0.15,
			IdleReplanSec:        [2]float64{5.2, 10.4},
			ActiveReplanSec:      [2]float64{14, 26},
			InitialDelaySec:      [2]float64{0.4, 1.6},
		},
		Navigator: Navigator{
			ChairOffset:    [2]float64{0, 0.75},
			RoamSpeed:      1.1,
			IdleSpeed:      1.25,
			StuckThreshold: 90,
		},
		Spawn: Spawn{
			RingMin:      0.9,
			RingMax:      1.8,
			RingAttempts: 40,
			RoomAttempts: 80,
			RoomMargin:   0.8,
		},
	}
}

// Load reads path over Defaults, so keys missing from the file keep their
// default value.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.TickRateHz <= 0 {
		return fmt.Errorf("tick_rate_hz must be > 0")
	}
	if t.Field.PathSampleStep <= 0 {
		return fmt.Errorf("field.path_sample_step must be > 0")
	}
	if t.Field.MinPathSamples < 2 || t.Field.MaxPathSamples < t.Field.MinPathSamples {
		return fmt.Errorf("field path sample bounds invalid: [%d, %d]", t.Field.MinPathSamples, t.Field.MaxPathSamples)
	}
	if t.Graph.GridStep <= 0 {
		return fmt.Errorf("graph.grid_step must be > 0")
	}
	if t.Graph.MaxNeighborDist <= 0 {
		return fmt.Errorf("graph.max_neighbor_dist must be > 0")
	}
	if t.Route.ArrivalThreshold <= 0 {
		return fmt.Errorf("route.arrival_threshold must be > 0")
	}
	if p := t.Route.LocalRoamProbability; p < 0 || p > 1 {
		return fmt.Errorf("route.local_roam_probability out of range: %v", p)
	}
	for name, r := range map[string][2]float64{
		"route.idle_replan_sec":   t.Route.IdleReplanSec,
		"route.active_replan_sec": t.Route.ActiveReplanSec,
		"route.initial_delay_sec": t.Route.InitialDelaySec,
	} {
		if r[0] < 0 || r[1] < r[0] {
			return fmt.Errorf("%s invalid range: %v", name, r)
		}
	}
	if t.Navigator.RoamSpeed <= 0 || t.Navigator.IdleSpeed <= 0 {
		return fmt.Errorf("navigator speeds must be > 0: roam=%v idle=%v", t.Navigator.RoamSpeed, t.Navigator.IdleSpeed)
	}
	if t.Navigator.StuckThreshold <= 0 {
		return fmt.Errorf("navigator.stuck_threshold_ticks must be > 0")
	}
	if t.Spawn.RingMin < 0 || t.Spawn.RingMax < t.Spawn.RingMin {
		return fmt.Errorf("spawn ring invalid: [%v, %v]", t.Spawn.RingMin, t.Spawn.RingMax)
	}
	return nil
}
