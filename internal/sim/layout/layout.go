// Package layout loads the static office floor plan (bounds, furniture and
// desk positions) from configs/office.yaml.
package layout

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"tenacitos.ai/internal/sim/office/logic/field"
	"tenacitos.ai/internal/sim/office/logic/mathx"
)

//go:embed office.schema.json
var officeSchema []byte

type Layout struct {
	ID        string
	Bounds    field.Bounds
	Obstacles []field.Obstacle
	// Desks maps agent id to its static desk position.
	Desks  map[string]mathx.Vec2
	Digest string
}

type fileBounds struct {
	MinX float64 `yaml:"min_x"`
	MaxX float64 `yaml:"max_x"`
	MinZ float64 `yaml:"min_z"`
	MaxZ float64 `yaml:"max_z"`
}

type fileObstacle struct {
	ID     string  `yaml:"id"`
	X      float64 `yaml:"x"`
	Z      float64 `yaml:"z"`
	Radius float64 `yaml:"radius"`
	Owner  string  `yaml:"owner"`
}

type fileDesk struct {
	Agent string  `yaml:"agent"`
	X     float64 `yaml:"x"`
	Z     float64 `yaml:"z"`
}

type file struct {
	ID        string         `yaml:"id"`
	Bounds    fileBounds     `yaml:"bounds"`
	Obstacles []fileObstacle `yaml:"obstacles"`
	Desks     []fileDesk     `yaml:"desks"`
}

func Load(path string) (*Layout, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	l, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("office.yaml: %w", err)
	}
	return l, nil
}

func Parse(raw []byte) (*Layout, error) {
	if err := validateSchema(raw); err != nil {
		return nil, err
	}
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, err
	}

	b := field.Bounds{MinX: f.Bounds.MinX, MaxX: f.Bounds.MaxX, MinZ: f.Bounds.MinZ, MaxZ: f.Bounds.MaxZ}
	if b.Width() <= 0 || b.Depth() <= 0 {
		return nil, fmt.Errorf("empty bounds: %+v", b)
	}

	l := &Layout{
		ID:     f.ID,
		Bounds: b,
		Desks:  map[string]mathx.Vec2{},
		Digest: sha256Hex(raw),
	}
	seen := map[string]bool{}
	for _, o := range f.Obstacles {
		if seen[o.ID] {
			return nil, fmt.Errorf("duplicate obstacle id %q", o.ID)
		}
		seen[o.ID] = true
		l.Obstacles = append(l.Obstacles, field.Obstacle{
			ID:     o.ID,
			Pos:    mathx.Vec2{X: o.X, Z: o.Z},
			Radius: o.Radius,
			Owner:  o.Owner,
		})
	}
	for _, d := range f.Desks {
		if _, dup := l.Desks[d.Agent]; dup {
			return nil, fmt.Errorf("duplicate desk for agent %q", d.Agent)
		}
		l.Desks[d.Agent] = mathx.Vec2{X: d.X, Z: d.Z}
	}
	return l, nil
}

// Field builds the obstacle field for this floor plan.
func (l *Layout) Field(p field.Params) *field.Field {
	return field.New(l.Bounds, l.Obstacles, p)
}

// Desk returns the desk position for agentID. Agents without a desk entry
// share the centre of the floor.
func (l *Layout) Desk(agentID string) (mathx.Vec2, bool) {
	if d, ok := l.Desks[agentID]; ok {
		return d, true
	}
	return l.Bounds.Center(), false
}

// AgentIDs lists agents with a desk, sorted.
func (l *Layout) AgentIDs() []string {
	ids := make([]string, 0, len(l.Desks))
	for id := range l.Desks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func validateSchema(raw []byte) error {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return err
	}
	js, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(js))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("office.schema.json", bytes.NewReader(officeSchema)); err != nil {
		return err
	}
	s, err := c.Compile("office.schema.json")
	if err != nil {
		return err
	}
	return s.Validate(v)
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
