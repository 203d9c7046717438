// Package scene reads host scene state and checks it against what the pipeline builds.
package scene

import (
	"context"
	"fmt"

	"github.com/danmuck/legosorter/internal/mcp"
	"github.com/danmuck/legosorter/internal/protocol"
	"github.com/danmuck/legosorter/internal/scripts"
)

// Snapshot is the decoded scene_state probe payload.
type Snapshot struct {
	Collections    []Collection `json:"collections"`
	Objects        []Object     `json:"objects"`
	RigidBodyWorld World        `json:"rigid_body_world"`
	FrameStart     int          `json:"frame_start"`
	FrameEnd       int          `json:"frame_end"`
	FrameCurrent   int          `json:"frame_current"`
	Counts         Counts       `json:"counts"`
}

type Collection struct {
	Name    string   `json:"name"`
	Objects []string `json:"objects"`
}

// Object location entries are nil when the host reported a non-finite value.
type Object struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Collections []string    `json:"collections"`
	Location    [3]*float64 `json:"location"`
	RigidBody   *RigidBody  `json:"rigid_body"`
	Materials   int         `json:"materials"`
}

type RigidBody struct {
	Type           string   `json:"type"`
	Mass           *float64 `json:"mass"`
	Friction       *float64 `json:"friction"`
	Restitution    *float64 `json:"restitution"`
	CollisionShape string   `json:"collision_shape"`
}

type World struct {
	Present          bool        `json:"present"`
	PointCache       bool        `json:"point_cache"`
	Substeps         int         `json:"substeps"`
	SolverIterations int         `json:"solver_iterations"`
	Gravity          [3]*float64 `json:"gravity"`
}

type Counts struct {
	Collections int `json:"collections"`
	Objects     int `json:"objects"`
	Meshes      int `json:"meshes"`
	Materials   int `json:"materials"`
}

// Executor runs host code with retries.
type Executor interface {
	ExecuteWithRetries(ctx context.Context, code string, opts mcp.ExecOptions) (mcp.Result, error)
}

// Probe fetches a snapshot from the host.
func Probe(ctx context.Context, exec Executor) (Snapshot, error) {
	code, err := scripts.SceneState()
	if err != nil {
		return Snapshot{}, err
	}
	res, err := exec.ExecuteWithRetries(ctx, code, mcp.ExecOptions{Description: scripts.ProbeSceneState})
	if err != nil {
		return Snapshot{}, fmt.Errorf("scene: probe: %w", err)
	}
	var snap Snapshot
	if err := protocol.ExtractPayload(res.Output, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("scene: probe: %w", err)
	}
	return snap, nil
}

// Collection looks up a collection by name.
func (s Snapshot) Collection(name string) (Collection, bool) {
	for _, c := range s.Collections {
		if c.Name == name {
			return c, true
		}
	}
	return Collection{}, false
}

// Object looks up an object by name.
func (s Snapshot) Object(name string) (Object, bool) {
	for _, o := range s.Objects {
		if o.Name == name {
			return o, true
		}
	}
	return Object{}, false
}

// ObjectsIn returns the objects of collection name in collection order.
func (s Snapshot) ObjectsIn(name string) []Object {
	c, ok := s.Collection(name)
	if !ok {
		return nil
	}
	out := make([]Object, 0, len(c.Objects))
	for _, n := range c.Objects {
		if o, ok := s.Object(n); ok {
			out = append(out, o)
		}
	}
	return out
}

// OfType returns every object whose type is t (MESH, LIGHT, CAMERA, ...).
func (s Snapshot) OfType(t string) []Object {
	var out []Object
	for _, o := range s.Objects {
		if o.Type == t {
			out = append(out, o)
		}
	}
	return out
}

// Position returns the location with non-finite axes reported as ok=false.
func (o Object) Position() ([3]float64, bool) {
	var out [3]float64
	for i, v := range o.Location {
		if v == nil {
			return out, false
		}
		out[i] = *v
	}
	return out, true
}

// Statistics summarises the snapshot for printing.
func Statistics(s Snapshot) map[string]any {
	bodies := 0
	for _, o := range s.Objects {
		if o.RigidBody != nil {
			bodies++
		}
	}
	return map[string]any{
		"collections": s.Counts.Collections,
		"objects":     s.Counts.Objects,
		"meshes":      s.Counts.Meshes,
		"materials":   s.Counts.Materials,
		"cameras":     len(s.OfType("CAMERA")),
		"lights":      len(s.OfType("LIGHT")),
		"rigidbodies": bodies,
		"frame_range": fmt.Sprintf("%d-%d", s.FrameStart, s.FrameEnd),
	}
}
