// Package scenetest builds scene snapshots the full pipeline would leave behind.
package scenetest

import (
	"fmt"

	"github.com/danmuck/legosorter/internal/scene"
	"github.com/danmuck/legosorter/internal/scripts"
)

func F(v float64) *float64 { return &v }

func Loc(x, y, z float64) [3]*float64 {
	return [3]*float64{F(x), F(y), F(z)}
}

// Healthy is a scene that passes every validation check with n parts.
func Healthy(n int) scene.Snapshot {
	s := scene.Snapshot{
		RigidBodyWorld: scene.World{
			Present:          true,
			PointCache:       true,
			Substeps:         60,
			SolverIterations: 120,
			Gravity:          Loc(0, 0, -9.81),
		},
		FrameStart:   1,
		FrameEnd:     100,
		FrameCurrent: 1,
	}
	add := func(col string, o scene.Object) {
		o.Collections = []string{col}
		s.Objects = append(s.Objects, o)
		for i := range s.Collections {
			if s.Collections[i].Name == col {
				s.Collections[i].Objects = append(s.Collections[i].Objects, o.Name)
				return
			}
		}
		s.Collections = append(s.Collections, scene.Collection{Name: col, Objects: []string{o.Name}})
	}

	add(scripts.CollectionBucket, scene.Object{
		Name: scripts.ObjectBucket, Type: "MESH", Location: Loc(0, 0, 1), Materials: 1,
		RigidBody: &scene.RigidBody{Type: "PASSIVE", Mass: F(50), Friction: F(0.8), Restitution: F(0.3), CollisionShape: "MESH"},
	})
	add(scripts.CollectionConveyor, scene.Object{
		Name: scripts.ObjectConveyor, Type: "MESH", Location: Loc(0.25, 0, 0.95), Materials: 1,
		RigidBody: &scene.RigidBody{Type: "PASSIVE", Mass: F(1), Friction: F(0.3), Restitution: F(0.1), CollisionShape: "MESH"},
	})
	for i := 0; i < n; i++ {
		add(scripts.CollectionParts, scene.Object{
			Name: fmt.Sprintf("part_%02d", i), Type: "MESH", Location: Loc(0.05*float64(i), 0, 1.25), Materials: 1,
			RigidBody: &scene.RigidBody{Type: "ACTIVE", Mass: F(0.002), Friction: F(0.9), Restitution: F(0.4), CollisionShape: "CONVEX_HULL"},
		})
	}
	for _, name := range []string{scripts.LightKey, scripts.LightFill, scripts.LightRim} {
		add(scripts.CollectionLighting, scene.Object{Name: name, Type: "LIGHT", Location: Loc(1, -1, 2)})
	}
	add(scripts.CollectionLighting, scene.Object{Name: scripts.ObjectCamera, Type: "CAMERA", Location: Loc(1, -1.5, 1.6)})

	meshes := 0
	for _, o := range s.Objects {
		if o.Type == "MESH" {
			meshes++
		}
	}
	s.Counts = scene.Counts{
		Collections: len(s.Collections),
		Objects:     len(s.Objects),
		Meshes:      meshes,
		Materials:   4,
	}
	return s
}

// Remove drops object name from the snapshot and its collections.
func Remove(s scene.Snapshot, name string) scene.Snapshot {
	out := s
	out.Objects = nil
	for _, o := range s.Objects {
		if o.Name != name {
			out.Objects = append(out.Objects, o)
		}
	}
	out.Collections = nil
	for _, c := range s.Collections {
		kept := scene.Collection{Name: c.Name, Objects: []string{}}
		for _, n := range c.Objects {
			if n != name {
				kept.Objects = append(kept.Objects, n)
			}
		}
		out.Collections = append(out.Collections, kept)
	}
	return out
}

// Mutate applies fn to object name in place.
func Mutate(s *scene.Snapshot, name string, fn func(*scene.Object)) {
	for i := range s.Objects {
		if s.Objects[i].Name == name {
			fn(&s.Objects[i])
		}
	}
}
