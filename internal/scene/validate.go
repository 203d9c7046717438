package scene

import (
	"fmt"
	"slices"

	"github.com/danmuck/legosorter/internal/scripts"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one failed check.
type Issue struct {
	Check    string   `json:"check"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("[%s] %s: %s", i.Severity, i.Check, i.Message)
}

// Options adjusts which checks apply.
type Options struct {
	// SkipConveyor drops the conveyor checks for runs that skipped that stage.
	SkipConveyor bool
}

// Part mass bounds in kg; a brick is about 0.002.
const (
	minPartMass = 0.0001
	maxPartMass = 0.1
	minParts    = 5
)

// Validate runs every check and returns the issues found, errors and warnings mixed.
func Validate(s Snapshot, opts Options) []Issue {
	var v validator
	v.collections(s, opts)
	v.physicsWorld(s)
	v.bucket(s)
	if !opts.SkipConveyor {
		v.conveyor(s)
	}
	v.parts(s)
	v.camera(s)
	v.lighting(s)
	v.timeline(s)
	return v.issues
}

// Failed reports whether any issue is an error.
func Failed(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

type validator struct {
	issues []Issue
}

func (v *validator) errorf(check, format string, args ...any) {
	v.issues = append(v.issues, Issue{Check: check, Severity: SeverityError, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) warnf(check, format string, args ...any) {
	v.issues = append(v.issues, Issue{Check: check, Severity: SeverityWarning, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) collections(s Snapshot, opts Options) {
	required := []string{scripts.CollectionBucket, scripts.CollectionConveyor, scripts.CollectionParts}
	for _, name := range required {
		if name == scripts.CollectionConveyor && opts.SkipConveyor {
			continue
		}
		c, ok := s.Collection(name)
		switch {
		case !ok:
			v.errorf("collections", "missing collection '%s'", name)
		case len(c.Objects) == 0:
			v.errorf("collections", "collection '%s' is empty (no objects)", name)
		}
	}
}

func (v *validator) physicsWorld(s Snapshot) {
	w := s.RigidBodyWorld
	if !w.Present {
		v.errorf("physics", "no rigidbody world in scene (physics not initialized)")
		return
	}
	if !w.PointCache {
		v.errorf("physics", "rigidbody world missing point cache")
	}
	if w.Substeps < 5 {
		v.errorf("physics", "rigidbody substeps too low: %d (recommended: 10+)", w.Substeps)
	}
	if w.SolverIterations < 10 {
		v.errorf("physics", "rigidbody solver iterations too low: %d (recommended: 10+)", w.SolverIterations)
	}
}

func (v *validator) bucket(s Snapshot) {
	c, ok := s.Collection(scripts.CollectionBucket)
	if !ok {
		v.errorf("bucket", "bucket collection missing (run %s)", scripts.CreateSortingBucket)
		return
	}
	if !slices.Contains(c.Objects, scripts.ObjectBucket) {
		v.errorf("bucket", "%s not found in bucket collection", scripts.ObjectBucket)
		return
	}
	obj, _ := s.Object(scripts.ObjectBucket)
	switch {
	case obj.RigidBody == nil:
		v.errorf("bucket", "%s missing rigidbody physics", scripts.ObjectBucket)
	case obj.RigidBody.Type != "PASSIVE":
		v.errorf("bucket", "%s should be PASSIVE rigidbody, found: %s", scripts.ObjectBucket, obj.RigidBody.Type)
	}
}

func (v *validator) conveyor(s Snapshot) {
	if _, ok := s.Collection(scripts.CollectionConveyor); !ok {
		v.errorf("conveyor", "conveyor belt collection missing (run %s or set SKIP_CONVEYOR=1)", scripts.CreateConveyorBelt)
		return
	}
	belt, ok := s.Object(scripts.ObjectConveyor)
	if !ok {
		v.errorf("conveyor", "%s object not found in scene", scripts.ObjectConveyor)
		return
	}
	if pos, ok := belt.Position(); !ok {
		v.errorf("conveyor", "conveyor belt position is not finite")
	} else if pos[2] < 0.1 {
		v.errorf("conveyor", "conveyor belt Z position too low: %.3f (should be > 0.1)", pos[2])
	}
	switch {
	case belt.RigidBody == nil:
		v.errorf("conveyor", "conveyor belt missing rigidbody physics")
	case belt.RigidBody.Type != "PASSIVE":
		v.errorf("conveyor", "conveyor belt should be PASSIVE rigidbody, found: %s", belt.RigidBody.Type)
	}
}

func (v *validator) parts(s Snapshot) {
	if _, ok := s.Collection(scripts.CollectionParts); !ok {
		v.errorf("parts", "LEGO parts collection missing (run %s)", scripts.ImportLegoParts)
		return
	}
	parts := s.ObjectsIn(scripts.CollectionParts)
	switch {
	case len(parts) == 0:
		v.errorf("parts", "no LEGO parts in collection (import may have failed)")
	case len(parts) < minParts:
		v.errorf("parts", "only %d LEGO parts imported (expected %d+ parts)", len(parts), minParts)
	}
	if len(parts) > minParts {
		parts = parts[:minParts]
	}
	for _, p := range parts {
		rb := p.RigidBody
		if rb == nil {
			v.errorf("parts", "LEGO part '%s' missing rigidbody physics", p.Name)
			continue
		}
		if rb.Type != "ACTIVE" {
			v.errorf("parts", "LEGO part '%s' should be ACTIVE rigidbody, found: %s", p.Name, rb.Type)
		}
		switch {
		case rb.Mass == nil:
			v.errorf("parts", "LEGO part '%s' has a non-finite mass", p.Name)
		case *rb.Mass < minPartMass || *rb.Mass > maxPartMass:
			v.errorf("parts", "LEGO part '%s' has unrealistic mass: %.6f kg (expected ~0.002 kg)", p.Name, *rb.Mass)
		}
	}
}

func (v *validator) camera(s Snapshot) {
	cam, ok := s.Object(scripts.ObjectCamera)
	switch {
	case !ok:
		v.errorf("camera", "%s not found (run %s)", scripts.ObjectCamera, scripts.SetupLighting)
	case cam.Type != "CAMERA":
		v.errorf("camera", "%s is %s, should be CAMERA", scripts.ObjectCamera, cam.Type)
	}
	if len(s.OfType("CAMERA")) == 0 {
		v.errorf("camera", "no cameras in scene")
	}
}

func (v *validator) lighting(s Snapshot) {
	switch n := len(s.OfType("LIGHT")); {
	case n == 0:
		v.errorf("lighting", "no lights in scene (run %s)", scripts.SetupLighting)
	case n < 2:
		v.warnf("lighting", "only one light in scene (recommend at least 2-3 lights)")
	}
}

func (v *validator) timeline(s Snapshot) {
	if s.FrameStart > 1 {
		v.errorf("timeline", "frame start is %d, should typically be 1", s.FrameStart)
	}
	if s.FrameEnd < 50 {
		v.errorf("timeline", "frame end is %d, should be at least 50 for physics", s.FrameEnd)
	}
}
