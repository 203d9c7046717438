package camera

import (
	"cogentcore.org/core/math32"
)

// Perspective tunes the perspective fit.
type Perspective struct {
	LensMM   float32
	SensorMM float32
	// Padding above 1 leaves a margin around the initial fit.
	Padding   float32
	OffsetDir math32.Vector3
	// TargetFill is the fraction of the frame the projected bounds should cover.
	TargetFill    float32
	MaxDollySteps int
	// CloseFactor scales the final distance for a tighter shot.
	CloseFactor float32
	FallbackFOV float32
}

// DefaultPerspective is a 50mm lens on a diagonal, dollied in to three quarters fill.
func DefaultPerspective() Perspective {
	return Perspective{
		LensMM:        50,
		SensorMM:      36,
		Padding:       1.02,
		OffsetDir:     math32.Vec3(1, -1, 0.6),
		TargetFill:    0.75,
		MaxDollySteps: 8,
		CloseFactor:   0.45,
		FallbackFOV:   0.9,
	}
}

// halfTangents returns tan(fov/2) horizontally and vertically with the sensor on the longer side.
func (p Perspective) halfTangents(aspect float32) (float32, float32) {
	if p.LensMM <= 0 || p.SensorMM <= 0 {
		t := math32.Tan(p.FallbackFOV * 0.5)
		return t, t
	}
	if aspect <= 0 {
		aspect = 16.0 / 9.0
	}
	t := p.SensorMM / (2 * p.LensMM)
	if aspect >= 1 {
		return t, t / aspect
	}
	return t * aspect, t
}

// FOV is the narrower of the horizontal and vertical field of view in radians.
func (p Perspective) FOV(aspect float32) float32 {
	tx, ty := p.halfTangents(aspect)
	fov := 2 * math32.Atan(math32.Min(tx, ty))
	if fov <= 0 || math32.IsNaN(fov) {
		return p.FallbackFOV
	}
	return fov
}

// FitPerspective places the camera along OffsetDir from the bounds center and
// dollies in until the projected corners fill TargetFill of the frame.
func FitPerspective(b Bounds, p Perspective, aspect float32) Placement {
	if b.Empty() {
		return DefaultPlacement(p.LensMM)
	}
	center := b.Center()
	dims := b.Size()
	maxDim := math32.Max(dims.X, math32.Max(dims.Y, dims.Z))

	fov := p.FOV(aspect)
	distance := (maxDim * 0.5) / math32.Max(1e-4, math32.Tan(fov*0.5)) * p.Padding
	if distance < 0.05 {
		distance = 0.05
	}
	dir := normalOr(p.OffsetDir, DefaultPerspective().OffsetDir)

	for step := 0; step < p.MaxDollySteps; step++ {
		eye := center.Add(dir.MulScalar(distance))
		fill, ok := projectedFill(b.Corners, eye, center, p, aspect)
		if !ok || fill >= p.TargetFill {
			break
		}
		ratio := math32.Max(fill, 1e-3) / math32.Max(p.TargetFill, 1e-3)
		distance = math32.Max(distance*math32.Max(ratio, 0.5), 0.05)
	}

	if p.CloseFactor > 0 {
		distance *= p.CloseFactor
	}
	eye := center.Add(dir.MulScalar(distance))
	return Placement{
		Location: eye,
		Target:   center,
		Rotation: LookAtEuler(eye, center),
		Lens:     p.LensMM,
		Distance: distance,
	}
}

// projectedFill projects corners through a pinhole camera at eye looking at target
// and returns the larger of the covered width and height in frame units (1 = full frame).
func projectedFill(corners []math32.Vector3, eye, target math32.Vector3, p Perspective, aspect float32) (float32, bool) {
	forward := target.Sub(eye)
	if forward.Length() < epsilon {
		return 0, false
	}
	forward = forward.Normal()
	right, up := basis(forward)
	tx, ty := p.halfTangents(aspect)

	minX, minY := math32.Infinity, math32.Infinity
	maxX, maxY := -math32.Infinity, -math32.Infinity
	seen := 0
	for _, c := range corners {
		d := c.Sub(eye)
		z := d.Dot(forward)
		if z <= epsilon {
			continue
		}
		x := 0.5 + 0.5*(d.Dot(right)/z)/tx
		y := 0.5 + 0.5*(d.Dot(up)/z)/ty
		minX, maxX = math32.Min(minX, x), math32.Max(maxX, x)
		minY, maxY = math32.Min(minY, y), math32.Max(maxY, y)
		seen++
	}
	if seen == 0 {
		return 0, false
	}
	return math32.Max(maxX-minX, maxY-minY), true
}
