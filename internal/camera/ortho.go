package camera

import (
	"cogentcore.org/core/math32"
)

// ProjectBoundsOntoPlane returns the width and height of bounds with size dims
// seen along viewDir with world +Z up. Axis views are exact; oblique views
// approximate width from the horizontal components.
func ProjectBoundsOntoPlane(dims, viewDir math32.Vector3) (float32, float32) {
	v := normalOr(viewDir, math32.Vec3(0, -1, 0))
	vx, vy, vz := math32.Abs(v.X), math32.Abs(v.Y), math32.Abs(v.Z)
	switch {
	case vx > 0.99:
		return dims.Y, dims.Z
	case vy > 0.99:
		return dims.X, dims.Z
	case vz > 0.99:
		return dims.X, dims.Y
	}
	return dims.X*(1-vx) + dims.Y*(1-vy), dims.Z
}

// OrthoScale is the full orthographic frame width that fits a width x height
// rectangle, padded by pad, into a frame of the given aspect.
func OrthoScale(width, height, aspect, pad float32) float32 {
	if aspect <= 0 {
		aspect = 16.0 / 9.0
	}
	if pad <= 0 {
		pad = 1
	}
	halfW := 0.5 * width * pad
	halfH := 0.5 * height * pad
	var scale float32
	if aspect >= 1 {
		scale = math32.Max(halfW, halfH*aspect)
	} else {
		scale = math32.Max(halfH, halfW/aspect)
	}
	return scale * 2
}

// FitOrthographic places an orthographic camera on viewDir from the bounds center.
func FitOrthographic(b Bounds, viewDir math32.Vector3, aspect, pad, lens float32) Placement {
	if b.Empty() {
		return DefaultPlacement(lens)
	}
	center := b.Center()
	dims := b.Size()
	dir := normalOr(viewDir, math32.Vec3(0, -1, 0))
	distance := math32.Max(dims.Length(), 0.5) * 2
	eye := center.Add(dir.MulScalar(distance))
	width, height := ProjectBoundsOntoPlane(dims, dir)
	return Placement{
		Location:   eye,
		Target:     center,
		Rotation:   LookAtEuler(eye, center),
		Lens:       lens,
		Ortho:      true,
		OrthoScale: OrthoScale(width, height, aspect, pad),
		Distance:   distance,
	}
}
