// Package camera computes render camera placements that frame a set of world-space bounds.
package camera

import (
	"cogentcore.org/core/math32"
)

const epsilon = 1e-8

// Bounds is the world AABB of the scene plus the corner points it was built from.
type Bounds struct {
	Box     math32.Box3
	Corners []math32.Vector3
}

// NewBounds builds bounds from [x, y, z] corner triples.
func NewBounds(corners [][3]float64) Bounds {
	b := Bounds{Box: math32.B3Empty(), Corners: make([]math32.Vector3, 0, len(corners))}
	for _, c := range corners {
		p := math32.Vec3(float32(c[0]), float32(c[1]), float32(c[2]))
		b.Corners = append(b.Corners, p)
		b.Box.ExpandByPoint(p)
	}
	return b
}

func (b Bounds) Empty() bool {
	return len(b.Corners) == 0 || b.Box.IsEmpty()
}

func (b Bounds) Center() math32.Vector3 {
	return b.Box.Center()
}

func (b Bounds) Size() math32.Vector3 {
	return b.Box.Size()
}

// Placement is a computed camera pose.
type Placement struct {
	Location math32.Vector3
	Target   math32.Vector3
	// Rotation is Blender XYZ Euler radians for a camera looking down its local -Z with +Y up.
	Rotation   math32.Vector3
	Lens       float32
	Ortho      bool
	OrthoScale float32
	Distance   float32
}

// DefaultPlacement is used when there is nothing to frame.
func DefaultPlacement(lens float32) Placement {
	loc := math32.Vec3(0, -3, 2)
	target := math32.Vec3(0, 0, 0)
	return Placement{
		Location: loc,
		Target:   target,
		Rotation: LookAtEuler(loc, target),
		Lens:     lens,
		Distance: loc.Length(),
	}
}

// LookAtEuler returns the XYZ Euler rotation that points a camera at from toward to,
// keeping its +Y axis as close to world +Z as possible.
func LookAtEuler(from, to math32.Vector3) math32.Vector3 {
	forward := to.Sub(from)
	if forward.Length() < epsilon {
		return math32.Vector3{}
	}
	forward = forward.Normal()
	right, up := basis(forward)
	back := forward.MulScalar(-1)

	// Columns of the rotation matrix are right, up, back.
	r00, r10, r20 := right.X, right.Y, right.Z
	r11, r21 := up.Y, up.Z
	r12, r22 := back.Y, back.Z

	sy := -r20
	sy = math32.Clamp(sy, -1, 1)
	y := math32.Asin(sy)
	if math32.Abs(sy) > 0.999999 {
		return math32.Vec3(math32.Atan2(-r12, r11), y, 0)
	}
	return math32.Vec3(math32.Atan2(r21, r22), y, math32.Atan2(r10, r00))
}

// basis returns the camera right and up vectors for a normalized forward direction.
func basis(forward math32.Vector3) (right, up math32.Vector3) {
	worldUp := math32.Vec3(0, 0, 1)
	if math32.Abs(forward.Dot(worldUp)) > 0.99 {
		worldUp = math32.Vec3(0, 1, 0)
	}
	right = forward.Cross(worldUp).Normal()
	up = right.Cross(forward).Normal()
	return right, up
}

func normalOr(v, fallback math32.Vector3) math32.Vector3 {
	if v.Length() < epsilon {
		return fallback.Normal()
	}
	return v.Normal()
}
