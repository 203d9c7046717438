package scenario

import (
	"math"
	"slices"

	"github.com/danmuck/legosorter/internal/scene"
	"github.com/danmuck/legosorter/internal/scripts"
)

// Tracks is the decoded part_tracks probe payload.
type Tracks struct {
	Frames     []int   `json:"frames"`
	Collection bool    `json:"collection"`
	Parts      []Track `json:"parts"`
}

type Track struct {
	Name    string   `json:"name"`
	Samples []Sample `json:"samples"`
}

// Sample location entries are nil when the host reported a non-finite value.
type Sample struct {
	Frame    int         `json:"frame"`
	Location [3]*float64 `json:"location"`
	Rotation [3]*float64 `json:"rotation"`
	Finite   bool        `json:"finite"`
}

func (s Sample) position() ([3]float64, bool) {
	var out [3]float64
	if !s.Finite {
		return out, false
	}
	for i, v := range s.Location {
		if v == nil {
			return out, false
		}
		out[i] = *v
	}
	return out, true
}

// Measurements maps metric names to values; a missing key means the metric had no data.
type Measurements map[string]float64

// Metric names.
const (
	MetricFinalZMax           = "final_z_max"
	MetricFinalZMin           = "final_z_min"
	MetricFinalXMin           = "final_x_min"
	MetricFinalSpeedMax       = "final_speed_max"
	MetricMaxSpeed            = "max_speed"
	MetricMaxAbsPosition      = "max_abs_position"
	MetricNonFiniteSamples    = "non_finite_samples"
	MetricMinSpacing          = "min_spacing"
	MetricStalledParts        = "stalled_parts"
	MetricMaxBackslide        = "max_backslide"
	MetricNetXMin             = "net_x_min"
	MetricPartsInBucket       = "parts_in_bucket"
	MetricPartsNotThroughHole = "parts_not_through_hole"

	MetricPartCount            = "part_count"
	MetricBucketMaterials      = "bucket_materials"
	MetricConveyorMaterials    = "conveyor_materials"
	MetricPartsWithoutMaterial = "parts_without_material"
	MetricBucketCollection     = "bucket_collection"
	MetricConveyorCollection   = "conveyor_collection"
	MetricPartsCollection      = "parts_collection"
	MetricMisplacedObjects     = "misplaced_objects"
	MetricCameraExists         = "camera_exists"
	MetricCameraDistance       = "camera_distance"
	MetricLightCount           = "light_count"
	MetricKeyLight             = "key_light"
	MetricFillLight            = "fill_light"
	MetricRimLight             = "rim_light"
)

// stallDistance is the displacement below which a part counts as not moving.
const stallDistance = 0.01

var trackMetrics = map[string]bool{
	MetricFinalZMax:           true,
	MetricFinalZMin:           true,
	MetricFinalXMin:           true,
	MetricFinalSpeedMax:       true,
	MetricMaxSpeed:            true,
	MetricMaxAbsPosition:      true,
	MetricNonFiniteSamples:    true,
	MetricMinSpacing:          true,
	MetricStalledParts:        true,
	MetricMaxBackslide:        true,
	MetricNetXMin:             true,
	MetricPartsInBucket:       true,
	MetricPartsNotThroughHole: true,
}

var metricNames = func() map[string]struct{} {
	out := map[string]struct{}{}
	for m := range trackMetrics {
		out[m] = struct{}{}
	}
	for _, m := range []string{
		MetricPartCount, MetricBucketMaterials, MetricConveyorMaterials, MetricPartsWithoutMaterial,
		MetricBucketCollection, MetricConveyorCollection, MetricPartsCollection, MetricMisplacedObjects,
		MetricCameraExists, MetricCameraDistance, MetricLightCount, MetricKeyLight, MetricFillLight,
		MetricRimLight,
	} {
		out[m] = struct{}{}
	}
	return out
}()

// Measure computes every metric available from tracks (may be nil) and the snapshot.
// Velocities are finite differences in units per frame.
func Measure(tracks *Tracks, snap scene.Snapshot, params scripts.Params) Measurements {
	m := Measurements{}
	measureScene(m, snap)
	if tracks != nil {
		m[MetricPartCount] = float64(len(tracks.Parts))
		measureTracks(m, tracks, bucketOf(snap, params.Bucket))
	}
	return m
}

func flag(ok bool) float64 {
	if ok {
		return 1
	}
	return 0
}

func measureScene(m Measurements, snap scene.Snapshot) {
	parts := snap.ObjectsIn(scripts.CollectionParts)
	m[MetricPartCount] = float64(len(parts))

	if o, ok := snap.Object(scripts.ObjectBucket); ok {
		m[MetricBucketMaterials] = float64(o.Materials)
	} else {
		m[MetricBucketMaterials] = 0
	}
	if o, ok := snap.Object(scripts.ObjectConveyor); ok {
		m[MetricConveyorMaterials] = float64(o.Materials)
	} else {
		m[MetricConveyorMaterials] = 0
	}
	bare := 0
	for _, p := range parts {
		if p.Materials == 0 {
			bare++
		}
	}
	m[MetricPartsWithoutMaterial] = float64(bare)

	_, hasBucket := snap.Collection(scripts.CollectionBucket)
	_, hasConveyor := snap.Collection(scripts.CollectionConveyor)
	_, hasParts := snap.Collection(scripts.CollectionParts)
	m[MetricBucketCollection] = flag(hasBucket)
	m[MetricConveyorCollection] = flag(hasConveyor)
	m[MetricPartsCollection] = flag(hasParts)
	m[MetricMisplacedObjects] = float64(misplaced(snap))

	cam, ok := snap.Object(scripts.ObjectCamera)
	m[MetricCameraExists] = flag(ok && cam.Type == "CAMERA")
	if pos, finite := cam.Position(); ok && finite {
		m[MetricCameraDistance] = math.Sqrt(pos[0]*pos[0] + pos[1]*pos[1] + pos[2]*pos[2])
	}

	lights := snap.OfType("LIGHT")
	m[MetricLightCount] = float64(len(lights))
	has := func(name string) float64 {
		o, ok := snap.Object(name)
		return flag(ok && o.Type == "LIGHT")
	}
	m[MetricKeyLight] = has(scripts.LightKey)
	m[MetricFillLight] = has(scripts.LightFill)
	m[MetricRimLight] = has(scripts.LightRim)
}

// misplaced counts objects of the three scene collections that also sit elsewhere, plus the
// bucket and belt when they are missing from their own collection.
func misplaced(snap scene.Snapshot) int {
	bad := map[string]struct{}{}
	for _, col := range []string{scripts.CollectionBucket, scripts.CollectionConveyor, scripts.CollectionParts} {
		for _, o := range snap.ObjectsIn(col) {
			if len(o.Collections) != 1 || o.Collections[0] != col {
				bad[o.Name] = struct{}{}
			}
		}
	}
	home := map[string]string{
		scripts.ObjectBucket:   scripts.CollectionBucket,
		scripts.ObjectConveyor: scripts.CollectionConveyor,
	}
	for name, col := range home {
		if o, ok := snap.Object(name); ok && !slices.Contains(o.Collections, col) {
			bad[name] = struct{}{}
		}
	}
	return len(bad)
}

type bucketShape struct {
	center [3]float64
	radius float64
	height float64
}

func bucketOf(snap scene.Snapshot, p scripts.BucketParams) bucketShape {
	b := bucketShape{radius: p.Radius, height: p.Height}
	if o, ok := snap.Object(scripts.ObjectBucket); ok {
		if pos, finite := o.Position(); finite {
			b.center = pos
		}
	}
	return b
}

func (b bucketShape) floor() float64 { return b.center[2] - b.height/2 }

func (b bucketShape) contains(p [3]float64) bool {
	dx, dy := p[0]-b.center[0], p[1]-b.center[1]
	if math.Hypot(dx, dy) > b.radius {
		return false
	}
	return p[2] >= b.floor() && p[2] <= b.center[2]+b.height/2
}

func dist(a, b [3]float64) float64 {
	dx, dy, dz := a[0]-b[0], a[1]-b[1], a[2]-b[2]
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

func measureTracks(m Measurements, tracks *Tracks, bucket bucketShape) {
	var (
		nonFinite                int
		maxSpeed, finalSpeedMax  float64
		maxAbs, maxBackslide     float64
		stalled, inBucket, above int
		finals                   [][3]float64
	)
	zMax, zMin, xMin, netXMin := math.Inf(-1), math.Inf(1), math.Inf(1), math.Inf(1)

	for _, tr := range tracks.Parts {
		var (
			pts    [][3]float64
			frames []int
		)
		for _, s := range tr.Samples {
			p, ok := s.position()
			if !ok {
				nonFinite++
				continue
			}
			pts = append(pts, p)
			frames = append(frames, s.Frame)
			maxAbs = math.Max(maxAbs, dist(p, [3]float64{}))
		}
		if len(pts) == 0 {
			continue
		}
		for i := 1; i < len(pts); i++ {
			df := float64(frames[i] - frames[i-1])
			if df <= 0 {
				df = 1
			}
			speed := dist(pts[i], pts[i-1]) / df
			maxSpeed = math.Max(maxSpeed, speed)
			if i == len(pts)-1 {
				finalSpeedMax = math.Max(finalSpeedMax, speed)
			}
			maxBackslide = math.Max(maxBackslide, pts[i-1][0]-pts[i][0])
		}
		first, last := pts[0], pts[len(pts)-1]
		finals = append(finals, last)
		zMax = math.Max(zMax, last[2])
		zMin = math.Min(zMin, last[2])
		xMin = math.Min(xMin, last[0])
		netXMin = math.Min(netXMin, last[0]-first[0])
		if dist(first, last) < stallDistance {
			stalled++
		}
		if bucket.contains(last) {
			inBucket++
		}
		if last[2] >= bucket.floor() {
			above++
		}
	}

	m[MetricNonFiniteSamples] = float64(nonFinite)
	if len(finals) == 0 {
		return
	}
	m[MetricFinalZMax] = zMax
	m[MetricFinalZMin] = zMin
	m[MetricFinalXMin] = xMin
	m[MetricNetXMin] = netXMin
	m[MetricMaxSpeed] = maxSpeed
	m[MetricFinalSpeedMax] = finalSpeedMax
	m[MetricMaxAbsPosition] = maxAbs
	m[MetricMaxBackslide] = maxBackslide
	m[MetricStalledParts] = float64(stalled)
	m[MetricPartsInBucket] = float64(inBucket)
	m[MetricPartsNotThroughHole] = float64(above)

	if len(finals) > 1 {
		spacing := math.Inf(1)
		for i := range finals {
			for j := i + 1; j < len(finals); j++ {
				spacing = math.Min(spacing, dist(finals[i], finals[j]))
			}
		}
		m[MetricMinSpacing] = spacing
	}
}
