// Package render plans snapshot renders and drives them through the host.
package render

import (
	"fmt"
	"strings"

	"cogentcore.org/core/math32"
)

// View is a named camera direction. Dir points from the target toward the camera.
type View struct {
	Tag   string
	Dir   math32.Vector3
	Ortho bool
}

var perspectiveViews = []View{
	{Tag: "diag", Dir: math32.Vec3(1, -1, 0.6)},
	{Tag: "front", Dir: math32.Vec3(0, -1, 0.4)},
	{Tag: "side", Dir: math32.Vec3(1, 0, 0.8)},
	{Tag: "diag_left", Dir: math32.Vec3(-1, -0.6, 0.7)},
}

// Right and left are named for the viewer facing the front view.
var orthoViews = []View{
	{Tag: "front", Dir: math32.Vec3(0, -1, 0), Ortho: true},
	{Tag: "back", Dir: math32.Vec3(0, 1, 0), Ortho: true},
	{Tag: "right", Dir: math32.Vec3(-1, 0, 0), Ortho: true},
	{Tag: "left", Dir: math32.Vec3(1, 0, 0), Ortho: true},
	{Tag: "top", Dir: math32.Vec3(0, 0, 1), Ortho: true},
	{Tag: "bottom", Dir: math32.Vec3(0, 0, -1), Ortho: true},
	{Tag: "iso_ne", Dir: math32.Vec3(1, -1, 1), Ortho: true},
	{Tag: "iso_nw", Dir: math32.Vec3(-1, -1, 1), Ortho: true},
	{Tag: "iso_se", Dir: math32.Vec3(1, 1, 1), Ortho: true},
	{Tag: "iso_sw", Dir: math32.Vec3(-1, 1, 1), Ortho: true},
}

func PerspectiveViews() []View {
	return append([]View(nil), perspectiveViews...)
}

func OrthoViews() []View {
	return append([]View(nil), orthoViews...)
}

// FileName is the PNG name for v inside a frame folder.
func (v View) FileName() string {
	if v.Ortho {
		return "snapshot_ortho_" + v.Tag + ".png"
	}
	return "snapshot_" + v.Tag + ".png"
}

func (v View) String() string {
	if v.Ortho {
		return "ortho:" + v.Tag
	}
	return "persp:" + v.Tag
}

// ResolveViews looks up ortho and perspective tags, ortho first.
func ResolveViews(ortho, perspective []string) ([]View, error) {
	out := make([]View, 0, len(ortho)+len(perspective))
	for _, tag := range ortho {
		v, err := lookup(orthoViews, tag)
		if err != nil {
			return nil, fmt.Errorf("render: ortho view: %w", err)
		}
		out = append(out, v)
	}
	for _, tag := range perspective {
		v, err := lookup(perspectiveViews, tag)
		if err != nil {
			return nil, fmt.Errorf("render: perspective view: %w", err)
		}
		out = append(out, v)
	}
	return out, nil
}

func lookup(views []View, tag string) (View, error) {
	tag = strings.ToLower(strings.TrimSpace(tag))
	for _, v := range views {
		if v.Tag == tag {
			return v, nil
		}
	}
	known := make([]string, 0, len(views))
	for _, v := range views {
		known = append(known, v.Tag)
	}
	return View{}, fmt.Errorf("unknown view %q (known: %s)", tag, strings.Join(known, ", "))
}
