package scripts

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"text/template"

	"github.com/danmuck/legosorter/internal/protocol"
)

// Stage script names, in default pipeline order.
const (
	ClearScene          = "clear_scene"
	CreateSortingBucket = "create_sorting_bucket"
	CreateConveyorBelt  = "create_conveyor_belt"
	ImportLegoParts     = "import_lego_parts"
	AnimateLegoPhysics  = "animate_lego_physics"
	SetupLighting       = "setup_lighting"
)

// Probe and action script names.
const (
	ProbeSceneBounds       = "scene_bounds"
	ProbeSceneState        = "scene_state"
	ProbePartTracks        = "part_tracks"
	ProbeRaycastDiagnostic = "raycast_diagnostic"
	ProbeInspectParts      = "inspect_parts"
	ActionRenderShot       = "render_shot"
)

//go:embed templates/*.py.tmpl
var templateFS embed.FS

var templates = template.Must(
	template.New("scripts").
		Funcs(template.FuncMap{
			"py":      pyLiteral,
			"payload": func() string { return protocol.PayloadMarker },
		}).
		ParseFS(templateFS, "templates/*.py.tmpl"),
)

var stageNames = map[string]struct{}{
	ClearScene:          {},
	CreateSortingBucket: {},
	CreateConveyorBelt:  {},
	ImportLegoParts:     {},
	AnimateLegoPhysics:  {},
	SetupLighting:       {},
}

// Names lists every embedded script name.
func Names() []string {
	tmpls := templates.Templates()
	out := make([]string, 0, len(tmpls))
	for _, t := range tmpls {
		name := strings.TrimSuffix(t.Name(), ".py.tmpl")
		if name == t.Name() {
			continue
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// IsStage reports whether name is a scene-building stage script.
func IsStage(name string) bool {
	_, ok := stageNames[name]
	return ok
}

// Stage renders a scene-building script against p.
func Stage(name string, p Params) (string, error) {
	if !IsStage(name) {
		return "", fmt.Errorf("scripts: unknown stage %q", name)
	}
	return render(name, stageData{Params: p, Names: defaultNames})
}

// SceneBounds probes world-space corners of every mesh at frame (0 keeps the current frame).
func SceneBounds(frame int) (string, error) {
	return render(ProbeSceneBounds, probeData{Names: defaultNames, Frame: frame})
}

// SceneState probes collections, objects, rigid bodies and the timeline.
func SceneState() (string, error) {
	return render(ProbeSceneState, probeData{Names: defaultNames})
}

// PartTracks samples part transforms at each frame.
func PartTracks(frames []int) (string, error) {
	if len(frames) == 0 {
		return "", fmt.Errorf("scripts: part tracks need at least one frame")
	}
	return render(ProbePartTracks, probeData{Names: defaultNames, Frames: frames})
}

// RaycastDiagnostic casts a ray down from the top of every part at frame.
func RaycastDiagnostic(frame int) (string, error) {
	return render(ProbeRaycastDiagnostic, probeData{Names: defaultNames, Frame: frame})
}

// InspectParts reports per-part physics state at each frame.
func InspectParts(frames []int) (string, error) {
	if len(frames) == 0 {
		return "", fmt.Errorf("scripts: inspect needs at least one frame")
	}
	return render(ProbeInspectParts, probeData{Names: defaultNames, Frames: frames})
}

// Shot is one camera placement plus render settings.
type Shot struct {
	Frame       int
	Output      string
	Location    [3]float64
	Rotation    [3]float64
	Lens        float64
	Ortho       bool
	OrthoScale  float64
	ClipStart   float64
	ClipEnd     float64
	Engine      string
	ResolutionX int
	ResolutionY int
	Percentage  int
}

// RenderShot places the camera and writes one still.
func RenderShot(shot Shot) (string, error) {
	if strings.TrimSpace(shot.Output) == "" {
		return "", fmt.Errorf("scripts: render shot needs an output path")
	}
	return render(ActionRenderShot, shotData{Names: defaultNames, Shot: shot})
}

// names bundles the fixed object and collection names for templates.
type names struct {
	Bucket, Conveyor, Parts, Lighting              string
	BucketObject, Collider, ConveyorObject, Ground string
	Camera, KeyLight, FillLight, RimLight          string
}

var defaultNames = names{
	Bucket:         CollectionBucket,
	Conveyor:       CollectionConveyor,
	Parts:          CollectionParts,
	Lighting:       CollectionLighting,
	BucketObject:   ObjectBucket,
	Collider:       ObjectBucketCollider,
	ConveyorObject: ObjectConveyor,
	Ground:         ObjectGround,
	Camera:         ObjectCamera,
	KeyLight:       LightKey,
	FillLight:      LightFill,
	RimLight:       LightRim,
}

type stageData struct {
	Params
	Names names
}

type probeData struct {
	Names  names
	Frame  int
	Frames []int
}

type shotData struct {
	Names names
	Shot  Shot
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name+".py.tmpl", data); err != nil {
		return "", fmt.Errorf("scripts: render %s: %w", name, err)
	}
	return buf.String(), nil
}

// pyLiteral renders v as a Python literal.
func pyLiteral(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "None", nil
	case bool:
		if x {
			return "True", nil
		}
		return "False", nil
	case string:
		raw, err := json.Marshal(x)
		return string(raw), err
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		return pyFloat(x), nil
	case Vec3:
		return pyTuple(x[:]), nil
	case [3]float64:
		return pyTuple(x[:]), nil
	case []float64:
		parts := make([]string, len(x))
		for i, f := range x {
			parts[i] = pyFloat(f)
		}
		return "[" + strings.Join(parts, ", ") + "]", nil
	case []int:
		parts := make([]string, len(x))
		for i, n := range x {
			parts[i] = strconv.Itoa(n)
		}
		return "[" + strings.Join(parts, ", ") + "]", nil
	case []string:
		parts := make([]string, len(x))
		for i, s := range x {
			raw, err := json.Marshal(s)
			if err != nil {
				return "", err
			}
			parts[i] = string(raw)
		}
		return "[" + strings.Join(parts, ", ") + "]", nil
	default:
		return "", fmt.Errorf("scripts: no python literal for %T", v)
	}
}

func pyFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return `float("nan")`
	case math.IsInf(f, 1):
		return `float("inf")`
	case math.IsInf(f, -1):
		return `float("-inf")`
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

func pyTuple(v []float64) string {
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = pyFloat(f)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
