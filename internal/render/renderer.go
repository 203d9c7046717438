package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cogentcore.org/core/math32"
	"github.com/danmuck/legosorter/internal/camera"
	"github.com/danmuck/legosorter/internal/mcp"
	"github.com/danmuck/legosorter/internal/protocol"
	"github.com/danmuck/legosorter/internal/scripts"
	"github.com/rs/zerolog/log"
)

// Settings are the host render settings shared by every shot.
type Settings struct {
	Engine       string
	ResolutionX  int
	ResolutionY  int
	Percentage   int
	ClipStart    float64
	ClipEnd      float64
	LensMM       float64
	OrthoPadding float64
	// BoundsFrame is the frame the scene bounds are probed at; 0 keeps the current frame.
	BoundsFrame int
}

func DefaultSettings() Settings {
	return Settings{
		Engine:       "BLENDER_EEVEE_NEXT",
		ResolutionX:  1920,
		ResolutionY:  1080,
		Percentage:   100,
		ClipStart:    0.01,
		ClipEnd:      2000,
		LensMM:       50,
		OrthoPadding: 1.05,
		BoundsFrame:  1,
	}
}

// Aspect is the frame width over height.
func (s Settings) Aspect() float32 {
	if s.ResolutionX <= 0 || s.ResolutionY <= 0 {
		return 16.0 / 9.0
	}
	return float32(s.ResolutionX) / float32(s.ResolutionY)
}

// Executor runs host code with retries.
type Executor interface {
	ExecuteWithRetries(ctx context.Context, code string, opts mcp.ExecOptions) (mcp.Result, error)
}

// Renderer frames the scene in Go and asks the host to render each shot.
type Renderer struct {
	exec        Executor
	settings    Settings
	perspective camera.Perspective
}

func NewRenderer(exec Executor, settings Settings) *Renderer {
	p := camera.DefaultPerspective()
	if settings.LensMM > 0 {
		p.LensMM = float32(settings.LensMM)
	}
	return &Renderer{exec: exec, settings: settings, perspective: p}
}

type boundsPayload struct {
	Frame   int          `json:"frame"`
	Meshes  int          `json:"meshes"`
	Corners [][3]float64 `json:"corners"`
}

// Bounds probes the world AABB of every mesh at frame.
func (r *Renderer) Bounds(ctx context.Context, frame int) (camera.Bounds, error) {
	code, err := scripts.SceneBounds(frame)
	if err != nil {
		return camera.Bounds{}, err
	}
	res, err := r.exec.ExecuteWithRetries(ctx, code, mcp.ExecOptions{Description: scripts.ProbeSceneBounds})
	if err != nil {
		return camera.Bounds{}, fmt.Errorf("render: probe bounds: %w", err)
	}
	var payload boundsPayload
	if err := protocol.ExtractPayload(res.Output, &payload); err != nil {
		return camera.Bounds{}, fmt.Errorf("render: probe bounds: %w", err)
	}
	log.Debug().
		Int("frame", payload.Frame).
		Int("meshes", payload.Meshes).
		Int("corners", len(payload.Corners)).
		Msg("render.bounds")
	return camera.NewBounds(payload.Corners), nil
}

// Placement frames b for view.
func (r *Renderer) Placement(b camera.Bounds, v View) camera.Placement {
	aspect := r.settings.Aspect()
	if v.Ortho {
		return camera.FitOrthographic(b, v.Dir, aspect, float32(r.settings.OrthoPadding), r.perspective.LensMM)
	}
	p := r.perspective
	p.OffsetDir = v.Dir
	return camera.FitPerspective(b, p, aspect)
}

// Run renders every shot in plan and returns the written paths.
// Bounds are probed once; an empty scene renders nothing.
func (r *Renderer) Run(ctx context.Context, plan Plan) ([]string, error) {
	dir, err := filepath.Abs(plan.Dir)
	if err != nil {
		return nil, fmt.Errorf("render: resolve %s: %w", plan.Dir, err)
	}
	plan.Dir = dir
	if plan.Clear {
		if _, err := ClearRenders(dir); err != nil {
			log.Warn().Err(err).Msg("render.run clear failed")
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("render: create %s: %w", dir, err)
	}

	bounds, err := r.Bounds(ctx, r.settings.BoundsFrame)
	if err != nil {
		return nil, err
	}
	if bounds.Empty() {
		log.Warn().Msg("render.run no meshes found; skipping renders")
		return nil, nil
	}
	log.Info().
		Str("center", fmtVec(bounds.Center())).
		Str("size", fmtVec(bounds.Size())).
		Int("shots", len(plan.Frames)*len(plan.Views)).
		Msg("render.run start")

	var written []string
	var failures []error
	for _, shot := range plan.Shots() {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		path, err := r.renderShot(ctx, bounds, shot)
		if err != nil {
			if mcp.IsUnreachable(err) {
				return written, err
			}
			log.Error().Err(err).Int("frame", shot.Frame).Str("view", shot.View.String()).Msg("render.shot failed")
			failures = append(failures, fmt.Errorf("frame %d %s: %w", shot.Frame, shot.View, err))
			continue
		}
		written = append(written, path)
	}
	log.Info().Int("written", len(written)).Int("failed", len(failures)).Msg("render.run done")
	return written, errors.Join(failures...)
}

func (r *Renderer) renderShot(ctx context.Context, b camera.Bounds, shot Shot) (string, error) {
	placed := r.Placement(b, shot.View)
	code, err := scripts.RenderShot(scripts.Shot{
		Frame:       shot.Frame,
		Output:      shot.Path,
		Location:    vec3(placed.Location),
		Rotation:    vec3(placed.Rotation),
		Lens:        float64(placed.Lens),
		Ortho:       placed.Ortho,
		OrthoScale:  float64(placed.OrthoScale),
		ClipStart:   r.settings.ClipStart,
		ClipEnd:     r.settings.ClipEnd,
		Engine:      r.settings.Engine,
		ResolutionX: r.settings.ResolutionX,
		ResolutionY: r.settings.ResolutionY,
		Percentage:  r.settings.Percentage,
	})
	if err != nil {
		return "", err
	}
	res, err := r.exec.ExecuteWithRetries(ctx, code, mcp.ExecOptions{
		Description: fmt.Sprintf("%s frame %d %s", scripts.ActionRenderShot, shot.Frame, shot.View),
	})
	if err != nil {
		return "", err
	}
	var out struct {
		Output string `json:"output"`
	}
	if err := protocol.ExtractPayload(res.Output, &out); err != nil || out.Output == "" {
		out.Output = shot.Path
	}
	log.Info().Int("frame", shot.Frame).Str("view", shot.View.String()).Str("path", out.Output).Msg("render.shot ok")
	return out.Output, nil
}

func vec3(v math32.Vector3) [3]float64 {
	return [3]float64{float64(v.X), float64(v.Y), float64(v.Z)}
}

func fmtVec(v math32.Vector3) string {
	return fmt.Sprintf("(%.3f, %.3f, %.3f)", v.X, v.Y, v.Z)
}
