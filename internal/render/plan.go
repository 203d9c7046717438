package render

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// DefaultFrames are the timeline frames captured when none are configured.
var DefaultFrames = []int{1, 5, 10, 20}

// Plan is the set of stills one render run produces.
type Plan struct {
	Dir    string
	Frames []int
	Views  []View
	// Clear removes earlier PNGs under Dir before rendering.
	Clear bool
}

// Shot is one still in a plan.
type Shot struct {
	Frame int
	View  View
	Path  string
}

// NewPlan validates frames and views; empty frames use DefaultFrames and
// empty views use every ortho view.
func NewPlan(dir string, frames []int, views []View) (Plan, error) {
	if strings.TrimSpace(dir) == "" {
		return Plan{}, errors.New("render: plan needs a directory")
	}
	if len(frames) == 0 {
		frames = DefaultFrames
	}
	for _, f := range frames {
		if f < 1 {
			return Plan{}, fmt.Errorf("render: frame must be positive, got %d", f)
		}
	}
	if len(views) == 0 {
		views = OrthoViews()
	}
	return Plan{
		Dir:    dir,
		Frames: append([]int(nil), frames...),
		Views:  append([]View(nil), views...),
	}, nil
}

// FrameDir is the per-frame folder, frame_05 style.
func FrameDir(dir string, frame int) string {
	return filepath.Join(dir, fmt.Sprintf("frame_%02d", frame))
}

// ShotPath is where the still for frame and view is written.
func ShotPath(dir string, frame int, v View) string {
	return filepath.Join(FrameDir(dir, frame), v.FileName())
}

// Shots lists stills frame by frame in view order.
func (p Plan) Shots() []Shot {
	out := make([]Shot, 0, len(p.Frames)*len(p.Views))
	for _, f := range p.Frames {
		for _, v := range p.Views {
			out = append(out, Shot{Frame: f, View: v, Path: ShotPath(p.Dir, f, v)})
		}
	}
	return out
}

// ClearRenders deletes *.png files under dir, recursing into subfolders.
// Other files are left alone; individual failures are logged and skipped.
func ClearRenders(dir string) (int, error) {
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	removed := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("render.clear walk failed")
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".png") {
			return nil
		}
		if err := os.Remove(path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("render.clear remove failed")
			return nil
		}
		removed++
		log.Debug().Str("path", path).Msg("render.clear removed")
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("render: clear %s: %w", dir, err)
	}
	log.Info().Str("dir", dir).Int("removed", removed).Msg("render.clear done")
	return removed, nil
}
