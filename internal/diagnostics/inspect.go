package diagnostics

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/danmuck/legosorter/internal/mcp"
	"github.com/danmuck/legosorter/internal/protocol"
	"github.com/danmuck/legosorter/internal/scripts"
)

// FrameState is the part physics state at one frame.
type FrameState struct {
	Frame      int         `json:"frame"`
	BucketTopZ *float64    `json:"bucket_top_z"`
	Collection bool        `json:"collection"`
	Parts      []PartState `json:"parts"`
}

type PartState struct {
	Name      string      `json:"name"`
	Location  [3]*float64 `json:"location"`
	RigidBody bool        `json:"rigid_body"`
	Mass      *float64    `json:"mass"`
	Shape     string      `json:"shape"`
	Margin    *float64    `json:"margin"`
}

// Inspect reports part state at each frame; nil frames means DefaultInspectFrames.
func (d *Diagnostics) Inspect(ctx context.Context, frames []int) ([]FrameState, error) {
	if len(frames) == 0 {
		frames = DefaultInspectFrames
	}
	code, err := scripts.InspectParts(frames)
	if err != nil {
		return nil, err
	}
	res, err := d.exec.ExecuteWithRetries(ctx, code, mcp.ExecOptions{Description: scripts.ProbeInspectParts})
	if err != nil {
		return nil, fmt.Errorf("diagnostics: inspect: %w", err)
	}
	var payload struct {
		Frames []FrameState `json:"frames"`
	}
	if err := protocol.ExtractPayload(res.Output, &payload); err != nil {
		return nil, fmt.Errorf("diagnostics: inspect: %w", err)
	}
	return payload.Frames, nil
}

// PrintStates writes one block per frame in a terminal-friendly layout.
func PrintStates(w io.Writer, states []FrameState) {
	for _, s := range states {
		fmt.Fprintf(w, "--- Frame %d ---\n", s.Frame)
		fmt.Fprintf(w, "Bucket top Z: %s\n", optional(s.BucketTopZ, 6))
		if !s.Collection {
			fmt.Fprintln(w, "No lego_parts collection")
			continue
		}
		for _, p := range s.Parts {
			fmt.Fprintf(w, "%s: loc=(%s,%s,%s), rb=%t, mass=%s, shape=%s, margin=%s\n",
				p.Name,
				optional(p.Location[0], 3), optional(p.Location[1], 3), optional(p.Location[2], 3),
				p.RigidBody, optional(p.Mass, 6), orNone(p.Shape), optional(p.Margin, 6))
		}
	}
}

func optional(v *float64, prec int) string {
	if v == nil {
		return "None"
	}
	return strconv.FormatFloat(*v, 'f', prec, 64)
}

func orNone(s string) string {
	if s == "" {
		return "None"
	}
	return s
}
