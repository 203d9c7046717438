package scenario

import (
	"context"
	"fmt"
	"time"

	"github.com/danmuck/legosorter/internal/mcp"
	"github.com/danmuck/legosorter/internal/protocol"
	"github.com/danmuck/legosorter/internal/scene"
	"github.com/danmuck/legosorter/internal/scripts"
	"github.com/danmuck/legosorter/internal/stages"
	"github.com/rs/zerolog/log"
)

// Executor runs probe scripts against the host.
type Executor interface {
	ExecuteWithRetries(ctx context.Context, code string, opts mcp.ExecOptions) (mcp.Result, error)
}

// Result is one evaluated scenario run.
type Result struct {
	Scenario     Scenario      `json:"scenario"`
	Setup        stages.Report `json:"setup"`
	Measurements Measurements  `json:"measurements"`
	Issues       []Issue       `json:"issues"`
	Elapsed      time.Duration `json:"elapsed"`
}

// Passed is true when setup succeeded and no check failed.
func (r Result) Passed() bool {
	return r.Setup.Status == stages.RunSuccess && len(r.Issues) == 0
}

// Runner builds a scenario's scene, samples it and evaluates the checks.
type Runner struct {
	exec     Executor
	pipeline *stages.Runner
	params   scripts.Params
}

func NewRunner(exec Executor, pipeline *stages.Runner, params scripts.Params) *Runner {
	return &Runner{exec: exec, pipeline: pipeline, params: params}
}

// Run executes scenario name. Setup failures are returned as errors; check failures are in
// Result.Issues.
func (r *Runner) Run(ctx context.Context, name string) (Result, error) {
	s, err := Get(name)
	if err != nil {
		return Result{}, err
	}
	started := time.Now()
	res := Result{Scenario: s}
	log.Info().Str("scenario", s.Name).Int("frames", s.Frames).Msg("scenario.run start")

	params := r.params
	params.Physics.FrameEnd = max(params.Physics.FrameEnd, s.Frames)
	report, err := r.pipeline.Run(ctx, stages.Plan{Stages: s.Setup, Params: params})
	res.Setup = report
	if err != nil {
		return res, fmt.Errorf("scenario %s: setup: %w", s.Name, err)
	}

	var tracks *Tracks
	if s.NeedsTracks() {
		t, err := r.sample(ctx, s.Frames)
		if err != nil {
			return res, fmt.Errorf("scenario %s: %w", s.Name, err)
		}
		tracks = &t
	}
	snap, err := scene.Probe(ctx, r.exec)
	if err != nil {
		return res, fmt.Errorf("scenario %s: %w", s.Name, err)
	}

	res.Measurements = Measure(tracks, snap, params)
	res.Issues = Evaluate(s, res.Measurements)
	res.Elapsed = time.Since(started)

	ev := log.Info()
	if !res.Passed() {
		ev = log.Warn()
	}
	ev.Str("scenario", s.Name).
		Int("issues", len(res.Issues)).
		Dur("elapsed", res.Elapsed).
		Msg("scenario.run done")
	for _, issue := range res.Issues {
		log.Warn().Str("scenario", s.Name).Msg(issue.Message)
	}
	return res, nil
}

// sample probes part transforms on every frame from 1 to frames.
func (r *Runner) sample(ctx context.Context, frames int) (Tracks, error) {
	list := make([]int, frames)
	for i := range list {
		list[i] = i + 1
	}
	code, err := scripts.PartTracks(list)
	if err != nil {
		return Tracks{}, err
	}
	out, err := r.exec.ExecuteWithRetries(ctx, code, mcp.ExecOptions{Description: scripts.ProbePartTracks})
	if err != nil {
		return Tracks{}, fmt.Errorf("part tracks: %w", err)
	}
	var t Tracks
	if err := protocol.ExtractPayload(out.Output, &t); err != nil {
		return Tracks{}, fmt.Errorf("part tracks: %w", err)
	}
	return t, nil
}
