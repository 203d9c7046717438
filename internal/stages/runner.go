package stages

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/legosorter/internal/mcp"
	"github.com/danmuck/legosorter/internal/observability"
	"github.com/danmuck/legosorter/internal/protocol"
	"github.com/danmuck/legosorter/internal/scripts"
	"github.com/rs/zerolog/log"
)

// ErrHostUnavailable means the pre-run ping could not reach the host add-on.
var ErrHostUnavailable = errors.New("stages: host unavailable")

// SetupInstructions is logged when the host cannot be reached.
const SetupInstructions = `1. Open Blender
2. Go to 3D View sidebar (press N)
3. Find the 'BlenderMCP' tab
4. Start the add-on server from that tab
5. Run this command again`

// Executor is the slice of the host client the runner needs.
type Executor interface {
	Addr() string
	Ping(ctx context.Context) error
	ExecuteWithRetries(ctx context.Context, code string, opts mcp.ExecOptions) (mcp.Result, error)
}

// Journal persists runs; history.Store implements it.
type Journal interface {
	Begin(ctx context.Context, host string, started time.Time) (uint, error)
	RecordStage(ctx context.Context, runID uint, res StageResult) error
	Finish(ctx context.Context, runID uint, status string, finished time.Time) error
}

// Plan selects what one run executes.
type Plan struct {
	// Stages in execution order; empty means DefaultPipeline.
	Stages          []string
	Params          scripts.Params
	SkipConveyor    bool
	ContinueOnError bool
}

// Runner executes stage scripts against one host.
type Runner struct {
	exec     Executor
	registry *Registry
	journal  Journal
	timeout  func(id string) time.Duration
	now      func() time.Time
}

type RunnerOption func(*Runner)

// WithJournal records every run through j.
func WithJournal(j Journal) RunnerOption {
	return func(r *Runner) {
		r.journal = j
	}
}

// WithStageTimeout resolves the reply timeout per stage id.
func WithStageTimeout(fn func(id string) time.Duration) RunnerOption {
	return func(r *Runner) {
		r.timeout = fn
	}
}

func NewRunner(exec Executor, registry *Registry, opts ...RunnerOption) *Runner {
	if registry == nil {
		registry = DefaultRegistry()
	}
	r := &Runner{
		exec:     exec,
		registry: registry,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) Registry() *Registry {
	return r.registry
}

// Host is the address stage scripts are sent to.
func (r *Runner) Host() string {
	return r.exec.Addr()
}

// Run pings the host, then executes the plan's stages in order.
// A returned error means the run stopped early; stage failures under
// ContinueOnError are only visible in the report.
func (r *Runner) Run(ctx context.Context, plan Plan) (Report, error) {
	ids := plan.Stages
	if len(ids) == 0 {
		ids = DefaultPipeline()
	}
	list, err := r.registry.ResolveAll(ids)
	if err != nil {
		return Report{}, err
	}

	report := Report{Started: r.now()}
	host := r.exec.Addr()
	log.Info().Str("host", host).Int("stages", len(list)).Msg("stages.run start")

	if err := r.exec.Ping(ctx); err != nil {
		log.Error().Err(err).Str("host", host).Msg("stages.run host unreachable")
		log.Info().Msg("stages.run setup instructions:\n" + SetupInstructions)
		report.Status = RunUnavailable
		report.Finished = r.now()
		return report, fmt.Errorf("%w: %w", ErrHostUnavailable, err)
	}

	// Journal writes ignore cancellation.
	jctx := context.WithoutCancel(ctx)
	runID := r.begin(jctx, host, report.Started)
	report.RunID = runID

	var runErr error
	for i, stage := range list {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		log.Info().
			Str("stage", stage.ID).
			Msgf("stages.run step %d/%d %s", i+1, len(list), stage.Name)

		res := r.runOne(ctx, stage, plan)
		report.Results = append(report.Results, res.StageResult)
		observability.RecordStage(stage.ID, string(res.Status))
		r.record(jctx, runID, res)

		if res.Status != StatusFailed {
			continue
		}
		if res.err != nil && mcp.IsUnreachable(res.err) {
			runErr = fmt.Errorf("stages: %s: %w", stage.ID, res.err)
			break
		}
		if !plan.ContinueOnError {
			runErr = fmt.Errorf("stages: %s failed: %w", stage.ID, res.err)
			break
		}
	}

	report.Finished = r.now()
	switch {
	case runErr != nil:
		report.Status = RunAborted
	case report.Failed() > 0:
		report.Status = RunFailed
	default:
		report.Status = RunSuccess
	}
	r.finish(jctx, runID, report.Status, report.Finished)

	ev := log.Info()
	if report.Status != RunSuccess {
		ev = log.Warn()
	}
	ev.Str("status", report.Status).
		Int("failed", report.Failed()).
		Dur("elapsed", report.Finished.Sub(report.Started)).
		Msg("stages.run done")
	return report, runErr
}

// RunStage executes a single stage without skip rules.
func (r *Runner) RunStage(ctx context.Context, id string, params scripts.Params) (StageResult, error) {
	report, err := r.Run(ctx, Plan{Stages: []string{id}, Params: params})
	if len(report.Results) == 0 {
		return StageResult{ID: id}, err
	}
	return report.Results[0], err
}

type stageOutcome struct {
	StageResult
	err error
}

func (r *Runner) runOne(ctx context.Context, stage Stage, plan Plan) stageOutcome {
	res := stageOutcome{StageResult: StageResult{ID: stage.ID}}
	if stage.Skippable && plan.SkipConveyor {
		log.Info().Str("stage", stage.ID).Msg("stages.run skipped")
		res.Status = StatusSkipped
		return res
	}

	code, err := stage.Script(plan.Params)
	if err != nil {
		res.fail(fmt.Errorf("render %s: %w", stage.ID, err))
		return res
	}

	timeout := stage.Timeout
	if r.timeout != nil {
		if d := r.timeout(stage.ID); d > 0 {
			timeout = d
		}
	}

	start := r.now()
	out, err := r.exec.ExecuteWithRetries(ctx, code, mcp.ExecOptions{
		Description: stage.Name,
		Timeout:     timeout,
	})
	res.Duration = r.now().Sub(start)
	res.Attempts = out.Attempts
	if err != nil {
		res.fail(err)
		log.Error().Err(err).Str("stage", stage.ID).Int("attempts", res.Attempts).Msg("stages.run failed")
		return res
	}

	res.Status = StatusSuccess
	res.Output = strings.TrimSpace(protocol.StripPayload(out.Output))
	for _, line := range strings.Split(res.Output, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			log.Debug().Str("stage", stage.ID).Msg(line)
		}
	}
	log.Info().
		Str("stage", stage.ID).
		Int("attempts", res.Attempts).
		Dur("elapsed", res.Duration).
		Msg("stages.run ok")
	return res
}

func (o *stageOutcome) fail(err error) {
	o.Status = StatusFailed
	o.Error = err.Error()
	o.err = err
}

func (r *Runner) begin(ctx context.Context, host string, started time.Time) uint {
	if r.journal == nil {
		return 0
	}
	id, err := r.journal.Begin(ctx, host, started)
	if err != nil {
		log.Warn().Err(err).Msg("stages.journal begin failed")
		return 0
	}
	return id
}

func (r *Runner) record(ctx context.Context, runID uint, res stageOutcome) {
	if r.journal == nil || runID == 0 {
		return
	}
	if err := r.journal.RecordStage(ctx, runID, res.StageResult); err != nil {
		log.Warn().Err(err).Str("stage", res.ID).Msg("stages.journal record failed")
	}
}

func (r *Runner) finish(ctx context.Context, runID uint, status string, finished time.Time) {
	if r.journal == nil || runID == 0 {
		return
	}
	if err := r.journal.Finish(ctx, runID, status, finished); err != nil {
		log.Warn().Err(err).Msg("stages.journal finish failed")
	}
}
