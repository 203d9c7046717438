package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/danmuck/legosorter/internal/diagnostics"
	"github.com/danmuck/legosorter/internal/mcp"
	"github.com/danmuck/legosorter/internal/render"
	"github.com/danmuck/legosorter/internal/scenario"
	"github.com/danmuck/legosorter/internal/scene"
	"github.com/danmuck/legosorter/internal/server"
	"github.com/danmuck/legosorter/internal/stages"
	"github.com/rs/zerolog/log"
)

func noArgs(name string, args []string) error {
	if len(args) > 0 {
		return usagef("%s takes no arguments", name)
	}
	return nil
}

func cmdRun(ctx context.Context, a *app, args []string, out io.Writer) error {
	if err := noArgs("run", args); err != nil {
		return err
	}
	runner, err := a.pipeline()
	if err != nil {
		return err
	}
	report, err := runner.Run(ctx, a.plan())
	printReport(out, report)
	if errors.Is(err, stages.ErrHostUnavailable) {
		fmt.Fprintf(out, "\nThe host add-on is not reachable at %s.\n%s\n", a.client.Addr(), stages.SetupInstructions)
	}
	return err
}

func printReport(out io.Writer, report stages.Report) {
	if len(report.Results) == 0 {
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STAGE\tSTATUS\tATTEMPTS\tDURATION\tERROR")
	for _, r := range report.Results {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", r.ID, r.Status, r.Attempts, r.Duration.Round(time.Millisecond), r.Error)
	}
	_ = tw.Flush()
	fmt.Fprintf(out, "run %s: %d failed of %d\n", report.Status, report.Failed(), len(report.Results))
}

func cmdPing(ctx context.Context, a *app, args []string, out io.Writer) error {
	if err := noArgs("ping", args); err != nil {
		return err
	}
	if err := a.client.Ping(ctx); err != nil {
		fmt.Fprintf(out, "host add-on not reachable at %s\n%s\n", a.client.Addr(), stages.SetupInstructions)
		return err
	}
	fmt.Fprintf(out, "host add-on listening at %s\n", a.client.Addr())
	return nil
}

func cmdStage(ctx context.Context, a *app, args []string, out io.Writer) error {
	if len(args) != 1 {
		return usagef("stage takes exactly one stage id (one of %s)", strings.Join(stages.DefaultPipeline(), ", "))
	}
	runner, err := a.pipeline()
	if err != nil {
		return err
	}
	if _, ok := runner.Registry().Resolve(args[0]); !ok {
		return usagef("unknown stage %q", args[0])
	}
	res, err := runner.RunStage(ctx, args[0], a.cfg.Scene)
	if res.Output != "" {
		fmt.Fprintln(out, res.Output)
	}
	fmt.Fprintf(out, "%s: %s (%d attempts, %s)\n", res.ID, res.Status, res.Attempts, res.Duration.Round(time.Millisecond))
	return err
}

func cmdExec(ctx context.Context, a *app, args []string, out io.Writer) error {
	if len(args) != 1 {
		return usagef("exec takes exactly one script path")
	}
	res, err := a.client.ExecuteScript(ctx, args[0], mcp.ExecOptions{})
	if err != nil {
		return err
	}
	fmt.Fprintln(out, res.Output)
	return nil
}

func cmdValidate(ctx context.Context, a *app, args []string, out io.Writer) error {
	if err := noArgs("validate", args); err != nil {
		return err
	}
	snap, err := scene.Probe(ctx, a.client)
	if err != nil {
		return err
	}
	issues := scene.Validate(snap, scene.Options{SkipConveyor: a.cfg.Pipeline.SkipConveyor})
	stats := scene.Statistics(snap)
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(out, "%-12s %v\n", k, stats[k])
	}
	if len(issues) == 0 {
		fmt.Fprintln(out, "scene valid")
		return nil
	}
	for _, issue := range issues {
		fmt.Fprintln(out, issue.String())
	}
	if scene.Failed(issues) {
		fmt.Fprintf(out, "scene invalid: %d issues\n", len(issues))
	}
	return nil
}

func cmdRender(ctx context.Context, a *app, args []string, out io.Writer) error {
	var dir, frames string
	if err := subFlags("render", args, func(fs *flag.FlagSet) {
		fs.StringVar(&dir, "dir", a.cfg.Render.Dir, "output directory")
		fs.StringVar(&frames, "frames", "", "comma separated frames")
	}); err != nil {
		return err
	}
	list, err := parseFrames(frames)
	if err != nil {
		return err
	}
	if list == nil {
		list = a.cfg.Render.Frames
	}
	views, err := render.ResolveViews(a.cfg.Render.OrthoViews, a.cfg.Render.PerspectiveViews)
	if err != nil {
		return err
	}
	plan, err := render.NewPlan(dir, list, views)
	if err != nil {
		return err
	}
	plan.Clear = a.cfg.Render.Clear

	written, err := render.NewRenderer(a.client, a.renderSettings()).Run(ctx, plan)
	for _, path := range written {
		fmt.Fprintln(out, path)
	}
	fmt.Fprintf(out, "%d of %d snapshots written\n", len(written), len(plan.Shots()))
	return err
}

func cmdDiagnose(ctx context.Context, a *app, args []string, out io.Writer) error {
	var frame int
	if err := subFlags("diagnose", args, func(fs *flag.FlagSet) {
		fs.IntVar(&frame, "frame", diagnostics.DefaultRaycastFrame, "frame to raycast")
	}); err != nil {
		return err
	}
	report, err := diagnostics.New(a.client, a.cfg.Render.Dir).Raycast(ctx, frame)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %s (%d parts)\n", report.Path, len(report.Rows))
	return nil
}

func cmdInspect(ctx context.Context, a *app, args []string, out io.Writer) error {
	var frames string
	if err := subFlags("inspect", args, func(fs *flag.FlagSet) {
		fs.StringVar(&frames, "frames", "", "comma separated frames (default 1,20)")
	}); err != nil {
		return err
	}
	list, err := parseFrames(frames)
	if err != nil {
		return err
	}
	states, err := diagnostics.New(a.client, a.cfg.Render.Dir).Inspect(ctx, list)
	if err != nil {
		return err
	}
	diagnostics.PrintStates(out, states)
	return nil
}

func cmdScenarios(ctx context.Context, a *app, args []string, out io.Writer) error {
	action := "list"
	if len(args) > 0 {
		action, args = args[0], args[1:]
	}
	switch action {
	case "list":
		if len(args) > 0 {
			return usagef("scenarios list takes no arguments")
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tFRAMES\tCHECKS\tDESCRIPTION")
		for _, s := range scenario.List() {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", s.Name, s.Frames, len(s.Checks), s.Description)
		}
		return tw.Flush()
	case "show":
		if len(args) != 1 {
			return usagef("scenarios show takes one scenario name")
		}
		if _, err := scenario.Get(args[0]); err != nil {
			return usagef("%v", err)
		}
		fmt.Fprint(out, scenario.Summary(args[0]))
		return nil
	case "run":
		if len(args) != 1 {
			return usagef("scenarios run takes one scenario name")
		}
		if _, err := scenario.Get(args[0]); err != nil {
			return usagef("%v", err)
		}
		runner, err := a.pipeline()
		if err != nil {
			return err
		}
		res, err := scenario.NewRunner(a.client, runner, a.cfg.Scene).Run(ctx, args[0])
		if err != nil {
			printReport(out, res.Setup)
			return err
		}
		printScenario(out, res)
		return nil
	default:
		return usagef("unknown scenarios action %q", action)
	}
}

func printScenario(out io.Writer, res scenario.Result) {
	names := make([]string, 0, len(res.Measurements))
	for k := range res.Measurements {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		fmt.Fprintf(out, "  %-24s %.4g\n", k, res.Measurements[k])
	}
	if res.Passed() {
		fmt.Fprintf(out, "scenario %s passed\n", res.Scenario.Name)
		return
	}
	for _, issue := range res.Issues {
		fmt.Fprintf(out, "  FAIL %s\n", issue)
	}
	fmt.Fprintf(out, "scenario %s failed: %d checks\n", res.Scenario.Name, len(res.Issues))
}

func cmdHistory(ctx context.Context, a *app, args []string, out io.Writer) error {
	var limit int
	if err := subFlags("history", args, func(fs *flag.FlagSet) {
		fs.IntVar(&limit, "limit", 20, "runs to show")
	}); err != nil {
		return err
	}
	store, err := a.journal()
	if err != nil {
		return err
	}
	if store == nil {
		return usagef("history is disabled; set [history] path in the config")
	}
	runs, err := store.Recent(ctx, limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tSTATUS\tHOST\tSTAGES")
	for _, r := range runs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\n", r.ID, r.StartedAt.Local().Format(time.DateTime), r.Status, r.Host, len(r.Stages))
	}
	return tw.Flush()
}

func cmdServe(ctx context.Context, a *app, args []string, _ io.Writer) error {
	var addr string
	if err := subFlags("serve", args, func(fs *flag.FlagSet) {
		fs.StringVar(&addr, "addr", a.cfg.Server.Addr, "listen address")
	}); err != nil {
		return err
	}
	runner, err := a.pipeline()
	if err != nil {
		return err
	}
	opts := server.Options{
		Pipeline:    runner,
		Probe:       a.client,
		Plan:        a.plan(),
		CorsOrigins: a.cfg.Server.CorsOrigins,
		Token:       a.cfg.Server.Token,
	}
	if store, _ := a.journal(); store != nil {
		opts.History = store
	}
	log.Info().Str("host", a.client.Addr()).Msg("sorterctl serve")
	return server.New(addr, opts).Serve(ctx)
}
