package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/danmuck/legosorter/internal/config"
	"github.com/danmuck/legosorter/internal/logging"
	"github.com/rs/zerolog/log"
)

// errUsage marks bad command lines; only these and config errors exit non-zero.
var errUsage = errors.New("usage")

type command struct {
	summary string
	run     func(ctx context.Context, a *app, args []string, out io.Writer) error
}

var commands = map[string]command{
	"run":       {"build the whole scene (default)", cmdRun},
	"ping":      {"check the host add-on is listening", cmdPing},
	"stage":     {"run one stage: stage <id>", cmdStage},
	"exec":      {"send a python file to the host: exec <file.py>", cmdExec},
	"validate":  {"probe the scene and check it", cmdValidate},
	"render":    {"render snapshots: render [-dir d] [-frames 1,5]", cmdRender},
	"diagnose":  {"write the raycast CSV: diagnose [-frame N]", cmdDiagnose},
	"inspect":   {"print part physics state: inspect [-frames 1,20]", cmdInspect},
	"scenarios": {"scenarios [list|show <name>|run <name>]", cmdScenarios},
	"history":   {"list journaled runs: history [-limit N]", cmdHistory},
	"serve":     {"start the HTTP control API: serve [-addr host:port]", cmdServe},
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("sorterctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfgPath := fs.String("config", config.DefaultPath, "config file (optional)")
	debug := fs.Bool("debug", false, "short timeouts and verbose host logging")
	fs.Usage = func() { usage(stderr, fs) }
	if err := fs.Parse(args); err != nil {
		return 1
	}

	name, rest := "run", fs.Args()
	if len(rest) > 0 {
		name, rest = rest[0], rest[1:]
	}
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "sorterctl: unknown command %q\n", name)
		usage(stderr, fs)
		return 1
	}

	cfg, err := config.LoadOptional(*cfgPath)
	if err != nil {
		fmt.Fprintf(stderr, "sorterctl: %v\n", err)
		return 1
	}
	if *debug {
		cfg.Debug = true
	}
	logging.Configure(logging.ProfileRuntime, cfg.Logging.File)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("sorterctl setup failed")
		return 0
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn().Err(err).Msg("sorterctl close")
		}
	}()

	if err := cmd.run(ctx, a, rest, stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintf(stderr, "sorterctl %s: %v\n", name, err)
			return 1
		}
		log.Error().Err(err).Str("command", name).Msg("sorterctl command failed")
	}
	return 0
}

func usage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(w, "usage: sorterctl [-config path] [-debug] <command> [args]")
	fmt.Fprintln(w, "\ncommands:")
	names := make([]string, 0, len(commands))
	for n := range commands {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(w, "  %-10s %s\n", n, commands[n].summary)
	}
	fmt.Fprintln(w, "\nflags:")
	fs.PrintDefaults()
}

func usagef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

// subFlags parses command flags. Parse failures and leftover arguments are
// usage errors.
func subFlags(name string, args []string, define func(fs *flag.FlagSet)) error {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	define(fs)
	if err := fs.Parse(args); err != nil {
		return usagef("%v", err)
	}
	if fs.NArg() > 0 {
		return usagef("%s: unexpected arguments %q", name, fs.Args())
	}
	return nil
}

// parseFrames reads "1,5,10" into frame numbers.
func parseFrames(raw string) ([]int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var out []int
	for _, part := range strings.Split(raw, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 1 {
			return nil, usagef("bad frame %q", part)
		}
		out = append(out, n)
	}
	return out, nil
}
