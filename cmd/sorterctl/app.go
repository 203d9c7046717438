package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/danmuck/legosorter/internal/config"
	"github.com/danmuck/legosorter/internal/history"
	"github.com/danmuck/legosorter/internal/mcp"
	"github.com/danmuck/legosorter/internal/render"
	"github.com/danmuck/legosorter/internal/stages"
	"github.com/rs/zerolog/log"
)

// app holds everything a command may touch, built once per process.
type app struct {
	cfg     config.Config
	client  *mcp.Client
	tunnel  *mcp.Tunnel
	history *history.Store
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	a := &app{cfg: cfg}
	sshCfg, ok := cfg.Tunnel()
	if !ok {
		a.client = mcp.NewClient(cfg.Addr(), cfg.Session())
		return a, nil
	}
	t, err := mcp.OpenTunnel(ctx, sshCfg)
	if err != nil {
		return nil, fmt.Errorf("open ssh tunnel: %w", err)
	}
	a.tunnel = t
	log.Info().Str("via", sshCfg.Host).Str("remote", t.Addr()).Msg("sorterctl tunnel open")
	a.client = mcp.NewClient(t.Addr(), cfg.Session(), mcp.WithDialer(t))
	return a, nil
}

// journal opens the history store on first use; nil when history is off.
func (a *app) journal() (*history.Store, error) {
	if a.history != nil || a.cfg.History.Path == "" {
		return a.history, nil
	}
	store, err := history.Open(a.cfg.History.Path)
	if err != nil {
		return nil, err
	}
	a.history = store
	return store, nil
}

func (a *app) pipeline() (*stages.Runner, error) {
	opts := []stages.RunnerOption{stages.WithStageTimeout(a.cfg.StageTimeout)}
	store, err := a.journal()
	if err != nil {
		return nil, err
	}
	if store != nil {
		opts = append(opts, stages.WithJournal(store))
	}
	return stages.NewRunner(a.client, nil, opts...), nil
}

func (a *app) plan() stages.Plan {
	return stages.Plan{
		Params:          a.cfg.Scene,
		SkipConveyor:    a.cfg.Pipeline.SkipConveyor,
		ContinueOnError: a.cfg.Pipeline.ContinueOnError,
	}
}

func (a *app) renderSettings() render.Settings {
	r := a.cfg.Render
	return render.Settings{
		Engine:       r.Engine,
		ResolutionX:  r.ResolutionX,
		ResolutionY:  r.ResolutionY,
		Percentage:   r.Percentage,
		ClipStart:    r.ClipStart,
		ClipEnd:      r.ClipEnd,
		LensMM:       r.LensMM,
		OrthoPadding: r.OrthoPadding,
		BoundsFrame:  r.BoundsFrame,
	}
}

func (a *app) Close() error {
	var errs []error
	if a.history != nil {
		errs = append(errs, a.history.Close())
	}
	if a.tunnel != nil {
		errs = append(errs, a.tunnel.Close())
	}
	return errors.Join(errs...)
}
