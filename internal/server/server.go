// Package server exposes the pipeline over HTTP for `sorterctl serve`.
//
// Ownership boundary:
// - route wiring, status code mapping, and the one-operation-at-a-time guard
// - stage execution, scene probing and journaling stay in their own packages
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/danmuck/legosorter/internal/auth"
	"github.com/danmuck/legosorter/internal/history"
	"github.com/danmuck/legosorter/internal/observability"
	"github.com/danmuck/legosorter/internal/scene"
	"github.com/danmuck/legosorter/internal/stages"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// HistoryReader lists journaled runs; history.Store implements it.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]history.Run, error)
}

// Options wires the server to one host.
type Options struct {
	Pipeline *stages.Runner
	// Probe runs the scene_state probe for /validate.
	Probe scene.Executor
	// History is optional; /history answers 404 without it.
	History HistoryReader
	// Plan is the base plan for pipeline and stage runs.
	Plan        stages.Plan
	CorsOrigins []string
	// Token, when set, is required as a bearer token on POST routes.
	Token string
}

type Server struct {
	Addr    string
	Started time.Time

	router   *gin.Engine
	pipeline *stages.Runner
	probe    scene.Executor
	history  HistoryReader
	plan     stages.Plan
	auth     auth.Validator

	// busy admits one host operation at a time.
	busy sync.Mutex
}

func New(addr string, opts Options) *Server {
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(opts.CorsOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		Addr:     addr,
		Started:  time.Now(),
		router:   r,
		pipeline: opts.Pipeline,
		probe:    opts.Probe,
		history:  opts.History,
		plan:     opts.Plan,
	}
	if opts.Token != "" {
		s.auth = auth.StaticToken{Token: opts.Token}
	}
	s.registerRoutes()
	return s
}

func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

// Serve listens until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.Addr).Msg("server.listen")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	log.Info().Str("addr", s.Addr).Msg("server.shutdown")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
