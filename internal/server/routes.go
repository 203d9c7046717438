package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/danmuck/legosorter/internal/auth"
	"github.com/danmuck/legosorter/internal/mcp"
	"github.com/danmuck/legosorter/internal/observability"
	"github.com/danmuck/legosorter/internal/scene"
	"github.com/danmuck/legosorter/internal/stages"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
)

type StageInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Skippable   bool   `json:"skippable"`
}

func (s *Server) registerRoutes() {
	r := s.router
	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/stages", s.listStages)
	r.POST("/stages/:id/run", s.authorized(), s.exclusive(s.runStage))
	r.POST("/pipeline/run", s.authorized(), s.exclusive(s.runPipeline))
	r.GET("/validate", s.exclusive(s.validate))
	r.GET("/history", s.listHistory)
}

// authorized rejects requests without the configured bearer token.
// With no token configured every request passes.
func (s *Server) authorized() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.auth == nil {
			c.Next()
			return
		}
		token, ok := auth.BearerToken(c.GetHeader("Authorization"))
		if !ok || s.auth.Validate(token) != nil {
			observability.Reject(c, observability.RejectUnauthorized)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": auth.ErrUnauthorized.Error()})
			return
		}
		c.Next()
	}
}

// exclusive answers 409 while another host operation is in flight.
func (s *Server) exclusive(h gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.busy.TryLock() {
			observability.Reject(c, observability.RejectBusy)
			c.JSON(http.StatusConflict, gin.H{"error": "another operation is running"})
			return
		}
		defer s.busy.Unlock()
		h(c)
	}
}

func (s *Server) health(c *gin.Context) {
	host := ""
	if s.pipeline != nil {
		host = s.pipeline.Host()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"uptime":  time.Since(s.Started).String(),
		"host":    host,
		"version": "0.0.1",
	})
}

func (s *Server) listStages(c *gin.Context) {
	list := s.pipeline.Registry().List()
	out := make([]StageInfo, 0, len(list))
	for _, st := range list {
		out = append(out, StageInfo{ID: st.ID, Name: st.Name, Description: st.Description, Skippable: st.Skippable})
	}
	c.JSON(http.StatusOK, gin.H{
		"stages":   out,
		"pipeline": stages.DefaultPipeline(),
	})
}

func (s *Server) runStage(c *gin.Context) {
	id := c.Param("id")
	res, err := s.pipeline.RunStage(c.Request.Context(), id, s.plan.Params)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error(), "result": res})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "result": res})
}

func (s *Server) runPipeline(c *gin.Context) {
	plan := s.plan
	if raw, ok := c.GetQuery("skip_conveyor"); ok {
		skip, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "skip_conveyor must be a boolean"})
			return
		}
		plan.SkipConveyor = skip
	}
	report, err := s.pipeline.Run(c.Request.Context(), plan)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error(), "report": report})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": report.Status, "report": report})
}

func (s *Server) validate(c *gin.Context) {
	snap, err := scene.Probe(c.Request.Context(), s.probe)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	issues := scene.Validate(snap, scene.Options{SkipConveyor: s.plan.SkipConveyor})
	if issues == nil {
		issues = []scene.Issue{}
	}
	c.JSON(http.StatusOK, gin.H{
		"valid":      !scene.Failed(issues),
		"issues":     issues,
		"statistics": scene.Statistics(snap),
	})
}

func (s *Server) listHistory(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "history is not enabled"})
		return
	}
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistoryLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
			return
		}
		limit = n
	}
	runs, err := s.history.Recent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, stages.ErrUnknownStage):
		return http.StatusNotFound
	case errors.Is(err, stages.ErrHostUnavailable), mcp.IsUnreachable(err):
		return http.StatusServiceUnavailable
	case mcp.IsTimeout(err):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
