package observability

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// KeyRejected holds the reason a handler turned a request away before it
// reached the host.
const KeyRejected = "legosorter.rejected"

const (
	RejectBusy         = "busy"
	RejectUnauthorized = "unauthorized"
)

// Reject marks the request as refused for reason.
func Reject(c *gin.Context, reason string) {
	c.Set(KeyRejected, reason)
}

type requestInfo struct {
	method   string
	route    string
	stage    string
	rejected string
	status   int
	elapsed  time.Duration
}

func describeRequest(c *gin.Context, start time.Time) requestInfo {
	info := requestInfo{
		method:  c.Request.Method,
		route:   c.FullPath(),
		stage:   c.Param("id"),
		status:  c.Writer.Status(),
		elapsed: time.Since(start),
	}
	if info.route == "" {
		info.route = c.Request.URL.Path
	}
	info.rejected = c.GetString(KeyRejected)
	return info
}

// RequestLogger writes one http.request line per call. Stage runs carry the
// stage id; refused requests carry the rejection reason.
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		info := describeRequest(c, start)

		event := logger.Info()
		switch {
		case info.status >= 500:
			event = logger.Error()
		case info.status >= 400:
			event = logger.Warn()
		}
		if info.stage != "" {
			event = event.Str("stage", info.stage)
		}
		if info.rejected != "" {
			event = event.Str("rejected", info.rejected)
		}
		event.
			Str("method", info.method).
			Str("route", info.route).
			Int("status", info.status).
			Dur("duration", info.elapsed).
			Str("client_ip", c.ClientIP()).
			Msg("http.request")
	}
}

// RequestMetricsMiddleware records request counts and durations by route,
// and refusals by reason.
func RequestMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		info := describeRequest(c, start)
		RecordHTTPRequest(info.method, info.route, info.status, info.elapsed)
		if info.rejected != "" {
			RecordRejection(info.rejected)
		}
	}
}
