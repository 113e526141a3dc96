// Package httpapi serves the liveness endpoints, the manual reminder trigger
// and Prometheus metrics.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/skoret/simcard-bot/internal/reminder"
)

// Scanner runs one reminder cycle.
type Scanner interface {
	Scan(ctx context.Context) (reminder.Report, error)
}

type Options struct {
	CronCheckRPS   float64 // <= 0 disables limiting
	CronCheckBurst int
}

// NewRouter builds the HTTP handler.
//
// Middleware order: RequestID, Logger, Recovery, Metrics. Recovery sits after
// Logger so that a recovered panic is logged with its 500 status.
func NewRouter(scanner Scanner, opts Options) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true

	r.Use(RequestID(), Logger(), Recovery(), Metrics())

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "SIM charge reminder bot is running")
	})
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	check := []gin.HandlerFunc{RateLimit(newLimiter(opts)), cronCheck(scanner)}
	r.GET("/cron/check", check...)
	r.POST("/cron/check", check...)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "error": "route not found"})
	})
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"status": "error", "error": "method not allowed"})
	})
	return r
}

func newLimiter(opts Options) *rate.Limiter {
	if opts.CronCheckRPS <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := opts.CronCheckBurst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(opts.CronCheckRPS), burst)
}

// cronCheck runs a reminder scan on demand, for external schedulers that
// cannot rely on the in-process cron.
func cronCheck(scanner Scanner) gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := scanner.Scan(c.Request.Context())
		if err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"status": "error",
				"error":  err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"triggered": true,
			"scanned":   report.Scanned,
			"due":       report.Due,
			"critical":  report.Critical,
			"sent":      report.Sent,
		})
	}
}
