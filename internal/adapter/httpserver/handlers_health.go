package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Abdulah-eng/newhitsapp-sub002/internal/platform/version"
	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"
)

const (
	startupCheckTimeout   = 2 * time.Second
	readinessCheckTimeout = 5 * time.Second
)

const (
	statusReady     = "ready"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
	checkPassed     = "ok"
	checkFailed     = "failed"
)

// HealthCheck is a named dependency check. A failed Critical check takes the
// instance out of rotation; any other failure only marks it degraded.
type HealthCheck struct {
	Name     string
	Critical bool
	Check    func(ctx context.Context) error
}

type checkResult struct {
	Status    string `json:"status"`
	Critical  bool   `json:"critical"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

type healthReport struct {
	Status string                 `json:"status"`
	Checks map[string]checkResult `json:"checks"`
}

func (s *Server) registerHealthRoutes() {
	s.echo.GET("/health/startup", s.handleStartup)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/version", s.handleVersion)
}

// handleStartup waits for every dependency, critical or not, so a fresh
// instance never starts serving with an unknown upstream.
func (s *Server) handleStartup(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), startupCheckTimeout)
	defer cancel()

	report := s.runHealthChecks(ctx)
	code := http.StatusOK
	if report.Status != statusReady {
		report.Status = statusUnhealthy
		code = http.StatusServiceUnavailable
	}
	return writeHealth(c, code, report)
}

func (s *Server) handleLiveness(c echo.Context) error {
	uptime := s.clock.Since(s.startTime).Seconds()

	response := map[string]any{
		"status": checkPassed,
		"uptime": uptime,
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to write liveness response: %w", err)
	}

	return nil
}

func (s *Server) handleReadiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), readinessCheckTimeout)
	defer cancel()

	report := s.runHealthChecks(ctx)
	code := http.StatusOK
	if report.Status == statusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	return writeHealth(c, code, report)
}

// runHealthChecks runs all checks concurrently. A failing check does not
// cancel the others so the report always covers every dependency.
func (s *Server) runHealthChecks(ctx context.Context) healthReport {
	results := make([]checkResult, len(s.healthChecks))

	var g errgroup.Group
	for i, hc := range s.healthChecks {
		g.Go(func() error {
			start := s.clock.Now()
			err := hc.Check(ctx)
			res := checkResult{
				Status:    checkPassed,
				Critical:  hc.Critical,
				LatencyMS: s.clock.Since(start).Milliseconds(),
			}
			if err != nil {
				res.Status = checkFailed
				res.Error = err.Error()
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	report := healthReport{Status: statusReady, Checks: make(map[string]checkResult, len(results))}
	for i, res := range results {
		report.Checks[s.healthChecks[i].Name] = res
		if res.Status == checkPassed {
			continue
		}
		if res.Critical {
			report.Status = statusUnhealthy
		} else if report.Status == statusReady {
			report.Status = statusDegraded
		}
	}
	return report
}

func writeHealth(c echo.Context, code int, report healthReport) error {
	if err := c.JSON(code, report); err != nil {
		return fmt.Errorf("failed to send health response: %w", err)
	}
	return nil
}

func (s *Server) handleVersion(c echo.Context) error {
	if err := c.JSON(http.StatusOK, version.Get()); err != nil {
		return fmt.Errorf("failed to write version response: %w", err)
	}
	return nil
}
