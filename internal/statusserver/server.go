// Package statusserver exposes read-only HTTP introspection over an
// *executor.Executor: liveness, a single job's status, and worker-pool
// occupancy. It is operational tooling around the dispatch core, not part
// of it — nothing in pkg/dispatch depends on this package.
package statusserver

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/stlpine/clustergo/internal/executor"
	"github.com/stlpine/clustergo/pkg/models"
)

// Server wraps the executor an HTTP handler set reports on.
type Server struct {
	exec      *executor.Executor
	startedAt time.Time
}

// New builds a Server over an already-running executor. The caller still
// owns the executor's lifecycle (Stop).
func New(exec *executor.Executor) *Server {
	return &Server{exec: exec, startedAt: time.Now()}
}

// NewEcho builds an *echo.Echo with Server's handlers registered, mirroring
// the route/middleware shape of the teacher's API server: request logging,
// panic recovery, permissive CORS, and a health endpoint outside the
// versioned group.
func NewEcho(s *Server) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodOptions},
	}))

	e.GET("/health", s.HandleHealth)

	v1 := e.Group("/v1")
	v1.GET("/jobs/:job_id", s.HandleGetJob)
	v1.GET("/workers/stats", s.HandleGetWorkerStats)

	return e
}

// jobStatusResponse is the wire shape HandleGetJob returns; it deliberately
// omits Job.Spec (models.Job tags it `json:"-"`, and a status endpoint has
// no business echoing back bundle references or credentials).
type jobStatusResponse struct {
	JobID       string          `json:"job_id"`
	State       models.JobState `json:"state"`
	SubmittedAt time.Time       `json:"submitted_at"`
	TerminalAt  *time.Time      `json:"terminal_at,omitempty"`
}

// HandleGetJob reports a tracked job's current state.
//
// @HTTP   GET /v1/jobs/:job_id
// @Return 200 {object} jobStatusResponse
// @Return 404 {object} echo.HTTPError "job not found".
func (s *Server) HandleGetJob(c echo.Context) error {
	jobID := c.Param("job_id")
	if jobID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "job id required")
	}

	state, err := s.exec.Status(jobID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "job not found")
	}

	return c.JSON(http.StatusOK, jobStatusResponse{JobID: jobID, State: state})
}

// workerStatsResponse mirrors the shape of the teacher's WorkerStats, with
// fields that have no analogue in a poll-driven executor (queue depth,
// lifetime success/failure counters) dropped rather than faked.
type workerStatsResponse struct {
	WorkerPoolCapacity int64  `json:"worker_pool_capacity"`
	WorkerPoolActive   int64  `json:"worker_pool_active"`
	WorkerPoolFree     int64  `json:"worker_pool_free"`
	TrackedJobs        int    `json:"tracked_jobs"`
	RunningJobs        int    `json:"running_jobs"`
	TerminalJobs       int    `json:"terminal_jobs"`
	Uptime             string `json:"uptime"`
}

// HandleGetWorkerStats reports the executor's current load.
//
// @HTTP   GET /v1/workers/stats
// @Return 200 {object} workerStatsResponse.
func (s *Server) HandleGetWorkerStats(c echo.Context) error {
	stats := s.exec.Stats()
	return c.JSON(http.StatusOK, workerStatsResponse{
		WorkerPoolCapacity: stats.WorkerPoolCapacity,
		WorkerPoolActive:   stats.WorkerPoolActive,
		WorkerPoolFree:     stats.WorkerPoolCapacity - stats.WorkerPoolActive,
		TrackedJobs:        stats.TrackedJobs,
		RunningJobs:        stats.RunningJobs,
		TerminalJobs:       stats.TerminalJobs,
		Uptime:             time.Since(s.startedAt).String(),
	})
}

// HandleHealth reports liveness only; it never consults the executor, so it
// still answers while every tracked job is stuck.
func (s *Server) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}
