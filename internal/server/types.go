package server

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MeKo-Tech/scanwarp/internal/job"
	"github.com/MeKo-Tech/scanwarp/internal/worker"
)

// Runner executes jobs. *worker.Pool implements it.
type Runner interface {
	Do(ctx context.Context, j job.Job) (job.Result, error)
	Stats() worker.Stats
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	runner         Runner
	corsOrigin     string
	maxUploadMB    int64
	timeoutSec     int
	version        string
	metricsEnabled bool
}

// Config holds server configuration.
type Config struct {
	Host           string
	Port           int
	CORSOrigin     string
	MaxUploadMB    int64
	TimeoutSec     int
	Version        string
	MetricsEnabled bool
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string        `json:"status"`
	Version string        `json:"version,omitempty"`
	Time    string        `json:"time"`
	Workers *worker.Stats `json:"workers,omitempty"`
}

// ErrorResponse is returned for requests that never became a job.
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewServer creates a server that hands jobs to runner.
func NewServer(config Config, runner Runner) *Server {
	if config.MaxUploadMB <= 0 {
		config.MaxUploadMB = 50
	}
	return &Server{
		runner:         runner,
		corsOrigin:     config.CORSOrigin,
		maxUploadMB:    config.MaxUploadMB,
		timeoutSec:     config.TimeoutSec,
		version:        config.Version,
		metricsEnabled: config.MetricsEnabled,
	}
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/v1/jobs", s.corsMiddleware(s.jobHandler))
	mux.HandleFunc("/v1/upload", s.corsMiddleware(s.uploadHandler))
	mux.HandleFunc("/v1/ws", s.jobWebSocketHandler)
	if s.metricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
	}
}
