// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/hooplab/shotlog/internal/adapters/repository"
	"github.com/hooplab/shotlog/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Submit registers a clip for asynchronous analysis. duplicate reports
	// an already-seen job id; accepted=false signals backpressure.
	Submit(ctx context.Context, job model.Job) (accepted, duplicate bool, err error)

	// Result fetches the stored record for a job.
	Result(ctx context.Context, jobID string) (repository.Record, error)

	// Recent returns up to n records, newest first.
	Recent(ctx context.Context, n int) ([]repository.Record, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	analysesHandler *AnalysesHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(statsProvider),
		analysesHandler: NewAnalysesHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/metrics", s.healthHandler.HandleMetrics)
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/analyses", MetricsMiddleware(s.analysesHandler.HandleAnalyses, "analyses"))
	mux.HandleFunc("/analyses/", MetricsMiddleware(s.analysesHandler.HandleGetAnalysis, "analysis"))
}

// analysisRequest mirrors the submission schema for POST /analyses.
type analysisRequest struct {
	JobID           string  `json:"job_id"`
	ClipID          string  `json:"clip_id"`
	DurationSeconds float64 `json:"duration_seconds"`
}

func (a analysisRequest) validate() error {
	switch {
	case strings.TrimSpace(a.ClipID) == "":
		return errors.New("missing clip_id")
	case a.DurationSeconds <= 0:
		return errors.New("duration_seconds must be positive")
	}
	return nil
}

type ackResponse struct {
	JobID     string `json:"job_id"`
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
