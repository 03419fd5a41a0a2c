// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hooplab/shotlog/internal/adapters/repository"
	"github.com/hooplab/shotlog/internal/domain/model"
)

// AnalysesHandler handles analysis submission and lookup requests.
type AnalysesHandler struct {
	deps Dependencies
}

// NewAnalysesHandler creates a new analyses handler.
func NewAnalysesHandler(deps Dependencies) *AnalysesHandler {
	return &AnalysesHandler{deps: deps}
}

// HandleAnalyses handles POST /analyses requests.
func (h *AnalysesHandler) HandleAnalyses(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_analysis"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req analysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	// A client-supplied job id enables idempotent retries.
	if strings.TrimSpace(req.JobID) == "" {
		req.JobID = uuid.NewString()
	}

	job := model.Job{
		ID:          req.JobID,
		ClipID:      req.ClipID,
		Duration:    req.DurationSeconds,
		SubmittedAt: time.Now(),
	}
	accepted, duplicate, err := h.deps.Submit(r.Context(), job)
	switch {
	case err != nil:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	case duplicate:
		writeJSON(w, http.StatusOK, ackResponse{JobID: job.ID, Status: "duplicate", Duplicate: true})
	case !accepted:
		writeError(w, http.StatusTooManyRequests, "backpressure", NewKind(op, ErrBackpressure))
	default:
		writeJSON(w, http.StatusAccepted, ackResponse{JobID: job.ID, Status: "accepted", Duplicate: false})
	}
}

// analysisResponse is the lookup shape for GET /analyses/{job_id}.
type analysisResponse struct {
	JobID   string                  `json:"job_id"`
	ClipID  string                  `json:"clip_id"`
	Status  repository.Status       `json:"status"`
	Error   string                  `json:"error,omitempty"`
	Summary *model.Summary          `json:"summary,omitempty"`
	Shots   []repository.ShotRecord `json:"shots,omitempty"`
}

// HandleGetAnalysis handles GET /analyses/{job_id} requests.
func (h *AnalysesHandler) HandleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	// Extract path parameter after /analyses/
	path := strings.TrimPrefix(r.URL.Path, "/analyses/")
	if path == "" || strings.Contains(path, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	record, err := h.deps.Result(r.Context(), path)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}

	resp := analysisResponse{
		JobID:  record.JobID,
		ClipID: record.ClipID,
		Status: record.Status,
		Error:  record.Error,
	}
	if record.Status == repository.StatusDone && record.Result != nil {
		summary := record.Result.Summarize()
		resp.Summary = &summary
		resp.Shots = repository.Export(record.Result)
	}
	writeJSON(w, http.StatusOK, resp)
}
