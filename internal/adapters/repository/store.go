// Package repository defines the analysis result store interface and errors.
package repository

import (
	"context"
	"time"

	"github.com/hooplab/shotlog/internal/domain/model"
)

// Status tracks a job's lifecycle in the store.
type Status string

// Job statuses.
const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Record is one stored analysis, keyed by job id.
type Record struct {
	JobID     string                `json:"job_id"`
	ClipID    string                `json:"clip_id"`
	Status    Status                `json:"status"`
	Result    *model.AnalysisResult `json:"result,omitempty"`
	Error     string                `json:"error,omitempty"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// Store persists analysis records.
type Store interface {
	// Create registers a pending record for a submitted job.
	Create(ctx context.Context, jobID, clipID string) error

	// Complete stores a finished result for the job.
	Complete(ctx context.Context, jobID string, result model.AnalysisResult) error

	// Fail marks the job as failed with a reason.
	Fail(ctx context.Context, jobID string, reason string) error

	// Get fetches the record for a job.
	Get(ctx context.Context, jobID string) (Record, error)

	// Delete removes a record, e.g. after a submission bounced off a full
	// queue.
	Delete(ctx context.Context, jobID string) error

	// Recent returns up to n records, newest first.
	Recent(ctx context.Context, n int) ([]Record, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) int
}
