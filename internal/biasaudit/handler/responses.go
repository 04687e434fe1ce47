package handler

import (
	"time"

	"equilens/internal/biasaudit"
	"equilens/internal/biasaudit/store"
)

// AuditResponse is the HTTP shape of an audit job.
type AuditResponse struct {
	ID          string                 `json:"id"`
	Status      string                 `json:"status"`
	CreatedAt   time.Time              `json:"created_at"`
	StartedAt   *time.Time             `json:"started_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	Error       string                 `json:"error,omitempty"`
	Result      *biasaudit.AuditResult `json:"result,omitempty"`
}

// FromJob converts a stored job to its HTTP response.
func FromJob(job *store.Job) *AuditResponse {
	return &AuditResponse{
		ID:          job.ID.String(),
		Status:      string(job.Status),
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
		Error:       job.Error,
		Result:      job.Result,
	}
}

// GroupRowsResponse lists the flattened per-group rows of one audit.
type GroupRowsResponse struct {
	AuditID string           `json:"audit_id"`
	Rows    []store.GroupRow `json:"rows"`
}
