package store

import (
	"context"

	"equilens/internal/biasaudit"
	id "equilens/pkg/domain"
)

// Store persists audit jobs and flattened group rows. Reads are tenant-scoped:
// a job belonging to another tenant is indistinguishable from a missing one.
//
// Implementations return sentinel.ErrNotFound for missing jobs and
// sentinel.ErrConflict for duplicate creates.
type Store interface {
	// CreateJob inserts a new pending job.
	CreateJob(ctx context.Context, job *Job) error

	// FindJob returns a job by ID within a tenant.
	FindJob(ctx context.Context, tenantID id.TenantID, auditID id.AuditID) (*Job, error)

	// MarkRunning transitions a job to running.
	MarkRunning(ctx context.Context, auditID id.AuditID) error

	// MarkCompleted stores the result and its flattened rows and transitions
	// the job to completed.
	MarkCompleted(ctx context.Context, auditID id.AuditID, result *biasaudit.AuditResult, rows []GroupRow) error

	// MarkFailed records the failure reason and transitions the job to failed.
	MarkFailed(ctx context.Context, auditID id.AuditID, reason string) error

	// ListGroupRows returns the flattened rows for a completed job, in the
	// order they were produced.
	ListGroupRows(ctx context.Context, tenantID id.TenantID, auditID id.AuditID) ([]GroupRow, error)
}
