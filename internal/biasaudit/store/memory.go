package store

import (
	"context"
	"sync"
	"time"

	"equilens/internal/biasaudit"
	id "equilens/pkg/domain"
	"equilens/pkg/platform/sentinel"
)

// InMemory keeps jobs and group rows in maps guarded by a RWMutex. It favors
// clarity over performance and backs unit tests and single-node deployments.
type InMemory struct {
	mu   sync.RWMutex
	jobs map[id.AuditID]*Job
	rows map[id.AuditID][]GroupRow
}

func NewInMemory() *InMemory {
	return &InMemory{
		jobs: make(map[id.AuditID]*Job),
		rows: make(map[id.AuditID][]GroupRow),
	}
}

func (s *InMemory) CreateJob(_ context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return sentinel.ErrConflict
	}
	copied := *job
	s.jobs[job.ID] = &copied
	return nil
}

func (s *InMemory) FindJob(_ context.Context, tenantID id.TenantID, auditID id.AuditID) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[auditID]
	if !ok || job.TenantID != tenantID {
		return nil, sentinel.ErrNotFound
	}
	copied := *job
	return &copied, nil
}

func (s *InMemory) MarkRunning(_ context.Context, auditID id.AuditID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[auditID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if job.Status != StatusPending {
		return sentinel.ErrInvalidState
	}
	now := time.Now().UTC()
	job.Status = StatusRunning
	job.StartedAt = &now
	return nil
}

func (s *InMemory) MarkCompleted(_ context.Context, auditID id.AuditID, result *biasaudit.AuditResult, rows []GroupRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[auditID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if job.Status.IsTerminal() {
		return sentinel.ErrInvalidState
	}
	now := time.Now().UTC()
	job.Status = StatusCompleted
	job.Result = result
	job.CompletedAt = &now
	s.rows[auditID] = append([]GroupRow(nil), rows...)
	return nil
}

func (s *InMemory) MarkFailed(_ context.Context, auditID id.AuditID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[auditID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if job.Status.IsTerminal() {
		return sentinel.ErrInvalidState
	}
	now := time.Now().UTC()
	job.Status = StatusFailed
	job.Error = reason
	job.CompletedAt = &now
	return nil
}

func (s *InMemory) ListGroupRows(_ context.Context, tenantID id.TenantID, auditID id.AuditID) ([]GroupRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[auditID]
	if !ok || job.TenantID != tenantID {
		return nil, sentinel.ErrNotFound
	}
	return append([]GroupRow(nil), s.rows[auditID]...), nil
}
