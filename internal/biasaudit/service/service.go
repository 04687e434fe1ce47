// Package service orchestrates audit jobs around the pure computation engine:
// it accepts submissions, runs them on background workers through the
// pending -> running -> completed/failed lifecycle, persists results with
// their flattened group rows, and publishes completion events.
package service

import (
	"context"
	"log/slog"
	"time"

	"equilens/internal/biasaudit"
	"equilens/internal/biasaudit/cache"
	"equilens/internal/biasaudit/metrics"
	"equilens/internal/biasaudit/store"
	"equilens/internal/events"
	id "equilens/pkg/domain"
	dErrors "equilens/pkg/domain-errors"
)

const defaultQueueDepth = 64

// Submission is one queued audit awaiting a worker.
type Submission struct {
	Job          *store.Job
	Records      []biasaudit.Record
	Config       biasaudit.AuditConfig
	UnknownCount int
}

// SubmitRequest carries everything needed to start one audit.
type SubmitRequest struct {
	TenantID     id.TenantID
	RequestedBy  id.UserID
	Records      []biasaudit.Record
	Config       biasaudit.AuditConfig
	UnknownCount int
}

// Service accepts, tracks, and serves audit jobs. The engine itself is pure;
// all I/O lives here.
type Service struct {
	store   store.Store
	cache   *cache.ResultCache
	events  events.Publisher
	metrics *metrics.Metrics
	logger  *slog.Logger
	queue   chan Submission
}

// Option configures the Service.
type Option func(*Service)

// WithCache serves terminal jobs from a Redis-backed cache.
func WithCache(c *cache.ResultCache) Option {
	return func(s *Service) { s.cache = c }
}

// WithPublisher emits completion events to the given publisher.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.events = p }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithQueueDepth bounds how many submissions may wait for a worker.
func WithQueueDepth(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.queue = make(chan Submission, n)
		}
	}
}

// New constructs the audit service.
func New(st store.Store, logger *slog.Logger, opts ...Option) (*Service, error) {
	if st == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "store is required")
	}
	s := &Service{
		store:  st,
		events: events.Noop{},
		logger: logger,
		queue:  make(chan Submission, defaultQueueDepth),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Submit validates the audit configuration, persists a pending job, and
// queues it for a worker. Validation failures surface synchronously; the
// computation itself is asynchronous.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*store.Job, error) {
	if req.TenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "tenant is required")
	}
	if err := req.Config.Validate(); err != nil {
		return nil, err
	}

	job := &store.Job{
		ID:          id.NewAuditID(),
		TenantID:    req.TenantID,
		RequestedBy: req.RequestedBy,
		Status:      store.StatusPending,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "persist audit job", err)
	}

	sub := Submission{
		Job:          job,
		Records:      req.Records,
		Config:       req.Config,
		UnknownCount: req.UnknownCount,
	}
	select {
	case s.queue <- sub:
	case <-ctx.Done():
		reason := "request cancelled before a worker picked up the audit"
		if err := s.store.MarkFailed(context.WithoutCancel(ctx), job.ID, reason); err != nil {
			s.logger.ErrorContext(ctx, "failed to mark abandoned audit",
				"audit_id", job.ID, "error", err)
		}
		return nil, dErrors.Wrap(dErrors.CodeInternal, "audit queue unavailable", ctx.Err())
	}

	s.metrics.IncrementSubmissions()
	return job, nil
}

// Get returns a job within a tenant. Terminal jobs may be served from cache;
// the store stays authoritative for everything in flight.
func (s *Service) Get(ctx context.Context, tenantID id.TenantID, auditID id.AuditID) (*store.Job, error) {
	if job, ok := s.cache.GetJob(ctx, tenantID, auditID); ok {
		return job, nil
	}
	job, err := s.store.FindJob(ctx, tenantID, auditID)
	if err != nil {
		return nil, err
	}
	s.cache.SetJob(ctx, job)
	return job, nil
}

// ListGroupRows returns the flattened per-group rows for an audit.
func (s *Service) ListGroupRows(ctx context.Context, tenantID id.TenantID, auditID id.AuditID) ([]store.GroupRow, error) {
	return s.store.ListGroupRows(ctx, tenantID, auditID)
}
