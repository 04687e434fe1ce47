package service

import (
	"context"
	"time"

	"equilens/internal/biasaudit"
	"equilens/internal/biasaudit/store"
	"equilens/internal/events"
)

// Worker consumes queued submissions and runs the computation engine. Run
// several workers for parallelism: the engine holds no shared state, so no
// coordination is needed beyond the store.
type Worker struct {
	svc *Service
}

func NewWorker(svc *Service) *Worker {
	return &Worker{svc: svc}
}

// Run processes submissions until the context is cancelled. A job already
// picked up is finished even during shutdown, so no audit is left running
// forever.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sub := <-w.svc.queue:
			w.process(context.WithoutCancel(ctx), sub)
		}
	}
}

func (w *Worker) process(ctx context.Context, sub Submission) {
	s := w.svc
	jobID := sub.Job.ID

	if err := s.store.MarkRunning(ctx, jobID); err != nil {
		s.logger.ErrorContext(ctx, "failed to mark audit running",
			"audit_id", jobID, "error", err)
		return
	}

	start := time.Now()
	result, err := biasaudit.Compute(sub.Records, sub.Config, sub.UnknownCount)
	s.metrics.ObserveComputeLatency(time.Since(start))

	if err != nil {
		w.fail(ctx, sub, err)
		return
	}

	rows := store.Flatten(jobID, &result)
	if err := s.store.MarkCompleted(ctx, jobID, &result, rows); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist audit result",
			"audit_id", jobID, "error", err)
		w.fail(ctx, sub, err)
		return
	}

	s.metrics.IncrementOutcome(string(store.StatusCompleted))
	s.metrics.AddFlags(result.FlagsCount)
	s.logger.InfoContext(ctx, "audit completed",
		"audit_id", jobID,
		"tenant_id", sub.Job.TenantID,
		"total_applicants", result.TotalApplicants,
		"flags", result.FlagsCount,
		"excluded", result.ExcludedCount,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	w.publish(ctx, sub, store.StatusCompleted, &result, "")
}

func (w *Worker) fail(ctx context.Context, sub Submission, cause error) {
	s := w.svc
	if err := s.store.MarkFailed(ctx, sub.Job.ID, cause.Error()); err != nil {
		s.logger.ErrorContext(ctx, "failed to mark audit failed",
			"audit_id", sub.Job.ID, "error", err)
	}
	s.metrics.IncrementOutcome(string(store.StatusFailed))
	s.logger.WarnContext(ctx, "audit failed",
		"audit_id", sub.Job.ID,
		"tenant_id", sub.Job.TenantID,
		"error", cause,
	)
	w.publish(ctx, sub, store.StatusFailed, nil, cause.Error())
}

// publish emits the terminal event. Publishing is best-effort: downstream
// consumers can rebuild from the store, so a broker outage never fails an
// audit.
func (w *Worker) publish(ctx context.Context, sub Submission, status store.Status, result *biasaudit.AuditResult, reason string) {
	event := events.AuditCompleted{
		AuditID:     sub.Job.ID,
		TenantID:    sub.Job.TenantID,
		Status:      string(status),
		Error:       reason,
		CompletedAt: time.Now().UTC(),
	}
	if result != nil {
		event.FlagsCount = result.FlagsCount
		event.ExcludedCount = result.ExcludedCount
	}
	if err := w.svc.events.PublishAuditCompleted(ctx, event); err != nil {
		w.svc.logger.WarnContext(ctx, "audit event publish failed",
			"audit_id", sub.Job.ID, "error", err)
	}
}
