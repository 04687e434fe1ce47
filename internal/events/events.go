// Package events publishes audit lifecycle events for downstream consumers
// (reporting, compliance archival). Publishing is best-effort from the
// worker's perspective: a failed publish is logged, never fails the audit.
package events

import (
	"context"
	"time"

	id "equilens/pkg/domain"
)

// AuditCompleted is emitted when an audit job reaches a terminal status.
// Keep it transport-agnostic so sinks can fan out.
type AuditCompleted struct {
	AuditID       id.AuditID  `json:"audit_id"`
	TenantID      id.TenantID `json:"tenant_id"`
	Status        string      `json:"status"`
	FlagsCount    int         `json:"flags_count"`
	ExcludedCount int         `json:"excluded_count"`
	Error         string      `json:"error,omitempty"`
	CompletedAt   time.Time   `json:"completed_at"`
}

// Publisher emits audit lifecycle events.
type Publisher interface {
	PublishAuditCompleted(ctx context.Context, event AuditCompleted) error
	Close()
}

// Noop discards events; used when no broker is configured and in tests.
type Noop struct{}

func (Noop) PublishAuditCompleted(context.Context, AuditCompleted) error { return nil }
func (Noop) Close()                                                      {}
