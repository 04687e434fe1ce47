// Package store persists audit jobs and their flattened per-group results.
// Implementations are interface-driven so services can run against in-memory
// storage in tests and PostgreSQL in deployments without rewiring.
package store

import (
	"time"

	"equilens/internal/biasaudit"
	id "equilens/pkg/domain"
)

// Status is the lifecycle state of an audit job. The worker moves every job
// pending -> running -> completed or failed; no other transitions exist.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// IsTerminal reports whether the status admits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job is one audit request and its outcome. Result is set only for completed
// jobs; Error only for failed ones.
type Job struct {
	ID          id.AuditID
	TenantID    id.TenantID
	RequestedBy id.UserID
	Status      Status
	Result      *biasaudit.AuditResult
	Error       string
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// GroupRow is one flattened per-group result, keyed by
// (audit_id, category_type, category_name) for tabular querying.
type GroupRow struct {
	AuditID        id.AuditID `json:"audit_id"`
	CategoryType   string     `json:"category_type"`
	CategoryName   string     `json:"category_name"`
	ApplicantCount int        `json:"applicant_count"`
	SelectedCount  int        `json:"selected_count"`
	SelectionRate  float64    `json:"selection_rate"`
	ImpactRatio    *float64   `json:"impact_ratio"`
	Excluded       bool       `json:"excluded"`
	Flagged        bool       `json:"flagged"`
}

// Flatten converts every table row of a result into persistable group rows,
// preserving table order.
func Flatten(auditID id.AuditID, result *biasaudit.AuditResult) []GroupRow {
	if result == nil {
		return nil
	}
	var rows []GroupRow
	for _, table := range result.Tables {
		for _, r := range table.Rows {
			rows = append(rows, GroupRow{
				AuditID:        auditID,
				CategoryType:   r.CategoryType,
				CategoryName:   r.CategoryName,
				ApplicantCount: r.ApplicantCount,
				SelectedCount:  r.SelectedCount,
				SelectionRate:  r.SelectionRate,
				ImpactRatio:    r.ImpactRatio,
				Excluded:       r.Excluded,
				Flagged:        r.Flagged,
			})
		}
	}
	return rows
}
