package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"equilens/internal/biasaudit"
	id "equilens/pkg/domain"
	"equilens/pkg/platform/sentinel"
)

// Postgres persists audit jobs in PostgreSQL. The full AuditResult is stored
// as a JSON column on the job; group rows are flattened into their own table
// keyed (audit_id, category_type, category_name) for tabular querying.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// EnsureSchema creates the store's tables when they do not exist yet.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS audit_jobs (
	id            UUID PRIMARY KEY,
	tenant_id     UUID NOT NULL,
	requested_by  UUID NOT NULL,
	status        TEXT NOT NULL,
	result        JSONB,
	error         TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL,
	started_at    TIMESTAMPTZ,
	completed_at  TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_audit_jobs_tenant ON audit_jobs (tenant_id, created_at);

CREATE TABLE IF NOT EXISTS audit_group_results (
	audit_id        UUID NOT NULL REFERENCES audit_jobs (id) ON DELETE CASCADE,
	position        INT NOT NULL,
	category_type   TEXT NOT NULL,
	category_name   TEXT NOT NULL,
	applicant_count INT NOT NULL,
	selected_count  INT NOT NULL,
	selection_rate  DOUBLE PRECISION NOT NULL,
	impact_ratio    DOUBLE PRECISION,
	excluded        BOOLEAN NOT NULL,
	flagged         BOOLEAN NOT NULL,
	PRIMARY KEY (audit_id, category_type, category_name)
);`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure audit schema: %w", err)
	}
	return nil
}

func (s *Postgres) CreateJob(ctx context.Context, job *Job) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_jobs (id, tenant_id, requested_by, status, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		uuid.UUID(job.ID), uuid.UUID(job.TenantID), uuid.UUID(job.RequestedBy),
		string(job.Status), job.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create audit job: %w", err)
	}
	return nil
}

func (s *Postgres) FindJob(ctx context.Context, tenantID id.TenantID, auditID id.AuditID) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, requested_by, status, result, error, created_at, started_at, completed_at
		FROM audit_jobs
		WHERE id = $1 AND tenant_id = $2`,
		uuid.UUID(auditID), uuid.UUID(tenantID),
	)

	var (
		job        Job
		jobID      uuid.UUID
		tenant     uuid.UUID
		requester  uuid.UUID
		status     string
		resultJSON []byte
	)
	err := row.Scan(&jobID, &tenant, &requester, &status, &resultJSON,
		&job.Error, &job.CreatedAt, &job.StartedAt, &job.CompletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find audit job: %w", err)
	}

	job.ID = id.AuditID(jobID)
	job.TenantID = id.TenantID(tenant)
	job.RequestedBy = id.UserID(requester)
	job.Status = Status(status)
	if len(resultJSON) > 0 {
		var result biasaudit.AuditResult
		if err := json.Unmarshal(resultJSON, &result); err != nil {
			return nil, fmt.Errorf("decode audit result: %w", err)
		}
		job.Result = &result
	}
	return &job, nil
}

func (s *Postgres) MarkRunning(ctx context.Context, auditID id.AuditID) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE audit_jobs SET status = $2, started_at = now()
		WHERE id = $1 AND status = $3`,
		uuid.UUID(auditID), string(StatusRunning), string(StatusPending),
	)
	if err != nil {
		return fmt.Errorf("mark audit running: %w", err)
	}
	return requireRow(res, sentinel.ErrInvalidState)
}

func (s *Postgres) MarkCompleted(ctx context.Context, auditID id.AuditID, result *biasaudit.AuditResult, rows []GroupRow) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode audit result: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin completion tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE audit_jobs SET status = $2, result = $3, completed_at = now()
		WHERE id = $1 AND status NOT IN ($4, $5)`,
		uuid.UUID(auditID), string(StatusCompleted), resultJSON,
		string(StatusCompleted), string(StatusFailed),
	)
	if err != nil {
		return fmt.Errorf("mark audit completed: %w", err)
	}
	if err := requireRow(res, sentinel.ErrInvalidState); err != nil {
		return err
	}

	for i, r := range rows {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO audit_group_results
				(audit_id, position, category_type, category_name,
				 applicant_count, selected_count, selection_rate,
				 impact_ratio, excluded, flagged)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			uuid.UUID(r.AuditID), i, r.CategoryType, r.CategoryName,
			r.ApplicantCount, r.SelectedCount, r.SelectionRate,
			r.ImpactRatio, r.Excluded, r.Flagged,
		)
		if err != nil {
			return fmt.Errorf("insert group row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit completion tx: %w", err)
	}
	return nil
}

func (s *Postgres) MarkFailed(ctx context.Context, auditID id.AuditID, reason string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE audit_jobs SET status = $2, error = $3, completed_at = now()
		WHERE id = $1 AND status NOT IN ($4, $5)`,
		uuid.UUID(auditID), string(StatusFailed), reason,
		string(StatusCompleted), string(StatusFailed),
	)
	if err != nil {
		return fmt.Errorf("mark audit failed: %w", err)
	}
	return requireRow(res, sentinel.ErrInvalidState)
}

func (s *Postgres) ListGroupRows(ctx context.Context, tenantID id.TenantID, auditID id.AuditID) ([]GroupRow, error) {
	// Tenant scoping goes through the owning job.
	if _, err := s.FindJob(ctx, tenantID, auditID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT audit_id, category_type, category_name, applicant_count,
		       selected_count, selection_rate, impact_ratio, excluded, flagged
		FROM audit_group_results
		WHERE audit_id = $1
		ORDER BY position`,
		uuid.UUID(auditID),
	)
	if err != nil {
		return nil, fmt.Errorf("list group rows: %w", err)
	}
	defer rows.Close()

	var out []GroupRow
	for rows.Next() {
		var (
			r   GroupRow
			aID uuid.UUID
		)
		err := rows.Scan(&aID, &r.CategoryType, &r.CategoryName, &r.ApplicantCount,
			&r.SelectedCount, &r.SelectionRate, &r.ImpactRatio, &r.Excluded, &r.Flagged)
		if err != nil {
			return nil, fmt.Errorf("scan group row: %w", err)
		}
		r.AuditID = id.AuditID(aID)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate group rows: %w", err)
	}
	return out, nil
}

// requireRow converts a zero-row update into the given sentinel. A zero-row
// update means the job is missing or already terminal; callers treat both as
// invalid-state because creates always precede transitions.
func requireRow(res sql.Result, missing error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return missing
	}
	return nil
}
