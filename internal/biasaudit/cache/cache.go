// Package cache provides a Redis-backed read cache for terminal audit jobs.
// Completed and failed jobs never change again, so cached copies stay valid
// for their full TTL.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"equilens/internal/biasaudit/store"
	id "equilens/pkg/domain"
)

// ResultCache caches terminal jobs keyed by tenant and audit ID. A nil
// *ResultCache is a valid no-op receiver so callers need no branching when
// Redis is not configured.
type ResultCache struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

// New constructs a result cache. TTL bounds how long terminal jobs are served
// without touching the primary store.
func New(client redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *ResultCache {
	return &ResultCache{client: client, ttl: ttl, logger: logger}
}

func key(tenantID id.TenantID, auditID id.AuditID) string {
	return fmt.Sprintf("equilens:audit:%s:%s", tenantID, auditID)
}

// GetJob returns a cached terminal job, or ok=false on miss or error. Cache
// errors are logged and treated as misses; the store remains authoritative.
func (c *ResultCache) GetJob(ctx context.Context, tenantID id.TenantID, auditID id.AuditID) (*store.Job, bool) {
	if c == nil {
		return nil, false
	}
	payload, err := c.client.Get(ctx, key(tenantID, auditID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) && c.logger != nil {
			c.logger.WarnContext(ctx, "audit cache read failed", "audit_id", auditID, "error", err)
		}
		return nil, false
	}
	var job store.Job
	if err := json.Unmarshal(payload, &job); err != nil {
		if c.logger != nil {
			c.logger.WarnContext(ctx, "audit cache entry corrupt", "audit_id", auditID, "error", err)
		}
		return nil, false
	}
	return &job, true
}

// SetJob caches a job if it is terminal; non-terminal jobs are ignored.
func (c *ResultCache) SetJob(ctx context.Context, job *store.Job) {
	if c == nil || job == nil || !job.Status.IsTerminal() {
		return
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key(job.TenantID, job.ID), payload, c.ttl).Err(); err != nil && c.logger != nil {
		c.logger.WarnContext(ctx, "audit cache write failed", "audit_id", job.ID, "error", err)
	}
}
