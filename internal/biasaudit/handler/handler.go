package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"equilens/internal/biasaudit/service"
	"equilens/internal/biasaudit/store"
	id "equilens/pkg/domain"
	dErrors "equilens/pkg/domain-errors"
	"equilens/pkg/platform/httputil"
	"equilens/pkg/requestcontext"
)

// Service defines the interface for audit operations.
type Service interface {
	Submit(ctx context.Context, req service.SubmitRequest) (*store.Job, error)
	Get(ctx context.Context, tenantID id.TenantID, auditID id.AuditID) (*store.Job, error)
	ListGroupRows(ctx context.Context, tenantID id.TenantID, auditID id.AuditID) ([]store.GroupRow, error)
}

// Handler wires audit endpoints to the audit service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an audit handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts audit endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/v1/audits", func(r chi.Router) {
		r.Post("/", h.HandleSubmit)
		r.Get("/{auditID}", h.HandleGet)
		r.Get("/{auditID}/groups", h.HandleListGroups)
	})
}

// HandleSubmit handles POST /v1/audits requests. The audit runs in the
// background; the response carries the job ID to poll.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	tenantID, ok := h.requireTenant(w, ctx)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[SubmitAuditRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	job, err := h.service.Submit(ctx, service.SubmitRequest{
		TenantID:     tenantID,
		RequestedBy:  requestcontext.UserID(ctx),
		Records:      req.ParsedRecords(),
		Config:       req.ParsedConfig(),
		UnknownCount: req.UnknownCount,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "audit submission failed",
			"request_id", requestID,
			"tenant_id", tenantID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "audit submitted",
		"request_id", requestID,
		"tenant_id", tenantID,
		"audit_id", job.ID,
		"records", len(req.ParsedRecords()),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	httputil.WriteJSON(w, http.StatusAccepted, FromJob(job))
}

// HandleGet handles GET /v1/audits/{auditID} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tenantID, ok := h.requireTenant(w, ctx)
	if !ok {
		return
	}
	auditID, err := id.ParseAuditID(chi.URLParam(r, "auditID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	job, err := h.service.Get(ctx, tenantID, auditID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromJob(job))
}

// HandleListGroups handles GET /v1/audits/{auditID}/groups requests.
func (h *Handler) HandleListGroups(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tenantID, ok := h.requireTenant(w, ctx)
	if !ok {
		return
	}
	auditID, err := id.ParseAuditID(chi.URLParam(r, "auditID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	rows, err := h.service.ListGroupRows(ctx, tenantID, auditID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, GroupRowsResponse{
		AuditID: auditID.String(),
		Rows:    rows,
	})
}

func (h *Handler) requireTenant(w http.ResponseWriter, ctx context.Context) (id.TenantID, bool) {
	tenantID := requestcontext.TenantID(ctx)
	if tenantID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.TenantID{}, false
	}
	return tenantID, true
}
