package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"equilens/internal/biasaudit/service"
	"equilens/internal/biasaudit/store"
	id "equilens/pkg/domain"
	"equilens/pkg/requestcontext"
)

// HandlerSuite exercises the HTTP surface against real in-memory components,
// not mocks. A test middleware injects the authenticated tenant.
type HandlerSuite struct {
	suite.Suite
	router   http.Handler
	tenantID id.TenantID
	cancel   context.CancelFunc
	done     chan struct{}
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	svc, err := service.New(store.NewInMemory(), logger)
	s.Require().NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		_ = service.NewWorker(svc).Run(ctx)
	}()

	s.tenantID = id.TenantID(uuid.New())
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			reqCtx := requestcontext.WithTenantID(req.Context(), s.tenantID)
			next.ServeHTTP(w, req.WithContext(reqCtx))
		})
	})
	New(svc, logger).Register(r)
	s.router = r
}

func (s *HandlerSuite) TearDownTest() {
	s.cancel()
	<-s.done
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) submitBody() []byte {
	body := map[string]any{
		"records": []map[string]any{
			{"attributes": map[string]string{"sex": "Female"}, "selected": true},
			{"attributes": map[string]string{"sex": "Female"}, "selected": true},
			{"attributes": map[string]string{"sex": "Male"}, "selected": true},
			{"attributes": map[string]string{"sex": "Male"}, "selected": false},
		},
		"config": map[string]any{
			"categories": map[string]any{"sex": map[string]any{"label": "Sex"}},
			"threshold":  0.80,
		},
		"unknown_count": 1,
	}
	encoded, err := json.Marshal(body)
	s.Require().NoError(err)
	return encoded
}

func (s *HandlerSuite) do(method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

// awaitCompleted polls the GET endpoint until the audit is terminal.
func (s *HandlerSuite) awaitCompleted(auditID string) AuditResponse {
	s.T().Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case <-deadline:
			s.FailNow("audit never completed")
		case <-time.After(10 * time.Millisecond):
		}
		rec := s.do(http.MethodGet, "/v1/audits/"+auditID, nil)
		s.Require().Equal(http.StatusOK, rec.Code)
		var resp AuditResponse
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
		if resp.Status == string(store.StatusCompleted) || resp.Status == string(store.StatusFailed) {
			return resp
		}
	}
}

func (s *HandlerSuite) TestSubmitAcceptsAudit() {
	rec := s.do(http.MethodPost, "/v1/audits", s.submitBody())
	s.Require().Equal(http.StatusAccepted, rec.Code)

	var resp AuditResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	s.NotEmpty(resp.ID)
	s.Equal("pending", resp.Status)

	final := s.awaitCompleted(resp.ID)
	s.Equal("completed", final.Status)
	s.Require().NotNil(final.Result)
	s.Equal(4, final.Result.TotalApplicants)
	s.Equal(1, final.Result.UnknownCount)
	s.Equal(1, final.Result.FlagsCount) // Male at 0.5 vs Female's 1.0
}

func (s *HandlerSuite) TestGroupRowsEndpoint() {
	rec := s.do(http.MethodPost, "/v1/audits", s.submitBody())
	s.Require().Equal(http.StatusAccepted, rec.Code)
	var submitted AuditResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&submitted))
	s.awaitCompleted(submitted.ID)

	groupsRec := s.do(http.MethodGet, fmt.Sprintf("/v1/audits/%s/groups", submitted.ID), nil)
	s.Require().Equal(http.StatusOK, groupsRec.Code)

	var resp GroupRowsResponse
	s.Require().NoError(json.NewDecoder(groupsRec.Body).Decode(&resp))
	s.Equal(submitted.ID, resp.AuditID)
	s.Require().Len(resp.Rows, 2)
	s.Equal("sex", resp.Rows[0].CategoryType)
	s.Equal("Female", resp.Rows[0].CategoryName)
}

func (s *HandlerSuite) TestSubmitInvalidJSON() {
	rec := s.do(http.MethodPost, "/v1/audits", []byte("not valid json"))
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestSubmitRejectsNonBooleanSelected() {
	body := []byte(`{
		"records": [{"attributes": {"sex": "Female"}}],
		"config": {"categories": {"sex": {"label": "Sex"}}}
	}`)
	rec := s.do(http.MethodPost, "/v1/audits", body)
	s.Require().Equal(http.StatusBadRequest, rec.Code)
	s.Contains(rec.Body.String(), "selected")
}

func (s *HandlerSuite) TestSubmitRejectsBadIntersectionalConfig() {
	body := []byte(`{
		"records": [{"attributes": {"sex": "Female"}, "selected": true}],
		"config": {
			"categories": {"sex": {"label": "Sex"}},
			"intersectional": {"required": true, "cross": ["sex"]}
		}
	}`)
	rec := s.do(http.MethodPost, "/v1/audits", body)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestGetUnknownAudit() {
	rec := s.do(http.MethodGet, "/v1/audits/"+uuid.NewString(), nil)
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *HandlerSuite) TestGetMalformedAuditID() {
	rec := s.do(http.MethodGet, "/v1/audits/not-a-uuid", nil)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestUnauthenticatedRequestRejected() {
	// Router without the tenant-injecting middleware.
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	svc, err := service.New(store.NewInMemory(), logger)
	s.Require().NoError(err)
	r := chi.NewRouter()
	New(svc, logger).Register(r)

	req := httptest.NewRequest(http.MethodPost, "/v1/audits", bytes.NewReader(s.submitBody()))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	s.Equal(http.StatusUnauthorized, rec.Code)
}
