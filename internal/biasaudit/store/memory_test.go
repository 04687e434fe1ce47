package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"equilens/internal/biasaudit"
	id "equilens/pkg/domain"
	"equilens/pkg/platform/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) newJob() *Job {
	return &Job{
		ID:          id.NewAuditID(),
		TenantID:    id.TenantID(uuid.New()),
		RequestedBy: id.UserID(uuid.New()),
		Status:      StatusPending,
		CreatedAt:   time.Now().UTC(),
	}
}

func (s *MemoryStoreSuite) sampleResult() *biasaudit.AuditResult {
	ratio := 0.75
	return &biasaudit.AuditResult{
		Tables: []biasaudit.CategoryTable{{
			Title:       "Sex",
			CategoryKey: "sex",
			Rows: []biasaudit.GroupResult{
				{CategoryType: "sex", CategoryName: "Female", ApplicantCount: 10, SelectedCount: 8, SelectionRate: 0.8},
				{CategoryType: "sex", CategoryName: "Male", ApplicantCount: 10, SelectedCount: 6, SelectionRate: 0.6, ImpactRatio: &ratio, Flagged: true},
			},
		}},
		TotalApplicants: 20,
		TotalSelected:   14,
		FlagsCount:      1,
	}
}

func (s *MemoryStoreSuite) TestCreateAndFind() {
	job := s.newJob()
	s.Require().NoError(s.store.CreateJob(s.ctx, job))

	s.Run("finds within owning tenant", func() {
		found, err := s.store.FindJob(s.ctx, job.TenantID, job.ID)
		s.Require().NoError(err)
		s.Equal(StatusPending, found.Status)
	})

	s.Run("other tenant sees not found", func() {
		_, err := s.store.FindJob(s.ctx, id.TenantID(uuid.New()), job.ID)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("duplicate create conflicts", func() {
		s.Require().ErrorIs(s.store.CreateJob(s.ctx, job), sentinel.ErrConflict)
	})
}

func (s *MemoryStoreSuite) TestLifecycleTransitions() {
	job := s.newJob()
	s.Require().NoError(s.store.CreateJob(s.ctx, job))

	s.Run("pending to running", func() {
		s.Require().NoError(s.store.MarkRunning(s.ctx, job.ID))
		found, err := s.store.FindJob(s.ctx, job.TenantID, job.ID)
		s.Require().NoError(err)
		s.Equal(StatusRunning, found.Status)
		s.NotNil(found.StartedAt)
	})

	s.Run("running to running rejected", func() {
		s.Require().ErrorIs(s.store.MarkRunning(s.ctx, job.ID), sentinel.ErrInvalidState)
	})

	s.Run("running to completed stores result and rows", func() {
		result := s.sampleResult()
		rows := Flatten(job.ID, result)
		s.Require().NoError(s.store.MarkCompleted(s.ctx, job.ID, result, rows))

		found, err := s.store.FindJob(s.ctx, job.TenantID, job.ID)
		s.Require().NoError(err)
		s.Equal(StatusCompleted, found.Status)
		s.Require().NotNil(found.Result)
		s.Equal(1, found.Result.FlagsCount)
		s.NotNil(found.CompletedAt)

		stored, err := s.store.ListGroupRows(s.ctx, job.TenantID, job.ID)
		s.Require().NoError(err)
		s.Require().Len(stored, 2)
		s.Equal("Female", stored[0].CategoryName)
		s.True(stored[1].Flagged)
	})

	s.Run("terminal job rejects further transitions", func() {
		s.Require().ErrorIs(s.store.MarkFailed(s.ctx, job.ID, "late failure"), sentinel.ErrInvalidState)
	})
}

func (s *MemoryStoreSuite) TestMarkFailed() {
	job := s.newJob()
	s.Require().NoError(s.store.CreateJob(s.ctx, job))
	s.Require().NoError(s.store.MarkRunning(s.ctx, job.ID))
	s.Require().NoError(s.store.MarkFailed(s.ctx, job.ID, "config invalid"))

	found, err := s.store.FindJob(s.ctx, job.TenantID, job.ID)
	s.Require().NoError(err)
	s.Equal(StatusFailed, found.Status)
	s.Equal("config invalid", found.Error)
	s.Nil(found.Result)
}

func (s *MemoryStoreSuite) TestFlatten() {
	auditID := id.NewAuditID()

	s.Run("nil result flattens to nothing", func() {
		s.Nil(Flatten(auditID, nil))
	})

	s.Run("rows preserve table order", func() {
		result := s.sampleResult()
		result.Tables = append(result.Tables, biasaudit.CategoryTable{
			Title:       "Intersectional",
			CategoryKey: "intersectional",
			Rows: []biasaudit.GroupResult{
				{CategoryType: "intersectional", CategoryName: "Female - Asian", ApplicantCount: 5, SelectedCount: 4, SelectionRate: 0.8},
			},
		})

		rows := Flatten(auditID, result)
		s.Require().Len(rows, 3)
		s.Equal("sex", rows[0].CategoryType)
		s.Equal("intersectional", rows[2].CategoryType)
		s.Equal(auditID, rows[2].AuditID)
	})
}
