//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"equilens/internal/biasaudit"
	"equilens/internal/biasaudit/store"
	id "equilens/pkg/domain"
	"equilens/pkg/platform/sentinel"
	"equilens/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.Postgres
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.Require().NoError(s.store.EnsureSchema(context.Background()))
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	// Truncate in dependency order
	err := s.postgres.TruncateTables(ctx, "audit_group_results", "audit_jobs")
	s.Require().NoError(err)
}

func newTestJob() *store.Job {
	return &store.Job{
		ID:          id.NewAuditID(),
		TenantID:    id.TenantID(uuid.New()),
		RequestedBy: id.UserID(uuid.New()),
		Status:      store.StatusPending,
		CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}
}

func testResult() *biasaudit.AuditResult {
	ratio := 0.5
	full := 1.0
	return &biasaudit.AuditResult{
		Tables: []biasaudit.CategoryTable{{
			Title:       "Sex",
			CategoryKey: "sex",
			Rows: []biasaudit.GroupResult{
				{CategoryType: "sex", CategoryName: "Female", ApplicantCount: 50, SelectedCount: 40, SelectionRate: 0.8, ImpactRatio: &full},
				{CategoryType: "sex", CategoryName: "Male", ApplicantCount: 50, SelectedCount: 20, SelectionRate: 0.4, ImpactRatio: &ratio, Flagged: true},
			},
			HighestGroup: "Female",
			HighestRate:  &full,
		}},
		OverallSelectionRate: 0.6,
		TotalApplicants:      100,
		TotalSelected:        60,
		FlagsCount:           1,
		Summary:              "Audited 100 applicants, 60 selected (60.0% overall selection rate).",
	}
}

func (s *PostgresStoreSuite) TestCreateAndFind() {
	ctx := context.Background()
	job := newTestJob()

	s.Require().NoError(s.store.CreateJob(ctx, job))

	found, err := s.store.FindJob(ctx, job.TenantID, job.ID)
	s.Require().NoError(err)
	s.Equal(store.StatusPending, found.Status)
	s.Nil(found.Result)
	s.Nil(found.StartedAt)

	s.Run("duplicate create conflicts", func() {
		s.Require().ErrorIs(s.store.CreateJob(ctx, job), sentinel.ErrConflict)
	})

	s.Run("other tenant sees not found", func() {
		_, err := s.store.FindJob(ctx, id.TenantID(uuid.New()), job.ID)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *PostgresStoreSuite) TestFullLifecycle() {
	ctx := context.Background()
	job := newTestJob()
	s.Require().NoError(s.store.CreateJob(ctx, job))
	s.Require().NoError(s.store.MarkRunning(ctx, job.ID))

	result := testResult()
	rows := store.Flatten(job.ID, result)
	s.Require().NoError(s.store.MarkCompleted(ctx, job.ID, result, rows))

	found, err := s.store.FindJob(ctx, job.TenantID, job.ID)
	s.Require().NoError(err)
	s.Equal(store.StatusCompleted, found.Status)
	s.Require().NotNil(found.Result)
	s.Equal(100, found.Result.TotalApplicants)
	s.Require().NotNil(found.Result.Tables[0].HighestRate)
	s.NotNil(found.CompletedAt)

	stored, err := s.store.ListGroupRows(ctx, job.TenantID, job.ID)
	s.Require().NoError(err)
	s.Require().Len(stored, 2)
	s.Equal("Female", stored[0].CategoryName)
	s.Require().NotNil(stored[0].ImpactRatio)
	s.Require().NotNil(stored[1].ImpactRatio)
	s.InDelta(0.5, *stored[1].ImpactRatio, 1e-9)
	s.True(stored[1].Flagged)
}

func (s *PostgresStoreSuite) TestTransitionGuards() {
	ctx := context.Background()
	job := newTestJob()
	s.Require().NoError(s.store.CreateJob(ctx, job))

	s.Run("completing a pending job is allowed", func() {
		// The worker may fail before MarkRunning lands; completion only
		// requires a non-terminal status.
		s.Require().NoError(s.store.MarkCompleted(ctx, job.ID, testResult(), nil))
	})

	s.Run("terminal job rejects transitions", func() {
		s.Require().ErrorIs(s.store.MarkRunning(ctx, job.ID), sentinel.ErrInvalidState)
		s.Require().ErrorIs(s.store.MarkFailed(ctx, job.ID, "late"), sentinel.ErrInvalidState)
	})
}

func (s *PostgresStoreSuite) TestMarkFailed() {
	ctx := context.Background()
	job := newTestJob()
	s.Require().NoError(s.store.CreateJob(ctx, job))
	s.Require().NoError(s.store.MarkRunning(ctx, job.ID))
	s.Require().NoError(s.store.MarkFailed(ctx, job.ID, "validation_error: intersectional analysis requires at least two cross keys"))

	found, err := s.store.FindJob(ctx, job.TenantID, job.ID)
	s.Require().NoError(err)
	s.Equal(store.StatusFailed, found.Status)
	s.Contains(found.Error, "intersectional")
}
