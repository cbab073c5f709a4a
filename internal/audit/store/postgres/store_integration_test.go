//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"ams/internal/audit"
	"ams/internal/audit/store/postgres"
	"ams/pkg/sentinel"
	"ams/pkg/sqltx"
	"ams/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.Store
	runner   *sqltx.DB
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetPostgres(s.T())
	s.store = postgres.New(s.postgres.DB)
	s.runner = sqltx.NewDB(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx, "audit_logs")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) append(rec audit.Record) audit.Record {
	if rec.Status == "" {
		rec.Status = audit.StatusSuccess
	}
	if rec.OccurredAt.IsZero() {
		rec.OccurredAt = time.Now().UTC()
	}
	if rec.PrevValues == nil {
		rec.PrevValues = map[string]any{}
	}
	if rec.NewValues == nil {
		rec.NewValues = map[string]any{}
	}
	if rec.Signature == "" {
		rec.Signature = "0000"
	}
	err := s.store.Append(context.Background(), &rec)
	s.Require().NoError(err)
	s.Require().NotZero(rec.ID)
	return rec
}

func (s *PostgresStoreSuite) TestAppendAndFindByID() {
	ctx := context.Background()
	occurred := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	rec := s.append(audit.Record{
		Action:        audit.ActionUpdate,
		TargetType:    "Applicant",
		TargetID:      "2024000001",
		PrevValues:    map[string]any{"phone": "0901234567"},
		NewValues:     map[string]any{"phone": "0912345678"},
		ActorID:       "admin01",
		ActorName:     "Pham Quang Admin",
		IPAddress:     "10.0.0.7",
		Path:          "/applicants/2024000001",
		CorrelationID: "corr-1",
		OccurredAt:    occurred,
		Signature:     "abcd1234",
	})

	got, err := s.store.FindByID(ctx, rec.ID)
	s.Require().NoError(err)
	s.Equal(audit.ActionUpdate, got.Action)
	s.Equal(audit.StatusSuccess, got.Status)
	s.Equal("Applicant", got.TargetType)
	s.Equal("2024000001", got.TargetID)
	s.Equal("0901234567", got.PrevValues["phone"])
	s.Equal("0912345678", got.NewValues["phone"])
	s.Equal("Pham Quang Admin", got.ActorName)
	s.Equal("corr-1", got.CorrelationID)
	s.Equal("abcd1234", got.Signature)
	s.True(got.OccurredAt.Equal(occurred))
}

func (s *PostgresStoreSuite) TestFindByIDMissing() {
	_, err := s.store.FindByID(context.Background(), 424242)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestNullableColumnsComeBackEmpty() {
	ctx := context.Background()
	rec := s.append(audit.Record{Action: audit.ActionPrintIn})

	got, err := s.store.FindByID(ctx, rec.ID)
	s.Require().NoError(err)
	s.Empty(got.TargetType)
	s.Empty(got.TargetID)
	s.Empty(got.ActorID)
	s.Empty(got.ActorName)
	s.Empty(got.IPAddress)
	s.Empty(got.Path)
	s.Empty(got.CorrelationID)
}

func (s *PostgresStoreSuite) TestListFilters() {
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	s.append(audit.Record{
		Action: audit.ActionUpdate, TargetType: "Applicant", TargetID: "2024000001",
		ActorName: "Pham Quang Admin", OccurredAt: base,
	})
	s.append(audit.Record{
		Action: audit.ActionDeleteSoft, TargetType: "Applicant", TargetID: "2024000002",
		ActorName: "Tran Thi Staff", OccurredAt: base.Add(time.Hour),
	})
	s.append(audit.Record{
		Action: audit.ActionUpdate, TargetType: "User", TargetID: "staff01",
		ActorName: "Pham Quang Admin", OccurredAt: base.Add(2 * time.Hour),
	})

	s.Run("by action", func() {
		recs, total, err := s.store.List(ctx, audit.Filter{Action: "UPDATE"})
		s.Require().NoError(err)
		s.Equal(2, total)
		s.Len(recs, 2)
	})

	s.Run("by target", func() {
		recs, total, err := s.store.List(ctx, audit.Filter{TargetType: "Applicant", TargetID: "2024000002"})
		s.Require().NoError(err)
		s.Equal(1, total)
		s.Require().Len(recs, 1)
		s.Equal(audit.ActionDeleteSoft, recs[0].Action)
	})

	s.Run("by actor contains, case-insensitive", func() {
		_, total, err := s.store.List(ctx, audit.Filter{Actor: "quang"})
		s.Require().NoError(err)
		s.Equal(2, total)
	})

	s.Run("free-text query spans target id", func() {
		_, total, err := s.store.List(ctx, audit.Filter{Query: "staff01"})
		s.Require().NoError(err)
		s.Equal(1, total)
	})

	s.Run("time window from inclusive, to exclusive", func() {
		_, total, err := s.store.List(ctx, audit.Filter{
			From: base.Add(time.Hour),
			To:   base.Add(2 * time.Hour),
		})
		s.Require().NoError(err)
		s.Equal(1, total)
	})
}

func (s *PostgresStoreSuite) TestListSortAndPagination() {
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		s.append(audit.Record{
			Action: audit.ActionUpdate, TargetType: "Applicant", TargetID: "2024000001",
			OccurredAt: base.Add(time.Duration(i) * time.Minute),
		})
	}

	recs, total, err := s.store.List(ctx, audit.Filter{
		Page: 2, PageSize: 2, SortField: "id", SortDir: "asc",
	})
	s.Require().NoError(err)
	s.Equal(5, total)
	s.Require().Len(recs, 2)
	s.Equal(int64(3), recs[0].ID)
	s.Equal(int64(4), recs[1].ID)

	// Default sort is newest first.
	recs, _, err = s.store.List(ctx, audit.Filter{PageSize: 1})
	s.Require().NoError(err)
	s.Require().Len(recs, 1)
	s.Equal(int64(5), recs[0].ID)
}

func (s *PostgresStoreSuite) TestHasAction() {
	ctx := context.Background()
	s.append(audit.Record{
		Action: audit.ActionDeleteHard, TargetType: "Applicant", TargetID: "2024000001",
	})

	ok, err := s.store.HasAction(ctx, "Applicant", "2024000001", audit.ActionDeleteHard)
	s.Require().NoError(err)
	s.True(ok)

	ok, err = s.store.HasAction(ctx, "Applicant", "2024000002", audit.ActionDeleteHard)
	s.Require().NoError(err)
	s.False(ok)
}

func (s *PostgresStoreSuite) TestAppendJoinsContextTransaction() {
	ctx := context.Background()

	s.Run("rollback leaves no record", func() {
		err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
			rec := audit.Record{
				Action: audit.ActionUpdate, Status: audit.StatusSuccess,
				TargetType: "Applicant", TargetID: "2024000001",
				PrevValues: map[string]any{}, NewValues: map[string]any{},
				OccurredAt: time.Now().UTC(), Signature: "0000",
			}
			if err := s.store.Append(ctx, &rec); err != nil {
				return err
			}
			return sqltx.ErrRollback
		})
		s.Require().NoError(err)

		_, total, err := s.store.List(ctx, audit.Filter{})
		s.Require().NoError(err)
		s.Zero(total)
	})

	s.Run("commit persists the record", func() {
		var id int64
		err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
			rec := audit.Record{
				Action: audit.ActionUpdate, Status: audit.StatusSuccess,
				TargetType: "Applicant", TargetID: "2024000001",
				PrevValues: map[string]any{}, NewValues: map[string]any{},
				OccurredAt: time.Now().UTC(), Signature: "0000",
			}
			if err := s.store.Append(ctx, &rec); err != nil {
				return err
			}
			id = rec.ID
			return nil
		})
		s.Require().NoError(err)

		_, err = s.store.FindByID(ctx, id)
		s.Require().NoError(err)
	})
}
