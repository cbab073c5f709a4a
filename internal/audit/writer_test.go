package audit_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"ams/internal/audit"
	"ams/internal/audit/compact"
	"ams/internal/audit/redact"
	"ams/internal/audit/sign"
	auditmem "ams/internal/audit/store/memory"
	"ams/pkg/requestcontext"
)

type WriterSuite struct {
	suite.Suite
	store  *auditmem.Store
	writer *audit.Writer
}

func (s *WriterSuite) SetupTest() {
	s.store = auditmem.New()
	w, err := audit.NewWriter(
		s.store,
		redact.New(redact.DefaultConfig()),
		compact.New(compact.DefaultConfig()),
		sign.New("test-secret"),
		nil,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	s.Require().NoError(err)
	s.writer = w
}

func TestWriterSuite(t *testing.T) {
	suite.Run(t, new(WriterSuite))
}

func (s *WriterSuite) TestWriteExtractsRequestContext() {
	at := time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC)
	ctx := requestcontext.WithActor(context.Background(), "u-1", "Tran Thi B")
	ctx = requestcontext.WithClientMetadata(ctx, "10.1.2.3", "Firefox 128 (Linux)")
	ctx = requestcontext.WithPath(ctx, "/applicants/batch-update")
	ctx = requestcontext.WithCorrelationID(ctx, "corr-42")
	ctx = requestcontext.WithTime(ctx, at)

	rec, err := s.writer.Write(ctx, audit.Entry{
		Action:     audit.ActionUpdate,
		TargetType: "Applicant",
		TargetID:   "2024000001",
		Prev:       map[string]any{"phone": "0900000000"},
		New:        map[string]any{"phone": "0911111111"},
	})
	s.Require().NoError(err)

	s.NotZero(rec.ID)
	s.Equal(audit.StatusSuccess, rec.Status)
	s.Equal("u-1", rec.ActorID)
	s.Equal("Tran Thi B", rec.ActorName)
	s.Equal("10.1.2.3", rec.IPAddress)
	s.Equal("/applicants/batch-update", rec.Path)
	s.Equal("corr-42", rec.CorrelationID)
	s.Equal(at, rec.OccurredAt)
	s.True(s.writer.SignatureValid(rec))
}

func (s *WriterSuite) TestWriteRedactsSensitiveValues() {
	rec, err := s.writer.Write(context.Background(), audit.Entry{
		Action:     audit.ActionCreate,
		TargetType: "User",
		TargetID:   "staff01",
		New: map[string]any{
			"username": "staff01",
			"password": "hunter2",
			"profile":  map[string]any{"api_key": "k"},
		},
	})
	s.Require().NoError(err)

	s.Equal(redact.Marker, rec.NewValues["password"])
	profile := rec.NewValues["profile"].(map[string]any)
	s.Equal(redact.Marker, profile["api_key"])
	s.Equal("staff01", rec.NewValues["username"])
}

func (s *WriterSuite) TestWriteNormalizesPayloadShapes() {
	s.Run("nil becomes empty map", func() {
		rec, err := s.writer.Write(context.Background(), audit.Entry{Action: audit.ActionPrint})
		s.Require().NoError(err)
		s.NotNil(rec.PrevValues)
		s.Empty(rec.PrevValues)
		s.NotNil(rec.NewValues)
	})

	s.Run("json string is parsed", func() {
		rec, err := s.writer.Write(context.Background(), audit.Entry{
			Action: audit.ActionExport,
			New:    `{"scope":"all","count":12}`,
		})
		s.Require().NoError(err)
		s.Equal("all", rec.NewValues["scope"])
	})

	s.Run("non-json string is wrapped", func() {
		rec, err := s.writer.Write(context.Background(), audit.Entry{
			Action: audit.ActionExport,
			New:    "plain note",
		})
		s.Require().NoError(err)
		s.Equal("plain note", rec.NewValues["_raw"])
	})

	s.Run("scalar is wrapped", func() {
		rec, err := s.writer.Write(context.Background(), audit.Entry{
			Action: audit.ActionExport,
			New:    42,
		})
		s.Require().NoError(err)
		s.Equal(42, rec.NewValues["_raw"])
	})
}

func (s *WriterSuite) TestWriteKeepsExplicitFailStatus() {
	rec, err := s.writer.Write(context.Background(), audit.Entry{
		Action: audit.ActionDeleteHard,
		Status: audit.StatusFail,
	})
	s.Require().NoError(err)
	s.Equal(audit.StatusFail, rec.Status)
}

func (s *WriterSuite) TestSignatureInvalidAfterMutation() {
	rec, err := s.writer.Write(context.Background(), audit.Entry{
		Action: audit.ActionUpdate,
		New:    map[string]any{"phone": "0911111111"},
	})
	s.Require().NoError(err)

	rec.NewValues["phone"] = "0922222222"
	s.False(s.writer.SignatureValid(rec))
}

func (s *WriterSuite) TestStoreFailurePropagates() {
	w, err := audit.NewWriter(
		failStore{},
		redact.New(redact.DefaultConfig()),
		compact.New(compact.DefaultConfig()),
		sign.New("test-secret"),
		nil,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	s.Require().NoError(err)

	_, err = w.Write(context.Background(), audit.Entry{Action: audit.ActionUpdate})
	s.Require().Error(err)
	s.ErrorContains(err, "append audit record")
}

type failStore struct{}

func (failStore) Append(context.Context, *audit.Record) error {
	return errors.New("connection reset")
}

func (failStore) FindByID(context.Context, int64) (audit.Record, error) {
	return audit.Record{}, errors.New("unused")
}

func (failStore) List(context.Context, audit.Filter) ([]audit.Record, int, error) {
	return nil, 0, errors.New("unused")
}

func (failStore) HasAction(context.Context, string, string, audit.Action) (bool, error) {
	return false, errors.New("unused")
}
