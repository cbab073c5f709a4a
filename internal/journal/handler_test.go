package journal

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"ams/internal/audit"
	"ams/internal/audit/compact"
	"ams/internal/audit/redact"
	"ams/internal/audit/sign"
	auditmem "ams/internal/audit/store/memory"
	"ams/pkg/requestcontext"
)

type JournalHandlerSuite struct {
	suite.Suite
	ctx    context.Context
	audits *auditmem.Store
	writer *audit.Writer
	router chi.Router
}

func (s *JournalHandlerSuite) SetupTest() {
	s.ctx = context.Background()
	s.audits = auditmem.New()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	writer, err := audit.NewWriter(
		s.audits,
		redact.New(redact.DefaultConfig()),
		compact.New(compact.DefaultConfig()),
		sign.New("test-secret"),
		nil,
		log,
	)
	s.Require().NoError(err)
	s.writer = writer

	s.router = chi.NewRouter()
	NewHandler(s.audits, writer, log).Register(s.router)
}

func TestJournalHandlerSuite(t *testing.T) {
	suite.Run(t, new(JournalHandlerSuite))
}

func (s *JournalHandlerSuite) write(e audit.Entry) audit.Record {
	ctx := requestcontext.WithActor(s.ctx, "admin01", "Pham Quang Admin")
	rec, err := s.writer.Write(ctx, e)
	s.Require().NoError(err)
	return rec
}

func (s *JournalHandlerSuite) get(path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func (s *JournalHandlerSuite) TestListFiltersByAction() {
	s.write(audit.Entry{Action: audit.ActionUpdate, TargetType: "Applicant", TargetID: "2024000001"})
	s.write(audit.Entry{Action: audit.ActionDeleteSoft, TargetType: "Applicant", TargetID: "2024000002"})
	s.write(audit.Entry{Action: audit.ActionUpdate, TargetType: "Applicant", TargetID: "2024000003"})

	rr := s.get("/journal?action=UPDATE")
	s.Require().Equal(http.StatusOK, rr.Code)

	var resp struct {
		Items []audit.Record `json:"items"`
		Total int            `json:"total"`
	}
	s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &resp))
	s.Equal(2, resp.Total)
	for _, it := range resp.Items {
		s.Equal(audit.ActionUpdate, it.Action)
	}
}

func (s *JournalHandlerSuite) TestListPagination() {
	for i := 0; i < 5; i++ {
		s.write(audit.Entry{Action: audit.ActionUpdate, TargetType: "Applicant", TargetID: "2024000001"})
	}

	rr := s.get("/journal?page=2&page_size=2&sort=id:asc")
	s.Require().Equal(http.StatusOK, rr.Code)

	var resp struct {
		Items    []audit.Record `json:"items"`
		Total    int            `json:"total"`
		Page     int            `json:"page"`
		PageSize int            `json:"page_size"`
	}
	s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &resp))
	s.Equal(5, resp.Total)
	s.Equal(2, resp.Page)
	s.Require().Len(resp.Items, 2)
	s.Equal(int64(3), resp.Items[0].ID)
}

func (s *JournalHandlerSuite) TestListRejectsBadParameters() {
	s.Equal(http.StatusBadRequest, s.get("/journal?page=0").Code)
	s.Equal(http.StatusBadRequest, s.get("/journal?page_size=1000").Code)
	s.Equal(http.StatusBadRequest, s.get("/journal?from=01/02/2026").Code)
	s.Equal(http.StatusBadRequest, s.get("/journal?sort=integrity_signature:asc").Code)
	s.Equal(http.StatusBadRequest, s.get("/journal?sort=id:sideways").Code)
}

func (s *JournalHandlerSuite) TestDetailReportsSignatureValidity() {
	rec := s.write(audit.Entry{
		Action: audit.ActionUpdate, TargetType: "Applicant", TargetID: "2024000001",
		New: map[string]any{"phone": "0911111111"},
	})

	rr := s.get("/journal/" + itoa(rec.ID))
	s.Require().Equal(http.StatusOK, rr.Code)

	var resp struct {
		ID                       int64 `json:"id"`
		SignatureValid           bool  `json:"signature_valid"`
		AlreadyHardDeletedTarget bool  `json:"already_hard_deleted_target"`
	}
	s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &resp))
	s.Equal(rec.ID, resp.ID)
	s.True(resp.SignatureValid)
	s.False(resp.AlreadyHardDeletedTarget)
}

func (s *JournalHandlerSuite) TestDetailFlagsTamperedRecord() {
	forged := audit.Record{
		Action:     audit.ActionUpdate,
		Status:     audit.StatusSuccess,
		TargetType: "Applicant",
		TargetID:   "2024000001",
		Signature:  "deadbeef",
	}
	s.Require().NoError(s.audits.Append(s.ctx, &forged))

	rr := s.get("/journal/" + itoa(forged.ID))
	s.Require().Equal(http.StatusOK, rr.Code)

	var resp struct {
		SignatureValid bool `json:"signature_valid"`
	}
	s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &resp))
	s.False(resp.SignatureValid)
}

func (s *JournalHandlerSuite) TestDetailFlagsHardDeletedTarget() {
	early := s.write(audit.Entry{
		Action: audit.ActionUpdate, TargetType: "Applicant", TargetID: "2024000001",
	})
	s.write(audit.Entry{
		Action: audit.ActionDeleteHard, TargetType: "Applicant", TargetID: "2024000001",
		New: map[string]any{"hard_deleted": true},
	})

	rr := s.get("/journal/" + itoa(early.ID))
	s.Require().Equal(http.StatusOK, rr.Code)

	var resp struct {
		AlreadyHardDeletedTarget bool `json:"already_hard_deleted_target"`
	}
	s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &resp))
	s.True(resp.AlreadyHardDeletedTarget)
}

func (s *JournalHandlerSuite) TestDetailNotFound() {
	s.Equal(http.StatusNotFound, s.get("/journal/424242").Code)
	s.Equal(http.StatusBadRequest, s.get("/journal/abc").Code)
}

func (s *JournalHandlerSuite) TestTrackRecordsClientEvent() {
	body := `{"action":"print_in","target_type":"Applicant","target_id":"2024000001","detail":{"scope":"page","count":12}}`
	req := httptest.NewRequest(http.MethodPost, "/journal/track", strings.NewReader(body))
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	s.Require().Equal(http.StatusCreated, rr.Code)

	recs := s.audits.All()
	s.Require().Len(recs, 1)
	s.Equal(audit.Action("PRINT_IN"), recs[0].Action)
	s.Equal("2024000001", recs[0].TargetID)
	s.Equal(float64(12), recs[0].NewValues["count"])
}

func (s *JournalHandlerSuite) TestTrackRequiresAction() {
	req := httptest.NewRequest(http.MethodPost, "/journal/track", strings.NewReader(`{"detail":{}}`))
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	s.Equal(http.StatusBadRequest, rr.Code)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
