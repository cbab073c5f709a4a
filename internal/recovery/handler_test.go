package recovery_test

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

	"ams/internal/applicant"
	applicantmem "ams/internal/applicant/store/memory"
	"ams/internal/audit"
	"ams/internal/audit/compact"
	"ams/internal/audit/redact"
	"ams/internal/audit/sign"
	auditmem "ams/internal/audit/store/memory"
	"ams/internal/recovery"
	recoverymem "ams/internal/recovery/store/memory"
)

type RecoveryHandlerSuite struct {
	suite.Suite
	ctx        context.Context
	applicants *applicantmem.Store
	audits     *auditmem.Store
	writer     *audit.Writer
	router     chi.Router
}

func (s *RecoveryHandlerSuite) SetupTest() {
	s.ctx = context.Background()
	s.applicants = applicantmem.New()
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

	svc, err := recovery.NewService(s.audits, writer, s.applicants, recoverymem.New(), nil, log)
	s.Require().NoError(err)

	s.router = chi.NewRouter()
	recovery.NewHandler(svc, nil, log).Register(s.router)

	s.Require().NoError(s.applicants.Save(s.ctx, &applicant.Applicant{
		StudentCode: "2024000001",
		FamilyName:  "Nguyen",
		GivenName:   "Van An",
		FullName:    "Nguyen Van An",
		Phone:       "0901234567",
	}))
}

func TestRecoveryHandlerSuite(t *testing.T) {
	suite.Run(t, new(RecoveryHandlerSuite))
}

func (s *RecoveryHandlerSuite) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func (s *RecoveryHandlerSuite) TestRestoreEndpoint() {
	rec, err := s.writer.Write(s.ctx, audit.Entry{
		Action:     audit.ActionUpdate,
		TargetType: applicant.TargetType,
		TargetID:   "2024000001",
		Prev:       map[string]any{"phone": "0900000000"},
		New:        map[string]any{"phone": "0901234567"},
	})
	s.Require().NoError(err)

	rr := s.do(http.MethodPost, "/journal/"+strconv.FormatInt(rec.ID, 10)+"/restore", "")
	s.Require().Equal(http.StatusOK, rr.Code)

	var restored applicant.Applicant
	s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &restored))
	s.Equal("0900000000", restored.Phone)
}

func (s *RecoveryHandlerSuite) TestRestoreErrorMapping() {
	s.Run("missing record is 404", func() {
		rr := s.do(http.MethodPost, "/journal/9999/restore", "")
		s.Equal(http.StatusNotFound, rr.Code)
	})

	s.Run("hard-deleted target is 410 with reason", func() {
		rec, err := s.writer.Write(s.ctx, audit.Entry{
			Action:     audit.ActionDeleteHard,
			TargetType: applicant.TargetType,
			TargetID:   "2024000001",
			New:        map[string]any{"hard_deleted": true},
		})
		s.Require().NoError(err)

		rr := s.do(http.MethodPost, "/journal/"+strconv.FormatInt(rec.ID, 10)+"/restore", "")
		s.Require().Equal(http.StatusGone, rr.Code)

		var body struct {
			Reason string `json:"reason"`
		}
		s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &body))
		s.Equal("hard_deleted", body.Reason)
	})

	s.Run("non-numeric id is 400", func() {
		rr := s.do(http.MethodPost, "/journal/abc/restore", "")
		s.Equal(http.StatusBadRequest, rr.Code)
	})
}

func (s *RecoveryHandlerSuite) TestSoftDeleteEndpoint() {
	rr := s.do(http.MethodDelete, "/applicants/2024000001", `{"reason":"withdrawn"}`)
	s.Require().Equal(http.StatusOK, rr.Code)

	got, err := s.applicants.Get(s.ctx, "2024000001")
	s.Require().NoError(err)
	s.True(got.IsSoftDeleted())

	// Second soft delete conflicts.
	rr = s.do(http.MethodDelete, "/applicants/2024000001", `{"reason":"again"}`)
	s.Equal(http.StatusConflict, rr.Code)
}

func (s *RecoveryHandlerSuite) TestDeleteRequestEndpoint() {
	rr := s.do(http.MethodPost, "/applicants/2024000001/delete-request", `{"reason":"duplicate"}`)
	s.Require().Equal(http.StatusCreated, rr.Code)

	var req recovery.DeletionRequest
	s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &req))
	s.Equal(recovery.RequestPending, req.Status)
	s.NotZero(req.AuditLogID)

	rr = s.do(http.MethodPost, "/applicants/2024000001/delete-request", `{"reason":""}`)
	s.Equal(http.StatusBadRequest, rr.Code)

	rr = s.do(http.MethodGet, "/journal/deletion-requests?status=PENDING", "")
	s.Require().Equal(http.StatusOK, rr.Code)

	var list struct {
		Items []recovery.DeletionRequest `json:"items"`
		Total int                        `json:"total"`
	}
	s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &list))
	s.Equal(1, list.Total)
}

func (s *RecoveryHandlerSuite) TestHardDeleteEndpoint() {
	body := `{"target_type":"Applicant","target_id":"2024000001","confirm":"CONFIRM_DELETE","reason_code":"TEST_DATA"}`
	rr := s.do(http.MethodPost, "/journal/hard-delete", body)
	s.Require().Equal(http.StatusOK, rr.Code)

	var outcome recovery.HardDeleteOutcome
	s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &outcome))
	s.Equal("2024000001", outcome.TargetID)

	s.Run("validation failures are 400", func() {
		bad := `{"target_type":"Applicant","target_id":"2024000001","confirm":"ok","reason_code":"TEST_DATA"}`
		s.Equal(http.StatusBadRequest, s.do(http.MethodPost, "/journal/hard-delete", bad).Code)

		bad = `{"target_type":"Applicant","target_id":"2024000001","confirm":"CONFIRM_DELETE","reason_code":"NOPE"}`
		s.Equal(http.StatusBadRequest, s.do(http.MethodPost, "/journal/hard-delete", bad).Code)
	})

	s.Run("deleted target is then 404", func() {
		s.Equal(http.StatusNotFound, s.do(http.MethodPost, "/journal/hard-delete", body).Code)
	})
}
