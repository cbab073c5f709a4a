// Package journal exposes the audit log over HTTP: filtered listing, detail
// with integrity and lifecycle flags, and the client-event track endpoint.
package journal

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"ams/internal/audit"
	"ams/internal/transport/httpjson"
)

// maxPageSize caps list pagination.
const maxPageSize = 500

// Handler serves the read side of the audit log.
type Handler struct {
	audits audit.Store
	writer *audit.Writer
	log    *slog.Logger
}

func NewHandler(audits audit.Store, writer *audit.Writer, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{audits: audits, writer: writer, log: log}
}

// Register mounts the journal routes on the given router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/journal", h.handleList)
	r.Get("/journal/{logID}", h.handleDetail)
	r.Post("/journal/track", h.handleTrack)
}

// listResponse is the paged listing envelope.
type listResponse struct {
	Items    []audit.Record `json:"items"`
	Total    int            `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	f, err := parseFilter(r)
	if err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := h.audits.List(ctx, f)
	if err != nil {
		h.log.ErrorContext(ctx, "list audit records", "error", err)
		httpjson.WriteSentinel(w, err)
		return
	}
	if items == nil {
		items = []audit.Record{}
	}
	httpjson.Write(w, http.StatusOK, listResponse{
		Items:    items,
		Total:    total,
		Page:     f.Page,
		PageSize: f.PageSize,
	})
}

// detailResponse augments a record with flags only computable server-side:
// whether its stored signature still verifies, and whether the target has
// since been hard-deleted (which makes restore pointless).
type detailResponse struct {
	audit.Record
	SignatureValid           bool `json:"signature_valid"`
	AlreadyHardDeletedTarget bool `json:"already_hard_deleted_target"`
}

func (h *Handler) handleDetail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := strconv.ParseInt(chi.URLParam(r, "logID"), 10, 64)
	if err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, "log id must be an integer")
		return
	}

	rec, err := h.audits.FindByID(ctx, id)
	if err != nil {
		httpjson.WriteSentinel(w, err)
		return
	}

	resp := detailResponse{
		Record:         rec,
		SignatureValid: h.writer.SignatureValid(rec),
	}
	if rec.TargetType != "" && rec.TargetID != "" {
		gone, err := h.audits.HasAction(ctx, rec.TargetType, rec.TargetID, audit.ActionDeleteHard)
		if err != nil {
			h.log.ErrorContext(ctx, "check hard-delete marker", "audit_id", id, "error", err)
			httpjson.WriteSentinel(w, err)
			return
		}
		resp.AlreadyHardDeletedTarget = gone || rec.MarksHardDeleted()
	}
	httpjson.Write(w, http.StatusOK, resp)
}

// trackRequest records a client-side event (print, export) that mutates
// nothing server-side but still belongs in the journal.
type trackRequest struct {
	Action     string         `json:"action"`
	TargetType string         `json:"target_type"`
	TargetID   string         `json:"target_id"`
	Detail     map[string]any `json:"detail"`
}

func (h *Handler) handleTrack(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req trackRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	action := strings.ToUpper(strings.TrimSpace(req.Action))
	if action == "" {
		httpjson.WriteError(w, http.StatusBadRequest, "action is required")
		return
	}

	rec, err := h.writer.Write(ctx, audit.Entry{
		Action:     audit.Action(action),
		TargetType: req.TargetType,
		TargetID:   req.TargetID,
		New:        req.Detail,
	})
	if err != nil {
		h.log.ErrorContext(ctx, "track event", "action", action, "error", err)
		httpjson.WriteSentinel(w, err)
		return
	}
	httpjson.Write(w, http.StatusCreated, map[string]any{"id": rec.ID})
}

// parseFilter builds the store filter from query parameters. Dates accept
// yyyy-mm-dd; the "to" day is included by pushing the exclusive upper bound to
// the following midnight.
func parseFilter(r *http.Request) (audit.Filter, error) {
	q := r.URL.Query()
	f := audit.Filter{
		Action:     strings.TrimSpace(q.Get("action")),
		TargetType: strings.TrimSpace(q.Get("target_type")),
		TargetID:   strings.TrimSpace(q.Get("target_id")),
		Query:      strings.TrimSpace(q.Get("q")),
		Actor:      strings.TrimSpace(q.Get("actor")),
		Page:       1,
		PageSize:   50,
	}

	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return f, errParam("page")
		}
		f.Page = n
	}
	if v := q.Get("page_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxPageSize {
			return f, errParam("page_size")
		}
		f.PageSize = n
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return f, errParam("from")
		}
		f.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return f, errParam("to")
		}
		f.To = t.AddDate(0, 0, 1)
	}
	if v := q.Get("sort"); v != "" {
		field, dir, ok := strings.Cut(v, ":")
		if !ok {
			field, dir = v, "desc"
		}
		if !sortFields[field] || (dir != "asc" && dir != "desc") {
			return f, errParam("sort")
		}
		f.SortField = field
		f.SortDir = dir
	}
	return f, nil
}

var sortFields = map[string]bool{
	"id":          true,
	"occurred_at": true,
	"action":      true,
	"target_type": true,
	"target_id":   true,
	"actor_name":  true,
}

type errParam string

func (e errParam) Error() string { return "invalid query parameter: " + string(e) }
