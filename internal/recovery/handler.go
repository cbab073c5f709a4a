package recovery

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"ams/internal/platform/metrics"
	"ams/internal/transport/httpjson"
)

// Handler serves the mutating side of the journal: restore, soft delete,
// deletion requests, and hard delete.
type Handler struct {
	svc     *Service
	metrics *metrics.Metrics
	log     *slog.Logger
}

func NewHandler(svc *Service, m *metrics.Metrics, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, metrics: m, log: log}
}

// Register mounts the recovery routes on the given router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/journal/{logID}/restore", h.handleRestore)
	r.Post("/journal/hard-delete", h.handleHardDelete)
	r.Get("/journal/deletion-requests", h.handleListRequests)
	r.Delete("/applicants/{studentCode}", h.handleSoftDelete)
	r.Post("/applicants/{studentCode}/delete-request", h.handleRequestDelete)
}

func (h *Handler) handleRestore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := strconv.ParseInt(chi.URLParam(r, "logID"), 10, 64)
	if err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, "log id must be an integer")
		return
	}

	restored, err := h.svc.Restore(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUnsupportedTarget) {
			httpjson.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.ErrorContext(ctx, "restore failed", "audit_id", id, "error", err)
		httpjson.WriteSentinel(w, err)
		return
	}
	h.metrics.ObserveRestore()
	httpjson.Write(w, http.StatusOK, restored)
}

func (h *Handler) handleHardDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var in HardDeleteInput
	if err := httpjson.Decode(r, &in); err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	outcome, err := h.svc.HardDelete(ctx, in)
	if err != nil {
		switch {
		case errors.Is(err, ErrConfirmRequired),
			errors.Is(err, ErrUnknownReason),
			errors.Is(err, ErrReasonTextRequired),
			errors.Is(err, ErrUnsupportedTarget):
			httpjson.WriteError(w, http.StatusBadRequest, err.Error())
		default:
			h.log.ErrorContext(ctx, "hard delete failed",
				"target_id", in.TargetID, "error", err)
			httpjson.WriteSentinel(w, err)
		}
		return
	}
	h.metrics.ObserveHardDelete()
	httpjson.Write(w, http.StatusOK, outcome)
}

// requestListResponse is the paged deletion-request envelope.
type requestListResponse struct {
	Items    []DeletionRequest `json:"items"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

func (h *Handler) handleListRequests(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	page, size := 1, 50
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			httpjson.WriteError(w, http.StatusBadRequest, "invalid query parameter: page")
			return
		}
		page = n
	}
	if v := q.Get("page_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			httpjson.WriteError(w, http.StatusBadRequest, "invalid query parameter: page_size")
			return
		}
		size = n
	}
	status := strings.ToUpper(strings.TrimSpace(q.Get("status")))

	items, total, err := h.svc.ListDeletionRequests(ctx, status, page, size)
	if err != nil {
		h.log.ErrorContext(ctx, "list deletion requests", "error", err)
		httpjson.WriteSentinel(w, err)
		return
	}
	if items == nil {
		items = []DeletionRequest{}
	}
	httpjson.Write(w, http.StatusOK, requestListResponse{
		Items:    items,
		Total:    total,
		Page:     page,
		PageSize: size,
	})
}

type deleteRequestBody struct {
	Reason string `json:"reason"`
}

func (h *Handler) handleSoftDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := chi.URLParam(r, "studentCode")

	var body deleteRequestBody
	if r.Body != nil && r.ContentLength != 0 {
		if err := httpjson.Decode(r, &body); err != nil {
			httpjson.WriteError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	deleted, err := h.svc.SoftDelete(ctx, code, body.Reason)
	if err != nil {
		httpjson.WriteSentinel(w, err)
		return
	}
	httpjson.Write(w, http.StatusOK, deleted)
}

func (h *Handler) handleRequestDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := chi.URLParam(r, "studentCode")

	var body deleteRequestBody
	if err := httpjson.Decode(r, &body); err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(body.Reason) == "" {
		httpjson.WriteError(w, http.StatusBadRequest, "reason is required")
		return
	}

	req, err := h.svc.RequestDelete(ctx, code, body.Reason)
	if err != nil {
		httpjson.WriteSentinel(w, err)
		return
	}
	httpjson.Write(w, http.StatusCreated, req)
}
