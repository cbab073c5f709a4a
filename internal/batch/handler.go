package batch

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ams/internal/platform/metrics"
	"ams/internal/transport/httpjson"
)

// maxBatchItems caps one request so a single call cannot hold the transaction
// open indefinitely.
const maxBatchItems = 5000

// Handler serves the bulk update endpoint.
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

// Register mounts the batch routes on the given router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/applicants/batch-update", h.handleBatchUpdate)
}

type batchRequest struct {
	Items       []Item `json:"items"`
	StopOnError bool   `json:"stop_on_error"`
	DryRun      bool   `json:"dry_run"`
}

func (h *Handler) handleBatchUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req batchRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Items) > maxBatchItems {
		httpjson.WriteError(w, http.StatusBadRequest, "too many items in one batch")
		return
	}

	res, err := h.svc.ApplyBatch(ctx, req.Items, req.StopOnError, req.DryRun)
	if err != nil {
		if errors.Is(err, ErrEmptyBatch) {
			httpjson.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.ErrorContext(ctx, "batch update failed",
			"correlation_id", res.CorrelationID, "error", err)
		httpjson.WriteSentinel(w, err)
		return
	}

	for _, row := range res.Rows {
		h.metrics.ObserveBatchRow(string(row.Status))
	}
	httpjson.Write(w, http.StatusOK, res)
}
