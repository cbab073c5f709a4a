package account

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ams/internal/transport/httpjson"
	"ams/pkg/requestcontext"
)

// Handler serves the staff account endpoints. Login is the only route meant
// to be mounted outside the authenticated router.
type Handler struct {
	svc *Service
	log *slog.Logger
}

func NewHandler(svc *Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, log: log}
}

// RegisterPublic mounts the unauthenticated routes.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/auth/login", h.handleLogin)
}

// Register mounts the authenticated account routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/accounts", h.handleList)
	r.Post("/accounts", h.handleCreate)
	r.Patch("/accounts/{username}", h.handleUpdate)
	r.Post("/accounts/{username}/toggle-active", h.handleToggleActive)
	r.Post("/accounts/{username}/reset-password", h.handleResetPassword)
	r.Post("/auth/change-password", h.handleChangePassword)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.svc.Login(ctx, req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			httpjson.WriteError(w, http.StatusUnauthorized, err.Error())
		case errors.Is(err, ErrAccountDisabled):
			httpjson.WriteError(w, http.StatusForbidden, err.Error())
		default:
			h.log.ErrorContext(ctx, "login failed", "error", err)
			httpjson.WriteSentinel(w, err)
		}
		return
	}
	httpjson.Write(w, http.StatusOK, res)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.List(r.Context())
	if err != nil {
		h.log.ErrorContext(r.Context(), "list accounts", "error", err)
		httpjson.WriteSentinel(w, err)
		return
	}
	if users == nil {
		users = []User{}
	}
	httpjson.Write(w, http.StatusOK, users)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var in CreateInput
	if err := httpjson.Decode(r, &in); err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u, err := h.svc.Create(ctx, in)
	if err != nil {
		if errors.Is(err, ErrUnknownRole) || errors.Is(err, ErrWeakPassword) {
			httpjson.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		httpjson.WriteSentinel(w, err)
		return
	}
	httpjson.Write(w, http.StatusCreated, u)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var in UpdateInput
	if err := httpjson.Decode(r, &in); err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u, err := h.svc.Update(ctx, chi.URLParam(r, "username"), in)
	if err != nil {
		if errors.Is(err, ErrUnknownRole) {
			httpjson.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		httpjson.WriteSentinel(w, err)
		return
	}
	httpjson.Write(w, http.StatusOK, u)
}

func (h *Handler) handleToggleActive(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.ToggleActive(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		httpjson.WriteSentinel(w, err)
		return
	}
	httpjson.Write(w, http.StatusOK, u)
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	plain, err := h.svc.ResetPassword(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		httpjson.WriteSentinel(w, err)
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]string{"password": plain})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	username := requestcontext.ActorID(ctx)
	if username == "" {
		httpjson.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req changePasswordRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.svc.ChangePassword(ctx, username, req.CurrentPassword, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			httpjson.WriteError(w, http.StatusUnauthorized, err.Error())
		case errors.Is(err, ErrWeakPassword):
			httpjson.WriteError(w, http.StatusBadRequest, err.Error())
		default:
			httpjson.WriteSentinel(w, err)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
