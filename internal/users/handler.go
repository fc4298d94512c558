package users

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pacslink/pacslink/internal/audit"
	"github.com/pacslink/pacslink/internal/guard"
	"github.com/pacslink/pacslink/internal/platform/httpx"
	"github.com/pacslink/pacslink/internal/shared"
)

// PurgeDispatcher queues a wipe of a deleted user's files.
type PurgeDispatcher interface {
	EnqueueStoragePurge(ctx context.Context, userID string) error
}

// Handler wires HTTP endpoints for account management.
type Handler struct {
	logger  *slog.Logger
	service *Service
	audit   *audit.Service
	purger  PurgeDispatcher
	guard   guard.Middleware
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, auditSvc *audit.Service, purger PurgeDispatcher, g guard.Middleware) *Handler {
	return &Handler{logger: logger, service: service, audit: auditSvc, purger: purger, guard: g}
}

// MountRoutes registers user routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.guard.RequireUser)
	r.Get("/", h.current)
	r.With(h.guard.RequireAdmin).Get("/list", h.list)
	r.Patch("/{id}", h.update)
	r.With(h.guard.RequireAdmin).Delete("/{id}", h.remove)
}

func (h *Handler) current(w http.ResponseWriter, r *http.Request) {
	sessUser := shared.UserFromContext(r.Context())
	user, err := h.service.Get(r.Context(), sessUser.ID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list users", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, users)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sessUser := shared.UserFromContext(r.Context())

	// Accounts may only patch themselves; admins may patch anyone.
	if sessUser.ID != id && !guard.Role(sessUser.Position).Admin() {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}

	var body struct {
		Data UpdateInput `json:"data"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}

	if err := h.service.Update(r.Context(), id, body.Data); err != nil {
		h.logger.Error("update user", slog.String("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	if err := h.audit.Record(r.Context(), audit.Entry{
		IP:     shared.ClientIP(r),
		Type:   "UPDATE USER",
		Action: fmt.Sprintf("account %q updated", id),
		UserID: sessUser.ID,
	}); err != nil {
		h.logger.Warn("audit user update", slog.Any("error", err))
	}

	httpx.OK(w)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sessUser := shared.UserFromContext(r.Context())

	deleted, err := h.service.Delete(r.Context(), id)
	if err != nil {
		h.logger.Error("delete user", slog.String("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if !deleted {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}

	// Database rows cascade with the account; local and bucket files are
	// reclaimed in the background.
	if err := h.purger.EnqueueStoragePurge(r.Context(), id); err != nil {
		h.logger.Warn("enqueue purge for deleted user", slog.String("id", id), slog.Any("error", err))
	}

	if err := h.audit.Record(r.Context(), audit.Entry{
		IP:     shared.ClientIP(r),
		Type:   "DELETE USER",
		Action: fmt.Sprintf("account %q deleted", id),
		UserID: sessUser.ID,
	}); err != nil {
		h.logger.Warn("audit user delete", slog.Any("error", err))
	}

	httpx.OK(w)
}
