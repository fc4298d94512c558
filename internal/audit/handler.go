package audit

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pacslink/pacslink/internal/guard"
	"github.com/pacslink/pacslink/internal/platform/httpx"
)

// Handler exposes the admin log listing.
type Handler struct {
	logger  *slog.Logger
	service *Service
	guard   guard.Middleware
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, g guard.Middleware) *Handler {
	return &Handler{logger: logger, service: service, guard: g}
}

// MountRoutes registers log routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.guard.RequireUser, h.guard.RequireAdmin).Get("/", h.list)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))

	result, err := h.service.List(r.Context(), ListFilters{Page: page, PageSize: pageSize})
	if err != nil {
		h.logger.Error("list audit logs", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}
