package masterdata

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pacslink/pacslink/internal/platform/httpx"
)

// Handler exposes the environment endpoint the UI bootstraps from.
type Handler struct {
	repo   RepositoryPort
	logger *slog.Logger
}

// NewHandler constructs a handler.
func NewHandler(repo RepositoryPort, logger *slog.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// MountRoutes registers endpoints on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.environment)
}

func (h *Handler) environment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	langs, err := h.repo.Langs(ctx)
	if err != nil {
		h.logger.Error("masterdata langs query failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	for _, lang := range langs {
		if err := ValidateLangKey(lang.Key); err != nil {
			h.logger.Warn("malformed language key", slog.Int("id", lang.ID), slog.Any("error", err))
		}
	}
	countries, err := h.repo.Countries(ctx)
	if err != nil {
		h.logger.Error("masterdata countries query failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]any{
		"langs":     langs,
		"countries": countries,
	})
}
