package storage

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pacslink/pacslink/internal/guard"
	"github.com/pacslink/pacslink/internal/observability"
	"github.com/pacslink/pacslink/internal/platform/httpx"
	"github.com/pacslink/pacslink/internal/shared"
)

// ConvertDispatcher enqueues background conversion of a stored upload.
type ConvertDispatcher interface {
	EnqueueConvert(ctx context.Context, objectID string) error
}

// Handler wires HTTP endpoints for DICOM uploads.
type Handler struct {
	logger  *slog.Logger
	service *Service
	convert ConvertDispatcher
	guard   guard.Middleware
	metrics *observability.Metrics
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, convert ConvertDispatcher, g guard.Middleware, metrics *observability.Metrics) *Handler {
	return &Handler{logger: logger, service: service, convert: convert, guard: g, metrics: metrics}
}

// MountRoutes registers storage routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.guard.RequireUser)
	r.Post("/", h.upload)
	r.Get("/", h.list)
	r.Get("/{id}/url", h.downloadURL)
}

const maxUploadBytes = 256 << 20 // DICOM studies run large

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	user := shared.UserFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	obj, err := h.service.SaveUpload(r.Context(), user.ID, header.Filename, contentType, file)
	if err != nil {
		h.logger.Error("save upload", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	h.metrics.CountUpload()

	if err := h.convert.EnqueueConvert(r.Context(), obj.ID); err != nil {
		// Conversion is retried by the worker; a failed enqueue only delays it.
		h.logger.Warn("enqueue convert", slog.String("object_id", obj.ID), slog.Any("error", err))
	}

	httpx.JSON(w, http.StatusCreated, map[string]any{"ok": true, "data": obj})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	user := shared.UserFromContext(r.Context())
	objects, err := h.service.ListByUser(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("list uploads", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"ok": true, "data": objects})
}

func (h *Handler) downloadURL(w http.ResponseWriter, r *http.Request) {
	user := shared.UserFromContext(r.Context())
	url, err := h.service.PresignDownload(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"ok": true, "url": url})
}
