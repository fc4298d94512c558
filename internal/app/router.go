package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/pacslink/pacslink/internal/audit"
	"github.com/pacslink/pacslink/internal/auth"
	"github.com/pacslink/pacslink/internal/masterdata"
	"github.com/pacslink/pacslink/internal/observability"
	"github.com/pacslink/pacslink/internal/shared"
	"github.com/pacslink/pacslink/internal/storage"
	"github.com/pacslink/pacslink/internal/users"
	"github.com/pacslink/pacslink/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager

	AuthHandler       *auth.Handler
	UsersHandler      *users.Handler
	AuditHandler      *audit.Handler
	MasterDataHandler *masterdata.Handler
	StorageHandler    *storage.Handler
	JobHandler        *jobs.Handler

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/auth", params.AuthHandler.MountRoutes)
	r.Route("/api/user", params.UsersHandler.MountRoutes)
	if params.AuditHandler != nil {
		r.Route("/api/log", params.AuditHandler.MountRoutes)
	}
	if params.MasterDataHandler != nil {
		r.Route("/api/env", params.MasterDataHandler.MountRoutes)
	}
	r.Route("/api/storage", params.StorageHandler.MountRoutes)
	if params.JobHandler != nil {
		r.Route("/api/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
