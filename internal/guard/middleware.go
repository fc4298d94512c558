package guard

import (
	"log/slog"
	"net/http"

	"github.com/pacslink/pacslink/internal/platform/httpx"
	"github.com/pacslink/pacslink/internal/shared"
)

// Middleware wires session based authorization helpers for HTTP handlers.
// Both checks are pure predicates over the session snapshot already attached
// to the request context; they perform no I/O of their own.
type Middleware struct {
	Logger *slog.Logger
}

// RequireUser rejects requests that carry no authenticated session.
func (m Middleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shared.UserFromContext(r.Context()) == nil {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects requests whose session role is not admin.
func (m Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := shared.UserFromContext(r.Context())
		if user == nil {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		role := Role(user.Position)
		if !role.Valid() {
			if m.Logger != nil {
				m.Logger.Error("guard unknown role", slog.String("position", user.Position), slog.String("user_id", user.ID))
			}
			httpx.RespondError(w, httpx.ErrForbidden)
			return
		}
		if !role.Admin() {
			httpx.RespondError(w, httpx.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
