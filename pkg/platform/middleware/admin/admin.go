package admin

import (
	"log/slog"
	"net/http"

	request "customerhub/pkg/platform/middleware/request"
	"customerhub/pkg/requestcontext"
)

// RoleAdmin is the role claim that may block and unblock customers.
const RoleAdmin = "admin"

// RequireAdmin must run after auth.RequireAuth.
func RequireAdmin(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if requestcontext.ActorRole(ctx) != RoleAdmin {
				logger.WarnContext(ctx, "admin role required",
					"actor_id", requestcontext.ActorID(ctx),
					"request_id", request.GetRequestID(ctx),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"forbidden","error_description":"administrator role required"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
