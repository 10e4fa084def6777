package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	customerhandler "customerhub/internal/customer/handler"
	"customerhub/internal/platform/metrics"
	"customerhub/pkg/platform/httputil"
	"customerhub/pkg/platform/middleware/admin"
	"customerhub/pkg/platform/middleware/auth"
	"customerhub/pkg/platform/middleware/metadata"
	"customerhub/pkg/platform/middleware/request"
	"customerhub/pkg/platform/middleware/requesttime"
)

type routerDeps struct {
	logger    *slog.Logger
	customers *customerhandler.Handler
	validator auth.JWTValidator
	metrics   *metrics.Metrics
	scrape    http.Handler
}

// newRouter mounts health, metrics and the authenticated customer API.
func newRouter(deps routerDeps) chi.Router {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(request.Recovery(deps.logger))
	r.Use(request.Logger(deps.logger))
	if deps.metrics != nil {
		r.Use(deps.metrics.Middleware)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if deps.scrape != nil {
		r.Handle("/metrics", deps.scrape)
	}

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(deps.validator, deps.logger))
		deps.customers.Register(r)

		r.Group(func(r chi.Router) {
			r.Use(admin.RequireAdmin(deps.logger))
			deps.customers.RegisterAdmin(r)
		})
	})
	return r
}
