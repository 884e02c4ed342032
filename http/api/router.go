// Package api serves the plugin management endpoints and mounts the
// plugin-served routes under the loader prefix.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/leeforge/pluginhub/http/middleware"
	"github.com/leeforge/pluginhub/http/responder"
	"github.com/leeforge/pluginhub/lifecycle"
	"github.com/leeforge/pluginhub/loader"
	"github.com/leeforge/pluginhub/logging"
	"github.com/leeforge/pluginhub/metrics"
)

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

type Options struct {
	Controller   *lifecycle.Controller
	Loader       *loader.Loader
	Metrics      *metrics.Metrics
	Logger       *zap.Logger
	HealthChecks map[string]HealthCheck
	Version      string
	Mode         string
}

type Handler struct {
	ctrl    *lifecycle.Controller
	loader  *loader.Loader
	logger  *zap.Logger
	checks  map[string]HealthCheck
	version string
	mode    string
}

// NewRouter builds the HTTP surface of the service.
func NewRouter(opts Options) chi.Router {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		ctrl:    opts.Controller,
		loader:  opts.Loader,
		logger:  logger.Named("api"),
		checks:  opts.HealthChecks,
		version: opts.Version,
		mode:    opts.Mode,
	}

	r := chi.NewRouter()
	r.Use(
		middleware.TraceIDMiddleware(),
		middleware.TimingMiddleware(),
		middleware.IdentityMiddleware(),
		logging.RecoveryMiddleware(logger),
		logging.HTTPMiddleware(logger),
		opts.Metrics.HTTPMiddleware(),
	)
	r.NotFound(responder.RouteNotFound)
	r.MethodNotAllowed(responder.MethodNotAllowed)

	r.Get("/healthz", h.health)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}
	r.Get("/menus", h.menus)
	r.Get("/routes", h.routes)

	r.Route("/plugins", func(r chi.Router) {
		r.Get("/", h.listPlugins)
		r.Post("/", h.createPlugin)
		r.Route("/{name}", func(r chi.Router) {
			r.Get("/", h.getPlugin)
			r.Post("/enable", h.enable)
			r.Post("/disable", h.disable)
			r.Post("/reload", h.reload)
			r.Put("/manifest", h.updateManifest)
			r.Post("/release", h.release)
			r.Get("/releases", h.listReleases)
			r.Post("/rollback", h.rollback)
			r.Get("/release-history", h.history)
		})
	})

	if opts.Loader != nil {
		r.Mount(opts.Loader.Prefix(), opts.Loader)
	}
	return r
}
