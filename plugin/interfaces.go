package plugin

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Module is the in-process code behind a plugin. The loader calls Enable
// every time the plugin is mounted; an error or panic turns into a
// LoadError and leaves the plugin unmounted.
type Module interface {
	Name() string
	Enable(ctx context.Context, app *AppContext) error
}

// --- Optional Capability Interfaces ---
// The loader detects these via type assertion.

// Disableable -- cleanup when the plugin is unmounted.
type Disableable interface {
	Disable(ctx context.Context, app *AppContext) error
}

// HandlerProvider -- named handlers referenced by RouteItem.Handler.
// Module handlers take precedence over globally registered ones.
type HandlerProvider interface {
	Handlers() map[string]http.HandlerFunc
}

// RouteProvider -- extra routes registered directly on the plugin router,
// outside the manifest.
type RouteProvider interface {
	RegisterRoutes(router chi.Router)
}
