// Package permission attaches access metadata to plugin route handlers and
// derives the served route table and role policies from a chi router.
package permission

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Meta is the access metadata of one mounted plugin route.
type Meta struct {
	Plugin       string
	Handler      string
	Description  string
	AuthRequired bool
	Roles        []string
}

// Public reports whether the route can be called anonymously.
func (m Meta) Public() bool {
	return !m.AuthRequired && len(m.Roles) == 0
}

// MetaHandler wraps a handler with metadata.
type MetaHandler struct {
	handler http.Handler
	Meta    Meta
}

func (h *MetaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.handler.ServeHTTP(w, r)
}

// Wrap attaches metadata to a handler.
func Wrap(handler http.Handler, meta Meta) http.Handler {
	if handler == nil {
		return handler
	}
	return &MetaHandler{handler: handler, Meta: meta}
}

// ExtractMeta returns metadata from a handler if present.
func ExtractMeta(handler http.Handler) (Meta, bool) {
	for handler != nil {
		if wrapped, ok := handler.(*MetaHandler); ok {
			return wrapped.Meta, true
		}
		// chi wraps handlers with ChainHandler when middleware is applied.
		if chained, ok := handler.(*chi.ChainHandler); ok {
			handler = chained.Endpoint
			continue
		}
		break
	}
	return Meta{}, false
}

// Register mounts handler on r with metadata.
func Register(r chi.Router, method, path string, handler http.Handler, meta Meta) {
	if r == nil || handler == nil {
		return
	}
	r.Method(method, path, Wrap(handler, meta))
}
