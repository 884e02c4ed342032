package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/leeforge/pluginhub/errors"
	"github.com/leeforge/pluginhub/http/binding"
	"github.com/leeforge/pluginhub/http/middleware"
	"github.com/leeforge/pluginhub/http/responder"
	"github.com/leeforge/pluginhub/lifecycle"
	"github.com/leeforge/pluginhub/plugin"
)

type createPluginRequest struct {
	Name        string           `json:"name" validate:"required,plugin_name"`
	DisplayName string           `json:"display_name" validate:"max=128"`
	Version     string           `json:"version" validate:"required,max=64"`
	Description string           `json:"description" validate:"max=2000"`
	Author      string           `json:"author" validate:"max=128"`
	Category    string           `json:"category" validate:"max=64"`
	Manifest    *plugin.Manifest `json:"manifest"`
	User        string           `json:"user" validate:"max=128"`
}

type actionRequest struct {
	User string `json:"user" validate:"max=128"`
}

type versionRequest struct {
	Version string `json:"version" validate:"required,max=64"`
	User    string `json:"user" validate:"max=128"`
}

type manifestRequest struct {
	Manifest *plugin.Manifest `json:"manifest" validate:"required"`
	User     string           `json:"user" validate:"max=128"`
}

// bind decodes the request body and writes the 400 response itself when
// that fails.
func bind(w http.ResponseWriter, r *http.Request, v any, opts ...binding.Option) bool {
	err := binding.JSON(r, v, opts...)
	if err == nil {
		return true
	}
	if binding.IsValidation(err) {
		responder.ValidationError(w, r, err)
		return false
	}
	responder.BindError(w, r, err)
	return false
}

// actor attributes an operation: body user, then the X-User header, then
// the system user.
func actor(r *http.Request, bodyUser string) string {
	if bodyUser != "" {
		return bodyUser
	}
	if user := middleware.GetIdentity(r.Context()).User; user != "" {
		return user
	}
	return lifecycle.DefaultUser
}

// writeResult writes a mutation result. Load errors keep the committed
// plugin in the envelope data.
func writeResult(w http.ResponseWriter, r *http.Request, p *plugin.Plugin, err error) {
	switch {
	case err == nil:
		responder.OK(w, r, p)
	case apperrors.IsLoadError(err) && p != nil:
		responder.FailWithData(w, r, err, p)
	default:
		responder.Fail(w, r, err)
	}
}

func (h *Handler) listPlugins(w http.ResponseWriter, r *http.Request) {
	plugins, err := h.ctrl.List(r.Context())
	if err != nil {
		responder.Fail(w, r, err)
		return
	}
	responder.OK(w, r, plugins, responder.WithCount(len(plugins)))
}

func (h *Handler) createPlugin(w http.ResponseWriter, r *http.Request) {
	var req createPluginRequest
	if !bind(w, r, &req) {
		return
	}
	p, err := h.ctrl.Create(r.Context(), lifecycle.CreateInput{
		Name:        req.Name,
		DisplayName: req.DisplayName,
		Version:     req.Version,
		Description: req.Description,
		Author:      req.Author,
		Category:    req.Category,
		Manifest:    req.Manifest,
	}, actor(r, req.User))
	if err != nil {
		responder.Fail(w, r, err)
		return
	}
	responder.Created(w, r, p)
}

func (h *Handler) getPlugin(w http.ResponseWriter, r *http.Request) {
	p, err := h.ctrl.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		responder.Fail(w, r, err)
		return
	}
	responder.OK(w, r, p)
}

func (h *Handler) enable(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if !bind(w, r, &req, binding.WithAllowEmpty()) {
		return
	}
	p, err := h.ctrl.Enable(r.Context(), chi.URLParam(r, "name"), actor(r, req.User))
	writeResult(w, r, p, err)
}

func (h *Handler) disable(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if !bind(w, r, &req, binding.WithAllowEmpty()) {
		return
	}
	p, err := h.ctrl.Disable(r.Context(), chi.URLParam(r, "name"), actor(r, req.User))
	writeResult(w, r, p, err)
}

func (h *Handler) reload(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if !bind(w, r, &req, binding.WithAllowEmpty()) {
		return
	}
	p, err := h.ctrl.Reload(r.Context(), chi.URLParam(r, "name"), actor(r, req.User))
	writeResult(w, r, p, err)
}

func (h *Handler) updateManifest(w http.ResponseWriter, r *http.Request) {
	var req manifestRequest
	if !bind(w, r, &req) {
		return
	}
	p, err := h.ctrl.UpdateManifest(r.Context(), chi.URLParam(r, "name"), *req.Manifest, actor(r, req.User))
	writeResult(w, r, p, err)
}

func (h *Handler) release(w http.ResponseWriter, r *http.Request) {
	var req versionRequest
	if !bind(w, r, &req) {
		return
	}
	rel, err := h.ctrl.Release(r.Context(), chi.URLParam(r, "name"), req.Version, actor(r, req.User))
	if err != nil {
		responder.Fail(w, r, err)
		return
	}
	responder.Created(w, r, rel)
}

func (h *Handler) listReleases(w http.ResponseWriter, r *http.Request) {
	releases, err := h.ctrl.ListReleases(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		responder.Fail(w, r, err)
		return
	}
	responder.OK(w, r, releases, responder.WithCount(len(releases)))
}

func (h *Handler) rollback(w http.ResponseWriter, r *http.Request) {
	var req versionRequest
	if !bind(w, r, &req) {
		return
	}
	p, err := h.ctrl.Rollback(r.Context(), chi.URLParam(r, "name"), req.Version, actor(r, req.User))
	writeResult(w, r, p, err)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	entries, err := h.ctrl.History(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		responder.Fail(w, r, err)
		return
	}
	responder.OK(w, r, entries, responder.WithCount(len(entries)))
}
