package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/leeforge/pluginhub/http/responder"
)

const healthTimeout = 2 * time.Second

type healthReport struct {
	Status  string            `json:"status"`
	Version string            `json:"version,omitempty"`
	Mode    string            `json:"mode,omitempty"`
	Loaded  int               `json:"loaded"`
	Checks  map[string]string `json:"checks"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	report := healthReport{Status: "ok", Version: h.version, Mode: h.mode, Checks: map[string]string{}}
	if h.loader != nil {
		report.Loaded = h.loader.LoadedCount()
	}

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			h.logger.Warn("health check failed", zap.String("check", name), zap.Error(err))
			report.Status = "degraded"
			report.Checks[name] = err.Error()
			continue
		}
		report.Checks[name] = "ok"
	}

	if report.Status != "ok" {
		responder.ServiceUnavailable(w, r, "dependency check failed", report)
		return
	}
	responder.OK(w, r, report)
}

func (h *Handler) menus(w http.ResponseWriter, r *http.Request) {
	menus := h.loader.Menus()
	responder.OK(w, r, menus, responder.WithCount(len(menus)))
}

func (h *Handler) routes(w http.ResponseWriter, r *http.Request) {
	routes := h.loader.Routes()
	responder.OK(w, r, routes, responder.WithCount(len(routes)))
}
