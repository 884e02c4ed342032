// Package loader mounts plugin manifests into the serving path. Each loaded
// plugin gets its own chi router under {mount_prefix}/{plugin}; failures in
// plugin code are contained and reported as load errors.
package loader

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/leeforge/pluginhub/errors"
	"github.com/leeforge/pluginhub/http/responder"
	"github.com/leeforge/pluginhub/permission"
	"github.com/leeforge/pluginhub/plugin"
)

// Load stages reported in LoadError details.
const (
	StageManifest = "manifest"
	StageHandlers = "handlers"
	StageRoutes   = "routes"
	StageEnable   = "enable"
	StagePolicies = "policies"
)

type Config struct {
	MountPrefix string `mapstructure:"mount_prefix" json:"mount_prefix" yaml:"mount_prefix" default:"/ext"`
}

// MenuEntry is a menu item of a loaded plugin.
type MenuEntry struct {
	Plugin string `json:"plugin"`
	plugin.MenuItem
}

// MountInfo identifies the mount serving a request.
type MountInfo struct {
	Plugin  string `json:"plugin"`
	Version string `json:"version"`
	Base    string `json:"base"`
}

type mountInfoKey struct{}

// MountInfoFromContext returns the mount serving the current plugin request.
func MountInfoFromContext(ctx context.Context) (MountInfo, bool) {
	info, ok := ctx.Value(mountInfoKey{}).(MountInfo)
	return info, ok
}

type mount struct {
	info    MountInfo
	router  *chi.Mux
	menus   []plugin.MenuItem
	routes  []permission.RouteInfo
	module  plugin.Module
	appCtx  *plugin.AppContext
	enabled bool
}

type Option func(*Loader)

func WithLogger(logger *zap.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger.Named("loader")
		}
	}
}

// WithHandlers replaces the global handler registry.
func WithHandlers(handlers *HandlerRegistry) Option {
	return func(l *Loader) {
		if handlers != nil {
			l.handlers = handlers
		}
	}
}

// Loader owns the mounted plugin routers.
type Loader struct {
	prefix   string
	logger   *zap.Logger
	handlers *HandlerRegistry
	guard    *Guard

	modulesMu sync.RWMutex
	modules   map[string]plugin.Module

	mu     sync.RWMutex
	mounts map[string]*mount
}

func New(cfg Config, opts ...Option) (*Loader, error) {
	guard, err := NewGuard()
	if err != nil {
		return nil, err
	}
	prefix := "/" + strings.Trim(cfg.MountPrefix, "/")
	if prefix == "/" {
		prefix = "/ext"
	}
	l := &Loader{
		prefix:   prefix,
		logger:   zap.NewNop(),
		handlers: NewHandlerRegistry(),
		guard:    guard,
		modules:  make(map[string]plugin.Module),
		mounts:   make(map[string]*mount),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Prefix returns the path every plugin is mounted under.
func (l *Loader) Prefix() string { return l.prefix }

func (l *Loader) Handlers() *HandlerRegistry { return l.handlers }

func (l *Loader) Guard() *Guard { return l.guard }

// RegisterModule binds in-process code to a plugin name.
func (l *Loader) RegisterModule(m plugin.Module) error {
	if m == nil || !plugin.ValidName(m.Name()) {
		return fmt.Errorf("module name is invalid")
	}
	l.modulesMu.Lock()
	defer l.modulesMu.Unlock()
	if _, exists := l.modules[m.Name()]; exists {
		return fmt.Errorf("module %s already registered", m.Name())
	}
	l.modules[m.Name()] = m
	return nil
}

func (l *Loader) module(name string) plugin.Module {
	l.modulesMu.RLock()
	defer l.modulesMu.RUnlock()
	return l.modules[name]
}

// Load mounts p's live manifest. On success the new mount replaces any
// previous one; on failure the previous mount is left as it was and a
// LoadError is returned.
func (l *Loader) Load(ctx context.Context, p *plugin.Plugin) error {
	name := p.Name
	manifest := p.Manifest.Clone()
	manifest.Normalize()
	if err := manifest.Validate(); err != nil {
		return apperrors.NewLoadError(name, StageManifest, err)
	}

	info := MountInfo{Plugin: name, Version: p.Version, Base: l.prefix + "/" + name}
	router := chi.NewRouter()
	router.Use(l.contained(info))
	router.NotFound(responder.RouteNotFound)
	router.MethodNotAllowed(responder.MethodNotAllowed)

	module := l.module(name)
	var provided map[string]http.HandlerFunc
	if hp, ok := module.(plugin.HandlerProvider); ok {
		if err := contain(func() error { provided = hp.Handlers(); return nil }); err != nil {
			return apperrors.NewLoadError(name, StageHandlers, err)
		}
	}

	for _, route := range manifest.Routes {
		h := provided[route.Handler]
		if h == nil {
			h, _ = l.handlers.Lookup(route.Handler)
		}
		if h == nil {
			return apperrors.NewLoadError(name, StageRoutes,
				fmt.Errorf("handler %q is not registered", route.Handler)).
				WithDetail("handler", route.Handler)
		}
		meta := permission.Meta{
			Plugin:       name,
			Handler:      route.Handler,
			Description:  route.Description,
			AuthRequired: route.AuthRequired,
			Roles:        route.Roles,
		}
		handler := l.guard.Middleware(meta)(h)
		for _, method := range route.Methods {
			err := contain(func() error {
				permission.Register(router, method, info.Base+route.Path, handler, meta)
				return nil
			})
			if err != nil {
				return apperrors.NewLoadError(name, StageRoutes, err).
					WithDetail("handler", route.Handler).
					WithDetail("path", route.Path)
			}
		}
	}

	var appCtx *plugin.AppContext
	if module != nil {
		sub := chi.NewRouter()
		appCtx = &plugin.AppContext{
			Plugin:   name,
			Version:  p.Version,
			Manifest: manifest.Clone(),
			Router:   sub,
			Logger:   l.logger.With(zap.String("plugin", name)),
		}
		if rp, ok := module.(plugin.RouteProvider); ok {
			if err := contain(func() error { rp.RegisterRoutes(sub); return nil }); err != nil {
				return apperrors.NewLoadError(name, StageRoutes, err)
			}
		}
		if err := contain(func() error { return module.Enable(ctx, appCtx) }); err != nil {
			return apperrors.NewLoadError(name, StageEnable, err)
		}
		if err := l.mountModuleRoutes(router, info, manifest, sub); err != nil {
			l.disableModule(ctx, module, appCtx)
			return apperrors.NewLoadError(name, StageRoutes, err)
		}
	}

	routes, err := permission.SnapshotFromRouter(router)
	if err != nil {
		l.disableModule(ctx, module, appCtx)
		return apperrors.NewLoadError(name, StageRoutes, err)
	}
	for i := range routes {
		routes[i].Plugin = name
	}
	if err := l.guard.Replace(name, permission.BuildPolicies(routes)); err != nil {
		l.disableModule(ctx, module, appCtx)
		return apperrors.NewLoadError(name, StagePolicies, err)
	}

	next := &mount{
		info:    info,
		router:  router,
		menus:   manifest.Menus,
		routes:  routes,
		module:  module,
		appCtx:  appCtx,
		enabled: module != nil,
	}
	l.mu.Lock()
	l.mounts[name] = next
	l.mu.Unlock()

	l.logger.Info("plugin mounted",
		zap.String("plugin", name),
		zap.String("version", p.Version),
		zap.Int("routes", len(routes)),
		zap.Int("menus", len(next.menus)))
	return nil
}

// Module routes live beside the manifest routes. A manifest route on the
// plugin root would be shadowed by the mount, so the two are exclusive.
func (l *Loader) mountModuleRoutes(router *chi.Mux, info MountInfo, manifest plugin.Manifest, sub *chi.Mux) error {
	if len(sub.Routes()) == 0 {
		return nil
	}
	for _, route := range manifest.Routes {
		if route.Path == "/" {
			return fmt.Errorf("manifest route / conflicts with module routes")
		}
	}
	return contain(func() error {
		router.Mount(info.Base, sub)
		return nil
	})
}

// Unload removes the plugin's routes, menus and policies and runs the
// module Disable hook. Unloading an unmounted plugin does nothing.
func (l *Loader) Unload(ctx context.Context, name string) {
	l.mu.Lock()
	m, ok := l.mounts[name]
	delete(l.mounts, name)
	l.mu.Unlock()
	if !ok {
		return
	}

	if err := l.guard.Remove(name); err != nil {
		l.logger.Warn("failed to remove plugin policies", zap.String("plugin", name), zap.Error(err))
	}
	if m.enabled {
		l.disableModule(ctx, m.module, m.appCtx)
	}
	l.logger.Info("plugin unmounted", zap.String("plugin", name))
}

func (l *Loader) disableModule(ctx context.Context, module plugin.Module, appCtx *plugin.AppContext) {
	d, ok := module.(plugin.Disableable)
	if !ok || appCtx == nil {
		return
	}
	if err := contain(func() error { return d.Disable(ctx, appCtx) }); err != nil {
		l.logger.Warn("plugin disable hook failed", zap.String("plugin", appCtx.Plugin), zap.Error(err))
	}
}

// IsLoaded reports whether name is currently mounted.
func (l *Loader) IsLoaded(name string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.mounts[name]
	return ok
}

func (l *Loader) LoadedCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.mounts)
}

// Menus returns the menus of every mounted plugin ordered by order,
// plugin and title.
func (l *Loader) Menus() []MenuEntry {
	l.mu.RLock()
	entries := []MenuEntry{}
	for name, m := range l.mounts {
		for _, item := range m.menus {
			entries = append(entries, MenuEntry{Plugin: name, MenuItem: item})
		}
	}
	l.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		if a.Plugin != b.Plugin {
			return a.Plugin < b.Plugin
		}
		return a.Title < b.Title
	})
	return entries
}

// Routes returns the served route table of every mounted plugin, grouped by
// plugin name.
func (l *Loader) Routes() []permission.RouteInfo {
	l.mu.RLock()
	names := make([]string, 0, len(l.mounts))
	for name := range l.mounts {
		names = append(names, name)
	}
	sort.Strings(names)
	routes := []permission.RouteInfo{}
	for _, name := range names {
		routes = append(routes, l.mounts[name].routes...)
	}
	l.mu.RUnlock()
	return routes
}

// ServeHTTP dispatches {prefix}/{plugin}/... to the plugin's router.
func (l *Loader) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest, ok := strings.CutPrefix(r.URL.Path, l.prefix+"/")
	if !ok {
		responder.RouteNotFound(w, r)
		return
	}
	name, _, _ := strings.Cut(rest, "/")

	l.mu.RLock()
	m := l.mounts[name]
	l.mu.RUnlock()
	if m == nil {
		responder.NotFound(w, r, fmt.Sprintf("plugin %s is not loaded", name))
		return
	}

	// The plugin router matches on the full path, not the parent's
	// remaining wildcard.
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, chi.NewRouteContext())
	m.router.ServeHTTP(w, r.WithContext(ctx))
}

// contained recovers panics raised while serving plugin routes and tags the
// request with the mount.
func (l *Loader) contained(info MountInfo) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					l.logger.Error("plugin handler panicked",
						zap.String("plugin", info.Plugin),
						zap.String("path", r.URL.Path),
						zap.Any("panic", rec))
					responder.InternalServerError(w, r, "plugin handler failed")
				}
			}()
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), mountInfoKey{}, info)))
		})
	}
}

// contain runs plugin code and turns a panic into an error.
func contain(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %w", apperrors.Recover(rec))
		}
	}()
	return fn()
}
