package plugin

import (
	"fmt"
	"net/http"
	"slices"
	"strings"
)

// Manifest is the versionable content of a plugin: the menus and routes it
// contributes to the host plus free-form descriptive metadata.
type Manifest struct {
	Menus    []MenuItem        `json:"menus" yaml:"menus"`
	Routes   []RouteItem       `json:"routes" yaml:"routes"`
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// MenuItem is a navigation entry contributed by a plugin.
type MenuItem struct {
	Title  string   `json:"title" yaml:"title"`
	Path   string   `json:"path" yaml:"path"`
	Icon   string   `json:"icon,omitempty" yaml:"icon,omitempty"`
	Parent string   `json:"parent,omitempty" yaml:"parent,omitempty"`
	Roles  []string `json:"roles" yaml:"roles"`
	Order  int      `json:"order" yaml:"order"`
	Badge  string   `json:"badge,omitempty" yaml:"badge,omitempty"`
}

// RouteItem is an HTTP route contributed by a plugin. Handler names a
// function resolved by the loader at mount time.
type RouteItem struct {
	Path         string   `json:"path" yaml:"path"`
	Methods      []string `json:"methods" yaml:"methods"`
	Handler      string   `json:"handler" yaml:"handler"`
	AuthRequired bool     `json:"auth_required" yaml:"auth_required"`
	Roles        []string `json:"roles" yaml:"roles"`
	Description  string   `json:"description,omitempty" yaml:"description,omitempty"`
}

var knownMethods = []string{
	http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch,
	http.MethodDelete, http.MethodHead, http.MethodOptions,
}

// Clone returns a deep copy. Nil slices come back as empty slices so the
// JSON form is stable.
func (m Manifest) Clone() Manifest {
	out := Manifest{
		Menus:  make([]MenuItem, len(m.Menus)),
		Routes: make([]RouteItem, len(m.Routes)),
	}
	for i, mi := range m.Menus {
		mi.Roles = cloneStrings(mi.Roles)
		out.Menus[i] = mi
	}
	for i, ri := range m.Routes {
		ri.Methods = cloneStrings(ri.Methods)
		ri.Roles = cloneStrings(ri.Roles)
		out.Routes[i] = ri
	}
	if len(m.Metadata) > 0 {
		out.Metadata = make(map[string]string, len(m.Metadata))
		for k, v := range m.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// Equal reports whether two manifests have the same content.
func (m Manifest) Equal(o Manifest) bool {
	if len(m.Menus) != len(o.Menus) || len(m.Routes) != len(o.Routes) || len(m.Metadata) != len(o.Metadata) {
		return false
	}
	for i := range m.Menus {
		a, b := m.Menus[i], o.Menus[i]
		if a.Title != b.Title || a.Path != b.Path || a.Icon != b.Icon || a.Parent != b.Parent ||
			a.Order != b.Order || a.Badge != b.Badge || !slices.Equal(a.Roles, b.Roles) {
			return false
		}
	}
	for i := range m.Routes {
		a, b := m.Routes[i], o.Routes[i]
		if a.Path != b.Path || a.Handler != b.Handler || a.AuthRequired != b.AuthRequired ||
			a.Description != b.Description || !slices.Equal(a.Methods, b.Methods) || !slices.Equal(a.Roles, b.Roles) {
			return false
		}
	}
	for k, v := range m.Metadata {
		if ov, ok := o.Metadata[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Normalize upper-cases route methods and defaults an empty method list to GET.
func (m *Manifest) Normalize() {
	for i := range m.Routes {
		if len(m.Routes[i].Methods) == 0 {
			m.Routes[i].Methods = []string{http.MethodGet}
		}
		for j, method := range m.Routes[i].Methods {
			m.Routes[i].Methods[j] = strings.ToUpper(strings.TrimSpace(method))
		}
	}
}

// Validate checks the manifest can be mounted: paths are absolute,
// handlers are named, methods are known and no method/path pair repeats.
func (m Manifest) Validate() error {
	for i, mi := range m.Menus {
		if strings.TrimSpace(mi.Title) == "" {
			return fmt.Errorf("menus[%d]: title is required", i)
		}
		if !strings.HasPrefix(mi.Path, "/") {
			return fmt.Errorf("menus[%d]: path %q must start with /", i, mi.Path)
		}
	}

	seen := make(map[string]struct{})
	for i, ri := range m.Routes {
		if !strings.HasPrefix(ri.Path, "/") {
			return fmt.Errorf("routes[%d]: path %q must start with /", i, ri.Path)
		}
		if strings.TrimSpace(ri.Handler) == "" {
			return fmt.Errorf("routes[%d]: handler is required", i)
		}
		for _, method := range ri.Methods {
			if !slices.Contains(knownMethods, method) {
				return fmt.Errorf("routes[%d]: unsupported method %q", i, method)
			}
			key := method + " " + ri.Path
			if _, dup := seen[key]; dup {
				return fmt.Errorf("routes[%d]: duplicate route %s", i, key)
			}
			seen[key] = struct{}{}
		}
	}
	return nil
}

func cloneStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return append(make([]string, 0, len(s)), s...)
}
