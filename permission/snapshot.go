package permission

import (
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
)

// RouteInfo describes one served plugin route.
type RouteInfo struct {
	Plugin       string   `json:"plugin"`
	Method       string   `json:"method"`
	Path         string   `json:"path"`
	Handler      string   `json:"handler"`
	Description  string   `json:"description,omitempty"`
	AuthRequired bool     `json:"auth_required"`
	Roles        []string `json:"roles"`
}

// Policy grants role access to method+path inside one plugin's domain.
type Policy struct {
	Role   string
	Plugin string
	Path   string
	Method string
}

// SnapshotFromRouter walks a chi router and returns its routes sorted by
// path then method. Handlers registered without metadata are reported
// with empty plugin and handler names.
func SnapshotFromRouter(r chi.Routes) ([]RouteInfo, error) {
	var routes []RouteInfo
	if err := chi.Walk(r, func(method string, route string, handler http.Handler, _ ...func(http.Handler) http.Handler) error {
		meta, _ := ExtractMeta(handler)
		routes = append(routes, RouteInfo{
			Plugin:       meta.Plugin,
			Method:       strings.ToUpper(method),
			Path:         route,
			Handler:      meta.Handler,
			Description:  meta.Description,
			AuthRequired: meta.AuthRequired,
			Roles:        uniqueNormalized(meta.Roles),
		})
		return nil
	}); err != nil {
		return nil, err
	}

	sortRoutes(routes)
	return routes, nil
}

// BuildPolicies returns one policy per (role, route) pair, deduplicated
// and sorted.
func BuildPolicies(routes []RouteInfo) []Policy {
	set := make(map[string]Policy)
	for _, route := range routes {
		if route.Method == "" || route.Path == "" {
			continue
		}
		for _, role := range uniqueNormalized(route.Roles) {
			key := route.Plugin + ":" + role + ":" + route.Method + ":" + route.Path
			if _, exists := set[key]; !exists {
				set[key] = Policy{Role: role, Plugin: route.Plugin, Path: route.Path, Method: route.Method}
			}
		}
	}
	if len(set) == 0 {
		return nil
	}

	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	result := make([]Policy, 0, len(keys))
	for _, key := range keys {
		result = append(result, set[key])
	}
	return result
}

func sortRoutes(routes []RouteInfo) {
	sort.SliceStable(routes, func(i, j int) bool {
		if routes[i].Path != routes[j].Path {
			return routes[i].Path < routes[j].Path
		}
		return routes[i].Method < routes[j].Method
	})
}

// NormalizeRole lower-cases and trims a role name.
func NormalizeRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}

func uniqueNormalized(roles []string) []string {
	set := make(map[string]struct{}, len(roles))
	result := []string{}
	for _, role := range roles {
		normalized := NormalizeRole(role)
		if normalized == "" {
			continue
		}
		if _, exists := set[normalized]; exists {
			continue
		}
		set[normalized] = struct{}{}
		result = append(result, normalized)
	}
	return result
}
