package loader

import (
	"fmt"
	"net/http"
	"regexp"
	"sync"

	casbinlib "github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/leeforge/pluginhub/http/middleware"
	"github.com/leeforge/pluginhub/http/responder"
	"github.com/leeforge/pluginhub/permission"
)

// The plugin name is the casbin domain, so a plugin's policies can be
// dropped in one call when it unloads.
const guardModel = `
[request_definition]
r = sub, dom, obj, act

[policy_definition]
p = sub, dom, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && r.dom == p.dom && keyMatch2(r.obj, p.obj) && r.act == p.act
`

// Guard enforces route roles of mounted plugins.
type Guard struct {
	mu       sync.RWMutex
	enforcer *casbinlib.Enforcer
}

func NewGuard() (*Guard, error) {
	m, err := model.NewModelFromString(guardModel)
	if err != nil {
		return nil, fmt.Errorf("failed to create model: %w", err)
	}
	enforcer, err := casbinlib.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create enforcer: %w", err)
	}
	return &Guard{enforcer: enforcer}, nil
}

// Replace swaps every policy of pluginName for policies.
func (g *Guard) Replace(pluginName string, policies []permission.Policy) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, err := g.enforcer.RemoveFilteredPolicy(1, pluginName); err != nil {
		return err
	}
	if len(policies) == 0 {
		return nil
	}
	rules := make([][]string, 0, len(policies))
	for _, p := range policies {
		rules = append(rules, []string{p.Role, pluginName, casbinPattern(p.Path), p.Method})
	}
	_, err := g.enforcer.AddPolicies(rules)
	return err
}

// Remove drops every policy of pluginName.
func (g *Guard) Remove(pluginName string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, err := g.enforcer.RemoveFilteredPolicy(1, pluginName)
	return err
}

// Allowed reports whether any of roles may call method on path.
func (g *Guard) Allowed(roles []string, pluginName, path, method string) (bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, role := range roles {
		ok, err := g.enforcer.Enforce(permission.NormalizeRole(role), pluginName, path, method)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// HasPolicy reports whether role has been granted method on the route pattern.
func (g *Guard) HasPolicy(role, pluginName, pattern, method string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.enforcer.HasPolicy(permission.NormalizeRole(role), pluginName, casbinPattern(pattern), method)
}

// Middleware checks the request identity against meta. Public routes pass
// through; any other route needs a user, and routes with roles need a
// role that has a policy.
func (g *Guard) Middleware(meta permission.Meta) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if meta.Public() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := middleware.IdentityFromRequest(r)
			if id.User == "" {
				responder.Unauthorized(w, r, "authentication required")
				return
			}
			if len(meta.Roles) > 0 {
				ok, err := g.Allowed(id.Roles, meta.Plugin, r.URL.Path, r.Method)
				if err != nil {
					responder.InternalServerError(w, r, "permission check failed")
					return
				}
				if !ok {
					responder.Forbidden(w, r, "insufficient role for this route")
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

var chiParam = regexp.MustCompile(`\{([^}:]+)(:[^}]*)?\}`)

// casbinPattern rewrites chi's {param} placeholders into keyMatch2's :param.
func casbinPattern(chiPattern string) string {
	return chiParam.ReplaceAllString(chiPattern, ":$1")
}
