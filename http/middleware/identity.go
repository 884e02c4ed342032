package middleware

import (
	"context"
	"net/http"
	"strings"
)

// Identity headers are set by the upstream gateway that authenticates the
// console user.
const (
	UserHeader  = "X-User"
	RolesHeader = "X-User-Roles"

	identityKey contextKey = "identity"
)

// Identity is the caller as asserted by the gateway.
type Identity struct {
	User  string
	Roles []string
}

// IdentityFromRequest parses the identity headers. Roles are a comma
// separated list; blanks are dropped.
func IdentityFromRequest(r *http.Request) Identity {
	id := Identity{User: strings.TrimSpace(r.Header.Get(UserHeader))}
	for _, role := range strings.Split(r.Header.Get(RolesHeader), ",") {
		if role = strings.TrimSpace(role); role != "" {
			id.Roles = append(id.Roles, role)
		}
	}
	return id
}

// IdentityMiddleware stores the request identity in the context.
func IdentityMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), identityKey, IdentityFromRequest(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetIdentity returns the identity stored by IdentityMiddleware, or the
// zero Identity.
func GetIdentity(ctx context.Context) Identity {
	if id, ok := ctx.Value(identityKey).(Identity); ok {
		return id
	}
	return Identity{}
}
