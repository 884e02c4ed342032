package loader

import (
	"net/http"

	"github.com/leeforge/pluginhub/http/middleware"
	"github.com/leeforge/pluginhub/http/responder"
)

// Builtin handler names, available to every manifest.
const (
	HandlerPing = "builtin.ping"
	HandlerEcho = "builtin.echo"
	HandlerInfo = "builtin.info"
)

// RegisterBuiltins adds the builtin handlers to r.
func RegisterBuiltins(r *HandlerRegistry) error {
	for name, h := range map[string]http.HandlerFunc{
		HandlerPing: pingHandler,
		HandlerEcho: echoHandler,
		HandlerInfo: infoHandler,
	} {
		if err := r.Register(name, h); err != nil {
			return err
		}
	}
	return nil
}

func pingHandler(w http.ResponseWriter, r *http.Request) {
	info, _ := MountInfoFromContext(r.Context())
	responder.OK(w, r, map[string]any{"plugin": info.Plugin, "pong": true})
}

func echoHandler(w http.ResponseWriter, r *http.Request) {
	info, _ := MountInfoFromContext(r.Context())
	id := middleware.IdentityFromRequest(r)
	responder.OK(w, r, map[string]any{
		"plugin": info.Plugin,
		"method": r.Method,
		"path":   r.URL.Path,
		"query":  r.URL.Query(),
		"user":   id.User,
		"roles":  id.Roles,
	})
}

func infoHandler(w http.ResponseWriter, r *http.Request) {
	info, _ := MountInfoFromContext(r.Context())
	responder.OK(w, r, info)
}
