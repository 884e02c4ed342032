package plugin

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// AppContext is handed to module lifecycle hooks. Router is the plugin's
// own router; anything mounted there goes away on unload.
type AppContext struct {
	Plugin   string
	Version  string
	Manifest Manifest
	Router   chi.Router
	Logger   *zap.Logger
}
