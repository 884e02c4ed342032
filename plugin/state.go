package plugin

// PluginState is the console-facing lifecycle state derived from a
// plugin's enabled and loaded flags.
type PluginState int

const (
	StateDisabled PluginState = iota // enabled=false, loaded=false
	StateLoaded                      // enabled=true, loaded=true, serving
	StateDegraded                    // enabled=true, loaded=false after a LoadError
)

// String returns a human-readable state name.
func (s PluginState) String() string {
	switch s {
	case StateDisabled:
		return "disabled"
	case StateLoaded:
		return "loaded"
	case StateDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// Serving reports whether routes and menus of the plugin are mounted.
func (s PluginState) Serving() bool {
	return s == StateLoaded
}
