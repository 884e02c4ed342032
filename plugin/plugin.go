// Package plugin holds the domain types of the plugin lifecycle core:
// plugins, their manifests, releases and audit history, plus the
// interfaces in-process plugin modules implement.
package plugin

import (
	"regexp"
	"time"

	"github.com/leeforge/pluginhub/json"
)

var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{1,63}$`)

// ValidName reports whether name is a usable plugin slug.
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

// Plugin is the live record of one plugin.
//
// Invariants: Loaded implies Enabled, and Version always names the
// currently active Release.
type Plugin struct {
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name"`
	Version     string    `json:"version"`
	Description string    `json:"description"`
	Author      string    `json:"author"`
	Category    string    `json:"category"`
	Enabled     bool      `json:"enabled"`
	Loaded      bool      `json:"loaded"`
	Manifest    Manifest  `json:"manifest"`
	LastError   string    `json:"last_error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Clone returns a deep copy.
func (p *Plugin) Clone() *Plugin {
	if p == nil {
		return nil
	}
	out := *p
	out.Manifest = p.Manifest.Clone()
	return &out
}

// State derives the console state from the enabled/loaded flags.
func (p *Plugin) State() PluginState {
	switch {
	case !p.Enabled:
		return StateDisabled
	case p.Loaded:
		return StateLoaded
	default:
		return StateDegraded
	}
}

// MarshalJSON adds the derived state and menu/route counts the console
// list renders.
func (p Plugin) MarshalJSON() ([]byte, error) {
	type alias Plugin
	return json.Marshal(struct {
		alias
		State  string `json:"state"`
		Menus  int    `json:"menus"`
		Routes int    `json:"routes"`
	}{
		alias:  alias(p),
		State:  p.State().String(),
		Menus:  len(p.Manifest.Menus),
		Routes: len(p.Manifest.Routes),
	})
}
