package plugin

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleManifest() Manifest {
	return Manifest{
		Menus: []MenuItem{{Title: "Reports", Path: "/reports", Roles: []string{"admin"}, Order: 1}},
		Routes: []RouteItem{
			{Path: "/ping", Methods: []string{"GET"}, Handler: "builtin.ping"},
			{Path: "/items/{id}", Methods: []string{"GET", "DELETE"}, Handler: "items", Roles: []string{"admin"}},
		},
		Metadata: map[string]string{"team": "ops"},
	}
}

func TestValidName(t *testing.T) {
	for _, name := range []string{"ab", "reports", "order-reports", "v2_export", "9lives"} {
		assert.True(t, ValidName(name), name)
	}
	for _, name := range []string{"", "a", "Reports", "-lead", "has space", "dot.name", strings.Repeat("a", 65)} {
		assert.False(t, ValidName(name), name)
	}
}

func TestManifestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(m *Manifest)
		errMsg string
	}{
		{"valid", func(*Manifest) {}, ""},
		{"empty", func(m *Manifest) { *m = Manifest{} }, ""},
		{"menu without title", func(m *Manifest) { m.Menus[0].Title = " " }, "title is required"},
		{"relative menu path", func(m *Manifest) { m.Menus[0].Path = "reports" }, "must start with /"},
		{"relative route path", func(m *Manifest) { m.Routes[0].Path = "ping" }, "must start with /"},
		{"missing handler", func(m *Manifest) { m.Routes[0].Handler = "" }, "handler is required"},
		{"unknown method", func(m *Manifest) { m.Routes[0].Methods = []string{"FETCH"} }, "unsupported method"},
		{"duplicate route", func(m *Manifest) { m.Routes[1].Path = "/ping" }, "duplicate route GET /ping"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := sampleManifest()
			tt.mutate(&m)
			err := m.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}
}

func TestManifestNormalize(t *testing.T) {
	m := Manifest{Routes: []RouteItem{
		{Path: "/a", Handler: "h"},
		{Path: "/b", Methods: []string{" post ", "get"}, Handler: "h"},
	}}
	m.Normalize()

	assert.Equal(t, []string{"GET"}, m.Routes[0].Methods)
	assert.Equal(t, []string{"POST", "GET"}, m.Routes[1].Methods)
	assert.NoError(t, m.Validate())
}

func TestManifestCloneIsDeep(t *testing.T) {
	m := sampleManifest()
	c := m.Clone()
	require.True(t, m.Equal(c))

	c.Menus[0].Roles[0] = "viewer"
	c.Routes[1].Methods[0] = "PUT"
	c.Metadata["team"] = "dev"

	assert.Equal(t, "admin", m.Menus[0].Roles[0])
	assert.Equal(t, "GET", m.Routes[1].Methods[0])
	assert.Equal(t, "ops", m.Metadata["team"])
	assert.False(t, m.Equal(c))
}

func TestManifestCloneEmpty(t *testing.T) {
	c := Manifest{}.Clone()
	assert.NotNil(t, c.Menus)
	assert.NotNil(t, c.Routes)
	assert.Nil(t, c.Metadata)
	assert.True(t, c.Equal(Manifest{}))
}

func TestManifestEqual(t *testing.T) {
	base := sampleManifest()
	tests := []struct {
		name   string
		mutate func(m *Manifest)
	}{
		{"menu order", func(m *Manifest) { m.Menus[0].Order = 2 }},
		{"route roles", func(m *Manifest) { m.Routes[0].Roles = []string{"admin"} }},
		{"auth flag", func(m *Manifest) { m.Routes[0].AuthRequired = true }},
		{"metadata value", func(m *Manifest) { m.Metadata["team"] = "dev" }},
		{"metadata key", func(m *Manifest) { m.Metadata = map[string]string{"owner": "ops"} }},
		{"extra route", func(m *Manifest) { m.Routes = append(m.Routes, RouteItem{Path: "/x", Handler: "h"}) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			other := base.Clone()
			tt.mutate(&other)
			assert.False(t, base.Equal(other))
		})
	}
}

func TestDecodeDefinition(t *testing.T) {
	def, err := DecodeDefinition(strings.NewReader(`name: reports
version: 2.1.0
author: ops
manifest:
  routes:
    - path: /ping
      methods: [get, Post]
      handler: builtin.ping
      auth_required: true
  metadata:
    team: ops
`))
	require.NoError(t, err)
	assert.Equal(t, "reports", def.Name)
	assert.Equal(t, "2.1.0", def.Version)
	require.Len(t, def.Manifest.Routes, 1)
	assert.Equal(t, []string{"GET", "POST"}, def.Manifest.Routes[0].Methods)
	assert.True(t, def.Manifest.Routes[0].AuthRequired)
	assert.Equal(t, "ops", def.Manifest.Metadata["team"])
}

func TestDecodeDefinitionErrors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		errMsg string
	}{
		{"not yaml", "name: [", "decode plugin definition"},
		{"unknown field", "name: reports\nversion: 1.0.0\nowner: x\n", "decode plugin definition"},
		{"bad name", "name: Reports\nversion: 1.0.0\n", "invalid plugin name"},
		{"no version", "name: reports\n", "version is required"},
		{"bad manifest", "name: reports\nversion: 1.0.0\nmanifest:\n  routes:\n    - path: /x\n", "handler is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeDefinition(strings.NewReader(tt.input))
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}
}

func TestPluginStateAndJSON(t *testing.T) {
	p := &Plugin{Name: "reports", Enabled: true, Manifest: sampleManifest()}
	assert.Equal(t, StateDegraded, p.State())
	p.Loaded = true
	assert.Equal(t, StateLoaded, p.State())
	p.Enabled, p.Loaded = false, false
	assert.Equal(t, StateDisabled, p.State())

	raw, err := p.MarshalJSON()
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"state":"disabled"`)
	assert.Contains(t, string(raw), `"routes":2`)
	assert.Contains(t, string(raw), `"menus":1`)

	c := p.Clone()
	c.Manifest.Routes[0].Path = "/changed"
	assert.Equal(t, "/ping", p.Manifest.Routes[0].Path)
	assert.Nil(t, (*Plugin)(nil).Clone())
}
