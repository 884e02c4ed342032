package loader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leeforge/pluginhub/permission"
)

func TestCasbinPattern(t *testing.T) {
	assert.Equal(t, "/ext/a/items/:id", casbinPattern("/ext/a/items/{id}"))
	assert.Equal(t, "/ext/a/items/:id/:sub", casbinPattern("/ext/a/items/{id:[0-9]+}/{sub}"))
	assert.Equal(t, "/ext/a/*", casbinPattern("/ext/a/*"))
}

func TestGuardPoliciesAreScopedPerPlugin(t *testing.T) {
	g, err := NewGuard()
	require.NoError(t, err)

	require.NoError(t, g.Replace("a", []permission.Policy{{Role: "admin", Plugin: "a", Path: "/ext/a/items/{id}", Method: "GET"}}))
	require.NoError(t, g.Replace("b", []permission.Policy{{Role: "admin", Plugin: "b", Path: "/ext/b/x", Method: "GET"}}))

	ok, err := g.Allowed([]string{"ADMIN"}, "a", "/ext/a/items/42", "GET")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.Allowed([]string{"admin"}, "b", "/ext/a/items/42", "GET")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = g.Allowed([]string{"admin"}, "a", "/ext/a/items/42", "POST")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, g.Replace("a", nil))
	ok, err = g.Allowed([]string{"admin"}, "a", "/ext/a/items/42", "GET")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, g.HasPolicy("admin", "b", "/ext/b/x", "GET"))

	require.NoError(t, g.Remove("b"))
	assert.False(t, g.HasPolicy("admin", "b", "/ext/b/x", "GET"))
}
