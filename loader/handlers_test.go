package loader

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerRegistry(t *testing.T) {
	r := NewHandlerRegistry()
	noop := func(http.ResponseWriter, *http.Request) {}

	require.NoError(t, r.Register("b", noop))
	require.NoError(t, r.Register("a", noop))
	assert.Error(t, r.Register("a", noop))
	assert.Error(t, r.Register("", noop))
	assert.Error(t, r.Register("c", nil))

	_, ok := r.Lookup("a")
	assert.True(t, ok)
	_, ok = r.Lookup("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"a", "b"}, r.Names())
	assert.Panics(t, func() { r.MustRegister("a", noop) })
}

func TestRegisterBuiltinsTwice(t *testing.T) {
	r := NewHandlerRegistry()
	require.NoError(t, RegisterBuiltins(r))
	assert.Error(t, RegisterBuiltins(r))
	assert.Equal(t, []string{HandlerEcho, HandlerInfo, HandlerPing}, r.Names())
}
