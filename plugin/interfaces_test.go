package plugin

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
)

// testFullModule implements all interfaces -- verifies compile-time compliance.
type testFullModule struct{}

func (m *testFullModule) Name() string                               { return "test-full" }
func (m *testFullModule) Enable(context.Context, *AppContext) error  { return nil }
func (m *testFullModule) Disable(context.Context, *AppContext) error { return nil }
func (m *testFullModule) Handlers() map[string]http.HandlerFunc      { return nil }
func (m *testFullModule) RegisterRoutes(chi.Router)                  {}

var _ Module = (*testFullModule)(nil)
var _ Disableable = (*testFullModule)(nil)
var _ HandlerProvider = (*testFullModule)(nil)
var _ RouteProvider = (*testFullModule)(nil)

// testMinimalModule implements ONLY the core interface.
type testMinimalModule struct{}

func (m *testMinimalModule) Name() string                              { return "test-minimal" }
func (m *testMinimalModule) Enable(context.Context, *AppContext) error { return nil }

func TestCapabilityDetection(t *testing.T) {
	full := Module(&testFullModule{})
	minimal := Module(&testMinimalModule{})

	if _, ok := full.(HandlerProvider); !ok {
		t.Error("testFullModule should implement HandlerProvider")
	}
	if _, ok := full.(Disableable); !ok {
		t.Error("testFullModule should implement Disableable")
	}
	if _, ok := minimal.(HandlerProvider); ok {
		t.Error("testMinimalModule should NOT implement HandlerProvider")
	}
	if _, ok := minimal.(RouteProvider); ok {
		t.Error("testMinimalModule should NOT implement RouteProvider")
	}
}
