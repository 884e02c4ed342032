package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructorsSetTypeAndStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    *AppError
		typ    ErrorType
		status int
		is     func(error) bool
	}{
		{"not found", NewNotFound("plugin", "a"), ErrorTypeNotFound, http.StatusNotFound, IsNotFound},
		{"conflict", NewConflict("plugin", "a"), ErrorTypeConflict, http.StatusConflict, IsConflict},
		{"invalid state", NewInvalidState("disabled"), ErrorTypeInvalidState, http.StatusConflict, IsInvalidState},
		{"load", NewLoadError("a", "init", fmt.Errorf("boom")), ErrorTypeLoad, http.StatusUnprocessableEntity, IsLoadError},
		{"lock timeout", NewLockTimeout("a", nil), ErrorTypeLockTimeout, http.StatusLocked, IsLockTimeout},
		{"internal", NewInternal("disk"), ErrorTypeInternal, http.StatusInternalServerError, IsInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.typ, tt.err.Type)
			assert.Equal(t, tt.status, tt.err.Status())
			assert.True(t, tt.is(tt.err))
			assert.True(t, tt.is(fmt.Errorf("wrapped: %w", tt.err)))
		})
	}
}

func TestIsDoesNotCrossTypes(t *testing.T) {
	err := NewNotFound("release", "1.0.0")
	assert.False(t, IsConflict(err))
	assert.False(t, IsLoadError(err))
}

func TestLoadErrorKeepsCause(t *testing.T) {
	cause := stderrors.New("handler missing")
	err := NewLoadError("reports", "routes", cause)

	require.ErrorIs(t, err, cause)
	assert.Equal(t, "reports", err.Details["plugin"])
	assert.Equal(t, "routes", err.Details["stage"])
	assert.Contains(t, err.Error(), "handler missing")
}

func TestFromErrorPlain(t *testing.T) {
	appErr := FromError(stderrors.New("plain"))
	assert.Equal(t, ErrorTypeUnknown, appErr.Type)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status())
	assert.Nil(t, FromError(nil))
}

func TestRecover(t *testing.T) {
	assert.Nil(t, Recover(nil))
	assert.EqualError(t, Recover("boom"), "boom")
	assert.EqualError(t, Recover(42), "42")
}
