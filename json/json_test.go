package json

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type releaseRequest struct {
	Version string `json:"version"`
	User    string `json:"user" default:"system"`
}

func TestUnmarshalAppliesDefaults(t *testing.T) {
	var req releaseRequest
	require.NoError(t, Unmarshal([]byte(`{"version":"1.0.1"}`), &req))

	assert.Equal(t, "1.0.1", req.Version)
	assert.Equal(t, "system", req.User)
}

func TestUnmarshalKeepsExplicitValues(t *testing.T) {
	var req releaseRequest
	require.NoError(t, Unmarshal([]byte(`{"version":"2.0.0","user":"alice"}`), &req))
	assert.Equal(t, "alice", req.User)
}

func TestUnmarshalNonStruct(t *testing.T) {
	var items []string
	require.NoError(t, Unmarshal([]byte(`["a","b"]`), &items))
	assert.Equal(t, []string{"a", "b"}, items)

	var m map[string]int
	require.NoError(t, Unmarshal([]byte(`{"a":1}`), &m))
	assert.Equal(t, 1, m["a"])
}

func TestDecoderDisallowUnknownFields(t *testing.T) {
	dec := NewDecoder(bytes.NewReader([]byte(`{"version":"1","extra":true}`)))
	dec.DisallowUnknownFields()

	var req releaseRequest
	assert.Error(t, dec.Decode(&req))
}

func TestEncoderSetEscapeHTML(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	require.NoError(t, enc.Encode(map[string]string{"badge": "<new>"}))
	assert.Contains(t, buf.String(), "<new>")
}
