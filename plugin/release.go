package plugin

import "time"

// ReleaseStatus marks whether a release is the one currently live.
type ReleaseStatus string

const (
	ReleaseActive     ReleaseStatus = "active"
	ReleaseSuperseded ReleaseStatus = "superseded"
)

// Release is an immutable, uniquely versioned snapshot of a manifest.
// Only Status changes after creation.
type Release struct {
	PluginName string        `json:"plugin_name"`
	Version    string        `json:"version"`
	Seq        int64         `json:"seq"`
	CreatedAt  time.Time     `json:"created_at"`
	CreatedBy  string        `json:"created_by"`
	Manifest   Manifest      `json:"manifest"`
	Status     ReleaseStatus `json:"status"`
}

// Clone returns a deep copy.
func (r *Release) Clone() *Release {
	if r == nil {
		return nil
	}
	out := *r
	out.Manifest = r.Manifest.Clone()
	return &out
}
