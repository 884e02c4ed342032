package plugin

import "time"

// Action names a state-changing lifecycle operation.
type Action string

const (
	ActionCreate         Action = "create"
	ActionEnable         Action = "enable"
	ActionDisable        Action = "disable"
	ActionReload         Action = "reload"
	ActionRelease        Action = "release"
	ActionRollback       Action = "rollback"
	ActionUpdateManifest Action = "update_manifest"
)

// HistoryEntry is one immutable audit record. Seq and Timestamp both
// increase strictly per plugin.
type HistoryEntry struct {
	ID         string    `json:"id"`
	PluginName string    `json:"plugin_name"`
	Seq        int64     `json:"seq"`
	Action     Action    `json:"action"`
	Version    string    `json:"version"`
	Timestamp  time.Time `json:"timestamp"`
	User       string    `json:"user"`
	Detail     string    `json:"detail"`
}
