package lifecycle

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/leeforge/pluginhub/plugin"
	"github.com/leeforge/pluginhub/store"
)

// record is the audit part of a mutation.
type record struct {
	action  plugin.Action
	version string
	user    string
	detail  string
}

// appendHistory writes the next entry for name. Seq continues from the
// last entry and the timestamp is forced strictly past the previous one,
// so clock steps can never reorder the log.
func (c *Controller) appendHistory(tx store.Tx, name string, rec record) (*plugin.HistoryEntry, error) {
	last, err := tx.LastHistory(name)
	if err != nil {
		return nil, err
	}

	ts := c.now().UTC().Truncate(time.Microsecond)
	seq := int64(1)
	if last != nil {
		seq = last.Seq + 1
		if !ts.After(last.Timestamp) {
			ts = last.Timestamp.UTC().Add(time.Microsecond)
		}
	}

	entry := &plugin.HistoryEntry{
		ID:         uuid.NewString(),
		PluginName: name,
		Seq:        seq,
		Action:     rec.action,
		Version:    rec.version,
		Timestamp:  ts,
		User:       userOrDefault(rec.user),
		Detail:     rec.detail,
	}
	if err := tx.AppendHistory(entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// History returns the plugin's audit trail, oldest first.
func (c *Controller) History(ctx context.Context, name string) ([]*plugin.HistoryEntry, error) {
	if _, err := c.current(ctx, name); err != nil {
		return nil, err
	}
	return c.store.History(ctx, name)
}
