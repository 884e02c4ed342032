// Package sqlstore is a store.Store on database/sql through sqlx. It
// supports sqlite3 and postgres; queries are written with ? placeholders
// and rebound for the active driver.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	apperrors "github.com/leeforge/pluginhub/errors"
	"github.com/leeforge/pluginhub/json"
	"github.com/leeforge/pluginhub/plugin"
	"github.com/leeforge/pluginhub/store"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

var _ store.Store = (*Store)(nil)

// Open connects to dsn and creates the schema when missing.
func Open(ctx context.Context, driver, dsn string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var schema string
	switch driver {
	case DriverSQLite:
		schema = sqliteSchema
	case DriverPostgres:
		schema = postgresSchema
	default:
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}

	if driver == DriverSQLite {
		dsn = immediateTxLock(dsn)
	}
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: connect %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// One connection keeps :memory: databases shared and avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlstore: enable foreign keys: %w", err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: migrate: %w", err)
	}

	logger.Info("sql store ready", zap.String("driver", driver))
	return &Store{db: db, logger: logger.Named("sqlstore")}, nil
}

// immediateTxLock makes sqlite take the database write lock at BEGIN, so
// transactions from separate processes sharing one file run one at a time.
func immediateTxLock(dsn string) string {
	if strings.Contains(dsn, "_txlock=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&_txlock=immediate"
	}
	return dsn + "?_txlock=immediate"
}

func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

func (s *Store) GetPlugin(ctx context.Context, name string) (*plugin.Plugin, error) {
	return getPlugin(ctx, s.db, name)
}

func (s *Store) ListPlugins(ctx context.Context) ([]*plugin.Plugin, error) {
	var rows []pluginRow
	if err := sqlx.SelectContext(ctx, s.db, &rows, s.db.Rebind(selectPlugins+" ORDER BY name")); err != nil {
		return nil, apperrors.WrapInternal(err, "list plugins")
	}
	out := make([]*plugin.Plugin, 0, len(rows))
	for _, row := range rows {
		p, err := row.toPlugin()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Store) ListReleases(ctx context.Context, name string) ([]*plugin.Release, error) {
	return listReleases(ctx, s.db, name)
}

func (s *Store) History(ctx context.Context, name string) ([]*plugin.HistoryEntry, error) {
	var rows []historyRow
	query := s.db.Rebind(selectHistory + " WHERE plugin_name = ? ORDER BY seq")
	if err := sqlx.SelectContext(ctx, s.db, &rows, query, name); err != nil {
		return nil, apperrors.WrapInternal(err, "list history")
	}
	out := make([]*plugin.HistoryEntry, len(rows))
	for i, row := range rows {
		out[i] = row.toEntry()
	}
	return out, nil
}

// Update runs fn inside a database transaction.
func (s *Store) Update(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperrors.WrapInternal(err, "begin transaction")
	}
	if err := fn(&sqlTx{ctx: ctx, tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Warn("rollback failed", zap.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperrors.WrapInternal(err, "commit transaction")
	}
	return nil
}

type sqlTx struct {
	ctx context.Context
	tx  *sqlx.Tx
}

func (t *sqlTx) Plugin(name string) (*plugin.Plugin, error) {
	return getPlugin(t.ctx, t.tx, name)
}

// LockPlugin takes a row lock on postgres. sqlite transactions already hold
// the write lock from BEGIN IMMEDIATE.
func (t *sqlTx) LockPlugin(name string) (*plugin.Plugin, error) {
	if t.tx.DriverName() != DriverPostgres {
		return t.Plugin(name)
	}
	var row pluginRow
	err := sqlx.GetContext(t.ctx, t.tx, &row, t.tx.Rebind(selectPlugins+" WHERE name = ? FOR UPDATE"), name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("plugin", name)
	}
	if err != nil {
		return nil, apperrors.WrapInternal(err, "lock plugin")
	}
	return row.toPlugin()
}

func (t *sqlTx) CreatePlugin(p *plugin.Plugin) error {
	manifest, err := encodeManifest(p.Manifest)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(t.ctx, t.tx.Rebind(`INSERT INTO plugins
		(name, display_name, version, description, author, category, enabled, loaded, manifest, last_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		p.Name, p.DisplayName, p.Version, p.Description, p.Author, p.Category,
		p.Enabled, p.Loaded, manifest, p.LastError, p.CreatedAt.UTC(), p.UpdatedAt.UTC())
	if isUniqueViolation(err) {
		return apperrors.NewConflict("plugin", p.Name)
	}
	if err != nil {
		return apperrors.WrapInternal(err, "insert plugin")
	}
	return nil
}

func (t *sqlTx) SavePlugin(p *plugin.Plugin) error {
	manifest, err := encodeManifest(p.Manifest)
	if err != nil {
		return err
	}
	res, err := t.tx.ExecContext(t.ctx, t.tx.Rebind(`UPDATE plugins SET
		display_name = ?, version = ?, description = ?, author = ?, category = ?,
		enabled = ?, loaded = ?, manifest = ?, last_error = ?, updated_at = ?
		WHERE name = ?`),
		p.DisplayName, p.Version, p.Description, p.Author, p.Category,
		p.Enabled, p.Loaded, manifest, p.LastError, p.UpdatedAt.UTC(), p.Name)
	if err != nil {
		return apperrors.WrapInternal(err, "update plugin")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperrors.NewNotFound("plugin", p.Name)
	}
	return nil
}

func (t *sqlTx) Releases(name string) ([]*plugin.Release, error) {
	return listReleases(t.ctx, t.tx, name)
}

func (t *sqlTx) Release(name, version string) (*plugin.Release, error) {
	var row releaseRow
	query := t.tx.Rebind(selectReleases + " WHERE plugin_name = ? AND version = ?")
	err := sqlx.GetContext(t.ctx, t.tx, &row, query, name, version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("release", name+"@"+version)
	}
	if err != nil {
		return nil, apperrors.WrapInternal(err, "get release")
	}
	return row.toRelease()
}

func (t *sqlTx) CreateRelease(r *plugin.Release) error {
	manifest, err := encodeManifest(r.Manifest)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(t.ctx, t.tx.Rebind(`INSERT INTO plugin_releases
		(plugin_name, version, seq, created_at, created_by, manifest, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		r.PluginName, r.Version, r.Seq, r.CreatedAt.UTC(), r.CreatedBy, manifest, string(r.Status))
	if isUniqueViolation(err) {
		return apperrors.NewConflict("release", r.PluginName+"@"+r.Version)
	}
	if err != nil {
		return apperrors.WrapInternal(err, "insert release")
	}
	return nil
}

func (t *sqlTx) SetReleaseStatus(name, version string, status plugin.ReleaseStatus) error {
	res, err := t.tx.ExecContext(t.ctx,
		t.tx.Rebind(`UPDATE plugin_releases SET status = ? WHERE plugin_name = ? AND version = ?`),
		string(status), name, version)
	if err != nil {
		return apperrors.WrapInternal(err, "update release status")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperrors.NewNotFound("release", name+"@"+version)
	}
	return nil
}

func (t *sqlTx) LastHistory(name string) (*plugin.HistoryEntry, error) {
	var row historyRow
	query := t.tx.Rebind(selectHistory + " WHERE plugin_name = ? ORDER BY seq DESC LIMIT 1")
	err := sqlx.GetContext(t.ctx, t.tx, &row, query, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.WrapInternal(err, "last history entry")
	}
	return row.toEntry(), nil
}

func (t *sqlTx) AppendHistory(e *plugin.HistoryEntry) error {
	_, err := t.tx.ExecContext(t.ctx, t.tx.Rebind(`INSERT INTO plugin_history
		(id, plugin_name, seq, action, version, ts, actor, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		e.ID, e.PluginName, e.Seq, string(e.Action), e.Version, e.Timestamp.UTC(), e.User, e.Detail)
	if err != nil {
		return apperrors.WrapInternal(err, "append history")
	}
	return nil
}

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx.
type queryer interface {
	sqlx.QueryerContext
	Rebind(string) string
}

func getPlugin(ctx context.Context, q queryer, name string) (*plugin.Plugin, error) {
	var row pluginRow
	err := sqlx.GetContext(ctx, q, &row, q.Rebind(selectPlugins+" WHERE name = ?"), name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("plugin", name)
	}
	if err != nil {
		return nil, apperrors.WrapInternal(err, "get plugin")
	}
	return row.toPlugin()
}

func listReleases(ctx context.Context, q queryer, name string) ([]*plugin.Release, error) {
	var rows []releaseRow
	query := q.Rebind(selectReleases + " WHERE plugin_name = ? ORDER BY seq")
	if err := sqlx.SelectContext(ctx, q, &rows, query, name); err != nil {
		return nil, apperrors.WrapInternal(err, "list releases")
	}
	out := make([]*plugin.Release, 0, len(rows))
	for _, row := range rows {
		r, err := row.toRelease()
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	var pgErr *pq.Error
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func encodeManifest(m plugin.Manifest) (string, error) {
	data, err := json.MarshalToString(m.Clone())
	if err != nil {
		return "", apperrors.WrapInternal(err, "encode manifest")
	}
	return data, nil
}

func decodeManifest(data string) (plugin.Manifest, error) {
	var m plugin.Manifest
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return plugin.Manifest{}, apperrors.WrapInternal(err, "decode manifest")
	}
	return m.Clone(), nil
}
