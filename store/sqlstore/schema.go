package sqlstore

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS plugins (
	name         TEXT PRIMARY KEY,
	display_name TEXT NOT NULL,
	version      TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	author       TEXT NOT NULL DEFAULT '',
	category     TEXT NOT NULL DEFAULT '',
	enabled      BOOLEAN NOT NULL DEFAULT 0,
	loaded       BOOLEAN NOT NULL DEFAULT 0,
	manifest     TEXT NOT NULL,
	last_error   TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMP NOT NULL,
	updated_at   TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS plugin_releases (
	plugin_name TEXT NOT NULL REFERENCES plugins(name),
	version     TEXT NOT NULL,
	seq         INTEGER NOT NULL,
	created_at  TIMESTAMP NOT NULL,
	created_by  TEXT NOT NULL,
	manifest    TEXT NOT NULL,
	status      TEXT NOT NULL,
	PRIMARY KEY (plugin_name, version)
);
CREATE TABLE IF NOT EXISTS plugin_history (
	id          TEXT PRIMARY KEY,
	plugin_name TEXT NOT NULL REFERENCES plugins(name),
	seq         INTEGER NOT NULL,
	action      TEXT NOT NULL,
	version     TEXT NOT NULL,
	ts          TIMESTAMP NOT NULL,
	actor       TEXT NOT NULL,
	detail      TEXT NOT NULL DEFAULT '',
	UNIQUE (plugin_name, seq)
);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS plugins (
	name         TEXT PRIMARY KEY,
	display_name TEXT NOT NULL,
	version      TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	author       TEXT NOT NULL DEFAULT '',
	category     TEXT NOT NULL DEFAULT '',
	enabled      BOOLEAN NOT NULL DEFAULT FALSE,
	loaded       BOOLEAN NOT NULL DEFAULT FALSE,
	manifest     JSONB NOT NULL,
	last_error   TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS plugin_releases (
	plugin_name TEXT NOT NULL REFERENCES plugins(name),
	version     TEXT NOT NULL,
	seq         BIGINT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	created_by  TEXT NOT NULL,
	manifest    JSONB NOT NULL,
	status      TEXT NOT NULL,
	PRIMARY KEY (plugin_name, version)
);
CREATE TABLE IF NOT EXISTS plugin_history (
	id          UUID PRIMARY KEY,
	plugin_name TEXT NOT NULL REFERENCES plugins(name),
	seq         BIGINT NOT NULL,
	action      TEXT NOT NULL,
	version     TEXT NOT NULL,
	ts          TIMESTAMPTZ NOT NULL,
	actor       TEXT NOT NULL,
	detail      TEXT NOT NULL DEFAULT '',
	UNIQUE (plugin_name, seq)
);
`
