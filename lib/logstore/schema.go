// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logstore

// schema creates the logbook tables. The four table definitions and the
// metadata indexes are the compatibility surface; the trailing indexes
// exist for the query planner only.
const schema = `
CREATE TABLE IF NOT EXISTS projects (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE,
	description TEXT,
	created_at  TEXT NOT NULL,
	config      TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS logs (
	id                TEXT PRIMARY KEY,
	project_id        TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	level             TEXT NOT NULL,
	message           TEXT NOT NULL,
	timestamp         TEXT NOT NULL,
	embedded_metadata TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS metadata (
	id         TEXT PRIMARY KEY,
	project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	key        TEXT NOT NULL,
	value      TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS metadata_key_value_project_idx ON metadata(key, value, project_id);
CREATE INDEX IF NOT EXISTS metadata_key_idx ON metadata(key);
CREATE INDEX IF NOT EXISTS metadata_value_idx ON metadata(value);
CREATE INDEX IF NOT EXISTS metadata_project_id_idx ON metadata(project_id);

CREATE TABLE IF NOT EXISTS log_metadata (
	id          TEXT PRIMARY KEY,
	log_id      TEXT NOT NULL REFERENCES logs(id) ON DELETE CASCADE,
	metadata_id TEXT NOT NULL REFERENCES metadata(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS logs_project_timestamp_idx ON logs(project_id, timestamp, id);
CREATE INDEX IF NOT EXISTS logs_timestamp_idx ON logs(timestamp, id);
CREATE INDEX IF NOT EXISTS log_metadata_log_id_idx ON log_metadata(log_id);
CREATE INDEX IF NOT EXISTS log_metadata_metadata_id_idx ON log_metadata(metadata_id);
`
