// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package logstore is logbook's log storage and query engine, backed by
// SQLite through lib/sqlitepool.
//
// # Write path
//
// [Store.CreateLog] splits a log's metadata by the project's
// configuration. Keys listed in trackedMetadataKeys are normalized: each
// distinct (project, key, value) triple is stored once in the metadata
// table and linked to logs through the log_metadata bridge. All other
// keys are embedded as a JSON object on the log row. The log row, the
// get-or-create of each metadata row, and the bridge rows commit in one
// IMMEDIATE transaction. [Store.CreateBulkLog] runs a whole batch in one
// transaction.
//
// Metadata get-or-create is lookup-then-insert. The unique index on
// (key, value, project_id) arbitrates concurrent creators: an insert
// that fails with SQLITE_CONSTRAINT_UNIQUE re-reads and returns the
// winning row's id.
//
// # Read path
//
// [Store.GetLogsWithFilters] translates [logs.LogFilters] into a list of
// [Predicate] values and renders them once (see [BuildPageQuery]). The
// query runs in two phases: first it selects the distinct (id,
// timestamp) pairs of qualifying logs in (timestamp, id) order, limited
// to one more than the page size; then it joins only those ids to the
// metadata tables for hydration. Metadata fan-out is bounded by the
// page, never by the filtered result set.
//
// Pagination is keyset-based. A cursor is the (id, timestamp) of the
// last row returned; the next page holds rows strictly after it in the
// composite order. Rows are never updated, so a cursor stays valid while
// new logs are inserted.
package logstore
