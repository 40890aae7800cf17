// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool provides the SQLite connection pool used by the
// logbook store.
//
// It wraps zombiezen.com/go/sqlite's sqlitex.Pool and applies a fixed
// set of pragmas to every connection:
//
//   - journal_mode=WAL: readers never block the single writer.
//   - synchronous=NORMAL: commits survive process crashes.
//   - busy_timeout=5000: writers wait for the lock instead of failing
//     with SQLITE_BUSY.
//   - foreign_keys: ON unless [Config].DisableForeignKeys is set. The
//     log schema depends on ON DELETE CASCADE between projects, logs,
//     metadata, and the log_metadata bridge.
//   - cache_size=-8192, temp_store=MEMORY.
//
// Schema setup runs once per pool through [Config].Setup, on a single
// connection, before Open returns. Per-connection hooks (custom
// functions, extra pragmas) go in [Config].OnConnect.
//
// Callers [Pool.Take] a connection, use it from one goroutine, and
// [Pool.Put] it back. Transactions are managed with
// sqlitex.ImmediateTransaction and sqlitex.Save.
package sqlitepool
