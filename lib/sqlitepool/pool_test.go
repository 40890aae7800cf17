// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitepool_test

import (
	"context"
	"path/filepath"
	"testing"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/logbook/lib/sqlitepool"
)

const parentChildSchema = `
	CREATE TABLE IF NOT EXISTS parent (id TEXT PRIMARY KEY);
	CREATE TABLE IF NOT EXISTS child (
		id TEXT PRIMARY KEY,
		parent_id TEXT NOT NULL REFERENCES parent(id) ON DELETE CASCADE
	);
`

func TestPragmasApplied(t *testing.T) {
	pool := openTestPool(t, sqlitepool.Config{})
	conn := take(t, pool)

	if got := queryText(t, conn, "PRAGMA journal_mode"); got != "wal" {
		t.Errorf("journal_mode = %q, want wal", got)
	}
	if got := queryText(t, conn, "PRAGMA foreign_keys"); got != "1" {
		t.Errorf("foreign_keys = %q, want 1", got)
	}
}

func TestForeignKeyCascade(t *testing.T) {
	pool := openTestPool(t, sqlitepool.Config{
		Setup: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, parentChildSchema, nil)
		},
	})
	conn := take(t, pool)

	err := sqlitex.ExecuteScript(conn, `
		INSERT INTO parent (id) VALUES ('p1');
		INSERT INTO child (id, parent_id) VALUES ('c1', 'p1'), ('c2', 'p1');
		DELETE FROM parent WHERE id = 'p1';
	`, nil)
	if err != nil {
		t.Fatalf("script: %v", err)
	}
	if got := queryText(t, conn, "SELECT count(*) FROM child"); got != "0" {
		t.Errorf("child rows after parent delete = %s, want 0", got)
	}
}

func TestForeignKeysDisabled(t *testing.T) {
	pool := openTestPool(t, sqlitepool.Config{DisableForeignKeys: true})
	conn := take(t, pool)
	if got := queryText(t, conn, "PRAGMA foreign_keys"); got != "0" {
		t.Errorf("foreign_keys = %q, want 0", got)
	}
}

func TestSetupErrorFailsOpen(t *testing.T) {
	_, err := sqlitepool.Open(sqlitepool.Config{
		Path: filepath.Join(t.TempDir(), "broken.db"),
		Setup: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteTransient(conn, "CREATE TABLE", nil)
		},
	})
	if err == nil {
		t.Fatal("Open succeeded with a failing Setup")
	}
}

func TestEmptyPathRejected(t *testing.T) {
	if _, err := sqlitepool.Open(sqlitepool.Config{}); err == nil {
		t.Fatal("expected error for empty Path")
	}
}

func TestTakeHonorsCancellation(t *testing.T) {
	pool := openTestPool(t, sqlitepool.Config{PoolSize: 1})
	take(t, pool)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := pool.Take(ctx); err == nil {
		t.Fatal("Take on an exhausted pool with a cancelled context succeeded")
	}
}

func openTestPool(t *testing.T, cfg sqlitepool.Config) *sqlitepool.Pool {
	t.Helper()
	cfg.Path = filepath.Join(t.TempDir(), "test.db")
	pool, err := sqlitepool.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := pool.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return pool
}

func take(t *testing.T, pool *sqlitepool.Pool) *sqlite.Conn {
	t.Helper()
	conn, err := pool.Take(context.Background())
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	t.Cleanup(func() { pool.Put(conn) })
	return conn
}

func queryText(t *testing.T, conn *sqlite.Conn, query string) string {
	t.Helper()
	var result string
	err := sqlitex.ExecuteTransient(conn, query, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			result = stmt.ColumnText(0)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("%s: %v", query, err)
	}
	return result
}
