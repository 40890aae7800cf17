// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitepool

import (
	"context"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Config holds the parameters for opening a pool.
type Config struct {
	// Path is the database file. Required. The parent directory must
	// exist.
	Path string

	// PoolSize is the number of connections. Defaults to 4.
	PoolSize int

	// DisableForeignKeys turns off foreign key enforcement (and with
	// it, ON DELETE CASCADE).
	DisableForeignKeys bool

	// Setup runs once, on one connection, after the pool opens. A
	// Setup error closes the pool and fails Open.
	Setup func(conn *sqlite.Conn) error

	// OnConnect runs on every connection after the standard pragmas.
	OnConnect func(conn *sqlite.Conn) error

	// Logger receives pool open/close messages. Nil discards.
	Logger *slog.Logger
}

// Pool is a fixed-size set of SQLite connections. Safe for concurrent
// use; the connections it hands out are not.
type Pool struct {
	inner  *sqlitex.Pool
	logger *slog.Logger
	path   string
}

// Open creates the pool, runs Setup, and returns it. The caller must
// Close the pool.
func Open(cfg Config) (*Pool, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlitepool: Path is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}

	pragmas := standardPragmas(!cfg.DisableForeignKeys)
	inner, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize: poolSize,
		PrepareConn: func(conn *sqlite.Conn) error {
			return prepareConnection(conn, pragmas, cfg.OnConnect)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqlitepool: opening %s: %w", cfg.Path, err)
	}

	pool := &Pool{inner: inner, logger: logger, path: cfg.Path}

	if cfg.Setup != nil {
		if err := pool.runSetup(cfg.Setup); err != nil {
			inner.Close()
			return nil, err
		}
	}

	logger.Info("sqlite pool opened",
		"path", cfg.Path,
		"pool_size", poolSize,
		"foreign_keys", !cfg.DisableForeignKeys,
	)
	return pool, nil
}

func (p *Pool) runSetup(setup func(*sqlite.Conn) error) error {
	conn, err := p.Take(context.Background())
	if err != nil {
		return err
	}
	defer p.Put(conn)

	if err := setup(conn); err != nil {
		return fmt.Errorf("sqlitepool: setup %s: %w", p.path, err)
	}
	return nil
}

// Take borrows a connection, blocking until one is free or ctx ends.
// Every successful Take must be paired with Put:
//
//	conn, err := pool.Take(ctx)
//	if err != nil {
//	    return err
//	}
//	defer pool.Put(conn)
func (p *Pool) Take(ctx context.Context) (*sqlite.Conn, error) {
	conn, err := p.inner.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlitepool: take: %w", err)
	}
	return conn, nil
}

// Put returns a connection to the pool. Nil is a no-op.
func (p *Pool) Put(conn *sqlite.Conn) {
	p.inner.Put(conn)
}

// Close closes every connection, waiting for borrowed ones to return.
func (p *Pool) Close() error {
	if err := p.inner.Close(); err != nil {
		p.logger.Error("sqlite pool close error",
			"path", p.path,
			"error", err,
		)
		return fmt.Errorf("sqlitepool: closing %s: %w", p.path, err)
	}
	p.logger.Info("sqlite pool closed", "path", p.path)
	return nil
}

func standardPragmas(foreignKeys bool) []string {
	foreignKeyPragma := "PRAGMA foreign_keys=ON"
	if !foreignKeys {
		foreignKeyPragma = "PRAGMA foreign_keys=OFF"
	}
	return []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		foreignKeyPragma,
		"PRAGMA cache_size=-8192",
		"PRAGMA temp_store=MEMORY",
	}
}

// prepareConnection runs once per connection, on first use.
func prepareConnection(conn *sqlite.Conn, pragmas []string, onConnect func(*sqlite.Conn) error) error {
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("sqlitepool: %s: %w", pragma, err)
		}
	}
	if onConnect != nil {
		if err := onConnect(conn); err != nil {
			return fmt.Errorf("sqlitepool: OnConnect: %w", err)
		}
	}
	return nil
}
