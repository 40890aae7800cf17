// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logstore

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/logbook/lib/clock"
	"github.com/bureau-foundation/logbook/lib/sqlitepool"
)

var (
	// ErrNotFound is returned when a log or project does not exist.
	ErrNotFound = errors.New("logstore: not found")

	// ErrProjectExists is returned by CreateProject for a duplicate
	// name.
	ErrProjectExists = errors.New("logstore: project name already exists")

	// ErrInvalidProject wraps validation failures of project input.
	ErrInvalidProject = errors.New("logstore: invalid project")

	// ErrInvalidLog wraps validation failures of a submitted log.
	ErrInvalidLog = errors.New("logstore: invalid log")

	// ErrInvalidFilter wraps validation failures of query filters.
	ErrInvalidFilter = errors.New("logstore: invalid filter")
)

// Store is the SQLite-backed log store. It is safe for concurrent use:
// every operation borrows its own pooled connection.
type Store struct {
	pool     *sqlitepool.Pool
	clock    clock.Clock
	logger   *slog.Logger
	location *time.Location
}

// StoreConfig holds the parameters for OpenStore.
type StoreConfig struct {
	// Path is the SQLite database file. Its directory must exist.
	Path string

	// PoolSize is the number of pooled connections. Defaults to 4.
	PoolSize int

	// Clock stamps logs submitted without a timestamp and anchors the
	// "today" and history windows. Required.
	Clock clock.Clock

	// Logger receives operational messages. Required.
	Logger *slog.Logger

	// Location defines local midnight for the "today" counters in
	// GetProjectMetrics. Defaults to time.Local.
	Location *time.Location
}

// OpenStore opens (creating if needed) the database at cfg.Path and
// applies the schema.
func OpenStore(cfg StoreConfig) (*Store, error) {
	if cfg.Clock == nil {
		return nil, fmt.Errorf("logstore: Clock is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logstore: Logger is required")
	}

	location := cfg.Location
	if location == nil {
		location = time.Local
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: cfg.PoolSize,
		Logger:   cfg.Logger,
		Setup: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("logstore: %w", err)
	}

	return &Store{
		pool:     pool,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
		location: location,
	}, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}
