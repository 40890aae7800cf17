// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logstore

import (
	"fmt"

	"github.com/google/uuid"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// getOrCreateMetadata returns the id of the (project, key, value)
// metadata row, inserting it when absent. Must run inside the caller's
// transaction.
func getOrCreateMetadata(conn *sqlite.Conn, projectID, key, value string) (string, error) {
	id, found, err := lookupMetadata(conn, projectID, key, value)
	if err != nil {
		return "", err
	}
	if found {
		return id, nil
	}
	return createMetadata(conn, projectID, key, value)
}

// createMetadata inserts a metadata row. When the unique index rejects
// the insert because another writer created the same triple first, the
// existing row's id is returned instead.
func createMetadata(conn *sqlite.Conn, projectID, key, value string) (string, error) {
	id := uuid.NewString()
	err := sqlitex.Execute(conn,
		`INSERT INTO metadata (id, project_id, key, value) VALUES (?, ?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{id, projectID, key, value}})
	if err == nil {
		return id, nil
	}
	if sqlite.ErrCode(err) != sqlite.ResultConstraintUnique {
		return "", fmt.Errorf("logstore: insert metadata %q: %w", key, err)
	}

	existing, found, lookupErr := lookupMetadata(conn, projectID, key, value)
	if lookupErr != nil {
		return "", lookupErr
	}
	if !found {
		return "", fmt.Errorf("logstore: metadata %q rejected as duplicate but not found on reread", key)
	}
	return existing, nil
}

func lookupMetadata(conn *sqlite.Conn, projectID, key, value string) (string, bool, error) {
	var id string
	found := false
	err := sqlitex.Execute(conn,
		`SELECT id FROM metadata WHERE key = ? AND value = ? AND project_id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{key, value, projectID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				id = stmt.ColumnText(0)
				found = true
				return nil
			},
		})
	if err != nil {
		return "", false, fmt.Errorf("logstore: lookup metadata %q: %w", key, err)
	}
	return id, found, nil
}
