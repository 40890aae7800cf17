// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logstore

import (
	"context"
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/logbook/lib/schema/logs"
)

// GetUniqueMetadataKeysByProjectID returns the distinct tracked
// metadata keys stored for a project, sorted. logs.AllProjects lists
// keys across every project.
func (s *Store) GetUniqueMetadataKeysByProjectID(ctx context.Context, projectID string) ([]string, error) {
	query := `SELECT DISTINCT key FROM metadata ORDER BY key`
	var args []any
	if !allProjects(projectID) {
		query = `SELECT DISTINCT key FROM metadata WHERE project_id = ? ORDER BY key`
		args = []any{projectID}
	}
	return s.selectKeys(ctx, query, args)
}

// GetMetadataKeys returns every metadata key seen in a project, tracked
// or embedded, sorted and deduplicated. logs.AllProjects lists keys
// across every project.
func (s *Store) GetMetadataKeys(ctx context.Context, projectID string) ([]string, error) {
	metadataScope, logScope := "", ""
	var args []any
	if !allProjects(projectID) {
		metadataScope = " WHERE project_id = ?"
		logScope = " WHERE l.project_id = ?"
		args = []any{projectID, projectID}
	}
	return s.selectKeys(ctx,
		`SELECT key FROM metadata`+metadataScope+`
		 UNION
		 SELECT j.key FROM logs l,
		   json_each(CASE WHEN json_valid(l.embedded_metadata) THEN l.embedded_metadata ELSE '{}' END) j`+logScope+`
		 ORDER BY 1`,
		args)
}

func (s *Store) selectKeys(ctx context.Context, query string, args []any) ([]string, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("logstore: metadata keys: %w", err)
	}
	defer s.pool.Put(conn)

	keys := []string{}
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			keys = append(keys, stmt.ColumnText(0))
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("logstore: metadata keys: %w", err)
	}
	return keys, nil
}

func allProjects(projectID string) bool {
	return projectID == "" || projectID == logs.AllProjects
}
