// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/jsonc"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/logbook/lib/schema/logs"
)

// CreateProject inserts a project. Name must be unique.
func (s *Store) CreateProject(ctx context.Context, name, description string, config logs.ProjectConfig) (logs.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return logs.Project{}, fmt.Errorf("%w: name is required", ErrInvalidProject)
	}

	config = config.Normalized()
	configJSON, err := json.Marshal(config)
	if err != nil {
		return logs.Project{}, fmt.Errorf("logstore: encoding project config: %w", err)
	}

	project := logs.Project{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		CreatedAt:   logs.FormatTimestamp(s.clock.Now()),
		Config:      config,
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return logs.Project{}, fmt.Errorf("logstore: create project: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`INSERT INTO projects (id, name, description, created_at, config) VALUES (?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{project.ID, project.Name, project.Description, project.CreatedAt, string(configJSON)},
		})
	if err != nil {
		if sqlite.ErrCode(err) == sqlite.ResultConstraintUnique {
			return logs.Project{}, fmt.Errorf("%w: %q", ErrProjectExists, name)
		}
		return logs.Project{}, fmt.Errorf("logstore: insert project: %w", err)
	}

	s.logger.Info("project created", "project_id", project.ID, "name", project.Name)
	return project, nil
}

// GetProject returns the project with the given id.
func (s *Store) GetProject(ctx context.Context, id string) (logs.Project, error) {
	return s.getProjectBy(ctx, "id", id)
}

// GetProjectByName returns the project with the given name.
func (s *Store) GetProjectByName(ctx context.Context, name string) (logs.Project, error) {
	return s.getProjectBy(ctx, "name", name)
}

func (s *Store) getProjectBy(ctx context.Context, column, value string) (logs.Project, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return logs.Project{}, fmt.Errorf("logstore: get project: %w", err)
	}
	defer s.pool.Put(conn)

	var project logs.Project
	found := false
	err = sqlitex.Execute(conn,
		"SELECT id, name, description, created_at, config FROM projects WHERE "+column+" = ?",
		&sqlitex.ExecOptions{
			Args: []any{value},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				project = s.scanProject(stmt)
				found = true
				return nil
			},
		})
	if err != nil {
		return logs.Project{}, fmt.Errorf("logstore: get project: %w", err)
	}
	if !found {
		return logs.Project{}, fmt.Errorf("%w: project %s %q", ErrNotFound, column, value)
	}
	return project, nil
}

// ListProjects returns every project ordered by name.
func (s *Store) ListProjects(ctx context.Context) ([]logs.Project, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("logstore: list projects: %w", err)
	}
	defer s.pool.Put(conn)

	projects := []logs.Project{}
	err = sqlitex.Execute(conn,
		"SELECT id, name, description, created_at, config FROM projects ORDER BY name",
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				projects = append(projects, s.scanProject(stmt))
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("logstore: list projects: %w", err)
	}
	return projects, nil
}

// DeleteProject removes a project. Its logs, metadata, and bridge rows
// go with it through ON DELETE CASCADE.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("logstore: delete project: %w", err)
	}
	defer s.pool.Put(conn)

	if err := sqlitex.Execute(conn, "DELETE FROM projects WHERE id = ?", &sqlitex.ExecOptions{
		Args: []any{id},
	}); err != nil {
		return fmt.Errorf("logstore: delete project: %w", err)
	}
	if conn.Changes() == 0 {
		return fmt.Errorf("%w: project %q", ErrNotFound, id)
	}
	s.logger.Info("project deleted", "project_id", id)
	return nil
}

// SetTrackedMetadataKeys replaces the project's tracked key list. Other
// fields of the stored config object are preserved when it parses.
// Existing logs are not rewritten: the change applies to logs created
// afterwards.
func (s *Store) SetTrackedMetadataKeys(ctx context.Context, id string, keys []string) (project logs.Project, err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return logs.Project{}, fmt.Errorf("logstore: set tracked keys: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return logs.Project{}, fmt.Errorf("logstore: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	raw, found, err := readProjectConfig(conn, id)
	if err != nil {
		return logs.Project{}, err
	}
	if !found {
		return logs.Project{}, fmt.Errorf("%w: project %q", ErrNotFound, id)
	}

	document := map[string]any{}
	if err := json.Unmarshal(jsonc.ToJSON([]byte(raw)), &document); err != nil || document == nil {
		document = map[string]any{}
	}
	normalized := logs.ProjectConfig{TrackedMetadataKeys: keys}.Normalized()
	document["trackedMetadataKeys"] = normalized.TrackedMetadataKeys

	configJSON, err := json.Marshal(document)
	if err != nil {
		return logs.Project{}, fmt.Errorf("logstore: encoding project config: %w", err)
	}
	if err := sqlitex.Execute(conn, "UPDATE projects SET config = ? WHERE id = ?", &sqlitex.ExecOptions{
		Args: []any{string(configJSON), id},
	}); err != nil {
		return logs.Project{}, fmt.Errorf("logstore: update project config: %w", err)
	}

	err = sqlitex.Execute(conn,
		"SELECT id, name, description, created_at, config FROM projects WHERE id = ?",
		&sqlitex.ExecOptions{
			Args: []any{id},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				project = s.scanProject(stmt)
				return nil
			},
		})
	if err != nil {
		return logs.Project{}, fmt.Errorf("logstore: reread project: %w", err)
	}
	return project, nil
}

// trackedKeys loads the tracked key set for a project. A missing
// project or an unparseable config yields an empty set.
func (s *Store) trackedKeys(conn *sqlite.Conn, projectID string) (map[string]struct{}, error) {
	raw, found, err := readProjectConfig(conn, projectID)
	if err != nil {
		return nil, err
	}
	if !found {
		return map[string]struct{}{}, nil
	}
	return parseProjectConfig(raw, s.logger.With("project_id", projectID)).TrackedSet(), nil
}

func readProjectConfig(conn *sqlite.Conn, projectID string) (string, bool, error) {
	var raw string
	found := false
	err := sqlitex.Execute(conn, "SELECT config FROM projects WHERE id = ?", &sqlitex.ExecOptions{
		Args: []any{projectID},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			raw = stmt.ColumnText(0)
			found = true
			return nil
		},
	})
	if err != nil {
		return "", false, fmt.Errorf("logstore: read project config: %w", err)
	}
	return raw, found, nil
}

// parseProjectConfig decodes projects.config. Comments and trailing
// commas are tolerated. Any other failure yields an empty config.
func parseProjectConfig(raw string, logger *slog.Logger) logs.ProjectConfig {
	var config logs.ProjectConfig
	if strings.TrimSpace(raw) == "" {
		return config
	}
	if err := json.Unmarshal(jsonc.ToJSON([]byte(raw)), &config); err != nil {
		logger.Warn("unparseable project config, tracking no metadata keys", "error", err)
		return logs.ProjectConfig{}
	}
	return config
}

func (s *Store) scanProject(stmt *sqlite.Stmt) logs.Project {
	project := logs.Project{
		ID:          stmt.ColumnText(0),
		Name:        stmt.ColumnText(1),
		Description: stmt.ColumnText(2),
		CreatedAt:   stmt.ColumnText(3),
	}
	project.Config = parseProjectConfig(stmt.ColumnText(4), s.logger.With("project_id", project.ID))
	if project.Config.TrackedMetadataKeys == nil {
		project.Config.TrackedMetadataKeys = []string{}
	}
	return project
}
