// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/logbook/lib/schema/logs"
)

// CreateLog stores one log. Tracked metadata is normalized into the
// metadata and log_metadata tables; everything else is embedded on the
// log row. The whole write is one transaction: on error nothing is
// stored.
func (s *Store) CreateLog(ctx context.Context, newLog logs.NewLog) (created logs.Log, err error) {
	if err := newLog.Validate(); err != nil {
		return logs.Log{}, fmt.Errorf("%w: %v", ErrInvalidLog, err)
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return logs.Log{}, fmt.Errorf("logstore: create log: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return logs.Log{}, fmt.Errorf("logstore: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	tracked, err := s.trackedKeys(conn, newLog.ProjectID)
	if err != nil {
		return logs.Log{}, err
	}
	return s.insertLog(conn, newLog, tracked)
}

// CreateBulkLog stores a batch of logs in a single transaction. Either
// every log is stored or none is. The returned logs are in input order.
func (s *Store) CreateBulkLog(ctx context.Context, batch []logs.NewLog) (created []logs.Log, err error) {
	for i := range batch {
		if err := batch[i].Validate(); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrInvalidLog, i, err)
		}
	}
	if len(batch) == 0 {
		return []logs.Log{}, nil
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("logstore: create bulk log: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return nil, fmt.Errorf("logstore: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	trackedByProject := make(map[string]map[string]struct{})
	created = make([]logs.Log, 0, len(batch))
	for i := range batch {
		projectID := batch[i].ProjectID
		tracked, cached := trackedByProject[projectID]
		if !cached {
			tracked, err = s.trackedKeys(conn, projectID)
			if err != nil {
				return nil, err
			}
			trackedByProject[projectID] = tracked
		}

		entry, err := s.insertLog(conn, batch[i], tracked)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		created = append(created, entry)
	}

	s.logger.Debug("bulk log stored", "count", len(created))
	return created, nil
}

// insertLog writes one log and its metadata on conn. The caller owns
// the transaction.
func (s *Store) insertLog(conn *sqlite.Conn, newLog logs.NewLog, tracked map[string]struct{}) (logs.Log, error) {
	timestamp := logs.FormatTimestamp(s.clock.Now())
	if newLog.Timestamp != "" {
		normalized, err := logs.NormalizeTimestamp(newLog.Timestamp)
		if err != nil {
			return logs.Log{}, fmt.Errorf("%w: %v", ErrInvalidLog, err)
		}
		timestamp = normalized
	}

	var trackedEntries []logs.MetadataEntry
	embedded := make(map[string]string)
	for _, entry := range newLog.Metadata {
		if _, ok := tracked[entry.Key]; ok {
			trackedEntries = append(trackedEntries, entry)
			continue
		}
		// Later duplicates of an embedded key win.
		embedded[entry.Key] = entry.Value
	}

	embeddedJSON, err := json.Marshal(embedded)
	if err != nil {
		return logs.Log{}, fmt.Errorf("logstore: encoding embedded metadata: %w", err)
	}

	created := logs.Log{
		ID:        uuid.NewString(),
		ProjectID: newLog.ProjectID,
		Level:     newLog.Level,
		Message:   newLog.Message,
		Timestamp: timestamp,
	}

	err = sqlitex.Execute(conn,
		`INSERT INTO logs (id, project_id, level, message, timestamp, embedded_metadata)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{created.ID, created.ProjectID, string(created.Level), created.Message, created.Timestamp, string(embeddedJSON)},
		})
	if err != nil {
		if sqlite.ErrCode(err) == sqlite.ResultConstraintForeignKey {
			return logs.Log{}, fmt.Errorf("%w: project %q", ErrNotFound, newLog.ProjectID)
		}
		return logs.Log{}, fmt.Errorf("logstore: insert log: %w", err)
	}

	for _, entry := range trackedEntries {
		metadataID, err := getOrCreateMetadata(conn, newLog.ProjectID, entry.Key, entry.Value)
		if err != nil {
			return logs.Log{}, err
		}
		err = sqlitex.Execute(conn,
			`INSERT INTO log_metadata (id, log_id, metadata_id) VALUES (?, ?, ?)`,
			&sqlitex.ExecOptions{Args: []any{uuid.NewString(), created.ID, metadataID}})
		if err != nil {
			return logs.Log{}, fmt.Errorf("logstore: link metadata %q: %w", entry.Key, err)
		}
	}

	created.Metadata = mergeMetadata(trackedEntries, embedded)
	return created, nil
}

// GetLogByID returns one hydrated log.
func (s *Store) GetLogByID(ctx context.Context, id string) (logs.Log, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return logs.Log{}, fmt.Errorf("logstore: get log: %w", err)
	}
	defer s.pool.Put(conn)

	hydrated, err := s.hydrate(conn, []string{id})
	if err != nil {
		return logs.Log{}, err
	}
	entry, ok := hydrated[id]
	if !ok {
		return logs.Log{}, fmt.Errorf("%w: log %q", ErrNotFound, id)
	}
	return *entry, nil
}

// ClearProjectLogs deletes every log of a project together with the
// project's metadata rows. Bridge rows cascade. Returns the number of
// logs deleted.
func (s *Store) ClearProjectLogs(ctx context.Context, projectID string) (deleted int64, err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, fmt.Errorf("logstore: clear project logs: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return 0, fmt.Errorf("logstore: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	if err := sqlitex.Execute(conn, "DELETE FROM logs WHERE project_id = ?", &sqlitex.ExecOptions{
		Args: []any{projectID},
	}); err != nil {
		return 0, fmt.Errorf("logstore: delete logs: %w", err)
	}
	deleted = int64(conn.Changes())

	if err := sqlitex.Execute(conn, "DELETE FROM metadata WHERE project_id = ?", &sqlitex.ExecOptions{
		Args: []any{projectID},
	}); err != nil {
		return 0, fmt.Errorf("logstore: delete metadata: %w", err)
	}

	s.logger.Info("project logs cleared", "project_id", projectID, "deleted", deleted)
	return deleted, nil
}
