// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/logbook/lib/schema/logs"
)

// GetLogsWithFilters returns one page of logs matching filters, in
// (timestamp, id) order of the requested direction. Pass the returned
// NextCursor back in filters.Cursor to fetch the following page.
func (s *Store) GetLogsWithFilters(ctx context.Context, filters logs.LogFilters) (_ logs.LogPage, err error) {
	query, err := BuildPageQuery(filters)
	if err != nil {
		return logs.LogPage{}, err
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return logs.LogPage{}, fmt.Errorf("logstore: query logs: %w", err)
	}
	defer s.pool.Put(conn)

	// Both phases read one snapshot.
	defer sqlitex.Save(conn)(&err)

	sqlText, args := query.SQL()
	var refs []logs.Cursor
	err = sqlitex.ExecuteTransient(conn, sqlText, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			refs = append(refs, logs.Cursor{ID: stmt.ColumnText(0), Timestamp: stmt.ColumnText(1)})
			return nil
		},
	})
	if err != nil {
		return logs.LogPage{}, fmt.Errorf("logstore: select log ids: %w", err)
	}

	page := logs.LogPage{Logs: []logs.Log{}}
	if len(refs) > query.PageSize {
		page.HasNextPage = true
		refs = refs[:query.PageSize]
	}
	if len(refs) == 0 {
		return page, nil
	}

	ids := make([]string, len(refs))
	for i, ref := range refs {
		ids[i] = ref.ID
	}
	hydrated, err := s.hydrate(conn, ids)
	if err != nil {
		return logs.LogPage{}, err
	}

	for _, ref := range refs {
		entry, ok := hydrated[ref.ID]
		if !ok {
			return logs.LogPage{}, fmt.Errorf("logstore: log %q disappeared during hydration", ref.ID)
		}
		page.Logs = append(page.Logs, *entry)
	}

	if page.HasNextPage {
		last := refs[len(refs)-1]
		page.NextCursor = &last
	}
	return page, nil
}

// hydrate loads full logs for ids, including tracked metadata in
// bridge insertion order. Missing ids are absent from the result.
func (s *Store) hydrate(conn *sqlite.Conn, ids []string) (map[string]*logs.Log, error) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	type pending struct {
		log      *logs.Log
		tracked  []logs.MetadataEntry
		embedded string
	}
	rows := make(map[string]*pending, len(ids))
	var order []string

	err := sqlitex.ExecuteTransient(conn,
		`SELECT l.id, l.project_id, l.level, l.message, l.timestamp, l.embedded_metadata, m.key, m.value
		 FROM logs l
		 LEFT JOIN log_metadata lm ON lm.log_id = l.id
		 LEFT JOIN metadata m ON m.id = lm.metadata_id
		 WHERE l.id IN (`+placeholders(len(ids))+`)
		 ORDER BY l.id, lm.rowid`,
		&sqlitex.ExecOptions{
			Args: args,
			ResultFunc: func(stmt *sqlite.Stmt) error {
				id := stmt.ColumnText(0)
				row, ok := rows[id]
				if !ok {
					row = &pending{
						log: &logs.Log{
							ID:        id,
							ProjectID: stmt.ColumnText(1),
							Level:     logs.Level(stmt.ColumnText(2)),
							Message:   stmt.ColumnText(3),
							Timestamp: stmt.ColumnText(4),
						},
						embedded: stmt.ColumnText(5),
					}
					rows[id] = row
					order = append(order, id)
				}
				if !stmt.ColumnIsNull(6) {
					row.tracked = append(row.tracked, logs.MetadataEntry{
						Key:   stmt.ColumnText(6),
						Value: stmt.ColumnText(7),
					})
				}
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("logstore: hydrate logs: %w", err)
	}

	result := make(map[string]*logs.Log, len(rows))
	for _, id := range order {
		row := rows[id]
		embedded := s.decodeEmbedded(id, row.embedded)
		row.log.Metadata = mergeMetadata(row.tracked, embedded)
		result[id] = row.log
	}
	return result, nil
}

// mergeMetadata builds a log's metadata list: tracked entries first, in
// the order given, then embedded entries sorted by key. Each (key,
// value) pair appears once.
func mergeMetadata(tracked []logs.MetadataEntry, embedded map[string]string) []logs.MetadataEntry {
	merged := make([]logs.MetadataEntry, 0, len(tracked)+len(embedded))
	seen := make(map[logs.MetadataEntry]struct{}, cap(merged))
	add := func(entry logs.MetadataEntry) {
		if _, dup := seen[entry]; dup {
			return
		}
		seen[entry] = struct{}{}
		merged = append(merged, entry)
	}
	for _, entry := range tracked {
		add(entry)
	}
	for _, entry := range logs.EmbeddedEntries(embedded) {
		add(entry)
	}
	return merged
}

// decodeEmbedded parses the embedded_metadata column. Non-string JSON
// values are rendered with their JSON text. Unparseable content yields
// no embedded metadata.
func (s *Store) decodeEmbedded(logID, raw string) map[string]string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var decoded map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		s.logger.Warn("unparseable embedded metadata", "log_id", logID, "error", err)
		return nil
	}
	result := make(map[string]string, len(decoded))
	for key, value := range decoded {
		var text string
		if err := json.Unmarshal(value, &text); err == nil {
			result[key] = text
			continue
		}
		result[key] = string(value)
	}
	return result
}
