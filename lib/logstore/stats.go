// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logstore

import (
	"context"
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/logbook/lib/schema/logs"
)

// standardLevels always appear in ProjectMetrics, with zero counts if
// absent.
var standardLevels = []logs.Level{logs.LevelDebug, logs.LevelInfo, logs.LevelWarn, logs.LevelError}

// GetProjectMetrics summarizes a project: total and today's counts
// overall and per level, plus the most recent log. "Today" starts at
// local midnight in the store's configured location. Pass
// logs.AllProjects to summarize every project.
func (s *Store) GetProjectMetrics(ctx context.Context, projectID string) (_ logs.ProjectMetrics, err error) {
	now := s.clock.Now().In(s.location)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.location)
	todayStart := logs.FormatTimestamp(midnight)
	todayEnd := logs.FormatTimestamp(now)

	where, whereArgs := projectScope(projectID)

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return logs.ProjectMetrics{}, fmt.Errorf("logstore: project metrics: %w", err)
	}
	defer s.pool.Put(conn)
	defer sqlitex.Save(conn)(&err)

	counts := make(map[logs.Level]*logs.LevelCount)
	var extra []logs.Level
	err = sqlitex.ExecuteTransient(conn,
		`SELECT l.level, count(*),
		        coalesce(sum(CASE WHEN l.timestamp >= ? AND l.timestamp <= ? THEN 1 ELSE 0 END), 0)
		 FROM logs l`+where+`
		 GROUP BY l.level ORDER BY l.level`,
		&sqlitex.ExecOptions{
			Args: append([]any{todayStart, todayEnd}, whereArgs...),
			ResultFunc: func(stmt *sqlite.Stmt) error {
				level := logs.Level(stmt.ColumnText(0))
				counts[level] = &logs.LevelCount{
					Level: level,
					Total: stmt.ColumnInt64(1),
					Today: stmt.ColumnInt64(2),
				}
				if !isStandardLevel(level) {
					extra = append(extra, level)
				}
				return nil
			},
		})
	if err != nil {
		return logs.ProjectMetrics{}, fmt.Errorf("logstore: count logs by level: %w", err)
	}

	var metrics logs.ProjectMetrics
	for _, level := range append(append([]logs.Level{}, standardLevels...), extra...) {
		count, ok := counts[level]
		if !ok {
			count = &logs.LevelCount{Level: level}
		}
		metrics.Levels = append(metrics.Levels, *count)
		metrics.TotalLogs += count.Total
		metrics.TodayLogs += count.Today
	}

	var lastID string
	err = sqlitex.ExecuteTransient(conn,
		`SELECT l.id FROM logs l`+where+` ORDER BY l.timestamp DESC, l.id DESC LIMIT 1`,
		&sqlitex.ExecOptions{
			Args: whereArgs,
			ResultFunc: func(stmt *sqlite.Stmt) error {
				lastID = stmt.ColumnText(0)
				return nil
			},
		})
	if err != nil {
		return logs.ProjectMetrics{}, fmt.Errorf("logstore: select last log: %w", err)
	}
	if lastID != "" {
		hydrated, err := s.hydrate(conn, []string{lastID})
		if err != nil {
			return logs.ProjectMetrics{}, err
		}
		metrics.LastLog = hydrated[lastID]
	}

	return metrics, nil
}

// GetHistoricalLogCounts returns one count per UTC calendar day for the
// last days days, oldest first, ending today. Days without logs are
// present with a zero count.
func (s *Store) GetHistoricalLogCounts(ctx context.Context, projectID string, days int) ([]logs.DailyCount, error) {
	if days <= 0 {
		return nil, fmt.Errorf("%w: days must be positive, got %d", ErrInvalidFilter, days)
	}

	now := s.clock.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	first := today.AddDate(0, 0, -(days - 1))

	where, whereArgs := projectScope(projectID)
	boundClause := " AND "
	if where == "" {
		boundClause = " WHERE "
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("logstore: historical counts: %w", err)
	}
	defer s.pool.Put(conn)

	byDate := make(map[string]int64)
	err = sqlitex.ExecuteTransient(conn,
		`SELECT substr(l.timestamp, 1, 10) AS day, count(*) FROM logs l`+where+boundClause+
			`l.timestamp >= ? GROUP BY day`,
		&sqlitex.ExecOptions{
			Args: append(whereArgs, logs.FormatTimestamp(first)),
			ResultFunc: func(stmt *sqlite.Stmt) error {
				byDate[stmt.ColumnText(0)] = stmt.ColumnInt64(1)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("logstore: count logs by day: %w", err)
	}

	counts := make([]logs.DailyCount, 0, days)
	for day := first; !day.After(today); day = day.AddDate(0, 0, 1) {
		date := day.Format(time.DateOnly)
		counts = append(counts, logs.DailyCount{Date: date, Count: byDate[date]})
	}
	return counts, nil
}

// projectScope returns a WHERE clause restricting l to one project, or
// nothing for logs.AllProjects.
func projectScope(projectID string) (string, []any) {
	if allProjects(projectID) {
		return "", nil
	}
	return " WHERE l.project_id = ?", []any{projectID}
}

func isStandardLevel(level logs.Level) bool {
	for _, standard := range standardLevels {
		if level == standard {
			return true
		}
	}
	return false
}
