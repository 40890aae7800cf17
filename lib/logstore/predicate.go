// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logstore

import (
	"fmt"
	"strings"
	"time"

	"github.com/bureau-foundation/logbook/lib/schema/logs"
)

// Predicate is one condition on the logs table, aliased "l". SQL
// returns a boolean expression with positional placeholders and the
// arguments that bind them, in order.
type Predicate interface {
	SQL() (string, []any)
}

// ProjectPredicate restricts to one project.
type ProjectPredicate struct {
	ProjectID string
}

func (p ProjectPredicate) SQL() (string, []any) {
	return "l.project_id = ?", []any{p.ProjectID}
}

// LevelPredicate matches any of the listed levels.
type LevelPredicate struct {
	Levels []logs.Level
}

func (p LevelPredicate) SQL() (string, []any) {
	args := make([]any, len(p.Levels))
	for i, level := range p.Levels {
		args[i] = string(level)
	}
	return "l.level IN (" + placeholders(len(p.Levels)) + ")", args
}

// MessagePredicate matches messages containing Substring. The match is
// case-sensitive.
type MessagePredicate struct {
	Substring string
}

func (p MessagePredicate) SQL() (string, []any) {
	return "instr(l.message, ?) > 0", []any{p.Substring}
}

// TimeRangePredicate bounds the timestamp inclusively. An empty bound
// is open.
type TimeRangePredicate struct {
	Start string
	End   string
}

func (p TimeRangePredicate) SQL() (string, []any) {
	switch {
	case p.Start != "" && p.End != "":
		return "l.timestamp >= ? AND l.timestamp <= ?", []any{p.Start, p.End}
	case p.Start != "":
		return "l.timestamp >= ?", []any{p.Start}
	case p.End != "":
		return "l.timestamp <= ?", []any{p.End}
	}
	return "1", nil
}

// MetadataPredicate matches logs linked to a tracked metadata row with
// exactly this key and value. Each predicate is an independent EXISTS,
// so several of them combine with AND semantics.
type MetadataPredicate struct {
	Key   string
	Value string
}

func (p MetadataPredicate) SQL() (string, []any) {
	return `EXISTS (SELECT 1 FROM log_metadata lm JOIN metadata m ON m.id = lm.metadata_id ` +
		`WHERE lm.log_id = l.id AND m.key = ? AND m.value = ?)`, []any{p.Key, p.Value}
}

// CursorPredicate selects rows strictly after Cursor in the (timestamp,
// id) order of Direction.
type CursorPredicate struct {
	Cursor    logs.Cursor
	Direction logs.SortDirection
}

func (p CursorPredicate) SQL() (string, []any) {
	op := "<"
	if p.Direction == logs.SortAscending {
		op = ">"
	}
	return "(l.timestamp " + op + " ? OR (l.timestamp = ? AND l.id " + op + " ?))",
		[]any{p.Cursor.Timestamp, p.Cursor.Timestamp, p.Cursor.ID}
}

// PageQuery is the first phase of a filtered listing: the ordered,
// distinct ids of qualifying logs, one row past the page size so the
// caller can tell whether another page exists.
type PageQuery struct {
	Predicates []Predicate
	Direction  logs.SortDirection
	PageSize   int
}

// SQL renders the query. Predicates are joined with AND in order.
func (q PageQuery) SQL() (string, []any) {
	var builder strings.Builder
	var args []any

	builder.WriteString("SELECT DISTINCT l.id, l.timestamp FROM logs l")
	for i, predicate := range q.Predicates {
		if i == 0 {
			builder.WriteString(" WHERE ")
		} else {
			builder.WriteString(" AND ")
		}
		clause, clauseArgs := predicate.SQL()
		builder.WriteString(clause)
		args = append(args, clauseArgs...)
	}

	order := "DESC"
	if q.Direction == logs.SortAscending {
		order = "ASC"
	}
	builder.WriteString(" ORDER BY l.timestamp " + order + ", l.id " + order)
	builder.WriteString(" LIMIT ?")
	args = append(args, q.PageSize+1)

	return builder.String(), args
}

// BuildPageQuery validates filters and translates them to a PageQuery.
// Validation failures wrap ErrInvalidFilter.
func BuildPageQuery(filters logs.LogFilters) (PageQuery, error) {
	query := PageQuery{
		Direction: logs.SortDescending,
		PageSize:  logs.DefaultPageSize,
	}

	switch filters.Sort {
	case "", logs.SortDescending:
	case logs.SortAscending:
		query.Direction = logs.SortAscending
	default:
		return PageQuery{}, fmt.Errorf("%w: sort must be %q or %q, got %q",
			ErrInvalidFilter, logs.SortAscending, logs.SortDescending, filters.Sort)
	}

	switch {
	case filters.PageSize < 0:
		return PageQuery{}, fmt.Errorf("%w: page size %d is negative", ErrInvalidFilter, filters.PageSize)
	case filters.PageSize > logs.MaxPageSize:
		query.PageSize = logs.MaxPageSize
	case filters.PageSize > 0:
		query.PageSize = filters.PageSize
	}

	if !allProjects(filters.ProjectID) {
		query.Predicates = append(query.Predicates, ProjectPredicate{ProjectID: filters.ProjectID})
	}
	if len(filters.Levels) > 0 {
		query.Predicates = append(query.Predicates, LevelPredicate{Levels: filters.Levels})
	}
	if filters.Search != "" {
		query.Predicates = append(query.Predicates, MessagePredicate{Substring: filters.Search})
	}

	start, err := normalizeBound(filters.StartDate, false)
	if err != nil {
		return PageQuery{}, fmt.Errorf("%w: startDate: %v", ErrInvalidFilter, err)
	}
	end, err := normalizeBound(filters.EndDate, true)
	if err != nil {
		return PageQuery{}, fmt.Errorf("%w: endDate: %v", ErrInvalidFilter, err)
	}
	if start != "" || end != "" {
		query.Predicates = append(query.Predicates, TimeRangePredicate{Start: start, End: end})
	}

	for i, entry := range filters.Metadata {
		if entry.Key == "" {
			return PageQuery{}, fmt.Errorf("%w: metadata filter %d has an empty key", ErrInvalidFilter, i)
		}
		query.Predicates = append(query.Predicates, MetadataPredicate{Key: entry.Key, Value: entry.Value})
	}

	if filters.Cursor != nil {
		if filters.Cursor.ID == "" || filters.Cursor.Timestamp == "" {
			return PageQuery{}, fmt.Errorf("%w: cursor requires both id and timestamp", ErrInvalidFilter)
		}
		timestamp, err := logs.NormalizeTimestamp(filters.Cursor.Timestamp)
		if err != nil {
			return PageQuery{}, fmt.Errorf("%w: cursor: %v", ErrInvalidFilter, err)
		}
		query.Predicates = append(query.Predicates, CursorPredicate{
			Cursor:    logs.Cursor{ID: filters.Cursor.ID, Timestamp: timestamp},
			Direction: query.Direction,
		})
	}

	return query, nil
}

// normalizeBound accepts an RFC 3339 timestamp or a bare YYYY-MM-DD
// date. A bare date covers the whole UTC day: start of day for a lower
// bound, last millisecond for an upper bound.
func normalizeBound(value string, upper bool) (string, error) {
	if value == "" {
		return "", nil
	}
	if day, err := time.Parse(time.DateOnly, value); err == nil {
		if upper {
			day = day.Add(24*time.Hour - time.Millisecond)
		}
		return logs.FormatTimestamp(day), nil
	}
	return logs.NormalizeTimestamp(value)
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}
