// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logs

// AllProjects is the ProjectID wildcard for queries spanning every
// project.
const AllProjects = "all"

// SortDirection orders query results by (timestamp, id).
type SortDirection string

const (
	SortDescending SortDirection = "desc"
	SortAscending  SortDirection = "asc"
)

// Page size bounds for GetLogsWithFilters.
const (
	DefaultPageSize = 50
	MaxPageSize     = 1000
)

// Cursor marks the last row of a previous page. The next page starts
// strictly after it in (timestamp, id) order.
type Cursor struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
}

// LogFilters selects logs. Zero-valued fields do not filter.
type LogFilters struct {
	// ProjectID restricts to one project. Empty or AllProjects
	// matches every project.
	ProjectID string `json:"projectId,omitempty"`

	// Levels matches logs whose level is any of the listed values.
	Levels []Level `json:"levels,omitempty"`

	// Search is a case-sensitive substring of the message.
	Search string `json:"search,omitempty"`

	// StartDate and EndDate bound the timestamp, inclusive. Both
	// are normalized to TimestampLayout before comparison.
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`

	// Metadata lists tracked key/value pairs that must all be
	// present on a log.
	Metadata []MetadataEntry `json:"metadata,omitempty"`

	// Cursor continues from a previous page.
	Cursor *Cursor `json:"cursor,omitempty"`

	// PageSize defaults to DefaultPageSize and is capped at
	// MaxPageSize.
	PageSize int `json:"pageSize,omitempty"`

	// Sort defaults to SortDescending.
	Sort SortDirection `json:"sort,omitempty"`
}

// LogPage is one page of query results.
type LogPage struct {
	Logs        []Log `json:"logs"`
	HasNextPage bool  `json:"hasNextPage"`

	// NextCursor is the cursor of the last returned log when
	// HasNextPage is true.
	NextCursor *Cursor `json:"nextCursor,omitempty"`
}

// LevelCount holds per-level totals.
type LevelCount struct {
	Level Level `json:"level"`
	Total int64 `json:"total"`
	Today int64 `json:"today"`
}

// ProjectMetrics is the aggregate view of a project's logs.
type ProjectMetrics struct {
	TotalLogs int64        `json:"totalLogs"`
	TodayLogs int64        `json:"todayLogs"`
	Levels    []LevelCount `json:"levels"`
	LastLog   *Log         `json:"lastLog,omitempty"`
}

// DailyCount is the number of logs on one calendar date (YYYY-MM-DD).
type DailyCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}
