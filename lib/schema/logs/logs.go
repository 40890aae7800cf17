// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logs

import (
	"fmt"
	"sort"
	"time"
)

// TimestampLayout is the canonical stored form of a log timestamp:
// UTC, millisecond precision, fixed width.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// NormalizeTimestamp parses an RFC 3339 timestamp (any offset, any
// fractional precision) and re-renders it in TimestampLayout.
func NormalizeTimestamp(value string) (string, error) {
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return "", fmt.Errorf("timestamp %q is not RFC 3339: %w", value, err)
	}
	return FormatTimestamp(parsed), nil
}

// Level is a log severity. The store accepts any non-empty level
// string; the shipper emits only the four named levels.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// MetadataEntry is one key/value pair attached to a log.
type MetadataEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// NewLog is a log submission: what a client sends and what the store
// persists. ProjectID is filled from the route on the HTTP path.
type NewLog struct {
	ProjectID string          `json:"projectId,omitempty"`
	Level     Level           `json:"level"`
	Message   string          `json:"message"`
	Timestamp string          `json:"timestamp,omitempty"`
	Metadata  []MetadataEntry `json:"metadata,omitempty"`
}

// Validate checks the fields the store requires.
func (l *NewLog) Validate() error {
	if l.ProjectID == "" {
		return fmt.Errorf("log: projectId is required")
	}
	if l.Level == "" {
		return fmt.Errorf("log: level is required")
	}
	for i, entry := range l.Metadata {
		if entry.Key == "" {
			return fmt.Errorf("log: metadata entry %d has an empty key", i)
		}
	}
	return nil
}

// Log is a stored log record with its effective metadata: tracked
// entries first, then embedded entries.
type Log struct {
	ID        string          `json:"id"`
	ProjectID string          `json:"projectId"`
	Level     Level           `json:"level"`
	Message   string          `json:"message"`
	Timestamp string          `json:"timestamp"`
	Metadata  []MetadataEntry `json:"metadata"`
}

// MetadataMap returns the log's metadata as a map. When a key appears
// more than once the later entry wins.
func (l *Log) MetadataMap() map[string]string {
	result := make(map[string]string, len(l.Metadata))
	for _, entry := range l.Metadata {
		result[entry.Key] = entry.Value
	}
	return result
}

// EmbeddedEntries converts an embedded-metadata map into entries
// sorted by key.
func EmbeddedEntries(embedded map[string]string) []MetadataEntry {
	keys := make([]string, 0, len(embedded))
	for key := range embedded {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	entries := make([]MetadataEntry, 0, len(keys))
	for _, key := range keys {
		entries = append(entries, MetadataEntry{Key: key, Value: embedded[key]})
	}
	return entries
}
