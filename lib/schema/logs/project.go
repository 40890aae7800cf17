// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logs

import "slices"

// Project groups logs. Its Config decides which metadata keys are
// normalized into the metadata table.
type Project struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	CreatedAt   string        `json:"createdAt"`
	Config      ProjectConfig `json:"config"`
}

// ProjectConfig is the parsed form of projects.config.
type ProjectConfig struct {
	// TrackedMetadataKeys lists the metadata keys stored in the
	// metadata table and joined at read time. All other keys are
	// embedded as JSON on the log row.
	TrackedMetadataKeys []string `json:"trackedMetadataKeys"`
}

// TrackedSet returns TrackedMetadataKeys as a set.
func (c ProjectConfig) TrackedSet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.TrackedMetadataKeys))
	for _, key := range c.TrackedMetadataKeys {
		set[key] = struct{}{}
	}
	return set
}

// Normalized returns a copy with tracked keys sorted, deduplicated, and
// empty keys removed.
func (c ProjectConfig) Normalized() ProjectConfig {
	keys := make([]string, 0, len(c.TrackedMetadataKeys))
	for _, key := range c.TrackedMetadataKeys {
		if key != "" {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)
	return ProjectConfig{TrackedMetadataKeys: slices.Compact(keys)}
}
