// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for logbook binaries.
//
// Configuration is loaded from a single file specified by either the
// LOGBOOK_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). [Resolve] applies that precedence for a binary and
// falls back to [Default] only when neither is given. There is no
// automatic file search.
//
// The file supports environment-specific sections (development,
// staging, production) that override base values when
// [Config].Environment matches.
//
// ${HOME} and ${VAR:-default} patterns are expanded in the server
// listen address, database path, shipper URL, and shipper project.
// No other environment variables override config values.
//
// Key exports:
//
//   - [Config] -- master struct with Server and Shipper sections
//   - [Default] -- returns a Config with development defaults
//   - [Load], [LoadFile], and [Resolve] -- entry points for loading
package config
