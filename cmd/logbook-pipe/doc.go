// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Logbook-pipe ships lines read from stdin to a logbook server. Each
// non-empty line becomes one log entry in the configured project.
// Entries are batched and delivered in the background, so a slow or
// unavailable server never blocks the producer.
//
// With --json, lines that parse as JSON objects are split into a level,
// a message, and metadata (every other field). This covers the output
// of slog's JSON handler and most structured loggers. Lines that do not
// parse are shipped as-is at --level.
//
// Terminal color codes are stripped from lines unless --keep-ansi is
// given.
//
// With --console, entries are rendered to stdout instead of shipped,
// which is useful for checking what a pipeline would send.
//
// Usage:
//
//	some-service 2>&1 | logbook-pipe --project checkout --json
package main
