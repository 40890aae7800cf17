// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package logs defines the data model shared by the logbook store, its
// HTTP API, and the client shipper: projects and their configuration,
// log records with metadata, query filters and pages, and aggregate
// views.
//
// Types here carry `json` tags only. The HTTP API serializes them as
// JSON; bulk uploads and cursor tokens serialize them as CBOR through
// lib/codec, which reads the same tags.
//
// Timestamps are ISO-8601 strings in [TimestampLayout]. Every stored
// timestamp uses the same fixed-width layout, so string comparison in
// SQL orders rows chronologically.
package logs
