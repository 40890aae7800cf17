// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package httpapi exposes a [logstore.Store] over HTTP with a chi
// router.
//
// Routes live under /api/v1. Project-scoped routes take a {project}
// segment that is a project id or, failing that, a project name. The
// log listing and metadata-keys routes also accept "all".
//
// Bulk ingestion accepts a JSON or CBOR array of logs, optionally
// compressed (Content-Encoding: zstd or lz4). When the request carries
// an X-Logbook-Digest header, the decompressed body must match it.
//
// Log listings paginate with an opaque cursor token (base64url CBOR of
// the last row's id and timestamp), returned as nextCursor and passed
// back as ?cursor=.
//
// Request counts and latencies, ingestion volume, and query latency are
// exported in Prometheus format at /metrics.
package httpapi
