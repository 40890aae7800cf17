// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Logbook-server is the log store. It owns one SQLite database and
// serves the REST API for projects, log ingestion (single JSON entries
// and compressed CBOR batches), filtered and paginated queries, and
// per-project statistics. Prometheus metrics are served at /metrics.
//
// Usage:
//
//	logbook-server [--config logbook.yaml] [--listen addr] [--db path]
//
// Flags override the values loaded from the config file.
package main
