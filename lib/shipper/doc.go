// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package shipper is the client half of logbook: an application-side
// [Logger] that batches log calls and hands them to a [Transport].
//
// Log calls never block on delivery. Entries accumulate in memory and
// are flushed when the queue reaches BatchSize or when FlushInterval
// elapses after the first unflushed entry, whichever comes first. Only
// one flush runs at a time; entries logged during a flush are picked
// up by a re-check once it finishes.
//
// Delivery failures go to a [RetryQueue]. Each failed entry is retried
// exactly once, after a fixed delay. If the retry fails too, the entry
// is dropped and a warning is logged to the Logger's diagnostic
// *slog.Logger. Delivery errors are never returned to application code.
//
// Transports:
//
//   - [HTTPTransport] posts to a logbook server. Single entries travel as
//     JSON; batches travel as one CBOR array per project, compressed
//     with zstd or lz4 and carrying a blake3 digest of the uncompressed
//     body.
//   - [ConsoleTransport] prints one styled line per entry, for local
//     development.
package shipper
