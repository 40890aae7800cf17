// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides entrypoint helpers for logbook binaries.
//
//   - [Fatal] reports an error to stderr and exits, for failures that
//     happen before the structured logger exists.
//   - [NewLogger] builds the binary's slog logger, text on a terminal
//     and JSON otherwise.
package process
