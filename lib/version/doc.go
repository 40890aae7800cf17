// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build version information for logbook binaries.
//
// Four package-level variables are injected at build time via
// -ldflags -X, for example:
//
//	go build -ldflags "-X github.com/bureau-foundation/logbook/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
//   - [GitCommit] -- short git SHA of the build
//   - [GitDirty] -- "true" if there were uncommitted changes
//   - [BuildTime] -- UTC timestamp of the build
//   - [Version] -- semantic version string (set manually for releases)
//
// These default to "unknown" / "0.1.0-dev" when not injected, which
// occurs during development builds and test runs.
//
// [Info] is reported by the server's /healthz and, through [Print],
// by --version. [Full] adds the Go version and platform. [UserAgent]
// labels the shipper's HTTP requests.
package version
