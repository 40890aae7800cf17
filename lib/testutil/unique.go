// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"sync/atomic"
)

var uniqueCounter atomic.Uint64

// UniqueID returns a string of the form "prefix-N" where N is a
// monotonically increasing integer. Use this instead of time.Now() when
// tests need log messages or project names that stay distinct across
// concurrent writers.
//
//	name := testutil.UniqueID("project")  // "project-1", "project-2", ...
//	msg := testutil.UniqueID("writer")    // "writer-3", ...
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, uniqueCounter.Add(1))
}
