// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source for logbook
// components.
//
// The log store reads the current time to stamp logs and to compute
// "today" windows; the shipper schedules flush and retry timers. Both
// take a [Clock] instead of calling the time package directly, so that
// tests can substitute [Fake] and drive timers deterministically:
//
//	fakeClock := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	logger := shipper.New(shipper.Config{Clock: fakeClock, ...})
//	logger.Info("hello")
//	fakeClock.Advance(5 * time.Second) // flush timer fires synchronously
//
// [FakeClock.WaitForTimers] blocks until a goroutine has registered a
// timer, which removes the race between registration and Advance.
package clock
