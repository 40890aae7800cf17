// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock is the time source used by logbook components. Production code
// uses Real(); tests use Fake().
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc calls f once after d elapses and returns a Timer that
	// can cancel the call. With d <= 0 the real clock runs f in a new
	// goroutine and the fake clock runs it synchronously.
	AfterFunc(d time.Duration, f func()) *Timer
}

// Timer is a pending AfterFunc call.
type Timer struct {
	stop func() bool
}

// Stop cancels the pending call. Returns false if the call already
// happened or the timer was already stopped.
func (t *Timer) Stop() bool { return t.stop() }
