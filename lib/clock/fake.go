// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake returns a FakeClock frozen at initial. Time moves only when
// Advance is called.
func Fake(initial time.Time) *FakeClock {
	clock := &FakeClock{now: initial}
	clock.changed = sync.NewCond(&clock.mu)
	return clock
}

// FakeClock is a deterministic Clock for tests. AfterFunc callbacks run
// synchronously inside Advance, in deadline order. A callback may
// schedule further timers; those fire in the same Advance call if
// their deadline is already due. Callbacks must not call Advance.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	pending []*fakeTimer
	changed *sync.Cond
}

type fakeTimer struct {
	deadline time.Time
	callback func()
	done     bool // fired or stopped
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc registers f to run once the clock reaches now+d. With
// d <= 0, f runs before AfterFunc returns.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	if d <= 0 {
		f()
		return &Timer{stop: func() bool { return false }}
	}

	c.mu.Lock()
	timer := &fakeTimer{deadline: c.now.Add(d), callback: f}
	c.pending = append(c.pending, timer)
	c.changed.Broadcast()
	c.mu.Unlock()

	return &Timer{stop: func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		if timer.done {
			return false
		}
		timer.done = true
		c.changed.Broadcast()
		return true
	}}
}

// Advance moves the clock forward by d and runs every callback whose
// deadline has been reached.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	target := c.now
	c.mu.Unlock()

	for {
		due := c.takeDue(target)
		if len(due) == 0 {
			return
		}
		for _, timer := range due {
			timer.callback()
		}
	}
}

// takeDue removes and returns the active timers with deadline <= target,
// sorted by deadline.
func (c *FakeClock) takeDue(target time.Time) []*fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()

	var due, remaining []*fakeTimer
	for _, timer := range c.pending {
		switch {
		case timer.done:
		case timer.deadline.After(target):
			remaining = append(remaining, timer)
		default:
			timer.done = true
			due = append(due, timer)
		}
	}
	c.pending = remaining
	c.changed.Broadcast()

	sort.SliceStable(due, func(i, j int) bool {
		return due[i].deadline.Before(due[j].deadline)
	})
	return due
}

// WaitForTimers blocks until at least n timers are pending.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.activeLocked() < n {
		c.changed.Wait()
	}
}

// PendingCount returns the number of timers that have neither fired
// nor been stopped.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeLocked()
}

func (c *FakeClock) activeLocked() int {
	count := 0
	for _, timer := range c.pending {
		if !timer.done {
			count++
		}
	}
	return count
}
