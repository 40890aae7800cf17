// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package shipper

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/logbook/lib/clock"
	"github.com/bureau-foundation/logbook/lib/schema/logs"
)

const (
	// DefaultRetryDelay is how long a failed entry waits before its one
	// retry.
	DefaultRetryDelay = 5 * time.Second

	// DefaultSweepInterval is how often the retry queue looks for due
	// entries while it is non-empty.
	DefaultSweepInterval = 1 * time.Second
)

// RetryConfig configures a RetryQueue.
type RetryConfig struct {
	Transport     Transport
	Clock         clock.Clock
	Logger        *slog.Logger
	Delay         time.Duration
	SweepInterval time.Duration

	// SendTimeout bounds each retry delivery. Defaults to 10s.
	SendTimeout time.Duration
}

// RetryStats reports RetryQueue counters. Enqueued counts every entry
// accepted for retry; Retried those delivered on retry; Dropped those
// abandoned after a failed retry or at Close.
type RetryStats struct {
	Enqueued uint64
	Retried  uint64
	Dropped  uint64
	Pending  int
}

// RetryQueue holds entries whose first delivery failed and retries
// each of them once. Whatever the retry's outcome, the entry leaves the
// queue.
type RetryQueue struct {
	transport     Transport
	clock         clock.Clock
	logger        *slog.Logger
	delay         time.Duration
	sweepInterval time.Duration
	sendTimeout   time.Duration

	mu      sync.Mutex
	entries []retryEntry
	timer   *clock.Timer
	closed  bool

	// sweeping prevents overlapping sweeps.
	sweeping sync.Mutex

	enqueued atomic.Uint64
	retried  atomic.Uint64
	dropped  atomic.Uint64
}

type retryEntry struct {
	entry   logs.NewLog
	retryAt time.Time
}

// NewRetryQueue returns an empty queue. Transport is required.
func NewRetryQueue(cfg RetryConfig) *RetryQueue {
	queue := &RetryQueue{
		transport:     cfg.Transport,
		clock:         cfg.Clock,
		logger:        cfg.Logger,
		delay:         cfg.Delay,
		sweepInterval: cfg.SweepInterval,
		sendTimeout:   cfg.SendTimeout,
	}
	if queue.clock == nil {
		queue.clock = clock.Real()
	}
	if queue.logger == nil {
		queue.logger = discardLogger()
	}
	if queue.delay <= 0 {
		queue.delay = DefaultRetryDelay
	}
	if queue.sweepInterval <= 0 {
		queue.sweepInterval = DefaultSweepInterval
	}
	if queue.sendTimeout <= 0 {
		queue.sendTimeout = defaultSendLimit
	}
	return queue
}

// Enqueue schedules entries for one retry after the configured delay.
// After Close, entries are dropped immediately.
func (q *RetryQueue) Enqueue(entries ...logs.NewLog) {
	if len(entries) == 0 {
		return
	}
	retryAt := q.clock.Now().Add(q.delay)

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.dropped.Add(uint64(len(entries)))
		q.logger.Warn("retry queue closed, dropping logs", "count", len(entries))
		return
	}
	for _, entry := range entries {
		q.entries = append(q.entries, retryEntry{entry: entry, retryAt: retryAt})
	}
	q.enqueued.Add(uint64(len(entries)))
	q.armLocked()
	q.mu.Unlock()
}

// Stats returns a snapshot of the queue's counters.
func (q *RetryQueue) Stats() RetryStats {
	q.mu.Lock()
	pending := len(q.entries)
	q.mu.Unlock()
	return RetryStats{
		Enqueued: q.enqueued.Load(),
		Retried:  q.retried.Load(),
		Dropped:  q.dropped.Load(),
		Pending:  pending,
	}
}

// Close stops the sweep timer, waits for an in-flight sweep, and drops
// whatever is still pending.
func (q *RetryQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
	pending := len(q.entries)
	q.entries = nil
	q.mu.Unlock()

	q.sweeping.Lock()
	q.sweeping.Unlock()

	if pending > 0 {
		q.dropped.Add(uint64(pending))
		q.logger.Warn("retry queue closed with pending logs, dropping", "count", pending)
	}
}

// armLocked starts the sweep timer if entries are pending and no timer
// is running. Caller holds q.mu.
func (q *RetryQueue) armLocked() {
	if q.closed || q.timer != nil || len(q.entries) == 0 {
		return
	}
	q.timer = q.clock.AfterFunc(q.sweepInterval, q.sweep)
}

func (q *RetryQueue) sweep() {
	q.mu.Lock()
	q.timer = nil
	q.mu.Unlock()

	if q.sweeping.TryLock() {
		q.retryDue()
		q.sweeping.Unlock()
	}

	q.mu.Lock()
	q.armLocked()
	q.mu.Unlock()
}

// retryDue removes every entry whose retry time has come and delivers
// them once.
func (q *RetryQueue) retryDue() {
	now := q.clock.Now()

	q.mu.Lock()
	var due []logs.NewLog
	remaining := q.entries[:0]
	for _, pending := range q.entries {
		if pending.retryAt.After(now) {
			remaining = append(remaining, pending)
		} else {
			due = append(due, pending.entry)
		}
	}
	q.entries = remaining
	q.mu.Unlock()

	if len(due) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), q.sendTimeout)
	defer cancel()

	failed, err := sendAll(ctx, q.transport, due)
	delivered := len(due) - len(failed)
	q.retried.Add(uint64(delivered))
	if len(failed) > 0 {
		q.dropped.Add(uint64(len(failed)))
		q.logger.Warn("log retry failed, dropping",
			"count", len(failed),
			"delivered", delivered,
			"error", err,
		)
		return
	}
	q.logger.Debug("log retry delivered", "count", delivered)
}
