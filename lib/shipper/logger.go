// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package shipper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/logbook/lib/clock"
	"github.com/bureau-foundation/logbook/lib/schema/logs"
)

const (
	// DefaultBatchSize is the queue length that triggers an immediate
	// flush.
	DefaultBatchSize = 10

	// DefaultFlushInterval is how long the first unflushed entry waits
	// before a timed flush.
	DefaultFlushInterval = 5 * time.Second
)

// ErrClosed is returned by Flush after Close.
var ErrClosed = errors.New("shipper: logger closed")

// Config configures a Logger.
type Config struct {
	// ProjectID stamps every entry. Required.
	ProjectID string

	// Transport delivers entries. Required.
	Transport Transport

	BatchSize     int
	FlushInterval time.Duration

	// RetryDelay and SweepInterval configure the retry queue.
	RetryDelay    time.Duration
	SweepInterval time.Duration

	// Clock defaults to the real clock.
	Clock clock.Clock

	// Logger receives the shipper's own diagnostics (delivery failures,
	// drops). Defaults to discarding them.
	Logger *slog.Logger
}

// Logger batches application log calls and delivers them through a
// Transport. It is safe for concurrent use. Construct one per process
// (or per project) and pass it to the code that logs.
type Logger struct {
	projectID string
	transport Transport
	clock     clock.Clock
	logger    *slog.Logger
	retry     *RetryQueue

	mu            sync.Mutex
	queue         []logs.NewLog
	batchSize     int
	flushInterval time.Duration
	closed        bool

	// timer is the pending flush timer; timerGeneration identifies it
	// so a callback that fires after being superseded leaves its
	// successor alone.
	timer           *clock.Timer
	timerGeneration uint64

	// flushing is held for the duration of a flush. Triggers that find
	// it held are dropped; the running flush re-checks the queue before
	// releasing it.
	flushing sync.Mutex

	// background tracks flush goroutines and armed flush timers so
	// Close can wait for them.
	background sync.WaitGroup
}

// New returns a Logger for cfg.
func New(cfg Config) (*Logger, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("shipper: ProjectID is required")
	}
	if cfg.Transport == nil {
		return nil, fmt.Errorf("shipper: Transport is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = discardLogger()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}

	return &Logger{
		projectID: cfg.ProjectID,
		transport: cfg.Transport,
		clock:     cfg.Clock,
		logger:    cfg.Logger,
		retry: NewRetryQueue(RetryConfig{
			Transport:     cfg.Transport,
			Clock:         cfg.Clock,
			Logger:        cfg.Logger,
			Delay:         cfg.RetryDelay,
			SweepInterval: cfg.SweepInterval,
		}),
		batchSize:     cfg.BatchSize,
		flushInterval: cfg.FlushInterval,
	}, nil
}

// Debug logs at debug level. args are alternating key/value pairs or
// slog.Attr values, as with log/slog.
func (l *Logger) Debug(message string, args ...any) { l.Log(logs.LevelDebug, message, args...) }

// Info logs at info level.
func (l *Logger) Info(message string, args ...any) { l.Log(logs.LevelInfo, message, args...) }

// Warn logs at warn level.
func (l *Logger) Warn(message string, args ...any) { l.Log(logs.LevelWarn, message, args...) }

// Error logs at error level.
func (l *Logger) Error(message string, args ...any) { l.Log(logs.LevelError, message, args...) }

// Log queues an entry at level and returns immediately.
func (l *Logger) Log(level logs.Level, message string, args ...any) {
	entry := logs.NewLog{
		ProjectID: l.projectID,
		Level:     level,
		Message:   message,
		Timestamp: logs.FormatTimestamp(l.clock.Now()),
		Metadata:  metadataFromArgs(args),
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		l.logger.Warn("log after close dropped", "message", message)
		return
	}
	l.queue = append(l.queue, entry)

	if len(l.queue) >= l.batchSize {
		l.stopTimerLocked()
		l.background.Add(1)
		l.mu.Unlock()
		go func() {
			defer l.background.Done()
			l.flush(context.Background())
		}()
		return
	}

	if l.timer == nil {
		l.background.Add(1)
		l.timerGeneration++
		generation := l.timerGeneration
		l.timer = l.clock.AfterFunc(l.flushInterval, func() { l.onTimer(generation) })
	}
	l.mu.Unlock()
}

// Flush delivers everything queued. It returns immediately if another
// flush is already running, and ErrClosed after Close. Delivery
// failures are handed to the retry queue, not returned.
func (l *Logger) Flush(ctx context.Context) error {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return ErrClosed
	}
	l.flush(ctx)
	return ctx.Err()
}

// SetBatchConfig changes the batch size and flush interval. Values <= 0
// leave the current setting. A pending flush timer keeps its original
// deadline.
func (l *Logger) SetBatchConfig(batchSize int, flushInterval time.Duration) {
	l.mu.Lock()
	if batchSize > 0 {
		l.batchSize = batchSize
	}
	if flushInterval > 0 {
		l.flushInterval = flushInterval
	}
	due := len(l.queue) >= l.batchSize && !l.closed
	if due {
		l.stopTimerLocked()
		l.background.Add(1)
	}
	l.mu.Unlock()

	if due {
		go func() {
			defer l.background.Done()
			l.flush(context.Background())
		}()
	}
}

// RetryStats reports the retry queue's counters.
func (l *Logger) RetryStats() RetryStats {
	return l.retry.Stats()
}

// Close stops accepting entries, waits for in-flight flushes, and
// makes one delivery attempt for whatever remains. Entries that fail
// this last attempt are dropped with a warning. The retry queue is
// stopped and its pending entries dropped.
func (l *Logger) Close(ctx context.Context) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.stopTimerLocked()
	l.mu.Unlock()

	l.background.Wait()

	l.flushing.Lock()
	remaining := l.takeQueue()
	if len(remaining) > 0 {
		failed, err := sendAll(ctx, l.transport, remaining)
		if len(failed) > 0 {
			l.logger.Warn("final flush failed, dropping logs", "count", len(failed), "error", err)
		}
	}
	l.flushing.Unlock()

	l.retry.Close()
	return nil
}

func (l *Logger) onTimer(generation uint64) {
	defer l.background.Done()
	l.mu.Lock()
	if l.timerGeneration == generation {
		l.timer = nil
	}
	l.mu.Unlock()
	l.flush(context.Background())
}

// flush delivers the queue until it is empty. It is a no-op if another
// flush holds l.flushing. A size trigger that lost the race for
// l.flushing while this flush was finishing is honored by the check
// after unlocking.
func (l *Logger) flush(ctx context.Context) {
	for {
		if !l.flushing.TryLock() {
			return
		}
		l.drain(ctx)
		l.flushing.Unlock()

		if ctx.Err() != nil || !l.batchReady() {
			return
		}
	}
}

func (l *Logger) drain(ctx context.Context) {
	for {
		batch := l.takeQueue()
		if len(batch) == 0 {
			return
		}
		failed, err := sendAll(ctx, l.transport, batch)
		if len(failed) > 0 {
			l.logger.Warn("log delivery failed, scheduling retry",
				"count", len(failed),
				"batch", len(batch),
				"error", err,
			)
			l.retry.Enqueue(failed...)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (l *Logger) batchReady() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.closed && len(l.queue) >= l.batchSize
}

// takeQueue removes and returns everything queued, cancelling the
// flush timer since the taken entries no longer need it.
func (l *Logger) takeQueue() []logs.NewLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	batch := l.queue
	l.queue = nil
	if len(batch) > 0 {
		l.stopTimerLocked()
	}
	return batch
}

// stopTimerLocked cancels a pending flush timer. Caller holds l.mu.
func (l *Logger) stopTimerLocked() {
	if l.timer == nil {
		return
	}
	if l.timer.Stop() {
		l.background.Done()
	}
	l.timer = nil
}

// metadataFromArgs converts slog-style arguments to metadata entries.
// A trailing key without a value keeps an empty value; a non-string
// key is recorded under "!BADKEY".
func metadataFromArgs(args []any) []logs.MetadataEntry {
	if len(args) == 0 {
		return nil
	}
	entries := make([]logs.MetadataEntry, 0, (len(args)+1)/2)
	for i := 0; i < len(args); {
		switch key := args[i].(type) {
		case slog.Attr:
			entries = append(entries, logs.MetadataEntry{Key: key.Key, Value: key.Value.String()})
			i++
		case string:
			value := ""
			if i+1 < len(args) {
				value = fmt.Sprint(args[i+1])
			}
			entries = append(entries, logs.MetadataEntry{Key: key, Value: value})
			i += 2
		default:
			entries = append(entries, logs.MetadataEntry{Key: "!BADKEY", Value: fmt.Sprint(key)})
			i++
		}
	}
	return entries
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
