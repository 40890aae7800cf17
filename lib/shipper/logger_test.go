// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package shipper

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"testing"
	"time"

	"github.com/bureau-foundation/logbook/lib/clock"
	"github.com/bureau-foundation/logbook/lib/schema/logs"
	"github.com/bureau-foundation/logbook/lib/testutil"
)

var shipperTestClockEpoch = time.Date(2026, 2, 28, 14, 0, 0, 0, time.UTC)

func newTestShipper(t *testing.T, transport Transport, fakeClock *clock.FakeClock, cfg Config) *Logger {
	t.Helper()
	cfg.ProjectID = "proj-1"
	cfg.Transport = transport
	cfg.Clock = fakeClock
	logger, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { logger.Close(context.Background()) })
	return logger
}

func messages(entries []logs.NewLog) []string {
	result := make([]string, len(entries))
	for i, entry := range entries {
		result[i] = entry.Message
	}
	return result
}

func TestNewValidation(t *testing.T) {
	if _, err := New(Config{Transport: noopTransport()}); err == nil {
		t.Error("expected error without ProjectID")
	}
	if _, err := New(Config{ProjectID: "p"}); err == nil {
		t.Error("expected error without Transport")
	}
}

func noopTransport() Transport {
	return TransportFunc(func(context.Context, logs.NewLog) error { return nil })
}

func TestLogStampsEntry(t *testing.T) {
	fakeClock := clock.Fake(shipperTestClockEpoch)
	transport := newFakeTransport()
	logger := newTestShipper(t, bulkTransport{transport}, fakeClock, Config{})

	fakeClock.Advance(250 * time.Millisecond)
	logger.Warn("disk almost full", "mount", "/var", "percent", 93)
	if err := logger.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	batch := testutil.RequireReceive(t, transport.batches, 5*time.Second, "waiting for flush")
	if len(batch) != 1 {
		t.Fatalf("batch = %+v", batch)
	}
	entry := batch[0]
	if entry.ProjectID != "proj-1" || entry.Level != logs.LevelWarn || entry.Message != "disk almost full" {
		t.Errorf("entry = %+v", entry)
	}
	if entry.Timestamp != "2026-02-28T14:00:00.250Z" {
		t.Errorf("Timestamp = %q", entry.Timestamp)
	}
	want := []logs.MetadataEntry{{Key: "mount", Value: "/var"}, {Key: "percent", Value: "93"}}
	if !slices.Equal(entry.Metadata, want) {
		t.Errorf("Metadata = %v, want %v", entry.Metadata, want)
	}
}

func TestSizeTriggerFlushes(t *testing.T) {
	fakeClock := clock.Fake(shipperTestClockEpoch)
	transport := newFakeTransport()
	logger := newTestShipper(t, bulkTransport{transport}, fakeClock, Config{BatchSize: 3, FlushInterval: time.Hour})

	logger.Info("one")
	logger.Info("two")
	if fakeClock.PendingCount() != 1 {
		t.Errorf("pending timers = %d, want exactly one flush timer", fakeClock.PendingCount())
	}
	logger.Info("three")

	batch := testutil.RequireReceive(t, transport.batches, 5*time.Second, "waiting for size-triggered flush")
	if !slices.Equal(messages(batch), []string{"one", "two", "three"}) {
		t.Errorf("batch = %v", messages(batch))
	}
	if fakeClock.PendingCount() != 0 {
		t.Errorf("pending timers = %d after size flush, want 0", fakeClock.PendingCount())
	}
}

func TestTimerTriggerFlushes(t *testing.T) {
	fakeClock := clock.Fake(shipperTestClockEpoch)
	transport := newFakeTransport()
	logger := newTestShipper(t, bulkTransport{transport}, fakeClock, Config{})

	logger.Info("one")
	fakeClock.Advance(time.Second)
	logger.Info("two")

	fakeClock.Advance(DefaultFlushInterval - 2*time.Second)
	if transport.callCount() != 0 {
		t.Fatalf("flushed before the interval elapsed")
	}

	// The timer was armed by the first entry.
	fakeClock.Advance(time.Second)
	batch := testutil.RequireReceive(t, transport.batches, 5*time.Second, "waiting for timed flush")
	if !slices.Equal(messages(batch), []string{"one", "two"}) {
		t.Errorf("batch = %v", messages(batch))
	}
}

func TestFlushGuardAndRecheck(t *testing.T) {
	fakeClock := clock.Fake(shipperTestClockEpoch)
	transport := newFakeTransport()
	transport.gate = make(chan struct{})
	transport.started = make(chan struct{}, 10)
	logger := newTestShipper(t, bulkTransport{transport}, fakeClock, Config{})
	ctx := context.Background()

	logger.Info("first")
	done := make(chan error, 1)
	go func() { done <- logger.Flush(ctx) }()
	testutil.RequireReceive(t, transport.started, 5*time.Second, "waiting for first delivery")

	logger.Info("during one")
	logger.Info("during two")

	// A second flush while one is in flight is a no-op.
	if err := logger.Flush(ctx); err != nil {
		t.Errorf("concurrent Flush: %v", err)
	}
	if transport.callCount() != 1 {
		t.Errorf("calls = %d, want 1 while the first flush is blocked", transport.callCount())
	}

	close(transport.gate)
	if err := testutil.RequireReceive(t, done, 5*time.Second, "waiting for Flush"); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	first := testutil.RequireReceive(t, transport.batches, 5*time.Second, "first batch")
	second := testutil.RequireReceive(t, transport.batches, 5*time.Second, "re-check batch")
	if !slices.Equal(messages(first), []string{"first"}) {
		t.Errorf("first batch = %v", messages(first))
	}
	if !slices.Equal(messages(second), []string{"during one", "during two"}) {
		t.Errorf("second batch = %v", messages(second))
	}
}

func TestSetBatchConfigTriggersWhenAlreadyFull(t *testing.T) {
	fakeClock := clock.Fake(shipperTestClockEpoch)
	transport := newFakeTransport()
	logger := newTestShipper(t, bulkTransport{transport}, fakeClock, Config{})

	logger.Info("a")
	logger.Info("b")
	logger.SetBatchConfig(2, 0)

	batch := testutil.RequireReceive(t, transport.batches, 5*time.Second, "waiting for flush after SetBatchConfig")
	if !slices.Equal(messages(batch), []string{"a", "b"}) {
		t.Errorf("batch = %v", messages(batch))
	}
}

func TestBulkFailureRetriesWholeBatchOnce(t *testing.T) {
	fakeClock := clock.Fake(shipperTestClockEpoch)
	transport := newFakeTransport()
	transport.fail = func(call int, _ []logs.NewLog) error {
		if call == 1 {
			return errors.New("connection refused")
		}
		return nil
	}
	logger := newTestShipper(t, bulkTransport{transport}, fakeClock, Config{})
	ctx := context.Background()

	logger.Info("a")
	logger.Info("b")
	logger.Info("c")
	if err := logger.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	testutil.RequireReceive(t, transport.batches, 5*time.Second, "failed attempt")
	if stats := logger.RetryStats(); stats.Enqueued != 3 || stats.Pending != 3 {
		t.Fatalf("stats after failure = %+v", stats)
	}

	fakeClock.Advance(DefaultRetryDelay - time.Second)
	if transport.callCount() != 1 {
		t.Fatalf("retried before the delay elapsed")
	}
	fakeClock.Advance(time.Second)

	retried := testutil.RequireReceive(t, transport.batches, 5*time.Second, "retry attempt")
	if !slices.Equal(messages(retried), []string{"a", "b", "c"}) {
		t.Errorf("retried batch = %v", messages(retried))
	}
	stats := logger.RetryStats()
	if stats.Retried != 3 || stats.Dropped != 0 || stats.Pending != 0 {
		t.Errorf("stats after retry = %+v", stats)
	}
}

func TestSingleSendRetriesOnlyFailedEntries(t *testing.T) {
	fakeClock := clock.Fake(shipperTestClockEpoch)
	transport := newFakeTransport()
	transport.fail = func(call int, entries []logs.NewLog) error {
		if entries[0].Message == "flaky" && call <= 3 {
			return errors.New("503")
		}
		return nil
	}
	logger := newTestShipper(t, singleTransport{transport}, fakeClock, Config{})

	logger.Info("ok one")
	logger.Info("flaky")
	logger.Info("ok two")
	if err := logger.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	if stats := logger.RetryStats(); stats.Enqueued != 1 {
		t.Fatalf("Enqueued = %d, want only the failed entry", stats.Enqueued)
	}

	fakeClock.Advance(DefaultRetryDelay)
	if transport.callCount() != 4 {
		t.Errorf("calls = %d, want 3 sends plus 1 retry", transport.callCount())
	}
	if stats := logger.RetryStats(); stats.Retried != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestPersistentFailureDropsAfterOneRetry(t *testing.T) {
	fakeClock := clock.Fake(shipperTestClockEpoch)
	transport := newFakeTransport()
	transport.fail = func(int, []logs.NewLog) error { return errors.New("down") }
	logger := newTestShipper(t, bulkTransport{transport}, fakeClock, Config{})

	logger.Error("lost")
	if err := logger.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	fakeClock.Advance(DefaultRetryDelay)
	fakeClock.Advance(time.Minute)

	if transport.callCount() != 2 {
		t.Errorf("calls = %d, want exactly one retry", transport.callCount())
	}
	stats := logger.RetryStats()
	if stats.Dropped != 1 || stats.Pending != 0 || stats.Retried != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if fakeClock.PendingCount() != 0 {
		t.Errorf("pending timers = %d, want sweep disarmed on an empty queue", fakeClock.PendingCount())
	}
}

func TestCloseDeliversRemainder(t *testing.T) {
	fakeClock := clock.Fake(shipperTestClockEpoch)
	transport := newFakeTransport()
	logger := newTestShipper(t, bulkTransport{transport}, fakeClock, Config{})
	ctx := context.Background()

	logger.Info("pending one")
	logger.Info("pending two")
	if err := logger.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	batch := testutil.RequireReceive(t, transport.batches, 5*time.Second, "final flush")
	if !slices.Equal(messages(batch), []string{"pending one", "pending two"}) {
		t.Errorf("final batch = %v", messages(batch))
	}
	if fakeClock.PendingCount() != 0 {
		t.Errorf("pending timers after Close = %d", fakeClock.PendingCount())
	}

	logger.Info("too late")
	if err := logger.Flush(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("Flush after Close = %v, want ErrClosed", err)
	}
	if transport.callCount() != 1 {
		t.Errorf("calls = %d, want no delivery after Close", transport.callCount())
	}
}

func TestCloseDropsFinalFailure(t *testing.T) {
	fakeClock := clock.Fake(shipperTestClockEpoch)
	transport := newFakeTransport()
	transport.fail = func(int, []logs.NewLog) error { return errors.New("down") }
	logger := newTestShipper(t, bulkTransport{transport}, fakeClock, Config{})

	logger.Info("doomed")
	if err := logger.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if transport.callCount() != 1 {
		t.Errorf("calls = %d, want one final attempt", transport.callCount())
	}
	if stats := logger.RetryStats(); stats.Enqueued != 0 {
		t.Errorf("final flush should not use the retry queue: %+v", stats)
	}
}

func TestMetadataFromArgs(t *testing.T) {
	tests := []struct {
		name string
		args []any
		want []logs.MetadataEntry
	}{
		{"none", nil, nil},
		{"pairs", []any{"user", "u1", "count", 3}, []logs.MetadataEntry{{Key: "user", Value: "u1"}, {Key: "count", Value: "3"}}},
		{"dangling key", []any{"user", "u1", "orphan"}, []logs.MetadataEntry{{Key: "user", Value: "u1"}, {Key: "orphan", Value: ""}}},
		{"attr", []any{slog.Int("attempt", 2), "ok", true}, []logs.MetadataEntry{{Key: "attempt", Value: "2"}, {Key: "ok", Value: "true"}}},
		{"bad key", []any{42}, []logs.MetadataEntry{{Key: "!BADKEY", Value: "42"}}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := metadataFromArgs(test.args)
			if !slices.Equal(got, test.want) {
				t.Errorf("metadataFromArgs(%v) = %v, want %v", test.args, got, test.want)
			}
		})
	}
}
