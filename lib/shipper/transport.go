// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package shipper

import (
	"context"

	"github.com/bureau-foundation/logbook/lib/schema/logs"
)

// Transport delivers one log entry.
type Transport interface {
	Send(ctx context.Context, entry logs.NewLog) error
}

// BulkTransport is a Transport that can deliver a batch in one call.
// SendBulk is all-or-nothing from the caller's point of view: on error
// the whole batch is treated as undelivered.
type BulkTransport interface {
	Transport
	SendBulk(ctx context.Context, entries []logs.NewLog) error
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, entry logs.NewLog) error

func (f TransportFunc) Send(ctx context.Context, entry logs.NewLog) error {
	return f(ctx, entry)
}

// sendAll delivers entries through transport: in one bulk call when
// supported, otherwise one at a time. It returns the entries that were
// not delivered and the last error seen.
func sendAll(ctx context.Context, transport Transport, entries []logs.NewLog) ([]logs.NewLog, error) {
	if bulk, ok := transport.(BulkTransport); ok {
		if err := bulk.SendBulk(ctx, entries); err != nil {
			return entries, err
		}
		return nil, nil
	}

	var failed []logs.NewLog
	var lastErr error
	for _, entry := range entries {
		if err := transport.Send(ctx, entry); err != nil {
			failed = append(failed, entry)
			lastErr = err
		}
	}
	return failed, lastErr
}
