// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package shipper

import (
	"context"
	"sync"

	"github.com/bureau-foundation/logbook/lib/schema/logs"
)

// fakeTransport records every delivery attempt on batches. fail, when
// set, decides the outcome of each attempt (numbered from 1). gate,
// when set, blocks every attempt until it is closed; started receives
// once per attempt before blocking.
type fakeTransport struct {
	mu      sync.Mutex
	calls   int
	fail    func(call int, entries []logs.NewLog) error
	batches chan []logs.NewLog
	gate    chan struct{}
	started chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{batches: make(chan []logs.NewLog, 100)}
}

func (f *fakeTransport) deliver(entries []logs.NewLog) error {
	f.mu.Lock()
	f.calls++
	call := f.calls
	fail := f.fail
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
	f.batches <- append([]logs.NewLog(nil), entries...)
	if fail != nil {
		return fail(call, entries)
	}
	return nil
}

func (f *fakeTransport) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// singleTransport only implements Transport.
type singleTransport struct{ *fakeTransport }

func (s singleTransport) Send(_ context.Context, entry logs.NewLog) error {
	return s.deliver([]logs.NewLog{entry})
}

// bulkTransport implements BulkTransport.
type bulkTransport struct{ *fakeTransport }

func (b bulkTransport) Send(_ context.Context, entry logs.NewLog) error {
	return b.deliver([]logs.NewLog{entry})
}

func (b bulkTransport) SendBulk(_ context.Context, entries []logs.NewLog) error {
	return b.deliver(entries)
}
