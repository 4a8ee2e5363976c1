// go-rcs620s
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-rcs620s.
//
// go-rcs620s is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-rcs620s is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-rcs620s; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

// Package readqueue reassembles bytes arriving from the reader into the
// fixed-size reads the protocol engine is waiting for.
//
// Incoming chunks are appended to one accumulation buffer. Outstanding reads
// form a FIFO and only the head consumes from the buffer; the next read starts
// once the head is satisfied, fails validation or passes its deadline.
package readqueue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// Queue errors
var (
	ErrTimeout     = errors.New("read timeout")
	ErrCheckFailed = errors.New("check failed")
	ErrClosed      = errors.New("read queue closed")
)

// Request is one outstanding read. It is owned by the queue until done.
type Request struct {
	deadline  time.Time
	err       error
	queue     *Queue
	check     Validator
	done      chan struct{}
	buf       []byte
	needed    int
	abandoned atomic.Bool
}

// Done is closed once the request has resolved or been rejected.
func (r *Request) Done() <-chan struct{} {
	return r.done
}

// Result returns the assembled bytes and the outcome. It must only be
// called after Done is closed. On ErrCheckFailed the rejected bytes are
// returned alongside the error.
func (r *Request) Result() ([]byte, error) {
	return r.buf, r.err
}

// Wait blocks until the request resolves or ctx is done. A request whose
// waiter gives up is dropped from the queue without touching later entries.
func (r *Request) Wait(ctx context.Context) ([]byte, error) {
	select {
	case <-r.done:
		return r.buf, r.err
	case <-ctx.Done():
		r.abandoned.Store(true)
		r.queue.signal()
		return nil, ctx.Err()
	}
}

func (r *Request) finish(err error) {
	r.err = err
	close(r.done)
}

// Queue is a FIFO of pending reads serviced by a single worker goroutine.
type Queue struct {
	wake    chan struct{}
	stop    chan struct{}
	stopped chan struct{}
	now     func() time.Time
	pending []*Request
	input   []byte
	mu      sync.Mutex
	once    sync.Once
	closed  bool
}

type outcome struct {
	err error
	req *Request
}

// New creates a queue and starts its worker.
func New() *Queue {
	q := &Queue{
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
		now:     time.Now,
	}
	go q.run()
	return q
}

// Feed appends a chunk received from the transport.
func (q *Queue) Feed(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.input = append(q.input, chunk...)
	q.mu.Unlock()
	q.signal()
}

// Enqueue registers a read of exactly n bytes. The deadline is measured
// from now.
func (q *Queue) Enqueue(n int, check Validator, timeout time.Duration) *Request {
	req := &Request{
		queue:    q,
		needed:   n,
		check:    check,
		deadline: q.now().Add(timeout),
		done:     make(chan struct{}),
		buf:      make([]byte, 0, n),
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		req.finish(ErrClosed)
		return req
	}
	q.pending = append(q.pending, req)
	q.mu.Unlock()
	q.signal()
	return req
}

// Read enqueues a read and waits for it.
func (q *Queue) Read(ctx context.Context, n int, check Validator, timeout time.Duration) ([]byte, error) {
	return q.Enqueue(n, check, timeout).Wait(ctx)
}

// Clear discards buffered input that no request has consumed yet.
// Pending requests are left in place.
func (q *Queue) Clear() {
	q.mu.Lock()
	q.input = nil
	q.mu.Unlock()
}

// Buffered returns the number of unconsumed input bytes.
func (q *Queue) Buffered() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.input)
}

// Pending returns the number of outstanding requests.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close stops the worker and rejects every outstanding request with ErrClosed.
func (q *Queue) Close() {
	q.once.Do(func() {
		q.mu.Lock()
		q.closed = true
		pending := q.pending
		q.pending = nil
		q.input = nil
		q.mu.Unlock()

		for _, req := range pending {
			req.finish(ErrClosed)
		}
		close(q.stop)
		<-q.stopped
	})
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) run() {
	defer close(q.stopped)

	for {
		next := q.service()

		var expired <-chan time.Time
		var timer *time.Timer
		if !next.IsZero() {
			timer = time.NewTimer(next.Sub(q.now()))
			expired = timer.C
		}

		select {
		case <-q.stop:
			if timer != nil {
				timer.Stop()
			}
			return
		case <-q.wake:
		case <-expired:
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

// service advances the head of the queue as far as buffered input allows and
// returns the deadline of the head left waiting, or the zero time.
func (q *Queue) service() time.Time {
	var done []outcome
	var next time.Time

	q.mu.Lock()
	for len(q.pending) > 0 {
		head := q.pending[0]
		if head.abandoned.Load() {
			q.pop()
			continue
		}

		take := min(head.needed, len(q.input))
		head.buf = append(head.buf, q.input[:take]...)
		q.input = q.input[take:]
		if len(q.input) == 0 {
			q.input = nil
		}
		head.needed -= take

		if head.needed == 0 {
			q.pop()
			var err error
			if !head.check.Check(head.buf) {
				err = ErrCheckFailed
			}
			done = append(done, outcome{req: head, err: err})
			continue
		}

		if !q.now().Before(head.deadline) {
			q.pop()
			done = append(done, outcome{req: head, err: ErrTimeout})
			continue
		}

		next = head.deadline
		break
	}
	q.mu.Unlock()

	for _, o := range done {
		o.req.finish(o.err)
	}
	return next
}

func (q *Queue) pop() {
	q.pending[0] = nil
	q.pending = q.pending[1:]
}
