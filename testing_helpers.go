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

package rcs620s

import (
	"sync"
	"sync/atomic"

	testutil "github.com/ZaparooProject/go-rcs620s/internal/testing"
)

// MockTransport is a Transport backed by a simulated RC-S620/S
type MockTransport struct {
	*testutil.VirtualReader
}

// NewMockTransport creates a mock transport with no card in the field
func NewMockTransport() *MockTransport {
	return &MockTransport{VirtualReader: testutil.NewVirtualReader()}
}

// IsConnected returns true until the transport is closed
func (m *MockTransport) IsConnected() bool {
	return !m.IsClosed()
}

// Type returns TransportMock
func (*MockTransport) Type() TransportType {
	return TransportMock
}

// BlockingMockTransport accepts every write but never answers. Reads block
// until data is pushed or the transport is closed.
// This is used for testing timeouts, context cancellation and shutdown
type BlockingMockTransport struct {
	// IgnoreClose keeps Read blocked after Close, like a driver that
	// never returns from a pending read
	IgnoreClose bool

	data       chan []byte
	closedChan chan struct{}
	writes     [][]byte
	mu         sync.Mutex
	closeOnce  sync.Once
	readCalls  atomic.Int32
}

// NewBlockingMockTransport creates a new blocking mock transport
func NewBlockingMockTransport() *BlockingMockTransport {
	return &BlockingMockTransport{
		data:       make(chan []byte, 16),
		closedChan: make(chan struct{}),
	}
}

// Read blocks until Push delivers bytes or the transport is closed
func (m *BlockingMockTransport) Read(buf []byte) (int, error) {
	m.readCalls.Add(1)
	closed := m.closedChan
	if m.IgnoreClose {
		closed = nil
	}
	select {
	case b := <-m.data:
		return copy(buf, b), nil
	case <-closed:
		return 0, ErrTransportRead
	}
}

// Write records data and reports it fully written
func (m *BlockingMockTransport) Write(data []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = append(m.writes, append([]byte(nil), data...))
	return len(data), nil
}

// ReadCalls returns how many times Read has been entered
func (m *BlockingMockTransport) ReadCalls() int {
	return int(m.readCalls.Load())
}

// Push makes data available to one blocked Read
func (m *BlockingMockTransport) Push(data []byte) {
	m.data <- append([]byte(nil), data...)
}

// Writes returns everything written so far
func (m *BlockingMockTransport) Writes() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.writes...)
}

// Drain does nothing
func (*BlockingMockTransport) Drain() error {
	return nil
}

// Flush does nothing
func (*BlockingMockTransport) Flush() error {
	return nil
}

// Close unblocks all operations and marks transport as closed
func (m *BlockingMockTransport) Close() error {
	m.closeOnce.Do(func() {
		close(m.closedChan)
	})
	return nil
}

// IsConnected returns false once closed
func (m *BlockingMockTransport) IsConnected() bool {
	select {
	case <-m.closedChan:
		return false
	default:
		return true
	}
}

// Type returns TransportMock
func (*BlockingMockTransport) Type() TransportType {
	return TransportMock
}
