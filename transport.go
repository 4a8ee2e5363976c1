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

import "fmt"

// Transport is the serial link to the reader. The uart package provides the
// real implementation; tests use MockTransport.
type Transport interface {
	// Read returns bytes received from the reader. It returns 0, nil when
	// nothing arrived within the transport's read timeout and an error once
	// the transport is closed.
	Read(p []byte) (int, error)

	// Write sends bytes to the reader
	Write(p []byte) (int, error)

	// Drain blocks until written bytes have left the host
	Drain() error

	// Flush discards received bytes that have not been read
	Flush() error

	// Close closes the transport connection
	Close() error

	// IsConnected returns true if the transport is connected
	IsConnected() bool

	// Type returns the transport type
	Type() TransportType
}

// TransportType represents the type of transport
type TransportType string

const (
	// TransportUART represents UART/serial transport.
	TransportUART TransportType = "uart"
	// TransportMock represents a mock transport for testing
	TransportMock TransportType = "mock"
)

// writeFrame writes all of data and drains it
func writeFrame(t Transport, op string, data []byte) error {
	n, err := t.Write(data)
	if err != nil {
		return NewTransportError(op, "", fmt.Errorf("%w: %w", ErrTransportWrite, err), ErrorTypeTransient)
	}
	if n != len(data) {
		return NewTransportWriteError(op, "")
	}
	if err := t.Drain(); err != nil {
		return NewTransportError(op, "", fmt.Errorf("%w: %w", ErrTransportWrite, err), ErrorTypeTransient)
	}
	return nil
}
