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

// Package uart implements the rcs620s.Transport interface over a serial port.
package uart

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	rcs620s "github.com/ZaparooProject/go-rcs620s"
	"github.com/ZaparooProject/go-rcs620s/internal/transport"
	"go.bug.st/serial"
)

const (
	// DefaultBaudRate is the RC-S620/S factory line speed
	DefaultBaudRate = 115200
	// DefaultReadTimeout bounds one Read so the receive loop can notice Close
	DefaultReadTimeout = 50 * time.Millisecond

	drainRetries    = 2
	drainRetryDelay = 2 * time.Millisecond
)

// Option configures a Transport before the port is opened
type Option func(*Transport) error

// WithBaudRate sets the line speed
func WithBaudRate(baud int) Option {
	return func(t *Transport) error {
		if baud <= 0 {
			return fmt.Errorf("%w: baud rate %d", rcs620s.ErrInvalidParameter, baud)
		}
		t.mode.BaudRate = baud
		return nil
	}
}

// WithReadTimeout sets how long one Read waits for data
func WithReadTimeout(timeout time.Duration) Option {
	return func(t *Transport) error {
		if timeout <= 0 {
			return fmt.Errorf("%w: read timeout %v", rcs620s.ErrInvalidParameter, timeout)
		}
		t.readTimeout = timeout
		return nil
	}
}

// Transport implements the rcs620s.Transport interface for UART communication.
type Transport struct {
	port        serial.Port
	mode        *serial.Mode
	portName    string
	readTimeout time.Duration
	mu          sync.RWMutex
}

// New opens portName at 115200 8N1 unless options say otherwise
func New(portName string, opts ...Option) (*Transport, error) {
	t := &Transport{
		portName: portName,
		mode: &serial.Mode{
			BaudRate: DefaultBaudRate,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		},
		readTimeout: DefaultReadTimeout,
	}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}

	port, err := serial.Open(portName, t.mode)
	if err != nil {
		return nil, rcs620s.NewTransportError("open", portName, err, rcs620s.ErrorTypePermanent)
	}
	if err := port.SetReadTimeout(t.readTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to set UART read timeout: %w", err)
	}

	t.port = port
	rcs620s.Debugf("uart: opened %s at %d baud", portName, t.mode.BaudRate)
	return t, nil
}

// Read reads available bytes. It returns 0, nil when the read timeout
// passes without data.
func (t *Transport) Read(buf []byte) (int, error) {
	port := t.currentPort()
	if port == nil {
		return 0, rcs620s.NewTransportError("read", t.portName, rcs620s.ErrTransportRead, rcs620s.ErrorTypePermanent)
	}
	n, err := port.Read(buf)
	if err != nil {
		return n, rcs620s.NewTransportError("read", t.portName,
			fmt.Errorf("%w: %w", rcs620s.ErrTransportRead, err), rcs620s.ErrorTypePermanent)
	}
	return n, nil
}

// Write writes data to the port
func (t *Transport) Write(data []byte) (int, error) {
	port := t.currentPort()
	if port == nil {
		return 0, rcs620s.NewTransportWriteError("write", t.portName)
	}
	n, err := port.Write(data)
	if err != nil {
		return n, fmt.Errorf("UART write failed: %w", err)
	}
	return n, nil
}

// Drain waits until written bytes have been transmitted. Interrupted
// system calls are retried.
func (t *Transport) Drain() error {
	port := t.currentPort()
	if port == nil {
		return rcs620s.NewTransportWriteError("drain", t.portName)
	}

	_, err := transport.WithRetry(transport.RetryConfig{
		Description: "drain",
		Port:        t.portName,
		MaxRetries:  drainRetries,
		RetryDelay:  drainRetryDelay,
		OnRetry: func(attempt int) {
			rcs620s.Debugf("uart: drain interrupted, retry %d", attempt)
		},
	}, func() (struct{}, bool, error) {
		err := port.Drain()
		switch {
		case err == nil:
			return struct{}{}, false, nil
		case isInterruptedSystemCall(err):
			return struct{}{}, true, nil
		default:
			return struct{}{}, false, fmt.Errorf("UART drain failed: %w", err)
		}
	})
	return err
}

// Flush discards unread input
func (t *Transport) Flush() error {
	port := t.currentPort()
	if port == nil {
		return nil
	}
	if err := port.ResetInputBuffer(); err != nil {
		return fmt.Errorf("UART flush failed: %w", err)
	}
	return nil
}

// Close closes the transport connection
func (t *Transport) Close() error {
	t.mu.Lock()
	port := t.port
	t.port = nil
	t.mu.Unlock()

	if port == nil {
		return nil
	}
	if err := port.Close(); err != nil {
		var portErr *serial.PortError
		if errors.As(err, &portErr) && portErr.Code() == serial.PortClosed {
			return nil
		}
		return fmt.Errorf("UART close failed: %w", err)
	}
	rcs620s.Debugf("uart: closed %s", t.portName)
	return nil
}

// IsConnected returns true if the transport is connected
func (t *Transport) IsConnected() bool {
	return t.currentPort() != nil
}

// Type returns the transport type
func (*Transport) Type() rcs620s.TransportType {
	return rcs620s.TransportUART
}

// PortName returns the device path the transport was opened on
func (t *Transport) PortName() string {
	return t.portName
}

func (t *Transport) currentPort() serial.Port {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.port
}

// isInterruptedSystemCall checks if an error is caused by an interrupted system call
func isInterruptedSystemCall(err error) bool {
	if err == nil {
		return false
	}
	if isEINTR(err) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "interrupted system call") ||
		strings.Contains(errStr, "eintr")
}
