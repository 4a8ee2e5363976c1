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
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ZaparooProject/go-rcs620s/internal/readqueue"
)

const receiveBufferSize = 512

// DeviceConfig contains configuration options for the Device
type DeviceConfig struct {
	// OnReady is called once the receive loop is running
	OnReady func()
	// Timeout bounds each awaited read (ACK, header, body) of a transaction
	Timeout time.Duration
	// CloseTimeout bounds how long Close waits for the receive loop to stop
	CloseTimeout time.Duration
}

// DefaultDeviceConfig returns default device configuration
func DefaultDeviceConfig() *DeviceConfig {
	return &DeviceConfig{
		Timeout:      1 * time.Second,
		CloseTimeout: 1 * time.Second,
	}
}

// Device represents an RC-S620/S reader on one transport connection.
//
// Thread Safety: transactions are serialised internally, so methods may be
// called from several goroutines. Poll and ReadBlocks additionally share an
// advisory busy flag: while one of them runs, the other returns ErrBusy
// without touching the transport.
type Device struct {
	transport Transport
	config    *DeviceConfig
	queue     *readqueue.Queue
	stop      chan struct{}
	done      chan struct{}
	closeErr  error
	txMu      sync.Mutex
	closeOnce sync.Once
	timeout   atomic.Int64
	ready     atomic.Bool
	closed    atomic.Bool
	busy      atomic.Bool
}

// New creates a Device on transport and starts receiving from it
func New(transport Transport, opts ...Option) (*Device, error) {
	if transport == nil {
		return nil, fmt.Errorf("%w: nil transport", ErrInvalidParameter)
	}

	device := &Device{
		transport: transport,
		config:    DefaultDeviceConfig(),
	}
	device.timeout.Store(int64(device.config.Timeout))

	// Apply options
	for _, opt := range opts {
		if err := opt(device); err != nil {
			return nil, err
		}
	}

	device.queue = readqueue.New()
	device.stop = make(chan struct{})
	device.done = make(chan struct{})
	go device.receiveLoop()

	device.ready.Store(true)
	debugf("reader ready on %s transport", transport.Type())
	if device.config.OnReady != nil {
		device.config.OnReady()
	}

	return device, nil
}

// Transport returns the underlying transport
func (d *Device) Transport() Transport {
	return d.transport
}

// IsReady reports whether the device can run transactions
func (d *Device) IsReady() bool {
	return d.ready.Load()
}

// IsBusy reports whether a poll or multi-block read is in progress
func (d *Device) IsBusy() bool {
	return d.busy.Load()
}

// SetTimeout sets the per-response timeout. It is safe to call while a
// transaction runs; the new value applies from the next transaction.
func (d *Device) SetTimeout(timeout time.Duration) error {
	if timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidParameter)
	}
	d.timeout.Store(int64(timeout))
	return nil
}

// Timeout returns the per-response timeout
func (d *Device) Timeout() time.Duration {
	return time.Duration(d.timeout.Load())
}

// Init runs the reader bring-up sequence
func (d *Device) Init() error {
	return d.InitContext(context.Background())
}

// InitContext runs the three RF configuration commands in order. The first
// failure aborts the sequence and names the failing stage; there is no retry.
func (d *Device) InitContext(ctx context.Context) error {
	for _, step := range initSequence {
		if _, err := d.execute(ctx, step.cmd, readqueue.ExactHex("D533")); err != nil {
			return &CommandError{Op: "init", Stage: step.stage, Kind: ErrInitFailed, Err: err}
		}
		debugf("init: %s done", step.stage)
	}
	return nil
}

// Close closes the device connection. It is safe to call more than once;
// only the first call closes the transport.
func (d *Device) Close() error {
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		d.ready.Store(false)
		close(d.stop)

		if err := d.transport.Close(); err != nil {
			d.closeErr = NewTransportError("close", "", fmt.Errorf("%w: %w", ErrTransportClose, err),
				ErrorTypePermanent)
		}

		select {
		case <-d.done:
			debugln("receive loop stopped")
		case <-time.After(d.config.CloseTimeout):
			debugf("receive loop did not stop within %v", d.config.CloseTimeout)
		}

		d.queue.Close()
	})
	return d.closeErr
}

// receiveLoop feeds everything the transport delivers into the read queue
func (d *Device) receiveLoop() {
	defer close(d.done)

	buf := make([]byte, receiveBufferSize)
	for {
		select {
		case <-d.stop:
			return
		default:
		}

		n, err := d.transport.Read(buf)
		if n > 0 {
			debugf("RX: % X", buf[:n])
			d.queue.Feed(buf[:n])
		}
		if err != nil {
			select {
			case <-d.stop:
			default:
				debugf("receive loop stopping: %v", err)
				d.ready.Store(false)
			}
			return
		}
	}
}

// checkUsable returns the reason transactions cannot run, if any
func (d *Device) checkUsable() error {
	if d.closed.Load() {
		return ErrDeviceClosed
	}
	if !d.ready.Load() {
		return ErrNotReady
	}
	return nil
}

// acquireBusy sets the busy flag, failing if it is already set
func (d *Device) acquireBusy() error {
	if !d.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	return nil
}

func (d *Device) releaseBusy() {
	d.busy.Store(false)
}

// isContextError reports whether err came from ctx rather than the reader
func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
