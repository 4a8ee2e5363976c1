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
	"time"

	"github.com/ZaparooProject/go-rcs620s/internal/frame"
	"github.com/ZaparooProject/go-rcs620s/internal/readqueue"
)

// cancelSettleDelay is how long the reader gets to discard its state after
// a cancel frame before the receive side is flushed
const cancelSettleDelay = 10 * time.Millisecond

var (
	ackCheck      = readqueue.Validator(frame.IsAck)
	preambleCheck = readqueue.Validator(frame.HasPreamble)
)

// execute runs one command/response transaction and returns the response
// payload. Any failure sends a cancel frame before returning.
func (d *Device) execute(ctx context.Context, payload []byte, check readqueue.Validator) ([]byte, error) {
	if err := d.checkUsable(); err != nil {
		return nil, err
	}

	frm, err := frame.Encode(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParameter, err)
	}

	d.txMu.Lock()
	defer d.txMu.Unlock()

	body, err := d.exchange(ctx, payload, frm, check)
	if err != nil {
		debugf("transaction failed: %v", err)
		d.cancelCommand()
		return nil, err
	}
	return body, nil
}

// exchange writes the encoded frame frm and reads ACK, header, body and
// trailer in turn
func (d *Device) exchange(ctx context.Context, payload, frm []byte, check readqueue.Validator) ([]byte, error) {
	timeout := d.Timeout()

	if err := d.transport.Flush(); err != nil {
		return nil, NewTransportError("flush", "", err, ErrorTypeTransient)
	}
	d.queue.Clear()

	debugf("TX: % X", payload)
	if err := writeFrame(d.transport, "send", frm); err != nil {
		return nil, err
	}

	if _, err := d.queue.Read(ctx, frame.AckLength, ackCheck, timeout); err != nil {
		return nil, readFailure(ErrNoACK, err)
	}

	hdr, err := d.queue.Read(ctx, frame.HeaderLength, preambleCheck, timeout)
	if err != nil {
		return nil, readFailure(ErrNoValidMessage, err)
	}
	header, err := frame.DecodeHeader(hdr)
	if err != nil {
		if errors.Is(err, frame.ErrBadLengthSum) {
			return nil, fmt.Errorf("%w: %w", ErrResponseChecksum, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrNoValidMessage, err)
	}

	length := header.Length
	if header.Extended {
		ext, err := d.queue.Read(ctx, frame.ExtLengthLength, nil, timeout)
		if err != nil {
			return nil, readFailure(ErrNoValidMessage, err)
		}
		if length, err = frame.DecodeExtendedLength(ext); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrResponseChecksum, err)
		}
	}
	if length > frame.MaxResponseLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrResponseTooLong, length)
	}

	body, err := d.queue.Read(ctx, length, nil, timeout)
	if err != nil {
		return nil, readFailure(ErrNoValidMessage, err)
	}
	trailer, err := d.queue.Read(ctx, frame.TrailerLength, nil, timeout)
	if err != nil {
		return nil, readFailure(ErrNoValidMessage, err)
	}
	if err := frame.VerifyTrailer(body, trailer); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResponseChecksum, err)
	}

	debugf("RX payload: % X", body)
	if !check.Check(body) {
		return nil, fmt.Errorf("%w: % X", ErrCheckFailed, body)
	}
	return body, nil
}

// cancelCommand tells the reader to abandon the current command and
// discards whatever it already sent. Failures are only logged.
func (d *Device) cancelCommand() {
	if d.closed.Load() {
		return
	}
	if err := writeFrame(d.transport, "cancel", frame.CancelFrame); err != nil {
		debugf("cancel: %v", err)
	}
	time.Sleep(cancelSettleDelay)
	if err := d.transport.Flush(); err != nil {
		debugf("cancel flush: %v", err)
	}
	d.queue.Clear()
}

// readFailure tags a failed queue read with the transaction stage kind.
// Context errors are returned as they are.
func readFailure(kind, err error) error {
	switch {
	case isContextError(err):
		return err
	case errors.Is(err, readqueue.ErrClosed):
		return fmt.Errorf("%w: %w", ErrDeviceClosed, err)
	default:
		return fmt.Errorf("%w: %w", kind, err)
	}
}
