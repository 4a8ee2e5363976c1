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
	"fmt"

	"github.com/ZaparooProject/go-rcs620s/internal/readqueue"
)

// BlockSize is the size of one FeliCa data block
const BlockSize = 16

const (
	requestServiceReplyLength = 12
	readBlockReplyLength      = 28
	readBlockDataOffset       = 12
)

// ServiceCode identifies a FeliCa service
type ServiceCode uint16

// Bytes returns the service code in card byte order (little endian)
func (s ServiceCode) Bytes() []byte {
	return []byte{byte(s), byte(s >> 8)}
}

// String returns the service code as four hex digits
func (s ServiceCode) String() string {
	return fmt.Sprintf("%04X", uint16(s))
}

// replyPrefix accepts a card reply starting with its response code then IDm
func replyPrefix(code byte, idm IDm) readqueue.Validator {
	return readqueue.Prefix(append([]byte{code}, idm[:]...))
}

// RequestService checks that the card has the service. A key version of
// FF FF in the reply means the service does not exist.
func (d *Device) RequestService(ctx context.Context, idm IDm, code ServiceCode) error {
	prefix := replyPrefix(feliCaCmdRequestService+1, idm)
	check := func(b []byte) bool {
		return len(b) == requestServiceReplyLength &&
			prefix.Check(b) &&
			!(b[len(b)-2] == 0xFF && b[len(b)-1] == 0xFF)
	}

	cmd := make([]byte, 0, 12)
	cmd = append(cmd, feliCaCmdRequestService)
	cmd = append(cmd, idm[:]...)
	cmd = append(cmd, 0x01)
	cmd = append(cmd, code.Bytes()...)

	if _, err := d.cardCommand(ctx, cmd, check); err != nil {
		return &CommandError{Op: "request service", Stage: code.String(), Kind: ErrRequestServiceFailed, Err: err}
	}
	return nil
}

// RequestResponse asks the card for its current mode. It doubles as a
// presence check for a card found earlier.
func (d *Device) RequestResponse(ctx context.Context, idm IDm) (byte, error) {
	cmd := append([]byte{feliCaCmdRequestResponse}, idm[:]...)
	check := readqueue.Validator(func(b []byte) bool {
		return len(b) == 10 && replyPrefix(feliCaCmdRequestResponse+1, idm).Check(b)
	})

	reply, err := d.cardCommand(ctx, cmd, check)
	if err != nil {
		return 0, err
	}
	return reply[9], nil
}

// ReadBlock reads one block of a service without encryption
func (d *Device) ReadBlock(ctx context.Context, idm IDm, code ServiceCode, block byte) ([]byte, error) {
	prefix := replyPrefix(feliCaCmdReadWithoutEncryption+1, idm)
	check := func(b []byte) bool {
		return len(b) == readBlockReplyLength && prefix.Check(b)
	}

	cmd := make([]byte, 0, 15)
	cmd = append(cmd, feliCaCmdReadWithoutEncryption)
	cmd = append(cmd, idm[:]...)
	cmd = append(cmd, 0x01)
	cmd = append(cmd, code.Bytes()...)
	cmd = append(cmd, 0x01, 0x80, block)

	reply, err := d.cardCommand(ctx, cmd, check)
	if err != nil {
		return nil, &CommandError{Op: "read block", Stage: code.String(), Kind: ErrReadBlockFailed, Err: err}
	}

	data := make([]byte, BlockSize)
	copy(data, reply[readBlockDataOffset:readBlockReplyLength])
	return data, nil
}

// ReadBlocks reads count consecutive blocks starting at start, one at a time
// in ascending order, and returns them concatenated. The first failing block
// aborts the read and is reported as a *BlockError.
func (d *Device) ReadBlocks(ctx context.Context, idm IDm, code ServiceCode, start, count int) ([]byte, error) {
	if count <= 0 || start < 0 || start+count-1 > 0xFF {
		return nil, fmt.Errorf("%w: blocks %d+%d", ErrInvalidParameter, start, count)
	}
	if err := d.acquireBusy(); err != nil {
		return nil, err
	}
	defer d.releaseBusy()

	return d.readBlocks(ctx, idm, code, start, count)
}

func (d *Device) readBlocks(ctx context.Context, idm IDm, code ServiceCode, start, count int) ([]byte, error) {
	out := make([]byte, 0, count*BlockSize)
	for blk := start; blk < start+count; blk++ {
		data, err := d.ReadBlock(ctx, idm, code, byte(blk))
		if err != nil {
			return nil, &BlockError{Block: blk, Err: err}
		}
		out = append(out, data...)
	}
	return out, nil
}
