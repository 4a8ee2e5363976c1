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
	"encoding/binary"
	"fmt"

	"github.com/hsanjuan/go-ndef"
)

// NDEFService is the Type 3 Tag NDEF read service
const NDEFService ServiceCode = 0x000B

const (
	ndefVersionMajor   = 0x10
	maxNDEFBlocks      = 0xFF
	attributeSumOffset = 14
)

// NDEFAttributes is the Type 3 Tag attribute information block
type NDEFAttributes struct {
	Version   byte
	Nbr       byte
	Nbw       byte
	Nmaxb     uint16
	WriteFlag byte
	RWFlag    byte
	Length    int
}

// ReadOnly reports whether the tag forbids NDEF writes
func (a NDEFAttributes) ReadOnly() bool {
	return a.RWFlag == 0x00
}

// Blocks returns the number of data blocks holding the NDEF message
func (a NDEFAttributes) Blocks() int {
	return (a.Length + BlockSize - 1) / BlockSize
}

// ParseNDEFAttributes decodes and verifies an attribute information block
func ParseNDEFAttributes(block []byte) (NDEFAttributes, error) {
	if len(block) < BlockSize {
		return NDEFAttributes{}, fmt.Errorf("%w: attribute block is %d bytes", ErrNoNDEF, len(block))
	}

	var sum uint16
	for _, b := range block[:attributeSumOffset] {
		sum += uint16(b)
	}
	if sum != binary.BigEndian.Uint16(block[attributeSumOffset:]) {
		return NDEFAttributes{}, fmt.Errorf("%w: attribute checksum mismatch", ErrNoNDEF)
	}
	if block[0]&0xF0 != ndefVersionMajor {
		return NDEFAttributes{}, fmt.Errorf("%w: unsupported version 0x%02X", ErrNoNDEF, block[0])
	}

	return NDEFAttributes{
		Version:   block[0],
		Nbr:       block[1],
		Nbw:       block[2],
		Nmaxb:     binary.BigEndian.Uint16(block[3:5]),
		WriteFlag: block[9],
		RWFlag:    block[10],
		Length:    int(block[11])<<16 | int(block[12])<<8 | int(block[13]),
	}, nil
}

// NDEFAttributeService reads the attribute information block on its own
var NDEFAttributeService = ServiceDescriptor[NDEFAttributes]{
	Name:   "ndef attributes",
	Code:   NDEFService,
	Blocks: 1,
	Shape: func(blocks [][]byte) (NDEFAttributes, error) {
		if len(blocks) < 1 {
			return NDEFAttributes{}, ErrNoNDEF
		}
		return ParseNDEFAttributes(blocks[0])
	},
}

// ReadNDEF reads and parses the NDEF message of a Type 3 Tag. The card
// should have been polled with SystemCodeNDEF.
func (d *Device) ReadNDEF(ctx context.Context, idm IDm) (*ndef.Message, error) {
	attrs, err := ReadService(ctx, d, idm, NDEFAttributeService)
	if err != nil {
		return nil, err
	}
	if attrs.Length == 0 {
		return nil, ErrNoNDEF
	}
	if attrs.Blocks() > maxNDEFBlocks {
		return nil, fmt.Errorf("%w: message needs %d blocks", ErrNoNDEF, attrs.Blocks())
	}
	debugf("ndef: %d bytes in %d blocks", attrs.Length, attrs.Blocks())

	data, err := d.ReadBlocks(ctx, idm, NDEFService, 1, attrs.Blocks())
	if err != nil {
		return nil, err
	}

	msg := &ndef.Message{}
	if _, err := msg.Unmarshal(data[:attrs.Length]); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoNDEF, err)
	}
	return msg, nil
}
