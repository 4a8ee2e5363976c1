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

package testing

import (
	"bytes"
	"encoding/binary"
	"sync"
)

const blockSize = 16

// VirtualCard represents a simulated FeliCa card for testing
type VirtualCard struct {
	services map[uint16][][]byte
	IDm      []byte
	PMm      []byte
	reads    []int
	mu       sync.Mutex
	Mode     byte
}

// NewVirtualCard creates a virtual FeliCa card. Nil identifiers fall back to
// TestIDm and TestPMm.
func NewVirtualCard(idm, pmm []byte) *VirtualCard {
	if idm == nil {
		idm = TestIDm
	}
	if pmm == nil {
		pmm = TestPMm
	}
	return &VirtualCard{
		IDm:      idm,
		PMm:      pmm,
		services: make(map[uint16][][]byte),
	}
}

// SetService installs a service and its blocks. Short blocks are zero padded.
func (c *VirtualCard) SetService(code uint16, blocks ...[]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := make([][]byte, len(blocks))
	for i, b := range blocks {
		stored[i] = make([]byte, blockSize)
		copy(stored[i], b)
	}
	c.services[code] = stored
}

// BlockReads returns the block numbers read so far, in order
func (c *VirtualCard) BlockReads() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.reads...)
}

// Handle answers one FeliCa command. It returns nil when the card would stay
// silent (unknown command or a different IDm).
func (c *VirtualCard) Handle(cmd []byte) []byte {
	if len(cmd) < 9 || !bytes.Equal(cmd[1:9], c.IDm) {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch cmd[0] {
	case CardCmdRequestResponse:
		resp := append([]byte{CardRespRequestResponse}, c.IDm...)
		return append(resp, c.Mode)
	case CardCmdRequestService:
		return c.requestService(cmd[9:])
	case CardCmdReadWithoutEncryption:
		return c.read(cmd[9:])
	default:
		return nil
	}
}

// requestService handles: n, service codes (LE)
func (c *VirtualCard) requestService(params []byte) []byte {
	if len(params) < 1 || len(params) < 1+int(params[0])*2 {
		return nil
	}
	n := int(params[0])
	resp := append([]byte{CardRespRequestService}, c.IDm...)
	resp = append(resp, byte(n))
	for i := 0; i < n; i++ {
		code := binary.LittleEndian.Uint16(params[1+i*2:])
		if _, ok := c.services[code]; ok {
			resp = append(resp, 0x00, 0x00)
		} else {
			resp = append(resp, 0xFF, 0xFF)
		}
	}
	return resp
}

// read handles: 1, service code (LE), 1, 2-byte block list element
func (c *VirtualCard) read(params []byte) []byte {
	if len(params) < 6 || params[0] != 1 || params[3] != 1 || params[4]&0x80 == 0 {
		return BuildReadErrorResponse(c.IDm, 0xFF, 0xA1)
	}
	code := binary.LittleEndian.Uint16(params[1:3])
	block := int(params[5])

	blocks, ok := c.services[code]
	if !ok {
		return BuildReadErrorResponse(c.IDm, 0x01, 0xA6)
	}
	if block >= len(blocks) {
		return BuildReadErrorResponse(c.IDm, 0x01, 0xA8)
	}
	c.reads = append(c.reads, block)
	return BuildReadResponse(c.IDm, blocks[block])
}
