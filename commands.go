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

// RC-S620/S command codes
const (
	cmdRFConfiguration     = 0x32
	cmdInListPassiveTarget = 0x4A
	cmdCommunicateThruEX   = 0xA0
)

// FeliCa command codes (JIS X 6319-4)
const (
	feliCaCmdRequestService        = 0x02
	feliCaCmdRequestResponse       = 0x04
	feliCaCmdReadWithoutEncryption = 0x06
)

// System codes for Poll
const (
	// SystemCodeCommon matches any card
	SystemCodeCommon uint16 = 0xFFFF
	// SystemCodeSuica selects the common transit area (Suica, PASMO, ICOCA...)
	SystemCodeSuica uint16 = 0x0003
	// SystemCodeNDEF selects NFC Forum Type 3 Tags
	SystemCodeNDEF uint16 = 0x12FC
)

// initStep is one fixed command of the bring-up sequence
type initStep struct {
	stage string
	cmd   []byte
}

// initSequence configures the RF layer; each step must answer D5 33
var initSequence = []initStep{
	{stage: "open device", cmd: []byte{0xD4, cmdRFConfiguration, 0x02, 0x00, 0x00, 0x00}},
	{stage: "max retries", cmd: []byte{0xD4, cmdRFConfiguration, 0x05, 0x00, 0x00, 0x00}},
	{stage: "additional wait time", cmd: []byte{0xD4, cmdRFConfiguration, 0x81, 0xB7}},
}
