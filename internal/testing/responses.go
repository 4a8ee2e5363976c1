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

// Package testing provides test utilities including a wire-level RC-S620/S
// simulator and a virtual FeliCa card.
package testing

// BuildRFConfigurationResponse creates the reply to every RFConfiguration command
func BuildRFConfigurationResponse() []byte {
	return []byte{0xD5, 0x33}
}

// BuildPollResponse creates an InListPassiveTarget reply with one FeliCa target
func BuildPollResponse(idm, pmm []byte) []byte {
	// Command + 1 target found, target 1, POL_RES length 0x12, response code 0x01
	response := []byte{0xD5, 0x4B, 0x01, 0x01, 0x12, 0x01}
	response = append(response, idm...)
	response = append(response, pmm...)
	return response
}

// BuildNoCardResponse creates an InListPassiveTarget reply with no targets
func BuildNoCardResponse() []byte {
	return []byte{0xD5, 0x4B, 0x00}
}

// BuildCommunicateThruEXResponse wraps a card reply in the CommunicateThruEX envelope
func BuildCommunicateThruEXResponse(cardResponse []byte) []byte {
	response := []byte{0xD5, 0xA1, 0x00, byte(len(cardResponse) + 1)}
	return append(response, cardResponse...)
}

// BuildCommunicateThruEXError creates a CommunicateThruEX reply with a failing status
func BuildCommunicateThruEXError(status byte) []byte {
	return []byte{0xD5, 0xA1, status}
}

// BuildRequestServiceResponse creates a FeliCa Request Service reply for one service
func BuildRequestServiceResponse(idm []byte, keyVersion [2]byte) []byte {
	response := []byte{0x03}
	response = append(response, idm...)
	return append(response, 0x01, keyVersion[0], keyVersion[1])
}

// BuildReadResponse creates a FeliCa Read Without Encryption reply for one block
func BuildReadResponse(idm, block []byte) []byte {
	response := []byte{0x07}
	response = append(response, idm...)
	response = append(response, 0x00, 0x00, 0x01)
	return append(response, block...)
}

// BuildReadErrorResponse creates a FeliCa Read Without Encryption reply carrying status flags
func BuildReadErrorResponse(idm []byte, status1, status2 byte) []byte {
	response := []byte{0x07}
	response = append(response, idm...)
	return append(response, status1, status2)
}

// Common card identifiers for testing
var (
	// TestIDm is a sample FeliCa IDm
	TestIDm = []byte{0x01, 0x2E, 0x4C, 0xD3, 0x5B, 0x11, 0x2A, 0x07}

	// TestPMm is a sample FeliCa PMm
	TestPMm = []byte{0x03, 0x01, 0x4B, 0x02, 0x4F, 0x49, 0x93, 0xFF}
)

// Reader command bytes for reference
const (
	CmdRFConfiguration     = 0x32
	CmdInListPassiveTarget = 0x4A
	CmdCommunicateThruEX   = 0xA0
)

// FeliCa card command bytes for reference
const (
	CardCmdRequestResponse        = 0x04
	CardCmdRequestService         = 0x02
	CardCmdReadWithoutEncryption  = 0x06
	CardRespRequestResponse       = 0x05
	CardRespRequestService        = 0x03
	CardRespReadWithoutEncryption = 0x07
)
