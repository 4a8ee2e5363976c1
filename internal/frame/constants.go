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

// Package frame provides frame construction and protocol constants for RC-S620/S communication
package frame

// Frame direction constants - these indicate the direction of data flow
const (
	HostToReader = 0xD4 // Commands from host to reader
	ReaderToHost = 0xD5 // Responses from reader to host
)

// Frame markers and control bytes
const (
	Preamble       = 0x00 // Frame preamble byte
	StartCode1     = 0x00 // Start code byte 1
	StartCode2     = 0xFF // Start code byte 2
	Postamble      = 0x00 // Frame postamble byte
	ExtendedMarker = 0xFF // LEN and LCS are both 0xFF in an extended frame
)

// Fixed section lengths on the wire
const (
	AckLength       = 6
	HeaderLength    = 5 // preamble + start code + LEN + LCS
	ExtLengthLength = 3 // LEN_HI + LEN_LO + LCS of an extended frame
	TrailerLength   = 2 // DCS + postamble
)

// Frame size limits
const (
	MaxNormalLength   = 255    // Largest payload carried by a normal frame
	MaxExtendedLength = 0xFFFF // Largest payload the extended length field holds
	MaxResponseLength = 265    // Largest response body the reader may declare
)

// AckFrame acknowledges a received frame. The reader treats the same bytes
// sent by the host as a cancel request.
var AckFrame = []byte{0x00, 0x00, 0xFF, 0x00, 0xFF, 0x00}

// CancelFrame aborts the command in progress and returns the reader to idle.
var CancelFrame = AckFrame
