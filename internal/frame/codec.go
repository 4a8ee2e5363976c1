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

package frame

import (
	"bytes"
	"errors"
	"fmt"
)

// Codec errors
var (
	ErrBadPreamble   = errors.New("frame preamble mismatch")
	ErrBadLengthSum  = errors.New("frame length checksum mismatch")
	ErrBadDataSum    = errors.New("frame data checksum mismatch")
	ErrBadPostamble  = errors.New("frame postamble mismatch")
	ErrShortFrame    = errors.New("frame truncated")
	ErrPayloadTooBig = errors.New("payload exceeds extended frame capacity")
)

var preamble = []byte{Preamble, StartCode1, StartCode2}

// Header is the decoded fixed part of an incoming frame.
type Header struct {
	// Length is the declared payload length. It is zero for an extended
	// header until the extended length field has been decoded.
	Length   int
	Extended bool
}

// Encode builds a frame for payload, choosing the extended form when the
// payload does not fit a single length byte.
func Encode(payload []byte) ([]byte, error) {
	if len(payload) > MaxNormalLength {
		return EncodeExtended(payload)
	}
	return EncodeNormal(payload), nil
}

// EncodeNormal builds 00 00 FF LEN LCS PAYLOAD DCS 00.
// The payload must be at most MaxNormalLength bytes.
func EncodeNormal(payload []byte) []byte {
	n := byte(len(payload))
	frm := make([]byte, 0, HeaderLength+len(payload)+TrailerLength)
	frm = append(frm, preamble...)
	frm = append(frm, n, -n)
	frm = append(frm, payload...)
	return append(frm, Checksum(payload), Postamble)
}

// EncodeExtended builds 00 00 FF FF FF LEN_HI LEN_LO LCS PAYLOAD DCS 00.
//
// The extended layout follows the reader manual but has seen far less
// hardware time than the normal form.
func EncodeExtended(payload []byte) ([]byte, error) {
	if len(payload) > MaxExtendedLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooBig, len(payload))
	}
	lenField := []byte{byte(len(payload) >> 8), byte(len(payload))}
	frm := make([]byte, 0, HeaderLength+ExtLengthLength+len(payload)+TrailerLength)
	frm = append(frm, preamble...)
	frm = append(frm, ExtendedMarker, ExtendedMarker)
	frm = append(frm, lenField...)
	frm = append(frm, Checksum(lenField))
	frm = append(frm, payload...)
	return append(frm, Checksum(payload), Postamble), nil
}

// IsAck reports whether b is exactly the ACK frame.
func IsAck(b []byte) bool {
	return bytes.Equal(b, AckFrame)
}

// HasPreamble reports whether b starts with 00 00 FF.
func HasPreamble(b []byte) bool {
	return bytes.HasPrefix(b, preamble)
}

// DecodeHeader decodes the first HeaderLength bytes of a response frame.
// For a normal frame the length checksum is verified here; an extended
// frame needs DecodeExtendedLength on the next ExtLengthLength bytes.
func DecodeHeader(h []byte) (Header, error) {
	if len(h) < HeaderLength {
		return Header{}, ErrShortFrame
	}
	if !HasPreamble(h) {
		return Header{}, ErrBadPreamble
	}
	if h[3] == ExtendedMarker && h[4] == ExtendedMarker {
		return Header{Extended: true}, nil
	}
	if !ValidChecksum(h[3:HeaderLength]) {
		return Header{}, ErrBadLengthSum
	}
	return Header{Length: int(h[3])}, nil
}

// DecodeExtendedLength decodes LEN_HI LEN_LO LCS.
func DecodeExtendedLength(b []byte) (int, error) {
	if len(b) < ExtLengthLength {
		return 0, ErrShortFrame
	}
	if !ValidChecksum(b[:ExtLengthLength]) {
		return 0, ErrBadLengthSum
	}
	return int(b[0])<<8 | int(b[1]), nil
}

// VerifyTrailer checks that trailer holds the data checksum of body
// followed by the postamble.
func VerifyTrailer(body, trailer []byte) error {
	if len(trailer) < TrailerLength {
		return ErrShortFrame
	}
	if trailer[0] != Checksum(body) {
		return ErrBadDataSum
	}
	if trailer[1] != Postamble {
		return ErrBadPostamble
	}
	return nil
}

// Decode parses one complete frame and returns its payload and the number
// of bytes consumed.
func Decode(frm []byte) (payload []byte, n int, err error) {
	hdr, err := DecodeHeader(frm)
	if err != nil {
		return nil, 0, err
	}
	off := HeaderLength
	length := hdr.Length
	if hdr.Extended {
		if length, err = DecodeExtendedLength(frm[off:]); err != nil {
			return nil, 0, err
		}
		off += ExtLengthLength
	}
	end := off + length
	if len(frm) < end+TrailerLength {
		return nil, 0, fmt.Errorf("%w: have %d bytes, need %d", ErrShortFrame, len(frm), end+TrailerLength)
	}
	if err := VerifyTrailer(frm[off:end], frm[end:end+TrailerLength]); err != nil {
		return nil, 0, err
	}
	payload = make([]byte, length)
	copy(payload, frm[off:end])
	return payload, end + TrailerLength, nil
}
