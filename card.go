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
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/ZaparooProject/go-rcs620s/internal/readqueue"
)

// IDm is the 8-byte manufacture ID of a FeliCa card
type IDm [8]byte

// String returns the IDm as upper-case hex
func (id IDm) String() string {
	return strings.ToUpper(hex.EncodeToString(id[:]))
}

// PMm is the 8-byte manufacture parameter of a FeliCa card
type PMm [8]byte

// String returns the PMm as upper-case hex
func (pm PMm) String() string {
	return strings.ToUpper(hex.EncodeToString(pm[:]))
}

// Card is a FeliCa card found by Poll
type Card struct {
	DetectedAt time.Time
	SystemCode uint16
	IDm        IDm
	PMm        PMm
}

// String returns a short description of the card
func (c *Card) String() string {
	return fmt.Sprintf("FeliCa IDm=%s PMm=%s", c.IDm, c.PMm)
}

// maxCardTimeout is the largest value the CommunicateThruEX timeout field holds
const maxCardTimeout = 0xFFFF

// cardEnvelope wraps a FeliCa command in CommunicateThruEX. The reader
// timeout field is in 0.5ms units, little endian.
func cardEnvelope(cmd []byte, timeout time.Duration) []byte {
	units := 2 * timeout.Milliseconds()
	if units > maxCardTimeout {
		units = maxCardTimeout
	}
	payload := make([]byte, 0, 5+len(cmd))
	payload = append(payload, 0xD4, cmdCommunicateThruEX, byte(units), byte(units>>8), byte(len(cmd)+1))
	return append(payload, cmd...)
}

// cardResponseCheck accepts D5 A1 00 LEN DATA where LEN counts itself and
// DATA passes check
func cardResponseCheck(check readqueue.Validator) readqueue.Validator {
	return func(b []byte) bool {
		if len(b) < 4 || b[0] != 0xD5 || b[1] != cmdCommunicateThruEX+1 || b[2] != 0x00 {
			return false
		}
		if len(b) != int(b[3])+3 {
			return false
		}
		return check.Check(b[4:])
	}
}

// cardCommand sends cmd to the card in the field and returns the card's
// reply. A reply rejected by check fails the transaction, so the reader
// is cancelled like any other protocol failure.
func (d *Device) cardCommand(ctx context.Context, cmd []byte, check readqueue.Validator) ([]byte, error) {
	body, err := d.execute(ctx, cardEnvelope(cmd, d.Timeout()), cardResponseCheck(check))
	if err != nil {
		return nil, &CommandError{Op: "card command", Kind: ErrCommandFailed, Err: err}
	}
	return body[4:], nil
}
