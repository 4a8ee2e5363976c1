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
	"time"

	"github.com/ZaparooProject/go-rcs620s/internal/readqueue"
)

const minPollResponseLength = 22

// pollFound matches one FeliCa 212kbps target with an 18-byte POL_RES
func pollFound(b []byte) bool {
	return len(b) >= minPollResponseLength && readqueue.HexPrefix("D54B01011201")(b)
}

var pollCheck = readqueue.AnyOf(pollFound, readqueue.HexPrefix("D54B00"))

// Poll looks for a card answering systemCode.
// It returns nil, nil when no card is in the field.
func (d *Device) Poll(systemCode uint16) (*Card, error) {
	return d.PollContext(context.Background(), systemCode)
}

// PollContext looks for a card answering systemCode. It returns ErrBusy
// without touching the reader while another poll or block read runs.
func (d *Device) PollContext(ctx context.Context, systemCode uint16) (*Card, error) {
	if err := d.acquireBusy(); err != nil {
		return nil, err
	}
	defer d.releaseBusy()

	cmd := []byte{
		0xD4, cmdInListPassiveTarget,
		0x01, // max targets
		0x01, // 212kbps FeliCa
		0x00, // polling request
		byte(systemCode >> 8), byte(systemCode),
		0x00, // no request code
		0x0F, // time slots
	}
	body, err := d.execute(ctx, cmd, pollCheck)
	if err != nil {
		return nil, &CommandError{Op: "poll", Kind: ErrCommandFailed, Err: err}
	}
	if !pollFound(body) {
		return nil, nil
	}

	card := &Card{SystemCode: systemCode, DetectedAt: time.Now()}
	copy(card.IDm[:], body[6:14])
	copy(card.PMm[:], body[14:22])
	debugf("poll: found %s", card)
	return card, nil
}
