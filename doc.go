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

/*
Package rcs620s provides a pure Go driver for the Sony RC-S620/S FeliCa
reader/writer module.

The RC-S620/S speaks a framed command/response protocol over a serial line
at 115200 baud. Every command is acknowledged with an ACK frame before the
response frame follows. This package handles the framing, the ACK/response
sequencing and cancellation, and exposes the FeliCa commands needed to find
a card and read its services without encryption.

Features:
  - Normal and extended frame encoding with checksum verification
  - Card polling by system code
  - Request Service, Request Response and Read Without Encryption
  - Typed service reads (transit card balance, NFC Forum Type 3 Tag NDEF)
  - Structured debug logging with log/slog
  - A presence monitor in the polling subpackage

Basic Usage:

	import (
	    "github.com/ZaparooProject/go-rcs620s"
	    "github.com/ZaparooProject/go-rcs620s/transport/uart"
	)

	transport, err := uart.New("/dev/ttyUSB0")
	if err != nil {
	    log.Fatal(err)
	}

	device, err := rcs620s.New(transport, rcs620s.WithTimeout(500*time.Millisecond))
	if err != nil {
	    log.Fatal(err)
	}
	defer device.Close()

	if err := device.Init(); err != nil {
	    log.Fatal(err)
	}

	card, err := device.Poll(rcs620s.SystemCodeSuica)
	if err != nil {
	    log.Fatal(err)
	}
	if card != nil {
	    balance, err := device.ReadBalance(ctx, card.IDm)
	    if err != nil {
	        log.Fatal(err)
	    }
	    fmt.Printf("%s balance: %d\n", card.IDm, balance)
	}

Custom Services:

Any service readable without encryption can be described with a
ServiceDescriptor and read with ReadService:

	history := rcs620s.ServiceDescriptor[[][]byte]{
	    Name:   "history",
	    Code:   0x090F,
	    Blocks: 4,
	    Shape:  func(b [][]byte) ([][]byte, error) { return b, nil },
	}
	entries, err := rcs620s.ReadService(ctx, device, card.IDm, history)

Error Handling:

Protocol failures carry the stage that failed and the underlying cause:

	if errors.Is(err, rcs620s.ErrNoACK) {
	    // reader did not acknowledge the command
	}
	var blockErr *rcs620s.BlockError
	if errors.As(err, &blockErr) {
	    fmt.Println("failed at block", blockErr.Block)
	}

Nothing in this package retries. IsRetryable tells a caller whether
repeating an operation may help.

Thread Safety:

Transactions are serialised by the Device, so methods may be called from
several goroutines. Poll and the multi-block reads share a busy flag and
fail fast with ErrBusy while the other is running.
*/
package rcs620s
