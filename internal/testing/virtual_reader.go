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
	"errors"
	"io"
	"sync"
	"time"

	"github.com/ZaparooProject/go-rcs620s/internal/frame"
)

// ErrReaderClosed is returned by writes after Close
var ErrReaderClosed = errors.New("virtual reader closed")

// Handler produces the response payload (TFI included) for a command payload.
// Returning nil leaves the command unanswered after the ACK.
type Handler func(payload []byte) []byte

// VirtualReader simulates an RC-S620/S at the frame level. It implements the
// byte-stream half of a serial port: host writes are parsed as frames, and
// ACKs and responses are queued for the host to read.
type VirtualReader struct {
	handlers    map[byte]Handler
	dataReady   chan struct{}
	closedCh    chan struct{}
	card        *VirtualCard
	inbound     []byte
	outbound    []byte
	commands    [][]byte
	latency     time.Duration
	readTimeout time.Duration
	chunkSize   int
	writes      int
	cancels     int
	flushes     int
	mu          sync.Mutex
	closeOnce   sync.Once
	closed      bool
	silent      bool
	dropACK     bool
	corruptNext bool
}

// NewVirtualReader creates a simulator with no card in the field
func NewVirtualReader() *VirtualReader {
	return &VirtualReader{
		handlers:    make(map[byte]Handler),
		dataReady:   make(chan struct{}, 1),
		closedCh:    make(chan struct{}),
		readTimeout: 5 * time.Millisecond,
	}
}

// Write accepts host bytes and answers every complete frame
func (v *VirtualReader) Write(data []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return 0, ErrReaderClosed
	}
	v.writes++
	v.inbound = append(v.inbound, data...)
	v.processInbound()
	return len(data), nil
}

// Read returns queued reader bytes. Like a serial port with a read timeout,
// it returns 0, nil when nothing arrives in time and io.EOF once closed.
func (v *VirtualReader) Read(buf []byte) (int, error) {
	for {
		v.mu.Lock()
		if len(v.outbound) > 0 {
			limit := len(buf)
			if v.chunkSize > 0 && v.chunkSize < limit {
				limit = v.chunkSize
			}
			n := copy(buf[:limit], v.outbound)
			v.outbound = v.outbound[n:]
			v.mu.Unlock()
			return n, nil
		}
		closed := v.closed
		v.mu.Unlock()

		if closed {
			return 0, io.EOF
		}

		select {
		case <-v.dataReady:
		case <-v.closedCh:
		case <-time.After(v.readTimeout):
			return 0, nil
		}
	}
}

// Drain is a no-op; writes are delivered synchronously
func (*VirtualReader) Drain() error {
	return nil
}

// Flush discards reader bytes the host has not read yet
func (v *VirtualReader) Flush() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.flushes++
	v.outbound = nil
	return nil
}

// Close stops the simulator; pending and future reads return io.EOF
func (v *VirtualReader) Close() error {
	v.closeOnce.Do(func() {
		v.mu.Lock()
		v.closed = true
		v.mu.Unlock()
		close(v.closedCh)
	})
	return nil
}

// IsClosed reports whether Close has been called
func (v *VirtualReader) IsClosed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed
}

// SetCard places a card in the field; nil removes it
func (v *VirtualReader) SetCard(card *VirtualCard) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.card = card
}

// SetHandler overrides the response for a command code
func (v *VirtualReader) SetHandler(cmd byte, h Handler) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.handlers[cmd] = h
}

// SetResponse makes a command code always answer with response
func (v *VirtualReader) SetResponse(cmd byte, response []byte) {
	v.SetHandler(cmd, func([]byte) []byte { return response })
}

// SetLatency delays responses (not ACKs) by d
func (v *VirtualReader) SetLatency(d time.Duration) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.latency = d
}

// SetChunkSize limits how many bytes a single Read returns
func (v *VirtualReader) SetChunkSize(n int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.chunkSize = n
}

// SetSilent makes the reader ignore commands entirely (no ACK, no response)
func (v *VirtualReader) SetSilent(silent bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.silent = silent
}

// DropNextACK answers the next command without sending its ACK
func (v *VirtualReader) DropNextACK() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.dropACK = true
}

// CorruptNextChecksum flips the data checksum of the next response
func (v *VirtualReader) CorruptNextChecksum() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.corruptNext = true
}

// InjectBytes queues raw bytes for the host, bypassing framing
func (v *VirtualReader) InjectBytes(data []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.push(data)
}

// Commands returns every command payload received, in order
func (v *VirtualReader) Commands() [][]byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([][]byte, len(v.commands))
	copy(out, v.commands)
	return out
}

// CardCommands returns the FeliCa commands carried by CommunicateThruEX frames
func (v *VirtualReader) CardCommands() [][]byte {
	var out [][]byte
	for _, cmd := range v.Commands() {
		if len(cmd) > 5 && cmd[1] == CmdCommunicateThruEX {
			out = append(out, cmd[5:])
		}
	}
	return out
}

// WriteCount returns the number of Write calls
func (v *VirtualReader) WriteCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.writes
}

// CancelCount returns the number of cancel (ACK) frames received from the host
func (v *VirtualReader) CancelCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cancels
}

// FlushCount returns the number of Flush calls
func (v *VirtualReader) FlushCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.flushes
}

// processInbound parses complete frames from the inbound buffer. Caller holds mu.
func (v *VirtualReader) processInbound() {
	for {
		start := bytes.Index(v.inbound, []byte{frame.Preamble, frame.StartCode1, frame.StartCode2})
		if start < 0 {
			v.inbound = nil
			return
		}
		v.inbound = v.inbound[start:]

		if len(v.inbound) >= frame.AckLength && frame.IsAck(v.inbound[:frame.AckLength]) {
			v.cancels++
			v.inbound = v.inbound[frame.AckLength:]
			continue
		}

		payload, n, err := frame.Decode(v.inbound)
		if errors.Is(err, frame.ErrShortFrame) {
			return
		}
		if err != nil {
			// resynchronise on the next preamble
			v.inbound = v.inbound[1:]
			continue
		}
		v.inbound = v.inbound[n:]
		v.commands = append(v.commands, payload)
		v.answer(payload)
	}
}

// answer queues the ACK and response for one command. Caller holds mu.
func (v *VirtualReader) answer(payload []byte) {
	if v.silent || len(payload) < 2 || payload[0] != frame.HostToReader {
		return
	}

	if v.dropACK {
		v.dropACK = false
	} else {
		v.push(frame.AckFrame)
	}

	resp := v.respond(payload)
	if resp == nil {
		return
	}
	frm, err := frame.Encode(resp)
	if err != nil {
		return
	}
	if v.corruptNext {
		v.corruptNext = false
		frm[len(frm)-2] ^= 0xFF
	}

	if v.latency <= 0 {
		v.push(frm)
		return
	}
	time.AfterFunc(v.latency, func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		if !v.closed {
			v.push(frm)
		}
	})
}

// respond picks the response payload for a command. Caller holds mu.
func (v *VirtualReader) respond(payload []byte) []byte {
	cmd := payload[1]
	if h, ok := v.handlers[cmd]; ok {
		return h(payload)
	}

	switch cmd {
	case CmdRFConfiguration:
		return BuildRFConfigurationResponse()
	case CmdInListPassiveTarget:
		if v.card == nil {
			return BuildNoCardResponse()
		}
		return BuildPollResponse(v.card.IDm, v.card.PMm)
	case CmdCommunicateThruEX:
		if v.card == nil || len(payload) < 6 {
			return BuildCommunicateThruEXError(0x01)
		}
		cardResp := v.card.Handle(payload[5:])
		if cardResp == nil {
			return BuildCommunicateThruEXError(0x01)
		}
		return BuildCommunicateThruEXResponse(cardResp)
	default:
		return nil
	}
}

// push queues bytes for the host. Caller holds mu.
func (v *VirtualReader) push(data []byte) {
	v.outbound = append(v.outbound, data...)
	select {
	case v.dataReady <- struct{}{}:
	default:
	}
}
