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
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/ZaparooProject/go-rcs620s/internal/frame"
	"github.com/ZaparooProject/go-rcs620s/internal/readqueue"
	testutil "github.com/ZaparooProject/go-rcs620s/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var rfOpen = []byte{0xD4, 0x32, 0x02, 0x00, 0x00, 0x00}

// ackOnly makes the reader acknowledge RFConfiguration without answering
func ackOnly(mock *MockTransport) {
	mock.SetHandler(testutil.CmdRFConfiguration, func([]byte) []byte { return nil })
}

// injectLater pushes raw bytes once the command has been acknowledged
func injectLater(mock *MockTransport, data []byte) {
	go func() {
		time.Sleep(20 * time.Millisecond)
		mock.InjectBytes(data)
	}()
}

func TestExecute_Success(t *testing.T) {
	t.Parallel()
	device, mock := newTestDevice(t)

	body, err := device.execute(context.Background(), rfOpen, readqueue.ExactHex("D533"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xD5, 0x33}, body)

	assert.Equal(t, [][]byte{rfOpen}, mock.Commands())
	assert.Equal(t, 1, mock.WriteCount())
	assert.Equal(t, 0, mock.CancelCount())
	assert.Positive(t, mock.FlushCount())
}

func TestExecute_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		setup   func(mock *MockTransport)
		check   readqueue.Validator
		wantErr []error
		name    string
	}{
		{
			name:    "no ACK",
			setup:   func(mock *MockTransport) { mock.DropNextACK() },
			wantErr: []error{ErrNoACK, ErrCheckFailed},
		},
		{
			name:    "silent reader",
			setup:   func(mock *MockTransport) { mock.SetSilent(true) },
			wantErr: []error{ErrNoACK, ErrTimeout},
		},
		{
			name: "ACK without response",
			setup: func(mock *MockTransport) {
				ackOnly(mock)
			},
			wantErr: []error{ErrNoValidMessage, ErrTimeout},
		},
		{
			name: "bad preamble",
			setup: func(mock *MockTransport) {
				ackOnly(mock)
				injectLater(mock, []byte{0x01, 0x02, 0x03, 0x04, 0x05})
			},
			wantErr: []error{ErrNoValidMessage, ErrCheckFailed},
		},
		{
			name: "bad length checksum",
			setup: func(mock *MockTransport) {
				ackOnly(mock)
				injectLater(mock, []byte{0x00, 0x00, 0xFF, 0x05, 0x00})
			},
			wantErr: []error{ErrResponseChecksum},
		},
		{
			name: "bad extended length checksum",
			setup: func(mock *MockTransport) {
				ackOnly(mock)
				injectLater(mock, []byte{0x00, 0x00, 0xFF, 0xFF, 0xFF, 0x01, 0x2C, 0x00})
			},
			wantErr: []error{ErrResponseChecksum},
		},
		{
			name:    "bad data checksum",
			setup:   func(mock *MockTransport) { mock.CorruptNextChecksum() },
			wantErr: []error{ErrResponseChecksum},
		},
		{
			name: "response too long",
			setup: func(mock *MockTransport) {
				mock.SetResponse(testutil.CmdRFConfiguration, bytes.Repeat([]byte{0xD5}, 300))
			},
			wantErr: []error{ErrResponseTooLong},
		},
		{
			name: "check failed",
			setup: func(mock *MockTransport) {
				mock.SetResponse(testutil.CmdRFConfiguration, []byte{0xD5, 0x00})
			},
			wantErr: []error{ErrCheckFailed},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			device, mock := newTestDevice(t, WithTimeout(80*time.Millisecond))
			tt.setup(mock)

			check := tt.check
			if check == nil {
				check = readqueue.ExactHex("D533")
			}

			body, err := device.execute(context.Background(), rfOpen, check)
			require.Error(t, err)
			assert.Nil(t, body)
			for _, want := range tt.wantErr {
				require.ErrorIs(t, err, want)
			}
			assert.Equal(t, 1, mock.CancelCount(), "every failure sends one cancel frame")
		})
	}
}

func TestExecute_ExtendedFrame(t *testing.T) {
	t.Parallel()
	device, mock := newTestDevice(t)

	payload := append([]byte{0xD5, 0x33}, bytes.Repeat([]byte{0x5A}, 258)...)
	mock.SetResponse(testutil.CmdRFConfiguration, payload)

	body, err := device.execute(context.Background(), rfOpen, readqueue.HexPrefix("D533"))
	require.NoError(t, err)
	assert.Equal(t, payload, body)
	assert.Len(t, body, 260)
}

func TestExecute_ResponseLengthLimit(t *testing.T) {
	t.Parallel()
	tests := []struct {
		wantErr error
		name    string
		size    int
	}{
		{name: "265 bytes accepted", size: 265},
		{name: "266 bytes rejected", size: 266, wantErr: ErrResponseTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			device, mock := newTestDevice(t)

			payload := append([]byte{0xD5, 0x33}, bytes.Repeat([]byte{0xA5}, tt.size-2)...)
			mock.SetResponse(testutil.CmdRFConfiguration, payload)

			body, err := device.execute(context.Background(), rfOpen, readqueue.HexPrefix("D533"))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, body)
				assert.Equal(t, 1, mock.CancelCount())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, payload, body)
			assert.Equal(t, 0, mock.CancelCount())
		})
	}
}

func TestExecute_RequestTooBig(t *testing.T) {
	t.Parallel()
	device, mock := newTestDevice(t)

	cmd := append([]byte{0xD4, 0x32}, make([]byte, 0xFFFF)...)
	body, err := device.execute(context.Background(), cmd, readqueue.ExactHex("D533"))
	require.ErrorIs(t, err, ErrInvalidParameter)
	require.ErrorIs(t, err, frame.ErrPayloadTooBig)
	assert.Nil(t, body)

	assert.Equal(t, 0, mock.WriteCount(), "nothing reaches the reader")
	assert.Equal(t, 0, mock.CancelCount())
}

func TestExecute_ExtendedRequest(t *testing.T) {
	t.Parallel()
	device, mock := newTestDevice(t)

	cmd := append([]byte{0xD4, 0x32}, bytes.Repeat([]byte{0x00}, 298)...)
	_, err := device.execute(context.Background(), cmd, readqueue.ExactHex("D533"))
	require.NoError(t, err)

	require.Len(t, mock.Commands(), 1)
	assert.Equal(t, cmd, mock.Commands()[0])
}

func TestExecute_ChunkedDelivery(t *testing.T) {
	t.Parallel()
	device, mock := newTestDevice(t)
	mock.SetChunkSize(1)

	require.NoError(t, device.Init())
	assert.Len(t, mock.Commands(), 3)
}

func TestExecute_SlowResponse(t *testing.T) {
	t.Parallel()
	device, mock := newTestDevice(t)
	mock.SetLatency(50 * time.Millisecond)

	require.NoError(t, device.Init())
}

func TestExecute_RecoversAfterFailure(t *testing.T) {
	t.Parallel()
	device, mock := newTestDevice(t, WithTimeout(80*time.Millisecond))

	mock.CorruptNextChecksum()
	_, err := device.execute(context.Background(), rfOpen, readqueue.ExactHex("D533"))
	require.ErrorIs(t, err, ErrResponseChecksum)

	// stray bytes from the broken exchange must not leak into the next one
	mock.InjectBytes([]byte{0x00, 0x00, 0xFF, 0x02})
	time.Sleep(30 * time.Millisecond)
	require.NoError(t, device.Init())
}

func TestExecute_WritesEncodedFrame(t *testing.T) {
	t.Parallel()

	mock := NewBlockingMockTransport()
	device, err := New(mock, WithTimeout(20*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { _ = device.Close() })

	_, err = device.execute(context.Background(), rfOpen, nil)
	require.ErrorIs(t, err, ErrNoACK)

	writes := mock.Writes()
	require.Len(t, writes, 2)
	assert.Equal(t, frame.EncodeNormal(rfOpen), writes[0])
	assert.Equal(t, frame.CancelFrame, writes[1])
}
