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
	"sync"
	"sync/atomic"
	"testing"
	"time"

	testutil "github.com/ZaparooProject/go-rcs620s/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTimeout = 200 * time.Millisecond

// newTestDevice creates a device on a simulated reader and closes it when
// the test ends
func newTestDevice(t *testing.T, opts ...Option) (*Device, *MockTransport) {
	t.Helper()
	mock := NewMockTransport()
	opts = append([]Option{WithTimeout(testTimeout)}, opts...)
	device, err := New(mock, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = device.Close() })
	return device, mock
}

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		transport Transport
		name      string
		opts      []Option
		wantErr   error
	}{
		{name: "Valid_MockTransport", transport: NewMockTransport()},
		{name: "Nil_Transport", transport: nil, wantErr: ErrInvalidParameter},
		{name: "Zero_Timeout", transport: NewMockTransport(), opts: []Option{WithTimeout(0)}, wantErr: ErrInvalidParameter},
		{
			name:      "Zero_CloseTimeout",
			transport: NewMockTransport(),
			opts:      []Option{WithCloseTimeout(0)},
			wantErr:   ErrInvalidParameter,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			device, err := New(tt.transport, tt.opts...)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, device)
				return
			}

			require.NoError(t, err)
			t.Cleanup(func() { _ = device.Close() })
			assert.Equal(t, tt.transport, device.Transport())
			assert.True(t, device.IsReady())
			assert.False(t, device.IsBusy())
			assert.Equal(t, DefaultDeviceConfig().Timeout, device.Timeout())
		})
	}
}

func TestNew_ReadyCallback(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	device, _ := newTestDevice(t, WithReadyCallback(func() { calls.Add(1) }))

	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, device.IsReady())
}

func TestDevice_SetTimeout(t *testing.T) {
	t.Parallel()
	device, _ := newTestDevice(t)

	require.NoError(t, device.SetTimeout(3*time.Second))
	assert.Equal(t, 3*time.Second, device.Timeout())

	require.ErrorIs(t, device.SetTimeout(-time.Second), ErrInvalidParameter)
	assert.Equal(t, 3*time.Second, device.Timeout())
}

func TestDevice_SetTimeoutDuringTransactions(t *testing.T) {
	t.Parallel()
	device, mock := newTestDevice(t)
	mock.SetCard(testutil.NewVirtualCard(nil, nil))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= 50; i++ {
			assert.NoError(t, device.SetTimeout(testTimeout+time.Duration(i)*time.Millisecond))
		}
	}()
	for range 5 {
		_, err := device.Poll(SystemCodeCommon)
		require.NoError(t, err)
	}
	wg.Wait()

	assert.Equal(t, testTimeout+50*time.Millisecond, device.Timeout())
}

func TestDevice_InitContext(t *testing.T) {
	t.Parallel()

	device, mock := newTestDevice(t)
	require.NoError(t, device.InitContext(context.Background()))

	assert.Equal(t, [][]byte{
		{0xD4, 0x32, 0x02, 0x00, 0x00, 0x00},
		{0xD4, 0x32, 0x05, 0x00, 0x00, 0x00},
		{0xD4, 0x32, 0x81, 0xB7},
	}, mock.Commands())
	assert.Equal(t, 0, mock.CancelCount())
}

func TestDevice_InitContext_StageFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		stage    string
		item     byte
		commands int
	}{
		{name: "open device", stage: "open device", item: 0x02, commands: 1},
		{name: "max retries", stage: "max retries", item: 0x05, commands: 2},
		{name: "additional wait time", stage: "additional wait time", item: 0x81, commands: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			device, mock := newTestDevice(t)
			mock.SetHandler(testutil.CmdRFConfiguration, func(p []byte) []byte {
				if p[2] == tt.item {
					return []byte{0xD5, 0x7F}
				}
				return testutil.BuildRFConfigurationResponse()
			})

			err := device.Init()
			require.ErrorIs(t, err, ErrInitFailed)
			require.ErrorIs(t, err, ErrCheckFailed)

			var cmdErr *CommandError
			require.ErrorAs(t, err, &cmdErr)
			assert.Equal(t, tt.stage, cmdErr.Stage)
			assert.Len(t, mock.Commands(), tt.commands)
			assert.Equal(t, 1, mock.CancelCount())
		})
	}
}

func TestDevice_InitContext_NoReply(t *testing.T) {
	t.Parallel()

	device, mock := newTestDevice(t, WithTimeout(30*time.Millisecond))
	mock.SetSilent(true)

	err := device.Init()
	require.ErrorIs(t, err, ErrInitFailed)
	require.ErrorIs(t, err, ErrNoACK)
	require.ErrorIs(t, err, ErrTimeout)
	assert.True(t, IsRetryable(err))
}

func TestDevice_ContextCancellation(t *testing.T) {
	t.Parallel()

	mock := NewBlockingMockTransport()
	device, err := New(mock, WithTimeout(5*time.Second))
	require.NoError(t, err)
	t.Cleanup(func() { _ = device.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- device.InitContext(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("InitContext did not respond to context cancellation")
	}

	// the command frame followed by a cancel frame
	writes := mock.Writes()
	require.Len(t, writes, 2)
	assert.Equal(t, []byte{0x00, 0x00, 0xFF, 0x00, 0xFF, 0x00}, writes[1])
}

func TestDevice_ConcurrentTransactions(t *testing.T) {
	t.Parallel()

	device, mock := newTestDevice(t)

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- device.Init()
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Len(t, mock.Commands(), workers*len(initSequence))
	assert.Equal(t, 0, mock.CancelCount())
}

func TestDevice_Close(t *testing.T) {
	t.Parallel()

	device, mock := newTestDevice(t)

	require.NoError(t, device.Close())
	require.NoError(t, device.Close())

	assert.False(t, device.IsReady())
	assert.True(t, mock.IsClosed())
	assert.False(t, mock.IsConnected())

	err := device.Init()
	require.ErrorIs(t, err, ErrDeviceClosed)
	assert.Empty(t, mock.Commands())
}

func TestDevice_CloseTimeout(t *testing.T) {
	t.Parallel()

	mock := NewBlockingMockTransport()
	mock.IgnoreClose = true
	device, err := New(mock, WithCloseTimeout(50*time.Millisecond))
	require.NoError(t, err)
	// release the stuck receive loop once the test is over
	t.Cleanup(func() { mock.Push([]byte{0x00}) })
	require.Eventually(t, func() bool { return mock.ReadCalls() > 0 }, time.Second, time.Millisecond,
		"receive loop never blocked in Read")

	start := time.Now()
	require.NoError(t, device.Close())
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
}

func TestDevice_TransportFailureStopsReady(t *testing.T) {
	t.Parallel()

	mock := NewBlockingMockTransport()
	device, err := New(mock)
	require.NoError(t, err)
	t.Cleanup(func() { _ = device.Close() })

	require.NoError(t, mock.Close())
	require.Eventually(t, func() bool { return !device.IsReady() }, time.Second, 5*time.Millisecond)

	require.ErrorIs(t, device.Init(), ErrNotReady)
}
