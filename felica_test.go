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

	testutil "github.com/ZaparooProject/go-rcs620s/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const historyService ServiceCode = 0x090F

func blockOf(b byte) []byte {
	return bytes.Repeat([]byte{b}, BlockSize)
}

func TestServiceCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []byte{0x0F, 0x09}, ServiceCode(0x090F).Bytes())
	assert.Equal(t, []byte{0x0B, 0x00}, NDEFService.Bytes())
	assert.Equal(t, "090F", ServiceCode(0x090F).String())
}

func TestDevice_RequestService(t *testing.T) {
	t.Parallel()
	device, mock := newTestDevice(t)
	card := testutil.NewVirtualCard(nil, nil)
	card.SetService(0x090F, blockOf(0x00))
	mock.SetCard(card)

	idm := testIDm()
	require.NoError(t, device.RequestService(context.Background(), idm, historyService))

	want := append(append([]byte{0x02}, idm[:]...), 0x01, 0x0F, 0x09)
	assert.Equal(t, [][]byte{want}, mock.CardCommands())
}

func TestDevice_RequestService_Missing(t *testing.T) {
	t.Parallel()
	device, mock := newTestDevice(t)
	mock.SetCard(testutil.NewVirtualCard(nil, nil))

	err := device.RequestService(context.Background(), testIDm(), historyService)
	require.ErrorIs(t, err, ErrRequestServiceFailed)
	require.ErrorIs(t, err, ErrCheckFailed)

	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, "090F", cmdErr.Stage)
}

func TestDevice_RequestService_WrongIDm(t *testing.T) {
	t.Parallel()
	device, mock := newTestDevice(t)
	mock.SetHandler(testutil.CmdCommunicateThruEX, func([]byte) []byte {
		other := []byte{0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01}
		return testutil.BuildCommunicateThruEXResponse(
			testutil.BuildRequestServiceResponse(other, [2]byte{0x00, 0x00}))
	})

	err := device.RequestService(context.Background(), testIDm(), historyService)
	require.ErrorIs(t, err, ErrRequestServiceFailed)
}

func TestDevice_RequestResponse(t *testing.T) {
	t.Parallel()
	device, mock := newTestDevice(t)
	card := testutil.NewVirtualCard(nil, nil)
	card.Mode = 0x02
	mock.SetCard(card)

	mode, err := device.RequestResponse(context.Background(), testIDm())
	require.NoError(t, err)
	assert.Equal(t, byte(0x02), mode)
}

func TestDevice_ReadBlock(t *testing.T) {
	t.Parallel()
	device, mock := newTestDevice(t)
	card := testutil.NewVirtualCard(nil, nil)
	card.SetService(0x090F, blockOf(0x11), blockOf(0x22))
	mock.SetCard(card)

	idm := testIDm()
	data, err := device.ReadBlock(context.Background(), idm, historyService, 1)
	require.NoError(t, err)
	assert.Equal(t, blockOf(0x22), data)

	want := append(append([]byte{0x06}, idm[:]...), 0x01, 0x0F, 0x09, 0x01, 0x80, 0x01)
	assert.Equal(t, [][]byte{want}, mock.CardCommands())
}

func TestDevice_ReadBlock_StatusError(t *testing.T) {
	t.Parallel()
	device, mock := newTestDevice(t)
	card := testutil.NewVirtualCard(nil, nil)
	card.SetService(0x090F, blockOf(0x11))
	mock.SetCard(card)

	_, err := device.ReadBlock(context.Background(), testIDm(), historyService, 5)
	require.ErrorIs(t, err, ErrReadBlockFailed)
	assert.Equal(t, 1, mock.CancelCount())
}

func TestDevice_ReadBlocks(t *testing.T) {
	t.Parallel()
	device, mock := newTestDevice(t)
	card := testutil.NewVirtualCard(nil, nil)
	x, y, z := blockOf(0xAA), blockOf(0xBB), blockOf(0xCC)
	card.SetService(0x090F, x, y, z)
	mock.SetCard(card)

	data, err := device.ReadBlocks(context.Background(), testIDm(), historyService, 0, 3)
	require.NoError(t, err)

	assert.Equal(t, append(append(append([]byte{}, x...), y...), z...), data)
	assert.Equal(t, []int{0, 1, 2}, card.BlockReads())
	assert.False(t, device.IsBusy())
}

func TestDevice_ReadBlocks_FailureNamesBlock(t *testing.T) {
	t.Parallel()
	device, mock := newTestDevice(t)
	card := testutil.NewVirtualCard(nil, nil)
	card.SetService(0x090F, blockOf(0xAA), blockOf(0xBB))
	mock.SetCard(card)

	data, err := device.ReadBlocks(context.Background(), testIDm(), historyService, 0, 4)
	require.Error(t, err)
	assert.Nil(t, data)

	var blockErr *BlockError
	require.ErrorAs(t, err, &blockErr)
	assert.Equal(t, 2, blockErr.Block)
	require.ErrorIs(t, err, ErrReadBlockFailed)

	// block 3 is never attempted
	assert.Equal(t, []int{0, 1}, card.BlockReads())
	assert.Len(t, mock.CardCommands(), 3)
	assert.False(t, device.IsBusy())
}

func TestDevice_ReadBlocks_InvalidRange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		start, count int
	}{
		{name: "zero count", start: 0, count: 0},
		{name: "negative start", start: -1, count: 1},
		{name: "past block 255", start: 250, count: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			device, mock := newTestDevice(t)

			_, err := device.ReadBlocks(context.Background(), testIDm(), historyService, tt.start, tt.count)
			require.ErrorIs(t, err, ErrInvalidParameter)
			assert.Equal(t, 0, mock.WriteCount())
		})
	}
}
