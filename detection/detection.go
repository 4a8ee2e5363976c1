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

// Package detection finds serial ports that may have an RC-S620/S attached.
package detection

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	rcs620s "github.com/ZaparooProject/go-rcs620s"
	"github.com/ZaparooProject/go-rcs620s/transport/uart"
	"go.bug.st/serial/enumerator"
)

// ErrNoDevices is returned when no candidate port is left after filtering
var ErrNoDevices = errors.New("no serial devices found")

// Port is one serial port reported by the operating system
type Port struct {
	Path         string
	VIDPID       string
	Product      string
	SerialNumber string
	IsUSB        bool
}

// Options controls which ports are returned
type Options struct {
	// Blocklist holds VID:PID pairs never to return
	Blocklist []string
	// IgnorePaths holds device paths never to return
	IgnorePaths []string
	// IncludeNonUSB keeps on-board UARTs such as /dev/ttyS0
	IncludeNonUSB bool
}

// DefaultOptions returns options that skip non-USB ports and the default
// blocklist
func DefaultOptions() Options {
	return Options{Blocklist: DefaultBlocklist()}
}

// DefaultBlocklist returns VID:PID pairs of devices that should not be
// probed. Format: VID:PID in hexadecimal (case-insensitive).
func DefaultBlocklist() []string {
	return []string{
		"2341:0043", // Arduino Uno, resets when the port opens
		"2341:0001", // Arduino Uno (early revision)
	}
}

// knownBridges are USB serial bridges commonly wired to an RC-S620/S.
// Ports behind them are listed first.
var knownBridges = map[string]int{
	"0403:6001": 0, // FTDI FT232R (Switch Science conversion board)
	"0403:6015": 0, // FTDI FT231X
	"10C4:EA60": 1, // Silicon Labs CP210x
	"1A86:7523": 2, // WCH CH340
	"067B:2303": 2, // Prolific PL2303
}

// listPorts is replaced in tests
var listPorts = enumerator.GetDetailedPortsList

// DetectPorts lists candidate ports, known USB serial bridges first
func DetectPorts(opts Options) ([]Port, error) {
	details, err := listPorts()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	ports := make([]Port, 0, len(details))
	for _, d := range details {
		port := Port{Path: d.Name, Product: d.Product, SerialNumber: d.SerialNumber, IsUSB: d.IsUSB}
		if d.IsUSB {
			port.VIDPID = strings.ToUpper(d.VID + ":" + d.PID)
		}

		switch {
		case !port.IsUSB && !opts.IncludeNonUSB:
			continue
		case port.IsUSB && IsBlocked(port.VIDPID, opts.Blocklist):
			rcs620s.Debugf("detection: skipping blocked device %s at %s", port.VIDPID, port.Path)
			continue
		case IsPathIgnored(port.Path, opts.IgnorePaths):
			continue
		}
		ports = append(ports, port)
	}

	if len(ports) == 0 {
		return nil, ErrNoDevices
	}

	sort.SliceStable(ports, func(i, j int) bool {
		return rank(ports[i]) < rank(ports[j])
	})
	return ports, nil
}

func rank(p Port) int {
	if r, ok := knownBridges[p.VIDPID]; ok {
		return r
	}
	if p.IsUSB {
		return len(knownBridges)
	}
	return len(knownBridges) + 1
}

// Probe opens path and runs the reader init sequence. It returns nil when
// an RC-S620/S answered.
func Probe(ctx context.Context, path string, opts ...uart.Option) error {
	transport, err := uart.New(path, opts...)
	if err != nil {
		return err
	}

	device, err := rcs620s.New(transport)
	if err != nil {
		_ = transport.Close()
		return err
	}
	defer func() {
		_ = device.Close()
	}()

	return device.InitContext(ctx)
}

// FindReader probes candidate ports in order and returns the first path
// where a reader answered
func FindReader(ctx context.Context, opts Options) (string, error) {
	ports, err := DetectPorts(opts)
	if err != nil {
		return "", err
	}

	var errs []error
	for _, p := range ports {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if err := Probe(ctx, p.Path); err != nil {
			rcs620s.Debugf("detection: %s: %v", p.Path, err)
			errs = append(errs, fmt.Errorf("%s: %w", p.Path, err))
			continue
		}
		return p.Path, nil
	}
	return "", fmt.Errorf("%w: %w", ErrNoDevices, errors.Join(errs...))
}

// IsBlocked checks if a USB device is in the blocklist.
func IsBlocked(vidpid string, blocklist []string) bool {
	vidpid = strings.ToUpper(strings.TrimSpace(vidpid))
	for _, blocked := range blocklist {
		if vidpid == strings.ToUpper(strings.TrimSpace(blocked)) {
			return true
		}
	}
	return false
}

// IsPathIgnored checks if a device path should be ignored. Paths are
// compared cleaned and case-insensitively.
func IsPathIgnored(devicePath string, ignorePaths []string) bool {
	if devicePath == "" {
		return false
	}
	device := normalizedPath(devicePath)
	for _, ignorePath := range ignorePaths {
		if ignorePath != "" && normalizedPath(ignorePath) == device {
			return true
		}
	}
	return false
}

func normalizedPath(path string) string {
	return strings.ToLower(filepath.Clean(path))
}
