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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	rcs620s "github.com/ZaparooProject/go-rcs620s"
	"github.com/ZaparooProject/go-rcs620s/detection"
	"github.com/ZaparooProject/go-rcs620s/polling"
	"github.com/ZaparooProject/go-rcs620s/transport/uart"
)

type config struct {
	devicePath   *string
	systemCode   *string
	baud         *int
	timeout      *time.Duration
	pollInterval *time.Duration
	wait         *time.Duration
	debug        *bool
	ndef         *bool
	watch        *bool
}

func parseFlags() *config {
	cfg := &config{
		devicePath: flag.String("device", "",
			"Serial device path (e.g., /dev/ttyUSB0 or COM3). Leave empty for auto-detection."),
		systemCode: flag.String("system-code", "0003", "System code to poll for, in hex"),
		baud:       flag.Int("baud", uart.DefaultBaudRate, "Serial line speed"),
		timeout:    flag.Duration("timeout", time.Second, "Timeout for each reader response"),
		pollInterval: flag.Duration("interval", 500*time.Millisecond,
			"Polling interval for card detection"),
		wait:  flag.Duration("wait", 0, "Give up if no card arrives within this time (0 waits forever)"),
		debug: flag.Bool("debug", false, "Enable debug output"),
		ndef:  flag.Bool("ndef", false, "Read the NDEF message of a Type 3 Tag instead of a balance"),
		watch: flag.Bool("watch", false, "Keep reading cards until interrupted"),
	}
	flag.Parse()

	// Enable debug output if --debug flag is set
	if *cfg.debug {
		rcs620s.SetDebugEnabled(true)
	}

	return cfg
}

func parseSystemCode(s string) (uint16, error) {
	code, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"), 16, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid system code %q: %w", s, err)
	}
	return uint16(code), nil
}

// resolveDevicePath returns the flag value, a detected reader, or the
// platform default, in that order
func resolveDevicePath(ctx context.Context, cfg *config) string {
	if *cfg.devicePath != "" {
		return *cfg.devicePath
	}

	_, _ = fmt.Println("Auto-detecting RC-S620/S...")
	path, err := detection.FindReader(ctx, detection.DefaultOptions())
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Auto-detection failed (%v), trying %s\n", err, uart.DefaultDevicePath)
		return uart.DefaultDevicePath
	}
	return path
}

func openDevice(ctx context.Context, cfg *config, path string) (*rcs620s.Device, error) {
	transport, err := uart.New(path, uart.WithBaudRate(*cfg.baud))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	ready := make(chan struct{})
	device, err := rcs620s.New(transport,
		rcs620s.WithTimeout(*cfg.timeout),
		rcs620s.WithReadyCallback(func() { close(ready) }),
	)
	if err != nil {
		_ = transport.Close()
		return nil, err
	}

	select {
	case <-ready:
	case <-ctx.Done():
		_ = device.Close()
		return nil, ctx.Err()
	}

	if err := device.InitContext(ctx); err != nil {
		_ = device.Close()
		return nil, fmt.Errorf("failed to initialize reader: %w", err)
	}
	_, _ = fmt.Printf("Opened RC-S620/S on %s\n", path)
	return device, nil
}

func readCard(ctx context.Context, device *rcs620s.Device, card *rcs620s.Card, readNDEF bool) error {
	_, _ = fmt.Printf("Card: %s\n", card)

	if readNDEF {
		msg, err := device.ReadNDEF(ctx, card.IDm)
		if err != nil {
			return fmt.Errorf("failed to read NDEF: %w", err)
		}
		_, _ = fmt.Println(msg.String())
		return nil
	}

	balance, err := device.ReadBalance(ctx, card.IDm)
	if err != nil {
		return fmt.Errorf("failed to read balance: %w", err)
	}
	_, _ = fmt.Printf("Balance: %d\n", balance)
	return nil
}

func run(ctx context.Context, cfg *config) error {
	systemCode, err := parseSystemCode(*cfg.systemCode)
	if err != nil {
		return err
	}
	if *cfg.ndef {
		systemCode = rcs620s.SystemCodeNDEF
	}

	device, err := openDevice(ctx, cfg, resolveDevicePath(ctx, cfg))
	if err != nil {
		return err
	}

	interval := *cfg.pollInterval
	pollConfig := polling.DefaultConfig()
	pollConfig.PollInterval = interval
	pollConfig.CardRemovalTimeout = max(pollConfig.CardRemovalTimeout, 2*interval)
	pollConfig.SystemCode = systemCode

	monitor := polling.NewMonitor(device, pollConfig)
	defer func() { _ = monitor.Close() }()

	if *cfg.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *cfg.wait)
		defer cancel()
	}
	ctx, stop := context.WithCancelCause(ctx)
	defer stop(nil)

	errDone := errors.New("card read")
	monitor.OnCardDetected = func(ctx context.Context, card *rcs620s.Card) error {
		err := readCard(ctx, device, card, *cfg.ndef)
		if !*cfg.watch {
			if err != nil {
				stop(err)
			} else {
				stop(errDone)
			}
		}
		return err
	}
	monitor.OnCardRemoved = func(card *rcs620s.Card) {
		_, _ = fmt.Printf("Card %s removed\n", card.IDm)
	}

	_, _ = fmt.Printf("Waiting for card (system code %04X, poll interval %s)...\n", systemCode, interval)
	err = monitor.Start(ctx)

	cause := context.Cause(ctx)
	switch {
	case errors.Is(cause, errDone):
		return nil
	case errors.Is(cause, context.DeadlineExceeded):
		return fmt.Errorf("no card detected within %s", *cfg.wait)
	case cause != nil && !errors.Is(cause, context.Canceled):
		return cause
	case errors.Is(err, context.Canceled):
		return nil
	default:
		return err
	}
}

func main() {
	cfg := parseFlags()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}
