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
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"

	console "github.com/phsym/console-slog"
)

var (
	debugEnabled atomic.Bool
	logger       atomic.Pointer[slog.Logger]
)

func init() {
	logger.Store(NewConsoleLogger(os.Stderr))
}

// NewConsoleLogger returns a human-readable logger writing to w
func NewConsoleLogger(w io.Writer) *slog.Logger {
	return slog.New(console.NewHandler(w, &console.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// SetDebugEnabled turns protocol debug output on or off
func SetDebugEnabled(enabled bool) {
	debugEnabled.Store(enabled)
}

// DebugEnabled reports whether debug output is on
func DebugEnabled() bool {
	return debugEnabled.Load()
}

// SetLogger replaces the logger used for debug output. Nil restores the
// console logger on stderr.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = NewConsoleLogger(os.Stderr)
	}
	logger.Store(l)
}

// Logger returns the logger used for debug output
func Logger() *slog.Logger {
	return logger.Load()
}

// Debugf logs a formatted message when debug output is on. It is shared
// with the transport and polling packages.
func Debugf(format string, args ...any) {
	if !debugEnabled.Load() {
		return
	}
	logger.Load().Debug(fmt.Sprintf(format, args...))
}

// Debugln logs its arguments when debug output is on
func Debugln(args ...any) {
	if !debugEnabled.Load() {
		return
	}
	logger.Load().Debug(fmt.Sprint(args...))
}

func debugf(format string, args ...any) {
	Debugf(format, args...)
}

func debugln(args ...any) {
	Debugln(args...)
}
