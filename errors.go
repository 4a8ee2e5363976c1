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
	"errors"
	"fmt"

	"github.com/ZaparooProject/go-rcs620s/internal/readqueue"
)

// I/O-level errors
var (
	ErrTimeout        = readqueue.ErrTimeout
	ErrTransportRead  = errors.New("transport read failed")
	ErrTransportWrite = errors.New("transport write failed")
	ErrTransportClose = errors.New("transport close failed")
	ErrDeviceClosed   = errors.New("device closed")
	ErrNotReady       = errors.New("device not ready")
)

// Framing-level errors
var (
	ErrNoACK            = errors.New("no ACK")
	ErrNoValidMessage   = errors.New("no valid message")
	ErrResponseChecksum = errors.New("response checksum error")
	ErrResponseTooLong  = errors.New("response too long")
)

// Application-level errors
var (
	ErrCheckFailed          = readqueue.ErrCheckFailed
	ErrCommandFailed        = errors.New("card command failed")
	ErrRequestServiceFailed = errors.New("request service failed")
	ErrReadBlockFailed      = errors.New("read block failed")
	ErrInitFailed           = errors.New("device initialization failed")
	ErrNoNDEF               = errors.New("no NDEF data on card")
	ErrInvalidParameter     = errors.New("invalid parameter")
)

// ErrBusy is returned when a poll or multi-block read is already in progress.
// It is raised before the transport is touched.
var ErrBusy = errors.New("device busy")

// ErrorType classifies errors for callers deciding whether to try again
type ErrorType int

const (
	// ErrorTypePermanent errors will not go away by repeating the operation
	ErrorTypePermanent ErrorType = iota
	// ErrorTypeTransient errors may succeed on the next attempt
	ErrorTypeTransient
	// ErrorTypeTimeout errors are transient errors caused by a missing reply
	ErrorTypeTimeout
)

// TransportError wraps a failure of the serial collaborator
type TransportError struct {
	Err       error
	Op        string
	Port      string
	Type      ErrorType
	Retryable bool
}

// Error implements the error interface
func (e *TransportError) Error() string {
	if e.Port == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Port, e.Err)
}

// Unwrap returns the underlying error
func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError creates a new transport error
func NewTransportError(op, port string, err error, errType ErrorType) *TransportError {
	return &TransportError{
		Op:        op,
		Port:      port,
		Err:       err,
		Type:      errType,
		Retryable: errType != ErrorTypePermanent,
	}
}

// NewTransportWriteError creates a transport error for a short or failed write
func NewTransportWriteError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportWrite, ErrorTypeTransient)
}

// CommandError is a protocol failure tagged with the stage that failed.
// Both Kind and Err participate in errors.Is and errors.As.
type CommandError struct {
	Kind  error
	Err   error
	Op    string
	Stage string
}

// Error implements the error interface
func (e *CommandError) Error() string {
	msg := e.Op
	if e.Stage != "" {
		msg += " " + e.Stage
	}
	msg += ": " + e.Kind.Error()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the stage tag and the underlying cause
func (e *CommandError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// BlockError reports which block of a multi-block read failed
type BlockError struct {
	Err   error
	Block int
}

// Error implements the error interface
func (e *BlockError) Error() string {
	return fmt.Sprintf("block %d: %v", e.Block, e.Err)
}

// Unwrap returns the underlying error
func (e *BlockError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether repeating the operation may succeed.
// Nothing in this package retries on its own; this is for callers such as
// a polling loop.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}

	return GetErrorType(err) != ErrorTypePermanent
}

// GetErrorType returns the classification of err
func GetErrorType(err error) ErrorType {
	if err == nil {
		return ErrorTypePermanent
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Type
	}

	switch {
	case errors.Is(err, ErrTimeout):
		return ErrorTypeTimeout
	case errors.Is(err, ErrResponseTooLong),
		errors.Is(err, ErrDeviceClosed),
		errors.Is(err, ErrInvalidParameter):
		return ErrorTypePermanent
	case errors.Is(err, ErrBusy),
		errors.Is(err, ErrNoACK),
		errors.Is(err, ErrNoValidMessage),
		errors.Is(err, ErrResponseChecksum),
		errors.Is(err, ErrTransportRead),
		errors.Is(err, ErrTransportWrite):
		return ErrorTypeTransient
	default:
		return ErrorTypePermanent
	}
}
