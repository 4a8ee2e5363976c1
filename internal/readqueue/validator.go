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

package readqueue

import (
	"bytes"
	"encoding/hex"
	"strings"
)

// Validator decides whether a fully assembled read is acceptable.
// A nil Validator accepts everything.
type Validator func(data []byte) bool

// ExactHex accepts data whose hex encoding equals s (case-insensitive).
func ExactHex(s string) Validator {
	want := strings.ToUpper(s)
	return func(data []byte) bool {
		return strings.ToUpper(hex.EncodeToString(data)) == want
	}
}

// HexPrefix accepts data whose hex encoding starts with s (case-insensitive).
func HexPrefix(s string) Validator {
	want := strings.ToUpper(s)
	return func(data []byte) bool {
		return strings.HasPrefix(strings.ToUpper(hex.EncodeToString(data)), want)
	}
}

// Prefix accepts data starting with p.
func Prefix(p []byte) Validator {
	return func(data []byte) bool {
		return bytes.HasPrefix(data, p)
	}
}

// AnyOf accepts data accepted by at least one of vs.
func AnyOf(vs ...Validator) Validator {
	return func(data []byte) bool {
		for _, v := range vs {
			if v.Check(data) {
				return true
			}
		}
		return false
	}
}

// Check runs the validator, treating nil as accept-all.
func (v Validator) Check(data []byte) bool {
	return v == nil || v(data)
}
