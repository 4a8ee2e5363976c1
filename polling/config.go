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

package polling

import (
	"fmt"
	"time"

	rcs620s "github.com/ZaparooProject/go-rcs620s"
)

// Config controls how often the monitor polls and when a card counts as gone
type Config struct {
	// PollInterval is the pause between polls
	PollInterval time.Duration
	// CardRemovalTimeout is how long a card may go unseen before it is
	// reported removed
	CardRemovalTimeout time.Duration
	// SystemCode is passed to every poll
	SystemCode uint16
}

// DefaultConfig returns default polling configuration
func DefaultConfig() *Config {
	return &Config{
		PollInterval:       250 * time.Millisecond,
		CardRemovalTimeout: 1 * time.Second,
		SystemCode:         rcs620s.SystemCodeCommon,
	}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: poll interval must be positive", rcs620s.ErrInvalidParameter)
	}
	if c.CardRemovalTimeout < c.PollInterval {
		return fmt.Errorf("%w: removal timeout %v is shorter than poll interval %v",
			rcs620s.ErrInvalidParameter, c.CardRemovalTimeout, c.PollInterval)
	}
	return nil
}
