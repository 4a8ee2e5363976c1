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

// Package polling watches an RC-S620/S for cards arriving and leaving.
package polling

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	rcs620s "github.com/ZaparooProject/go-rcs620s"
	"github.com/puzpuzpuz/xsync/v3"
)

// Monitor handles continuous card monitoring with state machine.
//
// OnCardDetected runs on the polling goroutine with the removal timer
// suspended, so it may read the card with the same device.
type Monitor struct {
	device         *rcs620s.Device
	config         *Config
	OnCardDetected func(ctx context.Context, card *rcs620s.Card) error
	OnCardRemoved  func(card *rcs620s.Card)
	present        *xsync.MapOf[rcs620s.IDm, *rcs620s.Card]
	state          CardState
	timerGen       uint64
	mu             sync.Mutex
	isPaused       atomic.Bool
	pollErrors     atomic.Int64
}

// NewMonitor creates a new card monitor
func NewMonitor(device *rcs620s.Device, config *Config) *Monitor {
	if config == nil {
		config = DefaultConfig()
	}
	return &Monitor{
		device:  device,
		config:  config,
		present: xsync.NewMapOf[rcs620s.IDm, *rcs620s.Card](),
	}
}

// Start polls until ctx is done or the device is closed
func (m *Monitor) Start(ctx context.Context) error {
	if err := m.config.Validate(); err != nil {
		return err
	}
	defer m.stopTimer()

	for {
		if !m.isPaused.Load() {
			if err := m.pollOnce(ctx); err != nil {
				return err
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.config.PollInterval):
		}
	}
}

// Pause stops polling until Resume is called
func (m *Monitor) Pause() {
	m.isPaused.Store(true)
}

// Resume continues polling after Pause
func (m *Monitor) Resume() {
	m.isPaused.Store(false)
}

// IsPaused reports whether polling is paused
func (m *Monitor) IsPaused() bool {
	return m.isPaused.Load()
}

// GetState returns a copy of the current card state
func (m *Monitor) GetState() CardState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsPresent reports whether the card is currently in the field
func (m *Monitor) IsPresent(idm rcs620s.IDm) bool {
	_, ok := m.present.Load(idm)
	return ok
}

// PresentCards returns the cards currently in the field
func (m *Monitor) PresentCards() []*rcs620s.Card {
	cards := make([]*rcs620s.Card, 0, m.present.Size())
	m.present.Range(func(_ rcs620s.IDm, card *rcs620s.Card) bool {
		cards = append(cards, card)
		return true
	})
	return cards
}

// PollErrors returns how many polls have failed
func (m *Monitor) PollErrors() int64 {
	return m.pollErrors.Load()
}

// GetDevice returns the underlying device
func (m *Monitor) GetDevice() *rcs620s.Device {
	return m.device
}

// Close stops removal detection and closes the device
func (m *Monitor) Close() error {
	m.stopTimer()
	if err := m.device.Close(); err != nil {
		return fmt.Errorf("failed to close device: %w", err)
	}
	return nil
}

// pollOnce runs one poll. Only fatal errors are returned; anything else is
// retried on the next tick.
func (m *Monitor) pollOnce(ctx context.Context) error {
	card, err := m.device.PollContext(ctx, m.config.SystemCode)
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, rcs620s.ErrDeviceClosed):
		m.handleCardRemoval()
		return err
	case errors.Is(err, rcs620s.ErrBusy):
		return nil
	default:
		m.pollErrors.Add(1)
		rcs620s.Debugf("poll failed: %v", err)
		if !rcs620s.IsRetryable(err) {
			m.handleCardRemoval()
		}
		return nil
	}

	if card != nil {
		m.processCard(ctx, card)
	}
	return nil
}

// processCard updates the state for a sighting and runs OnCardDetected
// once per presence window
func (m *Monitor) processCard(ctx context.Context, card *rcs620s.Card) {
	m.mu.Lock()
	var replaced *rcs620s.Card
	if m.state.Present && m.state.Card.IDm != card.IDm {
		replaced = m.removeLocked()
	}

	if m.state.Present {
		if m.state.CanStartRemovalTimer() {
			m.state.TransitionToDetected(m.config.CardRemovalTimeout, m.expireFunc())
		}
		m.mu.Unlock()
		return
	}

	m.state.Present = true
	m.state.Card = card
	m.present.Store(card.IDm, card)
	m.state.TransitionToReading()
	m.mu.Unlock()

	m.notifyRemoved(replaced)
	if m.OnCardDetected != nil {
		if err := m.OnCardDetected(ctx, card); err != nil {
			rcs620s.Debugf("card %s handler: %v", card.IDm, err)
		}
	}

	m.mu.Lock()
	if m.state.Present && m.state.Card.IDm == card.IDm {
		m.state.LastSeenTime = time.Now()
		m.state.TransitionToPostReadGrace(m.config.CardRemovalTimeout, m.expireFunc())
	}
	m.mu.Unlock()
}

// handleCardRemoval reports the current card as removed
func (m *Monitor) handleCardRemoval() {
	m.mu.Lock()
	card := m.removeLocked()
	m.mu.Unlock()
	m.notifyRemoved(card)
}

// removeLocked resets the state and returns the card that was present.
// Caller holds mu.
func (m *Monitor) removeLocked() *rcs620s.Card {
	if !m.state.Present {
		return nil
	}
	card := m.state.Card
	m.timerGen++
	m.state.TransitionToIdle()
	m.present.Delete(card.IDm)
	return card
}

func (m *Monitor) notifyRemoved(card *rcs620s.Card) {
	if card != nil && m.OnCardRemoved != nil {
		m.OnCardRemoved(card)
	}
}

// expireFunc returns a removal timer callback that does nothing once a
// newer timer has been armed. Caller holds mu.
func (m *Monitor) expireFunc() func() {
	m.timerGen++
	gen := m.timerGen
	return func() {
		m.mu.Lock()
		var card *rcs620s.Card
		if gen == m.timerGen {
			card = m.removeLocked()
		}
		m.mu.Unlock()
		m.notifyRemoved(card)
	}
}

func (m *Monitor) stopTimer() {
	m.mu.Lock()
	defer m.mu.Unlock()
	stopTimer(m.state.RemovalTimer)
	m.state.RemovalTimer = nil
}
