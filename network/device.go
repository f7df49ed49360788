/*
 * Cherry - An OpenFlow Controller
 *
 * Copyright (C) 2015 Samjung Data Service, Inc. All rights reserved.
 * Kitae Kim <superkkt@sds.co.kr>
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation; either version 2 of the License, or
 * any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License along
 * with this program; if not, write to the Free Software Foundation, Inc.,
 * 51 Franklin Street, Fifth Floor, Boston, MA 02110-1301 USA.
 */

package network

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/yyang13/pathctl/pipeline"
	"github.com/yyang13/pathctl/stats"
)

var (
	ErrClosedDevice = errors.New("already closed device")
)

// Device is the controller-side handle of one connected switch. Writes to a
// device are serialized, so messages reach the switch in the order they were
// sent.
type Device struct {
	mutex   sync.RWMutex
	id      uint64
	session *session
	closed  bool
}

func newDevice(id uint64, s *session) *Device {
	if s == nil {
		panic("Session is nil")
	}

	return &Device{
		id:      id,
		session: s,
	}
}

func (r *Device) String() string {
	// Read lock
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return fmt.Sprintf("Device DPID=%v, Connected=%v", r.id, !r.closed)
}

func (r *Device) ID() uint64 {
	return r.id
}

func (r *Device) SendRule(rule pipeline.Rule) error {
	// Write lock
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.closed {
		return ErrClosedDevice
	}

	return r.session.writeRule(rule)
}

func (r *Device) SendGroup(g pipeline.Group) error {
	// Write lock
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.closed {
		return ErrClosedDevice
	}

	return r.session.writeGroup(g)
}

func (r *Device) SendPacketOut(p PacketOut) error {
	// Write lock
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.closed {
		return ErrClosedDevice
	}

	return r.session.writePacketOut(p)
}

// RequestCounters makes Device a stats.Session.
func (r *Device) RequestCounters(kind stats.Kind) error {
	// Write lock
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.closed {
		return ErrClosedDevice
	}

	return r.session.writeCounterRequest(kind)
}

func (r *Device) IsClosed() bool {
	// Read lock
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.closed
}

func (r *Device) Close() {
	// Write lock
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.closed = true
}
