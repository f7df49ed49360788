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
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/yyang13/pathctl/stats"
)

var (
	ErrDuplicatedDevice = errors.New("duplicated device DPID")
)

// Registry holds the live device of every connected switch. Devices enter on
// connect and leave on disconnect.
type Registry struct {
	mutex sync.RWMutex
	// Key is DPID
	devices map[uint64]*Device
}

func NewRegistry() *Registry {
	return &Registry{
		devices: make(map[uint64]*Device),
	}
}

// Register replaces a closed device with the same DPID, but refuses to
// replace a live one.
func (r *Registry) Register(d *Device) error {
	// Write lock
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if old, ok := r.devices[d.ID()]; ok && !old.IsClosed() {
		return errors.Wrapf(ErrDuplicatedDevice, "DPID %v", d.ID())
	}
	r.devices[d.ID()] = d

	return nil
}

// Unregister returns the removed device, or nil if there was none.
func (r *Registry) Unregister(id uint64) *Device {
	// Write lock
	r.mutex.Lock()
	defer r.mutex.Unlock()

	d, ok := r.devices[id]
	if !ok {
		return nil
	}
	delete(r.devices, id)

	return d
}

// Device may return nil if a device whose ID is id does not exist
func (r *Registry) Device(id uint64) *Device {
	// Read lock
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.devices[id]
}

// Devices returns the registered devices ordered by DPID.
func (r *Registry) Devices() []*Device {
	// Read lock
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result := make([]*Device, 0, len(r.devices))
	for _, d := range r.devices {
		result = append(result, d)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID() < result[j].ID() })

	return result
}

func (r *Registry) Sessions() []stats.Session {
	devices := r.Devices()
	result := make([]stats.Session, len(devices))
	for i, d := range devices {
		result[i] = d
	}

	return result
}
