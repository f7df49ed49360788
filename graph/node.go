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

package graph

import (
	"fmt"
	"net"

	"github.com/pkg/errors"
)

type Kind uint8

const (
	KindSwitch Kind = iota + 1
	KindEndpoint
)

func (r Kind) String() string {
	switch r {
	case KindSwitch:
		return "switch"
	case KindEndpoint:
		return "endpoint"
	default:
		return fmt.Sprintf("kind(%d)", uint8(r))
	}
}

// MAC is a comparable link-layer address. The zero value means "any" when it
// is used in a match.
type MAC [6]byte

func ParseMAC(s string) (MAC, error) {
	hw, err := net.ParseMAC(s)
	if err != nil {
		return MAC{}, err
	}

	v, ok := MACFrom(hw)
	if !ok {
		return MAC{}, errors.Errorf("not an EUI-48 address: %v", s)
	}

	return v, nil
}

// MustParseMAC panics if s is not a valid EUI-48 address.
func MustParseMAC(s string) MAC {
	v, err := ParseMAC(s)
	if err != nil {
		panic(err)
	}

	return v
}

func MACFrom(hw net.HardwareAddr) (MAC, bool) {
	var v MAC
	if len(hw) != len(v) {
		return v, false
	}
	copy(v[:], hw)

	return v, true
}

func (r MAC) HardwareAddr() net.HardwareAddr {
	hw := make(net.HardwareAddr, len(r))
	copy(hw, r[:])

	return hw
}

func (r MAC) IsZero() bool {
	return r == MAC{}
}

// Suffix returns the low-order octet of the address. Hosts in an emulated
// topology are numbered through it (00:00:00:00:00:03 is host 3).
func (r MAC) Suffix() uint8 {
	return r[len(r)-1]
}

// IsGroup reports whether the I/G bit is set. Group addresses, broadcast
// included, never identify an endpoint.
func (r MAC) IsGroup() bool {
	return r[0]&1 != 0
}

func (r MAC) String() string {
	return r.HardwareAddr().String()
}

// NodeID identifies a vertex of the topology graph. Two IDs are the same node
// if and only if they are equal.
type NodeID struct {
	Kind Kind
	// DPID is set for switches.
	DPID uint64
	// MAC is set for endpoints.
	MAC MAC
}

func Switch(dpid uint64) NodeID {
	return NodeID{Kind: KindSwitch, DPID: dpid}
}

func Endpoint(mac MAC) NodeID {
	return NodeID{Kind: KindEndpoint, MAC: mac}
}

func (r NodeID) IsSwitch() bool {
	return r.Kind == KindSwitch
}

func (r NodeID) IsEndpoint() bool {
	return r.Kind == KindEndpoint
}

func (r NodeID) String() string {
	switch r.Kind {
	case KindSwitch:
		return fmt.Sprintf("s%v", r.DPID)
	case KindEndpoint:
		return r.MAC.String()
	default:
		return "invalid"
	}
}
