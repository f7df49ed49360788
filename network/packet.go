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

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/pkg/errors"

	"github.com/yyang13/pathctl/graph"
	"github.com/yyang13/pathctl/pipeline"
)

// ErrMalformedEvent marks an event that lacks required fields. Such events
// are logged and dropped.
var ErrMalformedEvent = errors.New("malformed event")

// NoBuffer is the buffer ID of a packet the switch did not keep.
const NoBuffer uint32 = 0xffffffff

// PacketIn is a packet punted to the controller. Src and Dst may be left zero
// when Payload carries the Ethernet frame.
type PacketIn struct {
	DPID   uint64
	InPort uint32
	Src    graph.MAC
	Dst    graph.MAC
	// Buffered is set when the switch kept the packet under BufferID.
	Buffered bool
	BufferID uint32
	Payload  []byte
}

// PacketOut sends a punted packet back into the data plane of a switch.
type PacketOut struct {
	DPID     uint64
	InPort   uint32
	BufferID uint32
	Actions  []pipeline.Action
	// Payload is empty when BufferID refers to a buffered packet.
	Payload []byte
}

func (r PacketOut) String() string {
	return fmt.Sprintf("PacketOut DPID=%v, in_port=%v, buffer=%#x, actions=%v, len=%v", r.DPID, r.InPort, r.BufferID, r.Actions, len(r.Payload))
}

// release returns the packet-out that applies actions to the punted packet.
// It is false when the switch kept nothing and there is no payload to resend.
func (r PacketIn) release(actions []pipeline.Action) (PacketOut, bool) {
	out := PacketOut{
		DPID:     r.DPID,
		InPort:   r.InPort,
		BufferID: NoBuffer,
		Actions:  actions,
	}
	switch {
	case r.Buffered:
		out.BufferID = r.BufferID
	case len(r.Payload) > 0:
		out.Payload = r.Payload
	default:
		return PacketOut{}, false
	}

	return out, true
}

func getEthernet(packet []byte) (*layers.Ethernet, error) {
	p := gopacket.NewPacket(packet, layers.LayerTypeEthernet, gopacket.DecodeOptions{Lazy: true, NoCopy: true})
	eth, ok := p.Layer(layers.LayerTypeEthernet).(*layers.Ethernet)
	if !ok {
		if e := p.ErrorLayer(); e != nil {
			return nil, e.Error()
		}
		return nil, errors.New("no Ethernet header")
	}

	return eth, nil
}

// resolve fills in the addresses from the payload and checks the event.
func (r *PacketIn) resolve() error {
	if r.DPID == 0 {
		return errors.Wrap(ErrMalformedEvent, "missing DPID")
	}
	if r.InPort == graph.PortNone || r.InPort > pipeline.PortMax {
		return errors.Wrapf(ErrMalformedEvent, "invalid ingress port %v", r.InPort)
	}

	if r.Src.IsZero() || r.Dst.IsZero() {
		if len(r.Payload) == 0 {
			return errors.Wrap(ErrMalformedEvent, "no addresses and no payload")
		}
		eth, err := getEthernet(r.Payload)
		if err != nil {
			return errors.Wrapf(ErrMalformedEvent, "undecodable payload: %v", err)
		}
		src, ok := graph.MACFrom(eth.SrcMAC)
		if !ok {
			return errors.Wrap(ErrMalformedEvent, "bad source address")
		}
		dst, ok := graph.MACFrom(eth.DstMAC)
		if !ok {
			return errors.Wrap(ErrMalformedEvent, "bad destination address")
		}
		r.Src, r.Dst = src, dst
	}
	if r.Src.IsZero() {
		return errors.Wrap(ErrMalformedEvent, "zero source address")
	}
	if r.Src.IsGroup() {
		return errors.Wrapf(ErrMalformedEvent, "group source address %v", r.Src)
	}

	return nil
}
