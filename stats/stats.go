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

package stats

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/yyang13/pathctl/graph"
)

type Kind int

const (
	KindPort Kind = iota
	KindFlow
)

func (r Kind) String() string {
	switch r {
	case KindPort:
		return "port"
	case KindFlow:
		return "flow"
	default:
		return fmt.Sprintf("kind(%d)", int(r))
	}
}

func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "port":
		return KindPort, nil
	case "flow":
		return KindFlow, nil
	default:
		return 0, errors.Errorf("unknown counter kind: %v", s)
	}
}

type PortCounter struct {
	PortNo    uint32
	RxPackets uint64
	TxPackets uint64
	RxBytes   uint64
	TxBytes   uint64
}

type FlowCounter struct {
	TableID  uint8
	Priority uint16
	EthDst   graph.MAC
	OutPort  uint32
	Packets  uint64
	Bytes    uint64
}

// Reply is a decoded counter reply from one switch.
type Reply struct {
	DPID  uint64
	Kind  Kind
	Ports []PortCounter
	Flows []FlowCounter
}

func (r Reply) validate() error {
	if r.DPID == 0 {
		return errors.New("missing DPID")
	}

	switch r.Kind {
	case KindPort:
		if len(r.Flows) > 0 {
			return errors.New("flow counters in a port reply")
		}
	case KindFlow:
		if len(r.Ports) > 0 {
			return errors.New("port counters in a flow reply")
		}
	default:
		return errors.Errorf("unknown counter kind %v", r.Kind)
	}

	return nil
}

// Report is a reply as seen by the observers.
type Report struct {
	Reply
	Received time.Time
	// RTT is zero when the reply did not match an outstanding request.
	RTT time.Duration
}

type Sink interface {
	Report(Report)
}

type SinkFunc func(Report)

func (r SinkFunc) Report(v Report) {
	r(v)
}
