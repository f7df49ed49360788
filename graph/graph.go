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
	"sync"

	"github.com/pkg/errors"
	"github.com/superkkt/go-logging"
)

var (
	logger = logging.MustGetLogger("graph")
)

var (
	ErrUnknownNode = errors.New("unknown node")
	ErrInvalidLink = errors.New("invalid link")
)

// PortNone is carried by endpoint-to-switch edges. OpenFlow never numbers a
// physical port zero.
const PortNone uint32 = 0

// Edge is a directed adjacency. Port is the egress port on From.
type Edge struct {
	From NodeID
	To   NodeID
	Port uint32
}

func (r Edge) String() string {
	return fmt.Sprintf("%v -> %v (port=%v)", r.From, r.To, r.Port)
}

// Neighbor is the far end of an outgoing edge.
type Neighbor struct {
	Node NodeID
	Port uint32
}

type vertex struct {
	id NodeID
	// Outgoing edges in insertion order. Path tie-breaks depend on this order.
	adj []Neighbor
}

func (r *vertex) neighbor(n NodeID) (int, bool) {
	for i, v := range r.adj {
		if v.Node == n {
			return i, true
		}
	}

	return -1, false
}

// setEdge inserts an edge toward n or updates its port. It reports whether
// anything changed.
func (r *vertex) setEdge(n NodeID, port uint32) bool {
	i, ok := r.neighbor(n)
	if !ok {
		r.adj = append(r.adj, Neighbor{Node: n, Port: port})
		return true
	}
	if r.adj[i].Port == port {
		return false
	}
	r.adj[i].Port = port

	return true
}

func (r *vertex) removeEdge(n NodeID) {
	i, ok := r.neighbor(n)
	if !ok {
		return
	}
	r.adj = append(r.adj[:i], r.adj[i+1:]...)
}

// Graph is the directed topology of switches and endpoints. All mutations are
// serialized by its mutex; readers get copies.
type Graph struct {
	mutex sync.RWMutex
	nodes map[NodeID]*vertex
	// Node insertion order, so that snapshots are stable.
	order []NodeID
}

func New() *Graph {
	return &Graph{
		nodes: make(map[NodeID]*vertex),
	}
}

func (r *Graph) addNode(id NodeID) (*vertex, bool) {
	if v, ok := r.nodes[id]; ok {
		return v, false
	}

	v := &vertex{id: id}
	r.nodes[id] = v
	r.order = append(r.order, id)

	return v, true
}

// AddSwitch is a no-op if the switch already exists. It reports whether a new
// node was created.
func (r *Graph) AddSwitch(dpid uint64) bool {
	// Write lock
	r.mutex.Lock()
	defer r.mutex.Unlock()

	_, added := r.addNode(Switch(dpid))
	if added {
		logger.Debugf("switch added: DPID=%v", dpid)
	}

	return added
}

// AddLink stores both directed edges of a switch-to-switch link, each with its
// own egress port. Missing switches are created first.
func (r *Graph) AddLink(a uint64, aPort uint32, b uint64, bPort uint32) error {
	if a == b {
		return errors.Wrapf(ErrInvalidLink, "self link on DPID %v", a)
	}
	if aPort == PortNone || bPort == PortNone {
		return errors.Wrapf(ErrInvalidLink, "zero port: %v/%v - %v/%v", a, aPort, b, bPort)
	}

	// Write lock
	r.mutex.Lock()
	defer r.mutex.Unlock()

	va, _ := r.addNode(Switch(a))
	vb, _ := r.addNode(Switch(b))
	changedA := va.setEdge(vb.id, aPort)
	changedB := vb.setEdge(va.id, bPort)
	if changedA || changedB {
		logger.Debugf("link added: %v/%v <-> %v/%v", a, aPort, b, bPort)
	}

	return nil
}

// ObserveEndpoint attaches a newly seen endpoint to the switch and ingress
// port it was first seen on. An endpoint that is already attached is never
// moved. An endpoint whose switch went away is attached again.
func (r *Graph) ObserveEndpoint(dpid uint64, ingress uint32, mac MAC) (added bool, err error) {
	if mac.IsZero() {
		return false, errors.New("zero endpoint address")
	}
	if mac.IsGroup() {
		return false, errors.Errorf("group address %v is not an endpoint", mac)
	}
	if ingress == PortNone {
		return false, errors.Errorf("zero ingress port for %v", mac)
	}

	// Write lock
	r.mutex.Lock()
	defer r.mutex.Unlock()

	sw, ok := r.nodes[Switch(dpid)]
	if !ok {
		return false, errors.Wrapf(ErrUnknownNode, "DPID %v", dpid)
	}

	ep, created := r.addNode(Endpoint(mac))
	if !created && len(ep.adj) > 0 {
		return false, nil
	}
	sw.setEdge(ep.id, ingress)
	ep.setEdge(sw.id, PortNone)
	logger.Infof("endpoint attached: MAC=%v, DPID=%v, port=%v", mac, dpid, ingress)

	return true, nil
}

// RemoveSwitch deletes a switch and every edge touching it. Endpoints are kept
// and are attached again when they are next observed.
func (r *Graph) RemoveSwitch(dpid uint64) bool {
	// Write lock
	r.mutex.Lock()
	defer r.mutex.Unlock()

	id := Switch(dpid)
	v, ok := r.nodes[id]
	if !ok {
		return false
	}
	for _, n := range v.adj {
		if peer, ok := r.nodes[n.Node]; ok {
			peer.removeEdge(id)
		}
	}
	delete(r.nodes, id)
	for i, n := range r.order {
		if n == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	logger.Debugf("switch removed: DPID=%v", dpid)

	return true
}

func (r *Graph) Has(id NodeID) bool {
	// Read lock
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	_, ok := r.nodes[id]
	return ok
}

// Neighbors returns the outgoing edges of id in insertion order. It returns
// nil for an unknown node.
func (r *Graph) Neighbors(id NodeID) []Neighbor {
	// Read lock
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	v, ok := r.nodes[id]
	if !ok {
		return nil
	}
	result := make([]Neighbor, len(v.adj))
	copy(result, v.adj)

	return result
}

// Port returns the egress port on from toward to.
func (r *Graph) Port(from, to NodeID) (uint32, bool) {
	// Read lock
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	v, ok := r.nodes[from]
	if !ok {
		return 0, false
	}
	i, ok := v.neighbor(to)
	if !ok {
		return 0, false
	}

	return v.adj[i].Port, true
}

// Attachment returns the switch an endpoint was first seen on and the port
// facing it.
func (r *Graph) Attachment(mac MAC) (dpid uint64, port uint32, ok bool) {
	// Read lock
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	ep, ok := r.nodes[Endpoint(mac)]
	if !ok || len(ep.adj) == 0 {
		return 0, 0, false
	}
	sw, ok := r.nodes[ep.adj[0].Node]
	if !ok {
		return 0, 0, false
	}
	i, ok := sw.neighbor(ep.id)
	if !ok {
		return 0, 0, false
	}

	return sw.id.DPID, sw.adj[i].Port, true
}

// Snapshot is a point-in-time copy of the graph.
type Snapshot struct {
	Nodes []NodeID
	Edges []Edge
}

func (r *Graph) Snapshot() Snapshot {
	// Read lock
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	s := Snapshot{
		Nodes: make([]NodeID, len(r.order)),
	}
	copy(s.Nodes, r.order)
	for _, id := range r.order {
		for _, n := range r.nodes[id].adj {
			s.Edges = append(s.Edges, Edge{From: id, To: n.Node, Port: n.Port})
		}
	}

	return s
}

func (r *Graph) String() string {
	s := r.Snapshot()
	v := fmt.Sprintf("Topology: # of nodes=%v, # of edges=%v\n", len(s.Nodes), len(s.Edges))
	for _, e := range s.Edges {
		v += fmt.Sprintf("\t%v\n", e)
	}

	return v
}
