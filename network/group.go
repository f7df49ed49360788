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

	"github.com/yyang13/pathctl/graph"
	"github.com/yyang13/pathctl/pipeline"
)

type groupKey struct {
	dpid uint64
	dst  graph.MAC
}

// GroupManager keeps one fast-failover group per destination on each switch
// that forwards toward it. Group IDs are allocated per destination and are
// the same on every switch.
type GroupManager struct {
	topo     *graph.Graph
	registry *Registry

	mutex     sync.Mutex
	ids       map[graph.MAC]uint32
	nextID    uint32
	installed map[groupKey]pipeline.Group
}

func NewGroupManager(topo *graph.Graph, r *Registry) *GroupManager {
	if topo == nil {
		panic("Graph is nil")
	}
	if r == nil {
		panic("Registry is nil")
	}

	return &GroupManager{
		topo:      topo,
		registry:  r,
		ids:       make(map[graph.MAC]uint32),
		nextID:    1,
		installed: make(map[groupKey]pipeline.Group),
	}
}

// InstallGroup sends a fast-failover group to a switch.
func (r *GroupManager) InstallGroup(dpid uint64, id uint32, buckets []pipeline.Bucket) error {
	if len(buckets) == 0 {
		return errors.Errorf("empty group %v for DPID %v", id, dpid)
	}
	for _, b := range buckets {
		if b.WatchPort == graph.PortNone || b.WatchPort > pipeline.PortMax {
			return errors.Errorf("invalid watch port %v in group %v", b.WatchPort, id)
		}
	}

	device := r.registry.Device(dpid)
	if device == nil {
		return errors.Wrapf(ErrSessionUnavailable, "DPID %v", dpid)
	}
	g := pipeline.Group{DPID: dpid, ID: id, Buckets: buckets}
	if err := device.SendGroup(g); err != nil {
		if errors.Is(err, ErrClosedDevice) {
			return errors.Wrapf(ErrSessionUnavailable, "DPID %v", dpid)
		}
		return err
	}
	logger.Infof("installed a group: %v", g)

	return nil
}

// Detour is a way out of a switch other than its primary port. Path starts
// at the neighbor behind Port and ends at the destination.
type Detour struct {
	Port uint32
	Path []graph.NodeID
}

// Detours lists, in neighbor order, the switch neighbors that still reach dst
// without passing through the switch itself or any node in avoid.
func (r *GroupManager) Detours(dpid uint64, dst graph.MAC, primary uint32, avoid []graph.NodeID) []Detour {
	self := graph.Switch(dpid)
	target := graph.Endpoint(dst)
	skip := append([]graph.NodeID{self}, avoid...)

	var result []Detour
	for _, n := range r.topo.Neighbors(self) {
		if n.Port == primary || n.Node.IsEndpoint() {
			continue
		}
		path, err := r.topo.PathAvoiding(n.Node, target, skip...)
		if err != nil {
			continue
		}
		result = append(result, Detour{Port: n.Port, Path: path})
	}

	return result
}

// Buckets puts the primary port first, followed by one bucket per detour.
// Every bucket watches the port it outputs to.
func Buckets(primary uint32, detours []Detour) []pipeline.Bucket {
	buckets := []pipeline.Bucket{
		{WatchPort: primary, Actions: []pipeline.Action{pipeline.Output(primary)}},
	}
	for _, d := range detours {
		buckets = append(buckets, pipeline.Bucket{
			WatchPort: d.Port,
			Actions:   []pipeline.Action{pipeline.Output(d.Port)},
		})
	}

	return buckets
}

// Ensure returns the group that forwards toward dst on a switch, installing
// it the first time. A group that is already installed is returned as is.
func (r *GroupManager) Ensure(dpid uint64, dst graph.MAC, primary uint32, detours []Detour) (pipeline.Group, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	key := groupKey{dpid: dpid, dst: dst}
	if g, ok := r.installed[key]; ok {
		return g, nil
	}

	id, ok := r.ids[dst]
	if !ok {
		id = r.nextID
		r.nextID++
		r.ids[dst] = id
	}
	buckets := Buckets(primary, detours)
	if err := r.InstallGroup(dpid, id, buckets); err != nil {
		return pipeline.Group{}, err
	}
	g := pipeline.Group{DPID: dpid, ID: id, Buckets: buckets}
	r.installed[key] = g

	return g, nil
}

// Groups returns the groups installed on a switch.
func (r *GroupManager) Groups(dpid uint64) []pipeline.Group {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var result []pipeline.Group
	for k, g := range r.installed {
		if k.dpid == dpid {
			result = append(result, g)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })

	return result
}

// Forget drops the groups of a disconnected switch. Destination IDs are kept.
func (r *GroupManager) Forget(dpid uint64) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for k := range r.installed {
		if k.dpid == dpid {
			delete(r.installed, k)
		}
	}
}
