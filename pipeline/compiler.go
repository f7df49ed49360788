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

package pipeline

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/superkkt/go-logging"

	"github.com/yyang13/pathctl/graph"
	"github.com/yyang13/pathctl/policy"
)

var (
	logger = logging.MustGetLogger("pipeline")
)

// ErrStaleTopology means the graph changed under a computed path. The caller
// has to resolve the path again; no rule of the failed batch is valid.
var ErrStaleTopology = errors.New("stale topology")

type Shape int

const (
	SingleTable Shape = iota
	TwoTable
)

func (r Shape) String() string {
	switch r {
	case SingleTable:
		return "single-table"
	case TwoTable:
		return "two-table"
	default:
		return fmt.Sprintf("shape(%d)", int(r))
	}
}

func ParseShape(s string) (Shape, error) {
	switch strings.ToLower(s) {
	case "single-table", "single":
		return SingleTable, nil
	case "two-table", "multi-table":
		return TwoTable, nil
	default:
		return 0, errors.Errorf("unknown pipeline shape: %v", s)
	}
}

const (
	PriorityDefault uint16 = 0
	PriorityForward uint16 = 1
)

// Topology is the read-only view of the graph the compiler needs.
type Topology interface {
	Neighbors(graph.NodeID) []graph.Neighbor
	Attachment(graph.MAC) (dpid uint64, port uint32, ok bool)
}

type Options struct {
	Shape Shape
	// MatchSource adds the source address to single-table forwarding rules.
	// Two-table forwarding always matches on both addresses.
	MatchSource bool
	// MirrorPort receives a copy of the traffic at the first and the last
	// switch of a single-table path. Zero disables mirroring.
	MirrorPort uint32
}

type Compiler struct {
	topo   Topology
	policy policy.Evaluator
	opts   Options
}

func NewCompiler(t Topology, p policy.Evaluator, o Options) *Compiler {
	if t == nil {
		panic("Topology is nil")
	}
	if p == nil {
		panic("Evaluator is nil")
	}

	return &Compiler{
		topo:   t,
		policy: p,
		opts:   o,
	}
}

func (r *Compiler) Shape() Shape {
	return r.opts.Shape
}

func (r *Compiler) Evaluate(key FlowKey) policy.Decision {
	return r.policy.Evaluate(key.Src, key.Dst)
}

// ForwardingTable is the table holding per-hop forwarding rules.
func (r *Compiler) ForwardingTable() uint8 {
	if r.opts.Shape == TwoTable {
		return 1
	}

	return 0
}

// DropPriority keeps a drop rule ahead of forwarding rules for the same key.
// In the two-table shape table 0 is evaluated first, so priority 1 is enough;
// a single table needs a strictly higher priority.
func (r *Compiler) DropPriority() uint16 {
	if r.opts.Shape == TwoTable {
		return PriorityForward
	}

	return PriorityForward + 1
}

// DefaultRules returns the table-miss rules a switch gets when it joins.
func (r *Compiler) DefaultRules(dpid uint64) []Rule {
	toController := Rule{
		DPID:     dpid,
		TableID:  r.ForwardingTable(),
		Priority: PriorityDefault,
		Actions:  []Action{Output(PortController)},
	}
	if r.opts.Shape == SingleTable {
		return []Rule{toController}
	}

	return []Rule{
		{
			DPID:      dpid,
			TableID:   0,
			Priority:  PriorityDefault,
			GotoTable: Goto(1),
		},
		toController,
	}
}

// Compile turns a decision for key into rules. For Admit, path is the full
// path from the source endpoint to the destination endpoint. For Block, the
// path is optional: the drop rule goes to the first switch of the path, or to
// the switch the source is attached to.
func (r *Compiler) Compile(key FlowKey, d policy.Decision, path []graph.NodeID) ([]Rule, error) {
	if d == policy.Block {
		rule, err := r.drop(key, path)
		if err != nil {
			return nil, err
		}
		return []Rule{rule}, nil
	}

	return r.forward(key, path)
}

func (r *Compiler) drop(key FlowKey, path []graph.NodeID) (Rule, error) {
	var ingress uint64
	if interior := graph.Interior(path); len(interior) > 0 {
		ingress = interior[0].DPID
	} else {
		dpid, _, ok := r.topo.Attachment(key.Src)
		if !ok {
			return Rule{}, errors.Wrapf(ErrStaleTopology, "no attachment for %v", key.Src)
		}
		ingress = dpid
	}

	return Rule{
		DPID:     ingress,
		TableID:  0,
		Priority: r.DropPriority(),
		Match:    Match{EthSrc: key.Src, EthDst: key.Dst},
	}, nil
}

func (r *Compiler) forwardMatch(key FlowKey) Match {
	m := Match{EthDst: key.Dst}
	if r.opts.Shape == TwoTable || r.opts.MatchSource {
		m.EthSrc = key.Src
	}

	return m
}

func (r *Compiler) egress(cur, next graph.NodeID) (uint32, bool) {
	for _, n := range r.topo.Neighbors(cur) {
		if n.Node == next {
			return n.Port, true
		}
	}

	return 0, false
}

func (r *Compiler) forward(key FlowKey, path []graph.NodeID) ([]Rule, error) {
	if len(path) < 3 || path[0] != graph.Endpoint(key.Src) || path[len(path)-1] != graph.Endpoint(key.Dst) {
		return nil, errors.Wrapf(ErrStaleTopology, "path %v does not join %v", path, key)
	}

	rules, err := r.along(key, path[1:], r.opts.Shape == SingleTable && r.opts.MirrorPort != 0)
	if err != nil {
		return nil, err
	}
	logger.Debugf("compiled %v forwarding rules for %v (shape=%v)", len(rules), key, r.opts.Shape)

	return rules, nil
}

// CompileDetour returns the forwarding rules that carry key from the first
// node of path to its last one. The last node is the destination itself or a
// switch that already forwards key. Detours are never mirrored.
func (r *Compiler) CompileDetour(key FlowKey, path []graph.NodeID) ([]Rule, error) {
	if len(path) < 2 {
		return nil, errors.Wrapf(ErrStaleTopology, "detour %v is too short", path)
	}
	last := path[len(path)-1]
	if last.IsEndpoint() && last != graph.Endpoint(key.Dst) {
		return nil, errors.Wrapf(ErrStaleTopology, "detour %v does not reach %v", path, key.Dst)
	}

	return r.along(key, path, false)
}

// along compiles one rule for every switch of hops but the last node, each
// forwarding toward the node that follows it.
func (r *Compiler) along(key FlowKey, hops []graph.NodeID, mirror bool) ([]Rule, error) {
	match := r.forwardMatch(key)
	rules := make([]Rule, 0, len(hops)-1)
	for i := 0; i < len(hops)-1; i++ {
		hop, next := hops[i], hops[i+1]
		if !hop.IsSwitch() {
			return nil, errors.Wrapf(ErrStaleTopology, "non-switch hop %v", hop)
		}
		port, ok := r.egress(hop, next)
		if !ok {
			return nil, errors.Wrapf(ErrStaleTopology, "no edge %v -> %v", hop, next)
		}

		actions := []Action{Output(port)}
		boundary := i == 0 || i == len(hops)-2
		if mirror && boundary && r.opts.MirrorPort != port {
			actions = append(actions, Output(r.opts.MirrorPort))
		}
		rules = append(rules, Rule{
			DPID:     hop.DPID,
			TableID:  r.ForwardingTable(),
			Priority: PriorityForward,
			Match:    match,
			Actions:  actions,
		})
	}

	return rules, nil
}
