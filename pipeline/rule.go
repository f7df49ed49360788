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
	"slices"
	"strings"

	"github.com/yyang13/pathctl/graph"
)

// Reserved OpenFlow 1.3 port numbers.
const (
	PortMax        uint32 = 0xffffff00
	PortController uint32 = 0xfffffffd
	PortAny        uint32 = 0xffffffff
)

type FlowKey struct {
	Src graph.MAC
	Dst graph.MAC
}

func (r FlowKey) String() string {
	return fmt.Sprintf("%v -> %v", r.Src, r.Dst)
}

// Match is an exact match on Ethernet addresses. A zero address is a wildcard,
// so the zero Match matches everything.
type Match struct {
	EthSrc graph.MAC
	EthDst graph.MAC
}

func (r Match) IsWildcard() bool {
	return r.EthSrc.IsZero() && r.EthDst.IsZero()
}

func (r Match) String() string {
	if r.IsWildcard() {
		return "any"
	}

	var v []string
	if !r.EthSrc.IsZero() {
		v = append(v, "eth_src="+r.EthSrc.String())
	}
	if !r.EthDst.IsZero() {
		v = append(v, "eth_dst="+r.EthDst.String())
	}

	return strings.Join(v, ",")
}

type ActionType uint8

const (
	ActionOutput ActionType = iota + 1
	ActionGroup
	ActionSetEthDst
)

type Action struct {
	Type   ActionType
	Port   uint32
	Group  uint32
	EthDst graph.MAC
}

func Output(port uint32) Action {
	return Action{Type: ActionOutput, Port: port}
}

func ToGroup(id uint32) Action {
	return Action{Type: ActionGroup, Group: id}
}

func SetEthDst(mac graph.MAC) Action {
	return Action{Type: ActionSetEthDst, EthDst: mac}
}

func (r Action) String() string {
	switch r.Type {
	case ActionOutput:
		if r.Port == PortController {
			return "output:CONTROLLER"
		}
		return fmt.Sprintf("output:%v", r.Port)
	case ActionGroup:
		return fmt.Sprintf("group:%v", r.Group)
	case ActionSetEthDst:
		return fmt.Sprintf("set_field:eth_dst=%v", r.EthDst)
	default:
		return fmt.Sprintf("action(%v)", r.Type)
	}
}

// Rule is a table-scoped match-action entry for one switch. A rule with no
// actions and no goto drops what it matches.
type Rule struct {
	DPID      uint64
	TableID   uint8
	Priority  uint16
	Match     Match
	Actions   []Action
	GotoTable *uint8
}

// Goto returns a goto-table target for Rule.GotoTable.
func Goto(table uint8) *uint8 {
	return &table
}

// Key identifies the slot a rule occupies on its switch.
type Key struct {
	DPID    uint64
	TableID uint8
	Match   Match
}

func (r Rule) Key() Key {
	return Key{DPID: r.DPID, TableID: r.TableID, Match: r.Match}
}

func (r Rule) IsDrop() bool {
	return len(r.Actions) == 0 && r.GotoTable == nil
}

// SameEffect reports whether o would leave the switch in the same state as r
// when installed over it.
func (r Rule) SameEffect(o Rule) bool {
	if r.Priority != o.Priority || !slices.Equal(r.Actions, o.Actions) {
		return false
	}
	if r.GotoTable == nil || o.GotoTable == nil {
		return r.GotoTable == nil && o.GotoTable == nil
	}

	return *r.GotoTable == *o.GotoTable
}

// Egress returns the first output port of the rule.
func (r Rule) Egress() (uint32, bool) {
	for _, a := range r.Actions {
		if a.Type == ActionOutput {
			return a.Port, true
		}
	}

	return 0, false
}

func (r Rule) String() string {
	v := fmt.Sprintf("DPID=%v, table=%v, priority=%v, match=%v", r.DPID, r.TableID, r.Priority, r.Match)
	switch {
	case r.GotoTable != nil:
		v += fmt.Sprintf(", goto_table:%v", *r.GotoTable)
	case len(r.Actions) == 0:
		v += ", drop"
	default:
		a := make([]string, len(r.Actions))
		for i, act := range r.Actions {
			a[i] = act.String()
		}
		v += ", actions=" + strings.Join(a, ",")
	}

	return v
}

// Bucket is one alternative of a fast-failover group. The switch uses the
// first bucket whose watched port is live.
type Bucket struct {
	WatchPort uint32
	Actions   []Action
}

type Group struct {
	DPID    uint64
	ID      uint32
	Buckets []Bucket
}

func (r Group) String() string {
	v := fmt.Sprintf("DPID=%v, group=%v, type=ff", r.DPID, r.ID)
	for _, b := range r.Buckets {
		a := make([]string, len(b.Actions))
		for i, act := range b.Actions {
			a[i] = act.String()
		}
		v += fmt.Sprintf(", bucket(watch=%v, actions=%v)", b.WatchPort, strings.Join(a, ","))
	}

	return v
}
