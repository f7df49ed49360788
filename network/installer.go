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

	"github.com/yyang13/pathctl/pipeline"
)

// ErrSessionUnavailable means the target switch has no live control session.
// It is not retried.
var ErrSessionUnavailable = errors.New("switch session unavailable")

type InstallResult int

const (
	Installed InstallResult = iota
	// Overwritten means a rule with the same key but a different effect was
	// replaced.
	Overwritten
	// AlreadyInstalled is a no-op: the same rule has been sent before.
	AlreadyInstalled
)

func (r InstallResult) String() string {
	switch r {
	case Installed:
		return "installed"
	case Overwritten:
		return "overwritten"
	case AlreadyInstalled:
		return "already installed"
	default:
		return "unknown"
	}
}

// Installer sends rules to switches and remembers what each switch already
// has, keyed by (switch, table, match).
type Installer struct {
	registry *Registry

	mutex     sync.Mutex
	installed map[pipeline.Key]pipeline.Rule
}

func NewInstaller(r *Registry) *Installer {
	if r == nil {
		panic("Registry is nil")
	}

	return &Installer{
		registry:  r,
		installed: make(map[pipeline.Key]pipeline.Rule),
	}
}

func (r *Installer) Install(rule pipeline.Rule) (InstallResult, error) {
	device := r.registry.Device(rule.DPID)
	if device == nil || device.IsClosed() {
		return 0, errors.Wrapf(ErrSessionUnavailable, "DPID %v", rule.DPID)
	}

	// The lock is held across the send so that the record and the order on
	// the wire agree for concurrent installs of the same key.
	r.mutex.Lock()
	defer r.mutex.Unlock()

	key := rule.Key()
	old, exists := r.installed[key]
	if exists && old.SameEffect(rule) {
		logger.Debugf("skip the rule that is already installed: %v", rule)
		return AlreadyInstalled, nil
	}

	if err := device.SendRule(rule); err != nil {
		if errors.Is(err, ErrClosedDevice) {
			return 0, errors.Wrapf(ErrSessionUnavailable, "DPID %v", rule.DPID)
		}
		return 0, err
	}
	r.installed[key] = clone(rule)

	if exists {
		logger.Infof("overwrote a rule: %v", rule)
		return Overwritten, nil
	}
	logger.Debugf("installed a rule: %v", rule)

	return Installed, nil
}

func clone(rule pipeline.Rule) pipeline.Rule {
	if rule.Actions != nil {
		rule.Actions = append([]pipeline.Action(nil), rule.Actions...)
	}
	if rule.GotoTable != nil {
		rule.GotoTable = pipeline.Goto(*rule.GotoTable)
	}

	return rule
}

// Installed returns the rule recorded for a slot.
func (r *Installer) Installed(key pipeline.Key) (pipeline.Rule, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	v, ok := r.installed[key]
	if !ok {
		return pipeline.Rule{}, false
	}

	return clone(v), true
}

// Forget drops the records of a switch. A switch that reconnects starts with
// an empty flow table.
func (r *Installer) Forget(dpid uint64) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for k := range r.installed {
		if k.DPID == dpid {
			delete(r.installed, k)
		}
	}
}

// Rules returns what has been installed on a switch ordered by table and
// descending priority.
func (r *Installer) Rules(dpid uint64) []pipeline.Rule {
	r.mutex.Lock()
	var result []pipeline.Rule
	for k, v := range r.installed {
		if k.DPID == dpid {
			result = append(result, clone(v))
		}
	}
	r.mutex.Unlock()

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.TableID != b.TableID {
			return a.TableID < b.TableID
		}
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.Match.String() < b.Match.String()
	})

	return result
}
