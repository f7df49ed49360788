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
	"context"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	"github.com/superkkt/go-logging"
	"golang.org/x/sync/errgroup"

	"github.com/yyang13/pathctl/config"
	"github.com/yyang13/pathctl/graph"
	"github.com/yyang13/pathctl/pipeline"
	"github.com/yyang13/pathctl/policy"
	"github.com/yyang13/pathctl/stats"
)

var (
	logger = logging.MustGetLogger("network")
)

const (
	maxStaleRetry = 3
)

// Controller reacts to discovery and packet-in events by computing a path,
// applying the policy and installing the resulting rules.
type Controller struct {
	topo         *graph.Graph
	registry     *Registry
	compiler     *pipeline.Compiler
	installer    *Installer
	groups       *GroupManager
	poller       *stats.Poller
	sb           Southbound
	fastFailover bool
}

func NewController(sb Southbound, conf *config.Config) (*Controller, error) {
	if sb == nil {
		panic("Southbound is nil")
	}
	if conf == nil {
		conf = config.Default()
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	topo := graph.New()
	registry := NewRegistry()
	poller := stats.NewPoller(registry, conf.PollerConfig())
	poller.Subscribe(stats.LogSink{})

	return &Controller{
		topo:         topo,
		registry:     registry,
		compiler:     pipeline.NewCompiler(topo, conf.Evaluator(), conf.CompilerOptions()),
		installer:    NewInstaller(registry),
		groups:       NewGroupManager(topo, registry),
		poller:       poller,
		sb:           sb,
		fastFailover: conf.Pipeline.FastFailover,
	}, nil
}

// OnSwitchJoined opens the session of a switch and installs its table-miss
// rules.
func (r *Controller) OnSwitchJoined(dpid uint64) error {
	if dpid == 0 {
		logger.Warning("dropped a switch join event without DPID")
		return errors.Wrap(ErrMalformedEvent, "missing DPID")
	}

	device := newDevice(dpid, newSession(dpid, r.sb))
	if err := r.registry.Register(device); err != nil {
		logger.Errorf("failed to register a device: %v", err)
		return err
	}
	// A reconnecting switch starts with an empty flow table.
	r.installer.Forget(dpid)
	r.groups.Forget(dpid)
	r.topo.AddSwitch(dpid)
	logger.Infof("switch joined: %v", device)

	var first error
	for _, rule := range r.compiler.DefaultRules(dpid) {
		if _, err := r.installer.Install(rule); err != nil {
			logger.Errorf("failed to install a default rule: %v: %v", rule, err)
			if first == nil {
				first = err
			}
		}
	}

	return first
}

// OnSwitchDisconnected closes the session of a switch and removes it from the
// topology. Endpoints attached to it stay in the graph.
func (r *Controller) OnSwitchDisconnected(dpid uint64) {
	if device := r.registry.Unregister(dpid); device != nil {
		device.Close()
	}
	r.installer.Forget(dpid)
	r.groups.Forget(dpid)
	r.poller.Forget(dpid)
	if r.topo.RemoveSwitch(dpid) {
		logger.Infof("switch disconnected: DPID=%v", dpid)
	}
}

func (r *Controller) OnLinkDiscovered(a uint64, aPort uint32, b uint64, bPort uint32) error {
	if err := r.topo.AddLink(a, aPort, b, bPort); err != nil {
		logger.Warningf("dropped a link event: %v", err)
		return errors.Wrap(ErrMalformedEvent, err.Error())
	}

	return nil
}

// isTrunk reports whether port of a switch connects to another switch.
func (r *Controller) isTrunk(dpid uint64, port uint32) bool {
	for _, n := range r.topo.Neighbors(graph.Switch(dpid)) {
		if n.Port == port && n.Node.IsSwitch() {
			return true
		}
	}

	return false
}

func (r *Controller) OnPacketIn(ev PacketIn) error {
	if err := ev.resolve(); err != nil {
		logger.Warningf("dropped a packet-in: %v", err)
		logger.Debugf("malformed packet-in: %v", spew.Sdump(ev))
		return err
	}
	if !r.topo.Has(graph.Switch(ev.DPID)) {
		logger.Warningf("dropped a packet-in from unknown switch: DPID=%v", ev.DPID)
		return errors.Wrapf(ErrMalformedEvent, "unknown DPID %v", ev.DPID)
	}
	logger.Debugf("packet-in: DPID=%v, port=%v, src=%v, dst=%v", ev.DPID, ev.InPort, ev.Src, ev.Dst)

	// Frames forwarded between switches do not reveal where the source lives.
	if !r.isTrunk(ev.DPID, ev.InPort) {
		if _, err := r.topo.ObserveEndpoint(ev.DPID, ev.InPort, ev.Src); err != nil {
			logger.Warningf("failed to observe an endpoint: %v", err)
			return errors.Wrap(ErrMalformedEvent, err.Error())
		}
	}
	if ev.Src == ev.Dst {
		return nil
	}
	if !r.topo.Has(graph.Endpoint(ev.Dst)) {
		logger.Debugf("unknown destination %v: no path yet", ev.Dst)
		return nil
	}

	key := pipeline.FlowKey{Src: ev.Src, Dst: ev.Dst}
	var rules []pipeline.Rule
	var err error
	for i := 0; i < maxStaleRetry; i++ {
		rules, err = r.route(key)
		if !errors.Is(err, pipeline.ErrStaleTopology) {
			break
		}
		logger.Debugf("retrying %v on a stale topology (%v/%v)", key, i+1, maxStaleRetry)
	}
	if errors.Is(err, pipeline.ErrStaleTopology) {
		logger.Warningf("gave up routing %v: %v", key, err)
		return err
	}
	r.release(ev, rules)

	return err
}

// release sends the punted packet on along the rule just compiled for the
// switch it came from.
func (r *Controller) release(ev PacketIn, rules []pipeline.Rule) {
	for _, rule := range rules {
		if rule.DPID != ev.DPID || rule.TableID != r.compiler.ForwardingTable() || rule.IsDrop() {
			continue
		}
		out, ok := ev.release(rule.Actions)
		if !ok {
			return
		}
		device := r.registry.Device(ev.DPID)
		if device == nil {
			return
		}
		if err := device.SendPacketOut(out); err != nil {
			logger.Warningf("failed to send a packet-out: %v: %v", out, err)
			return
		}
		logger.Debugf("sent a packet-out: %v", out)
		return
	}
}

// route installs the rules for key and returns the forwarding rules of the
// path. Rules are returned even when some of them could not be installed.
func (r *Controller) route(key pipeline.FlowKey) ([]pipeline.Rule, error) {
	decision := r.compiler.Evaluate(key)

	var path []graph.NodeID
	if decision == policy.Admit {
		p, err := r.topo.ShortestPath(graph.Endpoint(key.Src), graph.Endpoint(key.Dst))
		if err != nil {
			if errors.Is(err, graph.ErrNotFound) {
				logger.Debugf("no path for %v", key)
				return nil, nil
			}
			return nil, err
		}
		path = p
	}
	logger.Infof("%v: decision=%v, path=%v", key, decision, path)

	rules, err := r.compiler.Compile(key, decision, path)
	if err != nil {
		return nil, err
	}
	if decision == policy.Block {
		return nil, r.install(rules)
	}

	var detours []pipeline.Rule
	if r.fastFailover {
		detours = r.bindGroups(key, path, rules)
	}
	// Backup switches are ready before any group can fail over to them.
	err = r.install(append(detours, rules...))

	return rules, err
}

// bindGroups replaces the primary output of each forwarding rule with the
// fast-failover group of the destination. A rule whose group cannot be
// installed keeps its plain output. It returns the rules that carry the flow
// from each backup neighbor to the destination, or to a switch further down
// the path.
func (r *Controller) bindGroups(key pipeline.FlowKey, path []graph.NodeID, rules []pipeline.Rule) []pipeline.Rule {
	interior := graph.Interior(path)
	if len(interior) != len(rules) {
		return nil
	}

	var result []pipeline.Rule
	seen := make(map[pipeline.Key]bool)
	for i := range rules {
		primary, ok := rules[i].Egress()
		if !ok {
			continue
		}
		// The flow must never go back to a switch it already passed.
		detours := r.groups.Detours(rules[i].DPID, key.Dst, primary, interior[:i])
		g, err := r.groups.Ensure(rules[i].DPID, key.Dst, primary, detours)
		if err != nil {
			logger.Warningf("failed to install the group for %v on DPID %v: %v", key.Dst, rules[i].DPID, err)
			continue
		}

		actions := make([]pipeline.Action, len(rules[i].Actions))
		for j, a := range rules[i].Actions {
			if a.Type == pipeline.ActionOutput && a.Port == primary {
				a = pipeline.ToGroup(g.ID)
			}
			actions[j] = a
		}
		rules[i].Actions = actions

		for _, d := range detours {
			if !watches(g, d.Port) {
				continue
			}
			compiled, err := r.compiler.CompileDetour(key, joinPath(d.Path, interior[i+1:]))
			if err != nil {
				logger.Warningf("failed to compile the detour of %v via DPID %v port %v: %v", key, rules[i].DPID, d.Port, err)
				continue
			}
			for _, v := range compiled {
				if seen[v.Key()] {
					continue
				}
				seen[v.Key()] = true
				// A detour never replaces what a switch already does for the key.
				if _, ok := r.installer.Installed(v.Key()); ok {
					continue
				}
				result = append(result, v)
			}
		}
	}

	return result
}

func watches(g pipeline.Group, port uint32) bool {
	for _, b := range g.Buckets {
		if b.WatchPort == port {
			return true
		}
	}

	return false
}

// joinPath cuts a detour at the first switch that is already on the path.
func joinPath(detour, downstream []graph.NodeID) []graph.NodeID {
	for i, n := range detour {
		for _, v := range downstream {
			if n == v {
				return detour[:i+1]
			}
		}
	}

	return detour
}

// install sends rules in path order. A switch without a session is skipped
// and the rest of the path is still installed.
func (r *Controller) install(rules []pipeline.Rule) error {
	var first error
	for _, rule := range rules {
		result, err := r.installer.Install(rule)
		if err != nil {
			if errors.Is(err, ErrSessionUnavailable) {
				logger.Warningf("skipped a rule: %v: %v", rule, err)
			} else {
				logger.Errorf("failed to install a rule: %v: %v", rule, err)
			}
			if first == nil {
				first = err
			}
			continue
		}
		logger.Debugf("%v: %v", result, rule)
	}

	return first
}

func (r *Controller) OnCounterReply(reply stats.Reply) {
	r.poller.Deliver(reply)
}

func (r *Controller) CurrentTopology() graph.Snapshot {
	return r.topo.Snapshot()
}

func (r *Controller) Subscribe(s stats.Sink) {
	r.poller.Subscribe(s)
}

// InstalledRules returns the rules the controller has sent to a switch.
func (r *Controller) InstalledRules(dpid uint64) []pipeline.Rule {
	return r.installer.Rules(dpid)
}

func (r *Controller) InstalledGroups(dpid uint64) []pipeline.Group {
	return r.groups.Groups(dpid)
}

// Run drives the stats poller until ctx is cancelled.
func (r *Controller) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.poller.Run(ctx)
	})

	return g.Wait()
}

func (r *Controller) String() string {
	return r.topo.String()
}
