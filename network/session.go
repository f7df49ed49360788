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
	"github.com/pkg/errors"

	"github.com/yyang13/pathctl/pipeline"
	"github.com/yyang13/pathctl/stats"
)

// Southbound is the control channel toward the switches. Sends are
// fire-and-forget: a nil error means the message was handed to the channel,
// not that the switch applied it.
type Southbound interface {
	SendRuleInstall(dpid uint64, r pipeline.Rule) error
	SendGroupInstall(dpid uint64, g pipeline.Group) error
	SendCounterRequest(dpid uint64, kind stats.Kind) error
	SendPacketOut(dpid uint64, p PacketOut) error
}

// session binds the shared southbound channel to one switch.
type session struct {
	dpid uint64
	sb   Southbound
}

func newSession(dpid uint64, sb Southbound) *session {
	if sb == nil {
		panic("Southbound is nil")
	}

	return &session{
		dpid: dpid,
		sb:   sb,
	}
}

func (r *session) writeRule(rule pipeline.Rule) error {
	if rule.DPID != r.dpid {
		return errors.Errorf("rule for DPID %v on the session of %v", rule.DPID, r.dpid)
	}
	if err := r.sb.SendRuleInstall(r.dpid, rule); err != nil {
		return errors.Wrap(err, "failed to send FLOW_MOD")
	}

	return nil
}

func (r *session) writeGroup(g pipeline.Group) error {
	if g.DPID != r.dpid {
		return errors.Errorf("group for DPID %v on the session of %v", g.DPID, r.dpid)
	}
	if err := r.sb.SendGroupInstall(r.dpid, g); err != nil {
		return errors.Wrap(err, "failed to send GROUP_MOD")
	}

	return nil
}

func (r *session) writeCounterRequest(kind stats.Kind) error {
	if err := r.sb.SendCounterRequest(r.dpid, kind); err != nil {
		return errors.Wrap(err, "failed to send MULTIPART_REQUEST")
	}

	return nil
}

func (r *session) writePacketOut(p PacketOut) error {
	if p.DPID != r.dpid {
		return errors.Errorf("packet-out for DPID %v on the session of %v", p.DPID, r.dpid)
	}
	if err := r.sb.SendPacketOut(r.dpid, p); err != nil {
		return errors.Wrap(err, "failed to send PACKET_OUT")
	}

	return nil
}
