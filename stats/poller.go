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
	"context"
	"sync"
	"time"

	"github.com/superkkt/go-logging"
)

var (
	logger = logging.MustGetLogger("stats")
)

const (
	DefaultInterval = 5 * time.Second
)

// Session is a live switch that can be asked for counters.
type Session interface {
	ID() uint64
	RequestCounters(Kind) error
}

// Registry lists the live switch sessions at the time of the call.
type Registry interface {
	Sessions() []Session
}

type Config struct {
	Interval time.Duration
	Kind     Kind
	// Target limits polling to one switch. Zero polls every live switch.
	Target uint64
}

// Poller periodically sends counter requests and folds the replies into
// reports. Replies are matched to requests by switch only.
type Poller struct {
	conf     Config
	registry Registry
	now      func() time.Time

	mutex       sync.Mutex
	outstanding map[uint64]time.Time
	latest      map[uint64]Report
	sinks       []Sink
}

func NewPoller(r Registry, c Config) *Poller {
	if r == nil {
		panic("Registry is nil")
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}

	return &Poller{
		conf:        c,
		registry:    r,
		now:         time.Now,
		outstanding: make(map[uint64]time.Time),
		latest:      make(map[uint64]Report),
	}
}

func (r *Poller) Subscribe(s Sink) {
	if s == nil {
		panic("Sink is nil")
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.sinks = append(r.sinks, s)
}

// Run polls until ctx is cancelled. The first poll happens one interval after
// the call.
func (r *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.conf.Interval)
	defer ticker.Stop()
	logger.Infof("started the stats poller: interval=%v, kind=%v, target=%v", r.conf.Interval, r.conf.Kind, r.conf.Target)

	for {
		select {
		case <-ctx.Done():
			logger.Debug("terminating the stats poller")
			return nil
		case <-ticker.C:
			r.Poll()
		}
	}
}

// Poll sends one round of counter requests. A switch that cannot take the
// request is skipped; it is dropped from the registry when it disconnects.
func (r *Poller) Poll() {
	for _, s := range r.registry.Sessions() {
		id := s.ID()
		if r.conf.Target != 0 && id != r.conf.Target {
			continue
		}

		r.mutex.Lock()
		if sent, ok := r.outstanding[id]; ok {
			logger.Warningf("missing reply: DPID=%v, requested=%v ago", id, r.now().Sub(sent))
		}
		r.mutex.Unlock()

		if err := s.RequestCounters(r.conf.Kind); err != nil {
			logger.Debugf("skip to poll the device: DPID=%v, err=%v", id, err)
			r.mutex.Lock()
			delete(r.outstanding, id)
			r.mutex.Unlock()
			continue
		}
		logger.Debugf("sent a %v stats request to %v", r.conf.Kind, id)

		r.mutex.Lock()
		r.outstanding[id] = r.now()
		r.mutex.Unlock()
	}
}

// Deliver folds a reply into the report and notifies the subscribers.
// Malformed replies are logged and dropped.
func (r *Poller) Deliver(reply Reply) {
	if err := reply.validate(); err != nil {
		logger.Errorf("malformed stats reply (DPID=%v): %v", reply.DPID, err)
		return
	}

	r.mutex.Lock()
	report := Report{Reply: reply, Received: r.now()}
	if sent, ok := r.outstanding[reply.DPID]; ok {
		report.RTT = report.Received.Sub(sent)
		delete(r.outstanding, reply.DPID)
	} else {
		logger.Debugf("unsolicited stats reply: DPID=%v", reply.DPID)
	}
	r.latest[reply.DPID] = report
	sinks := make([]Sink, len(r.sinks))
	copy(sinks, r.sinks)
	r.mutex.Unlock()

	for _, s := range sinks {
		s.Report(report)
	}
}

// Latest returns the last report received from a switch.
func (r *Poller) Latest(dpid uint64) (Report, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	v, ok := r.latest[dpid]
	return v, ok
}

// Forget drops the state kept for a disconnected switch.
func (r *Poller) Forget(dpid uint64) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	delete(r.outstanding, dpid)
	delete(r.latest, dpid)
}
