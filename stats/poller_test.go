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
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/yyang13/pathctl/graph"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var errGone = errors.New("gone")

type fakeSession struct {
	mutex    sync.Mutex
	id       uint64
	gone     bool
	requests []Kind
}

func (r *fakeSession) ID() uint64 {
	return r.id
}

func (r *fakeSession) RequestCounters(k Kind) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.gone {
		return errGone
	}
	r.requests = append(r.requests, k)

	return nil
}

func (r *fakeSession) count() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return len(r.requests)
}

func (r *fakeSession) disconnect() {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.gone = true
}

type fakeRegistry struct {
	mutex    sync.Mutex
	sessions map[uint64]*fakeSession
}

func newFakeRegistry(ids ...uint64) *fakeRegistry {
	r := &fakeRegistry{sessions: make(map[uint64]*fakeSession)}
	for _, id := range ids {
		r.sessions[id] = &fakeSession{id: id}
	}

	return r
}

func (r *fakeRegistry) Sessions() []Session {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var ids []uint64
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	result := make([]Session, 0, len(ids))
	for _, id := range ids {
		result = append(result, r.sessions[id])
	}

	return result
}

func (r *fakeRegistry) remove(id uint64) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	delete(r.sessions, id)
}

func TestPollAllSwitches(t *testing.T) {
	reg := newFakeRegistry(1, 2, 3)
	p := NewPoller(reg, Config{Kind: KindFlow})

	p.Poll()
	for _, s := range reg.sessions {
		assert.Equal(t, []Kind{KindFlow}, s.requests)
	}
}

func TestPollDesignatedSwitch(t *testing.T) {
	reg := newFakeRegistry(1, 5, 7)
	p := NewPoller(reg, Config{Kind: KindPort, Target: 5})

	p.Poll()
	p.Poll()
	assert.Equal(t, 0, reg.sessions[1].count())
	assert.Equal(t, 2, reg.sessions[5].count())
	assert.Equal(t, 0, reg.sessions[7].count())
}

func TestPollSkipsDisconnectedSwitch(t *testing.T) {
	reg := newFakeRegistry(1, 2, 3)
	p := NewPoller(reg, Config{Kind: KindPort})

	p.Poll()
	// s2 goes away in the middle of the next round.
	reg.sessions[2].disconnect()
	assert.NotPanics(t, p.Poll)
	assert.Equal(t, 2, reg.sessions[1].count())
	assert.Equal(t, 1, reg.sessions[2].count())
	assert.Equal(t, 2, reg.sessions[3].count())

	// Then it is unregistered; polling resumes for the others.
	s2 := reg.sessions[2]
	reg.remove(2)
	p.Poll()
	assert.Equal(t, 3, reg.sessions[1].count())
	assert.Equal(t, 1, s2.count())
	assert.Equal(t, 3, reg.sessions[3].count())
}

func TestDeliver(t *testing.T) {
	reg := newFakeRegistry(1)
	p := NewPoller(reg, Config{Kind: KindPort})
	clock := time.Unix(1000, 0)
	p.now = func() time.Time { return clock }

	var reports []Report
	p.Subscribe(SinkFunc(func(v Report) { reports = append(reports, v) }))

	p.Poll()
	clock = clock.Add(20 * time.Millisecond)
	reply := Reply{DPID: 1, Kind: KindPort, Ports: []PortCounter{{PortNo: 1, RxPackets: 10}}}
	p.Deliver(reply)

	require.Len(t, reports, 1)
	assert.Equal(t, reply, reports[0].Reply)
	assert.Equal(t, 20*time.Millisecond, reports[0].RTT)

	latest, ok := p.Latest(1)
	require.True(t, ok)
	assert.Equal(t, reports[0], latest)

	// Unsolicited replies are reported without an RTT.
	p.Deliver(reply)
	require.Len(t, reports, 2)
	assert.Zero(t, reports[1].RTT)

	p.Forget(1)
	_, ok = p.Latest(1)
	assert.False(t, ok)
}

func TestDeliverMalformed(t *testing.T) {
	p := NewPoller(newFakeRegistry(), Config{})
	var count int
	p.Subscribe(SinkFunc(func(Report) { count++ }))

	p.Deliver(Reply{Kind: KindPort})
	p.Deliver(Reply{DPID: 1, Kind: Kind(9)})
	p.Deliver(Reply{DPID: 1, Kind: KindPort, Flows: []FlowCounter{{Packets: 1}}})
	p.Deliver(Reply{DPID: 1, Kind: KindFlow, Ports: []PortCounter{{PortNo: 1}}})
	assert.Zero(t, count)

	p.Deliver(Reply{DPID: 1, Kind: KindFlow})
	assert.Equal(t, 1, count)
}

func TestRunStopsOnCancel(t *testing.T) {
	reg := newFakeRegistry(1)
	p := NewPoller(reg, Config{Interval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return reg.sessions[1].count() >= 2 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("Flow")
	require.NoError(t, err)
	assert.Equal(t, KindFlow, k)
	_, err = ParseKind("queue")
	assert.Error(t, err)
}

func TestPrometheusSink(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink := NewPrometheusSink(reg)

	sink.Report(Report{Reply: Reply{
		DPID:  5,
		Kind:  KindPort,
		Ports: []PortCounter{{PortNo: 2, RxPackets: 42, TxPackets: 7, RxBytes: 4200, TxBytes: 700}},
	}})
	sink.Report(Report{Reply: Reply{
		DPID:  5,
		Kind:  KindFlow,
		Flows: []FlowCounter{{TableID: 1, Priority: 1, EthDst: graph.MAC{0, 0, 0, 0, 0, 2}, OutPort: 3, Packets: 9, Bytes: 900}},
	}})

	assert.Equal(t, 42.0, testutil.ToFloat64(sink.portRxPackets.WithLabelValues("5", "2")))
	assert.Equal(t, 700.0, testutil.ToFloat64(sink.portTxBytes.WithLabelValues("5", "2")))
	assert.Equal(t, 9.0, testutil.ToFloat64(sink.flowPackets.WithLabelValues("5", "1", "00:00:00:00:00:02", "3")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.replies.WithLabelValues("5", "port")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.replies.WithLabelValues("5", "flow")))
}

func TestFormatReport(t *testing.T) {
	lines := formatReport(Report{Reply: Reply{
		DPID:  5,
		Kind:  KindFlow,
		Flows: []FlowCounter{{Priority: 0}, {Priority: 1, EthDst: graph.MAC{0, 0, 0, 0, 0, 2}, OutPort: 3, Packets: 9, Bytes: 900}},
	}})
	require.Len(t, lines, 4)
	assert.Equal(t, "0000000000000005 00:00:00:00:00:02        3        9      900", lines[3])
	assert.NotPanics(t, func() { LogSink{}.Report(Report{Reply: Reply{DPID: 1, Kind: KindPort}}) })
}
