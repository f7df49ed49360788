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
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// LogSink prints every report as a small table.
type LogSink struct{}

func (LogSink) Report(v Report) {
	for _, line := range formatReport(v) {
		logger.Info(line)
	}
}

func formatReport(v Report) []string {
	var lines []string
	switch v.Kind {
	case KindPort:
		lines = append(lines,
			fmt.Sprintf(">>>>> PORT STATS - S%d <<<<<", v.DPID),
			"datapath         port_no           rx_packets tx_packets",
			"---------------- ----------------- ---------- ----------",
		)
		for _, p := range v.Ports {
			lines = append(lines, fmt.Sprintf("%016X %17d %10d %10d", v.DPID, p.PortNo, p.RxPackets, p.TxPackets))
		}
	case KindFlow:
		lines = append(lines,
			fmt.Sprintf(">>>>> FLOW STATS - S%d <<<<<", v.DPID),
			"datapath         eth-dst           out-port packets  bytes",
			"---------------- ----------------- -------- -------- --------",
		)
		for _, f := range v.Flows {
			// Table-miss entries are not interesting.
			if f.Priority == 0 {
				continue
			}
			lines = append(lines, fmt.Sprintf("%016X %17s %8x %8d %8d", v.DPID, f.EthDst, f.OutPort, f.Packets, f.Bytes))
		}
	}

	return lines
}

// PrometheusSink exports the latest counters as gauges.
type PrometheusSink struct {
	portRxPackets *prometheus.GaugeVec
	portTxPackets *prometheus.GaugeVec
	portRxBytes   *prometheus.GaugeVec
	portTxBytes   *prometheus.GaugeVec
	flowPackets   *prometheus.GaugeVec
	flowBytes     *prometheus.GaugeVec
	replies       *prometheus.CounterVec
}

// NewPrometheusSink registers the metrics with reg.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	factory := promauto.With(reg)
	portLabels := []string{"dpid", "port"}
	flowLabels := []string{"dpid", "table", "eth_dst", "out_port"}

	return &PrometheusSink{
		portRxPackets: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sdn_port_rx_packets",
				Help: "Packets received on a switch port.",
			},
			portLabels,
		),
		portTxPackets: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sdn_port_tx_packets",
				Help: "Packets transmitted on a switch port.",
			},
			portLabels,
		),
		portRxBytes: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sdn_port_rx_bytes",
				Help: "Bytes received on a switch port.",
			},
			portLabels,
		),
		portTxBytes: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sdn_port_tx_bytes",
				Help: "Bytes transmitted on a switch port.",
			},
			portLabels,
		),
		flowPackets: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sdn_flow_packets",
				Help: "Packets matched by a flow entry.",
			},
			flowLabels,
		),
		flowBytes: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sdn_flow_bytes",
				Help: "Bytes matched by a flow entry.",
			},
			flowLabels,
		),
		replies: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sdn_stats_replies_total",
				Help: "Counter replies received from switches.",
			},
			[]string{"dpid", "kind"},
		),
	}
}

func (r *PrometheusSink) Report(v Report) {
	dpid := strconv.FormatUint(v.DPID, 10)
	r.replies.WithLabelValues(dpid, v.Kind.String()).Inc()

	for _, p := range v.Ports {
		port := strconv.FormatUint(uint64(p.PortNo), 10)
		r.portRxPackets.WithLabelValues(dpid, port).Set(float64(p.RxPackets))
		r.portTxPackets.WithLabelValues(dpid, port).Set(float64(p.TxPackets))
		r.portRxBytes.WithLabelValues(dpid, port).Set(float64(p.RxBytes))
		r.portTxBytes.WithLabelValues(dpid, port).Set(float64(p.TxBytes))
	}
	for _, f := range v.Flows {
		labels := []string{
			dpid,
			strconv.FormatUint(uint64(f.TableID), 10),
			f.EthDst.String(),
			strconv.FormatUint(uint64(f.OutPort), 10),
		}
		r.flowPackets.WithLabelValues(labels...).Set(float64(f.Packets))
		r.flowBytes.WithLabelValues(labels...).Set(float64(f.Bytes))
	}
}
