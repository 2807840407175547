// Copyright 2025 Edgeo SCADA
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/edgeo-scada/bacnet-gateway/bacnet"
)

const namespace = "bacnet"

type sample struct {
	desc  *prometheus.Desc
	kind  prometheus.ValueType
	value func() int64
}

// Collector exports gateway and server metrics to Prometheus
type Collector struct {
	samples    []sample
	handleDesc *prometheus.Desc
	handleTime *bacnet.LatencyHistogram
}

// NewCollector creates a collector over the metrics of s and its table
func NewCollector(s *Server) *Collector {
	c := &Collector{
		handleDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "server", "request_duration_seconds"),
			"Time spent answering a confirmed request.",
			nil, nil,
		),
		handleTime: s.metrics.HandleTime,
	}

	g := s.table.Metrics()
	c.gauge("gateway", "devices", "Devices in the gateway table.", g.Devices.Value)
	c.counter("gateway", "devices_added_total", "Devices added to the table.", &g.DevicesAdded)
	c.counter("gateway", "add_failures_total", "Rejected device additions.", &g.AddFailures)
	c.counter("gateway", "revision_changes_total", "Database revision increments.", &g.RevisionChanges)
	c.counter("gateway", "lookups_total", "Routing lookups.", &g.Lookups)
	c.counter("gateway", "matches_total", "Devices matched by routing lookups.", &g.Matches)
	c.counter("gateway", "unreachable_total", "Lookups for unreachable networks.", &g.Unreachable)
	c.counter("gateway", "reads_total", "Property reads.", &g.Reads)
	c.counter("gateway", "read_failures_total", "Failed property reads.", &g.ReadFailures)
	c.counter("gateway", "writes_total", "Property writes.", &g.Writes)
	c.counter("gateway", "write_failures_total", "Failed property writes.", &g.WriteFailures)
	c.counter("gateway", "delegated_total", "Property accesses forwarded to the device object.", &g.Delegated)
	c.counter("gateway", "rejected_total", "Services refused for routed devices.", &g.Rejected)

	m := s.metrics
	c.counter("server", "packets_received_total", "Packets received.", &m.PacketsReceived)
	c.counter("server", "packets_dropped_total", "Packets dropped as malformed or unsupported.", &m.PacketsDropped)
	c.counter("server", "unroutable_total", "Requests for networks the gateway does not route.", &m.Unroutable)
	c.counter("server", "network_messages_total", "Network layer messages received.", &m.NetworkMessages)
	c.counter("server", "router_queries_total", "Who-Is-Router-To-Network queries received.", &m.RouterQueries)
	c.counter("server", "announcements_total", "I-Am-Router-To-Network broadcasts sent.", &m.Announcements)
	c.counter("server", "requests_total", "Confirmed requests received.", &m.Requests)
	c.counter("server", "acks_sent_total", "Acknowledgements sent.", &m.AcksSent)
	c.counter("server", "errors_sent_total", "Error PDUs sent.", &m.ErrorsSent)
	c.counter("server", "rejects_sent_total", "Reject PDUs sent.", &m.RejectsSent)
	c.counter("server", "aborts_sent_total", "Abort PDUs sent.", &m.AbortsSent)
	c.counter("server", "suppressed_total", "Requests ignored while communication is disabled.", &m.Suppressed)
	c.counter("server", "bytes_sent_total", "Bytes sent.", &m.BytesSent)
	c.counter("server", "bytes_received_total", "Bytes received.", &m.BytesRecv)
	c.counter("server", "send_failures_total", "Replies that could not be sent.", &m.SendFailures)

	return c
}

func (c *Collector) counter(subsystem, name, help string, counter *bacnet.Counter) {
	c.samples = append(c.samples, sample{
		desc:  prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, name), help, nil, nil),
		kind:  prometheus.CounterValue,
		value: counter.Value,
	})
}

func (c *Collector) gauge(subsystem, name, help string, value func() int64) {
	c.samples = append(c.samples, sample{
		desc:  prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, name), help, nil, nil),
		kind:  prometheus.GaugeValue,
		value: value,
	})
}

// Describe implements prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, s := range c.samples {
		ch <- s.desc
	}
	ch <- c.handleDesc
}

// Collect implements prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, s := range c.samples {
		ch <- prometheus.MustNewConstMetric(s.desc, s.kind, float64(s.value()))
	}

	stats := c.handleTime.Stats()
	buckets := make(map[float64]uint64, len(bacnet.BucketBounds))
	var cumulative int64
	for i, bound := range bacnet.BucketBounds {
		cumulative += stats.Buckets[i]
		buckets[bound.Seconds()] = uint64(cumulative)
	}
	ch <- prometheus.MustNewConstHistogram(c.handleDesc, uint64(stats.Count), stats.Sum.Seconds(), buckets)
}
