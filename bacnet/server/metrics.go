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
	"time"

	"github.com/edgeo-scada/bacnet-gateway/bacnet"
)

// Metrics holds server metrics
type Metrics struct {
	// Packets
	PacketsReceived bacnet.Counter
	PacketsDropped  bacnet.Counter
	Unroutable      bacnet.Counter

	// Network layer
	NetworkMessages bacnet.Counter
	RouterQueries   bacnet.Counter
	Announcements   bacnet.Counter

	// Application layer
	Requests     bacnet.Counter
	AcksSent     bacnet.Counter
	ErrorsSent   bacnet.Counter
	RejectsSent  bacnet.Counter
	AbortsSent   bacnet.Counter
	Suppressed   bacnet.Counter
	HandleTime   *bacnet.LatencyHistogram
	BytesSent    bacnet.Counter
	BytesRecv    bacnet.Counter
	SendFailures bacnet.Counter

	startTime time.Time
}

// NewMetrics creates a new Metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		HandleTime: bacnet.NewLatencyHistogram(),
		startTime:  time.Now(),
	}
}

// Uptime returns the time since metrics started
func (m *Metrics) Uptime() time.Duration {
	return time.Since(m.startTime)
}

// Snapshot returns a snapshot of current metrics
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Uptime: m.Uptime(),

		PacketsReceived: m.PacketsReceived.Value(),
		PacketsDropped:  m.PacketsDropped.Value(),
		Unroutable:      m.Unroutable.Value(),

		NetworkMessages: m.NetworkMessages.Value(),
		RouterQueries:   m.RouterQueries.Value(),
		Announcements:   m.Announcements.Value(),

		Requests:    m.Requests.Value(),
		AcksSent:    m.AcksSent.Value(),
		ErrorsSent:  m.ErrorsSent.Value(),
		RejectsSent: m.RejectsSent.Value(),
		AbortsSent:  m.AbortsSent.Value(),
		Suppressed:  m.Suppressed.Value(),

		HandleTime: m.HandleTime.Stats(),

		BytesSent:    m.BytesSent.Value(),
		BytesRecv:    m.BytesRecv.Value(),
		SendFailures: m.SendFailures.Value(),
	}
}

// MetricsSnapshot is a point-in-time snapshot of metrics
type MetricsSnapshot struct {
	Uptime time.Duration

	PacketsReceived int64
	PacketsDropped  int64
	Unroutable      int64

	NetworkMessages int64
	RouterQueries   int64
	Announcements   int64

	Requests    int64
	AcksSent    int64
	ErrorsSent  int64
	RejectsSent int64
	AbortsSent  int64
	Suppressed  int64

	HandleTime bacnet.LatencyStats

	BytesSent    int64
	BytesRecv    int64
	SendFailures int64
}
