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

package gateway

import (
	"time"

	"github.com/edgeo-scada/bacnet-gateway/bacnet"
)

// Metrics holds routing core metrics
type Metrics struct {
	// Table
	DevicesAdded    bacnet.Counter
	AddFailures     bacnet.Counter
	RevisionChanges bacnet.Counter

	// Resolution
	Lookups     bacnet.Counter
	Matches     bacnet.Counter
	Unreachable bacnet.Counter

	// Dispatch
	Reads         bacnet.Counter
	ReadFailures  bacnet.Counter
	Writes        bacnet.Counter
	WriteFailures bacnet.Counter
	Delegated     bacnet.Counter

	// Service gate
	Rejected bacnet.Counter

	Devices bacnet.Gauge

	startTime time.Time
}

// NewMetrics creates a new Metrics instance
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// Uptime returns the time since metrics started
func (m *Metrics) Uptime() time.Duration {
	return time.Since(m.startTime)
}

// Snapshot returns a snapshot of current metrics
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Uptime: m.Uptime(),

		DevicesAdded:    m.DevicesAdded.Value(),
		AddFailures:     m.AddFailures.Value(),
		RevisionChanges: m.RevisionChanges.Value(),

		Lookups:     m.Lookups.Value(),
		Matches:     m.Matches.Value(),
		Unreachable: m.Unreachable.Value(),

		Reads:         m.Reads.Value(),
		ReadFailures:  m.ReadFailures.Value(),
		Writes:        m.Writes.Value(),
		WriteFailures: m.WriteFailures.Value(),
		Delegated:     m.Delegated.Value(),

		Rejected: m.Rejected.Value(),

		Devices: m.Devices.Value(),
	}
}

// MetricsSnapshot is a point-in-time snapshot of metrics
type MetricsSnapshot struct {
	Uptime time.Duration

	DevicesAdded    int64
	AddFailures     int64
	RevisionChanges int64

	Lookups     int64
	Matches     int64
	Unreachable int64

	Reads         int64
	ReadFailures  int64
	Writes        int64
	WriteFailures int64
	Delegated     int64

	Rejected int64

	Devices int64
}
