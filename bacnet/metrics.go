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

package bacnet

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Counter is a thread-safe monotonic counter
type Counter struct {
	v atomic.Int64
}

// Add adds a delta to the counter
func (c *Counter) Add(delta int64) { c.v.Add(delta) }

// Inc increments the counter by 1
func (c *Counter) Inc() { c.v.Add(1) }

// Value returns the current counter value
func (c *Counter) Value() int64 { return c.v.Load() }

// Reset resets the counter to 0
func (c *Counter) Reset() { c.v.Store(0) }

// Gauge is a thread-safe gauge that can go up and down
type Gauge struct {
	v atomic.Int64
}

// Set sets the gauge value
func (g *Gauge) Set(value int64) { g.v.Store(value) }

// Inc increments the gauge by 1
func (g *Gauge) Inc() { g.v.Add(1) }

// Dec decrements the gauge by 1
func (g *Gauge) Dec() { g.v.Add(-1) }

// Value returns the current gauge value
func (g *Gauge) Value() int64 { return g.v.Load() }

// LatencyHistogram tracks latency measurements
type LatencyHistogram struct {
	mu      sync.RWMutex
	count   int64
	sum     int64 // nanoseconds
	min     int64
	max     int64
	buckets []int64 // counts for each bucket
}

// NewLatencyHistogram creates a histogram with one bucket per BucketBounds
// entry plus an overflow bucket
func NewLatencyHistogram() *LatencyHistogram {
	return &LatencyHistogram{
		min:     -1,
		buckets: make([]int64, len(BucketBounds)+1),
	}
}

// Record records a latency measurement. A measurement equal to a bound
// falls in that bound's bucket.
func (h *LatencyHistogram) Record(d time.Duration) {
	ns := d.Nanoseconds()
	bucket := sort.Search(len(BucketBounds), func(i int) bool { return d <= BucketBounds[i] })

	h.mu.Lock()
	defer h.mu.Unlock()

	h.count++
	h.sum += ns
	if h.min < 0 || ns < h.min {
		h.min = ns
	}
	if ns > h.max {
		h.max = ns
	}
	h.buckets[bucket]++
}

// Stats returns histogram statistics
func (h *LatencyHistogram) Stats() LatencyStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := LatencyStats{
		Count:   h.count,
		Buckets: make([]int64, len(h.buckets)),
	}
	copy(stats.Buckets, h.buckets)

	if h.count > 0 {
		stats.Sum = time.Duration(h.sum)
		stats.Min = time.Duration(h.min)
		stats.Max = time.Duration(h.max)
		stats.Avg = time.Duration(h.sum / h.count)
	}

	return stats
}

// Reset resets the histogram
func (h *LatencyHistogram) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.count = 0
	h.sum = 0
	h.min = -1
	h.max = 0
	for i := range h.buckets {
		h.buckets[i] = 0
	}
}

// LatencyStats contains latency statistics
type LatencyStats struct {
	Count   int64
	Sum     time.Duration
	Min     time.Duration
	Max     time.Duration
	Avg     time.Duration
	Buckets []int64
}

// BucketBounds are the upper bounds of the LatencyHistogram buckets except
// the last, which is unbounded
var BucketBounds = []time.Duration{
	time.Millisecond,
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
	time.Second,
}

// Metrics holds client metrics
type Metrics struct {
	// Request metrics
	RequestsSent      Counter
	RequestsSucceeded Counter
	RequestsFailed    Counter
	RequestsTimedOut  Counter

	// Response metrics
	ResponsesReceived Counter
	ErrorsReceived    Counter
	RejectsReceived   Counter
	AbortsReceived    Counter

	// Network layer
	RouterQueriesSent Counter
	RoutersDiscovered Counter

	// Latency
	RequestLatency *LatencyHistogram

	// Bytes
	BytesSent     Counter
	BytesReceived Counter

	ActiveRequests Gauge

	startTime    time.Time
	lastActivity atomic.Int64
}

// NewMetrics creates a new Metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		RequestLatency: NewLatencyHistogram(),
		startTime:      time.Now(),
	}
}

// RecordActivity records the last activity time
func (m *Metrics) RecordActivity() {
	m.lastActivity.Store(time.Now().UnixNano())
}

// LastActivity returns the last activity time
func (m *Metrics) LastActivity() time.Time {
	ns := m.lastActivity.Load()
	if ns == 0 {
		return m.startTime
	}
	return time.Unix(0, ns)
}

// Uptime returns the time since metrics started
func (m *Metrics) Uptime() time.Duration {
	return time.Since(m.startTime)
}

// Snapshot returns a snapshot of current metrics
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Uptime: m.Uptime(),

		RequestsSent:      m.RequestsSent.Value(),
		RequestsSucceeded: m.RequestsSucceeded.Value(),
		RequestsFailed:    m.RequestsFailed.Value(),
		RequestsTimedOut:  m.RequestsTimedOut.Value(),

		ResponsesReceived: m.ResponsesReceived.Value(),
		ErrorsReceived:    m.ErrorsReceived.Value(),
		RejectsReceived:   m.RejectsReceived.Value(),
		AbortsReceived:    m.AbortsReceived.Value(),

		RouterQueriesSent: m.RouterQueriesSent.Value(),
		RoutersDiscovered: m.RoutersDiscovered.Value(),

		LatencyStats: m.RequestLatency.Stats(),

		BytesSent:     m.BytesSent.Value(),
		BytesReceived: m.BytesReceived.Value(),

		ActiveRequests: m.ActiveRequests.Value(),

		LastActivity: m.LastActivity(),
	}
}

// MetricsSnapshot is a point-in-time snapshot of metrics
type MetricsSnapshot struct {
	Uptime time.Duration

	RequestsSent      int64
	RequestsSucceeded int64
	RequestsFailed    int64
	RequestsTimedOut  int64

	ResponsesReceived int64
	ErrorsReceived    int64
	RejectsReceived   int64
	AbortsReceived    int64

	RouterQueriesSent int64
	RoutersDiscovered int64

	LatencyStats LatencyStats

	BytesSent     int64
	BytesReceived int64

	ActiveRequests int64

	LastActivity time.Time
}
