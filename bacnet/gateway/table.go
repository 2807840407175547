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

// Package gateway is the routing core of a BACnet gateway: one physical node
// presenting a gateway Device object plus routed virtual devices on a
// downstream network.
//
// A Table owns every device record. A Resolver maps a destination address to
// the devices it names, a Dispatcher serves property reads and writes for a
// selected device, and Approve restricts administrative services to the
// gateway. Selection is an explicit ActiveDevice value threaded through those
// calls; there is no shared "current device".
package gateway

import (
	"fmt"
	"log/slog"
	"sync"
	"unicode/utf8"

	"github.com/edgeo-scada/bacnet-gateway/bacnet"
)

// Handle addresses a record in a Table. Handle 0 is the gateway.
type Handle int

// GatewayHandle is the handle of the gateway device
const GatewayHandle Handle = 0

// DeviceRecord is a snapshot of one device
type DeviceRecord struct {
	Instance    uint32
	Name        string
	Description string
	Address     []byte
	Revision    uint32
}

// ObjectID returns the device object identifier
func (r DeviceRecord) ObjectID() bacnet.ObjectIdentifier {
	return bacnet.NewObjectIdentifier(bacnet.ObjectTypeDevice, r.Instance)
}

func (r DeviceRecord) clone() DeviceRecord {
	r.Address = append([]byte(nil), r.Address...)
	return r
}

// Table is a fixed-capacity, append-only device table. It is safe for
// concurrent use.
type Table struct {
	mu       sync.RWMutex
	records  []DeviceRecord
	capacity int

	logger  *slog.Logger
	metrics *Metrics
}

// NewTable creates an empty table
func NewTable(opts ...Option) *Table {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	if options.metrics == nil {
		options.metrics = NewMetrics()
	}

	return &Table{
		records:  make([]DeviceRecord, 0, options.capacity),
		capacity: options.capacity,
		logger:   options.logger,
		metrics:  options.metrics,
	}
}

// Metrics returns the table metrics
func (t *Table) Metrics() *Metrics {
	return t.metrics
}

// Len returns the number of occupied entries
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}

// Cap returns the fixed capacity
func (t *Table) Cap() int {
	return t.capacity
}

// AddDevice appends a device and returns it selected. The first device added
// is the gateway. A full table is left unchanged.
func (t *Table) AddDevice(instance uint32, opts ...DeviceOption) (ActiveDevice, error) {
	options := &deviceOptions{}
	for _, opt := range opts {
		opt(options)
	}

	rec := DeviceRecord{
		Instance:    instance,
		Name:        DefaultName,
		Description: DefaultDescription,
		Address:     options.address,
	}
	if options.name != nil {
		rec.Name = *options.name
	}
	if options.description != nil {
		rec.Description = *options.description
	}

	if err := validateRecord(rec); err != nil {
		t.metrics.AddFailures.Inc()
		return ActiveDevice{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.records) >= t.capacity {
		t.metrics.AddFailures.Inc()
		return ActiveDevice{}, ErrTableFull
	}
	if t.indexOfLocked(instance) >= 0 {
		t.metrics.AddFailures.Inc()
		return ActiveDevice{}, fmt.Errorf("%w: %d", ErrDuplicateInstance, instance)
	}

	t.records = append(t.records, rec)
	h := Handle(len(t.records) - 1)

	t.metrics.DevicesAdded.Inc()
	t.metrics.Devices.Set(int64(len(t.records)))
	t.logger.Debug("device added",
		slog.Int("handle", int(h)),
		slog.Uint64("instance", uint64(instance)),
		slog.String("name", rec.Name),
	)

	return ActiveDevice{table: t, handle: h}, nil
}

func validateRecord(rec DeviceRecord) error {
	if rec.Instance > bacnet.MaxInstance {
		return fmt.Errorf("%w: instance %d", ErrOutOfRange, rec.Instance)
	}
	if !utf8.ValidString(rec.Name) {
		return fmt.Errorf("%w: object name", ErrCharacterSet)
	}
	if len(rec.Name) >= MaxNameLen {
		return fmt.Errorf("%w: object name length %d", ErrOutOfRange, len(rec.Name))
	}
	if len(rec.Description) >= MaxDescriptionLen {
		return fmt.Errorf("%w: description length %d", ErrOutOfRange, len(rec.Description))
	}
	return nil
}

// Get returns a snapshot of the record at h
func (t *Table) Get(h Handle) (DeviceRecord, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if !t.validLocked(h) {
		return DeviceRecord{}, fmt.Errorf("%w: handle %d", ErrNotFound, h)
	}
	return t.records[h].clone(), nil
}

// Select returns the device at h
func (t *Table) Select(h Handle) (ActiveDevice, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if !t.validLocked(h) {
		return ActiveDevice{}, fmt.Errorf("%w: handle %d", ErrNotFound, h)
	}
	return ActiveDevice{table: t, handle: h}, nil
}

// Gateway returns the gateway device
func (t *Table) Gateway() (ActiveDevice, error) {
	return t.Select(GatewayHandle)
}

// InstanceToHandle returns the handle of the device with the given instance.
// Unknown instances resolve to the gateway.
func (t *Table) InstanceToHandle(instance uint32) Handle {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if i := t.indexOfLocked(instance); i >= 0 {
		return Handle(i)
	}
	return GatewayHandle
}

// SelectInstance selects the device with the given instance. Like
// InstanceToHandle it falls back to the gateway; ok reports whether the
// selected device really has that instance.
func (t *Table) SelectInstance(instance uint32) (dev ActiveDevice, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if len(t.records) == 0 {
		return ActiveDevice{}, false
	}
	if i := t.indexOfLocked(instance); i >= 0 {
		return ActiveDevice{table: t, handle: Handle(i)}, true
	}
	return ActiveDevice{table: t, handle: GatewayHandle}, false
}

// Records returns a snapshot of every occupied entry in handle order
func (t *Table) Records() []DeviceRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]DeviceRecord, len(t.records))
	for i, rec := range t.records {
		out[i] = rec.clone()
	}
	return out
}

func (t *Table) validLocked(h Handle) bool {
	return h >= 0 && int(h) < len(t.records)
}

func (t *Table) indexOfLocked(instance uint32) int {
	for i := range t.records {
		if t.records[i].Instance == instance {
			return i
		}
	}
	return -1
}
