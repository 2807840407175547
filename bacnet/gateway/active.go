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
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/edgeo-scada/bacnet-gateway/bacnet"
)

// ActiveDevice is the device selected for one request. The zero value
// selects nothing. Every accessor reads the table at call time, so a value
// never acts on a stale copy of the record.
type ActiveDevice struct {
	table  *Table
	handle Handle
}

// Valid reports whether a device is selected
func (a ActiveDevice) Valid() bool {
	return a.table != nil
}

// Handle returns the selected handle
func (a ActiveDevice) Handle() Handle {
	return a.handle
}

// IsGateway reports whether the gateway device is selected
func (a ActiveDevice) IsGateway() bool {
	return a.Valid() && a.handle == GatewayHandle
}

// Record returns a snapshot of the selected record
func (a ActiveDevice) Record() DeviceRecord {
	if !a.Valid() {
		return DeviceRecord{}
	}
	a.table.mu.RLock()
	defer a.table.mu.RUnlock()
	return a.table.records[a.handle].clone()
}

// Instance returns the device instance number
func (a ActiveDevice) Instance() uint32 {
	return a.Record().Instance
}

// ObjectID returns the device object identifier
func (a ActiveDevice) ObjectID() bacnet.ObjectIdentifier {
	return a.Record().ObjectID()
}

// Address returns the physical address of the device
func (a ActiveDevice) Address() []byte {
	return a.Record().Address
}

// Revision returns the database revision
func (a ActiveDevice) Revision() uint32 {
	return a.Record().Revision
}

func (a ActiveDevice) String() string {
	if !a.Valid() {
		return "none"
	}
	return fmt.Sprintf("#%d(%s)", a.handle, a.ObjectID())
}

// update runs fn on the selected record under the table write lock
func (a ActiveDevice) update(fn func(t *Table, rec *DeviceRecord) error) error {
	if !a.Valid() {
		return ErrNotFound
	}
	a.table.mu.Lock()
	defer a.table.mu.Unlock()
	return fn(a.table, &a.table.records[a.handle])
}

// SetInstanceNumber changes the instance number and increments the revision.
// Instances above bacnet.MaxInstance or held by another device are rejected
// without change.
func (a ActiveDevice) SetInstanceNumber(instance uint32) error {
	return a.update(func(t *Table, rec *DeviceRecord) error {
		if instance > bacnet.MaxInstance {
			return fmt.Errorf("%w: instance %d", ErrOutOfRange, instance)
		}
		if i := t.indexOfLocked(instance); i >= 0 && Handle(i) != a.handle {
			return fmt.Errorf("%w: %d", ErrDuplicateInstance, instance)
		}
		old := rec.Instance
		rec.Instance = instance
		rec.Revision++
		t.metrics.RevisionChanges.Inc()
		t.logger.Info("device instance changed",
			slog.Int("handle", int(a.handle)),
			slog.Uint64("from", uint64(old)),
			slog.Uint64("to", uint64(instance)),
		)
		return nil
	})
}

// SetObjectName changes the object name and increments the revision. Only
// valid UTF-8 strings shorter than MaxNameLen bytes are accepted.
func (a ActiveDevice) SetObjectName(name bacnet.CharacterString) error {
	return a.update(func(t *Table, rec *DeviceRecord) error {
		if name.Encoding != bacnet.CharacterUTF8 || !utf8.Valid(name.Value) {
			return ErrCharacterSet
		}
		if len(name.Value) >= MaxNameLen {
			return fmt.Errorf("%w: object name length %d", ErrOutOfRange, len(name.Value))
		}
		rec.Name = string(name.Value)
		rec.Revision++
		t.metrics.RevisionChanges.Inc()
		return nil
	})
}

// SetDescription changes the description. The revision is unchanged.
func (a ActiveDevice) SetDescription(description string) error {
	return a.update(func(t *Table, rec *DeviceRecord) error {
		if len(description) >= MaxDescriptionLen {
			return fmt.Errorf("%w: description length %d", ErrOutOfRange, len(description))
		}
		rec.Description = description
		return nil
	})
}

// BumpRevision increments the revision
func (a ActiveDevice) BumpRevision() error {
	return a.update(func(t *Table, rec *DeviceRecord) error {
		rec.Revision++
		t.metrics.RevisionChanges.Inc()
		return nil
	})
}
