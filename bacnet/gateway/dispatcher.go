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
	"errors"
	"log/slog"

	"github.com/edgeo-scada/bacnet-gateway/bacnet"
	"github.com/edgeo-scada/bacnet-gateway/bacnet/device"
)

// WildcardInstance addresses "this device" in a device object identifier
const WildcardInstance = bacnet.MaxInstance

// Dispatcher serves property access for routed devices. Object identifier,
// object name, description and database revision come from the device
// record; every other property is forwarded unchanged to the base handler.
type Dispatcher struct {
	base   device.Handler
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher delegating to base
func NewDispatcher(base device.Handler, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{base: base, logger: logger}
}

// Handler binds dev to the dispatcher, giving a device.Handler for it
func (d *Dispatcher) Handler(dev ActiveDevice) device.Handler {
	return &routedHandler{dispatcher: d, dev: dev}
}

type routedHandler struct {
	dispatcher *Dispatcher
	dev        ActiveDevice
}

func (h *routedHandler) ReadProperty(req *device.ReadRequest) ([]byte, error) {
	return h.dispatcher.ReadProperty(h.dev, req)
}

func (h *routedHandler) WriteProperty(req *device.WriteRequest) error {
	return h.dispatcher.WriteProperty(h.dev, req)
}

// resolveObject replaces the wildcard device instance with the device's own
// and rejects device objects that belong to another device
func resolveObject(dev ActiveDevice, id bacnet.ObjectIdentifier) (bacnet.ObjectIdentifier, error) {
	if id.Type != bacnet.ObjectTypeDevice {
		return id, nil
	}
	self := dev.ObjectID()
	if id.Instance == WildcardInstance {
		return self, nil
	}
	if id.Instance != self.Instance {
		return id, bacnet.NewBACnetError(bacnet.ErrorClassObject, bacnet.ErrorCodeUnknownObject)
	}
	return id, nil
}

// ReadProperty reads a property of dev
func (d *Dispatcher) ReadProperty(dev ActiveDevice, req *device.ReadRequest) ([]byte, error) {
	if !dev.Valid() {
		return nil, bacnet.NewBACnetError(bacnet.ErrorClassDevice, bacnet.ErrorCodeUnknownDevice)
	}
	metrics := dev.table.metrics
	metrics.Reads.Inc()

	data, err := d.readProperty(dev, req)
	if err != nil {
		metrics.ReadFailures.Inc()
	}
	return data, err
}

func (d *Dispatcher) readProperty(dev ActiveDevice, req *device.ReadRequest) ([]byte, error) {
	id, err := resolveObject(dev, req.ObjectID)
	if err != nil {
		return nil, err
	}

	if id.Type == bacnet.ObjectTypeDevice {
		var data []byte
		switch req.Property {
		case bacnet.PropertyObjectIdentifier:
			data = bacnet.EncodeObjectIdentifierTag(id)
		case bacnet.PropertyObjectName:
			data = device.EncodeString(dev.Record().Name)
		case bacnet.PropertyDescription:
			data = device.EncodeString(dev.Record().Description)
		case bacnet.PropertyDatabaseRevision:
			data = bacnet.EncodeUnsignedTag(dev.Revision())
		}
		if data != nil {
			if req.ArrayIndex != nil {
				return nil, bacnet.PropertyError(bacnet.ErrorCodePropertyIsNotAnArray)
			}
			return data, nil
		}
	}

	dev.table.metrics.Delegated.Inc()
	forward := *req
	forward.ObjectID = id
	return d.base.ReadProperty(&forward)
}

// WriteProperty writes a property of dev. The value is decoded before
// anything else; an undecodable value is value-out-of-range and nothing
// changes.
func (d *Dispatcher) WriteProperty(dev ActiveDevice, req *device.WriteRequest) error {
	if !dev.Valid() {
		return bacnet.NewBACnetError(bacnet.ErrorClassDevice, bacnet.ErrorCodeUnknownDevice)
	}
	metrics := dev.table.metrics
	metrics.Writes.Inc()

	err := d.writeProperty(dev, req)
	if err != nil {
		metrics.WriteFailures.Inc()
		d.logger.Debug("write rejected",
			slog.String("device", dev.String()),
			slog.String("property", req.Property.String()),
			slog.String("error", err.Error()),
		)
	}
	return err
}

func (d *Dispatcher) writeProperty(dev ActiveDevice, req *device.WriteRequest) error {
	value, n, err := bacnet.DecodeApplicationValue(req.Value)
	if err != nil || n != len(req.Value) {
		return bacnet.PropertyError(bacnet.ErrorCodeValueOutOfRange)
	}

	id, err := resolveObject(dev, req.ObjectID)
	if err != nil {
		return err
	}

	if id.Type == bacnet.ObjectTypeDevice {
		switch req.Property {
		case bacnet.PropertyObjectIdentifier:
			if req.ArrayIndex != nil {
				return bacnet.PropertyError(bacnet.ErrorCodePropertyIsNotAnArray)
			}
			if value.Tag != bacnet.TagObjectID || value.ObjectID.Type != bacnet.ObjectTypeDevice {
				return bacnet.PropertyError(bacnet.ErrorCodeValueOutOfRange)
			}
			if err := dev.SetInstanceNumber(value.ObjectID.Instance); err != nil {
				return bacnet.PropertyError(bacnet.ErrorCodeValueOutOfRange)
			}
			return nil

		case bacnet.PropertyObjectName:
			if req.ArrayIndex != nil {
				return bacnet.PropertyError(bacnet.ErrorCodePropertyIsNotAnArray)
			}
			if value.Tag != bacnet.TagCharacterString {
				return bacnet.PropertyError(bacnet.ErrorCodeInvalidDataType)
			}
			if len(value.CharacterString.Value) == 0 {
				return bacnet.PropertyError(bacnet.ErrorCodeValueOutOfRange)
			}
			err := dev.SetObjectName(value.CharacterString)
			switch {
			case errors.Is(err, ErrCharacterSet):
				return bacnet.PropertyError(bacnet.ErrorCodeCharacterSetNotSupported)
			case err != nil:
				return bacnet.PropertyError(bacnet.ErrorCodeValueOutOfRange)
			}
			return nil
		}
	}

	dev.table.metrics.Delegated.Inc()
	forward := *req
	forward.ObjectID = id
	return d.base.WriteProperty(&forward)
}
