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

package device

import (
	"log/slog"
	"sync"

	"github.com/edgeo-scada/bacnet-gateway/bacnet"
)

// readOnly lists the properties Object serves but refuses to write
var readOnly = map[bacnet.PropertyIdentifier]bool{
	bacnet.PropertyObjectIdentifier:           true,
	bacnet.PropertyObjectType:                 true,
	bacnet.PropertySystemStatus:               true,
	bacnet.PropertyVendorName:                 true,
	bacnet.PropertyVendorIdentifier:           true,
	bacnet.PropertyModelName:                  true,
	bacnet.PropertyFirmwareRevision:           true,
	bacnet.PropertyApplicationSoftwareVersion: true,
	bacnet.PropertyProtocolVersion:            true,
	bacnet.PropertyProtocolRevision:           true,
	bacnet.PropertyObjectList:                 true,
	bacnet.PropertyMaxApduLengthAccepted:      true,
	bacnet.PropertySegmentationSupported:      true,
	bacnet.PropertyApduTimeout:                true,
	bacnet.PropertyNumberOfApduRetries:        true,
	bacnet.PropertyDeviceAddressBinding:       true,
	bacnet.PropertyDatabaseRevision:           true,
}

// Object is a BACnet Device object. It is safe for concurrent use.
type Object struct {
	opts   *objectOptions
	logger *slog.Logger

	mu          sync.RWMutex
	name        string
	description string
	location    string
	revision    uint32
}

// New creates a Device object
func New(opts ...Option) *Object {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	return &Object{
		opts:        options,
		logger:      options.logger,
		name:        options.name,
		description: options.description,
		location:    options.location,
	}
}

// Identifier returns the device object identifier
func (o *Object) Identifier() bacnet.ObjectIdentifier {
	return bacnet.NewObjectIdentifier(bacnet.ObjectTypeDevice, o.opts.instance)
}

// Location returns the current location
func (o *Object) Location() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.location
}

func (o *Object) checkTarget(id bacnet.ObjectIdentifier, prop bacnet.PropertyIdentifier, index *uint32) error {
	if id.Type != bacnet.ObjectTypeDevice {
		return bacnet.NewBACnetError(bacnet.ErrorClassObject, bacnet.ErrorCodeUnknownObject)
	}
	if index != nil && prop != bacnet.PropertyObjectList {
		return bacnet.PropertyError(bacnet.ErrorCodePropertyIsNotAnArray)
	}
	return nil
}

// ReadProperty implements Handler. The object list holds the requested
// device object so routed devices each report themselves.
func (o *Object) ReadProperty(req *ReadRequest) ([]byte, error) {
	if err := o.checkTarget(req.ObjectID, req.Property, req.ArrayIndex); err != nil {
		return nil, err
	}

	o.mu.RLock()
	defer o.mu.RUnlock()

	switch req.Property {
	case bacnet.PropertyObjectIdentifier:
		return bacnet.EncodeObjectIdentifierTag(o.Identifier()), nil
	case bacnet.PropertyObjectName:
		return EncodeString(o.name), nil
	case bacnet.PropertyObjectType:
		return bacnet.EncodeEnumeratedTag(uint32(bacnet.ObjectTypeDevice)), nil
	case bacnet.PropertyDescription:
		return EncodeString(o.description), nil
	case bacnet.PropertyLocation:
		return EncodeString(o.location), nil
	case bacnet.PropertySystemStatus:
		return bacnet.EncodeEnumeratedTag(uint32(o.opts.status)), nil
	case bacnet.PropertyVendorName:
		return EncodeString(o.opts.vendorName), nil
	case bacnet.PropertyVendorIdentifier:
		return bacnet.EncodeUnsignedTag(uint32(o.opts.vendorID)), nil
	case bacnet.PropertyModelName:
		return EncodeString(o.opts.modelName), nil
	case bacnet.PropertyFirmwareRevision:
		return EncodeString(o.opts.firmwareRevision), nil
	case bacnet.PropertyApplicationSoftwareVersion:
		return EncodeString(o.opts.softwareVersion), nil
	case bacnet.PropertyProtocolVersion:
		return bacnet.EncodeUnsignedTag(o.opts.protocolVersion), nil
	case bacnet.PropertyProtocolRevision:
		return bacnet.EncodeUnsignedTag(o.opts.protocolRevision), nil
	case bacnet.PropertyMaxApduLengthAccepted:
		return bacnet.EncodeUnsignedTag(o.opts.maxAPDU), nil
	case bacnet.PropertySegmentationSupported:
		return bacnet.EncodeEnumeratedTag(uint32(o.opts.segmentation)), nil
	case bacnet.PropertyApduTimeout:
		return bacnet.EncodeUnsignedTag(uint32(o.opts.apduTimeout.Milliseconds())), nil
	case bacnet.PropertyNumberOfApduRetries:
		return bacnet.EncodeUnsignedTag(o.opts.apduRetries), nil
	case bacnet.PropertyDeviceAddressBinding:
		// empty list
		return []byte{}, nil
	case bacnet.PropertyDatabaseRevision:
		return bacnet.EncodeUnsignedTag(o.revision), nil
	case bacnet.PropertyObjectList:
		return objectList(req.ObjectID, req.ArrayIndex)
	default:
		return nil, bacnet.PropertyError(bacnet.ErrorCodeUnknownProperty)
	}
}

func objectList(self bacnet.ObjectIdentifier, index *uint32) ([]byte, error) {
	list := []bacnet.ObjectIdentifier{self}

	if index == nil {
		var data []byte
		for _, id := range list {
			data = append(data, bacnet.EncodeObjectIdentifierTag(id)...)
		}
		return data, nil
	}

	switch {
	case *index == 0:
		return bacnet.EncodeUnsignedTag(uint32(len(list))), nil
	case int(*index) <= len(list):
		return bacnet.EncodeObjectIdentifierTag(list[*index-1]), nil
	default:
		return nil, bacnet.PropertyError(bacnet.ErrorCodeInvalidArrayIndex)
	}
}

// WriteProperty implements Handler. Name, description and location are
// writable; a successful name change increments the database revision.
func (o *Object) WriteProperty(req *WriteRequest) error {
	if err := o.checkTarget(req.ObjectID, req.Property, req.ArrayIndex); err != nil {
		return err
	}

	switch req.Property {
	case bacnet.PropertyObjectName:
		name, err := DecodeBoundedString(req.Value, MaxNameLen)
		if err != nil {
			return err
		}
		o.mu.Lock()
		o.name = name
		o.revision++
		o.mu.Unlock()

	case bacnet.PropertyDescription, bacnet.PropertyLocation:
		s, err := DecodeString(req.Value)
		if err != nil {
			return err
		}
		if len(s) >= MaxDescriptionLen {
			return bacnet.PropertyError(bacnet.ErrorCodeValueOutOfRange)
		}
		o.mu.Lock()
		if req.Property == bacnet.PropertyLocation {
			o.location = s
		} else {
			o.description = s
		}
		o.mu.Unlock()

	default:
		if readOnly[req.Property] {
			return bacnet.PropertyError(bacnet.ErrorCodeWriteAccessDenied)
		}
		return bacnet.PropertyError(bacnet.ErrorCodeUnknownProperty)
	}

	o.logger.Debug("property written",
		slog.String("object", req.ObjectID.String()),
		slog.String("property", req.Property.String()),
	)
	return nil
}
