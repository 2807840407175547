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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgeo-scada/bacnet-gateway/bacnet"
	"github.com/edgeo-scada/bacnet-gateway/bacnet/device"
)

// recordingHandler records the requests forwarded to the base
type recordingHandler struct {
	reads  []device.ReadRequest
	writes []device.WriteRequest
}

func (h *recordingHandler) ReadProperty(req *device.ReadRequest) ([]byte, error) {
	h.reads = append(h.reads, *req)
	if req.Property == bacnet.PropertyVendorName {
		return device.EncodeString("ACME"), nil
	}
	return nil, bacnet.PropertyError(bacnet.ErrorCodeUnknownProperty)
}

func (h *recordingHandler) WriteProperty(req *device.WriteRequest) error {
	h.writes = append(h.writes, *req)
	return nil
}

func deviceOID(instance uint32) bacnet.ObjectIdentifier {
	return bacnet.NewObjectIdentifier(bacnet.ObjectTypeDevice, instance)
}

func decodeOne(t *testing.T, data []byte) bacnet.ApplicationValue {
	t.Helper()
	v, n, err := bacnet.DecodeApplicationValue(data)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	return v
}

func TestDispatcherReadOverrides(t *testing.T) {
	table := newTestTable(t)
	base := &recordingHandler{}
	d := NewDispatcher(base, nil)
	dev, err := table.Select(1)
	require.NoError(t, err)

	data, err := d.ReadProperty(dev, &device.ReadRequest{ObjectID: deviceOID(2001), Property: bacnet.PropertyObjectIdentifier})
	require.NoError(t, err)
	assert.Equal(t, deviceOID(2001), decodeOne(t, data).ObjectID)

	data, err = d.ReadProperty(dev, &device.ReadRequest{ObjectID: deviceOID(2001), Property: bacnet.PropertyObjectName})
	require.NoError(t, err)
	assert.Equal(t, DefaultName, decodeOne(t, data).String())

	data, err = d.ReadProperty(dev, &device.ReadRequest{ObjectID: deviceOID(2001), Property: bacnet.PropertyDescription})
	require.NoError(t, err)
	assert.Equal(t, DefaultDescription, decodeOne(t, data).String())

	data, err = d.ReadProperty(dev, &device.ReadRequest{ObjectID: deviceOID(2001), Property: bacnet.PropertyDatabaseRevision})
	require.NoError(t, err)
	assert.Equal(t, uint32(0), decodeOne(t, data).Unsigned)

	assert.Empty(t, base.reads)
}

func TestDispatcherReadDelegates(t *testing.T) {
	table := newTestTable(t)
	base := &recordingHandler{}
	d := NewDispatcher(base, nil)
	dev, err := table.Select(2)
	require.NoError(t, err)

	index := uint32(1)
	req := &device.ReadRequest{ObjectID: deviceOID(WildcardInstance), Property: bacnet.PropertyVendorName, ArrayIndex: &index}
	data, err := d.ReadProperty(dev, req)
	require.NoError(t, err)
	assert.Equal(t, "ACME", decodeOne(t, data).String())

	require.Len(t, base.reads, 1)
	forwarded := base.reads[0]
	assert.Equal(t, deviceOID(2002), forwarded.ObjectID)
	assert.Equal(t, bacnet.PropertyVendorName, forwarded.Property)
	assert.Equal(t, &index, forwarded.ArrayIndex)

	// unknown properties are reported by the base
	_, err = d.ReadProperty(dev, &device.ReadRequest{ObjectID: deviceOID(2002), Property: bacnet.PropertyLocation})
	assert.True(t, bacnet.IsPropertyNotFound(err))
	assert.Len(t, base.reads, 2)
}

func TestDispatcherReadErrors(t *testing.T) {
	table := newTestTable(t)
	d := NewDispatcher(&recordingHandler{}, nil)
	dev, err := table.Select(1)
	require.NoError(t, err)

	_, err = d.ReadProperty(dev, &device.ReadRequest{ObjectID: deviceOID(2002), Property: bacnet.PropertyObjectName})
	assert.ErrorIs(t, err, bacnet.NewBACnetError(bacnet.ErrorClassObject, bacnet.ErrorCodeUnknownObject))

	index := uint32(0)
	_, err = d.ReadProperty(dev, &device.ReadRequest{ObjectID: deviceOID(2001), Property: bacnet.PropertyObjectName, ArrayIndex: &index})
	assert.ErrorIs(t, err, bacnet.PropertyError(bacnet.ErrorCodePropertyIsNotAnArray))

	_, err = d.ReadProperty(ActiveDevice{}, &device.ReadRequest{ObjectID: deviceOID(2001), Property: bacnet.PropertyObjectName})
	assert.ErrorIs(t, err, bacnet.NewBACnetError(bacnet.ErrorClassDevice, bacnet.ErrorCodeUnknownDevice))

	assert.Equal(t, int64(2), table.Metrics().ReadFailures.Value())
}

func TestDispatcherWriteObjectIdentifier(t *testing.T) {
	table := newTestTable(t)
	base := &recordingHandler{}
	d := NewDispatcher(base, nil)
	dev, err := table.Select(1)
	require.NoError(t, err)

	write := func(value []byte) error {
		return d.WriteProperty(dev, &device.WriteRequest{
			ObjectID: deviceOID(WildcardInstance),
			Property: bacnet.PropertyObjectIdentifier,
			Value:    value,
		})
	}

	outOfRange := bacnet.PropertyError(bacnet.ErrorCodeValueOutOfRange)
	assert.ErrorIs(t, write(bacnet.EncodeUnsignedTag(3001)), outOfRange)
	assert.ErrorIs(t, write(bacnet.EncodeObjectIdentifierTag(bacnet.NewObjectIdentifier(bacnet.ObjectTypeAnalogInput, 3001))), outOfRange)
	assert.ErrorIs(t, write(bacnet.EncodeObjectIdentifierTag(deviceOID(2002))), outOfRange)
	assert.ErrorIs(t, write([]byte{0xC4, 0x02}), outOfRange)
	assert.Equal(t, uint32(0), dev.Revision())

	require.NoError(t, write(bacnet.EncodeObjectIdentifierTag(deviceOID(3001))))
	assert.Equal(t, uint32(3001), dev.Instance())
	assert.Equal(t, uint32(1), dev.Revision())
	assert.Empty(t, base.writes)
}

func TestDispatcherWriteObjectName(t *testing.T) {
	table := newTestTable(t)
	d := NewDispatcher(&recordingHandler{}, nil)
	dev, err := table.Select(2)
	require.NoError(t, err)

	write := func(value []byte) error {
		return d.WriteProperty(dev, &device.WriteRequest{
			ObjectID: deviceOID(2002),
			Property: bacnet.PropertyObjectName,
			Value:    value,
		})
	}

	tests := []struct {
		name  string
		value []byte
		want  bacnet.ErrorCode
	}{
		{"not a string", bacnet.EncodeUnsignedTag(1), bacnet.ErrorCodeInvalidDataType},
		{"empty", device.EncodeString(""), bacnet.ErrorCodeValueOutOfRange},
		{"at bound", device.EncodeString(strings.Repeat("n", MaxNameLen)), bacnet.ErrorCodeValueOutOfRange},
		{"other charset", bacnet.EncodeCharacterStringTag(bacnet.CharacterString{Encoding: bacnet.CharacterUCS2, Value: []byte{0, 'a'}}), bacnet.ErrorCodeCharacterSetNotSupported},
		{"undecodable", []byte{0x75, 0x09}, bacnet.ErrorCodeValueOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, write(tt.value), bacnet.PropertyError(tt.want))
			assert.Equal(t, uint32(0), dev.Revision())
			assert.Equal(t, DefaultName, dev.Record().Name)
		})
	}

	require.NoError(t, write(device.EncodeString("Chiller-2")))
	assert.Equal(t, "Chiller-2", dev.Record().Name)
	assert.Equal(t, uint32(1), dev.Revision())
}

func TestDispatcherWriteDelegates(t *testing.T) {
	table := newTestTable(t)
	base := &recordingHandler{}
	d := NewDispatcher(base, nil)
	dev, err := table.Select(1)
	require.NoError(t, err)

	value := device.EncodeString("Roof")
	err = d.Handler(dev).WriteProperty(&device.WriteRequest{
		ObjectID: deviceOID(2001),
		Property: bacnet.PropertyLocation,
		Value:    value,
		Priority: 8,
	})
	require.NoError(t, err)
	require.Len(t, base.writes, 1)
	assert.Equal(t, value, base.writes[0].Value)
	assert.Equal(t, uint8(8), base.writes[0].Priority)
	assert.Equal(t, int64(1), table.Metrics().Delegated.Value())

	// undecodable values never reach the base
	err = d.WriteProperty(dev, &device.WriteRequest{ObjectID: deviceOID(2001), Property: bacnet.PropertyLocation, Value: []byte{0x75}})
	assert.True(t, bacnet.IsOutOfRange(err))
	assert.Len(t, base.writes, 1)
}

func TestDispatcherWithDeviceObject(t *testing.T) {
	table := newTestTable(t)
	d := NewDispatcher(device.New(device.WithVendor("Edgeo", 999)), nil)
	dev, err := table.Select(2)
	require.NoError(t, err)

	h := d.Handler(dev)
	data, err := h.ReadProperty(&device.ReadRequest{ObjectID: deviceOID(2002), Property: bacnet.PropertyObjectList})
	require.NoError(t, err)
	assert.Equal(t, deviceOID(2002), decodeOne(t, data).ObjectID)

	data, err = h.ReadProperty(&device.ReadRequest{ObjectID: deviceOID(2002), Property: bacnet.PropertyVendorIdentifier})
	require.NoError(t, err)
	assert.Equal(t, uint32(999), decodeOne(t, data).Unsigned)
}

func TestApprove(t *testing.T) {
	for _, service := range []bacnet.ConfirmedServiceChoice{
		bacnet.ServiceReinitializeDevice,
		bacnet.ServiceDeviceCommunicationControl,
	} {
		assert.NoError(t, Approve(service, GatewayHandle))
		for _, h := range []Handle{1, 2, 31} {
			err := Approve(service, h)
			assert.True(t, bacnet.IsUnrecognizedService(err), "service %s handle %d", service, h)
		}
	}

	for _, h := range []Handle{0, 1, 5} {
		assert.NoError(t, Approve(bacnet.ServiceReadProperty, h))
		assert.NoError(t, Approve(bacnet.ServiceWriteProperty, h))
	}
}

func TestRejectAPDU(t *testing.T) {
	assert.Nil(t, RejectAPDU(bacnet.ServiceReinitializeDevice, GatewayHandle, 7))
	assert.Equal(t,
		[]byte{byte(bacnet.PDUTypeReject), 7, byte(bacnet.RejectReasonUnrecognizedService)},
		RejectAPDU(bacnet.ServiceReinitializeDevice, 1, 7),
	)
}

func TestActiveDeviceApproveCountsRejections(t *testing.T) {
	table := newTestTable(t)
	dev, err := table.Select(2)
	require.NoError(t, err)

	assert.Error(t, dev.Approve(bacnet.ServiceDeviceCommunicationControl))
	gw, err := table.Gateway()
	require.NoError(t, err)
	assert.NoError(t, gw.Approve(bacnet.ServiceDeviceCommunicationControl))
	assert.Equal(t, int64(1), table.Metrics().Rejected.Value())
}
