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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgeo-scada/bacnet-gateway/bacnet"
)

func deviceID(instance uint32) bacnet.ObjectIdentifier {
	return bacnet.NewObjectIdentifier(bacnet.ObjectTypeDevice, instance)
}

func readValue(t *testing.T, o *Object, req *ReadRequest) bacnet.ApplicationValue {
	t.Helper()
	data, err := o.ReadProperty(req)
	require.NoError(t, err)
	v, n, err := bacnet.DecodeApplicationValue(data)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	return v
}

func TestObjectReadStatic(t *testing.T) {
	o := New(
		WithInstance(100),
		WithVendor("ACME", 42),
		WithModelName("router-x"),
	)

	v := readValue(t, o, &ReadRequest{ObjectID: deviceID(100), Property: bacnet.PropertyVendorName})
	assert.Equal(t, "ACME", v.String())

	v = readValue(t, o, &ReadRequest{ObjectID: deviceID(100), Property: bacnet.PropertyVendorIdentifier})
	assert.Equal(t, uint32(42), v.Unsigned)

	v = readValue(t, o, &ReadRequest{ObjectID: deviceID(100), Property: bacnet.PropertyObjectIdentifier})
	assert.Equal(t, deviceID(100), v.ObjectID)

	v = readValue(t, o, &ReadRequest{ObjectID: deviceID(100), Property: bacnet.PropertyApduTimeout})
	assert.Equal(t, uint32(3000), v.Unsigned)

	v = readValue(t, o, &ReadRequest{ObjectID: deviceID(100), Property: bacnet.PropertySegmentationSupported})
	assert.Equal(t, uint32(bacnet.SegmentationNone), v.Enumerated)
}

func TestObjectList(t *testing.T) {
	o := New()
	self := deviceID(7)

	v := readValue(t, o, &ReadRequest{ObjectID: self, Property: bacnet.PropertyObjectList})
	assert.Equal(t, self, v.ObjectID)

	zero, one, two := uint32(0), uint32(1), uint32(2)
	v = readValue(t, o, &ReadRequest{ObjectID: self, Property: bacnet.PropertyObjectList, ArrayIndex: &zero})
	assert.Equal(t, uint32(1), v.Unsigned)

	v = readValue(t, o, &ReadRequest{ObjectID: self, Property: bacnet.PropertyObjectList, ArrayIndex: &one})
	assert.Equal(t, self, v.ObjectID)

	_, err := o.ReadProperty(&ReadRequest{ObjectID: self, Property: bacnet.PropertyObjectList, ArrayIndex: &two})
	assert.ErrorIs(t, err, bacnet.PropertyError(bacnet.ErrorCodeInvalidArrayIndex))
}

func TestObjectReadErrors(t *testing.T) {
	o := New()
	index := uint32(1)

	tests := []struct {
		name string
		req  *ReadRequest
		want *bacnet.BACnetError
	}{
		{
			name: "unknown property",
			req:  &ReadRequest{ObjectID: deviceID(1), Property: bacnet.PropertyPresentValue},
			want: bacnet.PropertyError(bacnet.ErrorCodeUnknownProperty),
		},
		{
			name: "index on scalar",
			req:  &ReadRequest{ObjectID: deviceID(1), Property: bacnet.PropertyVendorName, ArrayIndex: &index},
			want: bacnet.PropertyError(bacnet.ErrorCodePropertyIsNotAnArray),
		},
		{
			name: "not a device",
			req:  &ReadRequest{ObjectID: bacnet.NewObjectIdentifier(bacnet.ObjectTypeAnalogInput, 1), Property: bacnet.PropertyObjectName},
			want: bacnet.NewBACnetError(bacnet.ErrorClassObject, bacnet.ErrorCodeUnknownObject),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := o.ReadProperty(tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestObjectWrite(t *testing.T) {
	o := New(WithInstance(9))
	id := deviceID(9)

	err := o.WriteProperty(&WriteRequest{ObjectID: id, Property: bacnet.PropertyLocation, Value: EncodeString("Plant room")})
	require.NoError(t, err)
	assert.Equal(t, "Plant room", o.Location())

	err = o.WriteProperty(&WriteRequest{ObjectID: id, Property: bacnet.PropertyObjectName, Value: EncodeString("GW-9")})
	require.NoError(t, err)
	v := readValue(t, o, &ReadRequest{ObjectID: id, Property: bacnet.PropertyDatabaseRevision})
	assert.Equal(t, uint32(1), v.Unsigned)

	err = o.WriteProperty(&WriteRequest{ObjectID: id, Property: bacnet.PropertyVendorName, Value: EncodeString("x")})
	assert.True(t, bacnet.IsAccessDenied(err))

	err = o.WriteProperty(&WriteRequest{ObjectID: id, Property: bacnet.PropertyPresentValue, Value: EncodeString("x")})
	assert.True(t, bacnet.IsPropertyNotFound(err))

	err = o.WriteProperty(&WriteRequest{ObjectID: id, Property: bacnet.PropertyLocation, Value: bacnet.EncodeUnsignedTag(5)})
	assert.ErrorIs(t, err, bacnet.PropertyError(bacnet.ErrorCodeInvalidDataType))
}

func TestDecodeString(t *testing.T) {
	latin := bacnet.EncodeCharacterStringTag(bacnet.CharacterString{Encoding: bacnet.CharacterISO8859, Value: []byte("abc")})
	_, err := DecodeString(latin)
	assert.ErrorIs(t, err, bacnet.PropertyError(bacnet.ErrorCodeCharacterSetNotSupported))

	invalid := bacnet.EncodeCharacterStringTag(bacnet.CharacterString{Value: []byte{0xff, 0xfe}})
	_, err = DecodeString(invalid)
	assert.ErrorIs(t, err, bacnet.PropertyError(bacnet.ErrorCodeCharacterSetNotSupported))

	_, err = DecodeString([]byte{0x75})
	assert.ErrorIs(t, err, bacnet.PropertyError(bacnet.ErrorCodeValueOutOfRange))

	_, err = DecodeBoundedString(EncodeString(""), MaxNameLen)
	assert.True(t, bacnet.IsOutOfRange(err))

	s, err := DecodeBoundedString(EncodeString("ok"), MaxNameLen)
	require.NoError(t, err)
	assert.Equal(t, "ok", s)
}

func TestHandlerFuncs(t *testing.T) {
	var h Handler = HandlerFuncs{}
	_, err := h.ReadProperty(&ReadRequest{})
	assert.True(t, bacnet.IsPropertyNotFound(err))
	assert.True(t, bacnet.IsAccessDenied(h.WriteProperty(&WriteRequest{})))
}
