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
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeTag(t *testing.T) {
	tests := []struct {
		name   string
		tagNum uint8
		class  TagClass
		length int
		want   []byte
	}{
		{"short application", uint8(TagUnsignedInt), TagClassApplication, 2, []byte{0x22}},
		{"short context", 1, TagClassContext, 1, []byte{0x19}},
		{"extended length", uint8(TagCharacterString), TagClassApplication, 20, []byte{0x75, 20}},
		{"two byte length", uint8(TagCharacterString), TagClassApplication, 300, []byte{0x75, 0xFE, 0x01, 0x2C}},
		{"extended tag short length", 20, TagClassContext, 2, []byte{0xFA, 20}},
		{"extended tag extended length", 20, TagClassContext, 6, []byte{0xFD, 20, 6}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EncodeTag(tt.tagNum, tt.class, tt.length)
			assert.Equal(t, tt.want, got)

			tag, n, err := DecodeTag(got)
			require.NoError(t, err)
			assert.Equal(t, len(got), n)
			assert.Equal(t, tt.tagNum, tag.Number)
			assert.Equal(t, tt.class, tag.Class)
			assert.Equal(t, tt.length, tag.Length)
		})
	}
}

func TestDecodeTagOpeningClosingBoolean(t *testing.T) {
	tag, n, err := DecodeTag(EncodeOpeningTag(3))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, tag.IsOpening(3))

	tag, _, err = DecodeTag(EncodeClosingTag(3))
	require.NoError(t, err)
	assert.True(t, tag.IsClosing(3))

	tag, _, err = DecodeTag(EncodeBooleanTag(true))
	require.NoError(t, err)
	assert.True(t, tag.Boolean)
	assert.Equal(t, 0, tag.Length)

	_, _, err = DecodeTag(nil)
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestApplicationValueRoundTrip(t *testing.T) {
	values := []ApplicationValue{
		{Tag: TagNull},
		{Tag: TagBoolean, Boolean: true},
		{Tag: TagUnsignedInt, Unsigned: 70000},
		{Tag: TagSignedInt, Signed: -300},
		{Tag: TagReal, Real: 21.5},
		{Tag: TagDouble, Double: -1.25},
		{Tag: TagEnumerated, Enumerated: 3},
		{Tag: TagCharacterString, CharacterString: NewCharacterString("Boiler Room 12")},
		{Tag: TagObjectID, ObjectID: NewObjectIdentifier(ObjectTypeDevice, 1234)},
		{Tag: TagOctetString, Raw: []byte{0xde, 0xad}},
	}

	var encoded []byte
	for _, v := range values {
		encoded = append(encoded, v.Encode()...)
	}

	decoded, err := DecodeApplicationValues(encoded)
	require.NoError(t, err)
	require.Len(t, decoded, len(values))
	for i := range values {
		assert.Equal(t, values[i].Tag, decoded[i].Tag)
		assert.Equal(t, values[i].String(), decoded[i].String())
	}
}

func TestDecodeApplicationValueErrors(t *testing.T) {
	_, _, err := DecodeApplicationValue(EncodeContextUnsigned(1, 5))
	assert.ErrorIs(t, err, ErrInvalidTag)

	// real with a 2 byte payload
	_, _, err = DecodeApplicationValue([]byte{0x42, 0x00, 0x00})
	assert.ErrorIs(t, err, ErrInvalidTag)

	// declared length larger than the buffer
	_, _, err = DecodeApplicationValue([]byte{0x75, 10, 0x00})
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestNPDURoundTrip(t *testing.T) {
	in := &NPDU{
		Control:      NPDUControlDestSpecifier | NPDUControlSourceSpecifier | NPDUControlExpectingReply,
		DestNet:      2001,
		DestAddr:     []byte{0x01, 0x02},
		DestHopCount: 0xFF,
		SrcNet:       7,
		SrcAddr:      []byte{192, 168, 1, 10, 0xBA, 0xC0},
		Data:         []byte{0xAA, 0xBB},
	}

	out, offset, err := DecodeNPDU(in.Encode())
	require.NoError(t, err)
	assert.Equal(t, in.DestNet, out.DestNet)
	assert.Equal(t, in.DestAddr, out.DestAddr)
	assert.Equal(t, in.SrcNet, out.SrcNet)
	assert.Equal(t, in.SrcAddr, out.SrcAddr)
	assert.Equal(t, uint8(0xFF), out.DestHopCount)
	assert.Equal(t, in.Data, out.Data)
	assert.Equal(t, 2+3+2+3+6+1, offset)

	dest := out.Destination()
	assert.Equal(t, uint16(2001), dest.Net)
	src, ok := out.Source()
	assert.True(t, ok)
	assert.Equal(t, uint16(7), src.Net)
}

func TestNPDULocalDestination(t *testing.T) {
	npdu, _, err := DecodeNPDU([]byte{0x01, 0x04, 0x00})
	require.NoError(t, err)

	dest := npdu.Destination()
	assert.Equal(t, uint16(0), dest.Net)
	assert.Empty(t, dest.Addr)
	_, ok := npdu.Source()
	assert.False(t, ok)
}

func TestDecodeNPDUInvalid(t *testing.T) {
	_, _, err := DecodeNPDU([]byte{0x02, 0x00})
	assert.ErrorIs(t, err, ErrInvalidNPDU)

	// destination specifier without the address block
	_, _, err = DecodeNPDU([]byte{0x01, 0x20, 0x07})
	assert.ErrorIs(t, err, ErrInvalidNPDU)
}

func TestIAmRouterToNetwork(t *testing.T) {
	npdu, _, err := DecodeNPDU(EncodeIAmRouterToNetwork([]uint16{2001, 2002}))
	require.NoError(t, err)
	assert.True(t, npdu.IsNetworkMessage())
	assert.Equal(t, NetworkMessageIAmRouterToNetwork, npdu.MessageType)

	networks, err := DecodeNetworkNumbers(npdu.Data)
	require.NoError(t, err)
	assert.Equal(t, []uint16{2001, 2002}, networks)

	_, err = DecodeNetworkNumbers([]byte{0x01})
	assert.ErrorIs(t, err, ErrInvalidNPDU)
}

func TestBVLL(t *testing.T) {
	npdu := EncodeNPDU(true, NPDUControlPriorityNormal)
	packet := EncodeBVLL(BVLCOriginalUnicastNPDU, npdu)

	bvlc, payload, err := DecodeBVLL(packet)
	require.NoError(t, err)
	assert.Equal(t, BVLCOriginalUnicastNPDU, bvlc.Function)
	assert.Equal(t, npdu, payload)

	forwarded := EncodeBVLL(BVLCForwardedNPDU, append([]byte{10, 0, 0, 1, 0xBA, 0xC0}, npdu...))
	_, payload, err = DecodeBVLL(forwarded)
	require.NoError(t, err)
	assert.Equal(t, npdu, payload)

	bad := bytes.Clone(packet)
	bad[3]++
	_, _, err = DecodeBVLL(bad)
	assert.ErrorIs(t, err, ErrInvalidBVLC)
}

func TestReadPropertyRequestCodec(t *testing.T) {
	req := &ReadPropertyRequest{
		ObjectID:   NewObjectIdentifier(ObjectTypeDevice, 1234),
		PropertyID: PropertyObjectName,
	}
	encoded := req.Encode()
	assert.Equal(t, []byte{0x0C, 0x02, 0x00, 0x04, 0xD2, 0x19, 0x4D}, encoded)

	decoded, err := DecodeReadPropertyRequest(encoded)
	require.NoError(t, err)
	assert.Equal(t, req.ObjectID, decoded.ObjectID)
	assert.Equal(t, req.PropertyID, decoded.PropertyID)
	assert.Nil(t, decoded.ArrayIndex)

	index := uint32(0)
	req.ArrayIndex = &index
	decoded, err = DecodeReadPropertyRequest(req.Encode())
	require.NoError(t, err)
	require.NotNil(t, decoded.ArrayIndex)
	assert.Equal(t, uint32(0), *decoded.ArrayIndex)
}

func TestReadPropertyAckCodec(t *testing.T) {
	req := &ReadPropertyRequest{
		ObjectID:   NewObjectIdentifier(ObjectTypeDevice, 5),
		PropertyID: PropertyDescription,
	}
	value := EncodeCharacterStringTag(NewCharacterString("No Descr"))

	_, got, err := DecodeReadPropertyAck(EncodeReadPropertyAck(req, value))
	require.NoError(t, err)
	assert.Equal(t, value, got)
}

func TestWritePropertyRequestCodec(t *testing.T) {
	prio := uint8(8)
	req := &WritePropertyRequest{
		ObjectID:   NewObjectIdentifier(ObjectTypeDevice, 5),
		PropertyID: PropertyObjectName,
		Value:      EncodeCharacterStringTag(NewCharacterString("AHU-1")),
		Priority:   &prio,
	}

	decoded, err := DecodeWritePropertyRequest(req.Encode())
	require.NoError(t, err)
	assert.Equal(t, req.Value, decoded.Value)
	require.NotNil(t, decoded.Priority)
	assert.Equal(t, prio, *decoded.Priority)

	// missing closing tag
	truncated := req.Encode()
	truncated = truncated[:len(truncated)-3]
	_, err = DecodeWritePropertyRequest(truncated)
	assert.Error(t, err)
}

func TestSkipToClosingTagNested(t *testing.T) {
	var data []byte
	data = append(data, EncodeOpeningTag(0)...)
	data = append(data, EncodeUnsignedTag(1)...)
	data = append(data, EncodeClosingTag(0)...)
	data = append(data, EncodeBooleanTag(true)...)
	end := len(data)
	data = append(data, EncodeClosingTag(3)...)

	got, err := SkipToClosingTag(data, 3)
	require.NoError(t, err)
	assert.Equal(t, end, got)
}

func TestErrorAndRejectAPDU(t *testing.T) {
	apdu, err := DecodeAPDU(EncodeErrorAPDU(9, ServiceWriteProperty, ErrorClassProperty, ErrorCodeValueOutOfRange))
	require.NoError(t, err)
	assert.Equal(t, PDUTypeError, apdu.Type)
	assert.Equal(t, uint8(9), apdu.InvokeID)

	bacnetErr, err := DecodeErrorAPDU(apdu)
	require.NoError(t, err)
	assert.True(t, errors.Is(bacnetErr, PropertyError(ErrorCodeValueOutOfRange)))
	assert.True(t, IsOutOfRange(bacnetErr))

	apdu, err = DecodeAPDU(EncodeReject(4, RejectReasonUnrecognizedService))
	require.NoError(t, err)
	assert.Equal(t, PDUTypeReject, apdu.Type)
	assert.Equal(t, uint8(RejectReasonUnrecognizedService), apdu.Service)
}

func TestDecodeConfirmedRequest(t *testing.T) {
	apdu, err := DecodeAPDU(EncodeConfirmedRequest(3, ServiceReadProperty, []byte{0x01}, 0, 5))
	require.NoError(t, err)
	assert.Equal(t, PDUTypeConfirmedRequest, apdu.Type)
	assert.Equal(t, uint8(3), apdu.InvokeID)
	assert.Equal(t, uint8(ServiceReadProperty), apdu.Service)
	assert.Equal(t, uint8(5), apdu.MaxAPDU)
	assert.Equal(t, []byte{0x01}, apdu.Data)
}

func TestParsePropertyIdentifier(t *testing.T) {
	p, ok := ParsePropertyIdentifier("object-name")
	assert.True(t, ok)
	assert.Equal(t, PropertyObjectName, p)

	p, ok = ParsePropertyIdentifier("rev")
	assert.True(t, ok)
	assert.Equal(t, PropertyDatabaseRevision, p)

	p, ok = ParsePropertyIdentifier("512")
	assert.True(t, ok)
	assert.Equal(t, PropertyIdentifier(512), p)

	_, ok = ParsePropertyIdentifier("no-such-property")
	assert.False(t, ok)
}
