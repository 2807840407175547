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

import "fmt"

// ReadPropertyRequest is the decoded ReadProperty service request
type ReadPropertyRequest struct {
	ObjectID   ObjectIdentifier
	PropertyID PropertyIdentifier
	ArrayIndex *uint32
}

// Encode encodes the ReadProperty service request
func (r *ReadPropertyRequest) Encode() []byte {
	data := make([]byte, 0, 16)
	data = append(data, EncodeContextObjectIdentifier(0, r.ObjectID)...)
	data = append(data, EncodeContextEnumerated(1, uint32(r.PropertyID))...)
	if r.ArrayIndex != nil {
		data = append(data, EncodeContextUnsigned(2, *r.ArrayIndex)...)
	}
	return data
}

// DecodeReadPropertyRequest decodes a ReadProperty service request
func DecodeReadPropertyRequest(data []byte) (*ReadPropertyRequest, error) {
	req, offset, err := decodePropertyReference(data)
	if err != nil {
		return nil, err
	}
	if offset != len(data) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrInvalidAPDU, len(data)-offset)
	}
	return req, nil
}

// decodePropertyReference decodes the object [0], property [1] and optional
// array index [2] that open both ReadProperty and WriteProperty
func decodePropertyReference(data []byte) (*ReadPropertyRequest, int, error) {
	oid, offset, err := DecodeContextObjectIdentifier(data, 0)
	if err != nil {
		return nil, 0, err
	}

	prop, n, err := DecodeContextUnsigned(data[offset:], 1)
	if err != nil {
		return nil, 0, err
	}
	offset += n

	req := &ReadPropertyRequest{
		ObjectID:   oid,
		PropertyID: PropertyIdentifier(prop),
	}

	if offset < len(data) {
		tag, _, err := DecodeTag(data[offset:])
		if err != nil {
			return nil, 0, err
		}
		if tag.IsContext(2) {
			index, n, err := DecodeContextUnsigned(data[offset:], 2)
			if err != nil {
				return nil, 0, err
			}
			req.ArrayIndex = &index
			offset += n
		}
	}

	return req, offset, nil
}

// EncodeReadPropertyAck encodes the ReadProperty-ACK service data. value is
// one or more application-tagged values.
func EncodeReadPropertyAck(req *ReadPropertyRequest, value []byte) []byte {
	data := req.Encode()
	data = append(data, EncodeOpeningTag(3)...)
	data = append(data, value...)
	return append(data, EncodeClosingTag(3)...)
}

// DecodeReadPropertyAck decodes the ReadProperty-ACK service data and returns
// the raw application-tagged value
func DecodeReadPropertyAck(data []byte) (*ReadPropertyRequest, []byte, error) {
	req, offset, err := decodePropertyReference(data)
	if err != nil {
		return nil, nil, err
	}
	value, _, err := decodeConstructedValue(data[offset:], 3)
	if err != nil {
		return nil, nil, err
	}
	return req, value, nil
}

// WritePropertyRequest is the decoded WriteProperty service request
type WritePropertyRequest struct {
	ObjectID   ObjectIdentifier
	PropertyID PropertyIdentifier
	ArrayIndex *uint32
	Value      []byte // application-tagged value(s) between tags [3]
	Priority   *uint8
}

// Encode encodes the WriteProperty service request
func (r *WritePropertyRequest) Encode() []byte {
	ref := ReadPropertyRequest{ObjectID: r.ObjectID, PropertyID: r.PropertyID, ArrayIndex: r.ArrayIndex}
	data := ref.Encode()
	data = append(data, EncodeOpeningTag(3)...)
	data = append(data, r.Value...)
	data = append(data, EncodeClosingTag(3)...)
	if r.Priority != nil {
		data = append(data, EncodeContextUnsigned(4, uint32(*r.Priority))...)
	}
	return data
}

// DecodeWritePropertyRequest decodes a WriteProperty service request
func DecodeWritePropertyRequest(data []byte) (*WritePropertyRequest, error) {
	ref, offset, err := decodePropertyReference(data)
	if err != nil {
		return nil, err
	}

	value, n, err := decodeConstructedValue(data[offset:], 3)
	if err != nil {
		return nil, err
	}
	offset += n

	req := &WritePropertyRequest{
		ObjectID:   ref.ObjectID,
		PropertyID: ref.PropertyID,
		ArrayIndex: ref.ArrayIndex,
		Value:      value,
	}

	if offset < len(data) {
		prio, n, err := DecodeContextUnsigned(data[offset:], 4)
		if err != nil {
			return nil, err
		}
		if prio < 1 || prio > 16 {
			return nil, fmt.Errorf("%w: priority %d", ErrInvalidAPDU, prio)
		}
		p := uint8(prio)
		req.Priority = &p
		offset += n
	}

	if offset != len(data) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrInvalidAPDU, len(data)-offset)
	}
	return req, nil
}

// decodeConstructedValue returns the bytes between opening and closing tag n
// and the total length consumed including both tags
func decodeConstructedValue(data []byte, n uint8) ([]byte, int, error) {
	tag, headerLen, err := DecodeTag(data)
	if err != nil {
		return nil, 0, err
	}
	if !tag.IsOpening(n) {
		return nil, 0, fmt.Errorf("%w: expected opening tag %d", ErrInvalidTag, n)
	}
	end, err := SkipToClosingTag(data[headerLen:], n)
	if err != nil {
		return nil, 0, err
	}
	value := data[headerLen : headerLen+end]
	_, closeLen, err := DecodeTag(data[headerLen+end:])
	if err != nil {
		return nil, 0, err
	}
	return value, headerLen + end + closeLen, nil
}

// ReinitializeDeviceRequest is the decoded ReinitializeDevice request
type ReinitializeDeviceRequest struct {
	State    uint32
	Password string
}

// Encode encodes the ReinitializeDevice request
func (r *ReinitializeDeviceRequest) Encode() []byte {
	buf := EncodeContextEnumerated(0, r.State)
	if r.Password != "" {
		buf = append(buf, encodeContextCharacterString(1, r.Password)...)
	}
	return buf
}

// DecodeReinitializeDeviceRequest decodes a ReinitializeDevice request
func DecodeReinitializeDeviceRequest(data []byte) (*ReinitializeDeviceRequest, error) {
	state, offset, err := DecodeContextUnsigned(data, 0)
	if err != nil {
		return nil, err
	}
	req := &ReinitializeDeviceRequest{State: state}
	if offset < len(data) {
		password, err := decodeContextCharacterString(data[offset:], 1)
		if err != nil {
			return nil, err
		}
		req.Password = password
	}
	return req, nil
}

// DeviceCommunicationControlRequest is the decoded DeviceCommunicationControl request
type DeviceCommunicationControlRequest struct {
	Duration *uint32 // minutes
	Enable   uint32
	Password string
}

// Encode encodes the DeviceCommunicationControl request
func (r *DeviceCommunicationControlRequest) Encode() []byte {
	var buf []byte
	if r.Duration != nil {
		buf = append(buf, EncodeContextUnsigned(0, *r.Duration)...)
	}
	buf = append(buf, EncodeContextEnumerated(1, r.Enable)...)
	if r.Password != "" {
		buf = append(buf, encodeContextCharacterString(2, r.Password)...)
	}
	return buf
}

// DecodeDeviceCommunicationControlRequest decodes a DeviceCommunicationControl request
func DecodeDeviceCommunicationControlRequest(data []byte) (*DeviceCommunicationControlRequest, error) {
	req := &DeviceCommunicationControlRequest{}
	offset := 0

	tag, _, err := DecodeTag(data)
	if err != nil {
		return nil, err
	}
	if tag.IsContext(0) {
		d, n, err := DecodeContextUnsigned(data, 0)
		if err != nil {
			return nil, err
		}
		req.Duration = &d
		offset += n
	}

	enable, n, err := DecodeContextUnsigned(data[offset:], 1)
	if err != nil {
		return nil, err
	}
	req.Enable = enable
	offset += n

	if offset < len(data) {
		password, err := decodeContextCharacterString(data[offset:], 2)
		if err != nil {
			return nil, err
		}
		req.Password = password
	}
	return req, nil
}

func encodeContextCharacterString(n uint8, s string) []byte {
	return EncodeContextTag(n, EncodeCharacterString(NewCharacterString(s)))
}

func decodeContextCharacterString(data []byte, n uint8) (string, error) {
	tag, headerLen, err := DecodeTag(data)
	if err != nil {
		return "", err
	}
	if !tag.IsContext(n) || tag.Length < 1 {
		return "", fmt.Errorf("%w: expected character string in context tag %d", ErrInvalidTag, n)
	}
	if len(data) < headerLen+tag.Length {
		return "", ErrTruncated
	}
	return string(data[headerLen+1 : headerLen+tag.Length]), nil
}
