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
	"encoding/binary"
	"fmt"
)

// BVLC Header (BACnet Virtual Link Control)
type BVLCHeader struct {
	Type     BVLCType
	Function BVLCFunction
	Length   uint16
}

// EncodeBVLC encodes a BVLC header
func EncodeBVLC(function BVLCFunction, npduLength int) []byte {
	totalLength := 4 + npduLength // BVLC header is 4 bytes
	buf := make([]byte, 4)
	buf[0] = byte(BVLCTypeBACnetIP)
	buf[1] = byte(function)
	binary.BigEndian.PutUint16(buf[2:], uint16(totalLength))
	return buf
}

// EncodeBVLL wraps an NPDU in a BVLC header
func EncodeBVLL(function BVLCFunction, npdu []byte) []byte {
	packet := make([]byte, 0, 4+len(npdu))
	packet = append(packet, EncodeBVLC(function, len(npdu))...)
	return append(packet, npdu...)
}

// DecodeBVLC decodes a BVLC header
func DecodeBVLC(data []byte) (*BVLCHeader, error) {
	if len(data) < 4 {
		return nil, ErrInvalidBVLC
	}
	return &BVLCHeader{
		Type:     BVLCType(data[0]),
		Function: BVLCFunction(data[1]),
		Length:   binary.BigEndian.Uint16(data[2:4]),
	}, nil
}

// DecodeBVLL decodes a BVLC header and returns the NPDU it carries.
// Forwarded NPDUs have their 6 byte originating address stripped.
func DecodeBVLL(data []byte) (*BVLCHeader, []byte, error) {
	bvlc, err := DecodeBVLC(data)
	if err != nil {
		return nil, nil, err
	}
	if bvlc.Type != BVLCTypeBACnetIP {
		return nil, nil, fmt.Errorf("%w: type %02x", ErrInvalidBVLC, bvlc.Type)
	}
	if int(bvlc.Length) != len(data) {
		return nil, nil, fmt.Errorf("%w: length %d, got %d bytes", ErrInvalidBVLC, bvlc.Length, len(data))
	}

	npdu := data[4:]
	switch bvlc.Function {
	case BVLCForwardedNPDU:
		if len(npdu) < 6 {
			return nil, nil, ErrInvalidBVLC
		}
		npdu = npdu[6:]
	case BVLCOriginalUnicastNPDU, BVLCOriginalBroadcastNPDU:
	default:
		return bvlc, nil, nil
	}
	return bvlc, npdu, nil
}

// NPDU (Network Protocol Data Unit)
type NPDU struct {
	Version      uint8
	Control      NPDUControl
	DestNet      uint16
	DestAddr     []byte
	DestHopCount uint8
	SrcNet       uint16
	SrcAddr      []byte
	MessageType  NetworkMessageType
	VendorID     uint16
	Data         []byte
}

// Destination returns the NPDU destination. Messages without a destination
// specifier are addressed to the local network (0) with a broadcast MAC.
func (n *NPDU) Destination() Address {
	if n.Control&NPDUControlDestSpecifier == 0 {
		return Address{}
	}
	return Address{Net: n.DestNet, Addr: n.DestAddr}
}

// Source returns the NPDU source, if one was specified
func (n *NPDU) Source() (Address, bool) {
	if n.Control&NPDUControlSourceSpecifier == 0 {
		return Address{}, false
	}
	return Address{Net: n.SrcNet, Addr: n.SrcAddr}, true
}

// IsNetworkMessage reports whether the NPDU carries a network layer message
func (n *NPDU) IsNetworkMessage() bool {
	return n.Control&NPDUControlNetworkLayerMessage != 0
}

// Encode encodes the NPDU header followed by Data. The specifier bits of
// Control decide which address fields are written.
func (n *NPDU) Encode() []byte {
	buf := make([]byte, 0, 12+len(n.DestAddr)+len(n.SrcAddr)+len(n.Data))
	buf = append(buf, 0x01, byte(n.Control))

	if n.Control&NPDUControlDestSpecifier != 0 {
		buf = append(buf, byte(n.DestNet>>8), byte(n.DestNet))
		buf = append(buf, byte(len(n.DestAddr)))
		buf = append(buf, n.DestAddr...)
	}
	if n.Control&NPDUControlSourceSpecifier != 0 {
		buf = append(buf, byte(n.SrcNet>>8), byte(n.SrcNet))
		buf = append(buf, byte(len(n.SrcAddr)))
		buf = append(buf, n.SrcAddr...)
	}
	if n.Control&NPDUControlDestSpecifier != 0 {
		buf = append(buf, n.DestHopCount)
	}
	if n.Control&NPDUControlNetworkLayerMessage != 0 {
		buf = append(buf, byte(n.MessageType))
		if n.MessageType >= 0x80 {
			buf = append(buf, byte(n.VendorID>>8), byte(n.VendorID))
		}
	}

	return append(buf, n.Data...)
}

// EncodeNPDU encodes an NPDU for unicast without routing
func EncodeNPDU(expectingReply bool, priority NPDUControl) []byte {
	control := priority
	if expectingReply {
		control |= NPDUControlExpectingReply
	}
	return []byte{
		0x01, // Version
		byte(control),
	}
}

// DecodeNPDU decodes an NPDU and returns the offset of its payload
func DecodeNPDU(data []byte) (*NPDU, int, error) {
	if len(data) < 2 {
		return nil, 0, ErrInvalidNPDU
	}

	npdu := &NPDU{
		Version: data[0],
		Control: NPDUControl(data[1]),
	}

	if npdu.Version != 0x01 {
		return nil, 0, fmt.Errorf("%w: unsupported version %d", ErrInvalidNPDU, npdu.Version)
	}

	offset := 2

	// Destination specifier
	if npdu.Control&NPDUControlDestSpecifier != 0 {
		if len(data) < offset+3 {
			return nil, 0, ErrInvalidNPDU
		}
		npdu.DestNet = binary.BigEndian.Uint16(data[offset:])
		offset += 2

		addrLen := int(data[offset])
		offset++

		if len(data) < offset+addrLen {
			return nil, 0, ErrInvalidNPDU
		}
		npdu.DestAddr = make([]byte, addrLen)
		copy(npdu.DestAddr, data[offset:offset+addrLen])
		offset += addrLen
	}

	// Source specifier
	if npdu.Control&NPDUControlSourceSpecifier != 0 {
		if len(data) < offset+3 {
			return nil, 0, ErrInvalidNPDU
		}
		npdu.SrcNet = binary.BigEndian.Uint16(data[offset:])
		offset += 2

		addrLen := int(data[offset])
		offset++

		if len(data) < offset+addrLen {
			return nil, 0, ErrInvalidNPDU
		}
		npdu.SrcAddr = make([]byte, addrLen)
		copy(npdu.SrcAddr, data[offset:offset+addrLen])
		offset += addrLen
	}

	// Hop count follows both address blocks
	if npdu.Control&NPDUControlDestSpecifier != 0 {
		if len(data) < offset+1 {
			return nil, 0, ErrInvalidNPDU
		}
		npdu.DestHopCount = data[offset]
		offset++
	}

	// Network layer message
	if npdu.Control&NPDUControlNetworkLayerMessage != 0 {
		if len(data) < offset+1 {
			return nil, 0, ErrInvalidNPDU
		}
		npdu.MessageType = NetworkMessageType(data[offset])
		offset++

		// Vendor-specific message types have vendor ID
		if npdu.MessageType >= 0x80 {
			if len(data) < offset+2 {
				return nil, 0, ErrInvalidNPDU
			}
			npdu.VendorID = binary.BigEndian.Uint16(data[offset:])
			offset += 2
		}
	}

	npdu.Data = data[offset:]
	return npdu, offset, nil
}

// EncodeIAmRouterToNetwork encodes an I-Am-Router-To-Network network layer message
func EncodeIAmRouterToNetwork(networks []uint16) []byte {
	data := make([]byte, 0, 2*len(networks))
	for _, dnet := range networks {
		data = append(data, byte(dnet>>8), byte(dnet))
	}
	npdu := &NPDU{
		Control:     NPDUControlNetworkLayerMessage,
		MessageType: NetworkMessageIAmRouterToNetwork,
		Data:        data,
	}
	return npdu.Encode()
}

// EncodeWhoIsRouterToNetwork encodes a Who-Is-Router-To-Network message.
// A nil network asks for every reachable network.
func EncodeWhoIsRouterToNetwork(network *uint16) []byte {
	npdu := &NPDU{
		Control:     NPDUControlNetworkLayerMessage | NPDUControlExpectingReply,
		MessageType: NetworkMessageWhoIsRouterToNetwork,
	}
	if network != nil {
		npdu.Data = []byte{byte(*network >> 8), byte(*network)}
	}
	return npdu.Encode()
}

// DecodeNetworkNumbers decodes a list of 2-byte network numbers
func DecodeNetworkNumbers(data []byte) ([]uint16, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("%w: odd network list length %d", ErrInvalidNPDU, len(data))
	}
	networks := make([]uint16, 0, len(data)/2)
	for i := 0; i < len(data); i += 2 {
		networks = append(networks, binary.BigEndian.Uint16(data[i:]))
	}
	return networks, nil
}

// APDU Types
type APDU struct {
	Type         PDUType
	Segmented    bool
	MoreFollows  bool
	SegmentedAck bool
	MaxSegments  uint8
	MaxAPDU      uint8
	InvokeID     uint8
	SequenceNum  uint8
	WindowSize   uint8
	Service      uint8
	Data         []byte
}

// EncodeConfirmedRequest encodes a confirmed service request APDU
func EncodeConfirmedRequest(invokeID uint8, service ConfirmedServiceChoice, data []byte, maxSegments, maxAPDU uint8) []byte {
	buf := make([]byte, 0, 4+len(data))
	buf = append(buf, byte(PDUTypeConfirmedRequest))
	buf = append(buf, (maxSegments<<4)|maxAPDU)
	buf = append(buf, invokeID)
	buf = append(buf, byte(service))
	return append(buf, data...)
}

// EncodeSimpleAck encodes a Simple-ACK APDU
func EncodeSimpleAck(invokeID uint8, service ConfirmedServiceChoice) []byte {
	return []byte{byte(PDUTypeSimpleAck), invokeID, byte(service)}
}

// EncodeComplexAck encodes an unsegmented Complex-ACK APDU
func EncodeComplexAck(invokeID uint8, service ConfirmedServiceChoice, data []byte) []byte {
	buf := make([]byte, 0, 3+len(data))
	buf = append(buf, byte(PDUTypeComplexAck), invokeID, byte(service))
	return append(buf, data...)
}

// EncodeErrorAPDU encodes an Error APDU carrying an error class and code
func EncodeErrorAPDU(invokeID uint8, service ConfirmedServiceChoice, class ErrorClass, code ErrorCode) []byte {
	buf := []byte{byte(PDUTypeError), invokeID, byte(service)}
	buf = append(buf, EncodeEnumeratedTag(uint32(class))...)
	return append(buf, EncodeEnumeratedTag(uint32(code))...)
}

// EncodeReject encodes a Reject APDU
func EncodeReject(invokeID uint8, reason RejectReason) []byte {
	return []byte{byte(PDUTypeReject), invokeID, byte(reason)}
}

// EncodeAbort encodes an Abort APDU sent by a server
func EncodeAbort(invokeID uint8, reason AbortReason) []byte {
	return []byte{byte(PDUTypeAbort) | 0x01, invokeID, byte(reason)}
}

// DecodeAPDU decodes an APDU
func DecodeAPDU(data []byte) (*APDU, error) {
	if len(data) < 1 {
		return nil, ErrInvalidAPDU
	}

	switch PDUType(data[0] & 0xF0) {
	case PDUTypeConfirmedRequest:
		return decodeConfirmedRequest(data)
	case PDUTypeUnconfirmedRequest:
		return decodeUnconfirmedRequest(data)
	case PDUTypeSimpleAck:
		return decodeShortPDU(PDUTypeSimpleAck, data)
	case PDUTypeComplexAck:
		return decodeComplexAck(data)
	case PDUTypeError:
		apdu, err := decodeShortPDU(PDUTypeError, data)
		if err != nil {
			return nil, err
		}
		apdu.Data = data[3:]
		return apdu, nil
	case PDUTypeReject:
		// Reject reason is in service field
		return decodeShortPDU(PDUTypeReject, data)
	case PDUTypeAbort:
		// Abort reason is in service field
		return decodeShortPDU(PDUTypeAbort, data)
	default:
		return nil, fmt.Errorf("%w: unknown PDU type %02x", ErrInvalidAPDU, data[0]&0xF0)
	}
}

func decodeConfirmedRequest(data []byte) (*APDU, error) {
	if len(data) < 4 {
		return nil, ErrInvalidAPDU
	}

	apdu := &APDU{
		Type:        PDUTypeConfirmedRequest,
		Segmented:   data[0]&0x08 != 0,
		MoreFollows: data[0]&0x04 != 0,
		MaxSegments: (data[1] >> 4) & 0x07,
		MaxAPDU:     data[1] & 0x0F,
		InvokeID:    data[2],
		Service:     data[3],
		Data:        data[4:],
	}

	if apdu.Segmented {
		if len(data) < 6 {
			return nil, ErrInvalidAPDU
		}
		apdu.SequenceNum = data[3]
		apdu.WindowSize = data[4]
		apdu.Service = data[5]
		apdu.Data = data[6:]
	}

	return apdu, nil
}

func decodeUnconfirmedRequest(data []byte) (*APDU, error) {
	if len(data) < 2 {
		return nil, ErrInvalidAPDU
	}

	return &APDU{
		Type:    PDUTypeUnconfirmedRequest,
		Service: data[1],
		Data:    data[2:],
	}, nil
}

func decodeShortPDU(pduType PDUType, data []byte) (*APDU, error) {
	if len(data) < 3 {
		return nil, ErrInvalidAPDU
	}

	return &APDU{
		Type:     pduType,
		InvokeID: data[1],
		Service:  data[2],
	}, nil
}

func decodeComplexAck(data []byte) (*APDU, error) {
	if len(data) < 3 {
		return nil, ErrInvalidAPDU
	}

	apdu := &APDU{
		Type:        PDUTypeComplexAck,
		Segmented:   data[0]&0x08 != 0,
		MoreFollows: data[0]&0x04 != 0,
		InvokeID:    data[1],
		Service:     data[2],
		Data:        data[3:],
	}

	if apdu.Segmented {
		if len(data) < 5 {
			return nil, ErrInvalidAPDU
		}
		apdu.SequenceNum = data[2]
		apdu.WindowSize = data[3]
		apdu.Service = data[4]
		apdu.Data = data[5:]
	}

	return apdu, nil
}

// DecodeErrorAPDU decodes the class and code carried by an Error APDU
func DecodeErrorAPDU(apdu *APDU) (*BACnetError, error) {
	if apdu.Type != PDUTypeError {
		return nil, fmt.Errorf("%w: not an error PDU", ErrInvalidAPDU)
	}
	class, n, err := DecodeApplicationValue(apdu.Data)
	if err != nil {
		return nil, err
	}
	code, _, err := DecodeApplicationValue(apdu.Data[n:])
	if err != nil {
		return nil, err
	}
	if class.Tag != TagEnumerated || code.Tag != TagEnumerated {
		return nil, fmt.Errorf("%w: error class/code must be enumerated", ErrInvalidAPDU)
	}
	return NewBACnetError(ErrorClass(class.Enumerated), ErrorCode(code.Enumerated)), nil
}
