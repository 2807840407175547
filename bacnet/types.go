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

// Package bacnet provides the BACnet protocol vocabulary and codec used by the
// routing gateway: object, property and service enumerations, addresses, the
// application tag codec and NPDU/APDU framing.
package bacnet

import (
	"fmt"
	"strconv"
)

// DefaultPort is the standard BACnet/IP UDP port
const DefaultPort = 47808

// MaxAPDULength is the maximum APDU length for BACnet/IP
const MaxAPDULength = 1476

// MaxInstance is the largest valid object instance number (22 bits)
const MaxInstance = 0x3FFFFF

// BroadcastNetwork is the global broadcast network number
const BroadcastNetwork uint16 = 0xFFFF

// MaxMACLength is the longest MAC address a BACnet address carries
const MaxMACLength = 7

// BVLC Types (BACnet Virtual Link Control)
type BVLCType uint8

const (
	BVLCTypeBACnetIP BVLCType = 0x81
)

// BVLC Functions
type BVLCFunction uint8

const (
	BVLCResult                BVLCFunction = 0x00
	BVLCForwardedNPDU         BVLCFunction = 0x04
	BVLCRegisterForeignDevice BVLCFunction = 0x05
	BVLCOriginalUnicastNPDU   BVLCFunction = 0x0A
	BVLCOriginalBroadcastNPDU BVLCFunction = 0x0B
)

// NPDU Network Layer Protocol Control Information
type NPDUControl uint8

const (
	NPDUControlNetworkLayerMessage NPDUControl = 0x80
	NPDUControlDestSpecifier       NPDUControl = 0x20
	NPDUControlSourceSpecifier     NPDUControl = 0x08
	NPDUControlExpectingReply      NPDUControl = 0x04
	NPDUControlPriorityNormal      NPDUControl = 0x00
	NPDUControlPriorityUrgent      NPDUControl = 0x01
	NPDUControlPriorityCritical    NPDUControl = 0x02
	NPDUControlPriorityLifeSafety  NPDUControl = 0x03
)

// Network Layer Message Types
type NetworkMessageType uint8

const (
	NetworkMessageWhoIsRouterToNetwork      NetworkMessageType = 0x00
	NetworkMessageIAmRouterToNetwork        NetworkMessageType = 0x01
	NetworkMessageRejectMessageToNetwork    NetworkMessageType = 0x03
	NetworkMessageInitializeRoutingTable    NetworkMessageType = 0x06
	NetworkMessageInitializeRoutingTableAck NetworkMessageType = 0x07
)

func (m NetworkMessageType) String() string {
	switch m {
	case NetworkMessageWhoIsRouterToNetwork:
		return "Who-Is-Router-To-Network"
	case NetworkMessageIAmRouterToNetwork:
		return "I-Am-Router-To-Network"
	case NetworkMessageRejectMessageToNetwork:
		return "Reject-Message-To-Network"
	case NetworkMessageInitializeRoutingTable:
		return "Initialize-Routing-Table"
	case NetworkMessageInitializeRoutingTableAck:
		return "Initialize-Routing-Table-Ack"
	default:
		return fmt.Sprintf("network-message(%d)", m)
	}
}

// PDU Types (Application Layer)
type PDUType uint8

const (
	PDUTypeConfirmedRequest   PDUType = 0x00
	PDUTypeUnconfirmedRequest PDUType = 0x10
	PDUTypeSimpleAck          PDUType = 0x20
	PDUTypeComplexAck         PDUType = 0x30
	PDUTypeSegmentAck         PDUType = 0x40
	PDUTypeError              PDUType = 0x50
	PDUTypeReject             PDUType = 0x60
	PDUTypeAbort              PDUType = 0x70
)

// Confirmed Service Choices
type ConfirmedServiceChoice uint8

const (
	ServiceSubscribeCOV               ConfirmedServiceChoice = 5
	ServiceReadProperty               ConfirmedServiceChoice = 12
	ServiceReadPropertyMultiple       ConfirmedServiceChoice = 14
	ServiceWriteProperty              ConfirmedServiceChoice = 15
	ServiceWritePropertyMultiple      ConfirmedServiceChoice = 16
	ServiceDeviceCommunicationControl ConfirmedServiceChoice = 17
	ServiceConfirmedPrivateTransfer   ConfirmedServiceChoice = 18
	ServiceReinitializeDevice         ConfirmedServiceChoice = 20
	ServiceReadRange                  ConfirmedServiceChoice = 26
)

func (s ConfirmedServiceChoice) String() string {
	names := map[ConfirmedServiceChoice]string{
		ServiceSubscribeCOV:               "SubscribeCOV",
		ServiceReadProperty:               "ReadProperty",
		ServiceReadPropertyMultiple:       "ReadPropertyMultiple",
		ServiceWriteProperty:              "WriteProperty",
		ServiceWritePropertyMultiple:      "WritePropertyMultiple",
		ServiceDeviceCommunicationControl: "DeviceCommunicationControl",
		ServiceConfirmedPrivateTransfer:   "ConfirmedPrivateTransfer",
		ServiceReinitializeDevice:         "ReinitializeDevice",
		ServiceReadRange:                  "ReadRange",
	}
	if name, ok := names[s]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", s)
}

// ObjectType represents BACnet object types
type ObjectType uint16

const (
	ObjectTypeAnalogInput  ObjectType = 0
	ObjectTypeAnalogOutput ObjectType = 1
	ObjectTypeAnalogValue  ObjectType = 2
	ObjectTypeBinaryInput  ObjectType = 3
	ObjectTypeBinaryOutput ObjectType = 4
	ObjectTypeBinaryValue  ObjectType = 5
	ObjectTypeDevice       ObjectType = 8
	ObjectTypeNetworkPort  ObjectType = 56
)

func (o ObjectType) String() string {
	names := map[ObjectType]string{
		ObjectTypeAnalogInput:  "analog-input",
		ObjectTypeAnalogOutput: "analog-output",
		ObjectTypeAnalogValue:  "analog-value",
		ObjectTypeBinaryInput:  "binary-input",
		ObjectTypeBinaryOutput: "binary-output",
		ObjectTypeBinaryValue:  "binary-value",
		ObjectTypeDevice:       "device",
		ObjectTypeNetworkPort:  "network-port",
	}
	if name, ok := names[o]; ok {
		return name
	}
	return fmt.Sprintf("vendor-specific(%d)", o)
}

// ParseObjectType parses an object type name, a short alias or a number
func ParseObjectType(s string) (ObjectType, bool) {
	aliases := map[string]ObjectType{
		"ai":  ObjectTypeAnalogInput,
		"ao":  ObjectTypeAnalogOutput,
		"av":  ObjectTypeAnalogValue,
		"bi":  ObjectTypeBinaryInput,
		"bo":  ObjectTypeBinaryOutput,
		"bv":  ObjectTypeBinaryValue,
		"dev": ObjectTypeDevice,
	}
	if o, ok := aliases[s]; ok {
		return o, true
	}
	for o := ObjectTypeAnalogInput; o <= ObjectTypeNetworkPort; o++ {
		if o.String() == s {
			return o, true
		}
	}
	if n, err := strconv.ParseUint(s, 10, 10); err == nil {
		return ObjectType(n), true
	}
	return 0, false
}

// PropertyIdentifier represents BACnet property identifiers
type PropertyIdentifier uint32

const (
	PropertyAll                        PropertyIdentifier = 8
	PropertyApduTimeout                PropertyIdentifier = 11
	PropertyApplicationSoftwareVersion PropertyIdentifier = 12
	PropertyDescription                PropertyIdentifier = 28
	PropertyDeviceAddressBinding       PropertyIdentifier = 30
	PropertyFirmwareRevision           PropertyIdentifier = 44
	PropertyLocation                   PropertyIdentifier = 58
	PropertyMaxApduLengthAccepted      PropertyIdentifier = 62
	PropertyModelName                  PropertyIdentifier = 70
	PropertyNumberOfApduRetries        PropertyIdentifier = 73
	PropertyObjectIdentifier           PropertyIdentifier = 75
	PropertyObjectList                 PropertyIdentifier = 76
	PropertyObjectName                 PropertyIdentifier = 77
	PropertyObjectType                 PropertyIdentifier = 79
	PropertyPresentValue               PropertyIdentifier = 85
	PropertyProtocolVersion            PropertyIdentifier = 98
	PropertySegmentationSupported      PropertyIdentifier = 107
	PropertySystemStatus               PropertyIdentifier = 112
	PropertyVendorIdentifier           PropertyIdentifier = 120
	PropertyVendorName                 PropertyIdentifier = 121
	PropertyProtocolRevision           PropertyIdentifier = 139
	PropertyDatabaseRevision           PropertyIdentifier = 155
)

var propertyNames = map[PropertyIdentifier]string{
	PropertyAll:                        "all",
	PropertyApduTimeout:                "apdu-timeout",
	PropertyApplicationSoftwareVersion: "application-software-version",
	PropertyDescription:                "description",
	PropertyDeviceAddressBinding:       "device-address-binding",
	PropertyFirmwareRevision:           "firmware-revision",
	PropertyLocation:                   "location",
	PropertyMaxApduLengthAccepted:      "max-apdu-length-accepted",
	PropertyModelName:                  "model-name",
	PropertyNumberOfApduRetries:        "number-of-apdu-retries",
	PropertyObjectIdentifier:           "object-identifier",
	PropertyObjectList:                 "object-list",
	PropertyObjectName:                 "object-name",
	PropertyObjectType:                 "object-type",
	PropertyPresentValue:               "present-value",
	PropertyProtocolVersion:            "protocol-version",
	PropertySegmentationSupported:      "segmentation-supported",
	PropertySystemStatus:               "system-status",
	PropertyVendorIdentifier:           "vendor-identifier",
	PropertyVendorName:                 "vendor-name",
	PropertyProtocolRevision:           "protocol-revision",
	PropertyDatabaseRevision:           "database-revision",
}

func (p PropertyIdentifier) String() string {
	if name, ok := propertyNames[p]; ok {
		return name
	}
	return fmt.Sprintf("property(%d)", p)
}

// ParsePropertyIdentifier parses a property name, a short alias or a number
func ParsePropertyIdentifier(s string) (PropertyIdentifier, bool) {
	aliases := map[string]PropertyIdentifier{
		"oid":  PropertyObjectIdentifier,
		"name": PropertyObjectName,
		"type": PropertyObjectType,
		"desc": PropertyDescription,
		"rev":  PropertyDatabaseRevision,
		"pv":   PropertyPresentValue,
	}
	if p, ok := aliases[s]; ok {
		return p, true
	}
	for p, name := range propertyNames {
		if name == s {
			return p, true
		}
	}
	if n, err := strconv.ParseUint(s, 10, 22); err == nil {
		return PropertyIdentifier(n), true
	}
	return 0, false
}

// ObjectIdentifier represents a BACnet object identifier (type + instance)
type ObjectIdentifier struct {
	Type     ObjectType
	Instance uint32
}

// NewObjectIdentifier creates a new ObjectIdentifier
func NewObjectIdentifier(objectType ObjectType, instance uint32) ObjectIdentifier {
	return ObjectIdentifier{
		Type:     objectType,
		Instance: instance,
	}
}

// Encode encodes the object identifier to a 4-byte value
func (o ObjectIdentifier) Encode() uint32 {
	return (uint32(o.Type) << 22) | (o.Instance & MaxInstance)
}

// DecodeObjectIdentifier decodes a 4-byte value to an ObjectIdentifier
func DecodeObjectIdentifier(value uint32) ObjectIdentifier {
	return ObjectIdentifier{
		Type:     ObjectType((value >> 22) & 0x3FF),
		Instance: value & MaxInstance,
	}
}

func (o ObjectIdentifier) String() string {
	return fmt.Sprintf("%s:%d", o.Type.String(), o.Instance)
}

// Segmentation represents the BACnet segmentation capability
type Segmentation uint8

const (
	SegmentationBoth     Segmentation = 0
	SegmentationTransmit Segmentation = 1
	SegmentationReceive  Segmentation = 2
	SegmentationNone     Segmentation = 3
)

func (s Segmentation) String() string {
	names := map[Segmentation]string{
		SegmentationBoth:     "segmented-both",
		SegmentationTransmit: "segmented-transmit",
		SegmentationReceive:  "segmented-receive",
		SegmentationNone:     "no-segmentation",
	}
	if name, ok := names[s]; ok {
		return name
	}
	return fmt.Sprintf("segmentation(%d)", s)
}

// DeviceStatus represents the BACnet device status
type DeviceStatus uint8

const (
	DeviceStatusOperational         DeviceStatus = 0
	DeviceStatusOperationalReadOnly DeviceStatus = 1
	DeviceStatusDownloadRequired    DeviceStatus = 2
	DeviceStatusDownloadInProgress  DeviceStatus = 3
	DeviceStatusNonOperational      DeviceStatus = 4
	DeviceStatusBackupInProgress    DeviceStatus = 5
)

func (d DeviceStatus) String() string {
	names := map[DeviceStatus]string{
		DeviceStatusOperational:         "operational",
		DeviceStatusOperationalReadOnly: "operational-read-only",
		DeviceStatusDownloadRequired:    "download-required",
		DeviceStatusDownloadInProgress:  "download-in-progress",
		DeviceStatusNonOperational:      "non-operational",
		DeviceStatusBackupInProgress:    "backup-in-progress",
	}
	if name, ok := names[d]; ok {
		return name
	}
	return fmt.Sprintf("device-status(%d)", d)
}

// CharacterSet identifies the encoding of a character string
type CharacterSet uint8

const (
	CharacterUTF8     CharacterSet = 0
	CharacterDBCS     CharacterSet = 1
	CharacterJISX0208 CharacterSet = 2
	CharacterUCS4     CharacterSet = 3
	CharacterUCS2     CharacterSet = 4
	CharacterISO8859  CharacterSet = 5
)

// CharacterString is an encoded BACnet character string
type CharacterString struct {
	Encoding CharacterSet
	Value    []byte
}

// NewCharacterString creates a UTF-8 character string
func NewCharacterString(s string) CharacterString {
	return CharacterString{Encoding: CharacterUTF8, Value: []byte(s)}
}

func (c CharacterString) String() string {
	return string(c.Value)
}

// Address represents a BACnet address. A zero length Addr is a MAC broadcast.
type Address struct {
	Net  uint16
	Addr []byte
}

func (a Address) String() string {
	return fmt.Sprintf("%d:%x", a.Net, a.Addr)
}

// Tag types for BACnet encoding
type TagClass uint8

const (
	TagClassApplication TagClass = 0
	TagClassContext     TagClass = 1
)

type ApplicationTag uint8

const (
	TagNull            ApplicationTag = 0
	TagBoolean         ApplicationTag = 1
	TagUnsignedInt     ApplicationTag = 2
	TagSignedInt       ApplicationTag = 3
	TagReal            ApplicationTag = 4
	TagDouble          ApplicationTag = 5
	TagOctetString     ApplicationTag = 6
	TagCharacterString ApplicationTag = 7
	TagBitString       ApplicationTag = 8
	TagEnumerated      ApplicationTag = 9
	TagDate            ApplicationTag = 10
	TagTime            ApplicationTag = 11
	TagObjectID        ApplicationTag = 12
)

func (t ApplicationTag) String() string {
	names := [...]string{
		"null", "boolean", "unsigned", "signed", "real", "double",
		"octet-string", "character-string", "bit-string", "enumerated",
		"date", "time", "object-identifier",
	}
	if int(t) < len(names) {
		return names[t]
	}
	return fmt.Sprintf("tag(%d)", t)
}
