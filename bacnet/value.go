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
	"encoding/hex"
	"fmt"
	"math"
)

// ApplicationValue is a single application-tagged value
type ApplicationValue struct {
	Tag             ApplicationTag
	Boolean         bool
	Unsigned        uint32
	Signed          int32
	Real            float32
	Double          float64
	Enumerated      uint32
	CharacterString CharacterString
	ObjectID        ObjectIdentifier
	Raw             []byte // octet string, bit string, date and time contents
}

// Encode encodes the value with its application tag
func (v ApplicationValue) Encode() []byte {
	var data []byte
	switch v.Tag {
	case TagNull:
		return []byte{0x00}
	case TagBoolean:
		return EncodeBooleanTag(v.Boolean)
	case TagUnsignedInt:
		data = EncodeUnsigned(v.Unsigned)
	case TagSignedInt:
		data = EncodeSigned(v.Signed)
	case TagReal:
		data = EncodeReal(v.Real)
	case TagDouble:
		data = EncodeDouble(v.Double)
	case TagEnumerated:
		data = EncodeUnsigned(v.Enumerated)
	case TagCharacterString:
		data = EncodeCharacterString(v.CharacterString)
	case TagObjectID:
		data = EncodeObjectIdentifier(v.ObjectID)
	default:
		data = v.Raw
	}
	tag := EncodeTag(uint8(v.Tag), TagClassApplication, len(data))
	return append(tag, data...)
}

func (v ApplicationValue) String() string {
	switch v.Tag {
	case TagNull:
		return "null"
	case TagBoolean:
		return fmt.Sprintf("%t", v.Boolean)
	case TagUnsignedInt:
		return fmt.Sprintf("%d", v.Unsigned)
	case TagSignedInt:
		return fmt.Sprintf("%d", v.Signed)
	case TagReal:
		return fmt.Sprintf("%g", v.Real)
	case TagDouble:
		return fmt.Sprintf("%g", v.Double)
	case TagEnumerated:
		return fmt.Sprintf("%d", v.Enumerated)
	case TagCharacterString:
		return v.CharacterString.String()
	case TagObjectID:
		return v.ObjectID.String()
	default:
		return hex.EncodeToString(v.Raw)
	}
}

// Interface returns the value as a plain Go value for output formatting
func (v ApplicationValue) Interface() interface{} {
	switch v.Tag {
	case TagNull:
		return nil
	case TagBoolean:
		return v.Boolean
	case TagUnsignedInt:
		return v.Unsigned
	case TagSignedInt:
		return v.Signed
	case TagReal:
		return v.Real
	case TagDouble:
		return v.Double
	case TagEnumerated:
		return v.Enumerated
	case TagCharacterString:
		return v.CharacterString.String()
	case TagObjectID:
		return v.ObjectID.String()
	default:
		return hex.EncodeToString(v.Raw)
	}
}

// DecodeApplicationValue decodes one application-tagged value and returns
// the number of bytes consumed
func DecodeApplicationValue(data []byte) (ApplicationValue, int, error) {
	tag, headerLen, err := DecodeTag(data)
	if err != nil {
		return ApplicationValue{}, 0, err
	}
	if tag.Class != TagClassApplication {
		return ApplicationValue{}, 0, fmt.Errorf("%w: expected application tag, got context tag %d", ErrInvalidTag, tag.Number)
	}
	if len(data) < headerLen+tag.Length {
		return ApplicationValue{}, 0, ErrTruncated
	}

	content := data[headerLen : headerLen+tag.Length]
	v := ApplicationValue{Tag: ApplicationTag(tag.Number)}
	n := headerLen + tag.Length

	badLength := func() (ApplicationValue, int, error) {
		return ApplicationValue{}, 0, fmt.Errorf("%w: %s with length %d", ErrInvalidTag, v.Tag, tag.Length)
	}

	switch v.Tag {
	case TagNull:
	case TagBoolean:
		v.Boolean = tag.Boolean
	case TagUnsignedInt:
		if tag.Length < 1 || tag.Length > 4 {
			return badLength()
		}
		v.Unsigned = DecodeUnsigned(content)
	case TagSignedInt:
		if tag.Length < 1 || tag.Length > 4 {
			return badLength()
		}
		v.Signed = DecodeSigned(content)
	case TagReal:
		if tag.Length != 4 {
			return badLength()
		}
		v.Real = math.Float32frombits(binary.BigEndian.Uint32(content))
	case TagDouble:
		if tag.Length != 8 {
			return badLength()
		}
		v.Double = math.Float64frombits(binary.BigEndian.Uint64(content))
	case TagEnumerated:
		if tag.Length < 1 || tag.Length > 4 {
			return badLength()
		}
		v.Enumerated = DecodeUnsigned(content)
	case TagCharacterString:
		if tag.Length < 1 {
			return badLength()
		}
		v.CharacterString = CharacterString{
			Encoding: CharacterSet(content[0]),
			Value:    append([]byte(nil), content[1:]...),
		}
	case TagObjectID:
		if tag.Length != 4 {
			return badLength()
		}
		v.ObjectID = DecodeObjectIdentifier(binary.BigEndian.Uint32(content))
	case TagOctetString, TagBitString, TagDate, TagTime:
		v.Raw = append([]byte(nil), content...)
	default:
		return ApplicationValue{}, 0, fmt.Errorf("%w: application tag %d", ErrUnknownValue, tag.Number)
	}

	return v, n, nil
}

// DecodeApplicationValues decodes a run of application-tagged values
func DecodeApplicationValues(data []byte) ([]ApplicationValue, error) {
	var values []ApplicationValue
	for len(data) > 0 {
		v, n, err := DecodeApplicationValue(data)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
		data = data[n:]
	}
	return values, nil
}
