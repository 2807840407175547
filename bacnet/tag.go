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
	"math"
)

// Tag is a decoded BACnet tag header
type Tag struct {
	Number  uint8
	Class   TagClass
	Length  int // content length; 0 for application booleans
	Opening bool
	Closing bool
	Boolean bool // value of an application boolean, carried in the header
}

// IsContext reports whether the tag is the context tag number n with content
func (t Tag) IsContext(n uint8) bool {
	return t.Class == TagClassContext && t.Number == n && !t.Opening && !t.Closing
}

// IsOpening reports whether the tag is the opening tag number n
func (t Tag) IsOpening(n uint8) bool {
	return t.Class == TagClassContext && t.Number == n && t.Opening
}

// IsClosing reports whether the tag is the closing tag number n
func (t Tag) IsClosing(n uint8) bool {
	return t.Class == TagClassContext && t.Number == n && t.Closing
}

// EncodeTag encodes a BACnet tag
func EncodeTag(tagNum uint8, class TagClass, length int) []byte {
	buf := make([]byte, 0, 7)

	var first byte = uint8(class) << 3
	if tagNum < 15 {
		first |= tagNum << 4
	} else {
		first |= 0xF0
	}
	if length < 5 {
		first |= uint8(length)
	} else {
		first |= 0x05
	}
	buf = append(buf, first)

	// Extended tag number
	if tagNum >= 15 {
		buf = append(buf, tagNum)
	}

	// Extended length
	if length >= 5 {
		if length < 254 {
			buf = append(buf, byte(length))
		} else if length < 65536 {
			buf = append(buf, 254)
			buf = append(buf, byte(length>>8), byte(length))
		} else {
			buf = append(buf, 255)
			buf = append(buf, byte(length>>24), byte(length>>16), byte(length>>8), byte(length))
		}
	}

	return buf
}

// EncodeContextTag encodes a context-specific tag
func EncodeContextTag(tagNum uint8, data []byte) []byte {
	tag := EncodeTag(tagNum, TagClassContext, len(data))
	return append(tag, data...)
}

// EncodeOpeningTag encodes an opening tag for constructed data
func EncodeOpeningTag(tagNum uint8) []byte {
	if tagNum < 15 {
		return []byte{(tagNum << 4) | 0x0E}
	}
	return []byte{0xFE, tagNum}
}

// EncodeClosingTag encodes a closing tag for constructed data
func EncodeClosingTag(tagNum uint8) []byte {
	if tagNum < 15 {
		return []byte{(tagNum << 4) | 0x0F}
	}
	return []byte{0xFF, tagNum}
}

// DecodeTag decodes a tag header and returns the header length
func DecodeTag(data []byte) (Tag, int, error) {
	if len(data) < 1 {
		return Tag{}, 0, ErrTruncated
	}

	tag := Tag{
		Number: (data[0] >> 4) & 0x0F,
		Class:  TagClass((data[0] >> 3) & 0x01),
	}
	lvt := data[0] & 0x07
	headerLen := 1

	// Extended tag number
	if tag.Number == 0x0F {
		if len(data) < 2 {
			return Tag{}, 0, ErrTruncated
		}
		tag.Number = data[1]
		headerLen = 2
	}

	if tag.Class == TagClassContext {
		switch lvt {
		case 6:
			tag.Opening = true
			return tag, headerLen, nil
		case 7:
			tag.Closing = true
			return tag, headerLen, nil
		}
	}

	if tag.Class == TagClassApplication && ApplicationTag(tag.Number) == TagBoolean {
		tag.Boolean = lvt != 0
		return tag, headerLen, nil
	}

	if lvt < 5 {
		tag.Length = int(lvt)
		return tag, headerLen, nil
	}

	// Extended length
	if len(data) < headerLen+1 {
		return Tag{}, 0, ErrTruncated
	}
	switch ext := data[headerLen]; {
	case ext < 254:
		tag.Length = int(ext)
		headerLen++
	case ext == 254:
		if len(data) < headerLen+3 {
			return Tag{}, 0, ErrTruncated
		}
		tag.Length = int(binary.BigEndian.Uint16(data[headerLen+1:]))
		headerLen += 3
	default:
		if len(data) < headerLen+5 {
			return Tag{}, 0, ErrTruncated
		}
		tag.Length = int(binary.BigEndian.Uint32(data[headerLen+1:]))
		headerLen += 5
	}

	return tag, headerLen, nil
}

// DecodeContextUnsigned decodes an unsigned value under context tag n
func DecodeContextUnsigned(data []byte, n uint8) (uint32, int, error) {
	tag, headerLen, err := DecodeTag(data)
	if err != nil {
		return 0, 0, err
	}
	if !tag.IsContext(n) || tag.Length < 1 || tag.Length > 4 {
		return 0, 0, fmt.Errorf("%w: expected context tag %d", ErrInvalidTag, n)
	}
	if len(data) < headerLen+tag.Length {
		return 0, 0, ErrTruncated
	}
	return DecodeUnsigned(data[headerLen : headerLen+tag.Length]), headerLen + tag.Length, nil
}

// DecodeContextObjectIdentifier decodes an object identifier under context tag n
func DecodeContextObjectIdentifier(data []byte, n uint8) (ObjectIdentifier, int, error) {
	tag, headerLen, err := DecodeTag(data)
	if err != nil {
		return ObjectIdentifier{}, 0, err
	}
	if !tag.IsContext(n) || tag.Length != 4 {
		return ObjectIdentifier{}, 0, fmt.Errorf("%w: expected object identifier in context tag %d", ErrInvalidTag, n)
	}
	if len(data) < headerLen+4 {
		return ObjectIdentifier{}, 0, ErrTruncated
	}
	return DecodeObjectIdentifier(binary.BigEndian.Uint32(data[headerLen:])), headerLen + 4, nil
}

// SkipToClosingTag returns the offset of closing tag n, skipping nested
// constructed data. data must start just after the matching opening tag.
func SkipToClosingTag(data []byte, n uint8) (int, error) {
	offset := 0
	depth := 0
	for offset < len(data) {
		tag, headerLen, err := DecodeTag(data[offset:])
		if err != nil {
			return 0, err
		}
		switch {
		case tag.Opening:
			depth++
		case tag.Closing:
			if depth == 0 {
				if tag.Number != n {
					return 0, fmt.Errorf("%w: closing tag %d, want %d", ErrInvalidTag, tag.Number, n)
				}
				return offset, nil
			}
			depth--
		default:
			if len(data) < offset+headerLen+tag.Length {
				return 0, ErrTruncated
			}
			offset += tag.Length
		}
		offset += headerLen
	}
	return 0, fmt.Errorf("%w: missing closing tag %d", ErrTruncated, n)
}

// EncodeUnsigned encodes an unsigned integer
func EncodeUnsigned(value uint32) []byte {
	if value < 0x100 {
		return []byte{byte(value)}
	} else if value < 0x10000 {
		return []byte{byte(value >> 8), byte(value)}
	} else if value < 0x1000000 {
		return []byte{byte(value >> 16), byte(value >> 8), byte(value)}
	}
	return []byte{byte(value >> 24), byte(value >> 16), byte(value >> 8), byte(value)}
}

// EncodeUnsignedTag encodes an unsigned integer with application tag
func EncodeUnsignedTag(value uint32) []byte {
	data := EncodeUnsigned(value)
	tag := EncodeTag(uint8(TagUnsignedInt), TagClassApplication, len(data))
	return append(tag, data...)
}

// EncodeContextUnsigned encodes an unsigned integer with context tag
func EncodeContextUnsigned(tagNum uint8, value uint32) []byte {
	return EncodeContextTag(tagNum, EncodeUnsigned(value))
}

// EncodeSigned encodes a signed integer
func EncodeSigned(value int32) []byte {
	if value >= -128 && value < 128 {
		return []byte{byte(value)}
	} else if value >= -32768 && value < 32768 {
		return []byte{byte(value >> 8), byte(value)}
	} else if value >= -8388608 && value < 8388608 {
		return []byte{byte(value >> 16), byte(value >> 8), byte(value)}
	}
	return []byte{byte(value >> 24), byte(value >> 16), byte(value >> 8), byte(value)}
}

// EncodeReal encodes a float32
func EncodeReal(value float32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, math.Float32bits(value))
	return buf
}

// EncodeDouble encodes a float64
func EncodeDouble(value float64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, math.Float64bits(value))
	return buf
}

// EncodeBooleanTag encodes a boolean with application tag
func EncodeBooleanTag(value bool) []byte {
	if value {
		return []byte{0x11}
	}
	return []byte{0x10}
}

// EncodeEnumeratedTag encodes an enumerated value with application tag
func EncodeEnumeratedTag(value uint32) []byte {
	data := EncodeUnsigned(value)
	tag := EncodeTag(uint8(TagEnumerated), TagClassApplication, len(data))
	return append(tag, data...)
}

// EncodeContextEnumerated encodes an enumerated value with context tag
func EncodeContextEnumerated(tagNum uint8, value uint32) []byte {
	return EncodeContextTag(tagNum, EncodeUnsigned(value))
}

// EncodeObjectIdentifier encodes an object identifier
func EncodeObjectIdentifier(oid ObjectIdentifier) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, oid.Encode())
	return buf
}

// EncodeObjectIdentifierTag encodes an object identifier with application tag
func EncodeObjectIdentifierTag(oid ObjectIdentifier) []byte {
	tag := EncodeTag(uint8(TagObjectID), TagClassApplication, 4)
	return append(tag, EncodeObjectIdentifier(oid)...)
}

// EncodeContextObjectIdentifier encodes an object identifier with context tag
func EncodeContextObjectIdentifier(tagNum uint8, oid ObjectIdentifier) []byte {
	return EncodeContextTag(tagNum, EncodeObjectIdentifier(oid))
}

// EncodeCharacterString encodes a character string with its character set byte
func EncodeCharacterString(cs CharacterString) []byte {
	data := make([]byte, 1+len(cs.Value))
	data[0] = byte(cs.Encoding)
	copy(data[1:], cs.Value)
	return data
}

// EncodeCharacterStringTag encodes a character string with application tag
func EncodeCharacterStringTag(cs CharacterString) []byte {
	data := EncodeCharacterString(cs)
	tag := EncodeTag(uint8(TagCharacterString), TagClassApplication, len(data))
	return append(tag, data...)
}

// DecodeUnsigned decodes an unsigned integer from data
func DecodeUnsigned(data []byte) uint32 {
	switch len(data) {
	case 1:
		return uint32(data[0])
	case 2:
		return uint32(binary.BigEndian.Uint16(data))
	case 3:
		return uint32(data[0])<<16 | uint32(data[1])<<8 | uint32(data[2])
	case 4:
		return binary.BigEndian.Uint32(data)
	default:
		return 0
	}
}

// DecodeSigned decodes a signed integer from data
func DecodeSigned(data []byte) int32 {
	switch len(data) {
	case 1:
		return int32(int8(data[0]))
	case 2:
		return int32(int16(binary.BigEndian.Uint16(data)))
	case 3:
		v := uint32(data[0])<<16 | uint32(data[1])<<8 | uint32(data[2])
		if data[0]&0x80 != 0 {
			v |= 0xFF000000
		}
		return int32(v)
	case 4:
		return int32(binary.BigEndian.Uint32(data))
	default:
		return 0
	}
}
