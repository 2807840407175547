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
	"unicode/utf8"

	"github.com/edgeo-scada/bacnet-gateway/bacnet"
)

// String length limits, in bytes. Stored strings must be strictly shorter.
const (
	MaxNameLen        = 32
	MaxDescriptionLen = 64
)

// decodeSingle decodes exactly one application value from a write request
func decodeSingle(value []byte) (bacnet.ApplicationValue, error) {
	v, n, err := bacnet.DecodeApplicationValue(value)
	if err != nil || n != len(value) {
		return bacnet.ApplicationValue{}, bacnet.PropertyError(bacnet.ErrorCodeValueOutOfRange)
	}
	return v, nil
}

// DecodeString decodes a written character string. A value of another type
// is invalid-data-type; anything but valid UTF-8 is
// character-set-not-supported.
func DecodeString(value []byte) (string, error) {
	v, err := decodeSingle(value)
	if err != nil {
		return "", err
	}
	if v.Tag != bacnet.TagCharacterString {
		return "", bacnet.PropertyError(bacnet.ErrorCodeInvalidDataType)
	}
	cs := v.CharacterString
	if cs.Encoding != bacnet.CharacterUTF8 || !utf8.Valid(cs.Value) {
		return "", bacnet.PropertyError(bacnet.ErrorCodeCharacterSetNotSupported)
	}
	return string(cs.Value), nil
}

// DecodeBoundedString decodes a written character string that must be
// non-empty and shorter than limit bytes
func DecodeBoundedString(value []byte, limit int) (string, error) {
	s, err := DecodeString(value)
	if err != nil {
		return "", err
	}
	if len(s) == 0 || len(s) >= limit {
		return "", bacnet.PropertyError(bacnet.ErrorCodeValueOutOfRange)
	}
	return s, nil
}

// DecodeObjectIdentifier decodes a written object identifier. Any failure
// is value-out-of-range.
func DecodeObjectIdentifier(value []byte) (bacnet.ObjectIdentifier, error) {
	v, err := decodeSingle(value)
	if err != nil {
		return bacnet.ObjectIdentifier{}, err
	}
	if v.Tag != bacnet.TagObjectID {
		return bacnet.ObjectIdentifier{}, bacnet.PropertyError(bacnet.ErrorCodeValueOutOfRange)
	}
	return v.ObjectID, nil
}

// EncodeString encodes a UTF-8 character string value
func EncodeString(s string) []byte {
	return bacnet.EncodeCharacterStringTag(bacnet.NewCharacterString(s))
}
