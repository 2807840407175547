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

// Package device implements the BACnet Device object read and write paths
// that a gateway falls back to for properties it does not handle itself.
package device

import "github.com/edgeo-scada/bacnet-gateway/bacnet"

// ReadRequest is a ReadProperty request addressed to one object
type ReadRequest struct {
	ObjectID   bacnet.ObjectIdentifier
	Property   bacnet.PropertyIdentifier
	ArrayIndex *uint32
}

// WriteRequest is a WriteProperty request addressed to one object. Value
// holds the application-tagged value exactly as received.
type WriteRequest struct {
	ObjectID   bacnet.ObjectIdentifier
	Property   bacnet.PropertyIdentifier
	ArrayIndex *uint32
	Value      []byte
	Priority   uint8
}

// Handler serves property reads and writes. ReadProperty returns the encoded
// application-tagged value. Errors are *bacnet.BACnetError so the caller can
// answer with the right error class and code.
type Handler interface {
	ReadProperty(req *ReadRequest) ([]byte, error)
	WriteProperty(req *WriteRequest) error
}

// HandlerFuncs adapts a pair of functions to Handler
type HandlerFuncs struct {
	Read  func(req *ReadRequest) ([]byte, error)
	Write func(req *WriteRequest) error
}

// ReadProperty calls Read, answering unknown-property when it is nil
func (h HandlerFuncs) ReadProperty(req *ReadRequest) ([]byte, error) {
	if h.Read == nil {
		return nil, bacnet.PropertyError(bacnet.ErrorCodeUnknownProperty)
	}
	return h.Read(req)
}

// WriteProperty calls Write, answering write-access-denied when it is nil
func (h HandlerFuncs) WriteProperty(req *WriteRequest) error {
	if h.Write == nil {
		return bacnet.PropertyError(bacnet.ErrorCodeWriteAccessDenied)
	}
	return h.Write(req)
}
