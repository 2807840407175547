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
	"errors"
	"fmt"
)

// Sentinel errors
var (
	ErrInvalidAPDU  = errors.New("bacnet: invalid APDU")
	ErrInvalidNPDU  = errors.New("bacnet: invalid NPDU")
	ErrInvalidBVLC  = errors.New("bacnet: invalid BVLC header")
	ErrInvalidTag   = errors.New("bacnet: invalid tag")
	ErrTruncated    = errors.New("bacnet: truncated data")
	ErrUnknownValue = errors.New("bacnet: unsupported application value")

	ErrNotConnected     = errors.New("bacnet: not connected")
	ErrAlreadyConnected = errors.New("bacnet: already connected")
	ErrConnectionClosed = errors.New("bacnet: connection closed")
	ErrTimeout          = errors.New("bacnet: request timeout")
	ErrInvalidResponse  = errors.New("bacnet: invalid response")
)

// ErrorClass represents BACnet error classes
type ErrorClass uint8

const (
	ErrorClassDevice        ErrorClass = 0
	ErrorClassObject        ErrorClass = 1
	ErrorClassProperty      ErrorClass = 2
	ErrorClassResources     ErrorClass = 3
	ErrorClassSecurity      ErrorClass = 4
	ErrorClassServices      ErrorClass = 5
	ErrorClassVT            ErrorClass = 6
	ErrorClassCommunication ErrorClass = 7
)

func (e ErrorClass) String() string {
	names := map[ErrorClass]string{
		ErrorClassDevice:        "device",
		ErrorClassObject:        "object",
		ErrorClassProperty:      "property",
		ErrorClassResources:     "resources",
		ErrorClassSecurity:      "security",
		ErrorClassServices:      "services",
		ErrorClassVT:            "vt",
		ErrorClassCommunication: "communication",
	}
	if name, ok := names[e]; ok {
		return name
	}
	return fmt.Sprintf("error-class(%d)", e)
}

// ErrorCode represents BACnet error codes
type ErrorCode uint8

const (
	ErrorCodeOther                    ErrorCode = 0
	ErrorCodeInvalidDataType          ErrorCode = 9
	ErrorCodeUnknownObject            ErrorCode = 31
	ErrorCodeUnknownProperty          ErrorCode = 32
	ErrorCodeValueOutOfRange          ErrorCode = 37
	ErrorCodeWriteAccessDenied        ErrorCode = 40
	ErrorCodeCharacterSetNotSupported ErrorCode = 41
	ErrorCodeInvalidArrayIndex        ErrorCode = 42
	ErrorCodeDuplicateObjectID        ErrorCode = 49
	ErrorCodePropertyIsNotAnArray     ErrorCode = 50
	ErrorCodePasswordFailure          ErrorCode = 26
	ErrorCodeReadAccessDenied         ErrorCode = 27
	ErrorCodeServiceRequestDenied     ErrorCode = 29
	ErrorCodeUnknownDevice            ErrorCode = 70
	ErrorCodeUnknownRoute             ErrorCode = 71
)

func (e ErrorCode) String() string {
	names := map[ErrorCode]string{
		ErrorCodeOther:                    "other",
		ErrorCodeInvalidDataType:          "invalid-data-type",
		ErrorCodeUnknownObject:            "unknown-object",
		ErrorCodeUnknownProperty:          "unknown-property",
		ErrorCodeValueOutOfRange:          "value-out-of-range",
		ErrorCodeWriteAccessDenied:        "write-access-denied",
		ErrorCodeCharacterSetNotSupported: "character-set-not-supported",
		ErrorCodeInvalidArrayIndex:        "invalid-array-index",
		ErrorCodeDuplicateObjectID:        "duplicate-object-id",
		ErrorCodePropertyIsNotAnArray:     "property-is-not-an-array",
		ErrorCodePasswordFailure:          "password-failure",
		ErrorCodeReadAccessDenied:         "read-access-denied",
		ErrorCodeServiceRequestDenied:     "service-request-denied",
		ErrorCodeUnknownDevice:            "unknown-device",
		ErrorCodeUnknownRoute:             "unknown-route",
	}
	if name, ok := names[e]; ok {
		return name
	}
	return fmt.Sprintf("error-code(%d)", e)
}

// BACnetError represents a BACnet protocol error
type BACnetError struct {
	Class ErrorClass
	Code  ErrorCode
}

func (e *BACnetError) Error() string {
	return fmt.Sprintf("bacnet error: class=%s, code=%s", e.Class, e.Code)
}

func (e *BACnetError) Is(target error) bool {
	t, ok := target.(*BACnetError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// NewBACnetError creates a new BACnet error
func NewBACnetError(class ErrorClass, code ErrorCode) *BACnetError {
	return &BACnetError{
		Class: class,
		Code:  code,
	}
}

// PropertyError is shorthand for an error in the property class
func PropertyError(code ErrorCode) *BACnetError {
	return NewBACnetError(ErrorClassProperty, code)
}

// RejectReason represents BACnet reject reasons
type RejectReason uint8

const (
	RejectReasonOther                    RejectReason = 0
	RejectReasonBufferOverflow           RejectReason = 1
	RejectReasonInconsistentParameters   RejectReason = 2
	RejectReasonInvalidParameterDataType RejectReason = 3
	RejectReasonInvalidTag               RejectReason = 4
	RejectReasonMissingRequiredParameter RejectReason = 5
	RejectReasonParameterOutOfRange      RejectReason = 6
	RejectReasonTooManyArguments         RejectReason = 7
	RejectReasonUndefinedEnumeration     RejectReason = 8
	RejectReasonUnrecognizedService      RejectReason = 9
)

func (r RejectReason) String() string {
	names := map[RejectReason]string{
		RejectReasonOther:                    "other",
		RejectReasonBufferOverflow:           "buffer-overflow",
		RejectReasonInconsistentParameters:   "inconsistent-parameters",
		RejectReasonInvalidParameterDataType: "invalid-parameter-data-type",
		RejectReasonInvalidTag:               "invalid-tag",
		RejectReasonMissingRequiredParameter: "missing-required-parameter",
		RejectReasonParameterOutOfRange:      "parameter-out-of-range",
		RejectReasonTooManyArguments:         "too-many-arguments",
		RejectReasonUndefinedEnumeration:     "undefined-enumeration",
		RejectReasonUnrecognizedService:      "unrecognized-service",
	}
	if name, ok := names[r]; ok {
		return name
	}
	return fmt.Sprintf("reject-reason(%d)", r)
}

// RejectError represents a BACnet reject response
type RejectError struct {
	InvokeID uint8
	Reason   RejectReason
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("bacnet reject: invoke-id=%d, reason=%s", e.InvokeID, e.Reason)
}

// AbortReason represents BACnet abort reasons
type AbortReason uint8

const (
	AbortReasonOther                    AbortReason = 0
	AbortReasonBufferOverflow           AbortReason = 1
	AbortReasonInvalidAPDUInThisState   AbortReason = 2
	AbortReasonPreemptedByHigherPrio    AbortReason = 3
	AbortReasonSegmentationNotSupported AbortReason = 4
)

// AbortError represents a BACnet abort response
type AbortError struct {
	InvokeID uint8
	Reason   AbortReason
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("bacnet abort: invoke-id=%d, reason=%d", e.InvokeID, e.Reason)
}

// IsPropertyNotFound returns true if the error indicates an unknown property
func IsPropertyNotFound(err error) bool {
	var bacnetErr *BACnetError
	if errors.As(err, &bacnetErr) {
		return bacnetErr.Code == ErrorCodeUnknownProperty
	}
	return false
}

// IsAccessDenied returns true if the error indicates access denied
func IsAccessDenied(err error) bool {
	var bacnetErr *BACnetError
	if errors.As(err, &bacnetErr) {
		return bacnetErr.Code == ErrorCodeReadAccessDenied || bacnetErr.Code == ErrorCodeWriteAccessDenied
	}
	return false
}

// IsOutOfRange returns true if the error indicates a value out of range
func IsOutOfRange(err error) bool {
	var bacnetErr *BACnetError
	if errors.As(err, &bacnetErr) {
		return bacnetErr.Code == ErrorCodeValueOutOfRange
	}
	return false
}

// IsUnrecognizedService returns true if the error is a reject for an unrecognized service
func IsUnrecognizedService(err error) bool {
	var rejectErr *RejectError
	if errors.As(err, &rejectErr) {
		return rejectErr.Reason == RejectReasonUnrecognizedService
	}
	return false
}
