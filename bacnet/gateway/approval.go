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

package gateway

import (
	"errors"

	"github.com/edgeo-scada/bacnet-gateway/bacnet"
)

// gatewayOnly lists the services only the gateway device may execute
var gatewayOnly = map[bacnet.ConfirmedServiceChoice]bool{
	bacnet.ServiceReinitializeDevice:         true,
	bacnet.ServiceDeviceCommunicationControl: true,
}

// Approve decides whether the device at h may execute service. Gateway-only
// services addressed to a routed device are rejected as unrecognized.
func Approve(service bacnet.ConfirmedServiceChoice, h Handle) error {
	if gatewayOnly[service] && h != GatewayHandle {
		return &bacnet.RejectError{Reason: bacnet.RejectReasonUnrecognizedService}
	}
	return nil
}

// RejectAPDU returns the encoded Reject PDU for a refused service, or nil
// when the service is approved
func RejectAPDU(service bacnet.ConfirmedServiceChoice, h Handle, invokeID uint8) []byte {
	err := Approve(service, h)
	if err == nil {
		return nil
	}
	var reject *bacnet.RejectError
	if !errors.As(err, &reject) {
		return nil
	}
	return bacnet.EncodeReject(invokeID, reject.Reason)
}

// Approve runs the service gate for the selected device and counts
// rejections
func (a ActiveDevice) Approve(service bacnet.ConfirmedServiceChoice) error {
	err := Approve(service, a.handle)
	if err != nil && a.Valid() {
		a.table.metrics.Rejected.Inc()
	}
	return err
}
