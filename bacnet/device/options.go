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
	"log/slog"
	"time"

	"github.com/edgeo-scada/bacnet-gateway/bacnet"
)

// objectOptions holds the static configuration of a Device object
type objectOptions struct {
	instance    uint32
	name        string
	description string
	location    string

	vendorName       string
	vendorID         uint16
	modelName        string
	firmwareRevision string
	softwareVersion  string

	protocolVersion  uint32
	protocolRevision uint32
	status           bacnet.DeviceStatus
	maxAPDU          uint32
	segmentation     bacnet.Segmentation
	apduTimeout      time.Duration
	apduRetries      uint32

	logger *slog.Logger
}

func defaultOptions() *objectOptions {
	return &objectOptions{
		instance:         bacnet.MaxInstance - 1,
		name:             "Gateway",
		vendorName:       "Edgeo SCADA",
		vendorID:         260,
		modelName:        "edgeo-gateway",
		firmwareRevision: "1.0",
		softwareVersion:  "1.0.0",
		protocolVersion:  1,
		protocolRevision: 14,
		status:           bacnet.DeviceStatusOperational,
		maxAPDU:          bacnet.MaxAPDULength,
		segmentation:     bacnet.SegmentationNone,
		apduTimeout:      3 * time.Second,
		apduRetries:      3,
		logger:           slog.Default(),
	}
}

// Option configures a Device object
type Option func(*objectOptions)

// WithInstance sets the device object instance
func WithInstance(instance uint32) Option {
	return func(o *objectOptions) {
		o.instance = instance
	}
}

// WithName sets the object name
func WithName(name string) Option {
	return func(o *objectOptions) {
		o.name = name
	}
}

// WithDescription sets the description
func WithDescription(description string) Option {
	return func(o *objectOptions) {
		o.description = description
	}
}

// WithLocation sets the initial location
func WithLocation(location string) Option {
	return func(o *objectOptions) {
		o.location = location
	}
}

// WithVendor sets the vendor name and identifier
func WithVendor(name string, id uint16) Option {
	return func(o *objectOptions) {
		o.vendorName = name
		o.vendorID = id
	}
}

// WithModelName sets the model name
func WithModelName(model string) Option {
	return func(o *objectOptions) {
		o.modelName = model
	}
}

// WithFirmwareRevision sets the firmware revision
func WithFirmwareRevision(rev string) Option {
	return func(o *objectOptions) {
		o.firmwareRevision = rev
	}
}

// WithSoftwareVersion sets the application software version
func WithSoftwareVersion(version string) Option {
	return func(o *objectOptions) {
		o.softwareVersion = version
	}
}

// WithAPDU sets the APDU timeout and retry count
func WithAPDU(timeout time.Duration, retries uint32) Option {
	return func(o *objectOptions) {
		o.apduTimeout = timeout
		o.apduRetries = retries
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *objectOptions) {
		o.logger = logger
	}
}
