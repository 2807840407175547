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
	"log/slog"

	"github.com/edgeo-scada/bacnet-gateway/bacnet/device"
)

// DefaultCapacity is the default number of devices a table holds,
// gateway included
const DefaultCapacity = 32

// String bounds shared with the Device object
const (
	MaxNameLen        = device.MaxNameLen
	MaxDescriptionLen = device.MaxDescriptionLen
)

// Placeholders used when a device is added without a name or description
const (
	DefaultName        = "No Name"
	DefaultDescription = "No Descr"
)

// tableOptions holds configuration for a device table
type tableOptions struct {
	capacity int
	logger   *slog.Logger
	metrics  *Metrics
}

func defaultOptions() *tableOptions {
	return &tableOptions{
		capacity: DefaultCapacity,
		logger:   slog.Default(),
	}
}

// Option is a functional option for configuring a Table
type Option func(*tableOptions)

// WithCapacity sets the fixed table capacity. Values below 1 are ignored.
func WithCapacity(n int) Option {
	return func(o *tableOptions) {
		if n >= 1 {
			o.capacity = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *tableOptions) {
		o.logger = logger
	}
}

// WithMetrics shares a metrics instance, e.g. with a server
func WithMetrics(m *Metrics) Option {
	return func(o *tableOptions) {
		o.metrics = m
	}
}

// deviceOptions holds the optional fields of a new device record
type deviceOptions struct {
	name        *string
	description *string
	address     []byte
}

// DeviceOption is a functional option for AddDevice
type DeviceOption func(*deviceOptions)

// WithObjectName sets the device object name
func WithObjectName(name string) DeviceOption {
	return func(o *deviceOptions) {
		o.name = &name
	}
}

// WithDescription sets the device description
func WithDescription(description string) DeviceOption {
	return func(o *deviceOptions) {
		o.description = &description
	}
}

// WithAddress sets the physical (MAC) address of the device
func WithAddress(addr []byte) DeviceOption {
	return func(o *deviceOptions) {
		o.address = append([]byte(nil), addr...)
	}
}
