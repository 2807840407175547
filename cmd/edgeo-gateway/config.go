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


package main

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/spf13/viper"

	"github.com/edgeo-scada/bacnet-gateway/bacnet/device"
	"github.com/edgeo-scada/bacnet-gateway/bacnet/gateway"
)

// DeviceConfig describes one device of the topology
type DeviceConfig struct {
	Instance    uint32 `mapstructure:"instance" yaml:"instance" json:"instance"`
	Name        string `mapstructure:"name" yaml:"name,omitempty" json:"name,omitempty"`
	Description string `mapstructure:"description" yaml:"description,omitempty" json:"description,omitempty"`
	MAC         string `mapstructure:"mac" yaml:"mac,omitempty" json:"mac,omitempty"`
}

// GatewayConfig describes the gateway device
type GatewayConfig struct {
	DeviceConfig `mapstructure:",squash" yaml:",inline"`

	Location   string `mapstructure:"location" yaml:"location,omitempty" json:"location,omitempty"`
	VendorName string `mapstructure:"vendor-name" yaml:"vendor-name,omitempty" json:"vendor_name,omitempty"`
	VendorID   uint16 `mapstructure:"vendor-id" yaml:"vendor-id,omitempty" json:"vendor_id,omitempty"`
	ModelName  string `mapstructure:"model-name" yaml:"model-name,omitempty" json:"model_name,omitempty"`
}

// Topology is the gateway configuration read from the config file:
//
//	gateway:
//	  instance: 1000
//	  name: Gateway
//	networks: [100]
//	devices:
//	  - instance: 2001
//	    name: AHU-1
type Topology struct {
	Gateway  GatewayConfig  `mapstructure:"gateway" yaml:"gateway"`
	Networks []int          `mapstructure:"networks" yaml:"networks"`
	Devices  []DeviceConfig `mapstructure:"devices" yaml:"devices"`
	Password string         `mapstructure:"password" yaml:"-"`
}

// loadTopology reads the topology from viper
func loadTopology() (*Topology, error) {
	var topo Topology
	if err := viper.Unmarshal(&topo); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &topo, nil
}

// defaultMAC is the address given to a routed device without one: its
// instance number as three big-endian bytes
func defaultMAC(instance uint32) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], instance)
	return buf[1:]
}

func deviceOptions(cfg DeviceConfig, routed bool) ([]gateway.DeviceOption, error) {
	var opts []gateway.DeviceOption
	if cfg.Name != "" {
		opts = append(opts, gateway.WithObjectName(cfg.Name))
	}
	if cfg.Description != "" {
		opts = append(opts, gateway.WithDescription(cfg.Description))
	}

	switch {
	case cfg.MAC != "":
		mac, err := parseMAC(cfg.MAC)
		if err != nil {
			return nil, fmt.Errorf("device %d: %w", cfg.Instance, err)
		}
		opts = append(opts, gateway.WithAddress(mac))
	case routed:
		opts = append(opts, gateway.WithAddress(defaultMAC(cfg.Instance)))
	}
	return opts, nil
}

// buildTable creates the device table of topo, gateway first
func buildTable(topo *Topology, logger *slog.Logger) (*gateway.Table, error) {
	capacity := gateway.DefaultCapacity
	if n := len(topo.Devices) + 1; n > capacity {
		capacity = n
	}
	table := gateway.NewTable(gateway.WithCapacity(capacity), gateway.WithLogger(logger))

	opts, err := deviceOptions(topo.Gateway.DeviceConfig, false)
	if err != nil {
		return nil, err
	}
	if _, err := table.AddDevice(topo.Gateway.Instance, opts...); err != nil {
		return nil, fmt.Errorf("gateway device: %w", err)
	}

	for _, cfg := range topo.Devices {
		opts, err := deviceOptions(cfg, true)
		if err != nil {
			return nil, err
		}
		if _, err := table.AddDevice(cfg.Instance, opts...); err != nil {
			return nil, fmt.Errorf("device %d: %w", cfg.Instance, err)
		}
	}
	return table, nil
}

// buildDevice creates the Device object backing properties the table does
// not hold
func buildDevice(topo *Topology, logger *slog.Logger) *device.Object {
	gw := topo.Gateway
	opts := []device.Option{
		device.WithInstance(gw.Instance),
		device.WithLogger(logger),
	}
	if gw.Name != "" {
		opts = append(opts, device.WithName(gw.Name))
	}
	if gw.Description != "" {
		opts = append(opts, device.WithDescription(gw.Description))
	}
	if gw.Location != "" {
		opts = append(opts, device.WithLocation(gw.Location))
	}
	if gw.VendorName != "" {
		opts = append(opts, device.WithVendor(gw.VendorName, gw.VendorID))
	}
	if gw.ModelName != "" {
		opts = append(opts, device.WithModelName(gw.ModelName))
	}
	return device.New(opts...)
}

// networkList validates the configured networks
func networkList(topo *Topology) (gateway.NetworkList, error) {
	networks, err := gateway.NewNetworkList(topo.Networks...)
	if err != nil {
		return nil, fmt.Errorf("invalid networks: %w", err)
	}
	return networks, nil
}

func formatMAC(mac []byte) string {
	if len(mac) == 0 {
		return "-"
	}
	return hex.EncodeToString(mac)
}
