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
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/edgeo-scada/bacnet-gateway/bacnet"
	"github.com/edgeo-scada/bacnet-gateway/bacnet/gateway"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List the configured device table",
	Long: `Devices builds the device table from the configured topology and lists it
in table order. Handle 0 is always the gateway device.`,
	RunE: runDevices,
}

type deviceRow struct {
	Handle      int    `json:"handle" yaml:"handle"`
	Instance    uint32 `json:"instance" yaml:"instance"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	MAC         string `json:"mac" yaml:"mac"`
	Network     uint16 `json:"network" yaml:"network"`
}

func runDevices(cmd *cobra.Command, args []string) error {
	topo, err := loadTopology()
	if err != nil {
		return err
	}
	networks, err := networkList(topo)
	if err != nil {
		return err
	}
	table, err := buildTable(topo, logger)
	if err != nil {
		return err
	}

	virtual, _ := networks.Virtual()
	var rows []deviceRow
	for i, rec := range table.Records() {
		row := deviceRow{
			Handle:      i,
			Instance:    rec.Instance,
			Name:        rec.Name,
			Description: rec.Description,
			MAC:         formatMAC(rec.Address),
		}
		if gateway.Handle(i) != gateway.GatewayHandle {
			row.Network = virtual
		}
		rows = append(rows, row)
	}

	f := NewFormatter(outputFmt)
	if f.Structured() {
		return f.Encode(rows)
	}

	cells := make([][]string, 0, len(rows))
	for _, r := range rows {
		cells = append(cells, []string{
			strconv.Itoa(r.Handle),
			strconv.FormatUint(uint64(r.Instance), 10),
			r.Name,
			r.Description,
			r.MAC,
			strconv.Itoa(int(r.Network)),
		})
	}
	if err := f.PrintRows([]string{"HANDLE", "INSTANCE", "NAME", "DESCRIPTION", "MAC", "NETWORK"}, cells); err != nil {
		return err
	}
	if f.Format() == FormatTable {
		f.Println()
		f.Printf("%d of %d devices, networks %v\n", table.Len(), table.Cap(), []uint16(networks))
	}
	return nil
}

var routeCmd = &cobra.Command{
	Use:   "route",
	Short: "Show which devices answer a destination",
	Long: `Route resolves the destination given with --dnet and --dadr against the
configured topology, the same way the running gateway does, and lists every
device that would answer.

Examples:
  # The gateway itself
  edgeo-gateway route

  # Every device on the virtual network
  edgeo-gateway route --dnet 100

  # Global broadcast
  edgeo-gateway route --dnet 65535`,
	RunE: runRoute,
}

func runRoute(cmd *cobra.Command, args []string) error {
	topo, err := loadTopology()
	if err != nil {
		return err
	}
	networks, err := networkList(topo)
	if err != nil {
		return err
	}
	table, err := buildTable(topo, logger)
	if err != nil {
		return err
	}
	dest, err := destination()
	if err != nil {
		return err
	}
	if dest == nil {
		dest = &bacnet.Address{}
	}

	resolver := gateway.NewResolver(table, networks)
	if !resolver.IsReachable(dest.Net) {
		return fmt.Errorf("network %d is not reachable through this gateway", dest.Net)
	}

	var rows []deviceRow
	for dev := range resolver.Matches(*dest) {
		rec := dev.Record()
		rows = append(rows, deviceRow{
			Handle:      int(dev.Handle()),
			Instance:    rec.Instance,
			Name:        rec.Name,
			Description: rec.Description,
			MAC:         formatMAC(rec.Address),
		})
	}

	f := NewFormatter(outputFmt)
	if f.Structured() {
		return f.Encode(rows)
	}
	if len(rows) == 0 {
		f.Printf("No device matches %s\n", dest)
		return nil
	}

	cells := make([][]string, 0, len(rows))
	for _, r := range rows {
		cells = append(cells, []string{strconv.Itoa(r.Handle), strconv.FormatUint(uint64(r.Instance), 10), r.Name, r.MAC})
	}
	return f.PrintRows([]string{"HANDLE", "INSTANCE", "NAME", "MAC"}, cells)
}
