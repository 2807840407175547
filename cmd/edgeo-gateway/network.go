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
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/edgeo-scada/bacnet-gateway/bacnet"
	"github.com/edgeo-scada/bacnet-gateway/bacnet/gateway"
)

var routersNetwork int

var routersCmd = &cobra.Command{
	Use:   "routers",
	Short: "Discover routers with Who-Is-Router-To-Network",
	Long: `Routers sends Who-Is-Router-To-Network and lists the I-Am-Router-To-Network
answers received before the timeout. The query is sent to --host when given
and broadcast otherwise.

Examples:
  # Ask every router on the local network
  edgeo-gateway routers

  # Ask one gateway about network 100
  edgeo-gateway routers -H 192.168.1.10 --network 100`,
	RunE: runRouters,
}

var iamRouterCmd = &cobra.Command{
	Use:   "iamrouter NETWORK...",
	Short: "Broadcast I-Am-Router-To-Network",
	Long: `Iamrouter broadcasts an I-Am-Router-To-Network announcement for the given
networks, e.g. to refresh routing tables after a gateway moved.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIAmRouter,
}

func init() {
	routersCmd.Flags().IntVar(&routersNetwork, "network", -1, "Network to ask for (-1 for all networks)")
}

func runRouters(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	var network *uint16
	if routersNetwork >= 0 {
		if routersNetwork >= int(bacnet.BroadcastNetwork) {
			return fmt.Errorf("invalid network: %d", routersNetwork)
		}
		n := uint16(routersNetwork)
		network = &n
	}

	var addr *net.UDPAddr
	if viper.GetString("host") != "" {
		var err error
		if addr, err = gatewayAddr(); err != nil {
			return err
		}
	}

	client, err := createClient(ctx, bacnet.WithDiscoverTimeout(viper.GetDuration("timeout")))
	if err != nil {
		return err
	}
	defer client.Close()

	routers, err := client.WhoIsRouterToNetwork(ctx, addr, network)
	if err != nil {
		return fmt.Errorf("failed to query routers: %w", err)
	}

	type routerRow struct {
		Address  string   `json:"address" yaml:"address"`
		Networks []uint16 `json:"networks" yaml:"networks"`
	}
	rows := make([]routerRow, 0, len(routers))
	for _, r := range routers {
		rows = append(rows, routerRow{Address: r.Addr.String(), Networks: r.Networks})
	}

	f := NewFormatter(outputFmt)
	if f.Structured() {
		return f.Encode(rows)
	}
	if len(rows) == 0 {
		f.Println("No routers found")
		return nil
	}

	cells := make([][]string, 0, len(rows))
	for _, r := range rows {
		nets := make([]string, 0, len(r.Networks))
		for _, n := range r.Networks {
			nets = append(nets, strconv.Itoa(int(n)))
		}
		cells = append(cells, []string{r.Address, strings.Join(nets, " ")})
	}
	return f.PrintRows([]string{"ADDRESS", "NETWORKS"}, cells)
}

func runIAmRouter(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	numbers := make([]int, 0, len(args))
	for _, arg := range args {
		n, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("invalid network: %s", arg)
		}
		numbers = append(numbers, n)
	}
	networks, err := gateway.NewNetworkList(numbers...)
	if err != nil {
		return err
	}

	client, err := createClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.IAmRouterToNetwork(ctx, networks); err != nil {
		return fmt.Errorf("failed to announce: %w", err)
	}

	fmt.Printf("Announced networks %v\n", []uint16(networks))
	return nil
}
