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
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/edgeo-scada/bacnet-gateway/bacnet"
)

const version = "1.0.0"

var (
	cfgFile      string
	host         string
	port         int
	timeout      time.Duration
	retries      int
	outputFmt    string
	verbose      bool
	localAddress string
	dnet         uint16
	dadr         string

	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "edgeo-gateway",
	Short: "A BACnet/IP routing gateway for virtual devices",
	Long: `edgeo-gateway exposes a table of virtual BACnet devices behind a single
BACnet/IP gateway device. Each device answers ReadProperty and WriteProperty
on a virtual network announced with I-Am-Router-To-Network.

The device topology is read from the config file (default $HOME/.edgeo-gateway.yaml).

Examples:
  # Run the gateway
  edgeo-gateway serve --networks 100

  # List the configured devices
  edgeo-gateway devices

  # Show which devices answer a destination
  edgeo-gateway route --dnet 100 --dadr 0007d1

  # Read a routed device through a running gateway
  edgeo-gateway read -H 192.168.1.10 --dnet 100 --dadr 0007d1 -O device:2001 -P object-name`,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logLevel := slog.LevelInfo
		if verbose {
			logLevel = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: logLevel,
		}))

		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.edgeo-gateway.yaml)")
	rootCmd.PersistentFlags().StringVarP(&host, "host", "H", "", "Gateway IP address")
	rootCmd.PersistentFlags().IntVarP(&port, "port", "p", bacnet.DefaultPort, "BACnet/IP port")
	rootCmd.PersistentFlags().DurationVarP(&timeout, "timeout", "t", 3*time.Second, "Request timeout")
	rootCmd.PersistentFlags().IntVar(&retries, "retries", 3, "Number of retries")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "Output format (table, json, yaml, csv, raw)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&localAddress, "local", "", "Local address to bind to (e.g., 0.0.0.0:47809)")
	rootCmd.PersistentFlags().Uint16Var(&dnet, "dnet", 0, "Destination network (0 for the local network)")
	rootCmd.PersistentFlags().StringVar(&dadr, "dadr", "", "Destination MAC address in hex")

	viper.BindPFlag("host", rootCmd.PersistentFlags().Lookup("host"))
	viper.BindPFlag("port", rootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("timeout", rootCmd.PersistentFlags().Lookup("timeout"))
	viper.BindPFlag("retries", rootCmd.PersistentFlags().Lookup("retries"))
	viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("local", rootCmd.PersistentFlags().Lookup("local"))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(routeCmd)
	rootCmd.AddCommand(routersCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(writeCmd)
	rootCmd.AddCommand(iamRouterCmd)
	rootCmd.AddCommand(interactiveCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		viper.AddConfigPath(home)
		viper.SetConfigName(".edgeo-gateway")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("BACNET")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if verbose {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

// createClient creates and connects a BACnet client with current configuration
func createClient(ctx context.Context, extra ...bacnet.Option) (*bacnet.Client, error) {
	opts := []bacnet.Option{
		bacnet.WithPort(viper.GetInt("port")),
		bacnet.WithTimeout(viper.GetDuration("timeout")),
		bacnet.WithRetries(viper.GetInt("retries")),
		bacnet.WithLogger(logger),
	}
	if local := viper.GetString("local"); local != "" {
		opts = append(opts, bacnet.WithLocalAddress(local))
	}
	opts = append(opts, extra...)

	client := bacnet.NewClient(opts...)
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	return client, nil
}

// gatewayAddr resolves the --host flag
func gatewayAddr() (*net.UDPAddr, error) {
	h := viper.GetString("host")
	if h == "" {
		return nil, fmt.Errorf("gateway host is required (-H or --host)")
	}
	addr, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(h, strconv.Itoa(viper.GetInt("port"))))
	if err != nil {
		return nil, fmt.Errorf("invalid host: %w", err)
	}
	return addr, nil
}

// destination returns the --dnet/--dadr address, nil when no network is set
func destination() (*bacnet.Address, error) {
	if dnet == 0 && dadr == "" {
		return nil, nil
	}
	mac, err := parseMAC(dadr)
	if err != nil {
		return nil, err
	}
	return &bacnet.Address{Net: dnet, Addr: mac}, nil
}

// createTarget builds the request target from the connection flags
func createTarget() (bacnet.Target, error) {
	addr, err := gatewayAddr()
	if err != nil {
		return bacnet.Target{}, err
	}
	dest, err := destination()
	if err != nil {
		return bacnet.Target{}, err
	}
	return bacnet.Target{Addr: addr, Dest: dest}, nil
}

// parseMAC decodes a hex MAC address, allowing ':' separators
func parseMAC(s string) ([]byte, error) {
	s = strings.ReplaceAll(strings.TrimPrefix(strings.ToLower(s), "0x"), ":", "")
	mac, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid MAC address %q: %w", s, err)
	}
	if len(mac) > bacnet.MaxMACLength {
		return nil, fmt.Errorf("MAC address %q longer than %d bytes", s, bacnet.MaxMACLength)
	}
	return mac, nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("edgeo-gateway version " + version)
	},
}
