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
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/edgeo-scada/bacnet-gateway/bacnet"
)

var interactiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Start an interactive session against a gateway",
	Long: `Interactive mode provides a REPL for exploring a running gateway.

Commands:
  use <dnet> <dadr>                     - Address a routed device
  local                                 - Address the gateway device
  read [object] [property]              - Read a property
  write <object> <property> <value>     - Write a property
  info                                  - Show device info
  routers [network]                     - Ask the gateway which networks it routes
  metrics                               - Show client metrics
  help                                  - Show help
  exit                                  - Exit interactive mode

Examples:
  gateway> routers
  gateway> use 100 0007d1
  gateway[100:0007d1]> read device:4194303 name
  gateway[100:0007d1]> write device:4194303 name 'AHU-2'`,

	RunE: runInteractive,
}

// session holds the state of an interactive session
type session struct {
	client *bacnet.Client
	target bacnet.Target
	out    io.Writer
}

func runInteractive(cmd *cobra.Command, args []string) error {
	target, err := createTarget()
	if err != nil {
		return err
	}

	ctx := context.Background()
	client, err := createClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "gateway> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	s := &session{client: client, target: target, out: rl.Stdout()}

	fmt.Fprintln(s.out, "BACnet Gateway Interactive Shell")
	fmt.Fprintln(s.out, "Type 'help' for available commands, 'exit' to quit")
	fmt.Fprintln(s.out)

	for {
		rl.SetPrompt(s.prompt())

		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			return nil
		}

		if !s.exec(ctx, strings.Fields(strings.TrimSpace(line))) {
			fmt.Fprintln(s.out, "Goodbye!")
			return nil
		}
	}
}

func (s *session) prompt() string {
	if s.target.Dest == nil {
		return "gateway> "
	}
	return fmt.Sprintf("gateway[%d:%s]> ", s.target.Dest.Net, formatMAC(s.target.Dest.Addr))
}

// exec runs one command line and reports whether the session continues
func (s *session) exec(ctx context.Context, parts []string) bool {
	if len(parts) == 0 {
		return true
	}

	switch strings.ToLower(parts[0]) {
	case "exit", "quit", "q":
		return false

	case "help", "?":
		s.printHelp()

	case "use":
		if len(parts) < 2 {
			fmt.Fprintln(s.out, "Usage: use <dnet> [dadr]")
			return true
		}
		var net uint16
		if _, err := fmt.Sscanf(parts[1], "%d", &net); err != nil {
			fmt.Fprintf(s.out, "Invalid network: %s\n", parts[1])
			return true
		}
		var mac []byte
		if len(parts) >= 3 {
			var err error
			if mac, err = parseMAC(parts[2]); err != nil {
				fmt.Fprintf(s.out, "Error: %v\n", err)
				return true
			}
		}
		s.target.Dest = &bacnet.Address{Net: net, Addr: mac}
		fmt.Fprintf(s.out, "Addressing %s\n", s.target)

	case "local":
		s.target.Dest = nil
		fmt.Fprintf(s.out, "Addressing %s\n", s.target)

	case "read":
		obj, prop := "device:4194303", "object-name"
		if len(parts) >= 2 {
			obj = parts[1]
		}
		if len(parts) >= 3 {
			prop = parts[2]
		}
		s.read(ctx, obj, prop)

	case "write":
		if len(parts) < 4 {
			fmt.Fprintln(s.out, "Usage: write <object> <property> <value>")
			return true
		}
		s.write(ctx, parts[1], parts[2], strings.Join(parts[3:], " "))

	case "info":
		s.info(ctx)

	case "routers":
		s.routers(ctx, parts[1:])

	case "metrics":
		s.metrics()

	default:
		fmt.Fprintf(s.out, "Unknown command: %s (type 'help' for available commands)\n", parts[0])
	}
	return true
}

func (s *session) printHelp() {
	fmt.Fprintln(s.out, `
Available commands:
  use <dnet> [dadr]                 Address a routed device (65535 broadcasts)
  local                             Address the gateway device
  read [object] [property]          Read a property (default: device:4194303 object-name)
  write <object> <property> <value> Write a property value
  info                              Show the addressed device identity
  routers [network]                 Ask the gateway which networks it routes
  metrics                           Show client metrics
  help                              Show this help message
  exit                              Exit interactive mode

Object format: <type>:<instance>
  Examples: device:1000, dev:4194303

Property shortcuts:
  oid = object-identifier
  name = object-name
  desc = description
  rev = database-revision`)
}

func (s *session) read(ctx context.Context, objStr, propStr string) {
	objectID, err := parseObjectIdentifier(objStr)
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	propID, err := parsePropertyIdentifier(propStr)
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}

	readCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	values, err := s.client.ReadProperty(readCtx, s.target, objectID, propID)
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "%s.%s = %v\n", objectID, propID, values)
}

func (s *session) write(ctx context.Context, objStr, propStr, valStr string) {
	objectID, err := parseObjectIdentifier(objStr)
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	propID, err := parsePropertyIdentifier(propStr)
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	typ := ""
	if propID == bacnet.PropertyObjectIdentifier {
		typ = "object"
	}
	value, err := parseValue(valStr, typ)
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}

	writeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := s.client.WriteProperty(writeCtx, s.target, objectID, propID, value); err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "OK: %s.%s = %s\n", objectID, propID, value)
}

func (s *session) info(ctx context.Context) {
	self := bacnet.NewObjectIdentifier(bacnet.ObjectTypeDevice, bacnet.MaxInstance)

	props := []struct {
		name string
		prop bacnet.PropertyIdentifier
	}{
		{"Object", bacnet.PropertyObjectIdentifier},
		{"Name", bacnet.PropertyObjectName},
		{"Descr", bacnet.PropertyDescription},
		{"Revision", bacnet.PropertyDatabaseRevision},
		{"Vendor", bacnet.PropertyVendorName},
		{"Model", bacnet.PropertyModelName},
	}

	fmt.Fprintf(s.out, "\n%s:\n", s.target)
	for _, p := range props {
		readCtx, cancel := context.WithTimeout(ctx, timeout)
		values, err := s.client.ReadProperty(readCtx, s.target, self, p.prop)
		cancel()

		if err == nil {
			fmt.Fprintf(s.out, "  %-10s: %v\n", p.name, values)
		}
	}
	fmt.Fprintln(s.out)
}

func (s *session) routers(ctx context.Context, args []string) {
	var network *uint16
	if len(args) > 0 {
		var n uint16
		if _, err := fmt.Sscanf(args[0], "%d", &n); err != nil {
			fmt.Fprintf(s.out, "Invalid network: %s\n", args[0])
			return
		}
		network = &n
	}

	routers, err := s.client.WhoIsRouterToNetwork(ctx, s.target.Addr, network)
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	if len(routers) == 0 {
		fmt.Fprintln(s.out, "No routers answered")
		return
	}
	for _, r := range routers {
		fmt.Fprintf(s.out, "  %s routes %v\n", r.Addr, r.Networks)
	}
}

func (s *session) metrics() {
	m := s.client.Metrics().Snapshot()

	fmt.Fprintln(s.out, "\nClient Metrics:")
	fmt.Fprintf(s.out, "  Uptime:              %s\n", m.Uptime.Round(time.Second))
	fmt.Fprintf(s.out, "  Requests Sent:       %d\n", m.RequestsSent)
	fmt.Fprintf(s.out, "  Requests Succeeded:  %d\n", m.RequestsSucceeded)
	fmt.Fprintf(s.out, "  Requests Failed:     %d\n", m.RequestsFailed)
	fmt.Fprintf(s.out, "  Requests Timed Out:  %d\n", m.RequestsTimedOut)
	fmt.Fprintf(s.out, "  Bytes Sent:          %d\n", m.BytesSent)
	fmt.Fprintf(s.out, "  Bytes Received:      %d\n", m.BytesReceived)

	if m.LatencyStats.Count > 0 {
		fmt.Fprintf(s.out, "  Avg Latency:         %s\n", m.LatencyStats.Avg.Round(time.Microsecond))
		fmt.Fprintf(s.out, "  Max Latency:         %s\n", m.LatencyStats.Max.Round(time.Microsecond))
	}
	fmt.Fprintln(s.out)
}
