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
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/edgeo-scada/bacnet-gateway/bacnet"
)

var (
	readObject     string
	readProperty   string
	readArrayIndex int
)

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Read a property from a device",
	Long: `Read retrieves a property value through the gateway. Routed devices are
addressed with --dnet and --dadr; without them the request goes to the gateway
device itself.

The device instance 4194303 (the default) addresses whichever device receives
the request.

Object types can be specified by name, short alias or number:
  device, dev, 8
  analog-input, ai, 0
  analog-value, av, 2

Properties can be specified by name, short alias or number:
  object-name, name, 77
  object-identifier, oid, 75
  description, desc, 28
  database-revision, rev, 155

Examples:
  # Read the gateway object name
  edgeo-gateway read -H 192.168.1.10

  # Read a routed device description
  edgeo-gateway read -H 192.168.1.10 --dnet 100 --dadr 0007d1 -P desc

  # Read one object-list element
  edgeo-gateway read -H 192.168.1.10 -P object-list --index 1`,

	RunE: runRead,
}

func init() {
	readCmd.Flags().StringVarP(&readObject, "object", "O", "device:4194303", "Object type and instance (e.g., device:1000)")
	readCmd.Flags().StringVarP(&readProperty, "property", "P", "object-name", "Property identifier")
	readCmd.Flags().IntVar(&readArrayIndex, "index", -1, "Array index (-1 for no index)")
}

func runRead(cmd *cobra.Command, args []string) error {
	objectID, err := parseObjectIdentifier(readObject)
	if err != nil {
		return fmt.Errorf("invalid object: %w", err)
	}
	propID, err := parsePropertyIdentifier(readProperty)
	if err != nil {
		return fmt.Errorf("invalid property: %w", err)
	}
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

	var opts []bacnet.ReadOption
	if readArrayIndex >= 0 {
		opts = append(opts, bacnet.WithArrayIndex(uint32(readArrayIndex)))
	}

	values, err := client.ReadProperty(ctx, target, objectID, propID, opts...)
	if err != nil {
		return fmt.Errorf("failed to read property: %w", err)
	}

	return outputValues(NewFormatter(outputFmt), target, objectID, propID, values)
}

type readResult struct {
	Target   string        `json:"target" yaml:"target"`
	Object   string        `json:"object" yaml:"object"`
	Property string        `json:"property" yaml:"property"`
	Values   []interface{} `json:"values" yaml:"values"`
}

func outputValues(f *Formatter, target bacnet.Target, objectID bacnet.ObjectIdentifier, propID bacnet.PropertyIdentifier, values []bacnet.ApplicationValue) error {
	texts := make([]string, 0, len(values))
	plain := make([]interface{}, 0, len(values))
	for _, v := range values {
		texts = append(texts, v.String())
		plain = append(plain, v.Interface())
	}

	switch f.Format() {
	case FormatJSON, FormatYAML:
		return f.Encode(readResult{
			Target:   target.String(),
			Object:   objectID.String(),
			Property: propID.String(),
			Values:   plain,
		})
	case FormatCSV:
		rows := make([][]string, 0, len(texts))
		for _, t := range texts {
			rows = append(rows, []string{objectID.String(), propID.String(), t})
		}
		return f.PrintRows([]string{"object", "property", "value"}, rows)
	case FormatRaw:
		for _, t := range texts {
			f.Println(t)
		}
	default:
		f.PrintKeyValue(map[string]interface{}{
			"Target":   target.String(),
			"Object":   objectID.String(),
			"Property": propID.String(),
			"Value":    strings.Join(texts, ", "),
		}, []string{"Target", "Object", "Property", "Value"})
	}
	return nil
}

func parseObjectIdentifier(s string) (bacnet.ObjectIdentifier, error) {
	// type:instance, e.g. device:1000 or dev:1000 or 8:1000
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return bacnet.ObjectIdentifier{}, fmt.Errorf("expected format type:instance (e.g., device:1000)")
	}

	instance, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil || instance > bacnet.MaxInstance {
		return bacnet.ObjectIdentifier{}, fmt.Errorf("invalid instance number: %s", parts[1])
	}

	objType, ok := bacnet.ParseObjectType(strings.ToLower(parts[0]))
	if !ok {
		return bacnet.ObjectIdentifier{}, fmt.Errorf("unknown object type: %s", parts[0])
	}

	return bacnet.NewObjectIdentifier(objType, uint32(instance)), nil
}

func parsePropertyIdentifier(s string) (bacnet.PropertyIdentifier, error) {
	prop, ok := bacnet.ParsePropertyIdentifier(strings.ToLower(s))
	if !ok {
		return 0, fmt.Errorf("unknown property: %s", s)
	}
	return prop, nil
}
