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

	"github.com/edgeo-scada/uaedge"
)

var (
	writeNodeID string
	writeValue  string
	writeType   string
)

var writeCmd = &cobra.Command{
	Use:   "write",
	Short: "Write a value to an OPC UA node",
	Long: `Write a typed value to the value attribute of an OPC UA node.

Examples:
  uaedge write -n "ns=2;s=Temperature" --value 42.5 --type double
  uaedge write -n "ns=2;s=Status" --value Stopped --type string`,
	RunE: runWrite,
}

func init() {
	writeCmd.Flags().StringVarP(&writeNodeID, "node", "n", "", "Node ID to write")
	writeCmd.Flags().StringVar(&writeValue, "value", "", "Value to write")
	writeCmd.Flags().StringVar(&writeType, "type", "double", "Value type (bool, int32, int64, double, string)")
	writeCmd.MarkFlagRequired("node")
	writeCmd.MarkFlagRequired("value")
}

func runWrite(cmd *cobra.Command, args []string) error {
	d, err := newDemo()
	if err != nil {
		return fmt.Errorf("failed to set up demo: %w", err)
	}
	defer d.close()

	nodeID, err := parseNodeID(writeNodeID)
	if err != nil {
		return err
	}
	value, err := parseTypedValue(writeType, writeValue)
	if err != nil {
		return err
	}

	msg := &uaedge.Message{
		Endpoint: endpoint,
		Requests: []*uaedge.Request{{
			NodeInfo: &uaedge.NodeInfo{NodeID: nodeID, ValueAlias: writeNodeID},
			Value:    value,
		}},
	}
	if err := d.adapter.WriteNode(msg); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	return drainMessages(d, 1)
}

func parseTypedValue(typeName, raw string) (*uaedge.Value, error) {
	switch typeName {
	case "bool":
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid bool %q", raw)
		}
		return uaedge.NewValue(uaedge.TypeBoolean, b), nil
	case "int32":
		n, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid int32 %q", raw)
		}
		return uaedge.NewValue(uaedge.TypeInt32, int32(n)), nil
	case "int64":
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid int64 %q", raw)
		}
		return uaedge.NewValue(uaedge.TypeInt64, n), nil
	case "double":
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid double %q", raw)
		}
		return uaedge.NewValue(uaedge.TypeDouble, f), nil
	case "string":
		return uaedge.NewValue(uaedge.TypeString, raw), nil
	}
	return nil, fmt.Errorf("unsupported value type %q", typeName)
}
