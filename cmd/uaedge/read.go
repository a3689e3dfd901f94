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
	"time"

	"github.com/spf13/cobra"

	"github.com/edgeo-scada/uaedge"
)

var (
	readNodeIDs  []string
	readSampling bool
)

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Read values of OPC UA nodes",
	Long: `Read the value attribute of one or more OPC UA nodes.

Examples:
  uaedge read -e opc.tcp://localhost:4840 -n "ns=2;s=Temperature"
  uaedge read -n "ns=2;s=Temperature" -n "ns=2;s=Pressure"
  uaedge read -n "ns=2;s=Temperature" --sampling`,
	RunE: runRead,
}

func init() {
	readCmd.Flags().StringArrayVarP(&readNodeIDs, "node", "n", nil, "Node ID(s) to read (can specify multiple)")
	readCmd.Flags().BoolVar(&readSampling, "sampling", false, "Read the minimum sampling interval attribute instead of the value")
	readCmd.MarkFlagRequired("node")
}

func runRead(cmd *cobra.Command, args []string) error {
	d, err := newDemo()
	if err != nil {
		return fmt.Errorf("failed to set up demo: %w", err)
	}
	defer d.close()

	msg := &uaedge.Message{Endpoint: endpoint}
	if readSampling {
		msg.Command = uaedge.CmdReadSamplingInterval
	}
	for _, s := range readNodeIDs {
		nodeID, err := parseNodeID(s)
		if err != nil {
			return err
		}
		msg.Requests = append(msg.Requests, &uaedge.Request{
			NodeInfo: &uaedge.NodeInfo{NodeID: nodeID, ValueAlias: s},
		})
	}

	if err := d.adapter.ReadNode(msg); err != nil {
		return fmt.Errorf("read failed: %w", err)
	}
	return drainMessages(d, len(readNodeIDs))
}

// drainMessages prints queued responses until the queue is idle.
func drainMessages(d *demo, expected int) error {
	received := 0
	for {
		select {
		case msg := <-d.msgs:
			printMessage(msg)
			received += len(msg.Responses)
			if expected > 0 && received >= expected {
				return nil
			}
		case <-time.After(500 * time.Millisecond):
			return nil
		}
	}
}
