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

	"github.com/spf13/cobra"

	"github.com/edgeo-scada/uaedge"
)

var (
	browseNodeID string
	browseViews  bool
)

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse the address space of an OPC UA server",
	Long: `Browse recursively from a start node, printing the browse path of
every reachable node. Without a start node the browse begins at the Root
folder.

Examples:
  uaedge browse
  uaedge browse -n "ns=2;s=Demo"
  uaedge browse --views`,
	RunE: runBrowse,
}

func init() {
	browseCmd.Flags().StringVarP(&browseNodeID, "node", "n", "", "Start node ID (default: Root folder)")
	browseCmd.Flags().BoolVar(&browseViews, "views", false, "Browse view nodes instead")
}

func runBrowse(cmd *cobra.Command, args []string) error {
	d, err := newDemo()
	if err != nil {
		return fmt.Errorf("failed to set up demo: %w", err)
	}
	defer d.close()

	req := &uaedge.Request{NodeInfo: &uaedge.NodeInfo{}}
	if browseNodeID != "" {
		nodeID, err := parseNodeID(browseNodeID)
		if err != nil {
			return err
		}
		req.NodeInfo.NodeID = nodeID
	}

	msg := &uaedge.Message{
		Endpoint:    endpoint,
		Requests:    []*uaedge.Request{req},
		BrowseParam: &uaedge.BrowseParameter{Direction: uaedge.BrowseDirectionForward},
	}

	if browseViews {
		err = d.adapter.BrowseViews(msg)
	} else {
		err = d.adapter.BrowseNode(msg)
	}
	if err != nil {
		return fmt.Errorf("browse failed: %w", err)
	}
	return drainMessages(d, 0)
}
