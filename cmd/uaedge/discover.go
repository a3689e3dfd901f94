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
)

var (
	discoverServerURIs []string
	discoverLocales    []string
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Discover OPC UA servers and endpoints",
	Long: `Run FindServers against the endpoint and list the surviving
application descriptions, then fetch the endpoint descriptions.

Examples:
  uaedge discover
  uaedge discover --server-uri urn:edgeo:simstack:server`,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().StringArrayVar(&discoverServerURIs, "server-uri", nil, "Accept only these application URIs")
	discoverCmd.Flags().StringArrayVar(&discoverLocales, "locale", nil, "Accept only these application name locales")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	d, err := newDemo()
	if err != nil {
		return fmt.Errorf("failed to set up demo: %w", err)
	}
	defer d.close()

	servers, err := d.adapter.FindServers(endpoint, discoverServerURIs, discoverLocales)
	if err != nil {
		return fmt.Errorf("find servers failed: %w", err)
	}
	fmt.Printf("Found %d server(s):\n", len(servers))
	for _, s := range servers {
		fmt.Printf("  %s (%s)\n", s.ApplicationName.Text, s.ApplicationURI)
		for _, url := range s.DiscoveryURLs {
			fmt.Printf("    %s\n", url)
		}
	}

	return d.adapter.GetEndpointInfo(endpoint)
}
