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
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	endpoint string
	verbose  bool
)

var rootCmd = &cobra.Command{
	Use:   "uaedge",
	Short: "OPC UA adapter demo client",
	Long: `A command line demo for the uaedge adapter, driving its verbs
against a simulated in-process server.

Examples:
  uaedge browse -e opc.tcp://localhost:4840
  uaedge read -e opc.tcp://localhost:4840 -n "ns=2;s=Temperature"
  uaedge write -e opc.tcp://localhost:4840 -n "ns=2;s=Temperature" --value 42
  uaedge subscribe -e opc.tcp://localhost:4840 -n "ns=2;s=Temperature"`,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&endpoint, "endpoint", "e", "opc.tcp://localhost:4840", "OPC UA server endpoint URL")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	viper.BindPFlag("endpoint", rootCmd.PersistentFlags().Lookup("endpoint"))

	rootCmd.AddCommand(browseCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(writeCmd)
	rootCmd.AddCommand(subscribeCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	viper.SetEnvPrefix("UAEDGE")
	viper.AutomaticEnv()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
