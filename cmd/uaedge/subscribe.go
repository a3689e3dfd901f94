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
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/edgeo-scada/uaedge"
)

var (
	subscribeNodeIDs []string
	publishInterval  float64
	sampleInterval   float64
	jitterEvery      time.Duration
)

var subscribeCmd = &cobra.Command{
	Use:   "subscribe",
	Short: "Subscribe to data changes on OPC UA nodes",
	Long: `Subscribe to data changes on OPC UA nodes and print reports. The
demo server mutates the first subscribed value periodically so reports
keep arriving.

Examples:
  uaedge subscribe -n "ns=2;s=Temperature"
  uaedge subscribe -n "ns=2;s=Temperature" -n "ns=2;s=Pressure" -i 1000`,
	RunE: runSubscribe,
}

func init() {
	subscribeCmd.Flags().StringArrayVarP(&subscribeNodeIDs, "node", "n", nil, "Node ID(s) to subscribe to (can specify multiple)")
	subscribeCmd.Flags().Float64VarP(&publishInterval, "interval", "i", 1000, "Publishing interval in milliseconds")
	subscribeCmd.Flags().Float64Var(&sampleInterval, "sample", 250, "Sampling interval in milliseconds")
	subscribeCmd.Flags().DurationVar(&jitterEvery, "jitter", time.Second, "How often the demo server mutates the first subscribed value")
	subscribeCmd.MarkFlagRequired("node")
}

func runSubscribe(cmd *cobra.Command, args []string) error {
	d, err := newDemo()
	if err != nil {
		return fmt.Errorf("failed to set up demo: %w", err)
	}
	defer d.close()

	msg := &uaedge.Message{Endpoint: endpoint}
	for _, s := range subscribeNodeIDs {
		nodeID, err := parseNodeID(s)
		if err != nil {
			return err
		}
		msg.Requests = append(msg.Requests, &uaedge.Request{
			NodeInfo: &uaedge.NodeInfo{NodeID: nodeID, ValueAlias: s},
			SubRequest: &uaedge.SubRequest{
				Type: uaedge.CreateSub,
				Params: uaedge.SubscriptionParameters{
					PublishingInterval: publishInterval,
					LifetimeCount:      10000,
					MaxKeepAliveCount:  10,
					PublishingEnabled:  true,
				},
				SamplingInterval: sampleInterval,
				QueueSize:        10,
			},
		})
	}

	if err := d.adapter.HandleSubscription(msg); err != nil {
		return fmt.Errorf("subscribe failed: %w", err)
	}
	fmt.Printf("Monitoring %d node(s), Ctrl+C to stop...\n", len(subscribeNodeIDs))

	// The demo server has no external writers; mutate the first
	// subscribed value so reports keep flowing.
	stopJitter := make(chan struct{})
	go func() {
		temp := 25.5
		first, err := parseNodeID(subscribeNodeIDs[0])
		if err != nil {
			return
		}
		for {
			select {
			case <-stopJitter:
				return
			case <-time.After(jitterEvery):
				temp += 0.5
				d.sim.SetValue(first, &uaedge.Variant{Type: uaedge.TypeDouble, Value: temp})
			}
		}
	}()
	defer close(stopJitter)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	for {
		select {
		case <-sigCh:
			fmt.Println("\nReceived interrupt, stopping...")
			return nil
		case msg := <-d.msgs:
			ts := msg.ServerTime.Format("15:04:05.000")
			for _, resp := range msg.Responses {
				if resp.Value != nil && resp.NodeInfo != nil {
					fmt.Printf("[%s] %s = %v\n", ts, resp.NodeInfo.ValueAlias, resp.Value.Data)
				}
			}
		}
	}
}
