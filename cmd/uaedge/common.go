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
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/edgeo-scada/uaedge"
	"github.com/edgeo-scada/uaedge/internal/simstack"
)

var (
	okColor   = color.New(color.FgGreen)
	errColor  = color.New(color.FgRed)
	infoColor = color.New(color.FgCyan)
)

// demo wires the adapter against an in-process simulated server.
type demo struct {
	adapter *uaedge.Adapter
	sim     *simstack.Simulator
	msgs    chan *uaedge.Message
}

func newDemo() (*demo, error) {
	sim := simstack.New()
	seedAddressSpace(sim, endpoint)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(),
	}))
	adapter, err := uaedge.New(sim, uaedge.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	d := &demo{
		adapter: adapter,
		sim:     sim,
		msgs:    make(chan *uaedge.Message, 256),
	}
	deliver := func(msg *uaedge.Message) { d.msgs <- msg }
	err = adapter.Configure(uaedge.Configure{
		OnResponse: deliver,
		OnBrowse:   deliver,
		OnReport:   deliver,
		OnError:    deliver,
		OnStatus: func(ep string, status uaedge.Status) {
			if verbose {
				infoColor.Printf("status: %s (%s)\n", status, ep)
			}
		},
		OnEndpointFound: func(device *uaedge.Device) {
			for _, ep := range device.Endpoints {
				fmt.Printf("endpoint: %s (%s)\n", ep.EndpointURL, ep.Server.ApplicationName.Text)
			}
		},
	})
	if err != nil {
		return nil, err
	}

	if err := adapter.ConnectClient(endpoint); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *demo) close() {
	d.adapter.Close()
}

func logLevel() slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelWarn
}

// seedAddressSpace populates the simulated server with demo nodes.
func seedAddressSpace(sim *simstack.Simulator, endpointURL string) {
	sim.Serve(endpointURL)

	root := uaedge.NewNumericNodeID(0, uaedge.RootFolderID)
	demoObj := uaedge.NewStringNodeID(2, "Demo")
	sim.AddObject(root, demoObj, "Demo")

	sim.AddVariable(demoObj, uaedge.NewStringNodeID(2, "Temperature"), "Temperature",
		&uaedge.Variant{Type: uaedge.TypeDouble, Value: 25.5})
	sim.AddVariable(demoObj, uaedge.NewStringNodeID(2, "Pressure"), "Pressure",
		&uaedge.Variant{Type: uaedge.TypeDouble, Value: 101.325})
	sim.AddVariable(demoObj, uaedge.NewStringNodeID(2, "Status"), "Status",
		&uaedge.Variant{Type: uaedge.TypeString, Value: "Running"})
	sim.AddVariable(demoObj, uaedge.NewStringNodeID(2, "DeviceID"), "DeviceID",
		&uaedge.Variant{Type: uaedge.TypeGUID, Value: uuid.MustParse("c4a7e3b2-1f2d-4e3a-9b0c-5d6e7f8a9b0c")})

	sim.AddMethod(demoObj, uaedge.NewStringNodeID(2, "Square"), "Square",
		func(inputs []uaedge.Variant) ([]uaedge.Variant, uaedge.StatusCode) {
			if len(inputs) != 1 {
				return nil, uaedge.StatusBadArgumentsMissing
			}
			n, ok := inputs[0].Value.(int32)
			if !ok {
				return nil, uaedge.StatusBadTypeMismatch
			}
			return []uaedge.Variant{{Type: uaedge.TypeInt32, Value: n * n}}, uaedge.StatusGood
		})
}

// parseNodeID parses a node ID string like "ns=2;s=Temperature".
func parseNodeID(s string) (uaedge.NodeID, error) {
	ns := uint16(0)
	identifier := s

	if strings.HasPrefix(s, "ns=") {
		parts := strings.SplitN(s, ";", 2)
		if len(parts) != 2 {
			return uaedge.NodeID{}, fmt.Errorf("invalid node ID format: %s", s)
		}
		nsVal, err := strconv.ParseUint(strings.TrimPrefix(parts[0], "ns="), 10, 16)
		if err != nil {
			return uaedge.NodeID{}, fmt.Errorf("invalid namespace: %s", parts[0])
		}
		ns = uint16(nsVal)
		identifier = parts[1]
	}

	switch {
	case strings.HasPrefix(identifier, "i="):
		id, err := strconv.ParseUint(strings.TrimPrefix(identifier, "i="), 10, 32)
		if err != nil {
			return uaedge.NodeID{}, fmt.Errorf("invalid numeric ID: %s", identifier)
		}
		return uaedge.NewNumericNodeID(ns, uint32(id)), nil
	case strings.HasPrefix(identifier, "s="):
		return uaedge.NewStringNodeID(ns, strings.TrimPrefix(identifier, "s=")), nil
	case strings.HasPrefix(identifier, "g="):
		g, err := uuid.Parse(strings.TrimPrefix(identifier, "g="))
		if err != nil {
			return uaedge.NodeID{}, fmt.Errorf("invalid GUID: %s", identifier)
		}
		return uaedge.NewGUIDNodeID(ns, g), nil
	case strings.HasPrefix(identifier, "b="):
		return uaedge.NewByteStringNodeID(ns, []byte(strings.TrimPrefix(identifier, "b="))), nil
	}

	if id, err := strconv.ParseUint(identifier, 10, 32); err == nil {
		return uaedge.NewNumericNodeID(ns, uint32(id)), nil
	}
	return uaedge.NewStringNodeID(ns, identifier), nil
}

// printMessage renders one received message.
func printMessage(msg *uaedge.Message) {
	switch msg.Type {
	case uaedge.ErrorResponse:
		errColor.Printf("error: %s\n", msg.Result.Description)
	case uaedge.BrowseResponse:
		for _, cp := range msg.ContinuationPoints {
			infoColor.Printf("continuation point at %q (%d bytes)\n",
				cp.BrowsePrefix, len(cp.ContinuationPoint))
		}
		for _, resp := range msg.Responses {
			if resp.Value == nil {
				continue
			}
			if path, ok := resp.Value.Str(); ok {
				okColor.Printf("%s\n", path)
			}
		}
	default:
		for _, resp := range msg.Responses {
			name := ""
			if resp.NodeInfo != nil {
				name = resp.NodeInfo.ValueAlias
				if name == "" {
					name = resp.NodeInfo.NodeID.Key()
				}
			}
			if resp.Value != nil {
				okColor.Printf("%s = %v\n", name, resp.Value.Data)
			}
		}
	}
}
