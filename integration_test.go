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

package uaedge_test

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgeo-scada/uaedge"
	"github.com/edgeo-scada/uaedge/internal/simstack"
)

const simEndpoint = "opc.tcp://localhost:4840"

type sink struct {
	mu      sync.Mutex
	general []*uaedge.Message
	browse  []*uaedge.Message
	reports []*uaedge.Message
	errors  []*uaedge.Message
}

func (s *sink) count(kind string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch kind {
	case "general":
		return len(s.general)
	case "browse":
		return len(s.browse)
	case "report":
		return len(s.reports)
	case "error":
		return len(s.errors)
	}
	return 0
}

func (s *sink) get(kind string, i int) *uaedge.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch kind {
	case "general":
		return s.general[i]
	case "browse":
		return s.browse[i]
	case "report":
		return s.reports[i]
	}
	return s.errors[i]
}

func await(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func setup(t *testing.T) (*uaedge.Adapter, *simstack.Simulator, *sink) {
	t.Helper()
	sim := simstack.New()
	sim.Serve(simEndpoint)

	root := uaedge.NewNumericNodeID(0, uaedge.RootFolderID)
	demoObj := uaedge.NewStringNodeID(2, "Demo")
	sim.AddObject(root, demoObj, "Demo")

	adapter, err := uaedge.New(sim)
	require.NoError(t, err)

	s := &sink{}
	err = adapter.Configure(uaedge.Configure{
		OnResponse: func(m *uaedge.Message) { s.mu.Lock(); s.general = append(s.general, m); s.mu.Unlock() },
		OnBrowse:   func(m *uaedge.Message) { s.mu.Lock(); s.browse = append(s.browse, m); s.mu.Unlock() },
		OnReport:   func(m *uaedge.Message) { s.mu.Lock(); s.reports = append(s.reports, m); s.mu.Unlock() },
		OnError:    func(m *uaedge.Message) { s.mu.Lock(); s.errors = append(s.errors, m); s.mu.Unlock() },
	})
	require.NoError(t, err)

	require.NoError(t, adapter.ConnectClient(simEndpoint))
	t.Cleanup(adapter.Close)
	return adapter, sim, s
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	adapter, sim, s := setup(t)
	demoObj := uaedge.NewStringNodeID(2, "Demo")

	cases := []struct {
		name  string
		value *uaedge.Value
	}{
		{"Bool", uaedge.NewValue(uaedge.TypeBoolean, true)},
		{"SByte", uaedge.NewValue(uaedge.TypeSByte, int8(-4))},
		{"Byte", uaedge.NewValue(uaedge.TypeByte, byte(250))},
		{"Int16", uaedge.NewValue(uaedge.TypeInt16, int16(-300))},
		{"UInt16", uaedge.NewValue(uaedge.TypeUInt16, uint16(65000))},
		{"Int32", uaedge.NewValue(uaedge.TypeInt32, int32(-70000))},
		{"UInt32", uaedge.NewValue(uaedge.TypeUInt32, uint32(4_000_000_000))},
		{"Int64", uaedge.NewValue(uaedge.TypeInt64, int64(-1<<40))},
		{"UInt64", uaedge.NewValue(uaedge.TypeUInt64, uint64(1<<50))},
		{"Float", uaedge.NewValue(uaedge.TypeFloat, float32(1.25))},
		{"Double", uaedge.NewValue(uaedge.TypeDouble, 6.5)},
		{"String", uaedge.NewValue(uaedge.TypeString, "hello")},
		{"ByteString", uaedge.NewValue(uaedge.TypeByteString, "\x01\x02\x03")},
		{"GUID", uaedge.NewValue(uaedge.TypeGUID, uuid.New().String())},
	}

	for _, tc := range cases {
		nodeID := uaedge.NewStringNodeID(2, tc.name)
		sim.AddVariable(demoObj, nodeID, tc.name, &uaedge.Variant{Type: uaedge.TypeInt32, Value: int32(0)})

		before := s.count("general")
		require.NoError(t, adapter.WriteNode(&uaedge.Message{
			Endpoint: simEndpoint,
			Requests: []*uaedge.Request{{
				NodeInfo: &uaedge.NodeInfo{NodeID: nodeID, ValueAlias: tc.name},
				Value:    tc.value,
			}},
		}))
		await(t, func() bool { return s.count("general") == before+1 }, "write response "+tc.name)

		require.NoError(t, adapter.ReadNode(&uaedge.Message{
			Endpoint: simEndpoint,
			Requests: []*uaedge.Request{{
				NodeInfo: &uaedge.NodeInfo{NodeID: nodeID, ValueAlias: tc.name},
			}},
		}))
		await(t, func() bool { return s.count("general") == before+2 }, "read response "+tc.name)

		read := s.get("general", before+1)
		require.Len(t, read.Responses, 1)
		assert.Equal(t, tc.value.Type, read.Responses[0].Value.Type, tc.name)
		assert.Equal(t, tc.value.Data, read.Responses[0].Value.Data, tc.name)
	}
}

func TestBrowsePagedWithContinuationPoints(t *testing.T) {
	adapter, sim, s := setup(t)
	demoObj := uaedge.NewStringNodeID(2, "Demo")
	for _, name := range []string{"V1", "V2", "V3"} {
		sim.AddVariable(demoObj, uaedge.NewStringNodeID(2, name), name,
			&uaedge.Variant{Type: uaedge.TypeInt32, Value: int32(1)})
	}
	sim.BrowsePageSize = 2

	require.NoError(t, adapter.BrowseNode(&uaedge.Message{
		Endpoint:    simEndpoint,
		Requests:    []*uaedge.Request{{NodeInfo: &uaedge.NodeInfo{NodeID: demoObj}}},
		BrowseParam: &uaedge.BrowseParameter{Direction: uaedge.BrowseDirectionForward},
	}))

	// Two variable records plus one continuation-point message.
	await(t, func() bool { return s.count("browse") >= 3 }, "paged browse responses")

	var cp *uaedge.ContinuationPoint
	for i := 0; i < s.count("browse"); i++ {
		msg := s.get("browse", i)
		if len(msg.ContinuationPoints) > 0 {
			cp = msg.ContinuationPoints[0]
		}
	}
	require.NotNil(t, cp)
	assert.NotEmpty(t, cp.ContinuationPoint)
	assert.Equal(t, "Demo", cp.BrowsePrefix)

	before := s.count("browse")
	require.NoError(t, adapter.BrowseNext(&uaedge.Message{
		Endpoint:           simEndpoint,
		Requests:           []*uaedge.Request{{NodeInfo: &uaedge.NodeInfo{NodeID: demoObj}}},
		BrowseParam:        &uaedge.BrowseParameter{Direction: uaedge.BrowseDirectionForward},
		ContinuationPoints: []*uaedge.ContinuationPoint{cp},
	}))
	await(t, func() bool { return s.count("browse") > before }, "browse-next response")
}

func TestSubscriptionDeliversReports(t *testing.T) {
	adapter, sim, s := setup(t)
	demoObj := uaedge.NewStringNodeID(2, "Demo")
	tempID := uaedge.NewStringNodeID(2, "Temperature")
	sim.AddVariable(demoObj, tempID, "Temperature",
		&uaedge.Variant{Type: uaedge.TypeDouble, Value: 20.0})

	require.NoError(t, adapter.HandleSubscription(&uaedge.Message{
		Endpoint: simEndpoint,
		Requests: []*uaedge.Request{{
			NodeInfo: &uaedge.NodeInfo{NodeID: tempID, ValueAlias: "Temperature"},
			SubRequest: &uaedge.SubRequest{
				Type: uaedge.CreateSub,
				Params: uaedge.SubscriptionParameters{
					PublishingInterval: 10,
					LifetimeCount:      1000,
					MaxKeepAliveCount:  10,
					PublishingEnabled:  true,
				},
				SamplingInterval: 5,
				QueueSize:        10,
			},
		}},
	}))

	require.NoError(t, sim.SetValue(tempID, &uaedge.Variant{Type: uaedge.TypeDouble, Value: 21.5}))

	await(t, func() bool { return s.count("report") >= 1 }, "data-change report")
	report := s.get("report", 0)
	require.Len(t, report.Responses, 1)
	assert.Equal(t, "Temperature", report.Responses[0].NodeInfo.ValueAlias)
	assert.Equal(t, 21.5, report.Responses[0].Value.Data)
	assert.False(t, report.ServerTime.IsZero())

	// Delete the subscription; the pump stops delivering.
	require.NoError(t, adapter.HandleSubscription(&uaedge.Message{
		Endpoint: simEndpoint,
		Requests: []*uaedge.Request{{
			NodeInfo:   &uaedge.NodeInfo{NodeID: tempID, ValueAlias: "Temperature"},
			SubRequest: &uaedge.SubRequest{Type: uaedge.DeleteSub},
		}},
	}))
}
