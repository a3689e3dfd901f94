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

package uaedge

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testEndpoint = "opc.tcp://localhost:4840"

// statusEvent records one status callback invocation.
type statusEvent struct {
	endpoint string
	status   Status
}

// collector gathers everything delivered through the callbacks.
type collector struct {
	mu       sync.Mutex
	general  []*Message
	browse   []*Message
	reports  []*Message
	errors   []*Message
	statuses []statusEvent
}

func (c *collector) configure() Configure {
	return Configure{
		OnResponse: func(msg *Message) { c.append(&c.general, msg) },
		OnBrowse:   func(msg *Message) { c.append(&c.browse, msg) },
		OnReport:   func(msg *Message) { c.append(&c.reports, msg) },
		OnError:    func(msg *Message) { c.append(&c.errors, msg) },
		OnStatus: func(endpoint string, status Status) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.statuses = append(c.statuses, statusEvent{endpoint: endpoint, status: status})
		},
	}
}

func (c *collector) append(dst *[]*Message, msg *Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	*dst = append(*dst, msg)
}

func (c *collector) snapshot(kind string) []*Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	var src []*Message
	switch kind {
	case "general":
		src = c.general
	case "browse":
		src = c.browse
	case "report":
		src = c.reports
	case "error":
		src = c.errors
	}
	out := make([]*Message, len(src))
	copy(out, src)
	return out
}

func (c *collector) statusEvents() []statusEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]statusEvent, len(c.statuses))
	copy(out, c.statuses)
	return out
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

func newTestAdapter(t *testing.T, stack Stack) (*Adapter, *collector) {
	t.Helper()
	a, err := New(stack)
	require.NoError(t, err)
	c := &collector{}
	require.NoError(t, a.Configure(c.configure()))
	t.Cleanup(a.Close)
	return a, c
}

func TestConnectBeforeConfigure(t *testing.T) {
	a, err := New(newFakeStack())
	require.NoError(t, err)
	assert.ErrorIs(t, a.ConnectClient(testEndpoint), ErrNotConfigured)
}

func TestDoubleConnect(t *testing.T) {
	a, c := newTestAdapter(t, newFakeStack())

	require.NoError(t, a.ConnectClient(testEndpoint))

	err := a.ConnectClient(testEndpoint)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAlreadyConnected)

	// The same host:port under a different URL spelling is the same
	// session.
	err = a.ConnectClient("opc.tcp://localhost:4840/path")
	assert.ErrorIs(t, err, ErrAlreadyConnected)

	events := c.statusEvents()
	require.Len(t, events, 1)
	assert.Equal(t, StatusClientStarted, events[0].status)
	assert.Equal(t, testEndpoint, events[0].endpoint)
}

func TestConnectFailureDestroysClient(t *testing.T) {
	stack := newFakeStack()
	stack.client.connectErr = errors.New("refused")
	a, c := newTestAdapter(t, stack)

	err := a.ConnectClient(testEndpoint)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnectFailed)
	assert.True(t, stack.client.closed.Load())
	assert.Empty(t, c.statusEvents())
}

func TestDisconnect(t *testing.T) {
	stack := newFakeStack()
	a, c := newTestAdapter(t, stack)

	require.NoError(t, a.ConnectClient(testEndpoint))
	require.NoError(t, a.DisconnectClient(testEndpoint))
	assert.True(t, stack.client.closed.Load())

	events := c.statusEvents()
	require.Len(t, events, 2)
	assert.Equal(t, StatusClientStarted, events[0].status)
	assert.Equal(t, StatusStopClient, events[1].status)

	// The session is gone, verbs fail synchronously.
	err := a.ReadNode(&Message{
		Endpoint: testEndpoint,
		Requests: []*Request{{NodeInfo: &NodeInfo{NodeID: NewStringNodeID(2, "X")}}},
	})
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestDisconnectUnknownSession(t *testing.T) {
	a, _ := newTestAdapter(t, newFakeStack())
	assert.ErrorIs(t, a.DisconnectClient(testEndpoint), ErrNotConnected)
}

func TestVerbsValidateRequests(t *testing.T) {
	a, _ := newTestAdapter(t, newFakeStack())
	require.NoError(t, a.ConnectClient(testEndpoint))

	assert.ErrorIs(t, a.ReadNode(nil), ErrInvalidRequest)
	assert.ErrorIs(t, a.ReadNode(&Message{Endpoint: testEndpoint}), ErrInvalidRequest)
	assert.ErrorIs(t, a.ReadNode(&Message{
		Endpoint: testEndpoint,
		Requests: []*Request{{}},
	}), ErrInvalidRequest)
	assert.ErrorIs(t, a.WriteNode(&Message{
		Endpoint: testEndpoint,
		Requests: []*Request{{NodeInfo: &NodeInfo{NodeID: NewStringNodeID(2, "X")}}},
	}), ErrInvalidRequest)
}

func TestMessageIDsMonotonic(t *testing.T) {
	a, c := newTestAdapter(t, newFakeStack())
	require.NoError(t, a.ConnectClient(testEndpoint))

	first := &Message{
		Endpoint: testEndpoint,
		Requests: []*Request{{NodeInfo: &NodeInfo{NodeID: NewStringNodeID(2, "A")}}},
	}
	second := &Message{
		Endpoint: testEndpoint,
		Requests: []*Request{{NodeInfo: &NodeInfo{NodeID: NewStringNodeID(2, "B")}}},
	}
	require.NoError(t, a.ReadNode(first))
	require.NoError(t, a.ReadNode(second))
	assert.Less(t, first.ID, second.ID)

	waitFor(t, func() bool { return len(c.snapshot("general")) == 2 }, "read responses")
	responses := c.snapshot("general")
	assert.Equal(t, first.ID, responses[0].ID)
	assert.Equal(t, second.ID, responses[1].ID)
}
