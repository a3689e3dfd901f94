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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func subMessage(subType SubRequestType, aliases ...string) *Message {
	msg := &Message{Endpoint: testEndpoint}
	for i, alias := range aliases {
		msg.Requests = append(msg.Requests, &Request{
			RequestID: i,
			NodeInfo:  &NodeInfo{NodeID: NewStringNodeID(2, alias), ValueAlias: alias},
			SubRequest: &SubRequest{
				Type: subType,
				Params: SubscriptionParameters{
					PublishingInterval: 100,
					LifetimeCount:      10000,
					MaxKeepAliveCount:  10,
					PublishingEnabled:  true,
				},
				SamplingInterval: 50,
				QueueSize:        10,
			},
		})
	}
	return msg
}

func sessionOf(t *testing.T, a *Adapter) *session {
	t.Helper()
	s := a.registry.get(testEndpoint)
	require.NotNil(t, s)
	return s
}

func TestSubscribeDuplicateAliases(t *testing.T) {
	stack := newFakeStack()
	a, _ := newTestAdapter(t, stack)
	require.NoError(t, a.ConnectClient(testEndpoint))

	err := a.HandleSubscription(subMessage(CreateSub, "Temp", "Temp"))
	require.Error(t, err)

	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, StatusBadRequestCancelledByClient, svcErr.Code)

	// Rejected before any network call.
	assert.Equal(t, int32(0), stack.client.createSubCalls.Load())
	assert.Equal(t, int32(0), stack.client.createItemCalls.Load())
}

func TestSubscribeAlreadySubscribedAlias(t *testing.T) {
	stack := newFakeStack()
	a, _ := newTestAdapter(t, stack)
	require.NoError(t, a.ConnectClient(testEndpoint))

	require.NoError(t, a.HandleSubscription(subMessage(CreateSub, "Temp")))

	err := a.HandleSubscription(subMessage(CreateSub, "Temp"))
	require.Error(t, err)
	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, StatusBadRequestCancelledByClient, svcErr.Code)
	assert.Equal(t, int32(1), stack.client.createSubCalls.Load())
}

func TestSubscribeStartsPump(t *testing.T) {
	stack := newFakeStack()
	a, _ := newTestAdapter(t, stack)
	require.NoError(t, a.ConnectClient(testEndpoint))

	s := sessionOf(t, a)
	assert.False(t, s.subs.active())
	assert.Equal(t, 0, s.subs.subscriptionCount())

	require.NoError(t, a.HandleSubscription(subMessage(CreateSub, "Temp")))
	assert.True(t, s.subs.active())
	assert.Equal(t, 1, s.subs.subscriptionCount())

	waitFor(t, func() bool { return stack.client.runAsyncCalls.Load() > 1 }, "publish rounds")
}

func TestUnsubscribeLastItemStopsPump(t *testing.T) {
	stack := newFakeStack()
	a, _ := newTestAdapter(t, stack)
	require.NoError(t, a.ConnectClient(testEndpoint))
	s := sessionOf(t, a)

	require.NoError(t, a.HandleSubscription(subMessage(CreateSub, "Temp")))
	require.True(t, s.subs.active())

	require.NoError(t, a.HandleSubscription(subMessage(DeleteSub, "Temp")))
	assert.Equal(t, 0, s.subs.subscriptionCount())
	assert.False(t, s.subs.active(), "pump must have exited")

	// The pump no longer runs publish rounds.
	settled := stack.client.runAsyncCalls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, settled, stack.client.runAsyncCalls.Load())
}

func TestDeleteUnknownAlias(t *testing.T) {
	a, _ := newTestAdapter(t, newFakeStack())
	require.NoError(t, a.ConnectClient(testEndpoint))

	err := a.HandleSubscription(subMessage(DeleteSub, "Nope"))
	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, StatusBadNoSubscription, svcErr.Code)
}

func TestDataChangeReport(t *testing.T) {
	stack := newFakeStack()
	a, c := newTestAdapter(t, stack)
	require.NoError(t, a.ConnectClient(testEndpoint))

	require.NoError(t, a.HandleSubscription(subMessage(CreateSub, "Temp")))

	stamp := time.Date(2025, 3, 1, 8, 30, 0, 250_000_000, time.UTC)
	stack.client.fire(&DataValue{
		Value:              &Variant{Type: TypeDouble, Value: 42.5},
		StatusCode:         StatusGood,
		ServerTimestamp:    stamp,
		HasServerTimestamp: true,
	})

	waitFor(t, func() bool { return len(c.snapshot("report")) == 1 }, "report")
	report := c.snapshot("report")[0]
	assert.Equal(t, Report, report.Type)
	require.Len(t, report.Responses, 1)
	assert.Equal(t, "Temp", report.Responses[0].NodeInfo.ValueAlias)
	assert.Equal(t, 42.5, report.Responses[0].Value.Data)
	assert.Equal(t, stamp, report.ServerTime)

	sec, usec := unixTimeParts(report.ServerTime)
	assert.Equal(t, stamp.Unix(), sec)
	assert.Equal(t, int64(250000), usec)
}

func TestDataChangeBadStatusIgnored(t *testing.T) {
	stack := newFakeStack()
	a, c := newTestAdapter(t, stack)
	require.NoError(t, a.ConnectClient(testEndpoint))

	require.NoError(t, a.HandleSubscription(subMessage(CreateSub, "Temp")))
	stack.client.fire(&DataValue{StatusCode: StatusBadNotConnected})

	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, c.snapshot("report"))
}

func TestModifySubscription(t *testing.T) {
	stack := newFakeStack()
	a, _ := newTestAdapter(t, stack)
	require.NoError(t, a.ConnectClient(testEndpoint))

	require.NoError(t, a.HandleSubscription(subMessage(CreateSub, "Temp")))
	require.NoError(t, a.HandleSubscription(subMessage(ModifySub, "Temp")))

	err := a.HandleSubscription(subMessage(ModifySub, "Other"))
	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, StatusBadNoSubscription, svcErr.Code)
}

func TestRepublishMessageNotAvailable(t *testing.T) {
	stack := newFakeStack()
	stack.client.republishFn = func(subID, seq uint32) (StatusCode, error) {
		assert.Equal(t, defaultRetransmitSequenceNumber, seq)
		return StatusBadMessageNotAvailable, nil
	}
	a, _ := newTestAdapter(t, stack)
	require.NoError(t, a.ConnectClient(testEndpoint))

	require.NoError(t, a.HandleSubscription(subMessage(CreateSub, "Temp")))
	assert.NoError(t, a.HandleSubscription(subMessage(RepublishSub, "Temp")))
}

func TestSubscriptionIDCollisionRejected(t *testing.T) {
	stack := newFakeStack()
	stack.client.createSubFn = func(params SubscriptionParameters) (*CreateSubscriptionResult, error) {
		return &CreateSubscriptionResult{ServiceResult: StatusGood, SubscriptionID: 7}, nil
	}
	a, _ := newTestAdapter(t, stack)
	require.NoError(t, a.ConnectClient(testEndpoint))

	require.NoError(t, a.HandleSubscription(subMessage(CreateSub, "A")))

	err := a.HandleSubscription(subMessage(CreateSub, "B"))
	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, StatusBadSubscriptionIdInvalid, svcErr.Code)
}

func TestDisconnectStopsPumpAndDrainsRecords(t *testing.T) {
	stack := newFakeStack()
	a, _ := newTestAdapter(t, stack)
	require.NoError(t, a.ConnectClient(testEndpoint))
	s := sessionOf(t, a)

	require.NoError(t, a.HandleSubscription(subMessage(CreateSub, "Temp")))
	require.True(t, s.subs.active())

	require.NoError(t, a.DisconnectClient(testEndpoint))
	assert.False(t, s.subs.active())
	assert.Equal(t, 0, s.subs.subscriptionCount())
	assert.True(t, stack.client.closed.Load())
}
