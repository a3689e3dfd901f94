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
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// fakeStack is a scriptable stack for unit tests.
type fakeStack struct {
	client      *fakeClient
	newClientFn func() (Client, error)
	findServers []ApplicationDescription
	endpoints   []EndpointDescription
}

func newFakeStack() *fakeStack {
	return &fakeStack{client: newFakeClient()}
}

func (f *fakeStack) ParseEndpointURL(endpointURL string) (string, uint16, string, error) {
	const scheme = "opc.tcp://"
	if !strings.HasPrefix(endpointURL, scheme) {
		return "", 0, "", fmt.Errorf("bad scheme in %q", endpointURL)
	}
	rest := strings.TrimPrefix(endpointURL, scheme)
	path := ""
	if idx := strings.IndexByte(rest, '/'); idx >= 0 {
		path = rest[idx:]
		rest = rest[:idx]
	}
	host, port := rest, uint16(4840)
	if idx := strings.LastIndexByte(rest, ':'); idx >= 0 {
		host = rest[:idx]
		p, err := strconv.ParseUint(rest[idx+1:], 10, 16)
		if err != nil {
			return "", 0, "", fmt.Errorf("bad port in %q", endpointURL)
		}
		port = uint16(p)
	}
	if host == "" {
		return "", 0, "", fmt.Errorf("empty host in %q", endpointURL)
	}
	return host, port, path, nil
}

func (f *fakeStack) NewClient() (Client, error) {
	if f.newClientFn != nil {
		return f.newClientFn()
	}
	return f.client, nil
}

func (f *fakeStack) FindServers(endpointURL string, serverURIs, localeIDs []string) ([]ApplicationDescription, error) {
	return f.findServers, nil
}

func (f *fakeStack) GetEndpoints(endpointURL string) ([]EndpointDescription, error) {
	return f.endpoints, nil
}

// fakeClient is a scriptable stack client. Read, Write, Browse,
// BrowseNext, Call, CreateSubscription, CreateDataChangeItem and
// Republish have function hooks; without a hook every service answers
// Good (Read with an Int32 value per node, the create services with
// fresh sequential ids).
type fakeClient struct {
	connectErr error
	closed     atomic.Bool

	readFn       func([]ReadValueID) (*ReadResponse, error)
	writeFn      func([]WriteValue) (*WriteResponse, error)
	browseFn     func([]BrowseDescription) (*BrowseServiceResponse, error)
	browseNextFn func([][]byte) (*BrowseServiceResponse, error)
	callFn       func(NodeID, NodeID, []Variant) (*CallResponse, error)

	createSubFn  func(SubscriptionParameters) (*CreateSubscriptionResult, error)
	createItemFn func(uint32, ReadValueID, interface{}, DataChangeHandler) (*MonitoredItemResult, error)
	republishFn  func(uint32, uint32) (StatusCode, error)

	createSubCalls  atomic.Int32
	createItemCalls atomic.Int32
	runAsyncCalls   atomic.Int32

	subSeq atomic.Uint32
	monSeq atomic.Uint32

	handlers []registeredItem
}

type registeredItem struct {
	subID   uint32
	monID   uint32
	ctx     interface{}
	handler DataChangeHandler
}

func newFakeClient() *fakeClient {
	return &fakeClient{}
}

func (c *fakeClient) Connect(endpointURL string) error { return c.connectErr }

func (c *fakeClient) Close() error {
	c.closed.Store(true)
	return nil
}

func (c *fakeClient) Read(nodesToRead []ReadValueID, timestamps TimestampsToReturn) (*ReadResponse, error) {
	if c.readFn != nil {
		return c.readFn(nodesToRead)
	}
	results := make([]DataValue, len(nodesToRead))
	for i := range results {
		results[i] = DataValue{
			Value:      &Variant{Type: TypeInt32, Value: int32(i)},
			StatusCode: StatusGood,
		}
	}
	return &ReadResponse{ServiceResult: StatusGood, Results: results}, nil
}

func (c *fakeClient) Write(nodesToWrite []WriteValue) (*WriteResponse, error) {
	if c.writeFn != nil {
		return c.writeFn(nodesToWrite)
	}
	results := make([]StatusCode, len(nodesToWrite))
	return &WriteResponse{ServiceResult: StatusGood, Results: results}, nil
}

func (c *fakeClient) Browse(nodesToBrowse []BrowseDescription, maxReferencesPerNode uint32) (*BrowseServiceResponse, error) {
	if c.browseFn != nil {
		return c.browseFn(nodesToBrowse)
	}
	results := make([]BrowseResult, len(nodesToBrowse))
	for i := range results {
		results[i].StatusCode = StatusGood
	}
	return &BrowseServiceResponse{ServiceResult: StatusGood, Results: results}, nil
}

func (c *fakeClient) BrowseNext(continuationPoints [][]byte, release bool) (*BrowseServiceResponse, error) {
	if c.browseNextFn != nil {
		return c.browseNextFn(continuationPoints)
	}
	results := make([]BrowseResult, len(continuationPoints))
	for i := range results {
		results[i].StatusCode = StatusGood
	}
	return &BrowseServiceResponse{ServiceResult: StatusGood, Results: results}, nil
}

func (c *fakeClient) Call(objectID, methodID NodeID, inputs []Variant) (*CallResponse, error) {
	if c.callFn != nil {
		return c.callFn(objectID, methodID, inputs)
	}
	return &CallResponse{ServiceResult: StatusGood, StatusCode: StatusGood}, nil
}

func (c *fakeClient) CreateSubscription(params SubscriptionParameters) (*CreateSubscriptionResult, error) {
	c.createSubCalls.Add(1)
	if c.createSubFn != nil {
		return c.createSubFn(params)
	}
	return &CreateSubscriptionResult{
		ServiceResult:  StatusGood,
		SubscriptionID: c.subSeq.Add(1),
	}, nil
}

func (c *fakeClient) CreateDataChangeItem(subscriptionID uint32, item ReadValueID, params MonitoringParameters, itemContext interface{}, handler DataChangeHandler) (*MonitoredItemResult, error) {
	c.createItemCalls.Add(1)
	if c.createItemFn != nil {
		return c.createItemFn(subscriptionID, item, itemContext, handler)
	}
	monID := c.monSeq.Add(1)
	c.handlers = append(c.handlers, registeredItem{
		subID:   subscriptionID,
		monID:   monID,
		ctx:     itemContext,
		handler: handler,
	})
	return &MonitoredItemResult{StatusCode: StatusGood, MonitoredItemID: monID}, nil
}

func (c *fakeClient) ModifySubscription(subscriptionID uint32, params SubscriptionParameters) (StatusCode, error) {
	return StatusGood, nil
}

func (c *fakeClient) ModifyMonitoredItem(subscriptionID, monitoredItemID uint32, params MonitoringParameters) (StatusCode, error) {
	return StatusGood, nil
}

func (c *fakeClient) SetMonitoringMode(subscriptionID uint32, monitoredItemIDs []uint32, mode MonitoringMode) ([]StatusCode, error) {
	return make([]StatusCode, len(monitoredItemIDs)), nil
}

func (c *fakeClient) SetPublishingMode(subscriptionIDs []uint32, enabled bool) ([]StatusCode, error) {
	return make([]StatusCode, len(subscriptionIDs)), nil
}

func (c *fakeClient) DeleteMonitoredItem(subscriptionID, monitoredItemID uint32) (StatusCode, error) {
	return StatusGood, nil
}

func (c *fakeClient) DeleteSubscription(subscriptionID uint32) (StatusCode, error) {
	return StatusGood, nil
}

func (c *fakeClient) Republish(subscriptionID, retransmitSequenceNumber uint32) (StatusCode, error) {
	if c.republishFn != nil {
		return c.republishFn(subscriptionID, retransmitSequenceNumber)
	}
	return StatusGood, nil
}

func (c *fakeClient) RunAsync(timeout time.Duration) error {
	c.runAsyncCalls.Add(1)
	return nil
}

// fire delivers a data change to every registered handler.
func (c *fakeClient) fire(value *DataValue) {
	for _, item := range c.handlers {
		item.handler(item.subID, item.monID, item.ctx, value)
	}
}
