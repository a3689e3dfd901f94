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

import "time"

// DataChangeHandler is invoked by the stack for every data-change
// notification of a monitored item. itemContext is the value passed to
// CreateDataChangeItem.
type DataChangeHandler func(subscriptionID, monitoredItemID uint32, itemContext interface{}, value *DataValue)

// ReadResponse is the stack's answer to a read batch.
type ReadResponse struct {
	ServiceResult StatusCode
	Results       []DataValue
}

// WriteResponse is the stack's answer to a write batch.
type WriteResponse struct {
	ServiceResult StatusCode
	Results       []StatusCode
}

// BrowseServiceResponse is the stack's answer to a browse or browse-next
// batch.
type BrowseServiceResponse struct {
	ServiceResult StatusCode
	Results       []BrowseResult
}

// CallResponse is the stack's answer to a method call.
type CallResponse struct {
	ServiceResult   StatusCode
	StatusCode      StatusCode
	OutputArguments []Variant
}

// CreateSubscriptionResult is the stack's answer to a subscription
// creation.
type CreateSubscriptionResult struct {
	ServiceResult             StatusCode
	SubscriptionID            uint32
	RevisedPublishingInterval float64
	RevisedLifetimeCount      uint32
	RevisedMaxKeepAliveCount  uint32
}

// MonitoredItemResult is the stack's answer to a monitored-item creation.
type MonitoredItemResult struct {
	StatusCode              StatusCode
	MonitoredItemID         uint32
	RevisedSamplingInterval float64
	RevisedQueueSize        uint32
}

// Client is one live stack connection to a server. All methods may block
// on network I/O. A returned error indicates a transport-level failure;
// service-level outcomes are carried in the response status codes.
type Client interface {
	Connect(endpointURL string) error
	Close() error

	Read(nodesToRead []ReadValueID, timestamps TimestampsToReturn) (*ReadResponse, error)
	Write(nodesToWrite []WriteValue) (*WriteResponse, error)
	Browse(nodesToBrowse []BrowseDescription, maxReferencesPerNode uint32) (*BrowseServiceResponse, error)
	BrowseNext(continuationPoints [][]byte, releaseContinuationPoints bool) (*BrowseServiceResponse, error)
	Call(objectID, methodID NodeID, inputArguments []Variant) (*CallResponse, error)

	CreateSubscription(params SubscriptionParameters) (*CreateSubscriptionResult, error)
	CreateDataChangeItem(subscriptionID uint32, item ReadValueID, params MonitoringParameters, itemContext interface{}, handler DataChangeHandler) (*MonitoredItemResult, error)
	ModifySubscription(subscriptionID uint32, params SubscriptionParameters) (StatusCode, error)
	ModifyMonitoredItem(subscriptionID, monitoredItemID uint32, params MonitoringParameters) (StatusCode, error)
	SetMonitoringMode(subscriptionID uint32, monitoredItemIDs []uint32, mode MonitoringMode) ([]StatusCode, error)
	SetPublishingMode(subscriptionIDs []uint32, enabled bool) ([]StatusCode, error)
	DeleteMonitoredItem(subscriptionID, monitoredItemID uint32) (StatusCode, error)
	DeleteSubscription(subscriptionID uint32) (StatusCode, error)
	Republish(subscriptionID, retransmitSequenceNumber uint32) (StatusCode, error)

	// RunAsync drives a single publish round; pending data-change
	// notifications are delivered through the registered handlers before
	// it returns.
	RunAsync(timeout time.Duration) error
}

// Stack is the narrow surface the adapter consumes from the underlying
// OPC UA implementation. Wire encoding, transport and security policy
// negotiation live behind it.
type Stack interface {
	// ParseEndpointURL splits an endpoint URL into host, port and path.
	// Default port resolution is the parser's responsibility.
	ParseEndpointURL(endpointURL string) (host string, port uint16, path string, err error)

	// NewClient creates an unconnected client.
	NewClient() (Client, error)

	FindServers(endpointURL string, serverURIs, localeIDs []string) ([]ApplicationDescription, error)
	GetEndpoints(endpointURL string) ([]EndpointDescription, error)
}

// ServerBackend is the narrow surface the adapter consumes for hosting a
// server namespace. Node storage and namespace management live behind it.
type ServerBackend interface {
	Start(endpointURL string) error
	Stop() error
	CreateNamespace(name, rootNodeID, rootBrowseName, rootDisplayName string) error
	CreateNode(namespaceURI string, item *NodeItem) error
	AddReference(sourcePath, targetPath string, forward bool) error
}

// NodeItem describes one node to create in a hosted server namespace.
type NodeItem struct {
	BrowseName     string
	NodeClass      NodeClass
	AccessLevel    uint8
	Value          *Variant
	SourcePath     string
	MethodArgCount int
}
