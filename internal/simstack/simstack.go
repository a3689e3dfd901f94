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

// Package simstack provides an in-memory implementation of the stack
// contract for the demo CLI and tests. It simulates one server
// with an address space, attribute services, browsing with continuation
// points, method calls and data-change subscriptions.
package simstack

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/edgeo-scada/uaedge"
)

// MethodFunc is the implementation of a simulated server method.
type MethodFunc func(inputs []uaedge.Variant) ([]uaedge.Variant, uaedge.StatusCode)

// node is one entry of the simulated address space.
type node struct {
	id          uaedge.NodeID
	class       uaedge.NodeClass
	browseName  string
	displayName string
	typeDef     uaedge.NodeID
	value       *uaedge.Variant
	minInterval float64
	method      MethodFunc
}

// reference links two nodes of the address space.
type reference struct {
	source  string
	target  string
	refType uaedge.NodeID
	forward bool
}

// monitoredItem is one subscribed attribute.
type monitoredItem struct {
	id      uint32
	subID   uint32
	nodeKey string
	ctx     interface{}
	handler uaedge.DataChangeHandler
}

// pendingChange is a data change waiting for the next publish round.
type pendingChange struct {
	item  *monitoredItem
	value uaedge.DataValue
}

// Simulator is an in-memory OPC UA stack serving one address space.
type Simulator struct {
	mu         sync.Mutex
	nodes      map[string]*node
	refs       []reference
	endpoints  map[string]struct{}
	servers    []uaedge.ApplicationDescription
	contPoints map[string][]uaedge.ReferenceDescription
	cpSeq      int

	subSeq  uint32
	monSeq  uint32
	subs    map[uint32]map[uint32]*monitoredItem
	enabled map[uint32]bool
	pending []pendingChange

	// BrowsePageSize truncates browse results when > 0, forcing
	// continuation points.
	BrowsePageSize int
}

// New creates a simulator with the standard Root folder.
func New() *Simulator {
	s := &Simulator{
		nodes:      make(map[string]*node),
		endpoints:  make(map[string]struct{}),
		contPoints: make(map[string][]uaedge.ReferenceDescription),
		subs:       make(map[uint32]map[uint32]*monitoredItem),
		enabled:    make(map[uint32]bool),
	}
	root := uaedge.NewNumericNodeID(0, uaedge.RootFolderID)
	s.nodes[root.Key()] = &node{
		id:          root,
		class:       uaedge.NodeClassObject,
		browseName:  "Root",
		displayName: "Root",
		typeDef:     uaedge.NewNumericNodeID(0, 61),
	}
	return s
}

// Serve registers an endpoint URL the simulator accepts connections on.
func (s *Simulator) Serve(endpointURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endpoints[endpointURL] = struct{}{}
	s.servers = append(s.servers, uaedge.ApplicationDescription{
		ApplicationURI:  "urn:edgeo:simstack:server",
		ProductURI:      "urn:edgeo:simstack",
		ApplicationName: uaedge.LocalizedText{Locale: "en-US", Text: "Simulated Server"},
		ApplicationType: uaedge.ApplicationTypeServer,
		DiscoveryURLs:   []string{endpointURL},
	})
}

// RegisterServer adds an application description to the discovery
// answer.
func (s *Simulator) RegisterServer(desc uaedge.ApplicationDescription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.servers = append(s.servers, desc)
}

// AddObject adds an object node under the given parent.
func (s *Simulator) AddObject(parent, id uaedge.NodeID, browseName string) {
	s.addNode(parent, &node{
		id:          id,
		class:       uaedge.NodeClassObject,
		browseName:  browseName,
		displayName: browseName,
		typeDef:     uaedge.NewNumericNodeID(0, 61),
	})
}

// AddVariable adds a variable node under the given parent.
func (s *Simulator) AddVariable(parent, id uaedge.NodeID, browseName string, value *uaedge.Variant) {
	s.addNode(parent, &node{
		id:          id,
		class:       uaedge.NodeClassVariable,
		browseName:  browseName,
		displayName: browseName,
		typeDef:     uaedge.NewNumericNodeID(0, 63),
		value:       value,
		minInterval: 100,
	})
}

// AddView adds a view node under the given parent.
func (s *Simulator) AddView(parent, id uaedge.NodeID, browseName string) {
	s.addNode(parent, &node{
		id:          id,
		class:       uaedge.NodeClassView,
		browseName:  browseName,
		displayName: browseName,
	})
}

// AddMethod adds a callable method node under the given object.
func (s *Simulator) AddMethod(parent, id uaedge.NodeID, browseName string, fn MethodFunc) {
	s.addNode(parent, &node{
		id:          id,
		class:       uaedge.NodeClassMethod,
		browseName:  browseName,
		displayName: browseName,
		method:      fn,
	})
}

func (s *Simulator) addNode(parent uaedge.NodeID, n *node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[n.id.Key()] = n
	s.refs = append(s.refs, reference{
		source:  parent.Key(),
		target:  n.id.Key(),
		refType: uaedge.NewNumericNodeID(0, 35), // Organizes
		forward: true,
	})
}

// AddReference links two existing nodes.
func (s *Simulator) AddReference(source, target uaedge.NodeID, forward bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs = append(s.refs, reference{
		source:  source.Key(),
		target:  target.Key(),
		refType: uaedge.NewNumericNodeID(0, 35),
		forward: forward,
	})
}

// SetValue updates a variable and queues data-change notifications for
// its monitored items.
func (s *Simulator) SetValue(id uaedge.NodeID, value *uaedge.Variant) error {
	key := id.Key()
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[key]
	if !ok {
		return fmt.Errorf("simstack: unknown node %s", key)
	}
	n.value = value
	s.queueChangeLocked(key, value)
	return nil
}

// queueChangeLocked queues a notification for every monitored item of
// the node. Caller holds mu.
func (s *Simulator) queueChangeLocked(nodeKey string, value *uaedge.Variant) {
	now := time.Now()
	for subID, items := range s.subs {
		if !s.enabled[subID] {
			continue
		}
		for _, item := range items {
			if item.nodeKey != nodeKey {
				continue
			}
			s.pending = append(s.pending, pendingChange{
				item: item,
				value: uaedge.DataValue{
					Value:              value,
					StatusCode:         uaedge.StatusGood,
					SourceTimestamp:    now,
					ServerTimestamp:    now,
					HasServerTimestamp: true,
				},
			})
		}
	}
}

// ParseEndpointURL splits an opc.tcp endpoint URL. A missing port
// resolves to the well-known default 4840.
func (s *Simulator) ParseEndpointURL(endpointURL string) (string, uint16, string, error) {
	const scheme = "opc.tcp://"
	if !strings.HasPrefix(endpointURL, scheme) {
		return "", 0, "", fmt.Errorf("simstack: unsupported scheme in %q", endpointURL)
	}
	rest := strings.TrimPrefix(endpointURL, scheme)
	path := ""
	if idx := strings.IndexByte(rest, '/'); idx >= 0 {
		path = rest[idx:]
		rest = rest[:idx]
	}
	host := rest
	port := uint16(4840)
	if idx := strings.LastIndexByte(rest, ':'); idx >= 0 {
		host = rest[:idx]
		p, err := strconv.ParseUint(rest[idx+1:], 10, 16)
		if err != nil {
			return "", 0, "", fmt.Errorf("simstack: invalid port in %q", endpointURL)
		}
		port = uint16(p)
	}
	if host == "" {
		return "", 0, "", fmt.Errorf("simstack: empty host in %q", endpointURL)
	}
	return host, port, path, nil
}

// NewClient creates an unconnected client bound to this simulator.
func (s *Simulator) NewClient() (uaedge.Client, error) {
	return &client{sim: s}, nil
}

// FindServers returns the registered application descriptions.
func (s *Simulator) FindServers(endpointURL string, serverURIs, localeIDs []string) ([]uaedge.ApplicationDescription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]uaedge.ApplicationDescription, len(s.servers))
	copy(out, s.servers)
	return out, nil
}

// GetEndpoints returns one endpoint description per served URL.
func (s *Simulator) GetEndpoints(endpointURL string) ([]uaedge.EndpointDescription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []uaedge.EndpointDescription
	for url := range s.endpoints {
		desc := uaedge.EndpointDescription{
			EndpointURL:       url,
			SecurityPolicyURI: "http://opcfoundation.org/UA/SecurityPolicy#None",
		}
		if len(s.servers) > 0 {
			desc.Server = s.servers[0]
		}
		out = append(out, desc)
	}
	return out, nil
}

// client is one simulated connection.
type client struct {
	sim       *Simulator
	mu        sync.Mutex
	connected bool
}

func (c *client) Connect(endpointURL string) error {
	c.sim.mu.Lock()
	_, ok := c.sim.endpoints[endpointURL]
	c.sim.mu.Unlock()
	if !ok {
		return fmt.Errorf("simstack: no server at %q", endpointURL)
	}
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	return nil
}

func (c *client) Close() error {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	return nil
}

func (c *client) checkConnected() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return uaedge.ErrNotConnected
	}
	return nil
}

func (c *client) Read(nodesToRead []uaedge.ReadValueID, timestamps uaedge.TimestampsToReturn) (*uaedge.ReadResponse, error) {
	if err := c.checkConnected(); err != nil {
		return nil, err
	}
	c.sim.mu.Lock()
	defer c.sim.mu.Unlock()

	now := time.Now()
	resp := &uaedge.ReadResponse{ServiceResult: uaedge.StatusGood}
	for _, rv := range nodesToRead {
		n, ok := c.sim.nodes[rv.NodeID.Key()]
		if !ok {
			resp.Results = append(resp.Results, uaedge.DataValue{StatusCode: uaedge.StatusBadNodeIdUnknown})
			continue
		}
		switch rv.AttributeID {
		case uaedge.AttributeValue:
			if n.value == nil {
				resp.Results = append(resp.Results, uaedge.DataValue{StatusCode: uaedge.StatusBadNotReadable})
				continue
			}
			resp.Results = append(resp.Results, uaedge.DataValue{
				Value:              n.value,
				StatusCode:         uaedge.StatusGood,
				SourceTimestamp:    now,
				ServerTimestamp:    now,
				HasServerTimestamp: true,
			})
		case uaedge.AttributeMinimumSamplingInterval:
			resp.Results = append(resp.Results, uaedge.DataValue{
				Value:              &uaedge.Variant{Type: uaedge.TypeDouble, Value: n.minInterval},
				StatusCode:         uaedge.StatusGood,
				SourceTimestamp:    now,
				ServerTimestamp:    now,
				HasServerTimestamp: true,
			})
		default:
			resp.Results = append(resp.Results, uaedge.DataValue{StatusCode: uaedge.StatusBadAttributeIdInvalid})
		}
	}
	return resp, nil
}

func (c *client) Write(nodesToWrite []uaedge.WriteValue) (*uaedge.WriteResponse, error) {
	if err := c.checkConnected(); err != nil {
		return nil, err
	}
	c.sim.mu.Lock()
	defer c.sim.mu.Unlock()

	resp := &uaedge.WriteResponse{ServiceResult: uaedge.StatusGood}
	for _, wv := range nodesToWrite {
		key := wv.NodeID.Key()
		n, ok := c.sim.nodes[key]
		if !ok {
			resp.Results = append(resp.Results, uaedge.StatusBadNodeIdUnknown)
			continue
		}
		if n.class != uaedge.NodeClassVariable {
			resp.Results = append(resp.Results, uaedge.StatusBadNotWritable)
			continue
		}
		n.value = wv.Value.Value
		c.sim.queueChangeLocked(key, n.value)
		resp.Results = append(resp.Results, uaedge.StatusGood)
	}
	return resp, nil
}

func (c *client) Browse(nodesToBrowse []uaedge.BrowseDescription, maxReferencesPerNode uint32) (*uaedge.BrowseServiceResponse, error) {
	if err := c.checkConnected(); err != nil {
		return nil, err
	}
	c.sim.mu.Lock()
	defer c.sim.mu.Unlock()

	resp := &uaedge.BrowseServiceResponse{ServiceResult: uaedge.StatusGood}
	for _, desc := range nodesToBrowse {
		key := desc.NodeID.Key()
		if _, ok := c.sim.nodes[key]; !ok {
			resp.Results = append(resp.Results, uaedge.BrowseResult{StatusCode: uaedge.StatusBadNodeIdUnknown})
			continue
		}

		var refs []uaedge.ReferenceDescription
		for _, r := range c.sim.refs {
			if r.source != key {
				continue
			}
			if desc.BrowseDirection == uaedge.BrowseDirectionForward && !r.forward {
				continue
			}
			if desc.BrowseDirection == uaedge.BrowseDirectionInverse && r.forward {
				continue
			}
			target, ok := c.sim.nodes[r.target]
			if !ok {
				continue
			}
			if desc.NodeClassMask != 0 && target.class&desc.NodeClassMask == 0 {
				continue
			}
			refs = append(refs, uaedge.ReferenceDescription{
				ReferenceTypeID: r.refType,
				IsForward:       r.forward,
				NodeID:          uaedge.ExpandedNodeID{NodeID: target.id},
				BrowseName:      uaedge.QualifiedName{NamespaceIndex: target.id.Namespace, Name: target.browseName},
				DisplayName:     uaedge.LocalizedText{Locale: "en-US", Text: target.displayName},
				NodeClass:       target.class,
				TypeDefinition:  uaedge.ExpandedNodeID{NodeID: target.typeDef},
			})
		}

		result := uaedge.BrowseResult{StatusCode: uaedge.StatusGood}
		limit := len(refs)
		if c.sim.BrowsePageSize > 0 && c.sim.BrowsePageSize < limit {
			limit = c.sim.BrowsePageSize
		}
		if maxReferencesPerNode > 0 && int(maxReferencesPerNode) < limit {
			limit = int(maxReferencesPerNode)
		}
		result.References = refs[:limit]
		if limit < len(refs) {
			c.sim.cpSeq++
			token := fmt.Sprintf("cp-%d", c.sim.cpSeq)
			c.sim.contPoints[token] = refs[limit:]
			result.ContinuationPoint = []byte(token)
		}
		resp.Results = append(resp.Results, result)
	}
	return resp, nil
}

func (c *client) BrowseNext(continuationPoints [][]byte, releaseContinuationPoints bool) (*uaedge.BrowseServiceResponse, error) {
	if err := c.checkConnected(); err != nil {
		return nil, err
	}
	c.sim.mu.Lock()
	defer c.sim.mu.Unlock()

	resp := &uaedge.BrowseServiceResponse{ServiceResult: uaedge.StatusGood}
	for _, cp := range continuationPoints {
		token := string(cp)
		refs, ok := c.sim.contPoints[token]
		if !ok {
			resp.Results = append(resp.Results, uaedge.BrowseResult{StatusCode: uaedge.StatusBadContinuationPointInvalid})
			continue
		}
		delete(c.sim.contPoints, token)
		if releaseContinuationPoints {
			resp.Results = append(resp.Results, uaedge.BrowseResult{StatusCode: uaedge.StatusGood})
			continue
		}
		resp.Results = append(resp.Results, uaedge.BrowseResult{
			StatusCode: uaedge.StatusGood,
			References: refs,
		})
	}
	return resp, nil
}

func (c *client) Call(objectID, methodID uaedge.NodeID, inputArguments []uaedge.Variant) (*uaedge.CallResponse, error) {
	if err := c.checkConnected(); err != nil {
		return nil, err
	}
	c.sim.mu.Lock()
	n, ok := c.sim.nodes[methodID.Key()]
	c.sim.mu.Unlock()
	if !ok || n.class != uaedge.NodeClassMethod || n.method == nil {
		return &uaedge.CallResponse{
			ServiceResult: uaedge.StatusGood,
			StatusCode:    uaedge.StatusBadMethodInvalid,
		}, nil
	}
	outputs, status := n.method(inputArguments)
	return &uaedge.CallResponse{
		ServiceResult:   uaedge.StatusGood,
		StatusCode:      status,
		OutputArguments: outputs,
	}, nil
}

func (c *client) CreateSubscription(params uaedge.SubscriptionParameters) (*uaedge.CreateSubscriptionResult, error) {
	if err := c.checkConnected(); err != nil {
		return nil, err
	}
	c.sim.mu.Lock()
	defer c.sim.mu.Unlock()
	c.sim.subSeq++
	subID := c.sim.subSeq
	c.sim.subs[subID] = make(map[uint32]*monitoredItem)
	c.sim.enabled[subID] = params.PublishingEnabled
	return &uaedge.CreateSubscriptionResult{
		ServiceResult:             uaedge.StatusGood,
		SubscriptionID:            subID,
		RevisedPublishingInterval: params.PublishingInterval,
		RevisedLifetimeCount:      params.LifetimeCount,
		RevisedMaxKeepAliveCount:  params.MaxKeepAliveCount,
	}, nil
}

func (c *client) CreateDataChangeItem(subscriptionID uint32, item uaedge.ReadValueID, params uaedge.MonitoringParameters, itemContext interface{}, handler uaedge.DataChangeHandler) (*uaedge.MonitoredItemResult, error) {
	if err := c.checkConnected(); err != nil {
		return nil, err
	}
	c.sim.mu.Lock()
	defer c.sim.mu.Unlock()

	items, ok := c.sim.subs[subscriptionID]
	if !ok {
		return &uaedge.MonitoredItemResult{StatusCode: uaedge.StatusBadSubscriptionIdInvalid}, nil
	}
	key := item.NodeID.Key()
	if _, exists := c.sim.nodes[key]; !exists {
		return &uaedge.MonitoredItemResult{StatusCode: uaedge.StatusBadNodeIdUnknown}, nil
	}
	c.sim.monSeq++
	mi := &monitoredItem{
		id:      c.sim.monSeq,
		subID:   subscriptionID,
		nodeKey: key,
		ctx:     itemContext,
		handler: handler,
	}
	items[mi.id] = mi
	return &uaedge.MonitoredItemResult{
		StatusCode:              uaedge.StatusGood,
		MonitoredItemID:         mi.id,
		RevisedSamplingInterval: params.SamplingInterval,
		RevisedQueueSize:        params.QueueSize,
	}, nil
}

func (c *client) ModifySubscription(subscriptionID uint32, params uaedge.SubscriptionParameters) (uaedge.StatusCode, error) {
	c.sim.mu.Lock()
	defer c.sim.mu.Unlock()
	if _, ok := c.sim.subs[subscriptionID]; !ok {
		return uaedge.StatusBadSubscriptionIdInvalid, nil
	}
	return uaedge.StatusGood, nil
}

func (c *client) ModifyMonitoredItem(subscriptionID, monitoredItemID uint32, params uaedge.MonitoringParameters) (uaedge.StatusCode, error) {
	c.sim.mu.Lock()
	defer c.sim.mu.Unlock()
	items, ok := c.sim.subs[subscriptionID]
	if !ok {
		return uaedge.StatusBadSubscriptionIdInvalid, nil
	}
	if _, ok := items[monitoredItemID]; !ok {
		return uaedge.StatusBadMonitoredItemIdInvalid, nil
	}
	return uaedge.StatusGood, nil
}

func (c *client) SetMonitoringMode(subscriptionID uint32, monitoredItemIDs []uint32, mode uaedge.MonitoringMode) ([]uaedge.StatusCode, error) {
	c.sim.mu.Lock()
	defer c.sim.mu.Unlock()
	items, ok := c.sim.subs[subscriptionID]
	out := make([]uaedge.StatusCode, len(monitoredItemIDs))
	for i, id := range monitoredItemIDs {
		if !ok {
			out[i] = uaedge.StatusBadSubscriptionIdInvalid
			continue
		}
		if _, exists := items[id]; !exists {
			out[i] = uaedge.StatusBadMonitoredItemIdInvalid
			continue
		}
		out[i] = uaedge.StatusGood
	}
	return out, nil
}

func (c *client) SetPublishingMode(subscriptionIDs []uint32, enabled bool) ([]uaedge.StatusCode, error) {
	c.sim.mu.Lock()
	defer c.sim.mu.Unlock()
	out := make([]uaedge.StatusCode, len(subscriptionIDs))
	for i, id := range subscriptionIDs {
		if _, ok := c.sim.subs[id]; !ok {
			out[i] = uaedge.StatusBadSubscriptionIdInvalid
			continue
		}
		c.sim.enabled[id] = enabled
		out[i] = uaedge.StatusGood
	}
	return out, nil
}

func (c *client) DeleteMonitoredItem(subscriptionID, monitoredItemID uint32) (uaedge.StatusCode, error) {
	c.sim.mu.Lock()
	defer c.sim.mu.Unlock()
	items, ok := c.sim.subs[subscriptionID]
	if !ok {
		return uaedge.StatusBadSubscriptionIdInvalid, nil
	}
	if _, exists := items[monitoredItemID]; !exists {
		return uaedge.StatusBadMonitoredItemIdInvalid, nil
	}
	delete(items, monitoredItemID)
	return uaedge.StatusGood, nil
}

func (c *client) DeleteSubscription(subscriptionID uint32) (uaedge.StatusCode, error) {
	c.sim.mu.Lock()
	defer c.sim.mu.Unlock()
	if _, ok := c.sim.subs[subscriptionID]; !ok {
		return uaedge.StatusBadSubscriptionIdInvalid, nil
	}
	delete(c.sim.subs, subscriptionID)
	delete(c.sim.enabled, subscriptionID)
	return uaedge.StatusGood, nil
}

func (c *client) Republish(subscriptionID, retransmitSequenceNumber uint32) (uaedge.StatusCode, error) {
	c.sim.mu.Lock()
	defer c.sim.mu.Unlock()
	if _, ok := c.sim.subs[subscriptionID]; !ok {
		return uaedge.StatusBadSubscriptionIdInvalid, nil
	}
	return uaedge.StatusBadMessageNotAvailable, nil
}

// RunAsync delivers the queued data-change notifications to their
// handlers.
func (c *client) RunAsync(timeout time.Duration) error {
	c.sim.mu.Lock()
	batch := c.sim.pending
	c.sim.pending = nil
	c.sim.mu.Unlock()

	for _, change := range batch {
		if change.item.handler != nil {
			value := change.value
			change.item.handler(change.item.subID, change.item.id, change.item.ctx, &value)
		}
	}
	return nil
}
