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
	"log/slog"
	"sync"
	"sync/atomic"
)

// Configure carries the application's callbacks and discovery filter.
type Configure struct {
	OnResponse      func(*Message)
	OnBrowse        func(*Message)
	OnReport        func(*Message)
	OnError         func(*Message)
	OnStatus        func(endpoint string, status Status)
	OnEndpointFound func(*Device)

	SupportedApplicationTypes ApplicationTypeMask
}

// Adapter is the facade over the OPC UA stack: it owns the session
// registry, the receive queue and the publish serialization lock. All
// data results except those of FindServers are delivered asynchronously
// through the configured callbacks; FindServers returns its filtered
// result directly, and the other facade verbs return only the
// synchronous outcome.
type Adapter struct {
	stack   Stack
	opts    *adapterOptions
	logger  *slog.Logger
	metrics *Metrics

	serializeMu sync.Mutex
	registry    *sessionRegistry

	qmu   sync.RWMutex
	queue *receiveQueue

	cfgMu  sync.Mutex
	cfg    Configure
	cfgSet bool

	srv   serverState
	msgID atomic.Uint32
}

// New creates an adapter over the given stack.
func New(stack Stack, opts ...Option) (*Adapter, error) {
	if stack == nil {
		return nil, fmt.Errorf("%w: nil stack", ErrInvalidRequest)
	}
	options := defaultAdapterOptions()
	for _, opt := range opts {
		opt(options)
	}

	a := &Adapter{
		stack:   stack,
		opts:    options,
		logger:  options.logger,
		metrics: NewMetrics(),
	}
	a.registry = newSessionRegistry(stack, &a.serializeMu, a.logger, a.metrics)
	a.registry.onStatus = a.emitStatus
	a.registry.onEmpty = a.teardownQueue
	a.registry.sink = a.enqueueMessage
	return a, nil
}

// Configure registers the application callbacks and starts the receive
// dispatcher. It must be called before any verb.
func (a *Adapter) Configure(cfg Configure) error {
	a.cfgMu.Lock()
	defer a.cfgMu.Unlock()
	if cfg.SupportedApplicationTypes == 0 {
		cfg.SupportedApplicationTypes = ApplicationTypeMaskAll
	}
	a.cfg = cfg
	a.cfgSet = true
	a.ensureQueue()
	return nil
}

// Metrics returns the adapter's metrics set.
func (a *Adapter) Metrics() *Metrics {
	return a.metrics
}

func (a *Adapter) configured() bool {
	a.cfgMu.Lock()
	defer a.cfgMu.Unlock()
	return a.cfgSet
}

func (a *Adapter) emitStatus(endpoint string, status Status) {
	a.cfgMu.Lock()
	cb := a.cfg.OnStatus
	a.cfgMu.Unlock()
	if cb != nil {
		cb(endpoint, status)
	}
}

// ensureQueue (re)creates the receive queue. Caller holds cfgMu.
func (a *Adapter) ensureQueue() {
	a.qmu.Lock()
	defer a.qmu.Unlock()
	if a.queue != nil {
		return
	}
	a.queue = newReceiveQueue(a.opts.queueCapacity, recvCallbacks{
		onResponse: a.cfg.OnResponse,
		onBrowse:   a.cfg.OnBrowse,
		onReport:   a.cfg.OnReport,
		onError:    a.cfg.OnError,
	}, a.logger, a.metrics)
}

// teardownQueue stops the dispatcher. Called when the last session is
// disconnected.
func (a *Adapter) teardownQueue() {
	a.qmu.Lock()
	q := a.queue
	a.queue = nil
	a.qmu.Unlock()
	if q != nil {
		q.stop()
	}
}

// enqueueMessage hands a message to the current receive queue.
func (a *Adapter) enqueueMessage(msg *Message) error {
	a.qmu.RLock()
	q := a.queue
	a.qmu.RUnlock()
	if q == nil {
		return ErrQueueClosed
	}
	return q.enqueue(msg)
}

// ConnectClient opens a session to the endpoint. A session for the same
// host:port must not already exist.
func (a *Adapter) ConnectClient(endpointURL string) error {
	if !a.configured() {
		return ErrNotConfigured
	}
	if endpointURL == "" {
		return fmt.Errorf("%w: empty endpoint URL", ErrInvalidRequest)
	}
	a.cfgMu.Lock()
	a.ensureQueue()
	a.cfgMu.Unlock()
	return a.registry.connect(endpointURL)
}

// DisconnectClient closes the endpoint's session, stopping its publish
// pump and draining its subscriptions.
func (a *Adapter) DisconnectClient(endpointURL string) error {
	if !a.configured() {
		return ErrNotConfigured
	}
	return a.registry.disconnect(endpointURL)
}

// Close disconnects every session and stops the dispatcher.
func (a *Adapter) Close() {
	a.registry.closeAll()
	a.teardownQueue()
}

// ReadNode reads the value attribute of every node in the message; the
// read-sampling-interval command reads MinimumSamplingInterval instead.
func (a *Adapter) ReadNode(msg *Message) error {
	s, err := a.prepare(msg)
	if err != nil {
		return err
	}
	if msg.Command != CmdReadSamplingInterval {
		msg.Command = CmdRead
	}
	if err := a.requireNodeInfo(msg); err != nil {
		return err
	}
	return a.executeRead(s, msg)
}

// WriteNode writes the typed value of every node in the message.
func (a *Adapter) WriteNode(msg *Message) error {
	s, err := a.prepare(msg)
	if err != nil {
		return err
	}
	msg.Command = CmdWrite
	if err := a.requireNodeInfo(msg); err != nil {
		return err
	}
	for i, req := range msg.Requests {
		if req.Value == nil {
			return fmt.Errorf("%w: write request %d without value", ErrInvalidRequest, i)
		}
	}
	return a.executeWrite(s, msg)
}

// CallMethod invokes one method on one object with ordered typed input
// arguments.
func (a *Adapter) CallMethod(msg *Message) error {
	s, err := a.prepare(msg)
	if err != nil {
		return err
	}
	msg.Command = CmdMethod
	return a.executeMethod(s, msg)
}

// BrowseNode browses recursively from the message's start nodes.
func (a *Adapter) BrowseNode(msg *Message) error {
	s, err := a.prepare(msg)
	if err != nil {
		return err
	}
	msg.Command = CmdBrowse
	return a.executeBrowse(s, msg)
}

// BrowseViews browses for view nodes from the message's start nodes (the
// Root folder by default) and then browses the views it found.
func (a *Adapter) BrowseViews(msg *Message) error {
	s, err := a.prepare(msg)
	if err != nil {
		return err
	}
	msg.Command = CmdBrowseViews
	return a.executeBrowse(s, msg)
}

// BrowseNext resumes truncated browses from the message's continuation
// points.
func (a *Adapter) BrowseNext(msg *Message) error {
	s, err := a.prepare(msg)
	if err != nil {
		return err
	}
	msg.Command = CmdBrowseNext
	return a.executeBrowse(s, msg)
}

// HandleSubscription executes the subscription operation named by the
// message's sub-request: create, modify, delete or republish.
func (a *Adapter) HandleSubscription(msg *Message) error {
	s, err := a.prepare(msg)
	if err != nil {
		return err
	}
	msg.Command = CmdSub
	if err := a.requireNodeInfo(msg); err != nil {
		return err
	}
	return a.executeSub(s, msg)
}

// prepare validates the common request invariants, assigns the message
// id and resolves the session.
func (a *Adapter) prepare(msg *Message) (*session, error) {
	if !a.configured() {
		return nil, ErrNotConfigured
	}
	if msg == nil {
		return nil, fmt.Errorf("%w: nil message", ErrInvalidRequest)
	}
	if msg.Endpoint == "" {
		return nil, fmt.Errorf("%w: message without endpoint", ErrInvalidRequest)
	}
	if len(msg.Requests) == 0 {
		return nil, fmt.Errorf("%w: message without requests", ErrInvalidRequest)
	}
	if msg.ID == 0 {
		msg.ID = a.msgID.Add(1)
	}
	s := a.registry.get(msg.Endpoint)
	if s == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotConnected, msg.Endpoint)
	}
	return s, nil
}

func (a *Adapter) requireNodeInfo(msg *Message) error {
	for i, req := range msg.Requests {
		if req == nil || req.NodeInfo == nil {
			return fmt.Errorf("%w: request %d without node info", ErrInvalidRequest, i)
		}
	}
	return nil
}
