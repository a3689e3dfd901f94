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
	"time"
)

// Subscription constants.
const (
	// publishTick is the cadence of the publish pump.
	publishTick = 5 * time.Millisecond

	// defaultRetransmitSequenceNumber is used for republish requests.
	defaultRetransmitSequenceNumber uint32 = 2
)

// itemContext is attached to every monitored item; the data-change
// handler uses it to find the subscription record.
type itemContext struct {
	session    *session
	valueAlias string
}

// subRecord is one monitored item of a session, keyed by value alias.
type subRecord struct {
	msg   *Message
	subID uint32
	monID uint32
	ctx   *itemContext
}

// subscriptionManager owns a session's subscriptions and its publish
// pump. The record map is guarded by mu; all stack calls against a
// session with a running pump serialize on the shared publish lock.
type subscriptionManager struct {
	s           *session
	serializeMu *sync.Mutex
	logger      *slog.Logger
	metrics     *Metrics
	sink        func(*Message) error

	mu      sync.Mutex
	records map[string]*subRecord
	count   int
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

func newSubscriptionManager(s *session, serializeMu *sync.Mutex, logger *slog.Logger, metrics *Metrics) *subscriptionManager {
	return &subscriptionManager{
		s:           s,
		serializeMu: serializeMu,
		logger:      logger,
		metrics:     metrics,
		records:     make(map[string]*subRecord),
	}
}

// active reports whether the session currently has subscriptions.
func (m *subscriptionManager) active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// subscriptionCount returns the number of live subscriptions.
func (m *subscriptionManager) subscriptionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

// withSerialize runs fn under the publish lock when the session's pump
// is running, so request traffic never races a publish round.
func (m *subscriptionManager) withSerialize(fn func() error) error {
	if m.active() {
		m.serializeMu.Lock()
		defer m.serializeMu.Unlock()
	}
	return fn()
}

// executeSub dispatches a subscription request message.
func (a *Adapter) executeSub(s *session, msg *Message) error {
	req := msg.Request1()
	if req == nil || req.SubRequest == nil {
		return fmt.Errorf("%w: subscription request missing parameters", ErrInvalidRequest)
	}
	switch req.SubRequest.Type {
	case CreateSub:
		return s.subs.create(msg)
	case ModifySub:
		return s.subs.modify(msg)
	case DeleteSub:
		return s.subs.delete(msg)
	case RepublishSub:
		return s.subs.republish(msg)
	}
	return fmt.Errorf("%w: unknown subscription request type", ErrInvalidRequest)
}

// create creates one subscription with a monitored item per requested
// node. Duplicate aliases in the request, aliases already subscribed and
// colliding subscription ids are rejected before anything is recorded. A
// per-item creation failure skips that item but not its siblings.
func (m *subscriptionManager) create(msg *Message) error {
	seen := make(map[string]struct{}, len(msg.Requests))
	for _, req := range msg.Requests {
		if req.SubRequest == nil {
			return fmt.Errorf("%w: subscription request missing parameters", ErrInvalidRequest)
		}
		alias := req.NodeInfo.ValueAlias
		if _, dup := seen[alias]; dup {
			m.logger.Warn("duplicate value alias in subscription request", "alias", alias)
			return NewServiceError("create subscription", StatusBadRequestCancelledByClient)
		}
		seen[alias] = struct{}{}
	}

	m.mu.Lock()
	for _, req := range msg.Requests {
		if _, exists := m.records[req.NodeInfo.ValueAlias]; exists {
			m.mu.Unlock()
			m.logger.Warn("value alias already subscribed", "alias", req.NodeInfo.ValueAlias)
			return NewServiceError("create subscription", StatusBadRequestCancelledByClient)
		}
	}
	m.mu.Unlock()

	subReq := msg.Request1().SubRequest
	m.metrics.ServiceCalls.Add(1)

	var created *CreateSubscriptionResult
	err := m.withSerialize(func() error {
		var cerr error
		created, cerr = m.s.client.CreateSubscription(subReq.Params)
		return cerr
	})
	if err != nil {
		return fmt.Errorf("create subscription: %w", err)
	}
	if created.ServiceResult.IsBad() {
		return NewServiceError("create subscription", created.ServiceResult)
	}

	subID := created.SubscriptionID
	m.mu.Lock()
	for _, rec := range m.records {
		if rec.subID == subID {
			m.mu.Unlock()
			return NewServiceError("create subscription", StatusBadSubscriptionIdInvalid)
		}
	}
	m.mu.Unlock()

	recorded := 0
	for i, req := range msg.Requests {
		alias := req.NodeInfo.ValueAlias
		ctx := &itemContext{session: m.s, valueAlias: alias}
		params := MonitoringParameters{
			ClientHandle:     uint32(i + 1),
			SamplingInterval: req.SubRequest.SamplingInterval,
			QueueSize:        req.SubRequest.QueueSize,
			DiscardOldest:    true,
		}
		item := ReadValueID{NodeID: req.NodeInfo.NodeID, AttributeID: AttributeValue}

		var res *MonitoredItemResult
		err := m.withSerialize(func() error {
			var cerr error
			res, cerr = m.s.client.CreateDataChangeItem(subID, item, params, ctx, m.handleDataChange)
			return cerr
		})
		if err != nil || res.StatusCode.IsBad() {
			m.logger.Warn("monitored item creation failed", "alias", alias, "err", err)
			continue
		}

		m.mu.Lock()
		if m.monitoredItemExists(subID, res.MonitoredItemID) {
			m.mu.Unlock()
			m.logger.Warn("monitored item id already recorded",
				"subscriptionID", subID, "monitoredItemID", res.MonitoredItemID)
			continue
		}
		m.records[alias] = &subRecord{
			msg:   cloneMessage(msg),
			subID: subID,
			monID: res.MonitoredItemID,
			ctx:   ctx,
		}
		m.mu.Unlock()
		recorded++
	}

	if recorded == 0 {
		return NewServiceError("create subscription", StatusBadMonitoredItemIdInvalid)
	}

	m.mu.Lock()
	first := m.count == 0
	m.count++
	if first {
		m.running = true
		m.stop = make(chan struct{})
		m.wg.Add(1)
		go m.publishPump(m.stop)
	}
	m.mu.Unlock()
	return nil
}

// monitoredItemExists reports whether (subID, monID) is already
// recorded. Caller holds mu.
func (m *subscriptionManager) monitoredItemExists(subID, monID uint32) bool {
	for _, rec := range m.records {
		if rec.subID == subID && rec.monID == monID {
			return true
		}
	}
	return false
}

// modify adjusts one subscribed node: subscription parameters, monitored
// item parameters, monitoring mode and publishing mode. Any bad service
// or per-item result aborts.
func (m *subscriptionManager) modify(msg *Message) error {
	req := msg.Request1()
	rec := m.lookup(req.NodeInfo.ValueAlias)
	if rec == nil {
		return NewServiceError("modify subscription", StatusBadNoSubscription)
	}
	subReq := req.SubRequest
	m.metrics.ServiceCalls.Add(1)

	return m.withSerialize(func() error {
		status, err := m.s.client.ModifySubscription(rec.subID, subReq.Params)
		if err != nil {
			return fmt.Errorf("modify subscription: %w", err)
		}
		if status.IsBad() {
			return NewServiceError("modify subscription", status)
		}

		params := MonitoringParameters{
			ClientHandle:     1,
			SamplingInterval: subReq.SamplingInterval,
			QueueSize:        subReq.QueueSize,
			DiscardOldest:    true,
		}
		status, err = m.s.client.ModifyMonitoredItem(rec.subID, rec.monID, params)
		if err != nil {
			return fmt.Errorf("modify monitored item: %w", err)
		}
		if status.IsBad() {
			return NewServiceError("modify monitored item", status)
		}

		modeResults, err := m.s.client.SetMonitoringMode(rec.subID, []uint32{rec.monID}, MonitoringModeReporting)
		if err != nil {
			return fmt.Errorf("set monitoring mode: %w", err)
		}
		if len(modeResults) != 1 {
			return NewServiceError("set monitoring mode", StatusBadUnexpectedError)
		}
		if modeResults[0].IsBad() {
			return NewServiceError("set monitoring mode", modeResults[0])
		}

		pubResults, err := m.s.client.SetPublishingMode([]uint32{rec.subID}, subReq.Params.PublishingEnabled)
		if err != nil {
			return fmt.Errorf("set publishing mode: %w", err)
		}
		for _, status := range pubResults {
			if status.IsBad() {
				return NewServiceError("set publishing mode", StatusBadMonitoredItemIdInvalid)
			}
		}
		return nil
	})
}

// delete removes one subscribed node. Deleting the last monitored item
// of a subscription deletes the subscription; deleting the session's
// last subscription stops and joins the publish pump.
func (m *subscriptionManager) delete(msg *Message) error {
	alias := msg.Request1().NodeInfo.ValueAlias
	rec := m.lookup(alias)
	if rec == nil {
		return NewServiceError("delete subscription", StatusBadNoSubscription)
	}
	m.metrics.ServiceCalls.Add(1)

	err := m.withSerialize(func() error {
		status, cerr := m.s.client.DeleteMonitoredItem(rec.subID, rec.monID)
		if cerr != nil {
			return fmt.Errorf("delete monitored item: %w", cerr)
		}
		if status.IsBad() {
			return NewServiceError("delete monitored item", status)
		}
		return nil
	})
	if err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.records, alias)
	lastOfSub := true
	for _, other := range m.records {
		if other.subID == rec.subID {
			lastOfSub = false
			break
		}
	}
	m.mu.Unlock()

	if !lastOfSub {
		return nil
	}

	err = m.withSerialize(func() error {
		status, cerr := m.s.client.DeleteSubscription(rec.subID)
		if cerr != nil {
			return fmt.Errorf("delete subscription: %w", cerr)
		}
		if status.IsBad() {
			return NewServiceError("delete subscription", status)
		}
		return nil
	})
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.count--
	stopPump := m.count == 0 && m.running
	if stopPump {
		m.running = false
		close(m.stop)
	}
	m.mu.Unlock()
	if stopPump {
		m.wg.Wait()
		m.logger.Debug("publish pump stopped", "session", m.s.key)
	}
	return nil
}

// republish asks the server to retransmit a missed notification. A
// BadMessageNotAvailable answer is logged but not an error.
func (m *subscriptionManager) republish(msg *Message) error {
	rec := m.lookup(msg.Request1().NodeInfo.ValueAlias)
	if rec == nil {
		return NewServiceError("republish", StatusBadNoSubscription)
	}
	m.metrics.ServiceCalls.Add(1)

	return m.withSerialize(func() error {
		status, err := m.s.client.Republish(rec.subID, defaultRetransmitSequenceNumber)
		if err != nil {
			return fmt.Errorf("republish: %w", err)
		}
		if status == StatusBadMessageNotAvailable {
			m.logger.Debug("republish: no message available", "subscriptionID", rec.subID)
			return nil
		}
		if status.IsBad() {
			return NewServiceError("republish", status)
		}
		return nil
	})
}

func (m *subscriptionManager) lookup(alias string) *subRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[alias]
}

// publishPump drives publish rounds every tick while the session has
// subscriptions. Each round runs under the publish lock; the lock is
// never held across the sleep, so requests interleave between rounds.
func (m *subscriptionManager) publishPump(stop chan struct{}) {
	defer m.wg.Done()
	m.logger.Debug("publish pump started", "session", m.s.key)
	for {
		select {
		case <-stop:
			return
		default:
		}

		m.serializeMu.Lock()
		if err := m.s.client.RunAsync(publishTick); err != nil {
			m.logger.Warn("publish round failed", "session", m.s.key, "err", err)
		}
		m.serializeMu.Unlock()
		m.metrics.PumpCycles.Add(1)

		select {
		case <-stop:
			return
		case <-time.After(publishTick):
		}
	}
}

// handleDataChange is the stack's per-item notification callback. It
// builds a report message for the subscribed alias and enqueues it.
func (m *subscriptionManager) handleDataChange(subscriptionID, monitoredItemID uint32, itemCtx interface{}, value *DataValue) {
	if value == nil || value.StatusCode.IsBad() {
		m.logger.Debug("ignoring bad data-change value",
			"subscriptionID", subscriptionID, "monitoredItemID", monitoredItemID)
		return
	}
	if value.Value == nil {
		return
	}

	ctx, ok := itemCtx.(*itemContext)
	if !ok {
		m.logger.Warn("data-change notification with unknown item context")
		return
	}
	rec := m.lookup(ctx.valueAlias)
	if rec == nil {
		m.logger.Debug("data-change for unsubscribed alias", "alias", ctx.valueAlias)
		return
	}

	decoded, err := decodeVariant(value.Value)
	if err != nil {
		m.logger.Warn("cannot decode data-change value", "alias", ctx.valueAlias, "err", err)
		return
	}

	serverTime := time.Now()
	if value.HasServerTimestamp {
		serverTime = value.ServerTimestamp
	}

	report := &Message{
		ID:         rec.msg.ID,
		Endpoint:   rec.msg.Endpoint,
		Type:       Report,
		Command:    CmdSub,
		ServerTime: serverTime,
		Responses: []*Response{{
			NodeInfo: &NodeInfo{ValueAlias: ctx.valueAlias},
			Type:     decoded.Type,
			Value:    decoded,
		}},
	}
	if m.sink == nil {
		return
	}
	if err := m.sink(report); err != nil {
		m.logger.Warn("failed to enqueue report", "alias", ctx.valueAlias, "err", err)
	}
}

// shutdown stops the pump and drains the record map. Used when the
// session is destroyed.
func (m *subscriptionManager) shutdown() {
	m.mu.Lock()
	stopPump := m.running
	if stopPump {
		m.running = false
		close(m.stop)
	}
	m.records = make(map[string]*subRecord)
	m.count = 0
	m.mu.Unlock()
	if stopPump {
		m.wg.Wait()
	}
}

// cloneMessage copies a request message so the subscription record keeps
// its own snapshot.
func cloneMessage(msg *Message) *Message {
	c := *msg
	c.Requests = make([]*Request, len(msg.Requests))
	for i, req := range msg.Requests {
		r := *req
		r.NodeInfo = cloneNodeInfo(req.NodeInfo)
		if req.SubRequest != nil {
			sr := *req.SubRequest
			r.SubRequest = &sr
		}
		c.Requests[i] = &r
	}
	return &c
}
