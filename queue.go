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
	"log/slog"
	"sync"
	"time"
)

// defaultQueueCapacity bounds the number of undelivered response
// messages.
const defaultQueueCapacity = 4096

// receiveQueue is the single asynchronous boundary between the adapter
// and the application: producers enqueue response messages, one
// dispatcher goroutine drains them and invokes the matching callback.
// Messages enqueued by one goroutine are delivered in enqueue order.
type receiveQueue struct {
	ch      chan *Message
	mu      sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
	cb      recvCallbacks
	logger  *slog.Logger
	metrics *Metrics
}

// recvCallbacks holds the application's message callbacks.
type recvCallbacks struct {
	onResponse func(*Message)
	onBrowse   func(*Message)
	onReport   func(*Message)
	onError    func(*Message)
}

func newReceiveQueue(capacity int, cb recvCallbacks, logger *slog.Logger, metrics *Metrics) *receiveQueue {
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}
	q := &receiveQueue{
		ch:      make(chan *Message, capacity),
		cb:      cb,
		logger:  logger,
		metrics: metrics,
	}
	q.wg.Add(1)
	go q.dispatchLoop()
	return q
}

// enqueue hands a response message to the dispatcher. The queue takes
// ownership of the message.
func (q *receiveQueue) enqueue(msg *Message) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.ch <- msg:
		q.metrics.MessagesEnqueued.Add(1)
		return nil
	default:
		q.metrics.MessagesDropped.Add(1)
		q.logger.Warn("receive queue full, dropping message",
			"type", msg.Type.String(), "id", msg.ID)
		return ErrQueueClosed
	}
}

// stop tears the queue down: enqueue fails from then on, and stop
// returns once the dispatcher has delivered the messages already queued.
func (q *receiveQueue) stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()
	q.wg.Wait()
}

func (q *receiveQueue) dispatchLoop() {
	defer q.wg.Done()
	for msg := range q.ch {
		start := time.Now()
		q.dispatch(msg)
		q.metrics.DispatchLatency.Observe(time.Since(start))
		q.metrics.MessagesDispatched.Add(1)
	}
}

func (q *receiveQueue) dispatch(msg *Message) {
	switch msg.Type {
	case GeneralResponse:
		if q.cb.onResponse != nil {
			q.cb.onResponse(msg)
		}
	case BrowseResponse:
		if q.cb.onBrowse != nil {
			q.cb.onBrowse(msg)
		}
	case Report:
		if q.cb.onReport != nil {
			q.cb.onReport(msg)
		}
	case ErrorResponse:
		if q.cb.onError != nil {
			q.cb.onError(msg)
		}
	default:
		q.logger.Warn("unknown message type in receive queue", "type", int(msg.Type))
	}
}
