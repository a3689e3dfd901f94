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
	"sync"
	"sync/atomic"
	"time"
)

// Counter is a simple atomic counter.
type Counter struct {
	value int64
}

// Add adds delta to the counter.
func (c *Counter) Add(delta int64) {
	atomic.AddInt64(&c.value, delta)
}

// Value returns the current counter value.
func (c *Counter) Value() int64 {
	return atomic.LoadInt64(&c.value)
}

// Reset resets the counter to zero.
func (c *Counter) Reset() {
	atomic.StoreInt64(&c.value, 0)
}

// LatencyHistogram tracks latency distribution.
type LatencyHistogram struct {
	mu      sync.Mutex
	buckets []int64   // count per bucket
	bounds  []float64 // upper bounds in ms
	sum     float64   // sum of all observations
	count   int64     // total count
	min     float64   // minimum observed value
	max     float64   // maximum observed value
}

// NewLatencyHistogram creates a new latency histogram with default buckets.
func NewLatencyHistogram() *LatencyHistogram {
	return &LatencyHistogram{
		buckets: make([]int64, 10),
		bounds:  []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000}, // ms
		min:     -1,
		max:     -1,
	}
}

// Observe records a latency observation.
func (h *LatencyHistogram) Observe(d time.Duration) {
	ms := float64(d.Microseconds()) / 1000.0

	h.mu.Lock()
	defer h.mu.Unlock()

	h.sum += ms
	h.count++

	if h.min < 0 || ms < h.min {
		h.min = ms
	}
	if ms > h.max {
		h.max = ms
	}

	for i, bound := range h.bounds {
		if ms <= bound {
			h.buckets[i]++
			return
		}
	}
	h.buckets[len(h.buckets)-1]++
}

// LatencyStats holds latency statistics.
type LatencyStats struct {
	Count int64
	Sum   float64
	Avg   float64
	Min   float64
	Max   float64
}

// Stats returns histogram statistics.
func (h *LatencyHistogram) Stats() LatencyStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	stats := LatencyStats{
		Count: h.count,
		Sum:   h.sum,
	}
	if h.count > 0 {
		stats.Avg = h.sum / float64(h.count)
		stats.Min = h.min
		stats.Max = h.max
	}
	return stats
}

// Metrics collects the adapter's operational counters.
type Metrics struct {
	MessagesEnqueued   Counter
	MessagesDispatched Counter
	MessagesDropped    Counter
	DispatchLatency    *LatencyHistogram

	ServiceCalls   Counter
	ServiceErrors  Counter
	ActiveSessions Counter
	PumpCycles     Counter
}

// NewMetrics creates an empty metrics set.
func NewMetrics() *Metrics {
	return &Metrics{
		DispatchLatency: NewLatencyHistogram(),
	}
}

// Collect returns a snapshot of all counters.
func (m *Metrics) Collect() map[string]interface{} {
	return map[string]interface{}{
		"messages_enqueued":   m.MessagesEnqueued.Value(),
		"messages_dispatched": m.MessagesDispatched.Value(),
		"messages_dropped":    m.MessagesDropped.Value(),
		"service_calls":       m.ServiceCalls.Value(),
		"service_errors":      m.ServiceErrors.Value(),
		"active_sessions":     m.ActiveSessions.Value(),
		"pump_cycles":         m.PumpCycles.Value(),
		"dispatch_latency_ms": m.DispatchLatency.Stats(),
	}
}
