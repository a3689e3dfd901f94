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
)

// session is one live stack client, keyed by the canonical host:port of
// its endpoint URL. The subscription manager shares the client handle;
// its publish pump never outlives the session.
type session struct {
	key      string
	endpoint string
	client   Client
	subs     *subscriptionManager
}

// sessionRegistry owns the set of live sessions. The registry map is
// guarded by its own mutex; stack calls against sessions with
// subscriptions additionally serialize on the adapter-wide publish lock.
type sessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*session
	count    int

	stack       Stack
	serializeMu *sync.Mutex
	logger      *slog.Logger
	metrics     *Metrics

	onStatus func(endpoint string, status Status)
	onEmpty  func()
	sink     func(*Message) error
}

func newSessionRegistry(stack Stack, serializeMu *sync.Mutex, logger *slog.Logger, metrics *Metrics) *sessionRegistry {
	return &sessionRegistry{
		sessions:    make(map[string]*session),
		stack:       stack,
		serializeMu: serializeMu,
		logger:      logger,
		metrics:     metrics,
	}
}

// sessionKey normalizes an endpoint URL to its canonical host:port pair.
// Two URLs with the same host:port address the same session. No default
// port is appended here; port resolution belongs to the stack's parser.
func (r *sessionRegistry) sessionKey(endpointURL string) (string, error) {
	host, port, _, err := r.stack.ParseEndpointURL(endpointURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return fmt.Sprintf("%s:%d", host, port), nil
}

// connect creates a new session for the endpoint. A second connect for
// the same host:port fails without touching the network.
func (r *sessionRegistry) connect(endpointURL string) error {
	key, err := r.sessionKey(endpointURL)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if _, exists := r.sessions[key]; exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyConnected, key)
	}
	r.mu.Unlock()

	client, err := r.stack.NewClient()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}
	if err := client.Connect(endpointURL); err != nil {
		client.Close()
		return fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}

	s := &session{
		key:      key,
		endpoint: endpointURL,
		client:   client,
	}
	s.subs = newSubscriptionManager(s, r.serializeMu, r.logger, r.metrics)
	s.subs.sink = r.sink

	r.mu.Lock()
	if _, exists := r.sessions[key]; exists {
		r.mu.Unlock()
		client.Close()
		return fmt.Errorf("%w: %s", ErrAlreadyConnected, key)
	}
	r.sessions[key] = s
	r.count++
	r.mu.Unlock()

	r.metrics.ActiveSessions.Add(1)
	r.logger.Info("client session started", "endpoint", endpointURL, "key", key)
	if r.onStatus != nil {
		r.onStatus(endpointURL, StatusClientStarted)
	}
	return nil
}

// get resolves the session for an endpoint URL, or nil.
func (r *sessionRegistry) get(endpointURL string) *session {
	key, err := r.sessionKey(endpointURL)
	if err != nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[key]
}

// disconnect tears down the endpoint's session: the publish pump is
// stopped and joined, the subscription map drained and the stack client
// closed. When the last session goes away the registry reports empty so
// the receive queue can be torn down.
func (r *sessionRegistry) disconnect(endpointURL string) error {
	key, err := r.sessionKey(endpointURL)
	if err != nil {
		return err
	}

	r.mu.Lock()
	s, exists := r.sessions[key]
	if !exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotConnected, key)
	}
	delete(r.sessions, key)
	r.count--
	empty := r.count == 0
	r.mu.Unlock()

	s.subs.shutdown()
	s.client.Close()
	r.metrics.ActiveSessions.Add(-1)
	r.logger.Info("client session stopped", "endpoint", endpointURL, "key", key)
	if r.onStatus != nil {
		r.onStatus(endpointURL, StatusStopClient)
	}
	if empty && r.onEmpty != nil {
		r.onEmpty()
	}
	return nil
}

// closeAll disconnects every session. Used on adapter shutdown.
func (r *sessionRegistry) closeAll() {
	r.mu.Lock()
	all := make([]*session, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, s)
	}
	r.sessions = make(map[string]*session)
	r.count = 0
	r.mu.Unlock()

	for _, s := range all {
		s.subs.shutdown()
		s.client.Close()
		r.metrics.ActiveSessions.Add(-1)
		if r.onStatus != nil {
			r.onStatus(s.endpoint, StatusStopClient)
		}
	}
	if len(all) > 0 && r.onEmpty != nil {
		r.onEmpty()
	}
}
