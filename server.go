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
	"sync"
)

// serverState tracks the hosted server lifecycle.
type serverState struct {
	mu       sync.Mutex
	running  bool
	endpoint string
}

// CreateServer starts the hosted server on the given endpoint through
// the configured backend. Starting an already running server fails.
func (a *Adapter) CreateServer(endpointURL string) error {
	if !a.configured() {
		return ErrNotConfigured
	}
	if a.opts.server == nil {
		return fmt.Errorf("%w: no server backend configured", ErrInvalidRequest)
	}

	a.srv.mu.Lock()
	defer a.srv.mu.Unlock()
	if a.srv.running {
		return ErrServerRunning
	}
	if err := a.opts.server.Start(endpointURL); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	a.srv.running = true
	a.srv.endpoint = endpointURL
	a.logger.Info("server started", "endpoint", endpointURL)
	a.emitStatus(endpointURL, StatusServerStarted)
	return nil
}

// CloseServer stops the hosted server.
func (a *Adapter) CloseServer() error {
	if !a.configured() {
		return ErrNotConfigured
	}
	if a.opts.server == nil {
		return fmt.Errorf("%w: no server backend configured", ErrInvalidRequest)
	}

	a.srv.mu.Lock()
	defer a.srv.mu.Unlock()
	if !a.srv.running {
		return ErrServerNotRunning
	}
	if err := a.opts.server.Stop(); err != nil {
		return fmt.Errorf("stop server: %w", err)
	}
	a.srv.running = false
	endpoint := a.srv.endpoint
	a.srv.endpoint = ""
	a.logger.Info("server stopped", "endpoint", endpoint)
	a.emitStatus(endpoint, StatusStopServer)
	return nil
}

// CreateNamespace adds a namespace to the hosted server.
func (a *Adapter) CreateNamespace(name, rootNodeID, rootBrowseName, rootDisplayName string) error {
	if a.opts.server == nil {
		return fmt.Errorf("%w: no server backend configured", ErrInvalidRequest)
	}
	return a.opts.server.CreateNamespace(name, rootNodeID, rootBrowseName, rootDisplayName)
}

// CreateNode adds a node to a namespace of the hosted server.
func (a *Adapter) CreateNode(namespaceURI string, item *NodeItem) error {
	if a.opts.server == nil {
		return fmt.Errorf("%w: no server backend configured", ErrInvalidRequest)
	}
	if item == nil {
		return fmt.Errorf("%w: nil node item", ErrInvalidRequest)
	}
	return a.opts.server.CreateNode(namespaceURI, item)
}

// AddReference adds a reference between two nodes of the hosted server.
func (a *Adapter) AddReference(sourcePath, targetPath string, forward bool) error {
	if a.opts.server == nil {
		return fmt.Errorf("%w: no server backend configured", ErrInvalidRequest)
	}
	return a.opts.server.AddReference(sourcePath, targetPath, forward)
}
