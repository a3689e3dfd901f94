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

package simstack

import (
	"fmt"
	"sync"

	"github.com/edgeo-scada/uaedge"
)

// Backend hosts a server namespace inside a simulator address space.
type Backend struct {
	sim *Simulator

	mu      sync.Mutex
	running bool
	nsSeq   uint16
	nsRoots map[string]uaedge.NodeID
	paths   map[string]uaedge.NodeID
}

// NewBackend creates a server backend over the simulator.
func NewBackend(sim *Simulator) *Backend {
	return &Backend{
		sim:     sim,
		nsRoots: make(map[string]uaedge.NodeID),
		paths:   make(map[string]uaedge.NodeID),
	}
}

// Start serves the endpoint URL.
func (b *Backend) Start(endpointURL string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return fmt.Errorf("simstack: server already running")
	}
	b.sim.Serve(endpointURL)
	b.running = true
	return nil
}

// Stop stops serving. The address space stays intact.
func (b *Backend) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running {
		return fmt.Errorf("simstack: server not running")
	}
	b.running = false
	return nil
}

// CreateNamespace adds a namespace with its own root object under Root.
func (b *Backend) CreateNamespace(name, rootNodeID, rootBrowseName, rootDisplayName string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.nsRoots[name]; exists {
		return fmt.Errorf("simstack: namespace %q already exists", name)
	}
	b.nsSeq++
	id := uaedge.NewStringNodeID(b.nsSeq, rootNodeID)
	b.sim.AddObject(uaedge.NewNumericNodeID(0, uaedge.RootFolderID), id, rootBrowseName)
	b.nsRoots[name] = id
	b.paths[rootBrowseName] = id
	return nil
}

// CreateNode adds a node to the given namespace. Variable items carry a
// value; method items are registered without an implementation.
func (b *Backend) CreateNode(namespaceURI string, item *uaedge.NodeItem) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	root, ok := b.nsRoots[namespaceURI]
	if !ok {
		return fmt.Errorf("simstack: unknown namespace %q", namespaceURI)
	}

	parent := root
	if item.SourcePath != "" {
		p, exists := b.paths[item.SourcePath]
		if !exists {
			return fmt.Errorf("simstack: unknown source path %q", item.SourcePath)
		}
		parent = p
	}

	id := uaedge.NewStringNodeID(root.Namespace, item.BrowseName)
	switch item.NodeClass {
	case uaedge.NodeClassVariable:
		b.sim.AddVariable(parent, id, item.BrowseName, item.Value)
	case uaedge.NodeClassMethod:
		b.sim.AddMethod(parent, id, item.BrowseName, nil)
	default:
		b.sim.AddObject(parent, id, item.BrowseName)
	}
	b.paths[item.BrowseName] = id
	return nil
}

// AddReference links two nodes known by their browse paths.
func (b *Backend) AddReference(sourcePath, targetPath string, forward bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	source, ok := b.paths[sourcePath]
	if !ok {
		return fmt.Errorf("simstack: unknown source path %q", sourcePath)
	}
	target, ok := b.paths[targetPath]
	if !ok {
		return fmt.Errorf("simstack: unknown target path %q", targetPath)
	}
	b.sim.AddReference(source, target, forward)
	return nil
}
