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

import "log/slog"

// Option is a functional option for configuring the adapter.
type Option func(*adapterOptions)

type adapterOptions struct {
	logger        *slog.Logger
	queueCapacity int
	server        ServerBackend
}

func defaultAdapterOptions() *adapterOptions {
	return &adapterOptions{
		logger:        slog.Default(),
		queueCapacity: defaultQueueCapacity,
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *adapterOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithQueueCapacity sets the receive queue capacity.
func WithQueueCapacity(n int) Option {
	return func(o *adapterOptions) {
		o.queueCapacity = n
	}
}

// WithServerBackend sets the backend used to host a server namespace.
func WithServerBackend(backend ServerBackend) Option {
	return func(o *adapterOptions) {
		o.server = backend
	}
}
