// Copyright 2025 Tom Barlow
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

// Package instrument loads per-provider auto-instrumentation modules.
//
// Modules register declaratively; loading is best-effort with per-module
// isolation, so one broken integration never blocks the rest or aborts SDK
// startup.
package instrument

import (
	"fmt"
	"log/slog"
	"sync"

	oteltrace "go.opentelemetry.io/otel/trace"
)

// Registration declares one instrumentation module.
type Registration struct {
	// Name identifies the module in the disable list and in logs.
	Name string

	// Load activates the module against the given tracer provider.
	Load func(tp oteltrace.TracerProvider) error
}

// Registry holds declared instrumentation modules.
type Registry struct {
	mu      sync.Mutex
	entries []Registration
}

// defaultRegistry collects package-level registrations from module init
// functions.
var defaultRegistry = &Registry{}

// Register adds a module to the default registry.
func Register(reg Registration) {
	defaultRegistry.Register(reg)
}

// Default returns the process-wide registry.
func Default() *Registry {
	return defaultRegistry
}

// Register adds a module to the registry. Later registrations with a name
// already present are kept too; both load.
func (r *Registry) Register(reg Registration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, reg)
}

// Names lists registered module names in registration order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		names = append(names, e.Name)
	}
	return names
}

// LoadAll loads every registered module not in the disable list and returns
// how many loaded. Failures and panics are logged per module and never
// propagate.
func (r *Registry) LoadAll(tp oteltrace.TracerProvider, disabled []string, logger *slog.Logger) int {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("component", "instrument")

	skip := make(map[string]bool, len(disabled))
	for _, name := range disabled {
		skip[name] = true
	}

	r.mu.Lock()
	entries := make([]Registration, len(r.entries))
	copy(entries, r.entries)
	r.mu.Unlock()

	loaded := 0
	for _, entry := range entries {
		if skip[entry.Name] {
			logger.Debug("instrumentation disabled", "name", entry.Name)
			continue
		}
		if entry.Load == nil {
			continue
		}
		if err := safeLoad(entry, tp); err != nil {
			logger.Warn("instrumentation failed to load", "name", entry.Name, "error", err)
			continue
		}
		logger.Debug("instrumentation loaded", "name", entry.Name)
		loaded++
	}
	return loaded
}

func safeLoad(entry Registration, tp oteltrace.TracerProvider) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return entry.Load(tp)
}
