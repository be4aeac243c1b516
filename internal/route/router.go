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

// Package route fans finalized spans out to multiple destinations.
//
// The Router is a span processor that replaces single-exporter tracing: each
// registered route pairs a destination processor with an optional predicate,
// and every finished span is forwarded to every route whose predicate
// matches. The implicit default route has no predicate and therefore receives
// every span, which is the backward-compatibility guarantee callers rely on.
package route

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/tombee/spyglass/internal/convert"
	"github.com/tombee/spyglass/internal/filter"
	"github.com/tombee/spyglass/pkg/telemetry"
)

// DefaultRouteName is the name of the implicit always-on route.
const DefaultRouteName = "default"

// Predicate decides whether a route receives a finalized span.
type Predicate func(*telemetry.Span) bool

// Route is a named destination with an optional predicate and priority.
type Route struct {
	// Name identifies the route in logs and configuration.
	Name string

	// Processor is the destination span processor (typically a batch
	// processor wrapping an exporter).
	Processor sdktrace.SpanProcessor

	// Predicate gates delivery; nil means always match.
	Predicate Predicate

	// Priority orders evaluation; higher runs first. Ties keep
	// registration order.
	Priority int
}

// Router is an sdktrace.SpanProcessor fanning spans out to routes.
type Router struct {
	logger *slog.Logger

	mu           sync.RWMutex
	defaultRoute Route
	routes       []Route
}

var _ sdktrace.SpanProcessor = (*Router)(nil)

// NewRouter creates a router with the given default destination.
// The default route exists from construction and cannot be removed.
func NewRouter(defaultProcessor sdktrace.SpanProcessor, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Router{
		logger: logger.With("component", "router"),
		defaultRoute: Route{
			Name:      DefaultRouteName,
			Processor: defaultProcessor,
		},
	}
}

// AddRoute registers a named destination. Registration is append-only; there
// is no removal API. Intended to be called during setup, not from hot paths.
func (r *Router) AddRoute(route Route) error {
	if route.Name == "" {
		return errors.New("route: name is required")
	}
	if route.Name == DefaultRouteName {
		return fmt.Errorf("route: %q is reserved", DefaultRouteName)
	}
	if route.Processor == nil {
		return fmt.Errorf("route %q: processor is required", route.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.routes {
		if existing.Name == route.Name {
			return fmt.Errorf("route %q: already registered", route.Name)
		}
	}
	r.routes = append(r.routes, route)
	sort.SliceStable(r.routes, func(i, j int) bool {
		return r.routes[i].Priority > r.routes[j].Priority
	})

	r.logger.Debug("route registered", "route", route.Name, "priority", route.Priority)
	return nil
}

// RouteNames returns the registered route names including the default.
func (r *Router) RouteNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := []string{r.defaultRoute.Name}
	for _, route := range r.routes {
		names = append(names, route.Name)
	}
	return names
}

// OnStart forwards span starts to every destination.
func (r *Router) OnStart(parent context.Context, s sdktrace.ReadWriteSpan) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	r.defaultRoute.Processor.OnStart(parent, s)
	for _, route := range r.routes {
		route.Processor.OnStart(parent, s)
	}
}

// OnEnd evaluates every route's predicate against the finished span and
// forwards it to each match. The default route always matches. Spans not
// recognizable as SDK telemetry are dropped before reaching any destination.
// Each forward is independent: one destination's failure cannot affect the
// others, as destinations only enqueue here and fail (if at all) at export.
func (r *Router) OnEnd(s sdktrace.ReadOnlySpan) {
	span := convert.FromReadOnly(s)

	if !filter.Relevant(span) {
		r.logger.Log(context.Background(), slog.Level(-8), "dropping non-SDK span",
			"span_name", span.Name, "trace_id", span.TraceID)
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	r.defaultRoute.Processor.OnEnd(s)

	for _, route := range r.routes {
		if route.Predicate != nil && !safeMatch(route, span, r.logger) {
			continue
		}
		route.Processor.OnEnd(s)
	}
}

// safeMatch evaluates a predicate, treating a panic as no-match. A broken
// user predicate must not take the export path down with it.
func safeMatch(route Route, span *telemetry.Span, logger *slog.Logger) (matched bool) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Warn("route predicate panicked", "route", route.Name, "panic", rec)
			matched = false
		}
	}()
	return route.Predicate(span)
}

// ForceFlush drains every destination synchronously. Failures are collected,
// not short-circuited, so one destination cannot block another's flush.
func (r *Router) ForceFlush(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []error
	if err := r.defaultRoute.Processor.ForceFlush(ctx); err != nil {
		errs = append(errs, fmt.Errorf("route %q: %w", r.defaultRoute.Name, err))
	}
	for _, route := range r.routes {
		if err := route.Processor.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("route %q: %w", route.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Shutdown flushes and releases every destination.
func (r *Router) Shutdown(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []error
	if err := r.defaultRoute.Processor.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("route %q: %w", r.defaultRoute.Name, err))
	}
	for _, route := range r.routes {
		if err := route.Processor.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("route %q: %w", route.Name, err))
		}
	}
	return errors.Join(errs...)
}
