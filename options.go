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

package spyglass

import (
	"log/slog"
	"net/http"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/tombee/spyglass/internal/config"
	"github.com/tombee/spyglass/internal/route"
	"github.com/tombee/spyglass/pkg/telemetry"
)

// Redaction selects how much payload content is scrubbed before export.
type Redaction string

const (
	// RedactionNone ships content as captured.
	RedactionNone Redaction = "none"

	// RedactionStandard scrubs common secret shapes (API keys, bearer
	// tokens, passwords, emails) from content fields.
	RedactionStandard Redaction = "standard"

	// RedactionStrict replaces all content with placeholders, keeping only
	// structure and accounting.
	RedactionStrict Redaction = "strict"
)

// settings accumulates option values before assembly.
type settings struct {
	cfg         config.Config
	cfgErr      error
	logger      *slog.Logger
	httpClient  *http.Client
	exporter    sdktrace.SpanExporter
	routes      []routeSpec
	redaction   Redaction
	selfMetrics bool
}

type routeSpec struct {
	name       string
	exporter   sdktrace.SpanExporter
	expression string
	predicate  route.Predicate
	priority   int
}

func newSettings() *settings {
	return &settings{
		cfg:       config.FromEnv(),
		redaction: RedactionNone,
	}
}

// Option configures the client at construction.
type Option func(*settings)

// WithAPIKey sets the ingestion API key, overriding the environment.
func WithAPIKey(key string) Option {
	return func(s *settings) { s.cfg.APIKey = key }
}

// WithEndpoint sets the ingestion URL, overriding the environment.
func WithEndpoint(url string) Option {
	return func(s *settings) { s.cfg.Endpoint = url }
}

// WithAppName names the application in exported traces.
func WithAppName(name string) Option {
	return func(s *settings) { s.cfg.AppName = name }
}

// WithConfigFile loads YAML configuration from path. Environment variables
// still override file values; later options override both.
func WithConfigFile(path string) Option {
	return func(s *settings) {
		cfg, err := config.Load(path)
		if err != nil {
			s.cfgErr = err
			return
		}
		s.cfg = cfg
	}
}

// WithBatching toggles span batching. Disabled, every span exports as it
// ends, which is useful in tests and short-lived processes.
func WithBatching(enabled bool) Option {
	return func(s *settings) { s.cfg.Batch = enabled }
}

// WithLogger supplies the SDK's internal logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithLogLevel sets SDK log verbosity (trace, debug, info, warn, error).
func WithLogLevel(level string) Option {
	return func(s *settings) { s.cfg.LogLevel = level }
}

// WithContentCapture toggles prompt/completion content export. Disabled,
// usage, cost and timing still flow but content never leaves the process.
func WithContentCapture(enabled bool) Option {
	return func(s *settings) { s.cfg.CaptureContent = enabled }
}

// WithRedaction sets the content redaction level.
func WithRedaction(mode Redaction) Option {
	return func(s *settings) { s.redaction = mode }
}

// WithHTTPClient overrides the delivery HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(s *settings) { s.httpClient = client }
}

// WithExporter replaces the default ingest destination entirely. The
// exporter receives raw spans; payload normalization is bypassed. Intended
// for tests and custom sinks.
func WithExporter(exporter sdktrace.SpanExporter) Option {
	return func(s *settings) { s.exporter = exporter }
}

// WithStorePath enables the local SQLite payload store as an additional
// destination.
func WithStorePath(path string) Option {
	return func(s *settings) { s.cfg.StorePath = path }
}

// WithSampling samples traces at rate, always keeping error traces when
// alwaysSampleErrors is set.
func WithSampling(rate float64, alwaysSampleErrors bool) Option {
	return func(s *settings) {
		s.cfg.Sampling = config.SamplingConfig{
			Enabled:            true,
			Rate:               rate,
			AlwaysSampleErrors: alwaysSampleErrors,
		}
	}
}

// WithDisabledInstrumentations skips the named auto-instrumentation modules.
func WithDisabledInstrumentations(names ...string) Option {
	return func(s *settings) {
		s.cfg.DisabledInstrumentations = append(s.cfg.DisabledInstrumentations, names...)
	}
}

// WithSelfMetrics enables the SDK's Prometheus operational metrics, exposed
// through Client.MetricsHandler.
func WithSelfMetrics() Option {
	return func(s *settings) { s.selfMetrics = true }
}

// RouteOption refines a route added with WithRoute.
type RouteOption func(*routeSpec)

// WithRouteExpression gates the route with a compiled predicate expression,
// e.g. `attributes["spyglass.log_type"] == "generation"`.
func WithRouteExpression(expr string) RouteOption {
	return func(r *routeSpec) { r.expression = expr }
}

// WithRoutePriority orders predicate evaluation; higher runs first.
func WithRoutePriority(priority int) RouteOption {
	return func(r *routeSpec) { r.priority = priority }
}

// WithRouteErrorsOnly delivers only error spans to the route.
func WithRouteErrorsOnly() RouteOption {
	return func(r *routeSpec) { r.predicate = route.MatchErrors() }
}

// WithRouteLogType delivers only spans of the given log type to the route.
func WithRouteLogType(logType string) RouteOption {
	return func(r *routeSpec) { r.predicate = route.MatchLogType(telemetry.LogType(logType)) }
}

// WithRoute adds a named destination alongside the default route. Without a
// predicate option the route receives every span.
func WithRoute(name string, exporter sdktrace.SpanExporter, opts ...RouteOption) Option {
	return func(s *settings) {
		spec := routeSpec{name: name, exporter: exporter}
		for _, opt := range opts {
			opt(&spec)
		}
		s.routes = append(s.routes, spec)
	}
}
