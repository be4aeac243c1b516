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

package route

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/tombee/spyglass/pkg/telemetry"
)

// predicateEnv is the expression environment a compiled predicate sees.
// Field names are the identifiers available inside the expression.
type predicateEnv struct {
	Name       string         `expr:"name"`
	TraceID    string         `expr:"trace_id"`
	SpanID     string         `expr:"span_id"`
	Scope      string         `expr:"scope"`
	DurationMS float64        `expr:"duration_ms"`
	Error      bool           `expr:"error"`
	Attributes map[string]any `expr:"attributes"`
}

var (
	programMu    sync.RWMutex
	programCache = make(map[string]*vm.Program)
)

// CompilePredicate compiles a boolean expression into a route predicate.
// Expressions see name, trace_id, span_id, scope, duration_ms, error and
// attributes, e.g.:
//
//	attributes["spyglass.log_type"] == "generation" && duration_ms > 500
//
// Compiled programs are cached per expression source. Evaluation errors at
// match time count as no-match rather than failing the pipeline.
func CompilePredicate(source string) (Predicate, error) {
	if strings.TrimSpace(source) == "" {
		return nil, fmt.Errorf("predicate: empty expression")
	}

	program, err := compiledProgram(source)
	if err != nil {
		return nil, fmt.Errorf("predicate %q: %w", source, err)
	}

	return func(span *telemetry.Span) bool {
		env := predicateEnv{
			Name:       span.Name,
			TraceID:    span.TraceID,
			SpanID:     span.SpanID,
			Scope:      span.ScopeName,
			DurationMS: float64(span.Duration()) / float64(time.Millisecond),
			Error:      span.Err(),
			Attributes: span.Attributes,
		}
		out, err := expr.Run(program, env)
		if err != nil {
			return false
		}
		matched, ok := out.(bool)
		return ok && matched
	}, nil
}

func compiledProgram(source string) (*vm.Program, error) {
	programMu.RLock()
	program, ok := programCache[source]
	programMu.RUnlock()
	if ok {
		return program, nil
	}

	program, err := expr.Compile(source,
		expr.Env(predicateEnv{}),
		expr.AsBool(),
	)
	if err != nil {
		return nil, err
	}

	programMu.Lock()
	programCache[source] = program
	programMu.Unlock()
	return program, nil
}

// MatchProcessor matches spans explicitly tagged for a named destination via
// the spyglass.processor attribute.
func MatchProcessor(name string) Predicate {
	return func(span *telemetry.Span) bool {
		v, ok := span.StringAttr(telemetry.AttrProcessor)
		return ok && v == name
	}
}

// MatchLogType matches spans carrying the given log type override.
func MatchLogType(logType telemetry.LogType) Predicate {
	return func(span *telemetry.Span) bool {
		v, ok := span.StringAttr(telemetry.AttrLogType)
		return ok && telemetry.LogType(v) == logType
	}
}

// MatchErrors matches spans that finished with an error status.
func MatchErrors() Predicate {
	return func(span *telemetry.Span) bool { return span.Err() }
}
