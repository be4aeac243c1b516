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
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/tombee/spyglass/pkg/telemetry"
)

// entityPathKey carries the dotted path of enclosing entity spans through
// the context, so nested helpers inherit their position in the hierarchy.
type entityPathKey struct{}

// EntityPath returns the dotted entity path active in ctx, empty outside any
// helper scope.
func EntityPath(ctx context.Context) string {
	path, _ := ctx.Value(entityPathKey{}).(string)
	return path
}

// Workflow runs fn inside a workflow-scoped span. The span ends on every
// exit path, errors mark span status, and panics are recorded then
// re-raised.
func (c *Client) Workflow(ctx context.Context, name string, fn func(context.Context) error) error {
	return c.scoped(ctx, telemetry.KindWorkflow, telemetry.LogTypeWorkflow, name, fn)
}

// Task runs fn inside a task-scoped span.
func (c *Client) Task(ctx context.Context, name string, fn func(context.Context) error) error {
	return c.scoped(ctx, telemetry.KindTask, telemetry.LogTypeTask, name, fn)
}

// Agent runs fn inside an agent-scoped span.
func (c *Client) Agent(ctx context.Context, name string, fn func(context.Context) error) error {
	return c.scoped(ctx, telemetry.KindAgent, telemetry.LogTypeAgent, name, fn)
}

// Tool runs fn inside a tool-scoped span.
func (c *Client) Tool(ctx context.Context, name string, fn func(context.Context) error) error {
	return c.scoped(ctx, telemetry.KindTool, telemetry.LogTypeTool, name, fn)
}

func (c *Client) scoped(ctx context.Context, kind telemetry.EntityKind, logType telemetry.LogType, name string, fn func(context.Context) error) (err error) {
	path := name
	if parent := EntityPath(ctx); parent != "" {
		path = parent + "." + name
	}

	ctx, span := c.provider.Tracer().Start(ctx, name,
		oteltrace.WithAttributes(
			attribute.String(telemetry.AttrKind, string(kind)),
			attribute.String(telemetry.AttrLogType, string(logType)),
			attribute.String(telemetry.AttrEntityName, name),
			attribute.String(telemetry.AttrEntityPath, path),
			attribute.String(telemetry.AttrSDKVersion, telemetry.Version),
		),
	)
	ctx = context.WithValue(ctx, entityPathKey{}, path)

	defer func() {
		if rec := recover(); rec != nil {
			span.RecordError(fmt.Errorf("panic: %v", rec))
			span.SetStatus(codes.Error, fmt.Sprintf("panic: %v", rec))
			span.End()
			panic(rec)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}()

	return fn(ctx)
}

// Metadata attaches customer metadata to the current span. Keys land in the
// payload metadata bag under their given names.
func Metadata(ctx context.Context, kv map[string]string) {
	span := oteltrace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	attrs := make([]attribute.KeyValue, 0, len(kv))
	for k, v := range kv {
		attrs = append(attrs, attribute.String(telemetry.AttrMetadataPrefix+k, v))
	}
	span.SetAttributes(attrs...)
}
