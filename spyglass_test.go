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
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/tombee/spyglass/pkg/telemetry"
)

// newTestClient builds a client exporting into memory, no network.
func newTestClient(t *testing.T, opts ...Option) (*Client, *tracetest.InMemoryExporter) {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	opts = append([]Option{
		WithExporter(exp),
		WithBatching(false),
		WithAPIKey("sk-test"),
	}, opts...)
	c, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, c.Shutdown(context.Background()))
	})
	return c, exp
}

func findAttr(span tracetest.SpanStub, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(WithEndpoint(""))
	assert.Error(t, err)
}

func TestNew_BadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("app_name: [unclosed\n"), 0o600))

	_, err := New(WithConfigFile(path))
	assert.Error(t, err)
}

func TestWorkflow_EmitsSpan(t *testing.T) {
	c, exp := newTestClient(t)

	err := c.Workflow(context.Background(), "checkout", func(ctx context.Context) error {
		assert.Equal(t, "checkout", EntityPath(ctx))
		return nil
	})
	require.NoError(t, err)

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	span := spans[0]

	assert.Equal(t, "checkout", span.Name)
	assert.Equal(t, codes.Ok, span.Status.Code)

	v, ok := findAttr(span, telemetry.AttrKind)
	require.True(t, ok)
	assert.Equal(t, "workflow", v.AsString())

	v, ok = findAttr(span, telemetry.AttrLogType)
	require.True(t, ok)
	assert.Equal(t, string(telemetry.LogTypeWorkflow), v.AsString())
}

func TestScoped_EntityPathNesting(t *testing.T) {
	c, exp := newTestClient(t)

	err := c.Workflow(context.Background(), "pipeline", func(ctx context.Context) error {
		return c.Task(ctx, "extract", func(ctx context.Context) error {
			return c.Tool(ctx, "fetch", func(ctx context.Context) error {
				assert.Equal(t, "pipeline.extract.fetch", EntityPath(ctx))
				return nil
			})
		})
	})
	require.NoError(t, err)

	spans := exp.GetSpans()
	require.Len(t, spans, 3)

	// Innermost ends first.
	paths := make([]string, 0, 3)
	for _, s := range spans {
		v, ok := findAttr(s, telemetry.AttrEntityPath)
		require.True(t, ok)
		paths = append(paths, v.AsString())
	}
	assert.Equal(t, []string{"pipeline.extract.fetch", "pipeline.extract", "pipeline"}, paths)
}

func TestScoped_ErrorSetsStatus(t *testing.T) {
	c, exp := newTestClient(t)

	wantErr := errors.New("step failed")
	err := c.Task(context.Background(), "flaky", func(context.Context) error {
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
}

func TestScoped_PanicPropagatesAfterEnd(t *testing.T) {
	c, exp := newTestClient(t)

	assert.Panics(t, func() {
		_ = c.Agent(context.Background(), "rogue", func(context.Context) error {
			panic("agent bug")
		})
	})

	spans := exp.GetSpans()
	require.Len(t, spans, 1, "the span must end before the panic propagates")
	assert.Equal(t, codes.Error, spans[0].Status.Code)
}

func TestMetadata_SetsPrefixedAttributes(t *testing.T) {
	c, exp := newTestClient(t)

	err := c.Workflow(context.Background(), "tagged", func(ctx context.Context) error {
		Metadata(ctx, map[string]string{"tenant": "acme"})
		return nil
	})
	require.NoError(t, err)

	spans := exp.GetSpans()
	require.Len(t, spans, 1)

	v, ok := findAttr(spans[0], telemetry.AttrMetadataPrefix+"tenant")
	require.True(t, ok)
	assert.Equal(t, "acme", v.AsString())
}

func TestWithRoute_FansOut(t *testing.T) {
	extra := tracetest.NewInMemoryExporter()
	c, def := newTestClient(t,
		WithRoute("errors", extra, WithRouteErrorsOnly()),
	)

	_ = c.Workflow(context.Background(), "fine", func(context.Context) error { return nil })
	_ = c.Workflow(context.Background(), "broken", func(context.Context) error {
		return errors.New("nope")
	})

	require.Len(t, def.GetSpans(), 2, "default route sees everything")

	got := extra.GetSpans()
	require.Len(t, got, 1, "errors route sees only the failed span")
	assert.Equal(t, "broken", got[0].Name)
}

func TestWithRoute_InvalidExpression(t *testing.T) {
	extra := tracetest.NewInMemoryExporter()
	_, err := New(
		WithExporter(tracetest.NewInMemoryExporter()),
		WithRoute("bad", extra, WithRouteExpression("name ==")),
	)
	assert.Error(t, err)
}

func TestWithStorePath_PersistsSpans(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spans.db")
	c, _ := newTestClient(t, WithStorePath(path))
	require.NotNil(t, c.Store())

	err := c.Workflow(context.Background(), "persisted", func(context.Context) error { return nil })
	require.NoError(t, err)
	require.NoError(t, c.ForceFlush(context.Background()))

	count, err := c.Store().Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestWithSelfMetrics_ExposesHandler(t *testing.T) {
	c, _ := newTestClient(t, WithSelfMetrics())
	assert.NotNil(t, c.MetricsHandler())

	c2, _ := newTestClient(t)
	assert.Nil(t, c2.MetricsHandler())
}

func TestSessions_Available(t *testing.T) {
	c, _ := newTestClient(t)
	require.NotNil(t, c.Sessions())

	c.Sessions().Prompt("sess-1", "hello")
	assert.Equal(t, 1, c.Sessions().Sessions())
}
