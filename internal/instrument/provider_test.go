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

package instrument

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/tombee/spyglass/internal/convert"
	"github.com/tombee/spyglass/internal/parse"
	"github.com/tombee/spyglass/pkg/llm"
)

type mockProvider struct {
	resp   *llm.CompletionResponse
	err    error
	chunks []llm.StreamChunk
}

func (m *mockProvider) Name() string { return "mockai" }

func (m *mockProvider) Complete(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return m.resp, m.err
}

func (m *mockProvider) Stream(context.Context, llm.CompletionRequest) (<-chan llm.StreamChunk, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make(chan llm.StreamChunk, len(m.chunks))
	for _, c := range m.chunks {
		out <- c
	}
	close(out)
	return out, nil
}

func setup(m *mockProvider) (llm.Provider, *tracetest.InMemoryExporter) {
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exp)),
	)
	return WrapProvider(m, tp), exp
}

func attrValue(span tracetest.SpanStub, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracedProvider_Complete(t *testing.T) {
	p, exp := setup(&mockProvider{
		resp: &llm.CompletionResponse{
			Model:        "gpt-4o-2024-08-06",
			Content:      "hi there",
			Usage:        llm.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
			FinishReason: "stop",
		},
	})

	resp, err := p.Complete(context.Background(), llm.CompletionRequest{
		Model:    "gpt-4o",
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hello"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hi there", resp.Content)

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	span := spans[0]

	assert.Equal(t, "gen_ai.chat", span.Name)

	v, ok := attrValue(span, "gen_ai.request.model")
	require.True(t, ok)
	assert.Equal(t, "gpt-4o", v.AsString())

	v, ok = attrValue(span, "gen_ai.response.model")
	require.True(t, ok)
	assert.Equal(t, "gpt-4o-2024-08-06", v.AsString())

	v, ok = attrValue(span, "gen_ai.usage.input_tokens")
	require.True(t, ok)
	assert.Equal(t, int64(10), v.AsInt64())

	v, ok = attrValue(span, "gen_ai.usage.output_tokens")
	require.True(t, ok)
	assert.Equal(t, int64(5), v.AsInt64())

	v, ok = attrValue(span, "gen_ai.completion")
	require.True(t, ok)
	assert.Equal(t, "hi there", v.AsString())

	v, ok = attrValue(span, "gen_ai.system")
	require.True(t, ok)
	assert.Equal(t, "mockai", v.AsString())
}

// Tools declared on the request come back out of the attribute parsers, so
// wrapped-provider spans surface the tool list on their payloads.
func TestTracedProvider_DeclaredToolsRoundTrip(t *testing.T) {
	p, exp := setup(&mockProvider{resp: &llm.CompletionResponse{Content: "ok"}})

	_, err := p.Complete(context.Background(), llm.CompletionRequest{
		Model:    "gpt-4o",
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "weather?"}},
		Tools: []llm.Tool{{
			Name:        "get_weather",
			Description: "Look up current weather",
			Parameters:  map[string]any{"type": "object"},
		}},
	})
	require.NoError(t, err)

	stubs := exp.GetSpans()
	require.Len(t, stubs, 1)

	spans := convert.FromReadOnlyBatch([]sdktrace.ReadOnlySpan{stubs[0].Snapshot()})
	require.Len(t, spans, 1)

	tools := parse.Tools(spans[0])
	require.Len(t, tools, 1)
	tool, ok := tools[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "get_weather", tool["name"])
}

func TestTracedProvider_CompleteError(t *testing.T) {
	p, exp := setup(&mockProvider{err: errors.New("rate limited")})

	_, err := p.Complete(context.Background(), llm.CompletionRequest{Model: "gpt-4o"})
	require.Error(t, err)

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "rate limited", spans[0].Status.Description)
}

func TestTracedProvider_Stream(t *testing.T) {
	p, exp := setup(&mockProvider{
		chunks: []llm.StreamChunk{
			{Content: "hel"},
			{Content: "lo"},
			{Usage: &llm.Usage{PromptTokens: 8, CompletionTokens: 2}, Done: true},
		},
	})

	ch, err := p.Stream(context.Background(), llm.CompletionRequest{Model: "gpt-4o"})
	require.NoError(t, err)

	var content string
	for chunk := range ch {
		content += chunk.Content
	}
	assert.Equal(t, "hello", content)

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	span := spans[0]

	assert.Equal(t, "gen_ai.chat.doStream", span.Name)

	v, ok := attrValue(span, "gen_ai.completion")
	require.True(t, ok)
	assert.Equal(t, "hello", v.AsString())

	v, ok = attrValue(span, "gen_ai.server.time_to_first_token")
	require.True(t, ok)
	assert.GreaterOrEqual(t, v.AsFloat64(), 0.0)

	v, ok = attrValue(span, "gen_ai.usage.input_tokens")
	require.True(t, ok)
	assert.Equal(t, int64(8), v.AsInt64())
}

func TestTracedProvider_StreamError(t *testing.T) {
	p, exp := setup(&mockProvider{err: errors.New("connection reset")})

	_, err := p.Stream(context.Background(), llm.CompletionRequest{Model: "gpt-4o"})
	require.Error(t, err)

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
}

func TestTracedProvider_Name(t *testing.T) {
	p, _ := setup(&mockProvider{})
	assert.Equal(t, "mockai", p.Name())
}
