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

package parse

import (
	"testing"
	"time"

	"github.com/tombee/spyglass/pkg/telemetry"
)

func span(attrs map[string]any) *telemetry.Span {
	return &telemetry.Span{
		TraceID:    "trace-1",
		SpanID:     "span-1",
		Name:       "ai.generateText",
		StartTime:  time.Now().Add(-time.Second),
		EndTime:    time.Now(),
		Attributes: attrs,
	}
}

func TestTokens_TotalFromSides(t *testing.T) {
	tests := []struct {
		name     string
		attrs    map[string]any
		prompt   *int
		total    *int
		reported bool
	}{
		{
			name:     "both sides present",
			attrs:    map[string]any{"gen_ai.usage.input_tokens": 10, "gen_ai.usage.output_tokens": 5},
			prompt:   intp(10),
			total:    intp(15),
			reported: true,
		},
		{
			name:     "prompt only still yields total",
			attrs:    map[string]any{"ai.usage.promptTokens": int64(7)},
			prompt:   intp(7),
			total:    intp(7),
			reported: true,
		},
		{
			name:     "explicit total wins",
			attrs:    map[string]any{"gen_ai.usage.input_tokens": 10, "gen_ai.usage.output_tokens": 5, "gen_ai.usage.total_tokens": 99},
			prompt:   intp(10),
			total:    intp(99),
			reported: true,
		},
		{
			name:     "no usage reported at all",
			attrs:    map[string]any{},
			prompt:   nil,
			total:    nil,
			reported: false,
		},
		{
			name:     "malformed values ignored",
			attrs:    map[string]any{"gen_ai.usage.input_tokens": "not-a-number", "gen_ai.usage.output_tokens": []string{"nope"}},
			prompt:   nil,
			total:    nil,
			reported: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := Tokens(span(tt.attrs))
			checkIntp(t, "prompt", u.PromptTokens, tt.prompt)
			checkIntp(t, "total", u.TotalTokens, tt.total)
			if u.Reported() != tt.reported {
				t.Errorf("Reported() = %v, want %v", u.Reported(), tt.reported)
			}
		})
	}
}

func TestTokens_StringCoercion(t *testing.T) {
	u := Tokens(span(map[string]any{"gen_ai.usage.input_tokens": "42"}))
	if u.PromptTokens == nil || *u.PromptTokens != 42 {
		t.Fatalf("expected prompt tokens 42, got %v", u.PromptTokens)
	}
}

func TestModel_Canonicalization(t *testing.T) {
	tests := []struct {
		name  string
		attrs map[string]any
		want  string
		ok    bool
	}{
		{
			name:  "already canonical",
			attrs: map[string]any{"gen_ai.response.model": "openai/gpt-4o"},
			want:  "openai/gpt-4o",
			ok:    true,
		},
		{
			name:  "lowercased",
			attrs: map[string]any{"gen_ai.request.model": "OpenAI/GPT-4o"},
			want:  "openai/gpt-4o",
			ok:    true,
		},
		{
			name:  "bedrock anthropic rewrite",
			attrs: map[string]any{"gen_ai.request.model": "anthropic.claude-3-5-sonnet"},
			want:  "anthropic/claude-3-5-sonnet",
			ok:    true,
		},
		{
			name:  "azure gpt-35 rewrite",
			attrs: map[string]any{"llm.model": "gpt-35-turbo"},
			want:  "openai/gpt-3.5-turbo",
			ok:    true,
		},
		{
			name:  "gemini path rewrite",
			attrs: map[string]any{"ai.model.id": "models/gemini-1.5-pro"},
			want:  "google/gemini-1.5-pro",
			ok:    true,
		},
		{
			name:  "provider attribute prefixes bare id",
			attrs: map[string]any{"gen_ai.request.model": "claude-3-opus", "gen_ai.system": "anthropic"},
			want:  "anthropic/claude-3-opus",
			ok:    true,
		},
		{
			name:  "no model",
			attrs: map[string]any{},
			want:  "",
			ok:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Model(span(tt.attrs))
			if ok != tt.ok || got != tt.want {
				t.Errorf("Model() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestCost(t *testing.T) {
	t.Run("explicit attribute wins", func(t *testing.T) {
		s := span(map[string]any{"gen_ai.usage.cost": 0.25})
		cost, ok := Cost(s, Usage{})
		if !ok || cost != 0.25 {
			t.Fatalf("Cost() = (%v, %v), want (0.25, true)", cost, ok)
		}
	})

	t.Run("estimated from price table", func(t *testing.T) {
		s := span(map[string]any{"gen_ai.response.model": "openai/gpt-4o"})
		prompt, completion := 1_000_000, 1_000_000
		cost, ok := Cost(s, Usage{PromptTokens: &prompt, CompletionTokens: &completion})
		if !ok {
			t.Fatal("expected a cost estimate")
		}
		if cost != 12.50 {
			t.Errorf("cost = %v, want 12.50", cost)
		}
	})

	t.Run("unknown model without explicit cost yields nothing", func(t *testing.T) {
		s := span(map[string]any{"gen_ai.response.model": "mystery-model"})
		prompt := 100
		if _, ok := Cost(s, Usage{PromptTokens: &prompt}); ok {
			t.Fatal("expected no cost for unpriced model")
		}
	})

	t.Run("no usage and no attribute never fabricates zero", func(t *testing.T) {
		s := span(map[string]any{"gen_ai.response.model": "openai/gpt-4o"})
		if _, ok := Cost(s, Usage{}); ok {
			t.Fatal("expected no cost without usage")
		}
	})
}

func TestToolCalls(t *testing.T) {
	t.Run("batch JSON blob", func(t *testing.T) {
		s := span(map[string]any{
			"gen_ai.completion.tool_calls": `[{"id":"call_1","type":"function","function":{"name":"get_weather","arguments":"{\"city\":\"london\"}"}}]`,
		})
		calls := ToolCalls(s)
		if len(calls) != 1 {
			t.Fatalf("expected 1 call, got %d", len(calls))
		}
		if calls[0].ID != "call_1" || calls[0].Function.Name != "get_weather" {
			t.Errorf("unexpected call: %+v", calls[0])
		}
	})

	t.Run("single object with aliased id", func(t *testing.T) {
		s := span(map[string]any{
			"ai.toolCall": `{"toolCallId":"tc-9","name":"search","args":{"q":"go"}}`,
		})
		calls := ToolCalls(s)
		if len(calls) != 1 {
			t.Fatalf("expected 1 call, got %d", len(calls))
		}
		if calls[0].ID != "tc-9" {
			t.Errorf("id = %q, want tc-9", calls[0].ID)
		}
		if calls[0].Type != "function" {
			t.Errorf("type = %q, want function default", calls[0].Type)
		}
	})

	t.Run("flattened attributes", func(t *testing.T) {
		s := span(map[string]any{
			"tool.name":      "calculator",
			"tool.call_id":   "flat-1",
			"tool.arguments": `{"a":1}`,
		})
		calls := ToolCalls(s)
		if len(calls) != 1 || calls[0].Function.Name != "calculator" {
			t.Fatalf("unexpected calls: %+v", calls)
		}
	})

	t.Run("malformed blob returns nothing", func(t *testing.T) {
		s := span(map[string]any{"gen_ai.completion.tool_calls": "{broken"})
		if calls := ToolCalls(s); calls != nil {
			t.Fatalf("expected nil, got %+v", calls)
		}
	})
}

func TestPromptMessages(t *testing.T) {
	t.Run("structured messages", func(t *testing.T) {
		s := span(map[string]any{
			"gen_ai.prompt": `[{"role":"system","content":"be terse"},{"role":"user","content":"hi"}]`,
		})
		msgs := PromptMessages(s)
		if len(msgs) != 2 || msgs[1].Role != "user" {
			t.Fatalf("unexpected messages: %+v", msgs)
		}
	})

	t.Run("raw text synthesizes user message", func(t *testing.T) {
		s := span(map[string]any{"ai.prompt": "what is the capital of france"})
		msgs := PromptMessages(s)
		if len(msgs) != 1 || msgs[0].Role != "user" || msgs[0].Content != "what is the capital of france" {
			t.Fatalf("unexpected messages: %+v", msgs)
		}
	})

	t.Run("malformed JSON falls back to synthesized message", func(t *testing.T) {
		s := span(map[string]any{"gen_ai.prompt": "{not json", "ai.prompt": "fallback text"})
		msgs := PromptMessages(s)
		if len(msgs) != 1 || msgs[0].Content != "fallback text" {
			t.Fatalf("unexpected messages: %+v", msgs)
		}
	})

	t.Run("absent yields nothing", func(t *testing.T) {
		if msgs := PromptMessages(span(nil)); msgs != nil {
			t.Fatalf("expected nil, got %+v", msgs)
		}
	})
}

func TestCompletionMessages(t *testing.T) {
	t.Run("text with tool result appended", func(t *testing.T) {
		s := span(map[string]any{
			"gen_ai.completion":            "checking the weather",
			"gen_ai.completion.tool_calls": `[{"id":"call_1","function":{"name":"get_weather","arguments":"{}"}}]`,
			"ai.toolCall.result":           `{"temp":12}`,
		})
		msgs := CompletionMessages(s)
		if len(msgs) != 2 {
			t.Fatalf("expected assistant + tool message, got %+v", msgs)
		}
		if msgs[0].Role != "assistant" || len(msgs[0].ToolCalls) != 1 {
			t.Errorf("unexpected assistant message: %+v", msgs[0])
		}
		if msgs[1].Role != "tool" || msgs[1].ToolCallID != "call_1" {
			t.Errorf("unexpected tool message: %+v", msgs[1])
		}
	})

	t.Run("plain text completion", func(t *testing.T) {
		s := span(map[string]any{"ai.response.text": "paris"})
		msgs := CompletionMessages(s)
		if len(msgs) != 1 || msgs[0].Content != "paris" {
			t.Fatalf("unexpected messages: %+v", msgs)
		}
	})
}

func TestTimeToFirstToken(t *testing.T) {
	t.Run("milliseconds normalized to seconds", func(t *testing.T) {
		ttft, ok := TimeToFirstToken(span(map[string]any{"ai.response.msToFirstChunk": 250}))
		if !ok || ttft != 0.25 {
			t.Fatalf("TimeToFirstToken() = (%v, %v), want (0.25, true)", ttft, ok)
		}
	})

	t.Run("seconds passed through", func(t *testing.T) {
		ttft, ok := TimeToFirstToken(span(map[string]any{"gen_ai.server.time_to_first_token": 0.8}))
		if !ok || ttft != 0.8 {
			t.Fatalf("TimeToFirstToken() = (%v, %v), want (0.8, true)", ttft, ok)
		}
	})
}

func TestStatusCode(t *testing.T) {
	t.Run("explicit http status", func(t *testing.T) {
		if got := StatusCode(span(map[string]any{"http.response.status_code": 429})); got != 429 {
			t.Errorf("StatusCode() = %d, want 429", got)
		}
	})

	t.Run("error status maps to 500", func(t *testing.T) {
		s := span(nil)
		s.Status.Code = telemetry.StatusCodeError
		if got := StatusCode(s); got != 500 {
			t.Errorf("StatusCode() = %d, want 500", got)
		}
	})

	t.Run("default 200", func(t *testing.T) {
		if got := StatusCode(span(nil)); got != 200 {
			t.Errorf("StatusCode() = %d, want 200", got)
		}
	})
}

func TestMetadata(t *testing.T) {
	s := span(map[string]any{
		"spyglass.metadata.customer_identifier": "cust-7",
		"spyglass.metadata.plan":                "pro",
		"gen_ai.request.model":                  "gpt-4o",
	})
	md := Metadata(s)
	if len(md) != 2 || md["customer_identifier"] != "cust-7" || md["plan"] != "pro" {
		t.Fatalf("unexpected metadata: %+v", md)
	}
}

func intp(n int) *int { return &n }

func checkIntp(t *testing.T, field string, got, want *int) {
	t.Helper()
	switch {
	case got == nil && want == nil:
	case got == nil || want == nil:
		t.Errorf("%s = %v, want %v", field, fmtIntp(got), fmtIntp(want))
	case *got != *want:
		t.Errorf("%s = %d, want %d", field, *got, *want)
	}
}

func fmtIntp(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
