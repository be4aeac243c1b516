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

package filter

import (
	"testing"
	"time"

	"github.com/tombee/spyglass/pkg/telemetry"
)

func TestRelevant(t *testing.T) {
	tests := []struct {
		name string
		span *telemetry.Span
		want bool
	}{
		{
			name: "sdk marker attribute",
			span: &telemetry.Span{Name: "anything", Attributes: map[string]any{telemetry.AttrSDKVersion: "0.1.0"}},
			want: true,
		},
		{
			name: "explicit kind attribute",
			span: &telemetry.Span{Name: "checkout", Attributes: map[string]any{telemetry.AttrKind: "workflow"}},
			want: true,
		},
		{
			name: "sdk instrumentation scope",
			span: &telemetry.Span{Name: "anything", ScopeName: telemetry.ScopeName},
			want: true,
		},
		{
			name: "recognized name prefix",
			span: &telemetry.Span{Name: "ai.generateText"},
			want: true,
		},
		{
			name: "recognized attribute prefix",
			span: &telemetry.Span{Name: "chat", Attributes: map[string]any{"gen_ai.request.model": "gpt-4o"}},
			want: true,
		},
		{
			name: "tool attribute prefix",
			span: &telemetry.Span{Name: "call", Attributes: map[string]any{"tool.name": "search"}},
			want: true,
		},
		{
			name: "unrelated span",
			span: &telemetry.Span{Name: "database.query", Attributes: map[string]any{"db.system": "postgres"}},
			want: false,
		},
		{
			name: "empty span",
			span: &telemetry.Span{},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Relevant(tt.span); got != tt.want {
				t.Errorf("Relevant() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStructural(t *testing.T) {
	tests := []struct {
		name string
		span *telemetry.Span
		want Disposition
	}{
		{
			name: "explicit wrapper",
			span: &telemetry.Span{Attributes: map[string]any{telemetry.AttrKind: "task"}},
			want: DispositionRoot,
		},
		{
			name: "nested under a wrapper",
			span: &telemetry.Span{Attributes: map[string]any{telemetry.AttrEntityPath: "pipeline.step"}},
			want: DispositionChild,
		},
		{
			name: "no structural markers",
			span: &telemetry.Span{Attributes: map[string]any{"gen_ai.system": "openai"}},
			want: DispositionNoise,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Structural(tt.span); got != tt.want {
				t.Errorf("Structural() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBaseName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ai.generateText.doGenerate", "ai.generateText"},
		{"ai.streamText.doStream", "ai.streamText"},
		{"ai.generateText", "ai.generateText"},
		{"doGenerate", "doGenerate"},
	}
	for _, tt := range tests {
		if got := BaseName(tt.in); got != tt.want {
			t.Errorf("BaseName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func namedSpan(trace, name string, offset time.Duration) *telemetry.Span {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).Add(offset)
	return &telemetry.Span{
		TraceID:   trace,
		SpanID:    trace + "/" + name,
		Name:      name,
		StartTime: start,
		EndTime:   start.Add(time.Second),
	}
}

func TestDedupe_WrapperDetailPair(t *testing.T) {
	wrapper := namedSpan("t1", "ai.generateText", 0)
	detail := namedSpan("t1", "ai.generateText.doGenerate", 10*time.Millisecond)

	kept, siblings := Dedupe([]*telemetry.Span{wrapper, detail})

	if len(kept) != 1 {
		t.Fatalf("kept %d spans, want 1", len(kept))
	}
	if kept[0] != detail {
		t.Errorf("kept %q, want the detail span", kept[0].Name)
	}
	if sibs := siblings[detail]; len(sibs) != 1 || sibs[0] != wrapper {
		t.Errorf("siblings[detail] = %v, want the wrapper span", sibs)
	}
}

func TestDedupe_UnpairedSpansUntouched(t *testing.T) {
	a := namedSpan("t1", "ai.generateText", 0)
	b := namedSpan("t1", "ai.embed", 5*time.Millisecond)
	c := namedSpan("t2", "ai.streamText.doStream", 0)

	kept, siblings := Dedupe([]*telemetry.Span{a, b, c})

	if len(kept) != 3 {
		t.Fatalf("kept %d spans, want 3", len(kept))
	}
	if len(siblings) != 0 {
		t.Errorf("siblings = %v, want empty", siblings)
	}
}

// Pairing is scoped by trace: a wrapper in one trace never collapses into a
// detail span from another.
func TestDedupe_TraceScoped(t *testing.T) {
	wrapper := namedSpan("t1", "ai.generateText", 0)
	detail := namedSpan("t2", "ai.generateText.doGenerate", 0)

	kept, _ := Dedupe([]*telemetry.Span{wrapper, detail})

	if len(kept) != 2 {
		t.Fatalf("kept %d spans, want 2", len(kept))
	}
}

func TestDedupe_MultipleDetailsShareWrapper(t *testing.T) {
	wrapper := namedSpan("t1", "ai.streamText", 0)
	d1 := namedSpan("t1", "ai.streamText.doStream", 10*time.Millisecond)
	d2 := namedSpan("t1", "ai.streamText.doStream", 20*time.Millisecond)
	d2.SpanID = "t1/second"

	kept, siblings := Dedupe([]*telemetry.Span{d2, wrapper, d1})

	if len(kept) != 2 {
		t.Fatalf("kept %d spans, want 2", len(kept))
	}
	// Start-time order survives the grouping.
	if kept[0] != d1 || kept[1] != d2 {
		t.Errorf("kept order = [%q %q], want details in start order", kept[0].SpanID, kept[1].SpanID)
	}
	for _, d := range []*telemetry.Span{d1, d2} {
		if sibs := siblings[d]; len(sibs) != 1 || sibs[0] != wrapper {
			t.Errorf("siblings[%q] = %v, want the wrapper", d.SpanID, sibs)
		}
	}
}

func TestDedupe_Empty(t *testing.T) {
	kept, siblings := Dedupe(nil)
	if len(kept) != 0 || len(siblings) != 0 {
		t.Errorf("Dedupe(nil) = %v, %v; want empty", kept, siblings)
	}
}
