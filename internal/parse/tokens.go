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
	"github.com/tombee/spyglass/pkg/telemetry"
)

// Attribute alias chains for token usage, most specific convention first.
var (
	promptTokenKeys = []string{
		"gen_ai.usage.input_tokens",
		"gen_ai.usage.prompt_tokens",
		"llm.usage.input_tokens",
		"ai.usage.promptTokens",
		"input_tokens",
	}
	completionTokenKeys = []string{
		"gen_ai.usage.output_tokens",
		"gen_ai.usage.completion_tokens",
		"llm.usage.output_tokens",
		"ai.usage.completionTokens",
		"output_tokens",
	}
	totalTokenKeys = []string{
		"gen_ai.usage.total_tokens",
		"llm.usage.total_tokens",
		"ai.usage.totalTokens",
		"total_tokens",
	}
	cacheCreationTokenKeys = []string{
		"gen_ai.usage.cache_creation_tokens",
		"llm.usage.cache_creation_tokens",
		"cache_creation_tokens",
	}
	cacheReadTokenKeys = []string{
		"gen_ai.usage.cache_read_tokens",
		"llm.usage.cache_read_tokens",
		"cache_read_tokens",
	}
)

// Usage is the token consumption extracted from a span. Nil fields mean the
// instrumentation reported nothing for that counter, distinct from zero.
type Usage struct {
	PromptTokens        *int
	CompletionTokens    *int
	TotalTokens         *int
	CacheCreationTokens *int
	CacheReadTokens     *int
}

// Tokens extracts token usage from the span.
//
// The total is taken from an explicit total attribute when present; otherwise
// it is computed as prompt+completion, but only when at least one side was
// reported. A span with no usage attributes at all yields a Usage with every
// field nil, preserving the "unknown" vs "zero tokens" distinction.
func Tokens(span *telemetry.Span) Usage {
	var u Usage

	if n, ok := intAttr(span, promptTokenKeys...); ok {
		u.PromptTokens = &n
	}
	if n, ok := intAttr(span, completionTokenKeys...); ok {
		u.CompletionTokens = &n
	}
	if n, ok := intAttr(span, cacheCreationTokenKeys...); ok {
		u.CacheCreationTokens = &n
	}
	if n, ok := intAttr(span, cacheReadTokenKeys...); ok {
		u.CacheReadTokens = &n
	}

	if n, ok := intAttr(span, totalTokenKeys...); ok {
		u.TotalTokens = &n
	} else if u.PromptTokens != nil || u.CompletionTokens != nil {
		total := 0
		if u.PromptTokens != nil {
			total += *u.PromptTokens
		}
		if u.CompletionTokens != nil {
			total += *u.CompletionTokens
		}
		u.TotalTokens = &total
	}

	return u
}

// Reported reports whether any token counter was present on the span.
func (u Usage) Reported() bool {
	return u.PromptTokens != nil || u.CompletionTokens != nil || u.TotalTokens != nil
}
