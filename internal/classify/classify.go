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

// Package classify decides the semantic log type of a finalized span.
//
// The decision chain is a fixed priority order: explicit application intent
// wins, then well-known span-name conventions, then best-effort inference.
// Classification never fails; the terminal fallback is LogTypeUnknown.
package classify

import (
	"strings"

	"github.com/tombee/spyglass/pkg/telemetry"
)

// Override attribute alias keys, checked first.
var overrideKeys = []string{
	telemetry.AttrLogType,
	"spyglass.type",
	"log_type",
}

// Operation-id attribute alias keys.
var operationKeys = []string{
	"gen_ai.operation.name",
	"operation.name",
	"ai.operationId",
}

// nameTable bridges upstream span-naming conventions to the internal type
// enum. Matched exactly against the span name first, then against the
// operation-id attribute.
var nameTable = map[string]telemetry.LogType{
	"ai.generateText":   telemetry.LogTypeGeneration,
	"ai.streamText":     telemetry.LogTypeGeneration,
	"ai.generateObject": telemetry.LogTypeGeneration,
	"ai.streamObject":   telemetry.LogTypeGeneration,
	"chat":              telemetry.LogTypeGeneration,
	"text_completion":   telemetry.LogTypeGeneration,
	"generate_content":  telemetry.LogTypeGeneration,
	"ai.embed":          telemetry.LogTypeEmbedding,
	"ai.embedMany":      telemetry.LogTypeEmbedding,
	"embeddings":        telemetry.LogTypeEmbedding,
	"ai.toolCall":       telemetry.LogTypeTool,
	"execute_tool":      telemetry.LogTypeTool,
	"invoke_agent":      telemetry.LogTypeAgent,
	"create_agent":      telemetry.LogTypeAgent,
}

// Detail-suffix markers emitted by instrumentation that nests an
// implementation-detail span under a generic wrapper span.
var detailSuffixes = []string{".doGenerate", ".doStream"}

// attribute presence groups for the heuristic stage, in evaluation order.
var (
	embeddingAttrs  = []string{"gen_ai.request.embedding_dimensions", "ai.embedding.dimensions", "ai.value", "ai.values"}
	toolAttrs       = []string{"ai.toolCall.name", "tool.name", "gen_ai.tool.name"}
	agentAttrs      = []string{"gen_ai.agent.name", "agent.name"}
	workflowAttrs   = []string{"workflow.name", "workflow.run_id"}
	transcriptAttrs = []string{"gen_ai.request.audio_transcript", "ai.transcript"}
	speechAttrs     = []string{"gen_ai.request.voice", "ai.speech.voice"}
)

// Classify resolves the span's log type. Pure and idempotent: the same span
// always yields the same type.
func Classify(span *telemetry.Span) telemetry.LogType {
	// 1. Explicit override. An unrecognized value falls through rather than
	// erroring, so a typo degrades to inference instead of losing the span.
	for _, key := range overrideKeys {
		if v, ok := span.StringAttr(key); ok && telemetry.ValidLogType(v) {
			return telemetry.LogType(v)
		}
	}

	// 2. Exact span-name match.
	if t, ok := nameTable[span.Name]; ok {
		return t
	}

	// 3. Exact operation-id match.
	if op, ok := operationAttr(span); ok {
		if t, ok := nameTable[op]; ok {
			return t
		}
	}

	// 4. Attribute and substring heuristics, fixed order.
	name := strings.ToLower(span.Name)
	op, _ := operationAttr(span)
	op = strings.ToLower(op)

	switch {
	case hasAny(span, embeddingAttrs) || containsEither(name, op, "embed"):
		return telemetry.LogTypeEmbedding
	case hasAny(span, toolAttrs) || containsEither(name, op, "tool"):
		return telemetry.LogTypeTool
	case hasAny(span, agentAttrs) || containsEither(name, op, "agent"):
		return telemetry.LogTypeAgent
	case hasAny(span, workflowAttrs) || containsEither(name, op, "workflow"):
		return telemetry.LogTypeWorkflow
	case hasAny(span, transcriptAttrs) || containsEither(name, op, "transcri"):
		return telemetry.LogTypeTranscription
	case hasAny(span, speechAttrs) || containsEither(name, op, "speech"):
		return telemetry.LogTypeSpeech
	}

	// 5. Detail-suffix marker means a model call even when nothing else
	// identified it.
	for _, suffix := range detailSuffixes {
		if strings.Contains(span.Name, suffix) {
			return telemetry.LogTypeGeneration
		}
	}

	// 6. Terminal fallback.
	return telemetry.LogTypeUnknown
}

func operationAttr(span *telemetry.Span) (string, bool) {
	for _, key := range operationKeys {
		if v, ok := span.StringAttr(key); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

func hasAny(span *telemetry.Span, keys []string) bool {
	for _, key := range keys {
		if span.HasAttr(key) {
			return true
		}
	}
	return false
}

func containsEither(name, op, substr string) bool {
	return strings.Contains(name, substr) || strings.Contains(op, substr)
}
