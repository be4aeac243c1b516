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

package telemetry

// LogType is the semantic classification of a span, distinct from the span's
// raw name. It drives how the ingestion backend interprets a payload.
type LogType string

const (
	// LogTypeGeneration is a model completion (text or structured output).
	LogTypeGeneration LogType = "generation"

	// LogTypeEmbedding is an embedding computation.
	LogTypeEmbedding LogType = "embedding"

	// LogTypeTool is a tool or function invocation.
	LogTypeTool LogType = "tool"

	// LogTypeAgent is an agent turn or agent-scoped operation.
	LogTypeAgent LogType = "agent"

	// LogTypeWorkflow is a top-level workflow execution.
	LogTypeWorkflow LogType = "workflow"

	// LogTypeTask is a unit of work within a workflow.
	LogTypeTask LogType = "task"

	// LogTypeHandoff is a transfer of control between agents.
	LogTypeHandoff LogType = "handoff"

	// LogTypeTranscription is a speech-to-text operation.
	LogTypeTranscription LogType = "transcription"

	// LogTypeSpeech is a text-to-speech operation.
	LogTypeSpeech LogType = "speech"

	// LogTypeUnknown is the terminal fallback when no classification rule matches.
	LogTypeUnknown LogType = "unknown"
)

// knownLogTypes is the closed set accepted from explicit override attributes.
var knownLogTypes = map[LogType]bool{
	LogTypeGeneration:    true,
	LogTypeEmbedding:     true,
	LogTypeTool:          true,
	LogTypeAgent:         true,
	LogTypeWorkflow:      true,
	LogTypeTask:          true,
	LogTypeHandoff:       true,
	LogTypeTranscription: true,
	LogTypeSpeech:        true,
	LogTypeUnknown:       true,
}

// ValidLogType reports whether s names a recognized log type.
func ValidLogType(s string) bool {
	return knownLogTypes[LogType(s)]
}
