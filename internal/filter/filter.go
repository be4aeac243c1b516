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

// Package filter decides which finalized spans are relevant telemetry and
// collapses wrapper/detail span pairs into one record per logical operation.
package filter

import (
	"strings"

	"github.com/tombee/spyglass/pkg/telemetry"
)

// Name prefixes identifying spans from recognized instrumentation.
var namePrefixes = []string{"ai.", "gen_ai.", "spyglass."}

// Attribute-key prefixes identifying spans from recognized instrumentation.
var attrPrefixes = []string{"gen_ai.", "llm.", "ai.", "spyglass.", "tool."}

// Relevant reports whether the span belongs to the instrumented domain.
//
// A span qualifies if it carries the SDK marker attribute, was produced under
// an SDK instrumentation scope, has a recognized name prefix, or carries any
// attribute under a recognized key prefix. Everything else is non-SDK noise.
func Relevant(span *telemetry.Span) bool {
	if span.HasAttr(telemetry.AttrSDKVersion) || span.HasAttr(telemetry.AttrKind) {
		return true
	}
	if strings.HasPrefix(span.ScopeName, telemetry.ScopeName) {
		return true
	}
	for _, prefix := range namePrefixes {
		if strings.HasPrefix(span.Name, prefix) {
			return true
		}
	}
	for key := range span.Attributes {
		for _, prefix := range attrPrefixes {
			if strings.HasPrefix(key, prefix) {
				return true
			}
		}
	}
	return false
}

// Disposition is the span-completion-time structural classification.
type Disposition int

const (
	// DispositionNoise marks a span carrying neither an explicit kind nor an
	// inherited entity path; it is dropped before reaching any exporter.
	DispositionNoise Disposition = iota

	// DispositionRoot marks a span created by an explicit workflow/task/
	// agent/tool wrapper.
	DispositionRoot

	// DispositionChild marks a span nested inside a wrapper context.
	DispositionChild
)

// Structural classifies a span's role in the trace structure.
func Structural(span *telemetry.Span) Disposition {
	if span.HasAttr(telemetry.AttrKind) {
		return DispositionRoot
	}
	if span.HasAttr(telemetry.AttrEntityPath) {
		return DispositionChild
	}
	return DispositionNoise
}
