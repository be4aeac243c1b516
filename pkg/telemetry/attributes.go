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

// Attribute keys owned by the Spyglass SDK. Keys from upstream instrumentation
// conventions (gen_ai.*, llm.*, ai.*) are recognized by the parsers but not
// redeclared here.
const (
	// AttrLogType explicitly overrides the classified log type.
	AttrLogType = "spyglass.log_type"

	// AttrKind marks a span created by an explicit workflow/task/agent/tool
	// wrapper. Spans carrying it are treated as trace-structural roots.
	AttrKind = "spyglass.kind"

	// AttrEntityPath is the dot-joined path of enclosing wrapper names,
	// inherited by child spans for structural classification.
	AttrEntityPath = "spyglass.entity.path"

	// AttrEntityName is the wrapper name of the nearest enclosing entity.
	AttrEntityName = "spyglass.entity.name"

	// AttrSDKVersion marks a span as produced by this SDK.
	AttrSDKVersion = "spyglass.sdk.version"

	// AttrProcessor names the route a span asks to be fanned out to, in
	// addition to the default route.
	AttrProcessor = "spyglass.processor"

	// AttrMetadataPrefix prefixes free-form metadata attributes that are
	// copied into the payload metadata bag with the prefix stripped.
	AttrMetadataPrefix = "spyglass.metadata."
)

// ScopeName is the instrumentation scope used by the SDK's own tracers, and
// the scope-name prefix the span filter recognizes as SDK-originated.
const ScopeName = "spyglass"

// Version is the SDK version recorded on every root span and sent in the
// User-Agent of delivery requests.
const Version = "0.1.0"

// EntityKind is the value set of AttrKind.
type EntityKind string

const (
	KindWorkflow EntityKind = "workflow"
	KindTask     EntityKind = "task"
	KindAgent    EntityKind = "agent"
	KindTool     EntityKind = "tool"
)
