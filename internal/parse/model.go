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
	"strings"

	"github.com/tombee/spyglass/pkg/telemetry"
)

var (
	modelKeys = []string{
		"gen_ai.response.model",
		"gen_ai.request.model",
		"llm.model",
		"ai.model.id",
		"model",
	}
	providerKeys = []string{
		"gen_ai.system",
		"llm.provider",
		"ai.model.provider",
	}
)

// modelRewrites maps known raw model ids to their canonical provider/model
// form. Checked in order before any provider-prefixing fallback. Substring
// match on the lowercased id.
var modelRewrites = []struct {
	match     string
	canonical func(id string) string
}{
	// Bedrock-hosted Anthropic ids carry a region/version wrapper.
	{"anthropic.claude", func(id string) string {
		return "anthropic/" + strings.TrimPrefix(id, "anthropic.")
	}},
	// Azure deployments report the bare OpenAI id.
	{"gpt-35-turbo", func(string) string { return "openai/gpt-3.5-turbo" }},
	// Vertex publishes Gemini ids under a models/ path.
	{"models/gemini", func(id string) string {
		return "google/" + strings.TrimPrefix(id, "models/")
	}},
}

// providerSegments recognized as embedded providers ("openai/gpt-4o").
var knownProviderPrefixes = []string{
	"openai/", "anthropic/", "google/", "meta/", "mistral/", "cohere/", "groq/",
}

// Model resolves the canonical model identity from the span.
//
// The raw id is lowercased, then the special-case rewrite list is applied,
// then, if the id carries no embedded provider segment, a separate provider
// attribute is consulted to produce the "provider/model" form. A span without
// any model attribute yields ok=false.
func Model(span *telemetry.Span) (string, bool) {
	raw, ok := stringAttr(span, modelKeys...)
	if !ok {
		return "", false
	}
	id := strings.ToLower(strings.TrimSpace(raw))

	for _, rw := range modelRewrites {
		if strings.Contains(id, rw.match) {
			return rw.canonical(id), true
		}
	}

	for _, prefix := range knownProviderPrefixes {
		if strings.HasPrefix(id, prefix) {
			return id, true
		}
	}

	if provider, ok := stringAttr(span, providerKeys...); ok {
		provider = strings.ToLower(strings.TrimSpace(provider))
		// Instrumentation sometimes reports the vendor SDK rather than the
		// platform ("openai_chat", "azure_openai"); keep the leading segment.
		if i := strings.IndexAny(provider, "._"); i > 0 {
			provider = provider[:i]
		}
		if provider != "" && !strings.HasPrefix(id, provider+"/") {
			return provider + "/" + id, true
		}
	}

	return id, true
}
