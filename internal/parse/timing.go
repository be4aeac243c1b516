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
	// Millisecond-valued TTFT attributes.
	ttftMillisKeys = []string{
		"ai.response.msToFirstChunk",
		"llm.time_to_first_token_ms",
	}
	// Second-valued TTFT attributes.
	ttftSecondsKeys = []string{
		"gen_ai.server.time_to_first_token",
	}
	statusCodeKeys = []string{
		"http.response.status_code",
		"http.status_code",
	}
)

// TimeToFirstToken extracts streaming time-to-first-token in seconds,
// normalizing millisecond-valued sources.
func TimeToFirstToken(span *telemetry.Span) (float64, bool) {
	if ms, ok := floatAttr(span, ttftMillisKeys...); ok {
		return ms / 1000.0, true
	}
	if s, ok := floatAttr(span, ttftSecondsKeys...); ok {
		return s, true
	}
	return 0, false
}

// StatusCode resolves an HTTP-like status code for the span.
//
// An explicit http status attribute wins; otherwise the span status maps to
// 200 (ok/unset) or 500 (error).
func StatusCode(span *telemetry.Span) int {
	if code, ok := intAttr(span, statusCodeKeys...); ok && code >= 100 && code < 600 {
		return code
	}
	if span.Err() {
		return 500
	}
	return 200
}

// Metadata collects the free-form metadata bag from prefixed span attributes.
// Keys are stored with the prefix stripped; recognized customer sub-keys pass
// through under their canonical names.
func Metadata(span *telemetry.Span) map[string]any {
	var meta map[string]any
	for key, value := range span.Attributes {
		if !strings.HasPrefix(key, telemetry.AttrMetadataPrefix) {
			continue
		}
		if meta == nil {
			meta = make(map[string]any)
		}
		meta[strings.TrimPrefix(key, telemetry.AttrMetadataPrefix)] = value
	}
	return meta
}
