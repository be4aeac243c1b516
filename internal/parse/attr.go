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

// Package parse extracts typed values from well-known span attribute keys.
//
// Provider instrumentation disagrees on attribute naming (gen_ai.* semantic
// conventions, llm.* keys, the ai.* keys emitted by JS-style SDK bridges), so
// every parser walks an ordered alias list and returns the first present,
// coercible value. Parsers never panic and never return an error: absent or
// malformed data yields the zero value and ok=false.
package parse

import (
	"encoding/json"
	"strconv"

	"github.com/tombee/spyglass/pkg/telemetry"
)

// intAttr returns the first alias present on the span coerced to int.
func intAttr(span *telemetry.Span, keys ...string) (int, bool) {
	for _, key := range keys {
		v, ok := span.Attributes[key]
		if !ok {
			continue
		}
		if n, ok := coerceInt(v); ok {
			return n, true
		}
	}
	return 0, false
}

// floatAttr returns the first alias present on the span coerced to float64.
func floatAttr(span *telemetry.Span, keys ...string) (float64, bool) {
	for _, key := range keys {
		v, ok := span.Attributes[key]
		if !ok {
			continue
		}
		if f, ok := coerceFloat(v); ok {
			return f, true
		}
	}
	return 0, false
}

// stringAttr returns the first alias present on the span as a non-empty string.
func stringAttr(span *telemetry.Span, keys ...string) (string, bool) {
	for _, key := range keys {
		if s, ok := span.StringAttr(key); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

// jsonAttr decodes the first alias present on the span into dst.
// The attribute may hold a JSON-encoded string or an already-decoded value
// (in which case it is round-tripped through encoding/json).
func jsonAttr(span *telemetry.Span, dst any, keys ...string) bool {
	for _, key := range keys {
		v, ok := span.Attributes[key]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case string:
			if json.Unmarshal([]byte(t), dst) == nil {
				return true
			}
		case []byte:
			if json.Unmarshal(t, dst) == nil {
				return true
			}
		default:
			raw, err := json.Marshal(t)
			if err != nil {
				continue
			}
			if json.Unmarshal(raw, dst) == nil {
				return true
			}
		}
	}
	return false
}

func coerceInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int32:
		return int(t), true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	case float32:
		return int(t), true
	case string:
		if n, err := strconv.Atoi(t); err == nil {
			return n, true
		}
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return int(f), true
		}
	}
	return 0, false
}

func coerceFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}
