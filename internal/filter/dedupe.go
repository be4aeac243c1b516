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
	"sort"
	"strings"

	"github.com/tombee/spyglass/pkg/telemetry"
)

// Detail-suffixes appended by instrumentation that emits a nested
// implementation span under a generic wrapper span for one logical call.
var detailSuffixes = []string{".doGenerate", ".doStream"}

// BaseName strips any known detail suffix from a span name, yielding the
// logical operation name shared by a wrapper/detail pair.
func BaseName(name string) string {
	for _, suffix := range detailSuffixes {
		if strings.HasSuffix(name, suffix) {
			return strings.TrimSuffix(name, suffix)
		}
	}
	return name
}

// isDetail reports whether the span name still carries a detail suffix.
func isDetail(name string) bool {
	for _, suffix := range detailSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// Dedupe collapses wrapper/detail span pairs within one export batch.
//
// Spans are sorted by start time, grouped by trace id and base operation
// name, and within each group only the detail spans are kept when any are
// present, since exporting both halves would double-count usage and cost. Groups
// without a detail span are kept unmodified. The returned siblings map gives,
// for every kept span, the wrapper spans dropped on its behalf so the payload
// builder can backfill attributes from them.
func Dedupe(spans []*telemetry.Span) ([]*telemetry.Span, map[*telemetry.Span][]*telemetry.Span) {
	sorted := make([]*telemetry.Span, len(spans))
	copy(sorted, spans)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartTime.Before(sorted[j].StartTime)
	})

	type groupKey struct {
		traceID string
		base    string
	}

	groups := make(map[groupKey][]*telemetry.Span)
	order := make([]groupKey, 0, len(sorted))
	for _, span := range sorted {
		key := groupKey{span.TraceID, BaseName(span.Name)}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], span)
	}

	var kept []*telemetry.Span
	siblings := make(map[*telemetry.Span][]*telemetry.Span)

	for _, key := range order {
		group := groups[key]
		if len(group) == 1 {
			kept = append(kept, group[0])
			continue
		}

		var details, wrappers []*telemetry.Span
		for _, span := range group {
			if isDetail(span.Name) {
				details = append(details, span)
			} else {
				wrappers = append(wrappers, span)
			}
		}

		if len(details) == 0 {
			kept = append(kept, group...)
			continue
		}

		kept = append(kept, details...)
		for _, detail := range details {
			siblings[detail] = append(siblings[detail], wrappers...)
		}
	}

	return kept, siblings
}
