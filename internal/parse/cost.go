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

var costKeys = []string{
	"gen_ai.usage.cost",
	"llm.cost",
	"ai.usage.cost",
	"cost",
}

// modelPricing is USD per million tokens, input and output priced separately.
type modelPricing struct {
	inputPerMillion  float64
	outputPerMillion float64
}

// priceTable is the static estimation fallback. Models not listed here simply
// produce no cost field; the table is intentionally small and is not a
// substitute for backend-side pricing.
var priceTable = map[string]modelPricing{
	"gpt-4o":      {inputPerMillion: 2.50, outputPerMillion: 10.00},
	"gpt-4o-mini": {inputPerMillion: 0.15, outputPerMillion: 0.60},
}

// Cost resolves the USD cost of the span's operation.
//
// An explicit cost attribute wins. Otherwise the cost is estimated from the
// static price table using reported token usage. When there is no explicit
// cost and no usage data (or no table entry), ok=false; a zero is never
// fabricated.
func Cost(span *telemetry.Span, usage Usage) (float64, bool) {
	if c, ok := floatAttr(span, costKeys...); ok {
		return c, true
	}

	if usage.PromptTokens == nil && usage.CompletionTokens == nil {
		return 0, false
	}

	model, ok := Model(span)
	if !ok {
		return 0, false
	}
	// The table is keyed by bare model id; strip any provider segment.
	if i := strings.LastIndex(model, "/"); i >= 0 {
		model = model[i+1:]
	}

	pricing, ok := priceTable[model]
	if !ok {
		return 0, false
	}

	var cost float64
	if usage.PromptTokens != nil {
		cost += float64(*usage.PromptTokens) / 1_000_000.0 * pricing.inputPerMillion
	}
	if usage.CompletionTokens != nil {
		cost += float64(*usage.CompletionTokens) / 1_000_000.0 * pricing.outputPerMillion
	}
	return cost, true
}
