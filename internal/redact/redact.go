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

// Package redact scrubs sensitive data from normalized payloads before they
// leave the process.
package redact

import (
	"encoding/json"
	"regexp"

	"github.com/tombee/spyglass/pkg/telemetry"
)

// Mode determines the level of redaction applied to payload content.
type Mode string

const (
	// ModeNone disables redaction.
	ModeNone Mode = "none"

	// ModeStandard applies pattern-based redaction for common secrets.
	ModeStandard Mode = "standard"

	// ModeStrict replaces all message content with a placeholder, keeping
	// only structure, roles and token counts.
	ModeStrict Mode = "strict"
)

const placeholder = "[REDACTED]"

// Pattern is a named redaction rule.
type Pattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement string
}

// StandardPatterns returns the default rules for common secret shapes.
func StandardPatterns() []Pattern {
	return []Pattern{
		{
			Name:        "api_key",
			Regex:       regexp.MustCompile(`(?i)(api[_-]?key|apikey)["\s:=]+([a-zA-Z0-9_\-]{16,})`),
			Replacement: "$1=" + placeholder,
		},
		{
			Name:        "bearer_token",
			Regex:       regexp.MustCompile(`(?i)(bearer\s+)([a-zA-Z0-9_\-\.]{20,})`),
			Replacement: "$1" + placeholder,
		},
		{
			Name:        "password",
			Regex:       regexp.MustCompile(`(?i)(password|passwd|pwd)["\s:=]+([^\s"]+)`),
			Replacement: "$1=" + placeholder,
		},
		{
			Name:        "jwt",
			Regex:       regexp.MustCompile(`eyJ[a-zA-Z0-9_-]*\.eyJ[a-zA-Z0-9_-]*\.[a-zA-Z0-9_-]*`),
			Replacement: "[REDACTED-JWT]",
		},
		{
			Name:        "email",
			Regex:       regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`),
			Replacement: "[REDACTED-EMAIL]",
		},
		{
			Name:        "generic_secret",
			Regex:       regexp.MustCompile(`(?i)(secret|token)["\s:=]+([a-zA-Z0-9_\-]{16,})`),
			Replacement: "$1=" + placeholder,
		},
	}
}

// Redactor applies redaction rules to payload content.
type Redactor struct {
	mode     Mode
	patterns []Pattern
}

// New creates a redactor with the standard pattern set.
func New(mode Mode) *Redactor {
	return &Redactor{mode: mode, patterns: StandardPatterns()}
}

// NewWithPatterns creates a redactor with custom patterns.
func NewWithPatterns(mode Mode, patterns []Pattern) *Redactor {
	return &Redactor{mode: mode, patterns: patterns}
}

// String redacts a single string value according to the mode.
func (r *Redactor) String(s string) string {
	switch r.mode {
	case ModeNone:
		return s
	case ModeStrict:
		if s == "" {
			return s
		}
		return placeholder
	default:
		for _, p := range r.patterns {
			s = p.Regex.ReplaceAllString(s, p.Replacement)
		}
		return s
	}
}

// Payload redacts all content-bearing fields in place. Identifiers, timing
// and token accounting are never touched.
func (r *Redactor) Payload(p *telemetry.Payload) {
	if r.mode == ModeNone || p == nil {
		return
	}

	for i := range p.PromptMessages {
		r.message(&p.PromptMessages[i])
	}
	if p.CompletionMessage != nil {
		r.message(p.CompletionMessage)
	}
	for i := range p.CompletionMessages {
		r.message(&p.CompletionMessages[i])
	}
	p.Input = r.String(p.Input)
	p.Output = r.String(p.Output)
	p.ErrorMessage = r.String(p.ErrorMessage)
	for i := range p.ToolCalls {
		p.ToolCalls[i].Function.Arguments = r.String(p.ToolCalls[i].Function.Arguments)
	}
	p.FullRequest = r.fullRequest(p.FullRequest)
}

func (r *Redactor) message(m *telemetry.Message) {
	m.Content = r.String(m.Content)
	for i := range m.ToolCalls {
		m.ToolCalls[i].Function.Arguments = r.String(m.ToolCalls[i].Function.Arguments)
	}
}

// fullRequest redacts the fallback full-request blob by scrubbing its JSON
// form. In strict mode the blob is dropped entirely, as is anything that no
// longer parses after scrubbing.
func (r *Redactor) fullRequest(v any) any {
	if v == nil || r.mode == ModeStrict {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	scrubbed := r.String(string(raw))
	var out any
	if err := json.Unmarshal([]byte(scrubbed), &out); err != nil {
		return nil
	}
	return out
}

// StripContent removes all captured content from a payload, used when
// content capture is disabled. Token counts, model, cost, timing and status
// survive so dashboards keep working.
func StripContent(p *telemetry.Payload) {
	if p == nil {
		return
	}
	p.PromptMessages = nil
	p.CompletionMessage = nil
	p.CompletionMessages = nil
	p.Input = ""
	p.Output = ""
	p.ToolCalls = nil
	p.Tools = nil
	p.ToolChoice = nil
	p.FullRequest = nil
}
