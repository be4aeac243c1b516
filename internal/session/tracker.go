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

// Package session builds telemetry for long-running agent sessions driven by
// hook events rather than live spans.
//
// External agent runtimes report prompts, tool starts/finishes and session
// stops through out-of-band hooks. The tracker turns those events into
// payloads whose trace id is the session id itself, so every record of one
// conversation lands in one trace regardless of process boundaries.
package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tombee/spyglass/pkg/telemetry"
)

// traceNameLimit caps the prompt-derived trace name length.
const traceNameLimit = 100

// structuralModel is the model field for records with no model of their own.
const structuralModel = "unknown"

// Sink delivers finished payloads; satisfied by the ingest exporter.
type Sink interface {
	Deliver(ctx context.Context, payloads []*telemetry.Payload) error
}

// PendingTool is a tool invocation between its started and finished events.
type PendingTool struct {
	SpanID    string
	Name      string
	Input     string
	StartTime time.Time
}

// State tracks one agent session. Sessions are created lazily on the first
// event naming an unseen session id and live until the process exits.
type State struct {
	SessionID   string
	TraceName   string
	StartTime   time.Time
	RootSpanID  string
	RootEmitted bool

	pendingTools map[string]*PendingTool
}

// Tracker maintains session state and emits session telemetry.
type Tracker struct {
	sink   Sink
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*State
}

// NewTracker creates a tracker emitting to sink.
func NewTracker(sink Sink, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Tracker{
		sink:     sink,
		logger:   logger.With("component", "session"),
		sessions: make(map[string]*State),
	}
}

// session returns the state for id, creating it on first sight. Caller holds
// the lock.
func (t *Tracker) session(id string) *State {
	s, ok := t.sessions[id]
	if !ok {
		s = &State{
			SessionID:    id,
			StartTime:    time.Now(),
			RootSpanID:   uuid.NewString(),
			pendingTools: make(map[string]*PendingTool),
		}
		t.sessions[id] = s
		t.logger.Debug("session started", "session_id", id)
	}
	return s
}

// Prompt records a user prompt. The first prompt of a session names the
// trace; a session that stops without ever seeing a prompt gets a generated
// name instead.
func (t *Tracker) Prompt(sessionID, prompt string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.session(sessionID)
	if s.TraceName == "" {
		s.TraceName = truncate(strings.TrimSpace(prompt), traceNameLimit)
	}
}

// ToolStart records a tool invocation beginning. The tool call id keys the
// pending entry until ToolEnd resolves it.
func (t *Tracker) ToolStart(sessionID, toolCallID, name, input string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.session(sessionID)
	s.pendingTools[toolCallID] = &PendingTool{
		SpanID:    uuid.NewString(),
		Name:      name,
		Input:     input,
		StartTime: time.Now(),
	}
}

// ToolEnd resolves a pending tool invocation and emits its payload. An end
// event with no matching start is logged and ignored.
func (t *Tracker) ToolEnd(ctx context.Context, sessionID, toolCallID, output string, toolErr error) {
	t.mu.Lock()
	s := t.session(sessionID)
	pending, ok := s.pendingTools[toolCallID]
	if ok {
		delete(s.pendingTools, toolCallID)
	}
	rootID := s.RootSpanID
	t.mu.Unlock()

	if !ok {
		t.logger.Debug("tool end without matching start",
			"session_id", sessionID, "tool_call_id", toolCallID)
		return
	}

	end := time.Now()
	p := &telemetry.Payload{
		Schema:    telemetry.SchemaVersion,
		TraceID:   sessionID,
		SpanID:    pending.SpanID,
		ParentID:  rootID,
		SpanName:  pending.Name,
		LogType:   telemetry.LogTypeTool,
		StartTime: pending.StartTime,
		EndTime:   end,
		Latency:   end.Sub(pending.StartTime).Seconds(),
		Input:     pending.Input,
		Output:    output,
		Model:     structuralModel,
	}
	if toolErr != nil {
		p.StatusCode = 500
		p.Error = true
		p.ErrorMessage = toolErr.Error()
	} else {
		p.StatusCode = 200
	}

	t.emit(ctx, sessionID, p)
}

// Stop ends a session: the root span is emitted once, and any tools still
// outstanding are discarded. Further events for the same session id reopen
// it as a fresh session under the same trace.
func (t *Tracker) Stop(ctx context.Context, sessionID string) {
	t.mu.Lock()
	s, ok := t.sessions[sessionID]
	if !ok {
		t.mu.Unlock()
		return
	}

	if n := len(s.pendingTools); n > 0 {
		t.logger.Warn("discarding unresolved tool invocations",
			"session_id", sessionID, "count", n)
		s.pendingTools = make(map[string]*PendingTool)
	}

	s.RootEmitted = true
	// Drop the state so later events for this id start a fresh session;
	// the shared trace id keeps the reopened records in the same trace.
	delete(t.sessions, sessionID)

	name := s.TraceName
	if name == "" {
		name = uuid.NewString()
	}
	start := s.StartTime
	rootID := s.RootSpanID
	t.mu.Unlock()

	end := time.Now()
	t.emit(ctx, sessionID, &telemetry.Payload{
		Schema:     telemetry.SchemaVersion,
		TraceID:    sessionID,
		SpanID:     rootID,
		SpanName:   name,
		LogType:    telemetry.LogTypeAgent,
		StartTime:  start,
		EndTime:    end,
		Latency:    end.Sub(start).Seconds(),
		Model:      structuralModel,
		StatusCode: 200,
		Metadata:   map[string]any{"trace_name": name},
	})
}

// Sessions returns a snapshot count, for diagnostics.
func (t *Tracker) Sessions() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// emit delivers one payload. Delivery failures are logged, never raised;
// session hooks run inside the host agent's control flow.
func (t *Tracker) emit(ctx context.Context, sessionID string, p *telemetry.Payload) {
	if t.sink == nil {
		return
	}
	if err := t.sink.Deliver(ctx, []*telemetry.Payload{p}); err != nil {
		t.logger.Warn("failed to deliver session payload",
			"session_id", sessionID, "log_type", p.LogType, "error", err)
	}
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
