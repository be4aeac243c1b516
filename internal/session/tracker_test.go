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

package session

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/spyglass/pkg/telemetry"
)

// captureSink records everything delivered.
type captureSink struct {
	payloads []*telemetry.Payload
	err      error
}

func (s *captureSink) Deliver(_ context.Context, payloads []*telemetry.Payload) error {
	s.payloads = append(s.payloads, payloads...)
	return s.err
}

func TestTracker_FirstPromptNamesTrace(t *testing.T) {
	sink := &captureSink{}
	tr := NewTracker(sink, nil)

	tr.Prompt("sess-1", "  summarize the quarterly report  ")
	tr.Prompt("sess-1", "a later prompt that must not rename")
	tr.Stop(context.Background(), "sess-1")

	require.Len(t, sink.payloads, 1)
	root := sink.payloads[0]
	assert.Equal(t, "sess-1", root.TraceID, "session id doubles as trace id")
	assert.Equal(t, telemetry.LogTypeAgent, root.LogType)
	assert.Equal(t, "summarize the quarterly report", root.SpanName)
	assert.Equal(t, "summarize the quarterly report", root.Metadata["trace_name"])
}

func TestTracker_LongPromptTruncated(t *testing.T) {
	sink := &captureSink{}
	tr := NewTracker(sink, nil)

	tr.Prompt("sess-1", strings.Repeat("x", 500))
	tr.Stop(context.Background(), "sess-1")

	require.Len(t, sink.payloads, 1)
	assert.Len(t, sink.payloads[0].SpanName, 100)
}

func TestTracker_PromptlessSessionGetsGeneratedName(t *testing.T) {
	sink := &captureSink{}
	tr := NewTracker(sink, nil)

	tr.ToolStart("sess-1", "tc-1", "search", "{}")
	tr.Stop(context.Background(), "sess-1")

	require.Len(t, sink.payloads, 1)
	assert.NotEmpty(t, sink.payloads[0].SpanName)
}

func TestTracker_ToolLifecycle(t *testing.T) {
	sink := &captureSink{}
	tr := NewTracker(sink, nil)
	ctx := context.Background()

	tr.ToolStart("sess-1", "tc-1", "search", `{"q":"go"}`)
	tr.ToolEnd(ctx, "sess-1", "tc-1", `{"hits":3}`, nil)
	tr.Stop(ctx, "sess-1")

	require.Len(t, sink.payloads, 2)

	tool := sink.payloads[0]
	root := sink.payloads[1]

	assert.Equal(t, telemetry.LogTypeTool, tool.LogType)
	assert.Equal(t, "search", tool.SpanName)
	assert.Equal(t, "sess-1", tool.TraceID)
	assert.Equal(t, root.SpanID, tool.ParentID, "tool spans parent under the session root")
	assert.Equal(t, `{"q":"go"}`, tool.Input)
	assert.Equal(t, `{"hits":3}`, tool.Output)
	assert.Equal(t, 200, tool.StatusCode)
	assert.False(t, tool.Error)
	assert.GreaterOrEqual(t, tool.Latency, 0.0)
}

func TestTracker_ToolFailure(t *testing.T) {
	sink := &captureSink{}
	tr := NewTracker(sink, nil)
	ctx := context.Background()

	tr.ToolStart("sess-1", "tc-1", "search", "{}")
	tr.ToolEnd(ctx, "sess-1", "tc-1", "", errors.New("upstream timed out"))

	require.Len(t, sink.payloads, 1)
	tool := sink.payloads[0]
	assert.Equal(t, 500, tool.StatusCode)
	assert.True(t, tool.Error)
	assert.Equal(t, "upstream timed out", tool.ErrorMessage)
}

func TestTracker_UnmatchedToolEndIgnored(t *testing.T) {
	sink := &captureSink{}
	tr := NewTracker(sink, nil)

	tr.ToolEnd(context.Background(), "sess-1", "never-started", "out", nil)

	assert.Empty(t, sink.payloads)
}

func TestTracker_StopDiscardsPendingTools(t *testing.T) {
	sink := &captureSink{}
	tr := NewTracker(sink, nil)
	ctx := context.Background()

	tr.ToolStart("sess-1", "tc-1", "search", "{}")
	tr.ToolStart("sess-1", "tc-2", "fetch", "{}")
	tr.Stop(ctx, "sess-1")

	require.Len(t, sink.payloads, 1, "only the root is emitted")
	assert.Equal(t, telemetry.LogTypeAgent, sink.payloads[0].LogType)

	// The discarded invocations cannot be resolved after the stop.
	tr.ToolEnd(ctx, "sess-1", "tc-1", "late", nil)
	assert.Len(t, sink.payloads, 1)
}

func TestTracker_StopIsIdempotent(t *testing.T) {
	sink := &captureSink{}
	tr := NewTracker(sink, nil)
	ctx := context.Background()

	tr.Prompt("sess-1", "hello")
	tr.Stop(ctx, "sess-1")
	tr.Stop(ctx, "sess-1")
	tr.Stop(ctx, "unknown-session")

	assert.Len(t, sink.payloads, 1)
}

func TestTracker_ReopenAfterStopEmitsFreshRoot(t *testing.T) {
	sink := &captureSink{}
	tr := NewTracker(sink, nil)
	ctx := context.Background()

	tr.Prompt("sess-1", "first conversation")
	tr.Stop(ctx, "sess-1")

	tr.Prompt("sess-1", "second conversation")
	tr.Stop(ctx, "sess-1")

	require.Len(t, sink.payloads, 2)
	first, second := sink.payloads[0], sink.payloads[1]

	assert.Equal(t, first.TraceID, second.TraceID, "reopened session stays in the same trace")
	assert.NotEqual(t, first.SpanID, second.SpanID, "each open/stop cycle gets its own root span")
	assert.Equal(t, "first conversation", first.SpanName)
	assert.Equal(t, "second conversation", second.SpanName)
}

func TestTracker_SessionsAreIndependent(t *testing.T) {
	sink := &captureSink{}
	tr := NewTracker(sink, nil)
	ctx := context.Background()

	tr.Prompt("a", "first")
	tr.Prompt("b", "second")
	assert.Equal(t, 2, tr.Sessions())

	tr.Stop(ctx, "a")
	tr.Stop(ctx, "b")

	require.Len(t, sink.payloads, 2)
	assert.NotEqual(t, sink.payloads[0].TraceID, sink.payloads[1].TraceID)
}

func TestTracker_DeliveryFailureDoesNotPanic(t *testing.T) {
	tr := NewTracker(&captureSink{err: errors.New("ingest down")}, nil)
	tr.Prompt("sess-1", "hello")
	tr.Stop(context.Background(), "sess-1")
}

func TestTracker_NilSink(t *testing.T) {
	tr := NewTracker(nil, nil)
	tr.Prompt("sess-1", "hello")
	tr.ToolStart("sess-1", "tc-1", "search", "{}")
	tr.ToolEnd(context.Background(), "sess-1", "tc-1", "out", nil)
	tr.Stop(context.Background(), "sess-1")
}
