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

package export

import (
	"context"
	"log/slog"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/tombee/spyglass/internal/storage"
)

// StoreExporter writes normalized payloads to the local SQLite store. Spans
// go through the same filter/dedupe/build pipeline as the ingest exporter,
// so what lands on disk is exactly what delivery would have sent.
type StoreExporter struct {
	store    *storage.Store
	pipeline *pipeline
	logger   *slog.Logger
}

var _ sdktrace.SpanExporter = (*StoreExporter)(nil)

// NewStoreExporter creates an exporter persisting payloads to store. The
// exporter does not own the store; the caller closes it after Shutdown.
func NewStoreExporter(store *storage.Store, logger *slog.Logger, opts ...Option) *StoreExporter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &StoreExporter{
		store:    store,
		pipeline: newPipeline(logger, opts...),
		logger:   logger.With("component", "store"),
	}
}

// ExportSpans normalizes and persists a batch.
func (e *StoreExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	payloads := e.pipeline.run(spans)
	if len(payloads) == 0 {
		return nil
	}

	if err := e.store.Save(ctx, payloads); err != nil {
		e.logger.Warn("failed to persist payload batch", "spans", len(payloads), "error", err)
		return err
	}
	e.logger.Debug("payload batch persisted", "spans", len(payloads))
	return nil
}

// Shutdown is a no-op; the store is closed by its owner.
func (e *StoreExporter) Shutdown(ctx context.Context) error {
	return ctx.Err()
}
