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

// Package spyglass is an observability SDK for LLM applications. It captures
// spans from instrumented model calls and agent workflows, normalizes them
// into versioned payloads with token usage, cost and timing, and delivers
// them to the spyglass platform, plus any number of additional destinations
// through predicate-gated routes.
//
// A minimal setup:
//
//	client, err := spyglass.New(
//		spyglass.WithAPIKey(os.Getenv("SPYGLASS_API_KEY")),
//		spyglass.WithAppName("support-bot"),
//	)
//	if err != nil {
//		return err
//	}
//	defer client.Shutdown(context.Background())
//
//	err = client.Workflow(ctx, "answer-ticket", func(ctx context.Context) error {
//		resp, err := client.WrapProvider(anthropic).Complete(ctx, req)
//		...
//	})
//
// Everything in the export path is fire-and-forget: parsing, validation and
// delivery failures are logged and recovered, never raised into application
// code.
package spyglass
