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

package instrument

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	oteltrace "go.opentelemetry.io/otel/trace"
	noop "go.opentelemetry.io/otel/trace/noop"
)

func TestRegistry_LoadAll(t *testing.T) {
	r := &Registry{}
	var loaded []string

	record := func(name string) Registration {
		return Registration{
			Name: name,
			Load: func(oteltrace.TracerProvider) error {
				loaded = append(loaded, name)
				return nil
			},
		}
	}

	r.Register(record("openai"))
	r.Register(record("anthropic"))
	r.Register(record("bedrock"))

	n := r.LoadAll(noop.NewTracerProvider(), []string{"anthropic"}, nil)

	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"openai", "bedrock"}, loaded)
	assert.Equal(t, []string{"openai", "anthropic", "bedrock"}, r.Names())
}

func TestRegistry_FailuresAreIsolated(t *testing.T) {
	r := &Registry{}
	var loaded []string

	r.Register(Registration{
		Name: "broken",
		Load: func(oteltrace.TracerProvider) error { return errors.New("no client found") },
	})
	r.Register(Registration{
		Name: "panicky",
		Load: func(oteltrace.TracerProvider) error { panic("init bug") },
	})
	r.Register(Registration{
		Name: "healthy",
		Load: func(oteltrace.TracerProvider) error {
			loaded = append(loaded, "healthy")
			return nil
		},
	})

	n := r.LoadAll(noop.NewTracerProvider(), nil, nil)

	assert.Equal(t, 1, n, "only the healthy module counts as loaded")
	assert.Equal(t, []string{"healthy"}, loaded)
}

func TestRegistry_NilLoadSkipped(t *testing.T) {
	r := &Registry{}
	r.Register(Registration{Name: "declared-only"})

	assert.Zero(t, r.LoadAll(noop.NewTracerProvider(), nil, nil))
}
