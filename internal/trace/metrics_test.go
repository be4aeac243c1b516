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

package trace

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collectorForTest(t *testing.T) (*Collector, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	c, err := NewCollector(mp)
	require.NoError(t, err)
	return c, reader
}

func counterValue(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "%s is not an int64 sum", name)
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	t.Fatalf("metric %s not recorded", name)
	return 0
}

func TestCollector_DeliverySucceededCountsPayloads(t *testing.T) {
	c, reader := collectorForTest(t)

	c.DeliverySucceeded(7, 250*time.Millisecond)
	c.DeliverySucceeded(3, 50*time.Millisecond)

	assert.Equal(t, int64(10), counterValue(t, reader, "spyglass_payloads_delivered_total"))
	assert.Equal(t, int64(2), counterValue(t, reader, "spyglass_deliveries_total"))
}

func TestCollector_FailuresAndRetries(t *testing.T) {
	c, reader := collectorForTest(t)

	c.DeliveryRetried()
	c.DeliveryRetried()
	c.DeliveryFailed(true, 10*time.Millisecond)

	assert.Equal(t, int64(2), counterValue(t, reader, "spyglass_delivery_retries_total"))
	assert.Equal(t, int64(1), counterValue(t, reader, "spyglass_delivery_failures_total"))
}
