package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCounterLabelsAreOrderIndependent(t *testing.T) {
	mc := NewMetricsCollector()
	mc.IncrementCounter("workflow_transitions", map[string]string{"action": "approve", "stage": "2"})
	mc.IncrementCounter("workflow_transitions", map[string]string{"stage": "2", "action": "approve"})
	mc.IncrementCounter("workflow_transitions", nil)

	assert.Equal(t, int64(2), mc.Counter("workflow_transitions", map[string]string{"action": "approve", "stage": "2"}))
	assert.Equal(t, int64(1), mc.GetCounters()["workflow_transitions"]["default"])
}

func TestLatencyWindowIsBounded(t *testing.T) {
	mc := NewMetricsCollector()
	for i := 0; i < 150; i++ {
		mc.ObserveLatency("generate", time.Duration(i)*time.Millisecond)
	}
	lat := mc.GetLatencies()["generate"]
	// samples 50..149 survive
	assert.InDelta(t, 99.5, lat["avg_ms"], 0.001)
	assert.InDelta(t, 149, lat["max_ms"], 0.001)
}

func TestSizes(t *testing.T) {
	mc := NewMetricsCollector()
	mc.ObserveSize("document_size", 100)
	mc.ObserveSize("document_size", 300)

	sizes := mc.GetSizes()["document_size"]
	assert.Equal(t, 200.0, sizes["avg_bytes"])
	assert.Equal(t, 300.0, sizes["max_bytes"])
	assert.Empty(t, mc.GetSizes()["missing"])
}
