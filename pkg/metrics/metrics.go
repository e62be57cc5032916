package metrics

import (
	"sort"
	"strings"
	"sync"
	"time"
)

const maxObservations = 100

type sizeObservation struct {
	value     float64
	timestamp time.Time
}

// MetricsCollector keeps process-local counters and rolling observations.
// Only the last hundred latency and size samples per name are retained.
type MetricsCollector struct {
	counters  map[string]map[string]int64
	latencies map[string][]time.Duration
	sizes     map[string][]sizeObservation
	mutex     sync.RWMutex
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		counters:  make(map[string]map[string]int64),
		latencies: make(map[string][]time.Duration),
		sizes:     make(map[string][]sizeObservation),
	}
}

// labelKey renders labels as "k1:v1,k2:v2" in key order.
func labelKey(labels map[string]string) string {
	if len(labels) == 0 {
		return "default"
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+":"+labels[k])
	}
	return strings.Join(parts, ",")
}

func (mc *MetricsCollector) IncrementCounter(name string, labels map[string]string) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	if _, exists := mc.counters[name]; !exists {
		mc.counters[name] = make(map[string]int64)
	}
	mc.counters[name][labelKey(labels)]++
}

func (mc *MetricsCollector) ObserveLatency(name string, duration time.Duration) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	mc.latencies[name] = append(mc.latencies[name], duration)
	if len(mc.latencies[name]) > maxObservations {
		mc.latencies[name] = mc.latencies[name][len(mc.latencies[name])-maxObservations:]
	}
}

func (mc *MetricsCollector) ObserveSize(name string, size float64) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	mc.sizes[name] = append(mc.sizes[name], sizeObservation{
		value:     size,
		timestamp: time.Now(),
	})
	if len(mc.sizes[name]) > maxObservations {
		mc.sizes[name] = mc.sizes[name][len(mc.sizes[name])-maxObservations:]
	}
}

// Counter returns a single counter value; zero when never incremented.
func (mc *MetricsCollector) Counter(name string, labels map[string]string) int64 {
	mc.mutex.RLock()
	defer mc.mutex.RUnlock()
	return mc.counters[name][labelKey(labels)]
}

func (mc *MetricsCollector) GetCounters() map[string]map[string]int64 {
	mc.mutex.RLock()
	defer mc.mutex.RUnlock()

	counters := make(map[string]map[string]int64, len(mc.counters))
	for name, labels := range mc.counters {
		counters[name] = make(map[string]int64, len(labels))
		for label, value := range labels {
			counters[name][label] = value
		}
	}
	return counters
}

func (mc *MetricsCollector) GetLatencies() map[string]map[string]float64 {
	mc.mutex.RLock()
	defer mc.mutex.RUnlock()

	result := make(map[string]map[string]float64)
	for name, durations := range mc.latencies {
		if len(durations) == 0 {
			continue
		}
		var sum, max time.Duration
		for _, d := range durations {
			sum += d
			if d > max {
				max = d
			}
		}
		result[name] = map[string]float64{
			"avg_ms": float64(sum) / float64(len(durations)) / float64(time.Millisecond),
			"max_ms": float64(max) / float64(time.Millisecond),
		}
	}
	return result
}

func (mc *MetricsCollector) GetSizes() map[string]map[string]float64 {
	mc.mutex.RLock()
	defer mc.mutex.RUnlock()

	result := make(map[string]map[string]float64)
	for name, observations := range mc.sizes {
		if len(observations) == 0 {
			continue
		}
		var sum, max float64
		for _, obs := range observations {
			sum += obs.value
			if obs.value > max {
				max = obs.value
			}
		}
		result[name] = map[string]float64{
			"avg_bytes": sum / float64(len(observations)),
			"max_bytes": max,
		}
	}
	return result
}
