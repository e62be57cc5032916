package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAttemptTracker_WindowResets(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	tracker := NewAttemptTracker(2, time.Minute)
	tracker.now = func() time.Time { return now }

	ok, _ := tracker.RecordAttempt("10.0.0.1")
	assert.True(t, ok)
	ok, _ = tracker.RecordAttempt("10.0.0.1")
	assert.True(t, ok)

	now = now.Add(20 * time.Second)
	ok, retry := tracker.RecordAttempt("10.0.0.1")
	assert.False(t, ok)
	assert.Equal(t, 40*time.Second, retry)

	ok, _ = tracker.RecordAttempt("10.0.0.2")
	assert.True(t, ok, "keys are tracked independently")

	now = now.Add(time.Minute)
	ok, _ = tracker.RecordAttempt("10.0.0.1")
	assert.True(t, ok)
}

func TestAttemptTracker_DisabledLimit(t *testing.T) {
	tracker := NewAttemptTracker(0, time.Minute)
	for i := 0; i < 10; i++ {
		ok, _ := tracker.RecordAttempt("k")
		assert.True(t, ok)
	}
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", statusClass(201))
	assert.Equal(t, "4xx", statusClass(429))
	assert.Equal(t, "5xx", statusClass(503))
}
