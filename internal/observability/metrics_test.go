package observability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/api/v1/damages", "POST", 201, 15*time.Millisecond)
	m.RecordRequest("/api/v1/damages", "POST", 201, 5*time.Millisecond)
	m.RecordError("/api/v1/damages/:id/status", "POST", "STALE_STATE")
	m.RecordTransition("TENANT_CREATE_DAMAGE", "OWNER_REJECT_DAMAGE")
	m.RecordTransitionFailure("ILLEGAL_TRANSITION")
	m.RecordPublishFailure()

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.Requests["/api/v1/damages|POST|201"])
	assert.Equal(t, int64(20), snap.RequestMillis["/api/v1/damages|POST|201"])
	assert.Equal(t, int64(1), snap.Errors["/api/v1/damages/:id/status|POST|STALE_STATE"])
	assert.Equal(t, int64(1), snap.Transitions["TENANT_CREATE_DAMAGE->OWNER_REJECT_DAMAGE"])
	assert.Equal(t, int64(1), snap.TransitionFails["ILLEGAL_TRANSITION"])
	assert.Equal(t, int64(1), snap.PublishFailures)

	// snapshot is a copy
	snap.Requests["/api/v1/damages|POST|201"] = 99
	assert.Equal(t, int64(2), m.Snapshot().Requests["/api/v1/damages|POST|201"])
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/", "GET", 200, time.Millisecond)
	m.RecordTransition("a", "b")
	assert.Empty(t, m.Snapshot().Requests)
}
