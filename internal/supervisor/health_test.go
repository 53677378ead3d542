package supervisor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHealth_RecordEmit(t *testing.T) {
	h := NewHealth("logstream-1")
	h.RecordEmit()

	snap := h.Snapshot()
	assert.Equal(t, string(StatusHealthy), snap.Status)
	assert.Equal(t, 0, snap.ConsecutiveFailures)
	assert.NotNil(t, snap.LastEmitAt)
}

func TestHealth_RecordFailure_DoesNotImmediatelyUnhealthy(t *testing.T) {
	h := NewHealth("logstream-1")
	h.RecordEmit()
	h.RecordFailure()

	snap := h.Snapshot()
	assert.Equal(t, string(StatusDegraded), snap.Status)
	assert.Equal(t, 1, snap.ConsecutiveFailures)
}

func TestHealth_Probe_StaleEmitMarksUnhealthy(t *testing.T) {
	h := NewHealth("logstream-1")
	h.RecordEmit()

	future := time.Now().Add(DefaultEmitWindow + time.Second)
	status := h.Probe(future)
	assert.Equal(t, StatusUnhealthy, status)
}

func TestHealth_Probe_WithinWindowStaysHealthy(t *testing.T) {
	h := NewHealth("logstream-1")
	h.RecordEmit()

	status := h.Probe(time.Now().Add(10 * time.Second))
	assert.Equal(t, StatusHealthy, status)
}

func TestHealth_RecordEmit_RecoversFromUnhealthy(t *testing.T) {
	h := NewHealth("logstream-1")
	h.RecordEmit()
	h.Probe(time.Now().Add(DefaultEmitWindow + time.Second))
	assert.Equal(t, string(StatusUnhealthy), h.Snapshot().Status)

	recovered := h.RecordEmit()
	assert.True(t, recovered)
	assert.Equal(t, string(StatusHealthy), h.Snapshot().Status)
}

func TestHealth_MarkInactive(t *testing.T) {
	h := NewHealth("logstream-1")
	h.RecordEmit()
	h.MarkInactive()
	assert.Equal(t, string(StatusInactive), h.Snapshot().Status)
}

func TestHealth_Probe_NoEmitYetReturnsCurrentStatus(t *testing.T) {
	h := NewHealth("logstream-1")
	status := h.Probe(time.Now())
	assert.Equal(t, StatusUnknown, status)
}
