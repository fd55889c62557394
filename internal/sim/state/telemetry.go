package state

import (
	"sync"
	"time"
)

// DefaultTelemetryCapacity is the number of samples kept when none is given.
const DefaultTelemetryCapacity = 1024

// TickSample summarises one tick of the running world.
type TickSample struct {
	Tick          uint64
	KineticEnergy float64
	SpringStrain  float64
	BoundaryHits  int
	// Duration is the wall-clock time spent inside the tick.
	Duration time.Duration
}

// TelemetryState is a concurrency-safe ring of the most recent tick samples.
type TelemetryState struct {
	mu      sync.RWMutex
	samples []TickSample
	next    int
	full    bool
}

// NewTelemetryState creates a store that keeps the last capacity samples.
func NewTelemetryState(capacity int) *TelemetryState {
	if capacity <= 0 {
		capacity = DefaultTelemetryCapacity
	}
	return &TelemetryState{samples: make([]TickSample, capacity)}
}

// Record appends a sample, overwriting the oldest when the ring is full.
func (t *TelemetryState) Record(s TickSample) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.samples[t.next] = s
	t.next++
	if t.next == len(t.samples) {
		t.next = 0
		t.full = true
	}
}

// Len returns the number of samples held.
func (t *TelemetryState) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lenLocked()
}

func (t *TelemetryState) lenLocked() int {
	if t.full {
		return len(t.samples)
	}
	return t.next
}

// Samples returns a copy of the held samples, oldest first.
func (t *TelemetryState) Samples() []TickSample {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]TickSample, 0, t.lenLocked())
	if t.full {
		out = append(out, t.samples[t.next:]...)
	}
	return append(out, t.samples[:t.next]...)
}

// Latest returns the most recent sample.
func (t *TelemetryState) Latest() (TickSample, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.lenLocked() == 0 {
		return TickSample{}, false
	}
	i := t.next - 1
	if i < 0 {
		i = len(t.samples) - 1
	}
	return t.samples[i], true
}

// EnergySeries returns the kinetic energy of each held sample, oldest first.
func (t *TelemetryState) EnergySeries() []float64 {
	samples := t.Samples()
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s.KineticEnergy
	}
	return out
}

// Reset drops every sample.
func (t *TelemetryState) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next = 0
	t.full = false
}
