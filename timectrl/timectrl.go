package timectrl

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrInvalidTick reports a non-positive tick interval.
var ErrInvalidTick = errors.New("invalid tick interval")

// SimClock is a read-only view of simulation time, so consumers can depend
// on a clock abstraction rather than a concrete controller.
type SimClock interface {
	// Now returns the current simulation time.
	Now() time.Time
	// Steps returns the number of ticks fired so far.
	Steps() uint64
}

// Mode describes how the TimeController advances simulation time.
type Mode int

const (
	// RealTime fires one tick per Tick of wall-clock time, like a render loop.
	RealTime Mode = iota
	// Accelerated fires ticks back to back as fast as listeners return.
	Accelerated
)

func (m Mode) String() string {
	switch m {
	case RealTime:
		return "realtime"
	case Accelerated:
		return "accelerated"
	default:
		return "unknown"
	}
}

// TimeController is the external clock of a simulation: it advances
// simulation time by Tick and calls every listener, in registration order,
// from a single goroutine. Listeners never run concurrently with each other.
type TimeController struct {
	mu        sync.RWMutex
	StartTime time.Time
	Tick      time.Duration
	Mode      Mode

	currentTime time.Time
	steps       uint64

	listeners []func(time.Time)
}

// NewTimeController constructs a controller.
func NewTimeController(start time.Time, tick time.Duration, mode Mode) *TimeController {
	return &TimeController{
		StartTime:   start,
		Tick:        tick,
		Mode:        mode,
		currentTime: start,
	}
}

// Now returns the current simulation time. Implements SimClock.
func (tc *TimeController) Now() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime
}

// Steps returns the number of ticks fired. Implements SimClock.
func (tc *TimeController) Steps() uint64 {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.steps
}

// AddListener registers a callback invoked on every tick. It must be called
// before Run.
func (tc *TimeController) AddListener(fn func(time.Time)) {
	tc.listeners = append(tc.listeners, fn)
}

// Run fires ticks on the calling goroutine until duration of simulation
// time has elapsed or ctx is cancelled. A non-positive duration runs until
// cancellation. It returns ctx.Err() when cancelled, ErrInvalidTick when
// Tick is not positive, and nil otherwise.
func (tc *TimeController) Run(ctx context.Context, duration time.Duration) error {
	if tc.Tick <= 0 {
		return ErrInvalidTick
	}

	tc.mu.Lock()
	simTime := tc.StartTime
	tc.currentTime = simTime
	tc.steps = 0
	tc.mu.Unlock()

	var ticks <-chan time.Time
	if tc.Mode == RealTime {
		ticker := time.NewTicker(tc.Tick)
		defer ticker.Stop()
		ticks = ticker.C
	}

	elapsed := time.Duration(0)
	for {
		if duration > 0 && elapsed >= duration {
			return nil
		}

		if ticks != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticks:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		simTime = simTime.Add(tc.Tick)
		elapsed += tc.Tick

		tc.mu.Lock()
		tc.currentTime = simTime
		tc.steps++
		tc.mu.Unlock()

		for _, fn := range tc.listeners {
			fn(simTime)
		}
	}
}
