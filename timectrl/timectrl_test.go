package timectrl

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTimeControllerRunAdvancesNow(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, 5*time.Millisecond, Accelerated)

	if err := tc.Run(context.Background(), 15*time.Millisecond); err != nil {
		t.Fatalf("Run: %v", err)
	}

	expected := start.Add(15 * time.Millisecond)
	if got := tc.Now(); !got.Equal(expected) {
		t.Fatalf("Now() = %v, want %v", got, expected)
	}
	if got := tc.Steps(); got != 3 {
		t.Fatalf("Steps() = %d, want 3", got)
	}
}

func TestTimeControllerRejectsNonPositiveTick(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	for _, tick := range []time.Duration{0, -time.Millisecond} {
		tc := NewTimeController(start, tick, RealTime)
		called := false
		tc.AddListener(func(time.Time) { called = true })

		if err := tc.Run(context.Background(), time.Second); !errors.Is(err, ErrInvalidTick) {
			t.Fatalf("Run with tick %v: err = %v, want ErrInvalidTick", tick, err)
		}
		if called || tc.Steps() != 0 {
			t.Fatalf("Run with tick %v should not fire listeners", tick)
		}
	}
}

func TestTimeControllerSatisfiesSimClock(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	var clock SimClock = NewTimeController(start, time.Second, RealTime)
	if !clock.Now().Equal(start) || clock.Steps() != 0 {
		t.Fatalf("fresh clock = (%v, %d), want (%v, 0)", clock.Now(), clock.Steps(), start)
	}
}

func TestTimeControllerListenersRunInOrder(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, 100*time.Millisecond, Accelerated)

	var order []string
	tc.AddListener(func(time.Time) { order = append(order, "integrate") })
	tc.AddListener(func(time.Time) { order = append(order, "render") })

	if err := tc.Run(context.Background(), 300*time.Millisecond); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{"integrate", "render", "integrate", "render", "integrate", "render"}
	if len(order) != len(want) {
		t.Fatalf("listener calls = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("listener calls = %v, want %v", order, want)
		}
	}
}

func TestTimeControllerRunStopsOnCancel(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, time.Millisecond, Accelerated)

	ctx, cancel := context.WithCancel(context.Background())
	tc.AddListener(func(time.Time) {
		if tc.Steps() == 50 {
			cancel()
		}
	})

	err := tc.Run(ctx, 0)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run err = %v, want context.Canceled", err)
	}
	if got := tc.Steps(); got != 50 {
		t.Fatalf("Steps() = %d, want 50", got)
	}
}

func TestTimeControllerRealTimeHonoursCancel(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, time.Hour, RealTime)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := tc.Run(ctx, 0); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run err = %v, want context.DeadlineExceeded", err)
	}
	if got := tc.Steps(); got != 0 {
		t.Fatalf("Steps() = %d, want 0 before the first hour-long tick", got)
	}
}

func TestModeString(t *testing.T) {
	if RealTime.String() != "realtime" || Accelerated.String() != "accelerated" || Mode(9).String() != "unknown" {
		t.Fatalf("unexpected Mode strings")
	}
}
