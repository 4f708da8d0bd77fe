package timeutil

import (
	"testing"
	"time"
)

func TestRealClockNow(t *testing.T) {
	clock := RealClock{}
	before := time.Now()
	now := clock.Now()
	after := time.Now()

	if now.Before(before) || now.After(after) {
		t.Errorf("RealClock.Now() = %v, outside [%v, %v]", now, before, after)
	}
}

func TestMockClockAdvance(t *testing.T) {
	start := time.Date(2023, 5, 10, 8, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)

	if got := clock.Now(); !got.Equal(start) {
		t.Fatalf("Now() = %v, want %v", got, start)
	}

	clock.Advance(90 * time.Second)
	want := start.Add(90 * time.Second)
	if got := clock.Now(); !got.Equal(want) {
		t.Errorf("Now() after Advance = %v, want %v", got, want)
	}

	if got := clock.Since(start); got != 90*time.Second {
		t.Errorf("Since(start) = %v, want 90s", got)
	}
}

func TestMockTickerFires(t *testing.T) {
	start := time.Date(2023, 5, 10, 8, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)

	ticker := clock.NewTicker(time.Minute)
	defer ticker.Stop()

	select {
	case <-ticker.C():
		t.Fatal("ticker fired before its period elapsed")
	default:
	}

	clock.Advance(time.Minute)

	select {
	case tick := <-ticker.C():
		if !tick.Equal(start.Add(time.Minute)) {
			t.Errorf("tick = %v, want %v", tick, start.Add(time.Minute))
		}
	default:
		t.Fatal("ticker did not fire after its period elapsed")
	}
}

func TestMockTickerStopped(t *testing.T) {
	clock := NewMockClock(time.Date(2023, 5, 10, 8, 0, 0, 0, time.UTC))
	ticker := clock.NewTicker(time.Minute)
	ticker.Stop()

	clock.Advance(5 * time.Minute)

	select {
	case <-ticker.C():
		t.Error("stopped ticker fired")
	default:
	}
}
